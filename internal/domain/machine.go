package domain

import "time"

type MachineStatus string

const (
	MachineActive      MachineStatus = "active"
	MachineInactive    MachineStatus = "inactive"
	MachineMaintenance MachineStatus = "maintenance"
)

type Machine struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Status   MachineStatus `json:"status"`
	Location string        `json:"location,omitempty"`
	Type     string        `json:"type,omitempty"`
	TestMode bool          `json:"test_mode"`
	LastOn   *time.Time    `json:"last_on,omitempty"`
	LastOff  *time.Time    `json:"last_off,omitempty"`
}

// PowerLog is one row of a machine's on/off history as the backend reports it.
// Dur is minutes spent in the state that the row opened.
type PowerLog struct {
	Event string  `json:"event"` // "Encendido" or "Apagado"
	TS    string  `json:"ts"`
	Dur   float64 `json:"dur"`
}

const PowerLogOn = "Encendido"

// MachineUsage is derived from today's power logs.
type MachineUsage struct {
	MachineID     string `json:"machine_id"`
	ActiveMinutes int    `json:"active_minutes"`
	FirstOn       string `json:"first_on,omitempty"`
}
