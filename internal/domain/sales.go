package domain

import "time"

// SaleRecord is one archived coin event. The archive is local to the agent and
// feeds the daily report even when the backend is unreachable.
type SaleRecord struct {
	ID        int64     `json:"id" db:"id"`
	MachineID string    `json:"machine_id" db:"machine_id"`
	Amount    int       `json:"amount" db:"amount"`
	Day       string    `json:"day" db:"day"` // YYYY-MM-DD, local to the fleet timezone
	Timestamp time.Time `json:"timestamp" db:"ts"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type DailySales struct {
	Day       string `json:"day" db:"day"`
	MachineID string `json:"machine_id" db:"machine_id"`
	Coins     int    `json:"coins" db:"coins"`
}
