// Package notify computes what a notification looks like: titles, localized
// bodies, vibration patterns and replacement tags. It is pure so the worker
// and the dashboard runtime render identically.
package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/wanfrev/machinehub-agent/internal/domain"
)

const (
	iconPath  = "/img/icons/K11BOX.webp"
	badgePath = "/img/icons/K11BOX.webp"
	tagPrefix = "machinehub"
)

var fleetZone *time.Location

func init() {
	loc, err := time.LoadLocation("America/Caracas")
	if err != nil {
		loc = time.FixedZone("VET", -4*60*60)
	}
	fleetZone = loc
}

// Rendered is the platform-notification contract the worker hands to the
// render primitive.
type Rendered struct {
	Title              string `json:"title"`
	Body               string `json:"body"`
	Icon               string `json:"icon"`
	Badge              string `json:"badge"`
	Tag                string `json:"tag"`
	MachineID          string `json:"machine_id,omitempty"`
	Vibrate            []int  `json:"vibrate"`
	Renotify           bool   `json:"renotify"`
	RequireInteraction bool   `json:"require_interaction"`
}

func Title(t domain.NotificationType) string {
	switch t {
	case domain.NotifMachineOn:
		return "Máquina encendida"
	case domain.NotifMachineOff:
		return "Máquina apagada"
	case domain.NotifCoinInserted:
		return "Moneda ingresada"
	default:
		return "Nuevo evento"
	}
}

// Render builds the platform notification for a canonical record. Unknown
// event types are suppressed rather than shown generically; the second return
// is false in that case.
func Render(n domain.Notification) (Rendered, bool) {
	switch n.Type {
	case domain.NotifCoinInserted:
		body := fmt.Sprintf("Máquina %s registró una moneda", n.MachineID)
		if n.Amount > 0 {
			body = fmt.Sprintf("Máquina %s recibió %d moneda(s)", n.MachineID, n.Amount)
		}
		return finish(Title(n.Type), body, n), true
	case domain.NotifMachineOn, domain.NotifMachineOff:
		body := n.MachineID
		if n.Detail != "" {
			body = fmt.Sprintf("%s — %s", n.MachineID, n.Detail)
		}
		return finish(Title(n.Type), body, n), true
	default:
		return Rendered{}, false
	}
}

// Decorate wraps a backend-provided title/body in the standard options. Used
// when the push payload already carries display text.
func Decorate(title, body string, n domain.Notification) Rendered {
	if title == "" {
		title = "MachineHub"
	}
	return finish(title, body, n)
}

func finish(title, body string, n domain.Notification) Rendered {
	r := Rendered{
		Title:     title,
		Body:      appendEventTime(body, n.Timestamp),
		Icon:      iconPath,
		Badge:     badgePath,
		Tag:       Tag(n.Type, n.MachineID),
		MachineID: n.MachineID,
		Vibrate:   []int{100, 50, 100},
		Renotify:  true,
	}
	if n.Type == domain.NotifMachineOff {
		// An unexpected power-off is operationally significant: longer
		// vibration and explicit dismissal.
		r.Vibrate = []int{300, 100, 300}
		r.RequireInteraction = true
	}
	return r
}

// Tag is the replacement key the platform uses to collapse repeats. Scoped per
// machine and per type so two machines' coin events never replace each other.
// A record without a resolvable type tags as a generic event.
func Tag(t domain.NotificationType, machineID string) string {
	if t == "" {
		t = domain.NotifUnknown
	}
	if machineID == "" {
		return fmt.Sprintf("%s-%s", tagPrefix, t)
	}
	return fmt.Sprintf("%s-%s-%s", tagPrefix, t, machineID)
}

func appendEventTime(body string, ts time.Time) string {
	if ts.IsZero() {
		return body
	}
	stamp := ts.In(fleetZone).Format("02/01/2006, 15:04:05")
	if body == "" {
		return stamp
	}
	if strings.Contains(body, stamp) {
		return body
	}
	return fmt.Sprintf("%s • %s", body, stamp)
}

// EventTime formats the short time used in toast bodies.
func EventTime(ts time.Time) string {
	return ts.In(fleetZone).Format("15:04:05")
}

// ToastBody is the in-dashboard body for a record, shorter than the platform
// notification body.
func ToastBody(n domain.Notification) string {
	name := n.MachineName
	if name == "" {
		name = fmt.Sprintf("Máquina %s", n.MachineID)
	}

	parts := []string{name}
	if n.Type == domain.NotifCoinInserted {
		amount := n.Amount
		if amount <= 0 {
			amount = 1
		}
		parts = append(parts, fmt.Sprintf("+%d moneda(s)", amount))
	}
	parts = append(parts, EventTime(n.Timestamp))
	if n.Type != domain.NotifCoinInserted && n.Detail != "" {
		parts = append(parts, n.Detail)
	}
	return strings.Join(parts, " • ")
}

// FleetZone exposes the fleet-local timezone for day arithmetic (daily
// counters, report grouping).
func FleetZone() *time.Location {
	return fleetZone
}

// LocalDay renders the fleet-local calendar day of a timestamp.
func LocalDay(ts time.Time) string {
	return ts.In(fleetZone).Format("2006-01-02")
}
