// Package event converts the heterogeneous wire shapes of the live socket,
// push channel and REST history into the canonical notification record. No
// other package looks at raw payload fields.
package event

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/wanfrev/machinehub-agent/internal/domain"
)

// FlexString absorbs values the backend emits inconsistently as JSON strings
// or numbers (machine ids above all).
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

// FlexInt tolerates numbers, numeric strings and garbage; garbage decodes to
// zero rather than failing the whole event.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	s := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			*f = 0
			return nil
		}
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = FlexInt(int(v))
	return nil
}

type RawData struct {
	Cantidad FlexInt `json:"cantidad"`
	Reason   string  `json:"reason"`
}

// RawEvent carries every field spelling observed on the wire: snake_case and
// camelCase variants, the legacy `event`/`eventType` type keys, and the nested
// data block.
type RawEvent struct {
	ID             FlexInt    `json:"id"`
	Type           string     `json:"type"`
	Event          string     `json:"event"`
	EventType      string     `json:"eventType"`
	MachineID      FlexString `json:"machine_id"`
	MachineIDAlt   FlexString `json:"machineId"`
	MachineName    string     `json:"machine_name"`
	MachineNameAlt string     `json:"machineName"`
	Location       string     `json:"location"`
	Timestamp      string     `json:"timestamp"`
	TS             string     `json:"ts"`
	Amount         FlexInt    `json:"amount"`
	Data           *RawData   `json:"data"`
}

func (e RawEvent) ResolvedMachineID() string {
	if e.MachineID != "" {
		return string(e.MachineID)
	}
	return string(e.MachineIDAlt)
}

func (e RawEvent) ResolvedType() domain.NotificationType {
	for _, t := range []string{e.EventType, e.Type, e.Event} {
		switch domain.NotificationType(t) {
		case domain.NotifMachineOn, domain.NotifMachineOff, domain.NotifCoinInserted:
			return domain.NotificationType(t)
		}
	}
	return domain.NotifUnknown
}

func (e RawEvent) resolvedTimestamp(now time.Time) time.Time {
	raw := e.Timestamp
	if raw == "" {
		raw = e.TS
	}
	if raw == "" {
		return now
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts
		}
	}
	return now
}

// Normalize builds the canonical record. It reports false when the event has
// no resolvable machine id, which callers treat as a silent drop.
func Normalize(e RawEvent, now time.Time) (domain.Notification, bool) {
	machineID := e.ResolvedMachineID()
	if machineID == "" {
		return domain.Notification{}, false
	}

	n := domain.Notification{
		ID:        int64(e.ID),
		Type:      e.ResolvedType(),
		MachineID: machineID,
		Location:  e.Location,
		Timestamp: e.resolvedTimestamp(now),
	}

	if e.MachineName != "" {
		n.MachineName = e.MachineName
	} else if e.MachineNameAlt != "" {
		n.MachineName = e.MachineNameAlt
	}

	if n.Type == domain.NotifCoinInserted {
		amount := int(e.Amount)
		if amount == 0 && e.Data != nil {
			amount = int(e.Data.Cantidad)
		}
		if amount <= 0 {
			amount = 1
		}
		n.Amount = amount
	}

	if e.Data != nil && e.Data.Reason != "" {
		n.Detail = e.Data.Reason
	}

	return n, true
}

// PushPayload is the platform push message body.
type PushPayload struct {
	Title string    `json:"title"`
	Body  string    `json:"body"`
	Data  *RawEvent `json:"data"`
}

// Empty reports whether the payload carries nothing to act on.
func (p *PushPayload) Empty() bool {
	return p == nil || (p.Title == "" && p.Body == "" && p.Data == nil)
}

// ParsePush decodes a push message body. A decode failure is routine (the
// channel may deliver opaque or empty bodies) and callers fall back to the
// latest-events endpoint.
func ParsePush(body []byte) (*PushPayload, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	var p PushPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
