package domain

import (
	"fmt"
	"time"
)

type NotificationType string

const (
	NotifMachineOn    NotificationType = "machine_on"
	NotifMachineOff   NotificationType = "machine_off"
	NotifCoinInserted NotificationType = "coin_inserted"
	NotifUnknown      NotificationType = "event"
)

// Notification is the canonical record every consumer operates on. Records are
// immutable once created; an update produces a new record.
type Notification struct {
	ID          int64            `json:"id"`
	Type        NotificationType `json:"type"`
	MachineID   string           `json:"machine_id"`
	MachineName string           `json:"machine_name,omitempty"`
	Location    string           `json:"location,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`
	Amount      int              `json:"amount,omitempty"`
	Detail      string           `json:"detail,omitempty"`
}

// DedupKey buckets the timestamp into a tolerance window so the same physical
// event arriving over both the live socket and the push relay collapses to one
// insertion.
func (n Notification) DedupKey(window time.Duration) string {
	bucket := n.Timestamp.Unix()
	if w := int64(window.Seconds()); w > 0 {
		bucket -= bucket % w
	}
	return fmt.Sprintf("%s|%s|%d", n.Type, n.MachineID, bucket)
}

type RelayMessageType string

const (
	RelayCoinNotification   RelayMessageType = "coin_notification"
	RelayEventNotification  RelayMessageType = "event_notification"
	RelaySystemNotification RelayMessageType = "system_notification"
	RelayToast              RelayMessageType = "toast"
	RelaySound              RelayMessageType = "sound"
	RelayBadge              RelayMessageType = "badge"
)

// RelayMessage is the only shape that crosses from the push worker to the
// dashboard runtime and out to connected clients. MachineID scopes delivery:
// the hub only hands a machine-bound message to clients whose identity may
// see that machine. An empty MachineID reaches every client.
type RelayMessage struct {
	Type      RelayMessageType `json:"type"`
	MachineID string           `json:"machine_id,omitempty"`
	Payload   any              `json:"payload"`
}

type ToastPayload struct {
	Title string           `json:"title"`
	Body  string           `json:"body,omitempty"`
	Kind  NotificationType `json:"kind"`
}

type BadgePayload struct {
	Unread int `json:"unread"`
}

// NotificationPreferences is the persisted date-range selection for the
// notification view. TodayOnly wins over the explicit range.
type NotificationPreferences struct {
	TodayOnly bool   `json:"today_only"`
	From      string `json:"from,omitempty"` // YYYY-MM-DD
	To        string `json:"to,omitempty"`   // YYYY-MM-DD
}

func DefaultNotificationPreferences() NotificationPreferences {
	return NotificationPreferences{TodayOnly: true}
}
