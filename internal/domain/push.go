package domain

import "github.com/google/uuid"

// PushSubscription is the callback registration the agent keeps with the
// backend so push events reach it even when no dashboard client is connected.
type PushSubscription struct {
	ID       uuid.UUID `json:"id"`
	Endpoint string    `json:"endpoint"`
}
