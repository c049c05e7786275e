package events

import (
	"time"

	"github.com/spec-kit/identity-service/internal/domain"
)

// EventType enumerates the lifecycle events published by the service.
type EventType string

const (
	EventIdentityCreated   EventType = "identity_created"
	EventIdentityActivated EventType = "identity_activated"
	EventIdentityLocked    EventType = "identity_locked"
	EventIdentityUnlocked  EventType = "identity_unlocked"
	EventIdentityExpired   EventType = "identity_expired"
	EventIdentityDestroyed EventType = "identity_destroyed"
)

// Event is one lifecycle event. Delivery to external consumers is
// at-least-once; consumers key idempotency off the event id.
type Event struct {
	ID         string                `json:"id"`
	Type       EventType             `json:"type"`
	IdentityID string                `json:"identity_id"`
	IssuerID   string                `json:"issuer_id"`
	Status     domain.IdentityStatus `json:"status"`
	Timestamp  time.Time             `json:"timestamp"`
	Payload    interface{}           `json:"payload,omitempty"`
}

// IdentityCreatedPayload payload.
type IdentityCreatedPayload struct {
	Number string `json:"number"`
	Tier   string `json:"tier"`
}

// IdentityActivatedPayload payload.
type IdentityActivatedPayload struct {
	ActiveKeyID *string `json:"active_key_id,omitempty"`
}

// IdentityLockedPayload payload.
type IdentityLockedPayload struct {
	Reason domain.LockReason `json:"reason"`
}
