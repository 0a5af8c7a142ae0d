package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/trustmesh/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventMediaDeletionRequested EventType = "media_deletion_requested"
	EventIdentityRegistered     EventType = "identity_registered"
	EventIdentityVerified       EventType = "identity_verified"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Subject   string      `json:"subject"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(eventType EventType, subject string, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Subject:   subject,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// MediaDeletionPayload is emitted once per media id after the owning
// aggregate and its media rows are gone.
type MediaDeletionPayload struct {
	MediaID       int64                `json:"media_id"`
	AggregateKind domain.AggregateKind `json:"aggregate_kind"`
	AggregateID   int64                `json:"aggregate_id"`
}

// IdentityPayload payload.
type IdentityPayload struct {
	IdentityID int64       `json:"identity_id"`
	Username   string      `json:"username"`
	Role       domain.Role `json:"role"`
}
