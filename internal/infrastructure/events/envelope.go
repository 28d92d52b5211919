// Package events provides the EventPublisher adapters: an in-process hub that
// feeds websocket subscribers, an SQS publisher, and a fan-out publisher
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/alchemorsel/pantry/internal/domain/shared"
)

// Envelope is the wire form of a domain event
type Envelope struct {
	ID         string             `json:"id"`
	Type       string             `json:"type"`
	OccurredAt time.Time          `json:"occurred_at"`
	Data       shared.DomainEvent `json:"data"`
}

// NewEnvelope wraps event with a fresh id
func NewEnvelope(event shared.DomainEvent) Envelope {
	return Envelope{
		ID:         uuid.NewString(),
		Type:       event.EventName(),
		OccurredAt: event.OccurredAt().UTC(),
		Data:       event,
	}
}
