package shared

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent represents an event that has occurred in the domain
type DomainEvent interface {
	EventName() string
	OccurredAt() time.Time
}

// UserEvent is a domain event that belongs to a single user's data.
// Fan-out adapters use the owner to route the event.
type UserEvent interface {
	DomainEvent
	OwnerID() uuid.UUID
}
