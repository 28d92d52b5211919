package pantry

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Domain Events - Events that occur within the pantry domain

// EntryUpdatedEvent is raised when an entry's amount changes and stays positive
type EntryUpdatedEvent struct {
	UserID       uuid.UUID       `json:"user_id"`
	IngredientID uuid.UUID       `json:"ingredient_id"`
	Ingredient   string          `json:"ingredient"`
	Amount       decimal.Decimal `json:"amount"`
	Unit         string          `json:"unit"`
	Reason       string          `json:"reason"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (e EntryUpdatedEvent) EventName() string {
	return "pantry.entry.updated"
}

func (e EntryUpdatedEvent) OccurredAt() time.Time {
	return e.UpdatedAt
}

func (e EntryUpdatedEvent) OwnerID() uuid.UUID {
	return e.UserID
}

// EntryDepletedEvent is raised when an entry is removed because it ran out
// or because the user removed it
type EntryDepletedEvent struct {
	UserID       uuid.UUID `json:"user_id"`
	IngredientID uuid.UUID `json:"ingredient_id"`
	Ingredient   string    `json:"ingredient"`
	Reason       string    `json:"reason"`
	DepletedAt   time.Time `json:"depleted_at"`
}

func (e EntryDepletedEvent) EventName() string {
	return "pantry.entry.depleted"
}

func (e EntryDepletedEvent) OccurredAt() time.Time {
	return e.DepletedAt
}

func (e EntryDepletedEvent) OwnerID() uuid.UUID {
	return e.UserID
}

// Reasons attached to entry events
const (
	ReasonCooked  = "cooked"
	ReasonAdded   = "added"
	ReasonEdited  = "edited"
	ReasonRemoved = "removed"
)
