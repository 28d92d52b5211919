// Package pantry contains the domain model for a user's stock of ingredients
// and the outcome types of reconciling that stock against cooked recipes.
package pantry

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Entry is one ingredient a user currently owns.
// There is at most one Entry per (UserID, IngredientID).
type Entry struct {
	UserID         uuid.UUID
	IngredientID   uuid.UUID
	IngredientName string
	Amount         decimal.Decimal
	Unit           string
	UpdatedAt      time.Time
}

// NewEntry creates an entry for a first positive add
func NewEntry(userID uuid.UUID, ingredient Ingredient, amount decimal.Decimal, unit string) (*Entry, error) {
	if !amount.IsPositive() {
		return nil, ErrNonPositiveAmount
	}

	return &Entry{
		UserID:         userID,
		IngredientID:   ingredient.ID,
		IngredientName: ingredient.Name,
		Amount:         amount,
		Unit:           NormalizeUnit(unit),
		UpdatedAt:      time.Now(),
	}, nil
}

// Consume subtracts a decrement expressed in the entry's own unit.
// It returns the new amount and whether the entry is depleted, in which
// case the caller removes it instead of storing a zero or negative amount.
func (e *Entry) Consume(decrement decimal.Decimal) (decimal.Decimal, bool) {
	remaining := e.Amount.Sub(decrement)
	if !remaining.IsPositive() {
		return remaining, true
	}

	e.Amount = remaining
	e.UpdatedAt = time.Now()
	return remaining, false
}

// Restock adds an amount expressed in the entry's own unit
func (e *Entry) Restock(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrNonPositiveAmount
	}

	e.Amount = e.Amount.Add(amount)
	e.UpdatedAt = time.Now()
	return nil
}

// Overwrite replaces amount and unit, as an explicit edit does
func (e *Entry) Overwrite(amount decimal.Decimal, unit string) {
	e.Amount = amount
	e.Unit = NormalizeUnit(unit)
	e.UpdatedAt = time.Now()
}
