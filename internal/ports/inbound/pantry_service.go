// Package inbound defines the interfaces for inbound ports (primary/driving adapters)
// These are the interfaces that the application exposes to the outside world
package inbound

import (
	"context"
	"time"

	"github.com/alchemorsel/pantry/internal/domain/pantry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PantryService defines the use cases for pantry management
// This is the primary port that HTTP handlers and other driving adapters will use
type PantryService interface {
	// Commands - operations that modify state
	CookRecipe(ctx context.Context, cmd CookRecipeCommand) (*ReconciliationDTO, error)
	AddIngredient(ctx context.Context, cmd AddIngredientCommand) (*PantryEntryDTO, error)
	// UpdateEntry returns a nil DTO when a non-positive amount removed the entry
	UpdateEntry(ctx context.Context, cmd UpdateEntryCommand) (*PantryEntryDTO, error)
	RemoveEntry(ctx context.Context, userID, ingredientID uuid.UUID) error

	// Queries - operations that read state
	ListPantry(ctx context.Context, userID uuid.UUID) ([]PantryEntryDTO, error)
}

// Command objects for operations

// CookRecipeCommand marks a recipe's ingredients as consumed
type CookRecipeCommand struct {
	UserID      uuid.UUID
	Ingredients []pantry.ConsumedIngredient
}

// AddIngredientCommand restocks or starts tracking an ingredient
type AddIngredientCommand struct {
	UserID uuid.UUID
	Name   string
	Amount decimal.Decimal
	Unit   string
}

// UpdateEntryCommand overwrites an entry's amount and unit
type UpdateEntryCommand struct {
	UserID       uuid.UUID
	IngredientID uuid.UUID
	Amount       decimal.Decimal
	Unit         string
}

// Response DTOs

// PantryEntryDTO is the data transfer object for pantry entries
type PantryEntryDTO struct {
	IngredientID uuid.UUID       `json:"ingredient_id"`
	Name         string          `json:"name"`
	Amount       decimal.Decimal `json:"amount"`
	Unit         string          `json:"unit"`
	UpdatedAt    string          `json:"updated_at"`
}

// ReconciliationDTO is the summary returned after cooking a recipe
type ReconciliationDTO struct {
	UserID  uuid.UUID           `json:"user_id"`
	Items   []pantry.ItemResult `json:"items"`
	Summary pantry.Summary      `json:"summary"`
	Aborted bool                `json:"aborted"`
}

// NewPantryEntryDTO maps a domain entry
func NewPantryEntryDTO(e *pantry.Entry) PantryEntryDTO {
	return PantryEntryDTO{
		IngredientID: e.IngredientID,
		Name:         e.IngredientName,
		Amount:       e.Amount,
		Unit:         e.Unit,
		UpdatedAt:    e.UpdatedAt.Format(time.RFC3339),
	}
}

// NewReconciliationDTO maps a reconciliation result
func NewReconciliationDTO(r *pantry.ReconciliationResult) *ReconciliationDTO {
	return &ReconciliationDTO{
		UserID:  r.UserID,
		Items:   r.Items,
		Summary: r.Summary(),
		Aborted: r.Aborted,
	}
}
