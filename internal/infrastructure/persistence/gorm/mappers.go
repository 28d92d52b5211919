// Package gorm provides mapping between domain entities and GORM models
package gorm

import (
	"github.com/alchemorsel/pantry/internal/domain/pantry"
)

// ModelToIngredient converts a GORM model to a catalog ingredient
func ModelToIngredient(m *IngredientModel) pantry.Ingredient {
	return pantry.Ingredient{ID: m.ID, Name: m.Name}
}

// ModelToEntry converts a GORM model to a domain pantry entry.
// The Ingredient relation must be loaded for IngredientName to be set.
func ModelToEntry(m *PantryEntryModel) *pantry.Entry {
	return &pantry.Entry{
		UserID:         m.UserID,
		IngredientID:   m.IngredientID,
		IngredientName: m.Ingredient.Name,
		Amount:         m.Amount,
		Unit:           m.Unit,
		UpdatedAt:      m.UpdatedAt,
	}
}
