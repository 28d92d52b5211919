// Package gorm provides GORM-based repository implementations
package gorm

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/alchemorsel/pantry/internal/domain/pantry"
	"github.com/alchemorsel/pantry/internal/ports/outbound"
)

// PantryRepository implements the pantry repository interface using GORM
type PantryRepository struct {
	db *gorm.DB
}

// NewPantryRepository creates a new pantry repository
func NewPantryRepository(db *gorm.DB) outbound.PantryRepository {
	return &PantryRepository{db: db}
}

// FindIngredientID resolves a catalog id by canonical name
func (r *PantryRepository) FindIngredientID(ctx context.Context, name string) (uuid.UUID, error) {
	var model IngredientModel

	result := r.db.WithContext(ctx).
		Select("id").
		Where("name = ?", pantry.CanonicalName(name)).
		Take(&model)
	if result.Error != nil {
		return uuid.Nil, translateError(result.Error, pantry.ErrIngredientNotFound)
	}

	return model.ID, nil
}

// GetEntry finds a user's entry for an ingredient
func (r *PantryRepository) GetEntry(ctx context.Context, userID, ingredientID uuid.UUID) (*pantry.Entry, error) {
	var model PantryEntryModel

	result := r.db.WithContext(ctx).
		Joins("Ingredient").
		Where("pantry_entries.user_id = ? AND pantry_entries.ingredient_id = ?", userID, ingredientID).
		Take(&model)
	if result.Error != nil {
		return nil, translateError(result.Error, pantry.ErrEntryNotFound)
	}

	return ModelToEntry(&model), nil
}

// SetAmount upserts an entry, overwriting amount and unit
func (r *PantryRepository) SetAmount(ctx context.Context, userID, ingredientID uuid.UUID, amount decimal.Decimal, unit string) error {
	model := PantryEntryModel{
		UserID:       userID,
		IngredientID: ingredientID,
		Amount:       amount,
		Unit:         unit,
		UpdatedAt:    time.Now(),
	}

	result := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "ingredient_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"amount", "unit", "updated_at"}),
		}).
		Create(&model)

	return translateError(result.Error, pantry.ErrEntryNotFound)
}

// DeleteEntry deletes a user's entry for an ingredient
func (r *PantryRepository) DeleteEntry(ctx context.Context, userID, ingredientID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND ingredient_id = ?", userID, ingredientID).
		Delete(&PantryEntryModel{})
	if result.Error != nil {
		return translateError(result.Error, pantry.ErrEntryNotFound)
	}

	if result.RowsAffected == 0 {
		return pantry.ErrEntryNotFound
	}

	return nil
}

// EnsureIngredient returns the catalog row for name, creating it if missing
func (r *PantryRepository) EnsureIngredient(ctx context.Context, name string) (pantry.Ingredient, error) {
	canonical := pantry.CanonicalName(name)
	if canonical == "" {
		return pantry.Ingredient{}, pantry.ErrNameRequired
	}

	db := r.db.WithContext(ctx)

	// Concurrent creators race on the unique name; the loser reads the winner's row
	result := db.
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&IngredientModel{Name: canonical})
	if result.Error != nil {
		return pantry.Ingredient{}, translateError(result.Error, pantry.ErrIngredientNotFound)
	}

	var model IngredientModel
	if err := db.Where("name = ?", canonical).Take(&model).Error; err != nil {
		return pantry.Ingredient{}, translateError(err, pantry.ErrIngredientNotFound)
	}

	return ModelToIngredient(&model), nil
}

// ListEntries lists a user's entries ordered by ingredient name
func (r *PantryRepository) ListEntries(ctx context.Context, userID uuid.UUID) ([]*pantry.Entry, error) {
	var models []PantryEntryModel

	result := r.db.WithContext(ctx).
		Joins("Ingredient").
		Where("pantry_entries.user_id = ?", userID).
		Order(`"Ingredient"."name" ASC`).
		Find(&models)
	if result.Error != nil {
		return nil, translateError(result.Error, pantry.ErrEntryNotFound)
	}

	entries := make([]*pantry.Entry, 0, len(models))
	for i := range models {
		entries = append(entries, ModelToEntry(&models[i]))
	}

	return entries, nil
}
