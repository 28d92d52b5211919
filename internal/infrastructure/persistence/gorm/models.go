// Package gorm provides GORM model definitions for the application
package gorm

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// IngredientModel represents the GORM model for the ingredient catalog
type IngredientModel struct {
	ID        uuid.UUID `gorm:"type:char(36);primaryKey"`
	Name      string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	CreatedAt time.Time
}

// PantryEntryModel represents the GORM model for pantry entries.
// The composite primary key keeps one row per (user, ingredient).
type PantryEntryModel struct {
	UserID       uuid.UUID       `gorm:"type:char(36);primaryKey"`
	IngredientID uuid.UUID       `gorm:"type:char(36);primaryKey"`
	Amount       decimal.Decimal `gorm:"type:numeric(14,4);not null"`
	Unit         string          `gorm:"type:varchar(32);not null"`
	UpdatedAt    time.Time

	// Relationships
	Ingredient IngredientModel `gorm:"foreignKey:IngredientID;constraint:OnDelete:CASCADE"`
}

// BeforeCreate hook for IngredientModel
func (i *IngredientModel) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for IngredientModel
func (IngredientModel) TableName() string {
	return "ingredients"
}

// TableName returns the table name for PantryEntryModel
func (PantryEntryModel) TableName() string {
	return "pantry_entries"
}
