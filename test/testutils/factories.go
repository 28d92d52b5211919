// Package testutils provides test data factories for consistent test data generation
package testutils

import (
	"time"

	"github.com/alchemorsel/pantry/internal/domain/pantry"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var units = []string{"g", "kg", "ml", "l", "cup", "tbsp", "tsp", "piece"}

// PantryFactory provides methods to create test pantry data
type PantryFactory struct {
	faker *gofakeit.Faker
}

// NewPantryFactory creates a new pantry factory with seeded faker
func NewPantryFactory(seed int64) *PantryFactory {
	return &PantryFactory{
		faker: gofakeit.New(seed),
	}
}

// IngredientName returns a distinct-looking ingredient name
func (f *PantryFactory) IngredientName() string {
	return pantry.CanonicalName(f.faker.Adjective() + " " + f.faker.Noun())
}

// Unit returns one of the common kitchen units
func (f *PantryFactory) Unit() string {
	return units[f.faker.IntRange(0, len(units)-1)]
}

// Amount returns a positive amount with two decimals
func (f *PantryFactory) Amount() decimal.Decimal {
	return decimal.NewFromFloat(f.faker.Float64Range(1, 1000)).Round(2)
}

// ConsumedIngredients returns n consumed ingredients with distinct names
func (f *PantryFactory) ConsumedIngredients(n int) []pantry.ConsumedIngredient {
	items := make([]pantry.ConsumedIngredient, 0, n)
	seen := make(map[string]bool, n)
	for len(items) < n {
		name := f.IngredientName()
		if seen[name] {
			continue
		}
		seen[name] = true
		items = append(items, pantry.ConsumedIngredient{
			Name:   name,
			Amount: f.Amount(),
			Unit:   f.Unit(),
		})
	}
	return items
}

// EntryBuilder provides a fluent interface for building test pantry entries
type EntryBuilder struct {
	userID     uuid.UUID
	ingredient pantry.Ingredient
	amount     decimal.Decimal
	unit       string
}

// NewEntryBuilder creates a new entry builder with default values
func NewEntryBuilder() *EntryBuilder {
	faker := gofakeit.New(time.Now().UnixNano())

	return &EntryBuilder{
		userID:     uuid.New(),
		ingredient: pantry.Ingredient{ID: uuid.New(), Name: pantry.CanonicalName(faker.Noun())},
		amount:     decimal.NewFromInt(int64(faker.IntRange(1, 500))),
		unit:       "g",
	}
}

// WithUser sets the owning user
func (b *EntryBuilder) WithUser(userID uuid.UUID) *EntryBuilder {
	b.userID = userID
	return b
}

// WithIngredient sets the catalog ingredient
func (b *EntryBuilder) WithIngredient(ingredient pantry.Ingredient) *EntryBuilder {
	b.ingredient = ingredient
	return b
}

// WithAmount sets amount and unit
func (b *EntryBuilder) WithAmount(amount decimal.Decimal, unit string) *EntryBuilder {
	b.amount = amount
	b.unit = unit
	return b
}

// Build creates the entry
func (b *EntryBuilder) Build() *pantry.Entry {
	entry, err := pantry.NewEntry(b.userID, b.ingredient, b.amount, b.unit)
	if err != nil {
		panic(err)
	}
	return entry
}
