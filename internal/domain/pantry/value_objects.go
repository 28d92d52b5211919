package pantry

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ingredient is a canonical catalog entry that pantry entries point at
type Ingredient struct {
	ID   uuid.UUID
	Name string
}

// ConsumedIngredient is one line item of a recipe being cooked.
// It only lives for the duration of a single reconciliation.
type ConsumedIngredient struct {
	Name   string
	Amount decimal.Decimal
	Unit   string
}

// Validate validates the consumed ingredient
func (c ConsumedIngredient) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrNameRequired
	}
	if !c.Amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	return nil
}

// CanonicalName returns the catalog lookup form of an ingredient name
func CanonicalName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// unitAliases folds spellings the recipe API and users commonly send
// onto one symbol per unit.
var unitAliases = map[string]string{
	"gram":        "g",
	"grams":       "g",
	"gr":          "g",
	"kilogram":    "kg",
	"kilograms":   "kg",
	"kgs":         "kg",
	"milliliter":  "ml",
	"milliliters": "ml",
	"millilitre":  "ml",
	"millilitres": "ml",
	"liter":       "l",
	"liters":      "l",
	"litre":       "l",
	"litres":      "l",
	"cups":        "cup",
	"c":           "cup",
	"tablespoon":  "tbsp",
	"tablespoons": "tbsp",
	"tbs":         "tbsp",
	"teaspoon":    "tsp",
	"teaspoons":   "tsp",
	"ounce":       "oz",
	"ounces":      "oz",
	"pound":       "lb",
	"pounds":      "lb",
	"lbs":         "lb",
	"pieces":      "piece",
	"pc":          "piece",
	"pcs":         "piece",
	"serving":     "serving",
	"servings":    "serving",
}

// NormalizeUnit lower-cases, trims and folds known aliases of a unit
func NormalizeUnit(unit string) string {
	u := strings.ToLower(strings.TrimSpace(unit))
	u = strings.TrimSuffix(u, ".")
	if alias, ok := unitAliases[u]; ok {
		return alias
	}
	return u
}

// SameUnit reports whether two units name the same measurement
func SameUnit(a, b string) bool {
	return NormalizeUnit(a) == NormalizeUnit(b)
}
