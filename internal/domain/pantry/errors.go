package pantry

import "errors"

// Domain errors for pantry operations

var (
	// Lookup misses. Both mean "not tracked" to reconciliation.
	ErrIngredientNotFound = errors.New("ingredient not found in catalog")
	ErrEntryNotFound      = errors.New("pantry entry not found")

	// Store connectivity. Fatal for the remainder of a reconciliation batch.
	ErrStoreUnavailable = errors.New("pantry store unavailable")

	// Conversion failures. Never fatal; reconciliation falls back to the raw amount.
	ErrConversionFailed = errors.New("unit conversion failed")

	// Validation errors
	ErrNameRequired      = errors.New("ingredient name is required")
	ErrNonPositiveAmount = errors.New("amount must be greater than 0")
	ErrNoIngredients     = errors.New("at least one ingredient is required")
)

// IsNotTracked reports whether err means the ingredient has no catalog row
// or no pantry row for the user.
func IsNotTracked(err error) bool {
	return errors.Is(err, ErrIngredientNotFound) || errors.Is(err, ErrEntryNotFound)
}
