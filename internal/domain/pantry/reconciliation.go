package pantry

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Outcome is what reconciliation did with one consumed ingredient
type Outcome string

const (
	OutcomeUpdated            Outcome = "updated"
	OutcomeDeleted            Outcome = "deleted"
	OutcomeSkippedNotTracked  Outcome = "skipped_not_tracked"
	OutcomeConversionFallback Outcome = "skipped_conversion_fallback"
	OutcomeFailed             Outcome = "failed"
	OutcomeAborted            Outcome = "aborted"
)

// ItemResult reports the reconciliation of one consumed ingredient.
// A conversion fallback still applies the raw decrement, so Deleted and
// NewAmount are meaningful for OutcomeConversionFallback as well.
type ItemResult struct {
	Name         string           `json:"name"`
	IngredientID *uuid.UUID       `json:"ingredient_id,omitempty"`
	Outcome      Outcome          `json:"outcome"`
	Decrement    *decimal.Decimal `json:"decrement,omitempty"`
	NewAmount    *decimal.Decimal `json:"new_amount,omitempty"`
	Unit         string           `json:"unit,omitempty"`
	Deleted      bool             `json:"deleted"`
	Code         string           `json:"code,omitempty"`
	Warning      string           `json:"warning,omitempty"`
}

// Summary counts outcomes of a reconciliation.
//
// Updated, Deleted, SkippedNotTracked, Failed and Aborted partition the items,
// so they add up to Total. Fallback is a sub-count of Updated plus Deleted: a
// conversion fallback still applied its raw decrement and is counted by what
// happened to the entry as well.
type Summary struct {
	Total             int `json:"total"`
	Updated           int `json:"updated"`
	Deleted           int `json:"deleted"`
	SkippedNotTracked int `json:"skipped_not_tracked"`
	Fallback          int `json:"conversion_fallback"`
	Failed            int `json:"failed"`
	Aborted           int `json:"aborted"`
}

// ReconciliationResult holds one ItemResult per consumed ingredient, in
// input order.
type ReconciliationResult struct {
	UserID  uuid.UUID    `json:"user_id"`
	Items   []ItemResult `json:"items"`
	Aborted bool         `json:"aborted"`
}

// NewReconciliationResult preallocates one slot per consumed ingredient
func NewReconciliationResult(userID uuid.UUID, consumed []ConsumedIngredient) *ReconciliationResult {
	items := make([]ItemResult, len(consumed))
	for i, c := range consumed {
		items[i] = ItemResult{Name: c.Name}
	}
	return &ReconciliationResult{UserID: userID, Items: items}
}

// AbortRemaining marks every slot that has not produced an outcome as aborted
func (r *ReconciliationResult) AbortRemaining() {
	r.Aborted = true
	for i := range r.Items {
		if r.Items[i].Outcome == "" {
			r.Items[i].Outcome = OutcomeAborted
		}
	}
}

// Summary tallies the item outcomes
func (r *ReconciliationResult) Summary() Summary {
	s := Summary{Total: len(r.Items)}
	for _, item := range r.Items {
		switch item.Outcome {
		case OutcomeUpdated:
			s.Updated++
		case OutcomeDeleted:
			s.Deleted++
		case OutcomeSkippedNotTracked:
			s.SkippedNotTracked++
		case OutcomeConversionFallback:
			s.Fallback++
			if item.Deleted {
				s.Deleted++
			} else {
				s.Updated++
			}
		case OutcomeFailed:
			s.Failed++
		case OutcomeAborted:
			s.Aborted++
		}
	}
	return s
}

// Updated records a positive remaining amount
func Updated(ingredientID uuid.UUID, decrement, newAmount decimal.Decimal, unit string) ItemResult {
	return ItemResult{
		IngredientID: &ingredientID,
		Outcome:      OutcomeUpdated,
		Decrement:    &decrement,
		NewAmount:    &newAmount,
		Unit:         unit,
	}
}

// Deleted records an entry removed because it ran out
func Deleted(ingredientID uuid.UUID, decrement decimal.Decimal, unit string) ItemResult {
	return ItemResult{
		IngredientID: &ingredientID,
		Outcome:      OutcomeDeleted,
		Decrement:    &decrement,
		Unit:         unit,
		Deleted:      true,
	}
}
