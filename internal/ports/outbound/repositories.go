// Package outbound defines the interfaces for outbound ports (secondary/driven adapters)
// These are the interfaces that the application uses to interact with external systems
package outbound

import (
	"context"
	"errors"
	"time"

	"github.com/alchemorsel/pantry/internal/domain/pantry"
	"github.com/alchemorsel/pantry/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PantryStore is the persistence contract the reconciliation engine consumes.
// Misses are reported as pantry.ErrIngredientNotFound / pantry.ErrEntryNotFound,
// connectivity failures as pantry.ErrStoreUnavailable.
type PantryStore interface {
	// FindIngredientID resolves a catalog id by case-insensitive canonical name
	FindIngredientID(ctx context.Context, name string) (uuid.UUID, error)
	GetEntry(ctx context.Context, userID, ingredientID uuid.UUID) (*pantry.Entry, error)
	// SetAmount upserts, overwriting amount and unit
	SetAmount(ctx context.Context, userID, ingredientID uuid.UUID, amount decimal.Decimal, unit string) error
	DeleteEntry(ctx context.Context, userID, ingredientID uuid.UUID) error
}

// PantryRepository extends the store with the catalog and listing operations
// the pantry management use cases need
type PantryRepository interface {
	PantryStore

	// EnsureIngredient returns the catalog row for name, creating it when missing
	EnsureIngredient(ctx context.Context, name string) (pantry.Ingredient, error)
	ListEntries(ctx context.Context, userID uuid.UUID) ([]*pantry.Entry, error)
}

// UnitConverter converts an ingredient amount between units.
// Failures wrap pantry.ErrConversionFailed.
type UnitConverter interface {
	Convert(ctx context.Context, ingredient, fromUnit, toUnit string, amount decimal.Decimal) (decimal.Decimal, error)
}

// ErrCacheMiss is returned by CacheRepository.Get for absent or expired keys
var ErrCacheMiss = errors.New("cache miss")

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// EventPublisher delivers domain events to subscribers.
// Publishing is best effort; callers log failures and carry on.
type EventPublisher interface {
	Publish(ctx context.Context, event shared.DomainEvent) error
}

// ReconciliationMetrics records reconciliation activity
type ReconciliationMetrics interface {
	RecordOutcome(outcome pantry.Outcome)
	RecordReconciliation(duration time.Duration, aborted bool)
	RecordConversion(duration time.Duration, err error)
}
