// Package testutils provides mock implementations for testing
package testutils

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/alchemorsel/pantry/internal/domain/pantry"
	"github.com/alchemorsel/pantry/internal/domain/shared"
	"github.com/alchemorsel/pantry/internal/ports/inbound"
	"github.com/alchemorsel/pantry/internal/ports/outbound"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

var (
	_ outbound.PantryRepository = (*MockPantryStore)(nil)
	_ outbound.PantryRepository = (*FakePantryRepository)(nil)
	_ outbound.UnitConverter    = (*MockUnitConverter)(nil)
	_ outbound.EventPublisher   = (*MockEventPublisher)(nil)
	_ inbound.PantryService     = (*MockPantryService)(nil)
)

// MockPantryStore provides a mock implementation of PantryRepository
type MockPantryStore struct {
	mock.Mock
}

// FindIngredientID resolves an ingredient id
func (m *MockPantryStore) FindIngredientID(ctx context.Context, name string) (uuid.UUID, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

// GetEntry fetches a pantry entry
func (m *MockPantryStore) GetEntry(ctx context.Context, userID, ingredientID uuid.UUID) (*pantry.Entry, error) {
	args := m.Called(ctx, userID, ingredientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	// Copy so the caller's mutations never leak into later calls
	entry := *args.Get(0).(*pantry.Entry)
	return &entry, args.Error(1)
}

// SetAmount upserts a pantry entry
func (m *MockPantryStore) SetAmount(ctx context.Context, userID, ingredientID uuid.UUID, amount decimal.Decimal, unit string) error {
	args := m.Called(ctx, userID, ingredientID, amount, unit)
	return args.Error(0)
}

// DeleteEntry deletes a pantry entry
func (m *MockPantryStore) DeleteEntry(ctx context.Context, userID, ingredientID uuid.UUID) error {
	args := m.Called(ctx, userID, ingredientID)
	return args.Error(0)
}

// EnsureIngredient returns or creates a catalog row
func (m *MockPantryStore) EnsureIngredient(ctx context.Context, name string) (pantry.Ingredient, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(pantry.Ingredient), args.Error(1)
}

// ListEntries lists a user's entries
func (m *MockPantryStore) ListEntries(ctx context.Context, userID uuid.UUID) ([]*pantry.Entry, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*pantry.Entry), args.Error(1)
}

// MockUnitConverter provides a mock implementation of UnitConverter
type MockUnitConverter struct {
	mock.Mock
}

// Convert converts an amount
func (m *MockUnitConverter) Convert(ctx context.Context, ingredient, fromUnit, toUnit string, amount decimal.Decimal) (decimal.Decimal, error) {
	args := m.Called(ctx, ingredient, fromUnit, toUnit, amount)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// MockEventPublisher records published events
type MockEventPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
	Err    error
}

// Publish records the event
func (m *MockEventPublisher) Publish(ctx context.Context, event shared.DomainEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return m.Err
}

// Events returns the recorded events
func (m *MockEventPublisher) Events() []shared.DomainEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]shared.DomainEvent(nil), m.events...)
}

// EventNames returns the names of the recorded events in order
func (m *MockEventPublisher) EventNames() []string {
	events := m.Events()
	names := make([]string, 0, len(events))
	for _, e := range events {
		names = append(names, e.EventName())
	}
	return names
}

// MockPantryService provides a mock implementation of PantryService
type MockPantryService struct {
	mock.Mock
}

// CookRecipe reconciles a cooked recipe
func (m *MockPantryService) CookRecipe(ctx context.Context, cmd inbound.CookRecipeCommand) (*inbound.ReconciliationDTO, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inbound.ReconciliationDTO), args.Error(1)
}

// AddIngredient adds to the pantry
func (m *MockPantryService) AddIngredient(ctx context.Context, cmd inbound.AddIngredientCommand) (*inbound.PantryEntryDTO, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inbound.PantryEntryDTO), args.Error(1)
}

// UpdateEntry edits a pantry entry
func (m *MockPantryService) UpdateEntry(ctx context.Context, cmd inbound.UpdateEntryCommand) (*inbound.PantryEntryDTO, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inbound.PantryEntryDTO), args.Error(1)
}

// RemoveEntry removes a pantry entry
func (m *MockPantryService) RemoveEntry(ctx context.Context, userID, ingredientID uuid.UUID) error {
	args := m.Called(ctx, userID, ingredientID)
	return args.Error(0)
}

// ListPantry lists a user's pantry
func (m *MockPantryService) ListPantry(ctx context.Context, userID uuid.UUID) ([]inbound.PantryEntryDTO, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]inbound.PantryEntryDTO), args.Error(1)
}

type pantryKey struct {
	user       uuid.UUID
	ingredient uuid.UUID
}

// FakePantryRepository is an in-memory PantryRepository for behavioural tests
type FakePantryRepository struct {
	mu          sync.Mutex
	ingredients map[string]pantry.Ingredient
	entries     map[pantryKey]pantry.Entry

	// Writes counts SetAmount and DeleteEntry calls
	Writes int
	// Unavailable makes every call fail with pantry.ErrStoreUnavailable
	Unavailable bool
	// FailAfterWrites makes the store unavailable once Writes reaches it (0 disables)
	FailAfterWrites int
}

// NewFakePantryRepository creates an empty fake repository
func NewFakePantryRepository() *FakePantryRepository {
	return &FakePantryRepository{
		ingredients: make(map[string]pantry.Ingredient),
		entries:     make(map[pantryKey]pantry.Entry),
	}
}

// Stock puts an entry into the fake, creating the catalog row as needed
func (f *FakePantryRepository) Stock(userID uuid.UUID, name string, amount decimal.Decimal, unit string) pantry.Ingredient {
	ingredient, _ := f.EnsureIngredient(context.Background(), name)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[pantryKey{userID, ingredient.ID}] = pantry.Entry{
		UserID:         userID,
		IngredientID:   ingredient.ID,
		IngredientName: ingredient.Name,
		Amount:         amount,
		Unit:           pantry.NormalizeUnit(unit),
		UpdatedAt:      time.Now(),
	}
	return ingredient
}

// Amount returns the stored amount and whether an entry exists
func (f *FakePantryRepository) Amount(userID uuid.UUID, name string) (decimal.Decimal, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ingredient, ok := f.ingredients[pantry.CanonicalName(name)]
	if !ok {
		return decimal.Zero, false
	}
	entry, ok := f.entries[pantryKey{userID, ingredient.ID}]
	return entry.Amount, ok
}

func (f *FakePantryRepository) available() error {
	if f.Unavailable || (f.FailAfterWrites > 0 && f.Writes >= f.FailAfterWrites) {
		return pantry.ErrStoreUnavailable
	}
	return nil
}

// FindIngredientID resolves an ingredient id
func (f *FakePantryRepository) FindIngredientID(ctx context.Context, name string) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.available(); err != nil {
		return uuid.Nil, err
	}

	ingredient, ok := f.ingredients[pantry.CanonicalName(name)]
	if !ok {
		return uuid.Nil, pantry.ErrIngredientNotFound
	}
	return ingredient.ID, nil
}

// GetEntry fetches a pantry entry
func (f *FakePantryRepository) GetEntry(ctx context.Context, userID, ingredientID uuid.UUID) (*pantry.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.available(); err != nil {
		return nil, err
	}

	entry, ok := f.entries[pantryKey{userID, ingredientID}]
	if !ok {
		return nil, pantry.ErrEntryNotFound
	}
	return &entry, nil
}

// SetAmount upserts a pantry entry
func (f *FakePantryRepository) SetAmount(ctx context.Context, userID, ingredientID uuid.UUID, amount decimal.Decimal, unit string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.available(); err != nil {
		return err
	}

	name := ""
	for _, ingredient := range f.ingredients {
		if ingredient.ID == ingredientID {
			name = ingredient.Name
		}
	}
	f.entries[pantryKey{userID, ingredientID}] = pantry.Entry{
		UserID:         userID,
		IngredientID:   ingredientID,
		IngredientName: name,
		Amount:         amount,
		Unit:           unit,
		UpdatedAt:      time.Now(),
	}
	f.Writes++
	return nil
}

// DeleteEntry deletes a pantry entry
func (f *FakePantryRepository) DeleteEntry(ctx context.Context, userID, ingredientID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.available(); err != nil {
		return err
	}

	key := pantryKey{userID, ingredientID}
	if _, ok := f.entries[key]; !ok {
		return pantry.ErrEntryNotFound
	}
	delete(f.entries, key)
	f.Writes++
	return nil
}

// EnsureIngredient returns or creates a catalog row
func (f *FakePantryRepository) EnsureIngredient(ctx context.Context, name string) (pantry.Ingredient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.available(); err != nil {
		return pantry.Ingredient{}, err
	}

	key := pantry.CanonicalName(name)
	if ingredient, ok := f.ingredients[key]; ok {
		return ingredient, nil
	}
	ingredient := pantry.Ingredient{ID: uuid.New(), Name: key}
	f.ingredients[key] = ingredient
	return ingredient, nil
}

// ListEntries lists a user's entries sorted by name
func (f *FakePantryRepository) ListEntries(ctx context.Context, userID uuid.UUID) ([]*pantry.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.available(); err != nil {
		return nil, err
	}

	var entries []*pantry.Entry
	for key, entry := range f.entries {
		if key.user == userID {
			e := entry
			entries = append(entries, &e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].IngredientName < entries[j].IngredientName })
	return entries, nil
}
