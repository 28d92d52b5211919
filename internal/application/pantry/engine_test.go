package pantry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/alchemorsel/pantry/internal/domain/pantry"
	apperrors "github.com/alchemorsel/pantry/pkg/errors"
	"github.com/alchemorsel/pantry/test/testutils"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// EngineTestSuite exercises reconciliation against an in-memory store
type EngineTestSuite struct {
	suite.Suite
	store     *testutils.FakePantryRepository
	converter *testutils.MockUnitConverter
	publisher *testutils.MockEventPublisher
	userID    uuid.UUID
	config    EngineConfig
}

func (s *EngineTestSuite) SetupTest() {
	s.store = testutils.NewFakePantryRepository()
	s.converter = new(testutils.MockUnitConverter)
	s.publisher = new(testutils.MockEventPublisher)
	s.userID = uuid.New()
	s.config = EngineConfig{Concurrency: 1, ConversionTimeout: time.Second}
}

func (s *EngineTestSuite) engine() *Engine {
	return NewEngine(s.store, s.converter, s.publisher, nil, zap.NewNop(), s.config)
}

func (s *EngineTestSuite) reconcile(items ...pantry.ConsumedIngredient) *pantry.ReconciliationResult {
	result, err := s.engine().Reconcile(context.Background(), s.userID, items)
	require.NoError(s.T(), err)
	require.Len(s.T(), result.Items, len(items))
	return result
}

func (s *EngineTestSuite) TestSameUnit_Decrements() {
	// Arrange
	s.store.Stock(s.userID, "flour", dec("500"), "g")

	// Act
	result := s.reconcile(pantry.ConsumedIngredient{Name: "flour", Amount: dec("200"), Unit: "g"})

	// Assert
	item := result.Items[0]
	assert.Equal(s.T(), pantry.OutcomeUpdated, item.Outcome)
	require.NotNil(s.T(), item.NewAmount)
	assert.Equal(s.T(), "300", item.NewAmount.String())

	amount, ok := s.store.Amount(s.userID, "flour")
	assert.True(s.T(), ok)
	assert.True(s.T(), amount.Equal(dec("300")))
	s.converter.AssertNotCalled(s.T(), "Convert", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(s.T(), []string{"pantry.entry.updated"}, s.publisher.EventNames())
}

func (s *EngineTestSuite) TestEquivalentUnitSpelling_SkipsConversion() {
	s.store.Stock(s.userID, "rice", dec("2"), "cup")

	result := s.reconcile(pantry.ConsumedIngredient{Name: "Rice", Amount: dec("0.5"), Unit: " Cups"})

	assert.Equal(s.T(), pantry.OutcomeUpdated, result.Items[0].Outcome)
	assert.Equal(s.T(), "1.5", result.Items[0].NewAmount.String())
	s.converter.AssertNotCalled(s.T(), "Convert", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (s *EngineTestSuite) TestOvershoot_DeletesEntry() {
	s.store.Stock(s.userID, "flour", dec("100"), "g")

	result := s.reconcile(pantry.ConsumedIngredient{Name: "flour", Amount: dec("150"), Unit: "g"})

	item := result.Items[0]
	assert.Equal(s.T(), pantry.OutcomeDeleted, item.Outcome)
	assert.True(s.T(), item.Deleted)
	assert.Nil(s.T(), item.NewAmount)

	_, ok := s.store.Amount(s.userID, "flour")
	assert.False(s.T(), ok, "entry must be removed, never stored as -50")
	assert.Equal(s.T(), []string{"pantry.entry.depleted"}, s.publisher.EventNames())
}

func (s *EngineTestSuite) TestExactConsumption_DeletesEntry() {
	s.store.Stock(s.userID, "eggs", dec("6"), "piece")

	result := s.reconcile(pantry.ConsumedIngredient{Name: "eggs", Amount: dec("6"), Unit: "pieces"})

	assert.Equal(s.T(), pantry.OutcomeDeleted, result.Items[0].Outcome)
	_, ok := s.store.Amount(s.userID, "eggs")
	assert.False(s.T(), ok)
}

func (s *EngineTestSuite) TestConvertedOvershoot_DeletesEntry() {
	// Arrange
	s.store.Stock(s.userID, "milk", dec("2"), "cup")
	s.converter.On("Convert", mock.Anything, "milk", "mL", "cup", mock.Anything).
		Return(dec("2.1"), nil).Once()

	// Act
	result := s.reconcile(pantry.ConsumedIngredient{Name: "milk", Amount: dec("500"), Unit: "mL"})

	// Assert
	item := result.Items[0]
	assert.Equal(s.T(), pantry.OutcomeDeleted, item.Outcome)
	require.NotNil(s.T(), item.Decrement)
	assert.Equal(s.T(), "2.1", item.Decrement.String())
	_, ok := s.store.Amount(s.userID, "milk")
	assert.False(s.T(), ok)
	s.converter.AssertExpectations(s.T())
}

func (s *EngineTestSuite) TestConvertedDecrement_Updates() {
	s.store.Stock(s.userID, "flour", dec("1000"), "g")
	s.converter.On("Convert", mock.Anything, "flour", "cup", "g", mock.Anything).
		Return(dec("125"), nil).Once()

	result := s.reconcile(pantry.ConsumedIngredient{Name: "flour", Amount: dec("1"), Unit: "cup"})

	assert.Equal(s.T(), pantry.OutcomeUpdated, result.Items[0].Outcome)
	assert.Equal(s.T(), "875", result.Items[0].NewAmount.String())
	assert.Equal(s.T(), "g", result.Items[0].Unit)
}

func (s *EngineTestSuite) TestUnknownIngredient_SkipsWithoutWrites() {
	result := s.reconcile(pantry.ConsumedIngredient{Name: "unicorn-tears", Amount: dec("1"), Unit: "mL"})

	item := result.Items[0]
	assert.Equal(s.T(), pantry.OutcomeSkippedNotTracked, item.Outcome)
	assert.Equal(s.T(), string(apperrors.CodeIngredientNotTracked), item.Code)
	assert.Contains(s.T(), item.Warning, "unicorn-tears")
	assert.Nil(s.T(), item.IngredientID)
	assert.Zero(s.T(), s.store.Writes)
	assert.Empty(s.T(), s.publisher.Events())
}

func (s *EngineTestSuite) TestCatalogIngredientWithoutEntry_Skips() {
	s.store.Stock(uuid.New(), "saffron", dec("1"), "g")

	result := s.reconcile(pantry.ConsumedIngredient{Name: "saffron", Amount: dec("1"), Unit: "g"})

	item := result.Items[0]
	assert.Equal(s.T(), pantry.OutcomeSkippedNotTracked, item.Outcome)
	assert.NotNil(s.T(), item.IngredientID)
	assert.Zero(s.T(), s.store.Writes)
}

func (s *EngineTestSuite) TestConverterFailure_FallsBackToRawAmount() {
	// Arrange
	s.store.Stock(s.userID, "sugar", dec("500"), "g")
	s.store.Stock(s.userID, "salt", dec("10"), "g")
	s.converter.On("Convert", mock.Anything, "sugar", "cup", "g", mock.Anything).
		Return(decimal.Zero, fmt.Errorf("%w: remote returned 502", pantry.ErrConversionFailed))

	// Act
	result := s.reconcile(
		pantry.ConsumedIngredient{Name: "sugar", Amount: dec("1"), Unit: "cup"},
		pantry.ConsumedIngredient{Name: "salt", Amount: dec("2"), Unit: "g"},
	)

	// Assert
	fallback := result.Items[0]
	assert.Equal(s.T(), pantry.OutcomeConversionFallback, fallback.Outcome)
	assert.Equal(s.T(), string(apperrors.CodeConversionFailed), fallback.Code)
	assert.Equal(s.T(), "Could not convert 1 cup to g, decremented by the unconverted amount", fallback.Warning)
	assert.Empty(s.T(), result.Items[1].Code)
	assert.Equal(s.T(), "499", fallback.NewAmount.String())
	assert.Equal(s.T(), pantry.OutcomeUpdated, result.Items[1].Outcome)

	summary := result.Summary()
	assert.Equal(s.T(), 1, summary.Fallback)
	assert.Equal(s.T(), 2, summary.Updated)
}

func (s *EngineTestSuite) TestConverterNonPositiveResult_FallsBack() {
	s.store.Stock(s.userID, "butter", dec("250"), "g")
	s.converter.On("Convert", mock.Anything, "butter", "tbsp", "g", mock.Anything).
		Return(decimal.Zero, nil)

	result := s.reconcile(pantry.ConsumedIngredient{Name: "butter", Amount: dec("2"), Unit: "tbsp"})

	assert.Equal(s.T(), pantry.OutcomeConversionFallback, result.Items[0].Outcome)
	assert.Equal(s.T(), "248", result.Items[0].NewAmount.String())
}

func (s *EngineTestSuite) TestConverterTimeout_FallsBack() {
	// Arrange
	s.config.ConversionTimeout = 20 * time.Millisecond
	s.store.Stock(s.userID, "oil", dec("1"), "l")
	s.converter.On("Convert", mock.Anything, "oil", "ml", "l", mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(decimal.Zero, context.DeadlineExceeded)

	// Act
	start := time.Now()
	result := s.reconcile(pantry.ConsumedIngredient{Name: "oil", Amount: dec("0.25"), Unit: "ml"})

	// Assert
	assert.Less(s.T(), time.Since(start), time.Second)
	assert.Equal(s.T(), pantry.OutcomeConversionFallback, result.Items[0].Outcome)
	assert.Equal(s.T(), "0.75", result.Items[0].NewAmount.String())
}

func (s *EngineTestSuite) TestFallbackOvershoot_StillDeletes() {
	s.store.Stock(s.userID, "honey", dec("1"), "cup")
	s.converter.On("Convert", mock.Anything, "honey", "g", "cup", mock.Anything).
		Return(decimal.Zero, pantry.ErrConversionFailed)

	result := s.reconcile(pantry.ConsumedIngredient{Name: "honey", Amount: dec("30"), Unit: "g"})

	item := result.Items[0]
	assert.Equal(s.T(), pantry.OutcomeConversionFallback, item.Outcome)
	assert.True(s.T(), item.Deleted)
	_, ok := s.store.Amount(s.userID, "honey")
	assert.False(s.T(), ok)
}

func (s *EngineTestSuite) TestStoreUnavailable_AbortsRemainingBatch() {
	// Arrange
	s.store.Stock(s.userID, "flour", dec("500"), "g")
	s.store.Stock(s.userID, "sugar", dec("500"), "g")
	s.store.Stock(s.userID, "salt", dec("500"), "g")
	s.store.FailAfterWrites = 1

	// Act
	result, err := s.engine().Reconcile(context.Background(), s.userID, []pantry.ConsumedIngredient{
		{Name: "flour", Amount: dec("100"), Unit: "g"},
		{Name: "sugar", Amount: dec("100"), Unit: "g"},
		{Name: "salt", Amount: dec("100"), Unit: "g"},
	})

	// Assert
	require.Error(s.T(), err)
	assert.True(s.T(), apperrors.Is(err, apperrors.CodeStoreUnavailable))
	assert.True(s.T(), errors.Is(err, pantry.ErrStoreUnavailable))
	require.NotNil(s.T(), result)
	assert.True(s.T(), result.Aborted)
	assert.Equal(s.T(), pantry.OutcomeUpdated, result.Items[0].Outcome)
	assert.Equal(s.T(), pantry.OutcomeAborted, result.Items[1].Outcome)
	assert.Equal(s.T(), pantry.OutcomeAborted, result.Items[2].Outcome)

	amount, _ := s.store.Amount(s.userID, "flour")
	assert.True(s.T(), amount.Equal(dec("400")), "applied writes are not rolled back")
}

func (s *EngineTestSuite) TestReconcile_IsNotIdempotent() {
	s.store.Stock(s.userID, "flour", dec("500"), "g")
	item := pantry.ConsumedIngredient{Name: "flour", Amount: dec("200"), Unit: "g"}

	s.reconcile(item)
	result := s.reconcile(item)

	assert.Equal(s.T(), "100", result.Items[0].NewAmount.String())
}

func (s *EngineTestSuite) TestEventPublishFailure_IsNotFatal() {
	s.publisher.Err = errors.New("queue down")
	s.store.Stock(s.userID, "flour", dec("500"), "g")

	result := s.reconcile(pantry.ConsumedIngredient{Name: "flour", Amount: dec("1"), Unit: "g"})

	assert.Equal(s.T(), pantry.OutcomeUpdated, result.Items[0].Outcome)
}

func (s *EngineTestSuite) TestConcurrentFanOut_PreservesInputOrder() {
	// Arrange
	s.config.Concurrency = 4
	factory := testutils.NewPantryFactory(42)
	items := factory.ConsumedIngredients(12)
	for i, item := range items {
		if i%3 == 0 {
			continue
		}
		s.store.Stock(s.userID, item.Name, item.Amount.Mul(dec("2")), item.Unit)
	}
	// Repeats of one name must serialise on the same entry
	s.store.Stock(s.userID, "flour", dec("500"), "g")
	for i := 0; i < 4; i++ {
		items = append(items, pantry.ConsumedIngredient{Name: "flour", Amount: dec("100"), Unit: "g"})
	}

	// Act
	result := s.reconcile(items...)

	// Assert
	for i, item := range result.Items {
		assert.Equal(s.T(), items[i].Name, item.Name, "slot %d", i)
		if i < 12 && i%3 == 0 {
			assert.Equal(s.T(), pantry.OutcomeSkippedNotTracked, item.Outcome, "slot %d", i)
		} else {
			assert.Equal(s.T(), pantry.OutcomeUpdated, item.Outcome, "slot %d", i)
		}
	}
	amount, ok := s.store.Amount(s.userID, "flour")
	assert.True(s.T(), ok)
	assert.True(s.T(), amount.Equal(dec("100")))
	assert.Equal(s.T(), "400", result.Items[12].NewAmount.String())
	assert.Equal(s.T(), "100", result.Items[15].NewAmount.String())
}

func (s *EngineTestSuite) TestConcurrentFanOut_StoreUnavailableAborts() {
	s.config.Concurrency = 3
	s.store.Unavailable = true

	result, err := s.engine().Reconcile(context.Background(), s.userID, []pantry.ConsumedIngredient{
		{Name: "a", Amount: dec("1"), Unit: "g"},
		{Name: "b", Amount: dec("1"), Unit: "g"},
		{Name: "c", Amount: dec("1"), Unit: "g"},
		{Name: "d", Amount: dec("1"), Unit: "g"},
	})

	require.Error(s.T(), err)
	assert.True(s.T(), result.Aborted)
	for _, item := range result.Items {
		assert.Equal(s.T(), pantry.OutcomeAborted, item.Outcome)
	}
	assert.Zero(s.T(), s.store.Writes)
}

func (s *EngineTestSuite) TestCancelledContext_Aborts() {
	s.store.Stock(s.userID, "flour", dec("500"), "g")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := s.engine().Reconcile(ctx, s.userID, []pantry.ConsumedIngredient{
		{Name: "flour", Amount: dec("1"), Unit: "g"},
	})

	require.Error(s.T(), err)
	assert.True(s.T(), result.Aborted)
	assert.Zero(s.T(), s.store.Writes)
}

func TestEngineTestSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}

func TestEngine_RetriesUnavailableStore(t *testing.T) {
	// Arrange
	store := new(testutils.MockPantryStore)
	userID := uuid.New()
	flourID := uuid.New()
	entry := &pantry.Entry{UserID: userID, IngredientID: flourID, IngredientName: "flour", Amount: dec("500"), Unit: "g"}

	store.On("FindIngredientID", mock.Anything, "flour").Return(uuid.Nil, pantry.ErrStoreUnavailable).Once()
	store.On("FindIngredientID", mock.Anything, "flour").Return(flourID, nil).Once()
	store.On("GetEntry", mock.Anything, userID, flourID).Return(entry, nil).Once()
	store.On("SetAmount", mock.Anything, userID, flourID, mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(dec("300"))
	}), "g").Return(nil).Once()

	engine := NewEngine(store, new(testutils.MockUnitConverter), nil, nil, zap.NewNop(), EngineConfig{
		Concurrency:     1,
		RetryMaxElapsed: time.Second,
	})

	// Act
	result, err := engine.Reconcile(context.Background(), userID, []pantry.ConsumedIngredient{
		{Name: "flour", Amount: dec("200"), Unit: "g"},
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, pantry.OutcomeUpdated, result.Items[0].Outcome)
	store.AssertExpectations(t)
}

func TestEngine_NonConnectivityWriteFailure_IsRecorded(t *testing.T) {
	// Arrange
	store := new(testutils.MockPantryStore)
	userID := uuid.New()
	flourID, sugarID := uuid.New(), uuid.New()

	store.On("FindIngredientID", mock.Anything, "flour").Return(flourID, nil)
	store.On("FindIngredientID", mock.Anything, "sugar").Return(sugarID, nil)
	store.On("GetEntry", mock.Anything, userID, flourID).
		Return(&pantry.Entry{UserID: userID, IngredientID: flourID, Amount: dec("5"), Unit: "g"}, nil)
	store.On("GetEntry", mock.Anything, userID, sugarID).
		Return(&pantry.Entry{UserID: userID, IngredientID: sugarID, Amount: dec("5"), Unit: "g"}, nil)
	store.On("SetAmount", mock.Anything, userID, flourID, mock.Anything, "g").
		Return(errors.New("constraint violation"))
	store.On("DeleteEntry", mock.Anything, userID, sugarID).Return(nil)

	engine := NewEngine(store, new(testutils.MockUnitConverter), nil, nil, zap.NewNop(), DefaultEngineConfig())

	// Act
	result, err := engine.Reconcile(context.Background(), userID, []pantry.ConsumedIngredient{
		{Name: "flour", Amount: dec("1"), Unit: "g"},
		{Name: "sugar", Amount: dec("9"), Unit: "g"},
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, pantry.OutcomeFailed, result.Items[0].Outcome)
	assert.Contains(t, result.Items[0].Warning, "constraint violation")
	assert.Equal(t, string(apperrors.CodeDatabaseError), result.Items[0].Code)
	assert.Equal(t, pantry.OutcomeDeleted, result.Items[1].Outcome)
	store.AssertNumberOfCalls(t, "SetAmount", 1)
}

func TestGroupByIngredient(t *testing.T) {
	groups := groupByIngredient([]pantry.ConsumedIngredient{
		{Name: "Flour"}, {Name: "milk"}, {Name: "flour "}, {Name: "eggs"}, {Name: "MILK"},
	})

	assert.Equal(t, [][]int{{0, 2}, {1, 4}, {3}}, groups)
}
