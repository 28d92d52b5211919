package pantry

import (
	"context"
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
	"github.com/alchemorsel/pantry/internal/ports/inbound"
	"github.com/alchemorsel/pantry/pkg/errors"
	"github.com/alchemorsel/pantry/test/testutils"
)

// PantryServiceTestSuite exercises the pantry use cases
type PantryServiceTestSuite struct {
	suite.Suite
	repo      *testutils.FakePantryRepository
	converter *testutils.MockUnitConverter
	publisher *testutils.MockEventPublisher
	service   inbound.PantryService
	userID    uuid.UUID
	ctx       context.Context
}

func (s *PantryServiceTestSuite) SetupTest() {
	s.repo = testutils.NewFakePantryRepository()
	s.converter = new(testutils.MockUnitConverter)
	s.publisher = new(testutils.MockEventPublisher)
	s.userID = uuid.New()
	s.ctx = context.Background()

	engine := NewEngine(s.repo, s.converter, s.publisher, nil, zap.NewNop(), EngineConfig{
		Concurrency:       1,
		ConversionTimeout: time.Second,
	})
	s.service = NewPantryService(s.repo, engine, zap.NewNop())
}

func (s *PantryServiceTestSuite) TestCookRecipe() {
	s.Run("ValidIngredients_ShouldReturnSummary", func() {
		// Arrange
		s.repo.Stock(s.userID, "flour", dec("500"), "g")

		// Act
		dto, err := s.service.CookRecipe(s.ctx, inbound.CookRecipeCommand{
			UserID: s.userID,
			Ingredients: []pantry.ConsumedIngredient{
				{Name: "flour", Amount: dec("200"), Unit: "g"},
				{Name: "unicorn-tears", Amount: dec("1"), Unit: "mL"},
			},
		})

		// Assert
		require.NoError(s.T(), err)
		assert.Equal(s.T(), s.userID, dto.UserID)
		assert.False(s.T(), dto.Aborted)
		assert.Equal(s.T(), 1, dto.Summary.Updated)
		assert.Equal(s.T(), 1, dto.Summary.SkippedNotTracked)
	})

	s.Run("NoIngredients_ShouldFailValidation", func() {
		dto, err := s.service.CookRecipe(s.ctx, inbound.CookRecipeCommand{UserID: s.userID})

		assert.Nil(s.T(), dto)
		assert.True(s.T(), errors.Is(err, errors.CodeValidationFailed))
	})

	s.Run("NonPositiveAmount_ShouldFailValidation", func() {
		dto, err := s.service.CookRecipe(s.ctx, inbound.CookRecipeCommand{
			UserID:      s.userID,
			Ingredients: []pantry.ConsumedIngredient{{Name: "flour", Amount: decimal.Zero, Unit: "g"}},
		})

		assert.Nil(s.T(), dto)
		assert.True(s.T(), errors.Is(err, errors.CodeValidationFailed))
	})

	s.Run("StoreUnavailable_ShouldCarryPartialResult", func() {
		s.repo.Unavailable = true
		defer func() { s.repo.Unavailable = false }()

		dto, err := s.service.CookRecipe(s.ctx, inbound.CookRecipeCommand{
			UserID:      s.userID,
			Ingredients: []pantry.ConsumedIngredient{{Name: "flour", Amount: dec("1"), Unit: "g"}},
		})

		assert.Nil(s.T(), dto)
		var appErr *errors.AppError
		require.ErrorAs(s.T(), err, &appErr)
		assert.Equal(s.T(), errors.CodeStoreUnavailable, appErr.Code)
		assert.Equal(s.T(), 500, appErr.StatusCode())
		partial, ok := appErr.Metadata["result"].(*inbound.ReconciliationDTO)
		require.True(s.T(), ok)
		assert.True(s.T(), partial.Aborted)
	})
}

func (s *PantryServiceTestSuite) TestAddIngredient() {
	s.Run("NewIngredient_ShouldCreateEntryAndCatalogRow", func() {
		dto, err := s.service.AddIngredient(s.ctx, inbound.AddIngredientCommand{
			UserID: s.userID, Name: "Basmati Rice", Amount: dec("2"), Unit: "cups",
		})

		require.NoError(s.T(), err)
		assert.Equal(s.T(), "basmati rice", dto.Name)
		assert.Equal(s.T(), "cup", dto.Unit)
		assert.True(s.T(), dto.Amount.Equal(dec("2")))
		assert.Contains(s.T(), s.publisher.EventNames(), "pantry.entry.updated")
	})

	s.Run("SameUnit_ShouldRestock", func() {
		s.repo.Stock(s.userID, "oats", dec("100"), "g")

		dto, err := s.service.AddIngredient(s.ctx, inbound.AddIngredientCommand{
			UserID: s.userID, Name: "oats", Amount: dec("50"), Unit: "grams",
		})

		require.NoError(s.T(), err)
		assert.True(s.T(), dto.Amount.Equal(dec("150")))
	})

	s.Run("OtherUnit_ShouldConvertIntoStoredUnit", func() {
		s.repo.Stock(s.userID, "cocoa", dec("100"), "g")
		s.converter.On("Convert", mock.Anything, "cocoa", "cup", "g", mock.Anything).
			Return(dec("85"), nil).Once()

		dto, err := s.service.AddIngredient(s.ctx, inbound.AddIngredientCommand{
			UserID: s.userID, Name: "cocoa", Amount: dec("1"), Unit: "cup",
		})

		require.NoError(s.T(), err)
		assert.True(s.T(), dto.Amount.Equal(dec("185")))
		assert.Equal(s.T(), "g", dto.Unit)
	})

	s.Run("ConversionFailure_ShouldOverwrite", func() {
		s.repo.Stock(s.userID, "yeast", dec("7"), "g")
		s.converter.On("Convert", mock.Anything, "yeast", "tsp", "g", mock.Anything).
			Return(decimal.Zero, pantry.ErrConversionFailed).Once()

		dto, err := s.service.AddIngredient(s.ctx, inbound.AddIngredientCommand{
			UserID: s.userID, Name: "yeast", Amount: dec("3"), Unit: "tsp",
		})

		require.NoError(s.T(), err)
		assert.True(s.T(), dto.Amount.Equal(dec("3")))
		assert.Equal(s.T(), "tsp", dto.Unit)
	})

	s.Run("NonPositiveAmount_ShouldFailValidation", func() {
		_, err := s.service.AddIngredient(s.ctx, inbound.AddIngredientCommand{
			UserID: s.userID, Name: "salt", Amount: dec("-1"), Unit: "g",
		})

		assert.True(s.T(), errors.Is(err, errors.CodeValidationFailed))
	})
}

func (s *PantryServiceTestSuite) TestUpdateEntry() {
	s.Run("PositiveAmount_ShouldOverwrite", func() {
		ingredient := s.repo.Stock(s.userID, "milk", dec("1"), "l")

		dto, err := s.service.UpdateEntry(s.ctx, inbound.UpdateEntryCommand{
			UserID: s.userID, IngredientID: ingredient.ID, Amount: dec("3"), Unit: "cup",
		})

		require.NoError(s.T(), err)
		assert.True(s.T(), dto.Amount.Equal(dec("3")))
		assert.Equal(s.T(), "cup", dto.Unit)
	})

	s.Run("ZeroAmount_ShouldDelete", func() {
		ingredient := s.repo.Stock(s.userID, "cream", dec("1"), "cup")

		dto, err := s.service.UpdateEntry(s.ctx, inbound.UpdateEntryCommand{
			UserID: s.userID, IngredientID: ingredient.ID, Amount: decimal.Zero, Unit: "cup",
		})

		require.NoError(s.T(), err)
		assert.Nil(s.T(), dto)
		_, ok := s.repo.Amount(s.userID, "cream")
		assert.False(s.T(), ok)
	})

	s.Run("UnknownEntry_ShouldReturnNotFound", func() {
		_, err := s.service.UpdateEntry(s.ctx, inbound.UpdateEntryCommand{
			UserID: s.userID, IngredientID: uuid.New(), Amount: dec("1"), Unit: "g",
		})

		assert.True(s.T(), errors.Is(err, errors.CodePantryEntryNotFound))
	})
}

func (s *PantryServiceTestSuite) TestRemoveEntry() {
	ingredient := s.repo.Stock(s.userID, "basil", dec("1"), "piece")

	require.NoError(s.T(), s.service.RemoveEntry(s.ctx, s.userID, ingredient.ID))
	assert.Equal(s.T(), "pantry.entry.depleted", s.publisher.EventNames()[len(s.publisher.EventNames())-1])

	err := s.service.RemoveEntry(s.ctx, s.userID, ingredient.ID)
	assert.True(s.T(), errors.Is(err, errors.CodePantryEntryNotFound))
}

func (s *PantryServiceTestSuite) TestListPantry() {
	s.repo.Stock(s.userID, "zucchini", dec("2"), "piece")
	s.repo.Stock(s.userID, "apples", dec("4"), "piece")
	s.repo.Stock(uuid.New(), "pears", dec("4"), "piece")

	entries, err := s.service.ListPantry(s.ctx, s.userID)

	require.NoError(s.T(), err)
	require.Len(s.T(), entries, 2)
	assert.Equal(s.T(), "apples", entries[0].Name)
	assert.Equal(s.T(), "zucchini", entries[1].Name)
}

func (s *PantryServiceTestSuite) TestListPantry_StoreUnavailable() {
	s.repo.Unavailable = true

	_, err := s.service.ListPantry(s.ctx, s.userID)

	assert.True(s.T(), errors.Is(err, errors.CodeStoreUnavailable))
}

func TestPantryServiceTestSuite(t *testing.T) {
	suite.Run(t, new(PantryServiceTestSuite))
}
