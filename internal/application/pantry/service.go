package pantry

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alchemorsel/pantry/internal/domain/pantry"
	"github.com/alchemorsel/pantry/internal/ports/inbound"
	"github.com/alchemorsel/pantry/internal/ports/outbound"
	"github.com/alchemorsel/pantry/pkg/errors"
)

// PantryService implements the pantry use cases
type PantryService struct {
	repo   outbound.PantryRepository
	engine *Engine
	logger *zap.Logger
}

// NewPantryService creates a new pantry service
func NewPantryService(
	repo outbound.PantryRepository,
	engine *Engine,
	logger *zap.Logger,
) inbound.PantryService {
	return &PantryService{
		repo:   repo,
		engine: engine,
		logger: logger.Named("pantry-service"),
	}
}

// CookRecipe reconciles the pantry against a cooked recipe's ingredients.
// When the store becomes unavailable the returned error carries the partial
// summary under the "result" metadata key.
func (s *PantryService) CookRecipe(ctx context.Context, cmd inbound.CookRecipeCommand) (*inbound.ReconciliationDTO, error) {
	if len(cmd.Ingredients) == 0 {
		return nil, errors.NewValidationError(pantry.ErrNoIngredients.Error())
	}

	var invalid []errors.ValidationError
	for i, item := range cmd.Ingredients {
		if err := item.Validate(); err != nil {
			invalid = append(invalid, errors.ValidationError{
				Field:   fmt.Sprintf("ingredients[%d]", i),
				Message: err.Error(),
				Value:   item.Name,
			})
		}
	}
	if len(invalid) > 0 {
		return nil, errors.NewValidationErrors(invalid)
	}

	result, err := s.engine.Reconcile(ctx, cmd.UserID, cmd.Ingredients)
	dto := inbound.NewReconciliationDTO(result)
	if err != nil {
		var appErr *errors.AppError
		if stderrors.As(err, &appErr) {
			return nil, appErr.WithMetadata("result", dto)
		}
		return nil, err
	}

	return dto, nil
}

// AddIngredient starts tracking an ingredient or restocks it
func (s *PantryService) AddIngredient(ctx context.Context, cmd inbound.AddIngredientCommand) (*inbound.PantryEntryDTO, error) {
	consumed := pantry.ConsumedIngredient{Name: cmd.Name, Amount: cmd.Amount, Unit: cmd.Unit}
	if err := consumed.Validate(); err != nil {
		return nil, errors.NewValidationError(err.Error())
	}

	s.logger.Info("Adding ingredient",
		zap.String("user_id", cmd.UserID.String()),
		zap.String("ingredient", cmd.Name),
		zap.String("amount", cmd.Amount.String()),
		zap.String("unit", cmd.Unit),
	)

	ingredient, err := s.repo.EnsureIngredient(ctx, cmd.Name)
	if err != nil {
		return nil, storeError("ensure ingredient", err)
	}

	entry, err := s.repo.GetEntry(ctx, cmd.UserID, ingredient.ID)
	switch {
	case stderrors.Is(err, pantry.ErrEntryNotFound):
		entry, err = pantry.NewEntry(cmd.UserID, ingredient, cmd.Amount, cmd.Unit)
		if err != nil {
			return nil, errors.NewValidationError(err.Error())
		}
	case err != nil:
		return nil, storeError("get pantry entry", err)
	case pantry.SameUnit(entry.Unit, cmd.Unit):
		if err := entry.Restock(cmd.Amount); err != nil {
			return nil, errors.NewValidationError(err.Error())
		}
	default:
		converted, convErr := s.engine.convert(ctx, ingredient.Name, cmd.Unit, entry.Unit, cmd.Amount)
		if convErr != nil {
			s.logger.Warn("Unit conversion failed, overwriting entry",
				zap.String("ingredient", ingredient.Name),
				zap.String("from", cmd.Unit),
				zap.String("to", entry.Unit),
				zap.Error(convErr),
			)
			entry.Overwrite(cmd.Amount, cmd.Unit)
		} else if err := entry.Restock(converted); err != nil {
			return nil, errors.NewValidationError(err.Error())
		}
	}

	if err := s.repo.SetAmount(ctx, cmd.UserID, ingredient.ID, entry.Amount, entry.Unit); err != nil {
		return nil, storeError("set pantry amount", err)
	}

	s.engine.publish(ctx, pantry.EntryUpdatedEvent{
		UserID:       cmd.UserID,
		IngredientID: ingredient.ID,
		Ingredient:   ingredient.Name,
		Amount:       entry.Amount,
		Unit:         entry.Unit,
		Reason:       pantry.ReasonAdded,
		UpdatedAt:    entry.UpdatedAt,
	})

	dto := inbound.NewPantryEntryDTO(entry)
	return &dto, nil
}

// UpdateEntry overwrites an entry. A non-positive amount removes it.
func (s *PantryService) UpdateEntry(ctx context.Context, cmd inbound.UpdateEntryCommand) (*inbound.PantryEntryDTO, error) {
	entry, err := s.repo.GetEntry(ctx, cmd.UserID, cmd.IngredientID)
	if err != nil {
		if stderrors.Is(err, pantry.ErrEntryNotFound) {
			return nil, errors.NewPantryEntryNotFoundError(cmd.IngredientID.String())
		}
		return nil, storeError("get pantry entry", err)
	}

	if !cmd.Amount.IsPositive() {
		if err := s.deleteEntry(ctx, entry, pantry.ReasonEdited); err != nil {
			return nil, err
		}
		return nil, nil
	}

	entry.Overwrite(cmd.Amount, cmd.Unit)
	if err := s.repo.SetAmount(ctx, cmd.UserID, cmd.IngredientID, entry.Amount, entry.Unit); err != nil {
		return nil, storeError("set pantry amount", err)
	}

	s.engine.publish(ctx, pantry.EntryUpdatedEvent{
		UserID:       cmd.UserID,
		IngredientID: cmd.IngredientID,
		Ingredient:   entry.IngredientName,
		Amount:       entry.Amount,
		Unit:         entry.Unit,
		Reason:       pantry.ReasonEdited,
		UpdatedAt:    entry.UpdatedAt,
	})

	dto := inbound.NewPantryEntryDTO(entry)
	return &dto, nil
}

// RemoveEntry stops tracking an ingredient
func (s *PantryService) RemoveEntry(ctx context.Context, userID, ingredientID uuid.UUID) error {
	entry, err := s.repo.GetEntry(ctx, userID, ingredientID)
	if err != nil {
		if stderrors.Is(err, pantry.ErrEntryNotFound) {
			return errors.NewPantryEntryNotFoundError(ingredientID.String())
		}
		return storeError("get pantry entry", err)
	}

	return s.deleteEntry(ctx, entry, pantry.ReasonRemoved)
}

// ListPantry returns the user's entries sorted by ingredient name
func (s *PantryService) ListPantry(ctx context.Context, userID uuid.UUID) ([]inbound.PantryEntryDTO, error) {
	entries, err := s.repo.ListEntries(ctx, userID)
	if err != nil {
		return nil, storeError("list pantry entries", err)
	}

	dtos := make([]inbound.PantryEntryDTO, 0, len(entries))
	for _, entry := range entries {
		dtos = append(dtos, inbound.NewPantryEntryDTO(entry))
	}
	return dtos, nil
}

func (s *PantryService) deleteEntry(ctx context.Context, entry *pantry.Entry, reason string) error {
	err := s.repo.DeleteEntry(ctx, entry.UserID, entry.IngredientID)
	if err != nil {
		if stderrors.Is(err, pantry.ErrEntryNotFound) {
			return errors.NewPantryEntryNotFoundError(entry.IngredientID.String())
		}
		return storeError("delete pantry entry", err)
	}

	s.logger.Info("Pantry entry removed",
		zap.String("user_id", entry.UserID.String()),
		zap.String("ingredient", entry.IngredientName),
		zap.String("reason", reason),
	)

	s.engine.publish(ctx, pantry.EntryDepletedEvent{
		UserID:       entry.UserID,
		IngredientID: entry.IngredientID,
		Ingredient:   entry.IngredientName,
		Reason:       reason,
		DepletedAt:   time.Now(),
	})
	return nil
}

// storeError maps a store failure onto an application error
func storeError(operation string, err error) error {
	if stderrors.Is(err, pantry.ErrStoreUnavailable) {
		return errors.NewStoreUnavailableError(operation, err)
	}
	return errors.NewDatabaseError(operation, err)
}
