// Package pantry provides the application layer for pantry management.
// The Engine reconciles a user's stock against cooked recipes; the
// PantryService implements the inbound use cases on top of it.
package pantry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/alchemorsel/pantry/internal/domain/pantry"
	"github.com/alchemorsel/pantry/internal/domain/shared"
	"github.com/alchemorsel/pantry/internal/ports/outbound"
	apperrors "github.com/alchemorsel/pantry/pkg/errors"
)

var tracer = otel.Tracer("github.com/alchemorsel/pantry/internal/application/pantry")

// EngineConfig tunes reconciliation
type EngineConfig struct {
	// Concurrency above 1 fans per-ingredient work out to that many workers.
	Concurrency int
	// ConversionTimeout bounds each converter call. Zero means no bound.
	ConversionTimeout time.Duration
	// RetryMaxElapsed bounds retries of unavailable store calls. Zero disables retries.
	RetryMaxElapsed time.Duration
}

// DefaultEngineConfig returns the sequential, retrying configuration
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Concurrency:       1,
		ConversionTimeout: 5 * time.Second,
		RetryMaxElapsed:   2 * time.Second,
	}
}

// Engine decrements pantry entries to reflect consumed ingredients
type Engine struct {
	store     outbound.PantryStore
	converter outbound.UnitConverter
	publisher outbound.EventPublisher
	metrics   outbound.ReconciliationMetrics
	logger    *zap.Logger
	config    EngineConfig
}

// NewEngine creates a reconciliation engine. publisher and metrics may be nil.
func NewEngine(
	store outbound.PantryStore,
	converter outbound.UnitConverter,
	publisher outbound.EventPublisher,
	metrics outbound.ReconciliationMetrics,
	logger *zap.Logger,
	config EngineConfig,
) *Engine {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}

	return &Engine{
		store:     store,
		converter: converter,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger.Named("reconciliation-engine"),
		config:    config,
	}
}

// Reconcile applies consumption of items to the user's pantry.
//
// Per-ingredient failures are recorded in the result and never stop the
// batch. An unavailable store aborts the remaining items: the partial
// result is returned together with a STORE_UNAVAILABLE error, and writes
// already applied stay applied.
func (e *Engine) Reconcile(ctx context.Context, userID uuid.UUID, items []pantry.ConsumedIngredient) (*pantry.ReconciliationResult, error) {
	ctx, span := tracer.Start(ctx, "pantry.Reconcile", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.Int("pantry.items", len(items)),
	))
	defer span.End()

	start := time.Now()
	e.logger.Info("Reconciling pantry",
		zap.String("user_id", userID.String()),
		zap.Int("ingredients", len(items)),
		zap.Int("concurrency", e.config.Concurrency),
	)

	result := pantry.NewReconciliationResult(userID, items)

	var err error
	if e.config.Concurrency > 1 && len(items) > 1 {
		err = e.reconcileConcurrently(ctx, userID, items, result)
	} else {
		err = e.reconcileSequentially(ctx, userID, items, result)
	}
	if err != nil {
		result.AbortRemaining()
		span.RecordError(err)
		span.SetStatus(codes.Error, "reconciliation aborted")
	}

	for _, item := range result.Items {
		e.metrics.RecordOutcome(item.Outcome)
	}
	e.metrics.RecordReconciliation(time.Since(start), result.Aborted)

	summary := result.Summary()
	if err != nil {
		e.logger.Error("Reconciliation aborted",
			zap.String("user_id", userID.String()),
			zap.Int("aborted", summary.Aborted),
			zap.Error(err),
		)
		if errors.Is(err, pantry.ErrStoreUnavailable) {
			return result, apperrors.NewStoreUnavailableError("reconcile pantry", err)
		}
		return result, apperrors.Wrap(err, "reconciliation cancelled")
	}

	e.logger.Info("Pantry reconciled",
		zap.String("user_id", userID.String()),
		zap.Int("updated", summary.Updated),
		zap.Int("deleted", summary.Deleted),
		zap.Int("skipped", summary.SkippedNotTracked),
		zap.Int("fallback", summary.Fallback),
		zap.Int("failed", summary.Failed),
		zap.Duration("duration", time.Since(start)),
	)

	return result, nil
}

func (e *Engine) reconcileSequentially(ctx context.Context, userID uuid.UUID, items []pantry.ConsumedIngredient, result *pantry.ReconciliationResult) error {
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := e.reconcileOne(ctx, userID, item)
		if err != nil {
			return err
		}
		result.Items[i] = res
	}
	return nil
}

// reconcileConcurrently runs one worker per distinct ingredient name, at most
// Concurrency at a time. Repeats of a name stay on one worker and keep their
// relative order, so a batch never races with itself on one entry.
func (e *Engine) reconcileConcurrently(ctx context.Context, userID uuid.UUID, items []pantry.ConsumedIngredient, result *pantry.ReconciliationResult) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.Concurrency)

	for _, indices := range groupByIngredient(items) {
		indices := indices
		g.Go(func() error {
			for _, i := range indices {
				if err := gctx.Err(); err != nil {
					return err
				}
				res, err := e.reconcileOne(gctx, userID, items[i])
				if err != nil {
					return err
				}
				result.Items[i] = res
			}
			return nil
		})
	}

	return g.Wait()
}

// groupByIngredient returns input indices grouped by canonical name, groups
// ordered by first appearance
func groupByIngredient(items []pantry.ConsumedIngredient) [][]int {
	position := make(map[string]int, len(items))
	var groups [][]int
	for i, item := range items {
		key := pantry.CanonicalName(item.Name)
		p, ok := position[key]
		if !ok {
			p = len(groups)
			position[key] = p
			groups = append(groups, nil)
		}
		groups[p] = append(groups[p], i)
	}
	return groups
}

// reconcileOne returns a non-nil error only when the batch must abort
func (e *Engine) reconcileOne(ctx context.Context, userID uuid.UUID, item pantry.ConsumedIngredient) (pantry.ItemResult, error) {
	ctx, span := tracer.Start(ctx, "pantry.reconcileItem", trace.WithAttributes(
		attribute.String("ingredient.name", item.Name),
	))
	defer span.End()

	ingredientID, err := retryStore(ctx, e, "find_ingredient", func() (uuid.UUID, error) {
		return e.store.FindIngredientID(ctx, item.Name)
	})
	if err != nil {
		return e.itemFailure(ctx, item, nil, err)
	}

	entry, err := retryStore(ctx, e, "get_entry", func() (*pantry.Entry, error) {
		return e.store.GetEntry(ctx, userID, ingredientID)
	})
	if err != nil {
		return e.itemFailure(ctx, item, &ingredientID, err)
	}

	decrement, convErr := e.decrement(ctx, item, entry)
	remaining, depleted := entry.Consume(decrement)

	var res pantry.ItemResult
	if depleted {
		_, err = retryStore(ctx, e, "delete_entry", func() (struct{}, error) {
			return struct{}{}, e.store.DeleteEntry(ctx, userID, ingredientID)
		})
		if err != nil && !errors.Is(err, pantry.ErrEntryNotFound) {
			return e.itemFailure(ctx, item, &ingredientID, err)
		}
		res = pantry.Deleted(ingredientID, decrement, entry.Unit)
		e.publish(ctx, pantry.EntryDepletedEvent{
			UserID:       userID,
			IngredientID: ingredientID,
			Ingredient:   entry.IngredientName,
			Reason:       pantry.ReasonCooked,
			DepletedAt:   time.Now(),
		})
	} else {
		_, err = retryStore(ctx, e, "set_amount", func() (struct{}, error) {
			return struct{}{}, e.store.SetAmount(ctx, userID, ingredientID, remaining, entry.Unit)
		})
		if err != nil {
			return e.itemFailure(ctx, item, &ingredientID, err)
		}
		res = pantry.Updated(ingredientID, decrement, remaining, entry.Unit)
		e.publish(ctx, pantry.EntryUpdatedEvent{
			UserID:       userID,
			IngredientID: ingredientID,
			Ingredient:   entry.IngredientName,
			Amount:       remaining,
			Unit:         entry.Unit,
			Reason:       pantry.ReasonCooked,
			UpdatedAt:    entry.UpdatedAt,
		})
	}

	res.Name = item.Name
	if convErr != nil {
		res.Outcome = pantry.OutcomeConversionFallback
		res.Code = string(convErr.Code)
		res.Warning = convErr.Details + ", decremented by the unconverted amount"
	}
	span.SetAttributes(attribute.String("pantry.outcome", string(res.Outcome)))
	return res, nil
}

// itemFailure sorts a store error into an abort, a skip or a recorded failure
func (e *Engine) itemFailure(ctx context.Context, item pantry.ConsumedIngredient, ingredientID *uuid.UUID, err error) (pantry.ItemResult, error) {
	if errors.Is(err, pantry.ErrStoreUnavailable) || ctx.Err() != nil {
		return pantry.ItemResult{}, err
	}

	if pantry.IsNotTracked(err) {
		appErr := apperrors.NewIngredientNotTrackedError(item.Name).WithCause(err)
		e.logger.Debug("Ingredient not tracked",
			zap.String("ingredient", item.Name),
			zap.Error(appErr),
		)
		return pantry.ItemResult{
			Name:         item.Name,
			IngredientID: ingredientID,
			Outcome:      pantry.OutcomeSkippedNotTracked,
			Code:         string(appErr.Code),
			Warning:      appErr.Details,
		}, nil
	}

	appErr := apperrors.NewDatabaseError("reconcile "+item.Name, err)
	e.logger.Warn("Failed to reconcile ingredient",
		zap.String("ingredient", item.Name),
		zap.Error(appErr),
	)
	return pantry.ItemResult{
		Name:         item.Name,
		IngredientID: ingredientID,
		Outcome:      pantry.OutcomeFailed,
		Code:         string(appErr.Code),
		Warning:      err.Error(),
	}, nil
}

// decrement expresses the consumed amount in the entry's unit. When that
// needs a conversion that fails, the raw amount is returned with the failure.
func (e *Engine) decrement(ctx context.Context, item pantry.ConsumedIngredient, entry *pantry.Entry) (decimal.Decimal, *apperrors.AppError) {
	if pantry.SameUnit(item.Unit, entry.Unit) {
		return item.Amount, nil
	}

	converted, err := e.convert(ctx, item.Name, item.Unit, entry.Unit, item.Amount)
	if err != nil {
		e.logger.Warn("Unit conversion failed, using raw amount",
			zap.String("ingredient", item.Name),
			zap.String("from", item.Unit),
			zap.String("to", entry.Unit),
			zap.String("amount", item.Amount.String()),
			zap.Error(err),
		)
		return item.Amount, apperrors.NewConversionFailedError(item.Amount.String()+" "+item.Unit, entry.Unit, err)
	}

	return converted, nil
}

// convert calls the converter under the configured timeout
func (e *Engine) convert(ctx context.Context, ingredient, from, to string, amount decimal.Decimal) (decimal.Decimal, error) {
	if e.config.ConversionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.ConversionTimeout)
		defer cancel()
	}

	start := time.Now()
	converted, err := e.converter.Convert(ctx, ingredient, from, to, amount)
	if err == nil && !converted.IsPositive() {
		err = fmt.Errorf("%w: non-positive result %s", pantry.ErrConversionFailed, converted.String())
	}
	e.metrics.RecordConversion(time.Since(start), err)

	return converted, err
}

func (e *Engine) publish(ctx context.Context, event shared.DomainEvent) {
	if err := e.publisher.Publish(ctx, event); err != nil {
		e.logger.Error("Failed to publish event",
			zap.String("event", event.EventName()),
			zap.Error(err),
		)
	}
}

func (e *Engine) newBackOff(ctx context.Context) backoff.BackOff {
	if e.config.RetryMaxElapsed <= 0 {
		return backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxElapsedTime = e.config.RetryMaxElapsed
	return backoff.WithContext(b, ctx)
}

// retryStore retries fn while the store reports itself unavailable
func retryStore[T any](ctx context.Context, e *Engine, op string, fn func() (T, error)) (T, error) {
	operation := func() (T, error) {
		v, err := fn()
		if err != nil && !errors.Is(err, pantry.ErrStoreUnavailable) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	notify := func(err error, wait time.Duration) {
		e.logger.Warn("Pantry store unavailable, retrying",
			zap.String("operation", op),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
	}

	return backoff.RetryNotifyWithData(operation, e.newBackOff(ctx), notify)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, shared.DomainEvent) error { return nil }

type nopMetrics struct{}

func (nopMetrics) RecordOutcome(pantry.Outcome)              {}
func (nopMetrics) RecordReconciliation(time.Duration, bool) {}
func (nopMetrics) RecordConversion(time.Duration, error)    {}
