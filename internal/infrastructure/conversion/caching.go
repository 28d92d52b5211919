package conversion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/alchemorsel/pantry/internal/domain/pantry"
	"github.com/alchemorsel/pantry/internal/ports/outbound"
)

// CachingConverter memoizes successful conversions. Failures are not cached,
// and a broken cache degrades to calling the wrapped converter.
type CachingConverter struct {
	next   outbound.UnitConverter
	cache  outbound.CacheRepository
	ttl    time.Duration
	logger *zap.Logger
}

var _ outbound.UnitConverter = (*CachingConverter)(nil)

// NewCachingConverter wraps next with cache
func NewCachingConverter(next outbound.UnitConverter, cache outbound.CacheRepository, ttl time.Duration, logger *zap.Logger) *CachingConverter {
	return &CachingConverter{
		next:   next,
		cache:  cache,
		ttl:    ttl,
		logger: logger.Named("conversion-cache"),
	}
}

// CacheKey identifies a conversion independently of name and unit spelling
func CacheKey(ingredient, fromUnit, toUnit string, amount decimal.Decimal) string {
	return fmt.Sprintf("conv:v1:%s:%s:%s:%s",
		pantry.CanonicalName(ingredient),
		pantry.NormalizeUnit(fromUnit),
		pantry.NormalizeUnit(toUnit),
		amount.String(),
	)
}

// Convert serves from cache when possible
func (c *CachingConverter) Convert(ctx context.Context, ingredient, fromUnit, toUnit string, amount decimal.Decimal) (decimal.Decimal, error) {
	key := CacheKey(ingredient, fromUnit, toUnit, amount)

	cached, err := c.cache.Get(ctx, key)
	switch {
	case err == nil:
		if value, perr := decimal.NewFromString(string(cached)); perr == nil {
			return value, nil
		}
		c.logger.Warn("Dropping malformed cached conversion", zap.String("key", key))
		_ = c.cache.Delete(ctx, key)
	case !errors.Is(err, outbound.ErrCacheMiss):
		c.logger.Debug("Conversion cache unavailable", zap.String("key", key), zap.Error(err))
	}

	converted, err := c.next.Convert(ctx, ingredient, fromUnit, toUnit, amount)
	if err != nil {
		return converted, err
	}

	if err := c.cache.Set(ctx, key, []byte(converted.String()), c.ttl); err != nil {
		c.logger.Debug("Failed to cache conversion", zap.String("key", key), zap.Error(err))
	}

	return converted, nil
}
