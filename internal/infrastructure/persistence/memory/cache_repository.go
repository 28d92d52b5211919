// Package memory provides in-memory cache repository implementation
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/alchemorsel/pantry/internal/ports/outbound"
)

const defaultTTL = 24 * time.Hour

// CacheItem represents a cached item
type CacheItem struct {
	Value     []byte
	ExpiresAt time.Time
}

// CacheRepository implements outbound.CacheRepository in process memory.
// It backs the conversion cache when Redis is disabled.
type CacheRepository struct {
	data  map[string]CacheItem
	mutex sync.RWMutex
	now   func() time.Time
}

// NewCacheRepository creates a new in-memory cache repository
func NewCacheRepository() *CacheRepository {
	return &CacheRepository{
		data: make(map[string]CacheItem),
		now:  time.Now,
	}
}

var _ outbound.CacheRepository = (*CacheRepository)(nil)

// Get retrieves a value from cache
func (r *CacheRepository) Get(ctx context.Context, key string) ([]byte, error) {
	r.mutex.RLock()
	item, exists := r.data[key]
	r.mutex.RUnlock()

	if !exists {
		return nil, outbound.ErrCacheMiss
	}

	if r.now().After(item.ExpiresAt) {
		r.evict(key, item.ExpiresAt)
		return nil, outbound.ErrCacheMiss
	}

	return item.Value, nil
}

// Set stores a value in cache with TTL; a zero TTL means one day
func (r *CacheRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = defaultTTL
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.data[key] = CacheItem{
		Value:     stored,
		ExpiresAt: r.now().Add(ttl),
	}

	return nil
}

// Delete removes a key from cache
func (r *CacheRepository) Delete(ctx context.Context, key string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	delete(r.data, key)
	return nil
}

// Exists checks if a key exists in cache
func (r *CacheRepository) Exists(ctx context.Context, key string) (bool, error) {
	_, err := r.Get(ctx, key)
	if err != nil {
		return false, nil
	}
	return true, nil
}

// Run evicts expired items every interval until ctx is done
func (r *CacheRepository) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.purge()
		}
	}
}

func (r *CacheRepository) purge() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	now := r.now()
	for key, item := range r.data {
		if now.After(item.ExpiresAt) {
			delete(r.data, key)
		}
	}
}

// evict drops key unless it was refreshed since it was read
func (r *CacheRepository) evict(key string, expiresAt time.Time) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if item, ok := r.data[key]; ok && item.ExpiresAt.Equal(expiresAt) {
		delete(r.data, key)
	}
}

// Len returns the number of stored items, expired ones included
func (r *CacheRepository) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.data)
}
