// Package history keeps the local view of the user's attendance records.
package history

import (
	"context"
	"sync"

	"attendclient/internal/metrics"
	"attendclient/internal/model"
)

// Fetcher returns the authoritative record list, most recent first.
type Fetcher interface {
	History(ctx context.Context) ([]model.AttendanceRecord, error)
}

// Store holds cached lists by user key. Replace swaps a list wholesale.
type Store interface {
	Replace(ctx context.Context, key string, records []model.AttendanceRecord) error
	Load(ctx context.Context, key string) ([]model.AttendanceRecord, error)
	Delete(ctx context.Context, key string) error
}

// Cache is a read-through view over the backend history.
type Cache struct {
	fetch   Fetcher
	store   Store
	key     func() string
	metrics *metrics.Metrics

	// serialises refreshes so an older response never overwrites a newer one
	mu sync.Mutex
}

// NewCache builds a cache. key returns the signed-in user's cache key.
func NewCache(fetch Fetcher, store Store, key func() string, m *metrics.Metrics) *Cache {
	if store == nil {
		store = NewMemoryStore()
	}
	if key == nil {
		key = func() string { return "current" }
	}
	return &Cache{fetch: fetch, store: store, key: key, metrics: m}
}

// Refresh fetches the backend list and replaces the cached one. The backend
// order is kept as is.
func (c *Cache) Refresh(ctx context.Context) ([]model.AttendanceRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := c.fetch.History(ctx)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []model.AttendanceRecord{}
	}
	if err := c.store.Replace(ctx, c.storeKey(), records); err != nil {
		return nil, err
	}
	c.metrics.SetHistorySize(len(records))
	return clone(records), nil
}

// Records returns the cached list without contacting the backend.
func (c *Cache) Records(ctx context.Context) ([]model.AttendanceRecord, error) {
	return c.store.Load(ctx, c.storeKey())
}

// Clear drops the cached list of the current user.
func (c *Cache) Clear(ctx context.Context) error {
	c.metrics.SetHistorySize(0)
	return c.store.Delete(ctx, c.storeKey())
}

func (c *Cache) storeKey() string {
	if k := c.key(); k != "" {
		return k
	}
	return "current"
}

func clone(records []model.AttendanceRecord) []model.AttendanceRecord {
	out := make([]model.AttendanceRecord, len(records))
	for i, r := range records {
		out[i] = r
		if r.Raw != nil {
			out[i].Raw = append([]byte(nil), r.Raw...)
		}
	}
	return out
}
