package exchange

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// CachedRateSource memoizes successful rate lookups. Historical rates never
// change, so entries stay valid until purged; failures are not cached.
type CachedRateSource struct {
	source RateSource

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	rate    decimal.Decimal
	fetched time.Time
}

// NewCachedRateSource wraps a rate source with an in-memory cache.
func NewCachedRateSource(source RateSource) *CachedRateSource {
	return &CachedRateSource{
		source:  source,
		entries: make(map[string]cacheEntry),
	}
}

func cacheKey(date time.Time, currency string) string {
	return date.Format("2006-01-02") + "/" + currency
}

// Rate returns a cached rate or falls through to the wrapped source.
func (c *CachedRateSource) Rate(ctx context.Context, date time.Time, currency string) (decimal.Decimal, error) {
	key := cacheKey(date, currency)

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return entry.rate, nil
	}

	rate, err := c.source.Rate(ctx, date, currency)
	if err != nil {
		return decimal.Zero, err
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{rate: rate, fetched: time.Now()}
	c.mu.Unlock()
	return rate, nil
}

// Len reports the number of cached rates.
func (c *CachedRateSource) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Purge drops entries fetched before the cutoff and reports how many were
// removed.
func (c *CachedRateSource) Purge(olderThan time.Duration) int {
	cutoff := time.Now().Add(-olderThan)

	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key, entry := range c.entries {
		if entry.fetched.Before(cutoff) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}
