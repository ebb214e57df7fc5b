// Package cache keeps recently fetched exchange rates for a short time.
package cache

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	converter "github.com/malusev998/currency-converter"
)

const DefaultTTL = 30 * time.Second

type (
	key struct {
		pair   converter.Pair
		amount string
	}

	entry struct {
		rate      decimal.Decimal
		fetchedAt time.Time
	}

	Option func(*RateCache)

	// RateCache memoizes rates by (pair, amount). Entries expire lazily: a stale
	// entry is reported as a miss but stays in the map until it is overwritten or
	// the cache is cleared. The key space is unbounded.
	RateCache struct {
		mu      sync.RWMutex
		entries map[key]entry
		ttl     time.Duration
		now     func() time.Time
	}
)

var _ converter.RateCache = (*RateCache)(nil)

func WithTTL(ttl time.Duration) Option {
	return func(c *RateCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *RateCache) {
		if now != nil {
			c.now = now
		}
	}
}

func New(options ...Option) *RateCache {
	c := &RateCache{
		entries: make(map[key]entry),
		ttl:     DefaultTTL,
		now:     time.Now,
	}

	for _, option := range options {
		option(c)
	}

	return c
}

func newKey(pair converter.Pair, amount decimal.Decimal) key {
	return key{pair: pair, amount: amount.String()}
}

func (c *RateCache) Get(pair converter.Pair, amount decimal.Decimal) (decimal.Decimal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[newKey(pair, amount)]
	if !ok || c.now().Sub(e.fetchedAt) >= c.ttl {
		return decimal.Zero, false
	}

	return e.rate, true
}

func (c *RateCache) Put(pair converter.Pair, amount, rate decimal.Decimal) {
	c.mu.Lock()
	c.entries[newKey(pair, amount)] = entry{rate: rate, fetchedAt: c.now()}
	c.mu.Unlock()
}

func (c *RateCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[key]entry)
	c.mu.Unlock()
}

// Len reports the number of stored entries, stale ones included.
func (c *RateCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

func (c *RateCache) TTL() time.Duration {
	return c.ttl
}
