package cache_test

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	converter "github.com/malusev998/currency-converter"
	"github.com/malusev998/currency-converter/cache"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

var (
	eurUSD = converter.NewPair(converter.EUR, converter.USD)
	one    = decimal.NewFromInt(1)
)

func TestRateCache_Freshness(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{now: time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)}
	rate := decimal.RequireFromString("1.0857")

	values := []struct {
		elapsed time.Duration
		hit     bool
	}{
		{0, true},
		{29 * time.Second, true},
		{30*time.Second - time.Nanosecond, true},
		{30 * time.Second, false},
		{time.Minute, false},
	}

	for _, value := range values {
		asserts := require.New(t)
		clock.now = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
		c := cache.New(cache.WithClock(clock.Now))
		c.Put(eurUSD, one, rate)
		clock.Advance(value.elapsed)

		got, ok := c.Get(eurUSD, one)
		asserts.Equal(value.hit, ok, "elapsed %s", value.elapsed)

		if value.hit {
			asserts.True(rate.Equal(got))
		} else {
			asserts.True(got.IsZero())
		}
	}
}

func TestRateCache_StaleEntryIsKept(t *testing.T) {
	t.Parallel()
	asserts := require.New(t)
	clock := &fakeClock{now: time.Now()}
	c := cache.New(cache.WithClock(clock.Now), cache.WithTTL(10*time.Second))

	c.Put(eurUSD, one, decimal.RequireFromString("1.1"))
	clock.Advance(11 * time.Second)

	_, ok := c.Get(eurUSD, one)
	asserts.False(ok)
	asserts.Equal(1, c.Len())

	c.Put(eurUSD, one, decimal.RequireFromString("1.2"))
	got, ok := c.Get(eurUSD, one)
	asserts.True(ok)
	asserts.Equal("1.2", got.String())
	asserts.Equal(1, c.Len())
}

func TestRateCache_ExactKey(t *testing.T) {
	t.Parallel()
	asserts := require.New(t)
	c := cache.New()

	c.Put(eurUSD, one, decimal.RequireFromString("1.1"))

	_, ok := c.Get(eurUSD.Swap(), one)
	asserts.False(ok)

	_, ok = c.Get(eurUSD, decimal.RequireFromString("1.001"))
	asserts.False(ok)

	got, ok := c.Get(eurUSD, decimal.RequireFromString("1.000"))
	asserts.True(ok)
	asserts.Equal("1.1", got.String())
}

func TestRateCache_Clear(t *testing.T) {
	t.Parallel()
	asserts := require.New(t)
	c := cache.New()

	for _, to := range converter.Currencies() {
		c.Put(converter.NewPair(converter.EUR, to), one, one)
	}
	asserts.Equal(8, c.Len())

	c.Clear()
	asserts.Equal(0, c.Len())

	_, ok := c.Get(eurUSD, one)
	asserts.False(ok)
}

func TestRateCache_Defaults(t *testing.T) {
	t.Parallel()
	asserts := require.New(t)

	asserts.Equal(cache.DefaultTTL, cache.New().TTL())
	asserts.Equal(cache.DefaultTTL, cache.New(cache.WithTTL(0), cache.WithClock(nil)).TTL())
	asserts.Equal(time.Second, cache.New(cache.WithTTL(time.Second)).TTL())
}
