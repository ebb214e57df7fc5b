package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	converter "github.com/malusev998/currency-converter"
	"github.com/malusev998/currency-converter/cache"
	"github.com/malusev998/currency-converter/fetchers"
	"github.com/malusev998/currency-converter/metrics"
)

const (
	DefaultDebounce        = 500 * time.Millisecond
	DefaultRefreshInterval = 10 * time.Second
	DefaultInputAmount     = "1.0"

	archiveTimeout = 5 * time.Second
)

var (
	ErrControllerClosed = errors.New("conversion controller is closed")
	ErrInvalidCurrency  = errors.New("invalid currency")
)

type (
	// Scheduler runs the periodic refresh job. *cron.Cron satisfies it.
	Scheduler interface {
		AddFunc(spec string, cmd func()) (cron.EntryID, error)
		Start()
		Stop() context.Context
	}

	// State is a consistent snapshot of everything the controller publishes.
	State struct {
		FromCurrency    converter.Currency                 `json:"fromCurrency" yaml:"fromCurrency"`
		ToCurrency      converter.Currency                 `json:"toCurrency" yaml:"toCurrency"`
		InputAmount     string                             `json:"inputAmount" yaml:"inputAmount"`
		ConvertedAmount string                             `json:"convertedAmount" yaml:"convertedAmount"`
		ExchangeRate    string                             `json:"exchangeRate" yaml:"exchangeRate"`
		ErrorMessage    string                             `json:"errorMessage,omitempty" yaml:"errorMessage,omitempty"`
		IsLoading       bool                               `json:"isLoading" yaml:"isLoading"`
		History         []converter.ConversionHistoryEntry `json:"history" yaml:"history"`
		Version         uint64                             `json:"-" yaml:"-"`
	}

	Option func(*ConversionController)

	// ConversionController owns the conversion state. All mutations happen under
	// mu; network requests never run while it is held. A rate fetch only applies
	// its result if no newer fetch or pair change happened in the meantime.
	ConversionController struct {
		fetcher   converter.RateFetcher
		cache     converter.RateCache
		archive   converter.Storage
		log       zerolog.Logger
		metrics   *metrics.Metrics
		scheduler Scheduler
		now       func() time.Time

		debounceDelay   time.Duration
		refreshInterval time.Duration

		debounce  *debouncer
		publisher *publisher

		ctx    context.Context
		cancel context.CancelFunc
		wg     sync.WaitGroup

		mu              sync.Mutex
		closed          bool
		started         bool
		pair            converter.Pair
		inputAmount     string
		lastProcessed   string
		convertedAmount string
		exchangeRate    string
		rate            decimal.Decimal
		ratePair        converter.Pair
		errorMessage    string
		isLoading       bool
		history         *history
		fetchSeq        uint64
		version         uint64
	}
)

func WithLogger(log zerolog.Logger) Option {
	return func(c *ConversionController) {
		c.log = log
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *ConversionController) {
		if m != nil {
			c.metrics = m
		}
	}
}

func WithDebounce(delay time.Duration) Option {
	return func(c *ConversionController) {
		if delay > 0 {
			c.debounceDelay = delay
		}
	}
}

func WithRefreshInterval(interval time.Duration) Option {
	return func(c *ConversionController) {
		if interval > 0 {
			c.refreshInterval = interval
		}
	}
}

func WithScheduler(s Scheduler) Option {
	return func(c *ConversionController) {
		if s != nil {
			c.scheduler = s
		}
	}
}

// WithArchive stores every rate fetched from the network in s.
func WithArchive(s converter.Storage) Option {
	return func(c *ConversionController) {
		c.archive = s
	}
}

func WithCurrencies(from, to converter.Currency) Option {
	return func(c *ConversionController) {
		if from.IsValid() && to.IsValid() {
			c.pair = converter.NewPair(from, to)
		}
	}
}

func WithInputAmount(text string) Option {
	return func(c *ConversionController) {
		c.inputAmount = text
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *ConversionController) {
		if now != nil {
			c.now = now
		}
	}
}

func NewConversionController(fetcher converter.RateFetcher, rateCache converter.RateCache, options ...Option) *ConversionController {
	if rateCache == nil {
		rateCache = cache.New()
	}

	c := &ConversionController{
		fetcher:         fetcher,
		cache:           rateCache,
		log:             zerolog.Nop(),
		metrics:         metrics.New(nil),
		now:             time.Now,
		debounceDelay:   DefaultDebounce,
		refreshInterval: DefaultRefreshInterval,
		publisher:       newPublisher(),
		pair:            converter.NewPair(converter.EUR, converter.USD),
		inputAmount:     DefaultInputAmount,
		history:         newHistory(HistoryLimit),
	}

	for _, option := range options {
		option(c)
	}

	if c.scheduler == nil {
		c.scheduler = cron.New()
	}

	c.log = c.log.With().Str("component", "conversion_controller").Logger()
	c.debounce = newDebouncer(c.debounceDelay)
	c.ctx, c.cancel = context.WithCancel(context.Background())

	return c
}

// Start registers the periodic refresh, starts the scheduler and fetches the
// initial rate. The controller is closed when ctx is done.
func (c *ConversionController) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrControllerClosed
	}

	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	c.mu.Unlock()

	spec := fmt.Sprintf("@every %s", c.refreshInterval)
	if _, err := c.scheduler.AddFunc(spec, c.Refresh); err != nil {
		return fmt.Errorf("registering rate refresh: %w", err)
	}

	c.scheduler.Start()
	c.log.Info().Str("schedule", spec).Msg("Rate refresh scheduled")

	go func() {
		select {
		case <-ctx.Done():
			_ = c.Close()
		case <-c.ctx.Done():
		}
	}()

	c.triggerFetch(false)

	return nil
}

// Close stops timers and background work and closes every subscription.
func (c *ConversionController) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	started := c.started
	c.mu.Unlock()

	c.debounce.stop()

	if started {
		<-c.scheduler.Stop().Done()
	}

	c.cancel()
	c.fetcher.CancelOngoingRequests()
	c.wg.Wait()
	c.publisher.close()

	c.log.Info().Msg("Conversion controller closed")

	return nil
}

func (c *ConversionController) async(fn func(ctx context.Context)) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		fn(c.ctx)
	}()
}

// Refresh fetches the rate again in the background, bypassing the cache.
func (c *ConversionController) Refresh() {
	c.triggerFetch(true)
}

func (c *ConversionController) triggerFetch(forceRefresh bool) {
	c.async(func(ctx context.Context) {
		err := c.FetchExchangeRate(ctx, forceRefresh)

		if err != nil && !errors.Is(err, fetchers.ErrCancelled) {
			c.log.Warn().Err(err).Bool("force", forceRefresh).Msg("Exchange rate fetch failed")
		}
	})
}

// State returns the current snapshot.
func (c *ConversionController) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.snapshotLocked()
}

// Subscribe returns a channel that receives the current state immediately and
// then every newer state. Unread states are replaced by newer ones. The returned
// function cancels the subscription.
func (c *ConversionController) Subscribe() (<-chan State, func()) {
	return c.publisher.subscribe(c.State)
}

func (c *ConversionController) snapshotLocked() State {
	return State{
		FromCurrency:    c.pair.From,
		ToCurrency:      c.pair.To,
		InputAmount:     c.inputAmount,
		ConvertedAmount: c.convertedAmount,
		ExchangeRate:    c.exchangeRate,
		ErrorMessage:    c.errorMessage,
		IsLoading:       c.isLoading,
		History:         c.history.snapshot(),
		Version:         c.version,
	}
}

func (c *ConversionController) emit() {
	c.publisher.publish(c.State())
}

// SetInputAmount stores text as typed and schedules a conversion once the input
// has been quiet for the debounce delay.
func (c *ConversionController) SetInputAmount(text string) {
	c.mu.Lock()
	changed := c.inputAmount != text
	c.inputAmount = text
	if changed {
		c.version++
	}
	c.mu.Unlock()

	if changed {
		c.emit()
	}

	c.debounce.schedule(func() {
		c.onInputSettled(text)
	})
}

func (c *ConversionController) onInputSettled(text string) {
	c.mu.Lock()
	if text == c.lastProcessed {
		c.mu.Unlock()
		return
	}
	c.lastProcessed = text
	c.mu.Unlock()

	c.async(func(ctx context.Context) {
		if err := c.Convert(ctx); err != nil {
			c.log.Debug().Err(err).Str("input", text).Msg("Conversion failed")
		}
	})
}

func (c *ConversionController) SetFromCurrency(cur converter.Currency) error {
	return c.setPair(false, func(p converter.Pair) (converter.Pair, error) {
		if !cur.IsValid() {
			return p, fmt.Errorf("%w: %q", ErrInvalidCurrency, cur)
		}

		p.From = cur

		return p, nil
	})
}

func (c *ConversionController) SetToCurrency(cur converter.Currency) error {
	return c.setPair(false, func(p converter.Pair) (converter.Pair, error) {
		if !cur.IsValid() {
			return p, fmt.Errorf("%w: %q", ErrInvalidCurrency, cur)
		}

		p.To = cur

		return p, nil
	})
}

// SwapCurrencies exchanges both currencies in one step and fetches once.
func (c *ConversionController) SwapCurrencies() {
	_ = c.setPair(true, func(p converter.Pair) (converter.Pair, error) {
		return p.Swap(), nil
	})
}

// setPair applies update and triggers one rate fetch when the pair changed or
// always is set.
func (c *ConversionController) setPair(always bool, update func(converter.Pair) (converter.Pair, error)) error {
	c.mu.Lock()
	current := c.pair
	next, err := update(current)

	if err != nil {
		c.mu.Unlock()
		return err
	}

	if next == current && !always {
		c.mu.Unlock()
		return nil
	}

	c.pair = next
	c.fetchSeq++
	c.version++
	c.mu.Unlock()

	c.log.Debug().Str("pair", next.String()).Msg("Currency selection changed")
	c.emit()
	c.triggerFetch(false)

	return nil
}
