package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	converter "github.com/malusev998/currency-converter"
	"github.com/malusev998/currency-converter/fetchers"
	"github.com/malusev998/currency-converter/metrics"
)

const (
	IdentityRate = "1.0000"
	ZeroAmount   = "0.00"

	rateDecimals   = 4
	amountDecimals = 2
)

// unitAmount is the amount requested from the fetcher; the response is the rate.
var unitAmount = decimal.NewFromInt(1)

type providerNamer interface {
	ProviderName() string
}

// FetchExchangeRate refreshes the rate for the selected pair and converts the
// current input with it. Failures keep the previous rate and set ErrorMessage.
// A fetch that is overtaken by a newer fetch or a currency change returns
// fetchers.ErrCancelled and changes nothing.
func (c *ConversionController) FetchExchangeRate(ctx context.Context, forceRefresh bool) error {
	return c.fetchExchangeRate(ctx, forceRefresh, true)
}

func (c *ConversionController) fetchExchangeRate(ctx context.Context, forceRefresh, convertAfter bool) error {
	c.mu.Lock()
	c.fetchSeq++
	seq := c.fetchSeq
	pair := c.pair
	c.errorMessage = ""

	if pair.IsIdentity() {
		c.rate = unitAmount
		c.ratePair = pair
		c.exchangeRate = IdentityRate
		c.isLoading = false
		c.version++
		c.mu.Unlock()
		c.emit()

		if convertAfter {
			return c.convert(ctx, false)
		}

		return nil
	}

	c.isLoading = true
	c.version++
	c.mu.Unlock()
	c.emit()

	if forceRefresh {
		c.cache.Clear()
	}

	rate, fromNetwork, err := c.resolveRate(ctx, pair)

	var formattedRate string
	if err == nil {
		formattedRate = rate.StringFixed(rateDecimals)
	}

	c.mu.Lock()
	if seq != c.fetchSeq {
		c.mu.Unlock()
		c.log.Debug().Str("pair", pair.String()).Msg("Dropping superseded rate result")

		return fetchers.ErrCancelled
	}

	c.isLoading = false

	if err == nil {
		if fromNetwork {
			c.cache.Put(pair, unitAmount, rate)
		}

		c.rate = rate
		c.ratePair = pair
		c.exchangeRate = formattedRate
	} else {
		c.errorMessage = errorMessage(err)
	}

	c.version++
	c.mu.Unlock()
	c.emit()

	if err != nil {
		if !errors.Is(err, fetchers.ErrCancelled) {
			c.log.Warn().Err(err).Str("pair", pair.String()).Msg("Failed to fetch exchange rate")
		}

		return err
	}

	c.log.Debug().
		Str("pair", pair.String()).
		Str("rate", rate.String()).
		Bool("cached", !fromNetwork).
		Msg("Exchange rate updated")

	if fromNetwork {
		c.archiveRate(pair, rate)
	}

	if convertAfter {
		return c.convert(ctx, false)
	}

	return nil
}

func (c *ConversionController) resolveRate(ctx context.Context, pair converter.Pair) (decimal.Decimal, bool, error) {
	if rate, ok := c.cache.Get(pair, unitAmount); ok {
		c.metrics.CacheLookups.WithLabelValues(metrics.CacheHit).Inc()
		return rate, false, nil
	}

	c.metrics.CacheLookups.WithLabelValues(metrics.CacheMiss).Inc()

	value, err := c.fetcher.FetchRate(ctx, unitAmount, pair.From, pair.To)

	if err != nil {
		return decimal.Zero, false, err
	}

	if err := converter.CheckAmountRange(value); err != nil {
		return decimal.Zero, false, &fetchers.DecodingError{Detail: err.Error()}
	}

	return value.Div(unitAmount), true, nil
}

// Convert converts the current input with the held rate. Without a rate for the
// selected pair it fetches once and gives up if there is still none.
func (c *ConversionController) Convert(ctx context.Context) error {
	return c.convert(ctx, true)
}

// convert without allowFetch is used right after a fetch. Missing a rate there
// means the pair changed meanwhile and the newer fetch will convert.
// Parsing and formatting run outside the lock.
func (c *ConversionController) convert(ctx context.Context, allowFetch bool) error {
	c.mu.Lock()
	input := c.inputAmount
	c.mu.Unlock()

	amount, err := parseAmount(input)

	if err != nil {
		c.mu.Lock()
		c.errorMessage = MessageInvalidNumber
		c.convertedAmount = ""
		c.version++
		c.mu.Unlock()
		c.emit()
		c.metrics.Conversions.WithLabelValues(metrics.ConversionInvalid).Inc()

		return fmt.Errorf("%w: %q: %v", ErrInvalidAmount, input, err)
	}

	c.mu.Lock()
	pair, rate, hasRate := c.pair, c.rate, c.hasRateLocked()
	c.mu.Unlock()

	switch {
	case amount.IsZero():
		if err := c.setConverted(input, pair, ZeroAmount); err != nil {
			return err
		}
		c.metrics.Conversions.WithLabelValues(metrics.ConversionZero).Inc()

		return nil
	case pair.IsIdentity():
		if err := c.setConverted(input, pair, amount.StringFixed(amountDecimals)); err != nil {
			return err
		}
		c.metrics.Conversions.WithLabelValues(metrics.ConversionIdentity).Inc()

		return nil
	case hasRate:
		return c.applyConversion(input, pair, rate, amount)
	}

	c.mu.Lock()
	c.errorMessage = ""
	c.version++
	c.mu.Unlock()
	c.emit()

	if !allowFetch {
		return fetchers.ErrCancelled
	}

	if err := c.fetchExchangeRate(ctx, false, false); errors.Is(err, fetchers.ErrCancelled) {
		c.metrics.Conversions.WithLabelValues(metrics.ConversionNoRate).Inc()
		return err
	}

	c.mu.Lock()
	pair, rate, hasRate = c.pair, c.rate, c.hasRateLocked()

	if !hasRate {
		if c.errorMessage == "" {
			c.errorMessage = MessageNoRate
		}
		c.version++
		c.mu.Unlock()
		c.emit()
		c.metrics.Conversions.WithLabelValues(metrics.ConversionNoRate).Inc()

		return ErrNoRate
	}
	c.mu.Unlock()

	return c.applyConversion(input, pair, rate, amount)
}

func (c *ConversionController) hasRateLocked() bool {
	return c.ratePair == c.pair && c.rate.IsPositive()
}

// currentLocked reports whether input and pair are still the ones a conversion
// started from. Whatever changed them schedules a conversion of its own.
func (c *ConversionController) currentLocked(input string, pair converter.Pair) bool {
	return c.inputAmount == input && c.pair == pair
}

func (c *ConversionController) setConverted(input string, pair converter.Pair, formatted string) error {
	c.mu.Lock()
	if !c.currentLocked(input, pair) {
		c.mu.Unlock()
		return fetchers.ErrCancelled
	}

	c.errorMessage = ""
	c.convertedAmount = formatted
	c.version++
	c.mu.Unlock()
	c.emit()

	return nil
}

// applyConversion publishes amount converted with rate. The result is dropped
// when the input, the pair or the held rate changed while it was formatted.
func (c *ConversionController) applyConversion(input string, pair converter.Pair, rate, amount decimal.Decimal) error {
	converted := amount.Mul(rate)
	formatted := converted.StringFixed(amountDecimals)

	entry := converter.ConversionHistoryEntry{
		ID:           uuid.New(),
		FromAmount:   amount,
		FromCurrency: pair.From,
		ToAmount:     converted,
		ToCurrency:   pair.To,
		Rate:         rate,
		CreatedAt:    c.now(),
	}

	c.mu.Lock()
	if !c.currentLocked(input, pair) || c.ratePair != pair || !c.rate.Equal(rate) {
		c.mu.Unlock()
		return fetchers.ErrCancelled
	}

	c.errorMessage = ""
	c.convertedAmount = formatted
	recorded := c.history.record(entry)
	size := c.history.len()
	c.version++
	c.mu.Unlock()
	c.emit()

	if recorded {
		c.metrics.HistorySize.Set(float64(size))
	}

	c.metrics.Conversions.WithLabelValues(metrics.ConversionSuccess).Inc()

	return nil
}

func (c *ConversionController) archiveRate(pair converter.Pair, rate decimal.Decimal) {
	if c.archive == nil {
		return
	}

	provider := fetchers.EVPProvider
	if namer, ok := c.fetcher.(providerNamer); ok {
		provider = namer.ProviderName()
	}

	record := converter.Rate{
		From:      pair.From,
		To:        pair.To,
		Provider:  provider,
		Rate:      rate,
		CreatedAt: c.now(),
	}

	c.async(func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
		defer cancel()

		if _, err := c.archive.Store(ctx, []converter.Rate{record}); err != nil {
			c.log.Error().
				Err(err).
				Str("storage", c.archive.GetStorageProviderName()).
				Str("pair", pair.String()).
				Msg("Failed to archive exchange rate")
		}
	})
}

// parseAmount accepts both '.' and ',' as the decimal separator and rejects
// amounts outside converter.CheckAmountRange.
func parseAmount(text string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.ReplaceAll(text, ",", "."))

	if err != nil {
		return decimal.Zero, err
	}

	if err := converter.CheckAmountRange(amount); err != nil {
		return decimal.Zero, err
	}

	return amount, nil
}
