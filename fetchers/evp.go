package fetchers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	converter "github.com/malusev998/currency-converter"
	"github.com/malusev998/currency-converter/metrics"
)

type (
	EVPConfig struct {
		BaseConfig
		Endpoint       string
		LoggingEnabled bool
		Logger         zerolog.Logger
		Metrics        *metrics.Metrics
	}

	evpResponse struct {
		Amount   string `json:"amount"`
		Currency string `json:"currency"`
	}

	// EVPFetcher requests commercial exchange rates from the EVP currency API.
	// Only the most recent FetchRate call can deliver a result; older calls
	// return ErrCancelled.
	EVPFetcher struct {
		baseURL  string
		endpoint string
		client   *http.Client
		log      zerolog.Logger
		logging  atomic.Bool
		metrics  *metrics.Metrics

		mu     sync.Mutex
		token  uint64
		cancel context.CancelFunc
	}
)

var _ converter.RateFetcher = (*EVPFetcher)(nil)

func NewEVPFetcher(config EVPConfig) *EVPFetcher {
	baseURL := config.URL
	if baseURL == "" {
		baseURL = EVPBaseURL
	}

	endpoint := config.Endpoint
	if endpoint == "" {
		endpoint = EVPEndpoint
	}

	client := config.Client
	if client == nil {
		client = &http.Client{}
	}

	m := config.Metrics
	if m == nil {
		m = metrics.New(nil)
	}

	f := &EVPFetcher{
		baseURL:  strings.TrimRight(baseURL, "/"),
		endpoint: strings.Trim(endpoint, "/"),
		client:   client,
		log:      config.Logger.With().Str("fetcher", "evp").Logger(),
		metrics:  m,
	}
	f.logging.Store(config.LoggingEnabled)

	return f
}

func (e *EVPFetcher) ProviderName() string {
	return EVPProvider
}

func (e *EVPFetcher) EnableLogging(enabled bool) {
	e.logging.Store(enabled)
}

func (e *EVPFetcher) LoggingEnabled() bool {
	return e.logging.Load()
}

// debug returns nil when diagnostics are off; zerolog treats nil events as no-ops.
func (e *EVPFetcher) debug() *zerolog.Event {
	if !e.logging.Load() {
		return nil
	}

	return e.log.Debug()
}

func (e *EVPFetcher) CancelOngoingRequests() {
	e.mu.Lock()
	e.token++
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.mu.Unlock()

	e.debug().Msg("Cancelled ongoing currency exchange requests")
}

func (e *EVPFetcher) begin(ctx context.Context) (context.Context, context.CancelFunc, uint64) {
	ctx, cancel := context.WithCancel(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancel != nil {
		e.cancel()
	}

	e.token++
	e.cancel = cancel

	return ctx, cancel, e.token
}

func (e *EVPFetcher) finish(token uint64, cancel context.CancelFunc) {
	cancel()

	e.mu.Lock()
	if e.token == token {
		e.cancel = nil
	}
	e.mu.Unlock()
}

func (e *EVPFetcher) superseded(token uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.token != token
}

// RequestURL renders {base}/{endpoint}/{amount}-{FROM}/{TO}/latest.
func (e *EVPFetcher) RequestURL(amount decimal.Decimal, from, to converter.Currency) string {
	return fmt.Sprintf("%s/%s/%s-%s/%s/latest", e.baseURL, e.endpoint, formatAmount(amount), from.Code(), to.Code())
}

func formatAmount(amount decimal.Decimal) string {
	str := amount.String()

	if !strings.Contains(str, ".") {
		str += ".0"
	}

	return str
}

func (e *EVPFetcher) FetchRate(ctx context.Context, amount decimal.Decimal, from, to converter.Currency) (decimal.Decimal, error) {
	start := time.Now()
	rate, err := e.fetch(ctx, amount, from, to)

	e.metrics.FetchDuration.Observe(time.Since(start).Seconds())
	e.metrics.Fetches.WithLabelValues(outcome(err)).Inc()

	if err != nil {
		if errors.Is(err, ErrCancelled) {
			e.debug().Str("pair", converter.NewPair(from, to).String()).Msg("Task was cancelled")
		} else {
			e.debug().Err(err).Str("pair", converter.NewPair(from, to).String()).Msg("Exchange rate request failed")
		}

		return decimal.Zero, err
	}

	e.debug().
		Str("rate", rate.String()).
		Str("currency", to.Code()).
		Msg("Exchange rate")

	return rate, nil
}

func (e *EVPFetcher) fetch(parent context.Context, amount decimal.Decimal, from, to converter.Currency) (decimal.Decimal, error) {
	// Rejected before begin so an unusable amount does not supersede a request in flight.
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: amount %s is not positive", ErrInvalidURL, amount)
	}

	if err := converter.CheckAmountRange(amount); err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	ctx, cancel, token := e.begin(parent)
	defer e.finish(token, cancel)

	rawURL := e.RequestURL(amount, from, to)
	e.debug().Str("url", rawURL).Msg("Fetching exchange rate")

	req, err := getData(ctx, rawURL)

	if err != nil {
		return decimal.Zero, err
	}

	res, err := e.client.Do(req)

	if err != nil {
		if e.superseded(token) || errors.Is(parent.Err(), context.Canceled) {
			return decimal.Zero, ErrCancelled
		}

		return decimal.Zero, &NetworkError{Err: err}
	}

	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)

	if e.superseded(token) || errors.Is(parent.Err(), context.Canceled) {
		return decimal.Zero, ErrCancelled
	}

	if err != nil {
		return decimal.Zero, &NetworkError{Err: err}
	}

	e.debug().Int("status", res.StatusCode).Msg("HTTP Response")

	if err := handleHTTPStatusCodeError(res); err != nil {
		return decimal.Zero, err
	}

	e.debug().Bytes("body", body).Msg("Raw API Response")

	rate, err := decode(body)

	if err != nil {
		return decimal.Zero, err
	}

	if e.superseded(token) {
		return decimal.Zero, ErrCancelled
	}

	return rate, nil
}

func decode(body []byte) (decimal.Decimal, error) {
	var data evpResponse

	if err := json.Unmarshal(body, &data); err != nil {
		return decimal.Zero, &DecodingError{Detail: err.Error()}
	}

	if _, err := converter.ConvertToCurrencyFromString(data.Currency); err != nil {
		return decimal.Zero, &DecodingError{Detail: err.Error()}
	}

	amount, err := decimal.NewFromString(data.Amount)

	if err != nil {
		return decimal.Zero, &DecodingError{Detail: fmt.Sprintf("failed to convert amount '%s' to a number", data.Amount)}
	}

	if !amount.IsPositive() {
		return decimal.Zero, &DecodingError{Detail: fmt.Sprintf("amount '%s' is not positive", data.Amount)}
	}

	if err := converter.CheckAmountRange(amount); err != nil {
		return decimal.Zero, &DecodingError{Detail: fmt.Sprintf("amount '%s' is out of range", data.Amount)}
	}

	return amount, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.FetchSuccess
	case errors.Is(err, ErrCancelled):
		return metrics.FetchCancelled
	case errors.Is(err, ErrInvalidURL):
		return metrics.FetchInvalidURL
	case errors.Is(err, ErrDecoding):
		return metrics.FetchDecoding
	default:
		return metrics.FetchNetwork
	}
}
