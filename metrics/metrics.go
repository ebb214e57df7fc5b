package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "currency_converter"

// Cache lookup results.
const (
	CacheHit  = "hit"
	CacheMiss = "miss"
)

// Fetch outcomes.
const (
	FetchSuccess    = "success"
	FetchInvalidURL = "invalid_url"
	FetchDecoding   = "decoding_error"
	FetchNetwork    = "network_error"
	FetchCancelled  = "cancelled"
)

// Conversion outcomes.
const (
	ConversionSuccess  = "success"
	ConversionInvalid  = "invalid_amount"
	ConversionZero     = "zero"
	ConversionIdentity = "identity"
	ConversionNoRate   = "no_rate"
)

type Metrics struct {
	CacheLookups  *prometheus.CounterVec
	Fetches       *prometheus.CounterVec
	FetchDuration prometheus.Histogram
	Conversions   *prometheus.CounterVec
	HistorySize   prometheus.Gauge
}

// New creates the converter collectors and registers them with reg. A nil
// registerer yields unregistered collectors.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Rate cache lookups by result",
			},
			[]string{"result"},
		),
		Fetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_fetches_total",
				Help:      "Exchange rate requests by outcome",
			},
			[]string{"outcome"},
		),
		FetchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "rate_fetch_duration_seconds",
				Help:      "Duration of exchange rate requests",
				Buckets:   prometheus.DefBuckets,
			},
		),
		Conversions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "conversions_total",
				Help:      "Conversion attempts by outcome",
			},
			[]string{"outcome"},
		),
		HistorySize: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "history_entries",
				Help:      "Number of entries in the conversion history",
			},
		),
	}
}
