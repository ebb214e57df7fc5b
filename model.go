package converter

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ConversionHistoryEntry is one completed conversion. Entries are never modified
// after creation.
type ConversionHistoryEntry struct {
	ID           uuid.UUID       `json:"id" yaml:"id"`
	FromAmount   decimal.Decimal `json:"fromAmount" yaml:"fromAmount"`
	FromCurrency Currency        `json:"fromCurrency" yaml:"fromCurrency"`
	ToAmount     decimal.Decimal `json:"toAmount" yaml:"toAmount"`
	ToCurrency   Currency        `json:"toCurrency" yaml:"toCurrency"`
	Rate         decimal.Decimal `json:"rate" yaml:"rate"`
	CreatedAt    time.Time       `json:"createdAt" yaml:"createdAt"`
}

func (e ConversionHistoryEntry) Pair() Pair {
	return NewPair(e.FromCurrency, e.ToCurrency)
}

// Rate is an archived exchange rate as fetched from a provider.
type Rate struct {
	From      Currency
	To        Currency
	Provider  string
	Rate      decimal.Decimal
	CreatedAt time.Time
}

type RateWithID struct {
	Rate
	ID interface{}
}
