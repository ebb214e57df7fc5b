package converter

import (
	"context"

	"github.com/shopspring/decimal"
)

type (
	// RateFetcher resolves the amount of `to` that `amount` of `from` is worth.
	// At most one fetch is in flight per fetcher; starting a new one cancels the
	// previous.
	RateFetcher interface {
		FetchRate(ctx context.Context, amount decimal.Decimal, from, to Currency) (decimal.Decimal, error)
		CancelOngoingRequests()
	}

	RateCache interface {
		Get(pair Pair, amount decimal.Decimal) (decimal.Decimal, bool)
		Put(pair Pair, amount, rate decimal.Decimal)
		Clear()
	}
)
