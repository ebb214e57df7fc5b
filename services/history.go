package services

import (
	"github.com/shopspring/decimal"

	converter "github.com/malusev998/currency-converter"
)

const HistoryLimit = 5

var historyTolerance = decimal.RequireFromString("0.001")

// history is a newest-first list of completed conversions.
type history struct {
	limit   int
	entries []converter.ConversionHistoryEntry
}

func newHistory(limit int) *history {
	return &history{limit: limit, entries: make([]converter.ConversionHistoryEntry, 0, limit+1)}
}

// record prepends entry unless the newest entry is the same pair with an amount
// differing by less than the tolerance.
func (h *history) record(entry converter.ConversionHistoryEntry) bool {
	if len(h.entries) > 0 {
		latest := h.entries[0]

		if latest.Pair() == entry.Pair() && latest.FromAmount.Sub(entry.FromAmount).Abs().LessThan(historyTolerance) {
			return false
		}
	}

	h.entries = append(h.entries, converter.ConversionHistoryEntry{})
	copy(h.entries[1:], h.entries)
	h.entries[0] = entry

	if len(h.entries) > h.limit {
		h.entries = h.entries[:h.limit]
	}

	return true
}

func (h *history) snapshot() []converter.ConversionHistoryEntry {
	out := make([]converter.ConversionHistoryEntry, len(h.entries))
	copy(out, h.entries)

	return out
}

func (h *history) len() int {
	return len(h.entries)
}
