package converter

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Amounts and rates outside these bounds are rejected before any arithmetic or
// formatting is done with them.
const (
	MaxIntegerDigits  = 30
	MaxFractionDigits = 30
)

var ErrAmountOutOfRange = errors.New("amount is out of range")

// CheckAmountRange fails when value has more than MaxIntegerDigits integer digits
// or its exponent asks for more than MaxFractionDigits fractional digits.
// Exponent forms like 1e20000000 parse cheaply but expand to millions of digits.
func CheckAmountRange(value decimal.Decimal) error {
	exp := int64(value.Exponent())

	if exp < -MaxFractionDigits || exp > MaxIntegerDigits {
		return fmt.Errorf("%w: exponent %d", ErrAmountOutOfRange, exp)
	}

	if int64(value.NumDigits())+exp > MaxIntegerDigits {
		return fmt.Errorf("%w: more than %d integer digits", ErrAmountOutOfRange, MaxIntegerDigits)
	}

	return nil
}
