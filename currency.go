package converter

import (
	"fmt"
	"strings"
)

type Currency string

const (
	EUR Currency = "EUR"
	USD Currency = "USD"
	GBP Currency = "GBP"
	JPY Currency = "JPY"
	CAD Currency = "CAD"
	AUD Currency = "AUD"
	CHF Currency = "CHF"
	CNY Currency = "CNY"
)

type currencyInfo struct {
	symbol string
	name   string
}

var (
	currencies = []Currency{EUR, USD, GBP, JPY, CAD, AUD, CHF, CNY}

	currencyDetails = map[Currency]currencyInfo{
		EUR: {symbol: "€", name: "Euro"},
		USD: {symbol: "$", name: "US Dollar"},
		GBP: {symbol: "£", name: "British Pound"},
		JPY: {symbol: "¥", name: "Japanese Yen"},
		CAD: {symbol: "C$", name: "Canadian Dollar"},
		AUD: {symbol: "A$", name: "Australian Dollar"},
		CHF: {symbol: "Fr", name: "Swiss Franc"},
		CNY: {symbol: "¥", name: "Chinese Yuan"},
	}
)

// Currencies returns every supported currency in display order.
func Currencies() []Currency {
	all := make([]Currency, len(currencies))
	copy(all, currencies)

	return all
}

func (c Currency) Code() string {
	return string(c)
}

func (c Currency) Symbol() string {
	return currencyDetails[c].symbol
}

func (c Currency) Name() string {
	return currencyDetails[c].name
}

func (c Currency) IsValid() bool {
	_, ok := currencyDetails[c]
	return ok
}

func (c Currency) String() string {
	return string(c)
}

func ConvertToCurrenciesFromStringSlice(strings []string) ([]Currency, error) {
	result := make([]Currency, 0, len(strings))

	for _, str := range strings {
		c, err := ConvertToCurrencyFromString(str)
		if err != nil {
			return nil, err
		}

		result = append(result, c)
	}

	return result, nil
}

func ConvertToCurrencyFromString(str string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(str)))

	if !c.IsValid() {
		return "", fmt.Errorf("value %s is not valid Currency", str)
	}

	return c, nil
}

func (c *Currency) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var str string
	if err := unmarshal(&str); err != nil {
		return err
	}

	parsed, err := ConvertToCurrencyFromString(str)

	if err != nil {
		return err
	}

	*c = parsed

	return nil
}

func (c Currency) MarshalYAML() (interface{}, error) {
	return string(c), nil
}

// Pair is an ordered (from, to) currency combination.
type Pair struct {
	From Currency
	To   Currency
}

func NewPair(from, to Currency) Pair {
	return Pair{From: from, To: to}
}

func (p Pair) IsIdentity() bool {
	return p.From == p.To
}

func (p Pair) Swap() Pair {
	return Pair{From: p.To, To: p.From}
}

func (p Pair) String() string {
	return fmt.Sprintf("%s_%s", p.From, p.To)
}
