package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	converter "github.com/malusev998/currency-converter"
	"github.com/malusev998/currency-converter/services"
)

const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

var (
	highlight = color.New(color.FgGreen, color.Bold)
	muted     = color.New(color.FgHiBlack)
	failure   = color.New(color.FgRed)
)

type conversionResult struct {
	From      converter.Currency `json:"from" yaml:"from"`
	To        converter.Currency `json:"to" yaml:"to"`
	Amount    string             `json:"amount" yaml:"amount"`
	Converted string             `json:"converted" yaml:"converted"`
	Rate      string             `json:"rate" yaml:"rate"`
}

type currencyInfo struct {
	Code   converter.Currency `json:"code" yaml:"code"`
	Symbol string             `json:"symbol" yaml:"symbol"`
	Name   string             `json:"name" yaml:"name"`
}

func validateFormat(format string) error {
	switch format {
	case FormatText, FormatJSON, FormatYAML:
		return nil
	}

	return fmt.Errorf("unknown output format %q, expected one of text, json, yaml", format)
}

// encode writes value as JSON or YAML; ok is false for the text format.
func encode(w io.Writer, format string, value interface{}) (bool, error) {
	switch format {
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")

		return true, encoder.Encode(value)
	case FormatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)

		if err := encoder.Encode(value); err != nil {
			return true, err
		}

		return true, encoder.Close()
	}

	return false, nil
}

func resultFromState(state services.State) conversionResult {
	return conversionResult{
		From:      state.FromCurrency,
		To:        state.ToCurrency,
		Amount:    state.InputAmount,
		Converted: state.ConvertedAmount,
		Rate:      state.ExchangeRate,
	}
}

func printResult(w io.Writer, format string, state services.State) error {
	result := resultFromState(state)

	if ok, err := encode(w, format, result); ok {
		return err
	}

	_, err := fmt.Fprintf(
		w,
		"%s %s = %s %s\n",
		result.Amount,
		result.From.Code(),
		highlight.Sprint(result.Converted),
		result.To.Code(),
	)

	if err != nil {
		return err
	}

	_, err = muted.Fprintf(w, "1 %s = %s %s\n", result.From.Code(), result.Rate, result.To.Code())

	return err
}

// stateLine renders one published state for the watch command.
func stateLine(state services.State) string {
	pair := fmt.Sprintf("%s → %s", state.FromCurrency.Code(), state.ToCurrency.Code())

	switch {
	case state.ErrorMessage != "":
		return failure.Sprintf("[%s] %s", pair, state.ErrorMessage)
	case state.IsLoading:
		return muted.Sprintf("[%s] loading exchange rate...", pair)
	case state.ConvertedAmount == "":
		return muted.Sprintf("[%s] waiting for exchange rate", pair)
	}

	line := fmt.Sprintf(
		"[%s] %s %s = %s %s",
		pair,
		state.InputAmount,
		state.FromCurrency.Code(),
		highlight.Sprint(state.ConvertedAmount),
		state.ToCurrency.Code(),
	)

	if state.ExchangeRate != "" {
		line += muted.Sprintf(" (rate %s)", state.ExchangeRate)
	}

	return line
}

func printHistory(w io.Writer, history []converter.ConversionHistoryEntry) {
	if len(history) == 0 {
		_, _ = fmt.Fprintln(w, muted.Sprint("No conversions yet"))
		return
	}

	var builder strings.Builder

	for i, entry := range history {
		builder.WriteString(fmt.Sprintf(
			"%d. %s %s = %s %s (rate %s) at %s\n",
			i+1,
			entry.FromAmount.String(),
			entry.FromCurrency.Code(),
			entry.ToAmount.StringFixed(2),
			entry.ToCurrency.Code(),
			entry.Rate.StringFixed(4),
			entry.CreatedAt.Format("15:04:05"),
		))
	}

	_, _ = io.WriteString(w, builder.String())
}
