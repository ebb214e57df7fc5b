package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	converter "github.com/malusev998/currency-converter"
	"github.com/malusev998/currency-converter/services"
)

// pairFlags resolves --from and --to against the configured default pair.
func pairFlags(defaults converter.Pair, from, to string) (converter.Pair, error) {
	pair := defaults

	if from != "" {
		cur, err := converter.ConvertToCurrencyFromString(from)
		if err != nil {
			return pair, err
		}
		pair.From = cur
	}

	if to != "" {
		cur, err := converter.ConvertToCurrencyFromString(to)
		if err != nil {
			return pair, err
		}
		pair.To = cur
	}

	return pair, nil
}

func convert(config *Config) *cobra.Command {
	var from, to, format string

	convertCmd := &cobra.Command{
		Use:   "convert AMOUNT",
		Short: "Convert an amount once and print the result",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return validateFormat(format)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			runtime, err := config.Runtime()
			if err != nil {
				return err
			}

			pair, err := pairFlags(runtime.Pair, from, to)
			if err != nil {
				return err
			}

			controller := runtime.NewController(
				services.WithCurrencies(pair.From, pair.To),
				services.WithInputAmount(args[0]),
			)
			defer controller.Close()

			err = controller.FetchExchangeRate(cmd.Context(), false)
			state := controller.State()

			if state.ErrorMessage != "" {
				return errors.New(state.ErrorMessage)
			}

			if err != nil {
				return fmt.Errorf("converting %s %s: %w", args[0], pair.From, err)
			}

			return printResult(cmd.OutOrStdout(), format, state)
		},
	}

	convertCmd.Flags().StringVarP(&from, "from", "f", "", "Source currency (defaults to converter.from)")
	convertCmd.Flags().StringVarP(&to, "to", "t", "", "Target currency (defaults to converter.to)")
	convertCmd.Flags().StringVarP(&format, "format", "o", FormatText, "Output format: text, json or yaml")

	return convertCmd
}
