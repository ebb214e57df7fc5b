package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	converter "github.com/malusev998/currency-converter"
)

func currencies() *cobra.Command {
	var format string

	currenciesCmd := &cobra.Command{
		Use:   "currencies",
		Short: "List supported currencies",
		Args:  cobra.NoArgs,
		// Listing needs neither config nor network.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return validateFormat(format)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			list := converter.Currencies()
			infos := make([]currencyInfo, 0, len(list))

			for _, cur := range list {
				infos = append(infos, currencyInfo{Code: cur, Symbol: cur.Symbol(), Name: cur.Name()})
			}

			if ok, err := encode(cmd.OutOrStdout(), format, infos); ok {
				return err
			}

			writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(writer, "CODE\tSYMBOL\tNAME")

			for _, info := range infos {
				_, _ = fmt.Fprintf(writer, "%s\t%s\t%s\n", info.Code.Code(), info.Symbol, info.Name)
			}

			return writer.Flush()
		},
	}

	currenciesCmd.Flags().StringVarP(&format, "format", "o", FormatText, "Output format: text, json or yaml")

	return currenciesCmd
}
