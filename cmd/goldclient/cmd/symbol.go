package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show gateway status without triggering detection",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		api, err := apiFromFlags()
		if err != nil {
			return err
		}
		st, err := api.Status(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), st)
	},
}

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect the broker's gold symbol",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		api, err := apiFromFlags()
		if err != nil {
			return err
		}
		res, err := api.Detect(cmd.Context())
		if err != nil {
			return err
		}
		if err := printJSON(cmd.OutOrStdout(), res); err != nil {
			return err
		}
		if !res.Success {
			return fmt.Errorf("detection failed: %s", res.Message)
		}
		return nil
	},
}

var symbolsCmd = &cobra.Command{
	Use:   "symbols",
	Short: "List gold-related and sample symbols from the terminal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		api, err := apiFromFlags()
		if err != nil {
			return err
		}
		list, err := api.ListSymbols(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), list)
	},
}

var setSymbolCmd = &cobra.Command{
	Use:   "set-symbol SYMBOL",
	Short: "Use SYMBOL as the gold symbol",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := apiFromFlags()
		if err != nil {
			return err
		}
		res, err := api.SetSymbol(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd, detectCmd, symbolsCmd, setSymbolCmd)
}
