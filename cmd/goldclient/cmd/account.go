package cmd

import (
	"github.com/spf13/cobra"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Show the account snapshot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		api, err := apiFromFlags()
		if err != nil {
			return err
		}
		acct, err := api.Account(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), acct)
	},
}

var positionsCmd = &cobra.Command{
	Use:   "positions",
	Short: "Show open positions and the gold subset",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		api, err := apiFromFlags()
		if err != nil {
			return err
		}
		pos, err := api.Positions(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), pos)
	},
}

func init() {
	rootCmd.AddCommand(accountCmd, positionsCmd)
}
