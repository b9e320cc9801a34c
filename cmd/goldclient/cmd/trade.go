package cmd

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/goldbridge/internal/client"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var priceSymbol string

var priceCmd = &cobra.Command{
	Use:   "price",
	Short: "Quote the gold symbol, or --symbol",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		api, err := apiFromFlags()
		if err != nil {
			return err
		}
		q, err := api.Price(cmd.Context(), priceSymbol)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), q)
	},
}

var tradeSymbol string

func newTradeCmd(action string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " LOTS",
		Short: fmt.Sprintf("Send a market %s order for LOTS lots", strings.ToUpper(action)),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			volume, err := parseLots(args[0])
			if err != nil {
				return err
			}
			api, err := apiFromFlags()
			if err != nil {
				return err
			}
			res, err := api.Trade(cmd.Context(), client.TradeRequest{
				Action: action,
				Volume: volume,
				Symbol: tradeSymbol,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}

// parseLots applies the same local checks as the interactive client.
func parseLots(s string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid lot size %q: please enter a number", s)
	}
	if !v.IsPositive() {
		return decimal.Zero, fmt.Errorf("lot size must be positive")
	}
	return v, nil
}

func init() {
	priceCmd.Flags().StringVar(&priceSymbol, "symbol", "", "quote this symbol instead of the gold symbol")

	buyCmd := newTradeCmd("buy")
	sellCmd := newTradeCmd("sell")
	for _, c := range []*cobra.Command{buyCmd, sellCmd} {
		c.Flags().StringVar(&tradeSymbol, "symbol", "", "trade this symbol instead of the gold symbol")
	}

	rootCmd.AddCommand(priceCmd, buyCmd, sellCmd)
}
