package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/alanyoungcy/goldbridge/internal/client"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the interactive client",
	Long: `Run connects to the gateway, resolves the gold symbol, polls the price and
accepts commands on stdin:

  buy LOTS        send a market buy
  sell LOTS       send a market sell
  symbol NAME     use NAME as the gold symbol
  refresh         reconnect and re-detect
  state           print the client state
  quit            exit`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	out := cmd.OutOrStdout()
	orch := client.NewOrchestrator(newAPI(cfg), client.Config{
		PollInterval: cfg.Client.PollInterval.Duration,
	}, newLogger(cfg, cmd.ErrOrStderr()))

	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for e := range orch.Events() {
			printEvent(out, e)
		}
	}()

	go func() {
		readCommands(ctx, cmd.InOrStdin(), out, orch)
		cancel()
	}()

	err = orch.Run(ctx)
	<-printed
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func readCommands(ctx context.Context, in io.Reader, out io.Writer, orch *client.Orchestrator) {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		arg := ""
		if len(fields) > 1 {
			arg = fields[1]
		}
		switch strings.ToLower(fields[0]) {
		case "buy", "sell":
			orch.SubmitTrade(fields[0], arg)
		case "symbol":
			if arg == "" {
				fmt.Fprintln(out, "usage: symbol NAME")
				continue
			}
			orch.SetManualSymbol(arg)
		case "refresh":
			orch.Refresh()
		case "state":
			st, err := orch.Snapshot(ctx)
			if err != nil {
				return
			}
			fmt.Fprintf(out, "state=%s symbol=%q price=%.2f balance=%.2f net=%s trades_in_flight=%d\n",
				st.State, st.Symbol, st.LastPrice, st.Balance, st.NetVolume, st.TradesInFlight)
		case "quit", "exit":
			return
		default:
			fmt.Fprintf(out, "unknown command %q\n", fields[0])
		}
	}
}

func printEvent(w io.Writer, e client.Event) {
	switch e.Kind {
	case client.EventStatus:
		fmt.Fprintf(w, "[%s] %s\n", e.State, e.Text)
	case client.EventNotification:
		fmt.Fprintf(w, "*** %s: %s\n", e.Title, e.Text)
	case client.EventPriceUpdated:
		fmt.Fprintf(w, "%s %.2f (bid %.2f / ask %.2f)\n", e.Quote.Symbol, e.Quote.Price, e.Quote.Bid, e.Quote.Ask)
	case client.EventAccountUpdated:
		fmt.Fprintf(w, "balance %.2f, net gold position %s lots\n", e.Balance, e.NetVolume)
	case client.EventSymbolCandidates:
		fmt.Fprintln(w, "Gold symbol not detected. Possible symbols:")
		for _, c := range e.Candidates {
			fmt.Fprintf(w, "  %s\n", c)
		}
		fmt.Fprintln(w, "Use: symbol NAME")
	}
}
