// Command goldclient talks to a goldbridge gateway: one-shot commands for
// status, symbols, prices, orders and account state, plus an interactive
// run loop.
package main

import (
	"os"

	"github.com/alanyoungcy/goldbridge/cmd/goldclient/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
