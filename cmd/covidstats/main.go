// Command covidstats ingests the COVID-19 Colombia case dataset and serves
// its cached statistics.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"covidstats/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
