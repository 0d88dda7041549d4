// Command fennixctl reads the Fennix Emporium spreadsheet from the terminal:
// it lists and dumps sheets, appends rows, prints KPI views and writes the
// same CSV/XLSX downloads the dashboard serves. Logs go to stderr so output
// can be piped.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
