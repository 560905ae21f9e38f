// Package main is the entry point for the ledger CLI.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spinnaker/spinnaker-sub014/internal/cli"
)

// Version information set by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// shutdownTimeout is the maximum time to wait for graceful shutdown.
const shutdownTimeout = 30 * time.Second

func main() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	cli.SetVersionInfo(version, commit, date)
	os.Exit(run(context.Background(), sigChan, cli.ExecuteContext, os.Stderr, os.Exit))
}

// run executes the CLI and returns its exit code. The first signal cancels the
// command context; a second signal or the shutdown timeout calls forceExit.
func run(parent context.Context, sigChan <-chan os.Signal, execute func(context.Context) error, stderr io.Writer, forceExit func(int)) int {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	done := make(chan struct{})
	defer close(done)

	go func() {
		var sig os.Signal
		select {
		case sig = <-sigChan:
		case <-done:
			return
		}
		fmt.Fprintf(stderr, "\nReceived signal %v, initiating graceful shutdown...\n", sig)
		cancel()

		shutdownTimer := time.NewTimer(shutdownTimeout)
		defer shutdownTimer.Stop()

		select {
		case <-done:
		case <-shutdownTimer.C:
			fmt.Fprintf(stderr, "\nShutdown timeout (%v) exceeded, forcing exit\n", shutdownTimeout)
			forceExit(1)
		case sig = <-sigChan:
			fmt.Fprintf(stderr, "\nReceived second signal %v, forcing exit\n", sig)
			forceExit(1)
		}
	}()

	if err := execute(ctx); err != nil {
		// Check if it was a context cancellation (user interrupted)
		if ctx.Err() != nil {
			fmt.Fprintln(stderr, "Operation canceled")
			return 130 // Standard exit code for SIGINT
		}
		// Print the error since SilenceErrors is enabled in cobra
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
