package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aristath/agency/internal/agent"
)

// procs tracks agent subprocesses so they can be killed on shutdown.
var procs = agent.NewProcessManager()

func main() {
	// Create signal-aware context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		// Restore default signal handling (double Ctrl+C = force exit)
		stop()
		if err := procs.KillAll(); err != nil {
			fmt.Fprintf(os.Stderr, "Error killing subprocesses: %v\n", err)
		}
	}()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
