package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/kindred/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	runner := NewRunner(RunnerOpts{Logger: logger})

	app := &cli.Command{
		Name:     "kindred",
		Usage:    "Build a playlist of new tracks that sound like the artists you already like",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	err := app.Run(ctx, os.Args)
	stop()
	if err != nil {
		logger.Fatalf("application error: %v", err)
	}
}
