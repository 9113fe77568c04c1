package main

import (
	"context"
	"errors"
	"os"

	"albumsync/internal/shared"

	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	runner := NewRunner(RunnerOpts{
		Logger: logger,
	})

	app := &cli.Command{
		Name:     "albumsync",
		Usage:    "Sync Apple Photos albums to Google Photos",
		Version:  "0.3.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		switch {
		case errors.Is(err, shared.ErrStateLocked):
			logger.Fatal("another sync run is already in progress", "error", err)
		case errors.Is(err, shared.ErrNotAuthenticated), errors.Is(err, shared.ErrAuthExpired):
			logger.Fatal("authentication required, run 'albumsync auth login'", "error", err)
		default:
			logger.Fatalf("application error: %v", err)
		}
	}
}
