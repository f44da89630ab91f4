// Command libctl administers a navistream library: sweeping, searching,
// verifying and prefetching tracks without going through the server.
package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/cesargomez89/navistream/internal/app"
	"github.com/cesargomez89/navistream/internal/config"
	"github.com/cesargomez89/navistream/internal/logger"
)

func main() {
	cfg := config.Load()

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	if err := cfg.Validate(); err != nil {
		log.Error("Configuration error", "error", err)
		os.Exit(1)
	}

	svc, db, err := app.Build(cfg, log)
	if err != nil {
		log.Error("Failed to initialize", "error", err)
		os.Exit(1)
	}

	runner := NewRunner(svc, os.Stdout)
	cmd := &cli.Command{
		Name:     "libctl",
		Usage:    "Administer the navistream track library",
		Commands: runner.register(),
	}

	err = cmd.Run(context.Background(), os.Args)
	_ = db.Close()
	if err != nil {
		log.Error("Command failed", "error", err)
		os.Exit(1)
	}
}
