package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/likesync/internal/shared"
	"github.com/urfave/cli/v3"
)

const defaultConfigPath = "config.toml"

func main() {
	logger := shared.NewLogger(nil)

	configPath := os.Getenv("LIKESYNC_CONFIG")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	config := shared.DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		if config, err = shared.LoadConfig(configPath); err != nil {
			logger.Fatalf("failed to load config: %v", err)
		}
	}
	if err := config.ApplyEnv(); err != nil {
		logger.Fatalf("failed to read environment: %v", err)
	}
	shared.SetLogLevel(logger, config.Log.Level)

	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: configPath,
		Logger:     logger,
	})

	app := &cli.Command{
		Name:     "likesync",
		Usage:    "Mirror Spotify liked songs into a playlist and keep the refresh token secret current",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Args); err != nil {
		if shared.IsFatal(err) {
			logger.Error("aborted before any change", "error", err)
			stop()
			os.Exit(2)
		}
		logger.Fatalf("application error: %v", err)
	}
}
