package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"resumeflow/internal/cli"
	"resumeflow/internal/config"
	"resumeflow/internal/errors"

	"github.com/joho/godotenv"
)

func main() {
	// Local .env files may carry RESUMEFLOW_* settings; a missing file is fine
	if err := godotenv.Load(); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to read .env file: %v\n", err)
		os.Exit(1)
	}

	// Create a context that is canceled on interrupt signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := errors.New(cfg.App.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	logger.Debug("Starting resumeflow",
		"version", cli.Version,
		"log_level", cfg.App.LogLevel,
		"backend", cfg.Backend.URL)

	if err := cli.Execute(ctx, cfg, logger); err != nil {
		logger.LogError(err, "Command failed")
		os.Exit(1)
	}
}
