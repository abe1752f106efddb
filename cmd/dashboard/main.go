package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"fleet-dashboard/internal/app"
	"fleet-dashboard/pkg/config"
	"fleet-dashboard/pkg/logger"
)

func main() {
	envFile := flag.String("env", ".env", "path to the dotenv file")
	flag.Parse()

	// Load config
	cfg, err := config.LoadConfig(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("fleet-dashboard", os.Stdout, logger.ParseLevel(cfg.LogLevel))
	log.Info("startup", "Starting fleet dashboard")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("startup", fmt.Errorf("failed to assemble dashboard: %w", err))
		os.Exit(1)
	}

	if err := a.Run(ctx); err != nil {
		log.Error("shutdown", err)
		os.Exit(1)
	}
}
