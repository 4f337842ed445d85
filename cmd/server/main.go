// Package main is the entry point of the bookshelf server.
//
// main only reads the configuration, builds the logger and hands over to
// internal/server. Every setting comes from the environment; see
// internal/config for the full list.
//
//	DATABASE_URL=postgres://localhost/bookshelf \
//	SECRET_KEY=$(openssl rand -hex 32) \
//	go run ./cmd/server
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/sakif/bookshelf/internal/config"
	"github.com/sakif/bookshelf/internal/server"
)

// startupTimeout bounds connecting to the database, Redis and MinIO.
const startupTimeout = 30 * time.Second

func main() {
	// === 1. CONFIGURATION ===
	cfg, err := config.Load()
	if err != nil {
		// No logger level yet; use the default one.
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. LOGGING ===
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	// === 3. WIRE AND START ===
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	srv, err := server.New(ctx, cfg, logger)
	cancel()
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT or SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
