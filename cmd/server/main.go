// Package main implements the entry point for the EchoScribe API server,
// which accepts audio notes over HTTP and processes them asynchronously
// through transcription, task extraction and embedding.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"

	"github.com/joho/godotenv"

	"github.com/echoscribe/echoscribe-api/internal/config"
	"github.com/echoscribe/echoscribe-api/internal/platform/logger"
)

// main is the entry point for the echoscribe-api server. It initializes
// configuration, logging and the database connection, then either runs a
// migration command or wires the application and starts the HTTP server.
func main() {
	// A local .env file is a development convenience; deployments configure
	// the process through real environment variables
	_ = godotenv.Load()

	migrateCmd := flag.String("migrate", "",
		"run a migration command (up, down, reset, status, version) and exit")
	flag.Parse()

	if err := run(*migrateCmd); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}
}

// run loads configuration and dependencies, then dispatches to migrations or
// the server. Split from main so every exit path flows through one log.Fatalf.
func run(migrateCmd string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("set up logger: %w", err)
	}

	slog.Info("Configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"worker_count", cfg.Pipeline.WorkerCount)

	db, err := openDatabase(cfg, appLogger)
	if err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}

	// Migration commands run against the same connection and then exit
	if migrateCmd != "" {
		defer func() {
			if err := db.Close(); err != nil {
				appLogger.Error("Database close failed", "error", err)
			}
		}()
		return runMigrations(db, migrateCmd)
	}

	ctx := context.Background()
	app, err := newApplication(ctx, cfg, appLogger, db)
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			appLogger.Error("Database close failed", "error", closeErr)
		}
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return app.Run(ctx)
}
