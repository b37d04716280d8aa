package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx driver for database/sql

	"github.com/echoscribe/echoscribe-api/internal/config"
)

// openDatabase opens the postgres pool and verifies it with a bounded ping.
func openDatabase(cfg *config.Config, logger *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Pool sizing follows the worker count: every pipeline worker holds a
	// connection during stage persistence, and HTTP handlers need headroom
	// on top of that.
	maxOpen := cfg.Pipeline.WorkerCount + 8
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen / 2)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("Database pool ready", "max_open_conns", maxOpen)
	return db, nil
}
