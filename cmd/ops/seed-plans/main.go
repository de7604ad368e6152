// Package main implements the plan catalog seeding tool.
//
// Seeding is idempotent: each catalog plan is inserted only if no plan of
// that name already exists, so the tool is safe to run on every deploy.
//
// Usage:
//
//	go run ./cmd/ops/seed-plans
//	go run ./cmd/ops/seed-plans --database-url=postgres://...
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"photoforge/internal/billing"
	"photoforge/internal/db"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Best effort: local runs pick up .env, deployed runs use real env vars.
	_ = godotenv.Load()

	databaseURL := flag.String("database-url", os.Getenv("DATABASE_URL"), "Postgres connection string (default: DATABASE_URL)")
	flag.Parse()

	if *databaseURL == "" {
		return fmt.Errorf("a database URL is required (--database-url or DATABASE_URL)")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, *databaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	catalog := billing.Catalog()
	inserted, err := db.NewPlanRepository(pool).Seed(ctx, catalog)
	if err != nil {
		return fmt.Errorf("seeding plans: %w", err)
	}

	logger.Info("plan catalog seeded",
		"catalog_size", len(catalog),
		"inserted", inserted,
		"skipped", len(catalog)-inserted,
	)
	return nil
}
