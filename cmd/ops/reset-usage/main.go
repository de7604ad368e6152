// Package main implements the usage reset tool.
//
// It zeroes the current calendar-month upload counter for a single user,
// resolved by email. A user with no usage row this period is a no-op with an
// informational outcome, not an error.
//
// Usage:
//
//	go run ./cmd/ops/reset-usage --email=ansel@example.com
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
	_ = godotenv.Load()

	databaseURL := flag.String("database-url", os.Getenv("DATABASE_URL"), "Postgres connection string (default: DATABASE_URL)")
	email := flag.String("email", "", "Email of the user whose usage should be reset [required]")
	flag.Parse()

	if *email == "" {
		return fmt.Errorf("--email is required")
	}
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

	usage := billing.NewUsageService(
		db.NewSubscriptionRepository(pool, logger),
		db.NewUsageRepository(pool),
		db.NewUserRepository(pool),
		nil,
		logger,
	)

	found, err := usage.ResetByEmail(ctx, *email)
	if err != nil {
		return fmt.Errorf("resetting usage for %s: %w", *email, err)
	}

	if found {
		logger.Info("usage counter reset", "email", *email)
	} else {
		logger.Info("no usage row for the current period; nothing to reset", "email", *email)
	}
	return nil
}
