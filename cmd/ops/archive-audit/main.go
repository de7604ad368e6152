// Package main implements the audit archive sweep.
//
// It moves audit events older than the retention window into gzipped JSONL
// objects in the archive bucket and prunes them from the database. Intended
// to run on a schedule (EventBridge or cron).
//
// Usage:
//
//	go run ./cmd/ops/archive-audit --retention=2160h
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"photoforge/internal/audit"
	"photoforge/internal/db"
	"photoforge/internal/external"
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
	bucket := flag.String("bucket", os.Getenv("ARCHIVE_BUCKET"), "Archive bucket (default: ARCHIVE_BUCKET)")
	retention := flag.Duration("retention", 90*24*time.Hour, "Retention window; events older than this are archived")
	batchSize := flag.Int("batch-size", 0, "Events per sweep (0 uses the default)")
	flag.Parse()

	if *databaseURL == "" {
		return fmt.Errorf("a database URL is required (--database-url or DATABASE_URL)")
	}
	if *bucket == "" {
		return fmt.Errorf("an archive bucket is required (--bucket or ARCHIVE_BUCKET)")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := pgxpool.New(ctx, *databaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("loading AWS configuration: %w", err)
	}

	endpoint := os.Getenv("AWS_ENDPOINT_URL")
	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	presigner := s3.NewPresignClient(s3Client)
	storage := external.NewAssetStorage(s3Client, presigner, *bucket, 0, logger)

	archiver := audit.NewArchiver(
		db.NewAuditRepository(pool),
		storage,
		*retention,
		*batchSize,
		nil,
		logger,
	)

	archived, pruned, err := archiver.Run(ctx)
	if err != nil {
		return fmt.Errorf("archive sweep: %w", err)
	}

	logger.Info("archive sweep finished", "archived", archived, "pruned", pruned)
	return nil
}
