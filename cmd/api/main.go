// Package main is the entry point for the PhotoForge API server.
//
// It loads configuration, connects the Postgres pool and AWS clients, wires
// the domain handlers into the core chassis (middleware, routing, health
// checks), and serves HTTP until a shutdown signal arrives.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"photoforge/internal/api/handlers"
	"photoforge/internal/audit"
	"photoforge/internal/auth"
	"photoforge/internal/billing"
	"photoforge/internal/config"
	"photoforge/internal/core"
	"photoforge/internal/db"
	"photoforge/internal/external"
	"photoforge/internal/queue"
	"photoforge/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig(config.NewEnvVarProvider())
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("photoforge API starting",
		"environment", cfg.Environment,
		"service", cfg.Service,
		"port", cfg.Server.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return fmt.Errorf("loading AWS configuration: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.AWS.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
			o.UsePathStyle = true
		}
	})
	presigner := s3.NewPresignClient(s3Client)
	sqsClient := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.AWS.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
		}
	})
	cwClient := cloudwatch.NewFromConfig(awsCfg)

	// Repositories.
	subRepo := db.NewSubscriptionRepository(pool, logger)
	planRepo := db.NewPlanRepository(pool)
	userRepo := db.NewUserRepository(pool)
	usageRepo := db.NewUsageRepository(pool)
	projectRepo := db.NewProjectRepository(pool)
	presetRepo := db.NewPresetRepository(pool)
	sessionRepo := db.NewSessionRepository(pool)
	auditRepo := db.NewAuditRepository(pool)

	// Services.
	auditLog := audit.NewLog(auditRepo, nil, logger)

	sessionCfg := auth.DefaultSessionConfig()
	if cfg.Auth.SessionDuration > 0 {
		sessionCfg.SessionDuration = cfg.Auth.SessionDuration
	}
	sessionSvc := auth.NewSessionService(userRepo, sessionRepo, sessionCfg, nil, logger)
	usageSvc := billing.NewUsageService(subRepo, usageRepo, userRepo, nil, logger)

	stripeClient := external.NewStripeClient(
		&http.Client{Timeout: 20 * time.Second},
		external.StripeClientConfig{
			SecretKey: cfg.Billing.StripeSecretKey.Unmask(),
			Logger:    logger,
		},
	)
	verifier := external.NewStripeVerifier(cfg.Billing.StripeWebhookSecret.Unmask())
	assets := external.NewAssetStorage(s3Client, presigner, cfg.AWS.AssetBucket, 0, logger)
	exportTrigger := queue.NewExportTrigger(sqsClient, cfg.AWS, logger)
	metrics := telemetry.NewCloudWatchMetrics(cwClient, cfg.Observability.MetricNamespace, logger)

	// Chassis.
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.Metrics = metrics
	srv.Authenticator = sessionSvc
	srv.HealthProbes = []core.HealthProbe{db.PoolProbe{Pool: pool}}

	// Domain handlers.
	authHandler := handlers.NewAuthHandler(sessionSvc, userRepo, srv.Validator, logger)
	billingHandler := handlers.NewBillingHandler(
		stripeClient,
		planRepo,
		srv.Validator,
		cfg.Server.DashboardURL,
		auditLog,
		logger,
	)
	webhookHandler := handlers.NewStripeWebhookHandler(verifier, subRepo, auditLog, logger)
	projectHandler := handlers.NewProjectHandler(
		projectRepo,
		assets,
		exportTrigger,
		srv.Validator,
		auditLog,
		logger,
	)
	presetHandler := handlers.NewPresetHandler(presetRepo, assets, logger)
	usageHandler := handlers.NewUsageHandler(usageSvc, logger)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		authHandler.RegisterRoutes,
		billingHandler.RegisterRoutes,
		webhookHandler.RegisterRoutes,
		projectHandler.RegisterRoutes,
		presetHandler.RegisterRoutes,
		usageHandler.RegisterRoutes,
	)

	srv.MountRoutes()

	return runHTTPServer(ctx, srv, cfg, logger)
}

// runHTTPServer serves HTTP until ctx is canceled or the listener fails,
// then drains in-flight requests.
func runHTTPServer(ctx context.Context, srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler)
}
