// Package core provides the API chassis for the PhotoForge backend.
// It builds the chi router and enforces cross-cutting concerns -- panic
// recovery, request correlation, logging, metrics, and authentication --
// before requests reach domain handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"photoforge/internal/config"
	"photoforge/internal/types"
)

// MetricsCollector records API telemetry. The production implementation
// publishes to CloudWatch; tests use a no-op.
type MetricsCollector interface {
	// RecordRequest records latency and count for a completed request.
	RecordRequest(method, endpoint, status string, duration time.Duration)
}

// Authenticator resolves a bearer session token to the acting user.
type Authenticator interface {
	ResolveToken(ctx context.Context, token string) (*types.Actor, error)
}

// Server encapsulates the dependencies of the HTTP API, allowing injection
// during testing and distinct wiring per environment.
type Server struct {
	Config        *config.Config
	Logger        *slog.Logger
	Validator     *Validator
	Metrics       MetricsCollector
	Authenticator Authenticator
	HealthProbes  []HealthProbe

	// V1RouteRegistrars are invoked under /v1 when MountRoutes runs. Domain
	// handlers register themselves through this slice to avoid an import
	// cycle between core and the handler packages.
	V1RouteRegistrars []func(chi.Router)

	router *chi.Mux
}

// NewServer initializes the chassis. Route mounting is a separate step
// (MountRoutes) so tests can customize registration.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the http.Handler for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration in tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown performs a graceful termination of server-held resources.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")
	return nil
}
