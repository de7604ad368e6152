package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"photoforge/internal/billing"
	"photoforge/internal/core"
)

// UsageSummarizer reports a user's quota state for the current period.
type UsageSummarizer interface {
	Summary(ctx context.Context, userID string) (*billing.UsageSummary, error)
}

// UsageHandler serves the caller's upload quota summary.
type UsageHandler struct {
	usage  UsageSummarizer
	logger *slog.Logger
}

// NewUsageHandler creates a usage handler.
func NewUsageHandler(usage UsageSummarizer, logger *slog.Logger) *UsageHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UsageHandler{usage: usage, logger: logger}
}

// RegisterRoutes registers usage routes on the given router.
func (h *UsageHandler) RegisterRoutes(r chi.Router) {
	r.Get("/usage", h.Get)
}

// Get returns the authenticated user's plan and upload consumption for the
// current calendar-month period.
func (h *UsageHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	summary, err := h.usage.Summary(r.Context(), actor.UserID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to build usage summary",
			"user_id", actor.UserID,
			"error", err,
		)
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, summary)
}
