// This file implements the checkout initiator: the synchronous half of the
// billing integration. The asynchronous half (webhook reconciliation) lives
// in stripe_webhook.go.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"photoforge/internal/core"
	"photoforge/internal/external"
	"photoforge/internal/types"
)

// CheckoutStarter abstracts the payment provider call that opens a hosted
// checkout flow.
type CheckoutStarter interface {
	CreateCheckoutSession(
		ctx context.Context,
		userID string,
		email string,
		priceID string,
		redirects external.CheckoutRedirects,
	) (sessionID string, checkoutURL string, err error)
}

// PlanLister returns the purchasable plan catalog.
type PlanLister interface {
	ListActive(ctx context.Context) ([]types.SubscriptionPlan, error)
}

// CreateCheckoutRequest is the request body for POST /v1/billing/checkout.
//
// Note: success and cancel URLs are intentionally omitted from the request.
// They are constructed server-side from the configured dashboard URL to
// prevent open redirects.
type CreateCheckoutRequest struct {
	PriceID string `json:"priceId" validate:"required"`
}

// CheckoutResponse is the response for POST /v1/billing/checkout. The client
// redirects the browser to CheckoutURL.
type CheckoutResponse struct {
	SessionID   string `json:"sessionId"`
	CheckoutURL string `json:"checkoutUrl"`
}

// BillingHandler handles synchronous billing actions initiated by the user.
type BillingHandler struct {
	checkout     CheckoutStarter
	plans        PlanLister
	validator    *core.Validator
	dashboardURL string
	audit        WebhookAuditRecorder
	logger       *slog.Logger
}

// NewBillingHandler creates a new BillingHandler with the provided
// dependencies. dashboardURL must not have a trailing slash.
func NewBillingHandler(
	checkout CheckoutStarter,
	plans PlanLister,
	v *core.Validator,
	dashboardURL string,
	audit WebhookAuditRecorder,
	logger *slog.Logger,
) *BillingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BillingHandler{
		checkout:     checkout,
		plans:        plans,
		validator:    v,
		dashboardURL: dashboardURL,
		audit:        audit,
		logger:       logger,
	}
}

// RegisterRoutes mounts the billing endpoints.
func (h *BillingHandler) RegisterRoutes(r chi.Router) {
	r.Post("/billing/checkout", h.CreateCheckout)
	r.Get("/billing/plans", h.ListPlans)
}

// CreateCheckout handles POST /v1/billing/checkout.
//
//  1. Re-derives the acting user from the session (401 happens in the auth
//     middleware before the body is ever read).
//  2. Decodes and validates the request; an empty priceId fails closed with
//     400 before any provider call is made.
//  3. Opens a subscription-mode checkout session, embedding the user ID in
//     the session metadata so the webhook reconciler can attribute the
//     resulting events. This metadata linkage is the only mechanism
//     connecting checkout to reconciliation.
//  4. Returns 201 with the opaque session ID and redirect URL. No local
//     state is persisted; provider failures surface as errors with nothing
//     to roll back.
func (h *BillingHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthTokenMissing,
			"Authentication required",
			nil,
		))
		return
	}

	var req CreateCheckoutRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	redirects := external.CheckoutRedirects{
		SuccessURL: h.dashboardURL + "/billing/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  h.dashboardURL + "/billing/canceled",
	}

	sessionID, checkoutURL, err := h.checkout.CreateCheckoutSession(
		r.Context(),
		actor.UserID,
		actor.Email,
		req.PriceID,
		redirects,
	)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "checkout session created",
		"user_id", actor.UserID,
		"price_id", req.PriceID,
		"session_id", sessionID,
	)

	if h.audit != nil {
		h.audit.Record(r.Context(), "checkout.started", actor.UserID, sessionID, map[string]any{
			"price_id": req.PriceID,
		})
	}

	core.JSON(w, r, http.StatusCreated, CheckoutResponse{
		SessionID:   sessionID,
		CheckoutURL: checkoutURL,
	})
}

// ListPlans handles GET /v1/billing/plans. Returns the active plan catalog
// for the pricing page.
func (h *BillingHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.plans.ListActive(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, map[string]any{"plans": plans})
}
