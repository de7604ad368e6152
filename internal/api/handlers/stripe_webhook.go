// Package handlers contains the HTTP handler implementations for the
// PhotoForge API.
//
// This file implements the Stripe webhook reconciler. The handler is NOT
// behind auth middleware -- it is called directly by Stripe. Security is
// provided by verifying the Stripe-Signature header against the endpoint
// signing secret before any payload content is trusted.
package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"photoforge/internal/core"
	"photoforge/internal/external"
	"photoforge/internal/types"
)

// maxWebhookBodySize is the maximum allowed size of a Stripe webhook payload
// (64 KB). Stripe payloads are small; the limit protects against abuse.
const maxWebhookBodySize = 64 * 1024

// ---------------------------------------------------------------------------
// Interfaces for webhook handler dependencies
// ---------------------------------------------------------------------------

// SignatureVerifier validates a raw webhook payload against its signature
// header before any payload content is trusted.
type SignatureVerifier interface {
	Verify(payload []byte, signatureHeader string) error
}

// SubscriptionWriter is the subset of db.SubscriptionRepository the
// reconciler mutates local state through.
type SubscriptionWriter interface {
	// Upsert writes the subscription keyed by Stripe's own subscription ID.
	// Events older than the stored row are dropped by the repository.
	Upsert(ctx context.Context, sub *types.UserSubscription) error

	// MarkCanceled sets status=canceled; an unknown subscription ID is a
	// no-op, not an error.
	MarkCanceled(ctx context.Context, subscriptionID string, eventAt time.Time) error
}

// WebhookAuditRecorder appends billing audit events. Recording is best
// effort and never fails the webhook.
type WebhookAuditRecorder interface {
	Record(ctx context.Context, action, userID, resourceID string, metadata map[string]any)
}

// ---------------------------------------------------------------------------
// Stripe Webhook Handler
// ---------------------------------------------------------------------------

// StripeWebhookHandler consumes asynchronous billing events from Stripe and
// applies idempotent updates to the local subscription records.
type StripeWebhookHandler struct {
	verifier SignatureVerifier
	subs     SubscriptionWriter
	audit    WebhookAuditRecorder
	logger   *slog.Logger
}

// NewStripeWebhookHandler creates a new StripeWebhookHandler with the
// provided dependencies. The audit recorder may be nil.
func NewStripeWebhookHandler(
	verifier SignatureVerifier,
	subs SubscriptionWriter,
	audit WebhookAuditRecorder,
	logger *slog.Logger,
) *StripeWebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StripeWebhookHandler{
		verifier: verifier,
		subs:     subs,
		audit:    audit,
		logger:   logger,
	}
}

// RegisterRoutes mounts the Stripe webhook endpoint. This is separate from
// BillingHandler.RegisterRoutes because the webhook route is public (no auth
// middleware).
func (h *StripeWebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/webhooks/stripe", h.Handle)
}

// Handle processes incoming Stripe webhook events.
//
//  1. Reads the raw body and the Stripe-Signature header.
//  2. Verifies the signature using the webhook signing secret. Failures
//     terminate the request with a plain-text 400 and no state mutation.
//  3. Parses the event JSON and routes by event type.
//  4. Returns 200 with {"received": true} on success. Deliberate no-ops
//     (missing user attribution, unknown subscription IDs, unrecognized
//     event types) are acknowledged the same way. Database failures return
//     a 5xx so Stripe redelivers the event; its retry policy is the sole
//     recovery mechanism.
func (h *StripeWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.WarnContext(r.Context(), "failed to read webhook body",
			"error", err,
		)
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if sigHeader == "" {
		h.logger.WarnContext(r.Context(), "missing Stripe-Signature header")
		http.Error(w, "missing Stripe-Signature header", http.StatusBadRequest)
		return
	}

	if err := h.verifier.Verify(payload, sigHeader); err != nil {
		h.logger.WarnContext(r.Context(), "webhook signature verification failed",
			"error", err,
		)
		http.Error(w, "webhook signature verification failed", http.StatusBadRequest)
		return
	}

	var event stripeWebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to parse webhook event JSON",
			"error", err,
		)
		http.Error(w, "invalid webhook event payload", http.StatusBadRequest)
		return
	}

	h.logger.InfoContext(r.Context(), "processing stripe webhook event",
		"event_id", event.ID,
		"event_type", event.Type,
	)

	if err := h.routeEvent(r.Context(), &event); err != nil {
		h.logger.ErrorContext(r.Context(), "webhook event processing failed",
			"event_id", event.ID,
			"event_type", event.Type,
			"error", err,
		)
		// Non-2xx makes Stripe redeliver; the event must not be lost.
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, map[string]bool{"received": true})
}

// routeEvent dispatches the webhook event by type. Unrecognized types are
// acknowledged without processing.
func (h *StripeWebhookHandler) routeEvent(ctx context.Context, event *stripeWebhookEvent) error {
	switch event.Type {
	case external.EventStripeSubCreated, external.EventStripeSubUpdated:
		return h.handleSubscriptionChange(ctx, event)

	case external.EventStripeSubDeleted:
		return h.handleSubscriptionDeleted(ctx, event)

	case external.EventStripeInvoicePaid:
		return h.handleInvoicePaid(ctx, event)

	default:
		h.logger.InfoContext(ctx, "ignoring unhandled webhook event type",
			"event_type", event.Type,
		)
		return nil
	}
}

// handleSubscriptionChange processes customer.subscription.created and
// customer.subscription.updated events by upserting the local record keyed
// by Stripe's subscription ID.
//
// An event without a user_id in its subscription metadata cannot be
// attributed to an account and is deliberately dropped: logged, no row
// written, no error returned.
func (h *StripeWebhookHandler) handleSubscriptionChange(ctx context.Context, event *stripeWebhookEvent) error {
	sub, err := event.subscriptionObject()
	if err != nil {
		return err
	}

	userID := sub.Metadata["user_id"]
	if userID == "" {
		h.logger.WarnContext(ctx, "ignoring subscription event without user attribution",
			"event_id", event.ID,
			"subscription_id", sub.ID,
		)
		return nil
	}

	record := &types.UserSubscription{
		ID:               sub.ID,
		UserID:           userID,
		PriceID:          sub.priceID(),
		StripeCustomerID: sub.Customer,
		Status:           types.ParseSubscriptionStatus(sub.Status),
		CurrentPeriodEnd: time.Unix(sub.CurrentPeriodEnd, 0).UTC(),
		LastEventAt:      event.eventTimestamp(),
	}

	if err := h.subs.Upsert(ctx, record); err != nil {
		return err
	}

	h.recordAudit(ctx, "subscription.reconciled", userID, sub.ID, map[string]any{
		"event_type": event.Type,
		"status":     string(record.Status),
		"price_id":   record.PriceID,
	})
	return nil
}

// handleSubscriptionDeleted processes customer.subscription.deleted events.
// An unknown subscription ID is a no-op inside MarkCanceled.
func (h *StripeWebhookHandler) handleSubscriptionDeleted(ctx context.Context, event *stripeWebhookEvent) error {
	sub, err := event.subscriptionObject()
	if err != nil {
		return err
	}

	if err := h.subs.MarkCanceled(ctx, sub.ID, event.eventTimestamp()); err != nil {
		return err
	}

	h.recordAudit(ctx, "subscription.canceled", sub.Metadata["user_id"], sub.ID, nil)
	return nil
}

// handleInvoicePaid processes invoice.payment_succeeded events. These are
// informational: no state mutation beyond the audit trail.
func (h *StripeWebhookHandler) handleInvoicePaid(ctx context.Context, event *stripeWebhookEvent) error {
	invoice, err := event.invoiceObject()
	if err != nil {
		return err
	}

	var userID string
	if invoice.SubscriptionDetails != nil {
		userID = invoice.SubscriptionDetails.Metadata["user_id"]
	}

	h.logger.InfoContext(ctx, "invoice payment succeeded",
		"event_id", event.ID,
		"subscription_id", invoice.Subscription,
		"amount_paid", invoice.AmountPaid,
	)

	h.recordAudit(ctx, "invoice.paid", userID, invoice.Subscription, map[string]any{
		"amount_paid": invoice.AmountPaid,
		"currency":    invoice.Currency,
	})
	return nil
}

// recordAudit appends an audit event if a recorder is wired.
func (h *StripeWebhookHandler) recordAudit(ctx context.Context, action, userID, resourceID string, metadata map[string]any) {
	if h.audit == nil {
		return
	}
	h.audit.Record(ctx, action, userID, resourceID, metadata)
}

// ---------------------------------------------------------------------------
// Stripe Event Parsing
// ---------------------------------------------------------------------------

// stripeWebhookEvent is a minimal representation of a Stripe webhook event
// tailored to the fields the reconciler needs. We avoid importing the full
// stripe.Event type to keep the handler decoupled from the stripe-go library
// and to make testing straightforward.
type stripeWebhookEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    json.RawMessage `json:"data"`
}

// stripeEventData wraps the event data object.
type stripeEventData struct {
	Object json.RawMessage `json:"object"`
}

// stripeSubscriptionObj carries the minimal fields from a subscription
// event's data object.
type stripeSubscriptionObj struct {
	ID               string            `json:"id"`
	Customer         string            `json:"customer"`
	Status           string            `json:"status"`
	CurrentPeriodEnd int64             `json:"current_period_end"`
	Metadata         map[string]string `json:"metadata"`
	Items            stripeSubItems    `json:"items"`
}

type stripeSubItems struct {
	Data []stripeSubItem `json:"data"`
}

type stripeSubItem struct {
	Price stripeSubPrice `json:"price"`
}

type stripeSubPrice struct {
	ID string `json:"id"`
}

// stripeInvoiceObj carries the minimal fields from an invoice event's data
// object.
type stripeInvoiceObj struct {
	Subscription        string            `json:"subscription"`
	AmountPaid          int64             `json:"amount_paid"`
	Currency            string            `json:"currency"`
	Metadata            map[string]string `json:"metadata"`
	SubscriptionDetails *stripeSubDetails `json:"subscription_details"`
}

type stripeSubDetails struct {
	Metadata map[string]string `json:"metadata"`
}

// eventTimestamp returns the event's created timestamp as a time.Time. It is
// what the repository compares against to drop out-of-order deliveries.
func (e *stripeWebhookEvent) eventTimestamp() time.Time {
	return time.Unix(e.Created, 0).UTC()
}

// subscriptionObject unwraps data.object into a subscription.
func (e *stripeWebhookEvent) subscriptionObject() (*stripeSubscriptionObj, error) {
	var data stripeEventData
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return nil, err
	}
	var sub stripeSubscriptionObj
	if err := json.Unmarshal(data.Object, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// invoiceObject unwraps data.object into an invoice.
func (e *stripeWebhookEvent) invoiceObject() (*stripeInvoiceObj, error) {
	var data stripeEventData
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return nil, err
	}
	var invoice stripeInvoiceObj
	if err := json.Unmarshal(data.Object, &invoice); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// priceID returns the first item's price ID, empty when absent.
func (s *stripeSubscriptionObj) priceID() string {
	if len(s.Items.Data) == 0 {
		return ""
	}
	return s.Items.Data[0].Price.ID
}
