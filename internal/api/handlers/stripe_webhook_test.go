package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"photoforge/internal/external"
	"photoforge/internal/types"
)

// ---------------------------------------------------------------------------
// Mock Implementations
// ---------------------------------------------------------------------------

// mockVerifier implements SignatureVerifier for testing.
type mockVerifier struct {
	shouldFail bool
}

func (m *mockVerifier) Verify(payload []byte, header string) error {
	if m.shouldFail {
		return errors.New("signature verification failed")
	}
	return nil
}

// mockSubWriter implements SubscriptionWriter for testing.
type mockSubWriter struct {
	upserts   []types.UserSubscription
	cancels   []cancelCall
	upsertErr error
	cancelErr error
}

type cancelCall struct {
	SubscriptionID string
	EventAt        time.Time
}

func (m *mockSubWriter) Upsert(ctx context.Context, sub *types.UserSubscription) error {
	m.upserts = append(m.upserts, *sub)
	return m.upsertErr
}

func (m *mockSubWriter) MarkCanceled(ctx context.Context, subscriptionID string, eventAt time.Time) error {
	m.cancels = append(m.cancels, cancelCall{SubscriptionID: subscriptionID, EventAt: eventAt})
	return m.cancelErr
}

// mockAuditRecorder implements WebhookAuditRecorder for testing.
type mockAuditRecorder struct {
	records []auditCall
}

type auditCall struct {
	Action     string
	UserID     string
	ResourceID string
	Metadata   map[string]any
}

func (m *mockAuditRecorder) Record(ctx context.Context, action, userID, resourceID string, metadata map[string]any) {
	m.records = append(m.records, auditCall{
		Action:     action,
		UserID:     userID,
		ResourceID: resourceID,
		Metadata:   metadata,
	})
}

// ---------------------------------------------------------------------------
// Test Helpers
// ---------------------------------------------------------------------------

// buildStripeEvent creates a JSON-encoded Stripe event for testing.
func buildStripeEvent(eventType, eventID string, created int64, dataObject interface{}) []byte {
	objBytes, _ := json.Marshal(dataObject)
	event := map[string]interface{}{
		"id":      eventID,
		"type":    eventType,
		"created": created,
		"data": map[string]interface{}{
			"object": json.RawMessage(objBytes),
		},
	}
	b, _ := json.Marshal(event)
	return b
}

// buildSubscriptionEvent creates a subscription created/updated event. Pass
// an empty userID to omit the user attribution metadata.
func buildSubscriptionEvent(eventType, userID, priceID, status string, created int64) []byte {
	metadata := map[string]string{}
	if userID != "" {
		metadata["user_id"] = userID
	}
	obj := map[string]interface{}{
		"id":                 "sub_test_123",
		"customer":           "cus_test_456",
		"status":             status,
		"current_period_end": created + 30*24*3600,
		"metadata":           metadata,
		"items": map[string]interface{}{
			"data": []map[string]interface{}{
				{"price": map[string]interface{}{"id": priceID}},
			},
		},
	}
	return buildStripeEvent(eventType, "evt_sub_1", created, obj)
}

func buildSubscriptionDeletedEvent(created int64) []byte {
	obj := map[string]interface{}{
		"id":     "sub_test_123",
		"status": "canceled",
		"metadata": map[string]string{
			"user_id": "user_1",
		},
	}
	return buildStripeEvent(external.EventStripeSubDeleted, "evt_sub_del_1", created, obj)
}

func buildInvoicePaidEvent(created int64) []byte {
	obj := map[string]interface{}{
		"subscription": "sub_test_123",
		"amount_paid":  1900,
		"currency":     "usd",
		"subscription_details": map[string]interface{}{
			"metadata": map[string]string{
				"user_id": "user_1",
			},
		},
	}
	return buildStripeEvent(external.EventStripeInvoicePaid, "evt_inv_1", created, obj)
}

func newTestWebhookHandler(verifier *mockVerifier, subs *mockSubWriter, audit *mockAuditRecorder) *StripeWebhookHandler {
	// Pass a true nil interface when no mock is supplied; a typed-nil
	// *mockAuditRecorder would defeat the handler's nil check.
	var recorder WebhookAuditRecorder
	if audit != nil {
		recorder = audit
	}
	return NewStripeWebhookHandler(verifier, subs, recorder, nil)
}

func doWebhookRequest(handler *StripeWebhookHandler, body []byte, sigHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(body))
	if sigHeader != "" {
		req.Header.Set("Stripe-Signature", sigHeader)
	}
	rr := httptest.NewRecorder()
	handler.Handle(rr, req)
	return rr
}

// ---------------------------------------------------------------------------
// Tests: Signature Verification
// ---------------------------------------------------------------------------

func TestStripeWebhookHandler_Handle_MissingSignature(t *testing.T) {
	subs := &mockSubWriter{}
	handler := newTestWebhookHandler(&mockVerifier{}, subs, nil)

	body := buildSubscriptionEvent(external.EventStripeSubCreated, "user_1", "price_pro_monthly", "active", time.Now().Unix())
	rr := doWebhookRequest(handler, body, "")

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
	// Plain-text error, not the JSON envelope.
	if ct := rr.Header().Get("Content-Type"); strings.Contains(ct, "application/json") {
		t.Errorf("expected plain-text error, got content type %q", ct)
	}
	if len(subs.upserts) != 0 {
		t.Errorf("expected no state mutation, got %d upserts", len(subs.upserts))
	}
}

func TestStripeWebhookHandler_Handle_InvalidSignature(t *testing.T) {
	subs := &mockSubWriter{}
	handler := newTestWebhookHandler(&mockVerifier{shouldFail: true}, subs, nil)

	body := buildSubscriptionEvent(external.EventStripeSubCreated, "user_1", "price_pro_monthly", "active", time.Now().Unix())
	rr := doWebhookRequest(handler, body, "t=12345,v1=bad_signature")

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
	if len(subs.upserts) != 0 || len(subs.cancels) != 0 {
		t.Error("expected no state mutation on signature failure")
	}
}

func TestStripeWebhookHandler_Handle_MalformedJSON(t *testing.T) {
	handler := newTestWebhookHandler(&mockVerifier{}, &mockSubWriter{}, nil)

	rr := doWebhookRequest(handler, []byte("{not json"), "t=12345,v1=valid")

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
}

// ---------------------------------------------------------------------------
// Tests: Event Routing
// ---------------------------------------------------------------------------

func TestStripeWebhookHandler_Handle_SubscriptionCreated(t *testing.T) {
	subs := &mockSubWriter{}
	audit := &mockAuditRecorder{}
	handler := newTestWebhookHandler(&mockVerifier{}, subs, audit)

	now := time.Now().Unix()
	body := buildSubscriptionEvent(external.EventStripeSubCreated, "user_42", "price_creator_monthly", "active", now)
	rr := doWebhookRequest(handler, body, "t=12345,v1=valid")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d; body: %s", http.StatusOK, rr.Code, rr.Body.String())
	}

	var resp map[string]bool
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp["received"] {
		t.Errorf("expected body {\"received\": true}, got %s", rr.Body.String())
	}

	if len(subs.upserts) != 1 {
		t.Fatalf("expected 1 upsert, got %d", len(subs.upserts))
	}
	got := subs.upserts[0]
	if got.ID != "sub_test_123" {
		t.Errorf("expected subscription ID %q, got %q", "sub_test_123", got.ID)
	}
	if got.UserID != "user_42" {
		t.Errorf("expected user ID %q, got %q", "user_42", got.UserID)
	}
	if got.PriceID != "price_creator_monthly" {
		t.Errorf("expected price ID %q, got %q", "price_creator_monthly", got.PriceID)
	}
	if got.StripeCustomerID != "cus_test_456" {
		t.Errorf("expected customer ID %q, got %q", "cus_test_456", got.StripeCustomerID)
	}
	if got.Status != types.SubStatusActive {
		t.Errorf("expected status %q, got %q", types.SubStatusActive, got.Status)
	}
	wantEventAt := time.Unix(now, 0).UTC()
	if !got.LastEventAt.Equal(wantEventAt) {
		t.Errorf("expected event timestamp %v, got %v", wantEventAt, got.LastEventAt)
	}
	wantPeriodEnd := time.Unix(now+30*24*3600, 0).UTC()
	if !got.CurrentPeriodEnd.Equal(wantPeriodEnd) {
		t.Errorf("expected period end %v, got %v", wantPeriodEnd, got.CurrentPeriodEnd)
	}

	if len(audit.records) != 1 || audit.records[0].Action != "subscription.reconciled" {
		t.Errorf("expected one subscription.reconciled audit record, got %+v", audit.records)
	}
}

func TestStripeWebhookHandler_Handle_ReplayIsIdempotent(t *testing.T) {
	subs := &mockSubWriter{}
	handler := newTestWebhookHandler(&mockVerifier{}, subs, nil)

	now := time.Now().Unix()
	body := buildSubscriptionEvent(external.EventStripeSubUpdated, "user_42", "price_pro_monthly", "past_due", now)

	for i := 0; i < 2; i++ {
		rr := doWebhookRequest(handler, body, "t=12345,v1=valid")
		if rr.Code != http.StatusOK {
			t.Fatalf("delivery %d: expected status %d, got %d", i+1, http.StatusOK, rr.Code)
		}
	}

	// Both deliveries produce the identical upsert; the repository's keyed
	// upsert makes applying it twice equivalent to applying it once.
	if len(subs.upserts) != 2 {
		t.Fatalf("expected 2 upserts, got %d", len(subs.upserts))
	}
	if subs.upserts[0] != subs.upserts[1] {
		t.Errorf("replayed event produced a different record: %+v vs %+v", subs.upserts[0], subs.upserts[1])
	}
}

func TestStripeWebhookHandler_Handle_MissingUserMetadata(t *testing.T) {
	subs := &mockSubWriter{}
	handler := newTestWebhookHandler(&mockVerifier{}, subs, nil)

	body := buildSubscriptionEvent(external.EventStripeSubCreated, "", "price_pro_monthly", "active", time.Now().Unix())
	rr := doWebhookRequest(handler, body, "t=12345,v1=valid")

	// Unattributable events are acknowledged and dropped, not errors.
	if rr.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if len(subs.upserts) != 0 {
		t.Errorf("expected no upsert for unattributable event, got %d", len(subs.upserts))
	}
}

func TestStripeWebhookHandler_Handle_SubscriptionDeleted(t *testing.T) {
	subs := &mockSubWriter{}
	handler := newTestWebhookHandler(&mockVerifier{}, subs, nil)

	now := time.Now().Unix()
	rr := doWebhookRequest(handler, buildSubscriptionDeletedEvent(now), "t=12345,v1=valid")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if len(subs.cancels) != 1 {
		t.Fatalf("expected 1 MarkCanceled call, got %d", len(subs.cancels))
	}
	if subs.cancels[0].SubscriptionID != "sub_test_123" {
		t.Errorf("expected subscription ID %q, got %q", "sub_test_123", subs.cancels[0].SubscriptionID)
	}
	if want := time.Unix(now, 0).UTC(); !subs.cancels[0].EventAt.Equal(want) {
		t.Errorf("expected event time %v, got %v", want, subs.cancels[0].EventAt)
	}
}

func TestStripeWebhookHandler_Handle_InvoicePaid(t *testing.T) {
	subs := &mockSubWriter{}
	audit := &mockAuditRecorder{}
	handler := newTestWebhookHandler(&mockVerifier{}, subs, audit)

	rr := doWebhookRequest(handler, buildInvoicePaidEvent(time.Now().Unix()), "t=12345,v1=valid")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	// Informational: audit only, no subscription mutation.
	if len(subs.upserts) != 0 || len(subs.cancels) != 0 {
		t.Error("expected no subscription mutation for invoice.payment_succeeded")
	}
	if len(audit.records) != 1 {
		t.Fatalf("expected 1 audit record, got %d", len(audit.records))
	}
	if audit.records[0].Action != "invoice.paid" || audit.records[0].UserID != "user_1" {
		t.Errorf("unexpected audit record: %+v", audit.records[0])
	}
}

func TestStripeWebhookHandler_Handle_UnknownEventType(t *testing.T) {
	subs := &mockSubWriter{}
	handler := newTestWebhookHandler(&mockVerifier{}, subs, nil)

	body := buildStripeEvent("charge.refunded", "evt_other", time.Now().Unix(), map[string]any{"id": "ch_1"})
	rr := doWebhookRequest(handler, body, "t=12345,v1=valid")

	if rr.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if len(subs.upserts) != 0 || len(subs.cancels) != 0 {
		t.Error("expected unknown event type to be ignored")
	}
}

func TestStripeWebhookHandler_Handle_UpsertFailureTriggersRedelivery(t *testing.T) {
	subs := &mockSubWriter{upsertErr: types.NewAppError(
		types.ErrCodeInternalDB,
		"failed to upsert subscription",
		errors.New("db down"),
	)}
	handler := newTestWebhookHandler(&mockVerifier{}, subs, nil)

	body := buildSubscriptionEvent(external.EventStripeSubCreated, "user_1", "price_pro_monthly", "active", time.Now().Unix())
	rr := doWebhookRequest(handler, body, "t=12345,v1=valid")

	// A non-2xx is what makes Stripe redeliver; acknowledging here would
	// lose the event and desynchronize local subscription state.
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("expected status %d after processing failure, got %d", http.StatusInternalServerError, rr.Code)
	}
	if strings.Contains(rr.Body.String(), "received") {
		t.Errorf("expected an error response, got acknowledgment: %s", rr.Body.String())
	}
}

func TestStripeWebhookHandler_Handle_CancelFailureTriggersRedelivery(t *testing.T) {
	subs := &mockSubWriter{cancelErr: types.NewAppError(
		types.ErrCodeInternalDB,
		"failed to mark subscription canceled",
		errors.New("db down"),
	)}
	handler := newTestWebhookHandler(&mockVerifier{}, subs, nil)

	rr := doWebhookRequest(handler, buildSubscriptionDeletedEvent(time.Now().Unix()), "t=12345,v1=valid")

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("expected status %d after processing failure, got %d", http.StatusInternalServerError, rr.Code)
	}
}
