package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"photoforge/internal/types"
)

// mockPresetLister implements PresetLister for testing.
type mockPresetLister struct {
	presets []types.Preset
	err     error
}

func (m *mockPresetLister) ListActive(ctx context.Context) ([]types.Preset, error) {
	return m.presets, m.err
}

func TestPresetList_ExcludesPromptFields(t *testing.T) {
	lister := &mockPresetLister{presets: []types.Preset{
		{
			ID:             "pre_1",
			Name:           "Golden Hour",
			Description:    "Warm sunset tones",
			ThumbnailKey:   "presets/golden.jpg",
			SortOrder:      1,
			Active:         true,
			PromptTemplate: "cinematic warm light, {subject}",
			NegativePrompt: "overexposed",
		},
		{
			ID:           "pre_2",
			Name:         "Noir",
			ThumbnailKey: "presets/noir.jpg",
			SortOrder:    2,
			Active:       true,
		},
	}}
	handler := NewPresetHandler(lister, &mockAssets{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/presets", nil)
	rr := httptest.NewRecorder()
	handler.List(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}

	body := rr.Body.String()
	// Prompt construction internals never leave the server.
	if strings.Contains(body, "cinematic warm light") || strings.Contains(body, "overexposed") {
		t.Errorf("prompt fields leaked into response: %s", body)
	}

	var resp struct {
		Presets []struct {
			ID           string `json:"id"`
			Name         string `json:"name"`
			ThumbnailURL string `json:"thumbnail_url"`
		} `json:"presets"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Presets) != 2 {
		t.Fatalf("expected 2 presets, got %d", len(resp.Presets))
	}
	if resp.Presets[0].ID != "pre_1" || resp.Presets[1].ID != "pre_2" {
		t.Errorf("presets out of order: %+v", resp.Presets)
	}
	if resp.Presets[0].ThumbnailURL == "" {
		t.Error("expected constructed thumbnail URL")
	}
}

func TestPresetList_StoreFailure(t *testing.T) {
	lister := &mockPresetLister{err: types.NewAppError(types.ErrCodeInternalDB, "query failed", nil)}
	handler := NewPresetHandler(lister, &mockAssets{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/presets", nil)
	rr := httptest.NewRecorder()
	handler.List(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("expected status %d, got %d", http.StatusInternalServerError, rr.Code)
	}
}
