// This file implements the public presets gallery endpoint.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"photoforge/internal/core"
	"photoforge/internal/types"
)

// PresetLister returns active presets in gallery order.
type PresetLister interface {
	ListActive(ctx context.Context) ([]types.Preset, error)
}

// PresetHandler serves the preset gallery. The route is public; prompt
// construction fields never leave the server (excluded at the JSON layer).
type PresetHandler struct {
	presets PresetLister
	assets  AssetURLBuilder
	logger  *slog.Logger
}

// NewPresetHandler creates a new PresetHandler.
func NewPresetHandler(presets PresetLister, assets AssetURLBuilder, logger *slog.Logger) *PresetHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PresetHandler{presets: presets, assets: assets, logger: logger}
}

// RegisterRoutes mounts the presets endpoint.
func (h *PresetHandler) RegisterRoutes(r chi.Router) {
	r.Get("/presets", h.List)
}

// List handles GET /v1/presets. Thumbnails get constructed delivery URLs;
// a URL construction failure degrades to the bare preset.
func (h *PresetHandler) List(w http.ResponseWriter, r *http.Request) {
	presets, err := h.presets.ListActive(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	out := make([]presetView, 0, len(presets))
	for i := range presets {
		view := presetView{Preset: &presets[i]}
		if h.assets != nil {
			url, err := h.assets.DeliveryURL(r.Context(), presets[i].ThumbnailKey)
			if err != nil {
				h.logger.WarnContext(r.Context(), "failed to build preset thumbnail URL",
					"preset_id", presets[i].ID,
					"error", err,
				)
			} else {
				view.ThumbnailURL = url
			}
		}
		out = append(out, view)
	}

	core.JSON(w, r, http.StatusOK, map[string]any{"presets": out})
}

// presetView augments a preset with its constructed thumbnail URL.
type presetView struct {
	*types.Preset
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}
