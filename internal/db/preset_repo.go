package db

import (
	"context"

	"photoforge/internal/types"
)

// PresetRepository reads the curated preset gallery. Presets are managed
// out of band; the API only lists them.
type PresetRepository struct {
	db DBTX
}

// NewPresetRepository creates a preset repository.
func NewPresetRepository(db DBTX) *PresetRepository {
	return &PresetRepository{db: db}
}

// ListActive returns active presets in display order.
func (r *PresetRepository) ListActive(ctx context.Context) ([]types.Preset, error) {
	query := `
		SELECT id, name, description, thumbnail_key, sort_order,
		       active, prompt_template, negative_prompt, created_at
		FROM presets
		WHERE active = TRUE
		ORDER BY sort_order ASC, name ASC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list presets", err)
	}
	defer rows.Close()

	var presets []types.Preset
	for rows.Next() {
		var p types.Preset
		if err := rows.Scan(
			&p.ID,
			&p.Name,
			&p.Description,
			&p.ThumbnailKey,
			&p.SortOrder,
			&p.Active,
			&p.PromptTemplate,
			&p.NegativePrompt,
			&p.CreatedAt,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan preset", err)
		}
		presets = append(presets, p)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate presets", err)
	}

	return presets, nil
}
