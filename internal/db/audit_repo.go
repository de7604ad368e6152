package db

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"photoforge/internal/types"
)

// AuditRepository appends billing audit events and supports the archival
// sweep that moves old rows to cold storage.
type AuditRepository struct {
	db DBTX
}

// NewAuditRepository creates an audit repository.
func NewAuditRepository(db DBTX) *AuditRepository {
	return &AuditRepository{db: db}
}

// Insert appends one audit event. The ID is assigned here when absent.
func (r *AuditRepository) Insert(ctx context.Context, event *types.AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	var metadata []byte
	if event.Metadata != nil {
		var err error
		metadata, err = json.Marshal(event.Metadata)
		if err != nil {
			return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode audit metadata", err)
		}
	}

	query := `
		INSERT INTO audit_events (id, user_id, action, resource_id, metadata, occurred_at)
		VALUES ($1, NULLIF($2, ''), $3, NULLIF($4, ''), $5, $6)`

	_, err := r.db.Exec(ctx, query,
		event.ID,
		event.UserID,
		event.Action,
		event.ResourceID,
		metadata,
		event.OccurredAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert audit event", err)
	}

	return nil
}

// ListOlderThan streams up to limit events that occurred before the cutoff,
// oldest first, for archival.
func (r *AuditRepository) ListOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]types.AuditEvent, error) {
	query := `
		SELECT id, COALESCE(user_id, ''), action, COALESCE(resource_id, ''), metadata, occurred_at
		FROM audit_events
		WHERE occurred_at < $1
		ORDER BY occurred_at ASC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list audit events", err)
	}
	defer rows.Close()

	var events []types.AuditEvent
	for rows.Next() {
		var event types.AuditEvent
		var metadata []byte
		if err := rows.Scan(
			&event.ID,
			&event.UserID,
			&event.Action,
			&event.ResourceID,
			&metadata,
			&event.OccurredAt,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan audit event", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &event.Metadata); err != nil {
				return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to decode audit metadata", err)
			}
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate audit events", err)
	}

	return events, nil
}

// DeleteOlderThan removes events that occurred before the cutoff after they
// have been archived. Returns the number of rows removed.
func (r *AuditRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM audit_events WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to prune audit events", err)
	}
	return tag.RowsAffected(), nil
}
