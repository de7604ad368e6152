// Package audit records business-significant billing events and archives
// them to cold storage.
package audit

import (
	"context"
	"log/slog"
	"time"

	"photoforge/internal/types"
)

// Store is the persistence surface for audit events.
type Store interface {
	Insert(ctx context.Context, event *types.AuditEvent) error
	ListOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]types.AuditEvent, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Log appends audit events. Recording is best effort: a failed insert is
// logged but never fails the business operation that triggered it.
type Log struct {
	store  Store
	clock  types.Clock
	logger *slog.Logger
}

// NewLog creates an audit log.
func NewLog(store Store, clock types.Clock, logger *slog.Logger) *Log {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{store: store, clock: clock, logger: logger}
}

// Record appends one event. userID and resourceID may be empty for system
// actions.
func (l *Log) Record(ctx context.Context, action, userID, resourceID string, metadata map[string]any) {
	event := &types.AuditEvent{
		UserID:     userID,
		Action:     action,
		ResourceID: resourceID,
		Metadata:   metadata,
		OccurredAt: l.clock.Now(),
	}

	if err := l.store.Insert(ctx, event); err != nil {
		l.logger.ErrorContext(ctx, "failed to record audit event",
			"action", action,
			"user_id", userID,
			"error", err,
		)
	}
}
