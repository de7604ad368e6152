package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/klauspost/compress/gzip"

	"photoforge/internal/types"
)

// defaultBatchSize caps how many events one archive run drains.
const defaultBatchSize = 10000

// ArchiveStorage is the cold-storage surface the archiver writes to.
type ArchiveStorage interface {
	Store(ctx context.Context, key string, body io.Reader, contentType string) error
}

// Archiver moves audit events older than the retention window into a
// gzipped JSONL object in the archive bucket, then prunes them from the
// database. Events are only deleted after the archive object is durably
// stored.
type Archiver struct {
	store     Store
	storage   ArchiveStorage
	retention time.Duration
	batchSize int
	clock     types.Clock
	logger    *slog.Logger
}

// NewArchiver creates an archiver. A non-positive batchSize falls back to
// the default.
func NewArchiver(store Store, storage ArchiveStorage, retention time.Duration, batchSize int, clock types.Clock, logger *slog.Logger) *Archiver {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{
		store:     store,
		storage:   storage,
		retention: retention,
		batchSize: batchSize,
		clock:     clock,
		logger:    logger,
	}
}

// Run performs one archive sweep. Returns how many events were archived and
// how many rows were pruned. An empty sweep is not an error.
func (a *Archiver) Run(ctx context.Context) (archived int, pruned int64, err error) {
	cutoff := a.clock.Now().Add(-a.retention)

	events, err := a.store.ListOlderThan(ctx, cutoff, a.batchSize)
	if err != nil {
		return 0, 0, err
	}
	if len(events) == 0 {
		a.logger.InfoContext(ctx, "audit archive sweep found nothing to do", "cutoff", cutoff)
		return 0, 0, nil
	}

	body, err := encodeJSONLGzip(events)
	if err != nil {
		return 0, 0, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode audit archive", err)
	}

	key := archiveKey(a.clock.Now(), events[0].OccurredAt)
	if err := a.storage.Store(ctx, key, body, "application/gzip"); err != nil {
		return 0, 0, err
	}

	pruned, err = a.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		// The archive object exists but rows remain; the next sweep will
		// re-archive them, which is harmless duplication.
		a.logger.WarnContext(ctx, "archived events could not be pruned", "key", key, "error", err)
		return len(events), 0, err
	}

	a.logger.InfoContext(ctx, "audit archive sweep complete",
		"key", key,
		"archived", len(events),
		"pruned", pruned,
	)
	return len(events), pruned, nil
}

// archiveKey names the archive object by sweep time, partitioned by the
// month of the oldest event it contains.
func archiveKey(now, oldest time.Time) string {
	return fmt.Sprintf("audit/%s/audit-%s.jsonl.gz",
		oldest.UTC().Format("2006/01"),
		now.UTC().Format("20060102T150405Z"),
	)
}

// encodeJSONLGzip writes one JSON document per line, gzip-compressed.
func encodeJSONLGzip(events []types.AuditEvent) (io.Reader, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	enc := json.NewEncoder(gz)

	for i := range events {
		if err := enc.Encode(&events[i]); err != nil {
			gz.Close()
			return nil, err
		}
	}

	if err := gz.Close(); err != nil {
		return nil, err
	}
	return &buf, nil
}
