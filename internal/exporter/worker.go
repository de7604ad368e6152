package exporter

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"photoforge/internal/types"
)

// defaultConcurrency bounds how many jobs one worker invocation processes
// in parallel.
const defaultConcurrency = 4

// Storage is the object store surface the worker needs.
type Storage interface {
	Fetch(ctx context.Context, key string) (io.ReadCloser, error)
	Store(ctx context.Context, key string, body io.Reader, contentType string) error
}

// Worker consumes export jobs: fetch the processed image, transcode it, and
// store the result under an export key for delivery.
type Worker struct {
	storage     Storage
	transcoder  Transcoder
	concurrency int
	logger      *slog.Logger
}

// NewWorker creates a worker. A non-positive concurrency falls back to the
// default.
func NewWorker(storage Storage, transcoder Transcoder, concurrency int, logger *slog.Logger) *Worker {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		storage:     storage,
		transcoder:  transcoder,
		concurrency: concurrency,
		logger:      logger,
	}
}

// OutputKey is where the finished export lands in the asset bucket.
func OutputKey(job *types.ExportJob) string {
	ext := job.Format
	if ext == "jpeg" {
		ext = "jpg"
	}
	return fmt.Sprintf("exports/%s/%s.%s", job.ProjectID, job.JobID, ext)
}

// HandleBatch processes a batch of jobs concurrently. The first failure
// cancels in-flight siblings and is returned so the queue redelivers the
// batch.
func (w *Worker) HandleBatch(ctx context.Context, jobs []types.ExportJob) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)

	for i := range jobs {
		job := jobs[i]
		g.Go(func() error {
			return w.Process(ctx, &job)
		})
	}

	return g.Wait()
}

// Process runs one export job end to end.
func (w *Worker) Process(ctx context.Context, job *types.ExportJob) error {
	if !types.ValidExportFormat(job.Format) {
		// Malformed jobs are dropped, not retried: redelivery cannot fix them.
		w.logger.ErrorContext(ctx, "dropping export job with unsupported format",
			"job_id", job.JobID, "format", job.Format)
		return nil
	}

	src, err := w.storage.Fetch(ctx, job.StorageKey)
	if err != nil {
		return fmt.Errorf("export %s: fetching source: %w", job.JobID, err)
	}
	defer src.Close()

	encoded, contentType, err := w.transcoder.Transcode(ctx, src, types.ExportFormat(job.Format), job.Quality)
	if err != nil {
		return fmt.Errorf("export %s: transcoding: %w", job.JobID, err)
	}

	outKey := OutputKey(job)
	if err := w.storage.Store(ctx, outKey, encoded, contentType); err != nil {
		return fmt.Errorf("export %s: storing output: %w", job.JobID, err)
	}

	w.logger.InfoContext(ctx, "export completed",
		"job_id", job.JobID,
		"project_id", job.ProjectID,
		"output_key", outKey,
		"format", job.Format,
	)

	return nil
}
