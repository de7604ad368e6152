// Package queue provides the SQS producer that dispatches export jobs to
// the background worker.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"photoforge/internal/config"
	"photoforge/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// ExportTrigger serializes ExportJob messages onto the export queue. The
// API enqueues here and returns immediately; the worker does the actual
// transcoding.
type ExportTrigger struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
}

// NewExportTrigger creates an ExportTrigger reading the queue URL from
// AWSConfig.
func NewExportTrigger(client SQSSender, awsCfg config.AWSConfig, logger *slog.Logger) *ExportTrigger {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExportTrigger{
		client:   client,
		queueURL: awsCfg.ExportQueueURL,
		logger:   logger,
	}
}

// Enqueue dispatches one export job. Failures map to an upstream queue
// error so handlers surface them as 502s rather than opaque 500s.
func (t *ExportTrigger) Enqueue(ctx context.Context, job *types.ExportJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return types.NewAppError(
			types.ErrCodeInternalUnexpected,
			fmt.Sprintf("failed to marshal export job %s", job.JobID),
			err,
		)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(t.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"format": {
				DataType:    aws.String("String"),
				StringValue: aws.String(job.Format),
			},
		},
	}

	if _, err := t.client.SendMessage(ctx, input); err != nil {
		return types.NewAppError(
			types.ErrCodeUpstreamQueue,
			fmt.Sprintf("failed to enqueue export job %s", job.JobID),
			err,
		)
	}

	t.logger.InfoContext(ctx, "export job enqueued",
		"queue_url", t.queueURL,
		"job_id", job.JobID,
		"project_id", job.ProjectID,
		"format", job.Format,
	)

	return nil
}
