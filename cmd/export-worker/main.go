// Package main is the entrypoint for the Export Worker Lambda function.
//
// The worker consumes export jobs from the SQS export queue, fetches the
// source image from the asset bucket, converts it to the requested format,
// and stores the result under the exports/ prefix.
//
// Cold start:
//  1. Initialize structured logger.
//  2. Load AWS SDK configuration and the S3 client.
//  3. Initialize the asset storage and transcoder.
//  4. Register the handler and call lambda.Start.
//
// Lambda SQS integration uses partial batch responses: records that fail
// processing are reported in batchItemFailures so SQS redelivers only those.
// Jobs with an unsupported format are dropped inside the worker (redelivery
// cannot fix them) and therefore acknowledged.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"photoforge/internal/exporter"
	"photoforge/internal/external"
	"photoforge/internal/types"
)

// Handler holds the dependencies for the export worker Lambda handler.
type Handler struct {
	worker *exporter.Worker
	logger *slog.Logger
}

// Handle processes an SQS event containing one or more export jobs. Each
// record is processed independently; a malformed body is acknowledged
// without retry.
func (h *Handler) Handle(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	response := events.SQSEventResponse{}

	for _, record := range sqsEvent.Records {
		var job types.ExportJob
		if err := json.Unmarshal([]byte(record.Body), &job); err != nil {
			h.logger.ErrorContext(ctx, "failed to unmarshal export job",
				"message_id", record.MessageId,
				"error", err,
			)
			// Permanent parse failure; redelivery cannot fix it.
			continue
		}

		if err := h.worker.Process(ctx, &job); err != nil {
			h.logger.ErrorContext(ctx, "export job failed",
				"message_id", record.MessageId,
				"job_id", job.JobID,
				"error", err,
			)
			response.BatchItemFailures = append(response.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: record.MessageId},
			)
		}
	}

	return response, nil
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx := context.Background()
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		logger.Error("failed to load AWS configuration", "error", err)
		os.Exit(1)
	}

	bucket := os.Getenv("ASSET_BUCKET")
	if bucket == "" {
		logger.Error("ASSET_BUCKET is required")
		os.Exit(1)
	}

	endpoint := os.Getenv("AWS_ENDPOINT_URL")
	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	presigner := s3.NewPresignClient(s3Client)
	storage := external.NewAssetStorage(s3Client, presigner, bucket, 0, logger)

	handler := &Handler{
		worker: exporter.NewWorker(storage, exporter.PassthroughTranscoder{}, 0, logger),
		logger: logger,
	}

	lambda.Start(handler.Handle)
}
