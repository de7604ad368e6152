package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photoforge/internal/config"
	"photoforge/internal/types"
)

type captureSender struct {
	input *sqs.SendMessageInput
	err   error
}

func (s *captureSender) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	s.input = params
	if s.err != nil {
		return nil, s.err
	}
	return &sqs.SendMessageOutput{}, nil
}

func testJob() *types.ExportJob {
	return &types.ExportJob{
		JobID:      "job_1",
		ProjectID:  "proj_1",
		UserID:     "user_1",
		StorageKey: "assets/proj_1/img_2.jpg",
		Format:     "webp",
		Quality:    85,
		EnqueuedAt: time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC),
	}
}

func TestExportTrigger_Enqueue(t *testing.T) {
	sender := &captureSender{}
	trigger := NewExportTrigger(sender, config.AWSConfig{
		ExportQueueURL: "https://sqs.us-east-1.amazonaws.com/123/export-jobs",
	}, nil)

	err := trigger.Enqueue(context.Background(), testJob())
	require.NoError(t, err)
	require.NotNil(t, sender.input)

	assert.Equal(t, "https://sqs.us-east-1.amazonaws.com/123/export-jobs", *sender.input.QueueUrl)
	assert.Equal(t, "webp", *sender.input.MessageAttributes["format"].StringValue)

	var decoded types.ExportJob
	require.NoError(t, json.Unmarshal([]byte(*sender.input.MessageBody), &decoded))
	assert.Equal(t, "job_1", decoded.JobID)
	assert.Equal(t, "assets/proj_1/img_2.jpg", decoded.StorageKey)
	assert.Equal(t, 85, decoded.Quality)
}

func TestExportTrigger_Enqueue_SendFailure(t *testing.T) {
	sender := &captureSender{err: errors.New("sqs unreachable")}
	trigger := NewExportTrigger(sender, config.AWSConfig{ExportQueueURL: "https://example/q"}, nil)

	err := trigger.Enqueue(context.Background(), testJob())
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeUpstreamQueue, appErr.Code)
}
