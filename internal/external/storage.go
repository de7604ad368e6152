package external

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"photoforge/internal/types"
)

// placeholderKey is served when an image row has no storage key yet, e.g.
// while processing is still in flight.
const placeholderKey = "static/placeholder.jpg"

// S3API is the subset of the S3 client used by AssetStorage.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Presigner is the subset of the S3 presign client used by AssetStorage.
type S3Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// AssetStorage serves image bytes and delivery URLs from the asset bucket.
// Clients never receive raw storage keys; every delivery URL is a
// short-lived presigned GET.
type AssetStorage struct {
	client    S3API
	presigner S3Presigner
	bucket    string
	urlTTL    time.Duration
	logger    *slog.Logger
}

// NewAssetStorage creates an AssetStorage over the given bucket. A zero
// urlTTL defaults to 15 minutes.
func NewAssetStorage(client S3API, presigner S3Presigner, bucket string, urlTTL time.Duration, logger *slog.Logger) *AssetStorage {
	if urlTTL <= 0 {
		urlTTL = 15 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AssetStorage{
		client:    client,
		presigner: presigner,
		bucket:    bucket,
		urlTTL:    urlTTL,
		logger:    logger,
	}
}

// DeliveryURL returns a presigned GET URL for the given storage key. Empty
// keys resolve to the placeholder object.
func (s *AssetStorage) DeliveryURL(ctx context.Context, key string) (string, error) {
	if key == "" {
		key = placeholderKey
	}

	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = s.urlTTL
	})
	if err != nil {
		return "", types.NewAppError(
			types.ErrCodeUpstreamStorage,
			fmt.Sprintf("failed to presign URL for %s", key),
			err,
		)
	}

	return req.URL, nil
}

// Fetch streams the object at key. The caller owns closing the reader.
func (s *AssetStorage) Fetch(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamStorage,
			fmt.Sprintf("failed to fetch object %s", key),
			err,
		)
	}
	return out.Body, nil
}

// Store writes body under key with the given content type.
func (s *AssetStorage) Store(ctx context.Context, key string, body io.Reader, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return types.NewAppError(
			types.ErrCodeUpstreamStorage,
			fmt.Sprintf("failed to store object %s", key),
			err,
		)
	}
	s.logger.DebugContext(ctx, "stored object", "bucket", s.bucket, "key", key)
	return nil
}
