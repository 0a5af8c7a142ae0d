package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/spec-kit/trustmesh/internal/config"
)

// ObjectDeleter is the part of the S3 API the blob store needs.
type ObjectDeleter interface {
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// BlobStore removes media objects from a bucket.
type BlobStore struct {
	client ObjectDeleter
	bucket string
}

// NewBlobStore wraps an existing client, mainly for tests.
func NewBlobStore(client ObjectDeleter, bucket string) *BlobStore {
	return &BlobStore{client: client, bucket: bucket}
}

// NewS3BlobStore builds an S3 client from config. Returns nil when no bucket
// is configured; media rows are then removed without touching storage.
func NewS3BlobStore(ctx context.Context, cfg config.MediaConfig, logger *zap.Logger) (*BlobStore, error) {
	if cfg.S3Bucket == "" {
		logger.Warn("MEDIA_S3_BUCKET not provided; blob deletion disabled")
		return nil, nil
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.S3Region)}
	if cfg.S3AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		o.UsePathStyle = cfg.S3UsePathStyle
	})

	logger.Info("s3 blob store configured", zap.String("bucket", cfg.S3Bucket))
	return NewBlobStore(client, cfg.S3Bucket), nil
}

// Delete removes the object at key. S3 reports success for absent keys.
func (b *BlobStore) Delete(ctx context.Context, key string) error {
	if b == nil {
		return errors.New("blob store not configured")
	}
	if key == "" {
		return nil
	}
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}
