// Package storage provides object storage operations on S3.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/fgeck/mysql-dr-dump/internal/apperr"
	"github.com/rs/zerolog"
)

// Service defines the interface for object storage operations.
type Service interface {
	UploadFile(ctx context.Context, bucket, key, filePath string) (int64, error)
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
	PutObject(ctx context.Context, bucket, key string, body []byte) error
}

// S3API is the subset of the S3 client used here, allowing a mock in tests.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Impl implements the Service interface.
type Impl struct {
	client S3API
	logger zerolog.Logger
}

// New creates a new storage service for the scope described by cfg.
func New(logger zerolog.Logger, cfg aws.Config) *Impl {
	return &Impl{
		client: s3.NewFromConfig(cfg),
		logger: logger,
	}
}

// NewWithClient creates a new storage service with a custom client (for testing).
func NewWithClient(logger zerolog.Logger, client S3API) *Impl {
	return &Impl{
		client: client,
		logger: logger,
	}
}

// ObjectKey derives the object key for an artifact from the working
// directory and the artifact's file name, e.g. "/tmp/dbdump" + "a.tar.gz"
// becomes "tmp/dbdump/a.tar.gz".
func ObjectKey(workDir, fileName string) string {
	prefix := strings.Trim(path.Clean("/"+strings.ReplaceAll(workDir, "\\", "/")), "/")
	if prefix == "" {
		return fileName
	}
	return prefix + "/" + fileName
}

// UploadFile streams the file at filePath to bucket/key and returns its size.
// A failed transfer is reported, not retried.
func (s *Impl) UploadFile(ctx context.Context, bucket, key, filePath string) (int64, error) {
	f, err := os.Open(filePath) //nolint:gosec // path is produced by the pipeline
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", filePath, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", filePath, err)
	}

	s.logger.Info().
		Str("bucket", bucket).
		Str("key", key).
		Int64("size_bytes", info.Size()).
		Msg("uploading file")

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
	})
	if err != nil {
		return 0, apperr.New(apperr.KindProvider, fmt.Sprintf("uploading s3://%s/%s", bucket, key), err)
	}

	return info.Size(), nil
}

// GetObject reads the whole object into memory.
func (s *Impl) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	s.logger.Debug().Str("bucket", bucket).Str("key", key).Msg("fetching object")

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, apperr.New(apperr.KindProvider, fmt.Sprintf("fetching s3://%s/%s", bucket, key), err)
	}
	defer func() { _ = out.Body.Close() }()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, apperr.New(apperr.KindProvider, fmt.Sprintf("reading s3://%s/%s", bucket, key), err)
	}
	return body, nil
}

// PutObject writes body to bucket/key.
func (s *Impl) PutObject(ctx context.Context, bucket, key string, body []byte) error {
	s.logger.Debug().Str("bucket", bucket).Str("key", key).Int("size_bytes", len(body)).Msg("writing object")

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return apperr.New(apperr.KindProvider, fmt.Sprintf("writing s3://%s/%s", bucket, key), err)
	}
	return nil
}
