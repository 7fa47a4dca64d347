package objectstore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
)

const defaultReadURLTTL = time.Hour

// PresignedUpload is a short-lived target a client can upload to directly.
type PresignedUpload struct {
	URL    string
	Method string
	Fields map[string]string
}

// Config contains the connection settings of an S3-compatible store.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	ReadTTL   time.Duration
}

// MinioStore keeps message attachments in an S3-compatible bucket.
type MinioStore struct {
	client  *minio.Client
	bucket  string
	readTTL time.Duration
	logger  zerolog.Logger
}

// NewMinio constructs a store backed by MinIO or any S3-compatible endpoint.
func NewMinio(cfg Config, logger zerolog.Logger) (*MinioStore, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("minio credentials must be provided")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio bucket must be provided")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.ReadTTL <= 0 {
		cfg.ReadTTL = defaultReadURLTTL
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize minio: %w", err)
	}

	return &MinioStore{
		client:  client,
		bucket:  cfg.Bucket,
		readTTL: cfg.ReadTTL,
		logger:  logger.With().Str("component", "objectstore").Logger(),
	}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	s.logger.Info().Str("bucket", s.bucket).Msg("bucket created")
	return nil
}

// NewKey returns a fresh object key for a message attachment.
func (s *MinioStore) NewKey() string {
	return NewObjectKey("messages")
}

// PresignUpload signs a PUT for key valid for ttl.
func (s *MinioStore) PresignUpload(ctx context.Context, key string, ttl time.Duration) (PresignedUpload, error) {
	signed, err := s.client.PresignedPutObject(ctx, s.bucket, key, ttl)
	if err != nil {
		return PresignedUpload{}, fmt.Errorf("presign upload: %w", err)
	}
	return PresignedUpload{URL: signed.String(), Method: "PUT"}, nil
}

// Put stores the content under key.
func (s *MinioStore) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	info, err := s.client.PutObject(ctx, s.bucket, key, reader, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	s.logger.Info().Str("key", info.Key).Int64("size", info.Size).Msg("object stored")
	return nil
}

// URL returns a presigned GET for key.
func (s *MinioStore) URL(ctx context.Context, key string) (string, error) {
	signed, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.readTTL, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign read: %w", err)
	}
	return signed.String(), nil
}

// NewObjectKey builds a unique key under prefix.
func NewObjectKey(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return uuid.NewString()
	}
	return prefix + "/" + uuid.NewString()
}
