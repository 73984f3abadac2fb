package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Config struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	Bucket     string
	UseSSL     bool
	Region     string
	ExpireDays int
}

// ObjectStore is the S3-compatible bucket used for client uploads and
// portfolio screenshots.
type ObjectStore struct {
	client *minio.Client
	bucket string
	config Config
}

func NewObjectStore(cfg Config) (*ObjectStore, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	if cfg.ExpireDays <= 0 {
		cfg.ExpireDays = 7
	}
	return &ObjectStore{
		client: client,
		bucket: cfg.Bucket,
		config: cfg,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (s *ObjectStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
	}
	return nil
}

func (s *ObjectStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

// Compose concatenates parts, in order, into dst. Every part except the last
// must be at least 5 MiB; the storage server enforces this.
func (s *ObjectStore) Compose(ctx context.Context, dst string, parts []string, contentType string) (int64, error) {
	srcs := make([]minio.CopySrcOptions, 0, len(parts))
	for _, part := range parts {
		srcs = append(srcs, minio.CopySrcOptions{Bucket: s.bucket, Object: part})
	}
	info, err := s.client.ComposeObject(ctx, minio.CopyDestOptions{
		Bucket:          s.bucket,
		Object:          dst,
		ReplaceMetadata: true,
		ContentType:     contentType,
	}, srcs...)
	if err != nil {
		return 0, fmt.Errorf("compose object %s: %w", dst, err)
	}
	return info.Size, nil
}

func (s *ObjectStore) Remove(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s: %w", key, err)
	}
	return nil
}

// PresignedURL returns a time-limited download link for key.
func (s *ObjectStore) PresignedURL(ctx context.Context, key string) (string, error) {
	expiry := time.Duration(s.config.ExpireDays) * 24 * time.Hour
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign object %s: %w", key, err)
	}
	return u.String(), nil
}

// PublicURL returns the direct object URL, usable when the bucket policy
// allows anonymous reads.
func (s *ObjectStore) PublicURL(key string) string {
	return PublicURL(s.config.Endpoint, s.bucket, key, s.config.UseSSL)
}

func PublicURL(endpoint, bucket, key string, useSSL bool) string {
	protocol := "http"
	if useSSL {
		protocol = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", protocol, endpoint, bucket, key)
}
