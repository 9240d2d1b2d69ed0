package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"charityfeed/internal/middleware"
	"charityfeed/internal/observability"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
)

const publicReadPolicy = `{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/*"]}]}`

// MinioConfig describes an S3-compatible endpoint.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	// PublicURL replaces scheme://endpoint in generated URLs, e.g. a CDN.
	PublicURL string
}

// MinioStore implements ObjectStore on minio-go.
type MinioStore struct {
	client     *minio.Client
	publicBase string
}

// NewMinioStore connects to the endpoint and verifies the credentials.
func NewMinioStore(ctx context.Context, cfg MinioConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create minio client")
	}

	base := cfg.PublicURL
	if base == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		base = fmt.Sprintf("%s://%s", scheme, cfg.Endpoint)
	}

	s := &MinioStore{client: client, publicBase: strings.TrimRight(base, "/")}
	if err := s.Ping(ctx); err != nil {
		return nil, err
	}
	middleware.Logger.Info("Object store connected", slog.String("endpoint", cfg.Endpoint))
	return s, nil
}

// PublicBase is the prefix every public URL starts with.
func (s *MinioStore) PublicBase() string {
	return s.publicBase
}

func (s *MinioStore) Ping(ctx context.Context) error {
	if _, err := s.client.ListBuckets(ctx); err != nil {
		return errors.Wrap(err, "list minio buckets")
	}
	return nil
}

// EnsureBuckets creates missing buckets and makes their objects publicly readable.
func (s *MinioStore) EnsureBuckets(ctx context.Context, buckets ...string) error {
	for _, bucket := range buckets {
		exists, err := s.client.BucketExists(ctx, bucket)
		if err != nil {
			return errors.Wrapf(err, "check bucket %s", bucket)
		}
		if !exists {
			if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
				return errors.Wrapf(err, "create bucket %s", bucket)
			}
			middleware.Logger.Info("Created bucket", slog.String("bucket", bucket))
		}
		if err := s.client.SetBucketPolicy(ctx, bucket, fmt.Sprintf(publicReadPolicy, bucket)); err != nil {
			return errors.Wrapf(err, "set policy on bucket %s", bucket)
		}
	}
	return nil
}

func (s *MinioStore) Upload(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) (*Object, error) {
	info, err := s.client.PutObject(ctx, bucket, key, r, size, minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "public, max-age=31536000, immutable",
	})
	if err != nil {
		observability.MediaUploads.WithLabelValues(bucket, "error").Inc()
		return nil, errors.Wrapf(err, "put object %s/%s", bucket, key)
	}
	observability.MediaUploads.WithLabelValues(bucket, "ok").Inc()
	observability.MediaUploadBytes.Observe(float64(info.Size))

	return &Object{
		Bucket:      bucket,
		Key:         key,
		URL:         s.PublicURL(bucket, key),
		Size:        info.Size,
		ContentType: contentType,
	}, nil
}

func (s *MinioStore) PublicURL(bucket, key string) string {
	return joinPublicURL(s.publicBase, bucket, key)
}

func (s *MinioStore) Delete(ctx context.Context, bucket, key string) error {
	if err := s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return errors.Wrapf(err, "remove object %s/%s", bucket, key)
	}
	return nil
}
