package minio

import (
	"context"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/RSBalchII/anchor/internal/config"
	"github.com/RSBalchII/anchor/internal/infrastructure/monitoring/logging"
	"github.com/RSBalchII/anchor/pkg/errors"
)

// API is the subset of *minio.Client the mirror-root reader depends on,
// narrowed so a fake can stand in for unit tests.
type API interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
}

// Client wraps a single-bucket minio.Client connection to the mirror root
// (DOMAIN STACK, "Mirror root" — a read-mostly object-storage replica of the
// notebook that the composite reader tries before the live filesystem path).
type Client struct {
	api    API
	bucket string
	logger logging.Logger
}

// NewClient dials cfg.Endpoint and verifies cfg.Bucket exists.
func NewClient(cfg config.MinIOConfig, log logging.Logger) (*Client, error) {
	raw, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnavailable, "failed to create minio client")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := raw.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnavailable, "failed to reach minio")
	}
	if !exists {
		return nil, errors.NotFound("mirror root bucket does not exist: " + cfg.Bucket)
	}

	log.Info("minio client connected", logging.String("endpoint", cfg.Endpoint), logging.String("bucket", cfg.Bucket))
	return &Client{api: raw, bucket: cfg.Bucket, logger: log}, nil
}

// HealthCheck verifies the mirror-root bucket is still reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	exists, err := c.api.BucketExists(ctx, c.bucket)
	if err != nil {
		return errors.Wrap(err, errors.CodeUnavailable, "minio health check failed")
	}
	if !exists {
		return errors.NotFound("mirror root bucket does not exist: " + c.bucket)
	}
	return nil
}
