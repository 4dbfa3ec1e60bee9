package mfsstore

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"
)

// BlobStoreConfig holds configuration for any blob store adapter
type BlobStoreConfig struct {
	Type       string            // "filesystem", "memory", "s3", "minio", "gcs", "redis"
	Bucket     string            // S3/GCS/MinIO bucket or base directory
	Region     string            // AWS region (S3 only)
	Endpoint   string            // Custom endpoint (S3-compatible services, MinIO host, Redis addr)
	PathPrefix string            // Optional prefix for all paths
	Options    map[string]string // Backend-specific options
}

// Validate checks if the BlobStoreConfig is valid
func (c BlobStoreConfig) Validate() error {
	if c.Type == "" {
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "Type",
			"reason": "blob store type is required",
		})
	}

	switch c.Type {
	case "memory", "redis":
		// No bucket needed
	case "filesystem", "gcs":
		if c.Bucket == "" {
			return WithContext(ErrInvalidConfig, map[string]interface{}{
				"field":  "Bucket",
				"reason": "bucket/base path is required",
			})
		}
	case "s3", "minio":
		if c.Bucket == "" {
			return WithContext(ErrInvalidConfig, map[string]interface{}{
				"field":  "Bucket",
				"reason": "bucket is required",
			})
		}
		if c.Region == "" && c.Endpoint == "" {
			return WithContext(ErrInvalidConfig, map[string]interface{}{
				"field":  "Region/Endpoint",
				"reason": "S3 blob store requires either Region or Endpoint",
			})
		}
	default:
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "Type",
			"value":  c.Type,
			"reason": "unknown blob store type",
		})
	}

	return nil
}

// NewBlobStore builds the adapter described by cfg.
//
// Options:
//   - minio: "access_key", "secret_key", "use_ssl" ("true")
//   - gcs: "project_id", "credentials_file"
//   - redis: Endpoint overrides REDIS_ADDR; PathPrefix becomes the key prefix
func NewBlobStore(ctx context.Context, cfg BlobStoreConfig) (BlobStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case "filesystem":
		return NewFilesystemBlobStore(cfg.Bucket), nil

	case "memory":
		return NewMemoryBlobStore(), nil

	case "s3":
		opts := []func(*awsconfig.LoadOptions) error{}
		if cfg.Region != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = &cfg.Endpoint
				o.UsePathStyle = true
			}
		})
		return NewS3BlobStore(client, cfg.Bucket).WithPrefix(cfg.PathPrefix), nil

	case "minio":
		return NewMinIOBlobStore(MinIOConfig{
			Endpoint:        cfg.Endpoint,
			AccessKeyID:     cfg.Options["access_key"],
			SecretAccessKey: cfg.Options["secret_key"],
			UseSSL:          cfg.Options["use_ssl"] == "true",
			Bucket:          cfg.Bucket,
		}).WithPrefix(cfg.PathPrefix), nil

	case "gcs":
		store, err := NewGCSBlobStore(ctx, GCSConfig{
			ProjectID:       cfg.Options["project_id"],
			Bucket:          cfg.Bucket,
			Prefix:          cfg.PathPrefix,
			CredentialsFile: cfg.Options["credentials_file"],
		})
		if err != nil {
			return nil, err
		}
		return store, nil

	case "redis":
		opts := RedisOptions()
		if cfg.Endpoint != "" {
			opts.Addr = cfg.Endpoint
		}
		return NewRedisBlobStoreWithOwnedClient(redis.NewClient(opts), cfg.PathPrefix), nil
	}

	// Unreachable after Validate
	return nil, WithContext(ErrInvalidConfig, map[string]interface{}{"type": cfg.Type})
}
