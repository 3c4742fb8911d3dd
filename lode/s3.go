package lode

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/justapithecus/lode/lode"
	lodes3 "github.com/justapithecus/lode/lode/s3"
)

// S3Config holds configuration for the S3 storage backend.
type S3Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string
	// Prefix is the key prefix within the bucket (optional).
	Prefix string
	// Region is the AWS region (optional, uses default chain if empty).
	Region string
	// Endpoint is a custom endpoint URL for S3-compatible providers
	// (e.g. Cloudflare R2, MinIO). Empty uses the default AWS endpoint.
	Endpoint string
	// UsePathStyle forces path-style addressing (bucket in path, not subdomain).
	UsePathStyle bool
}

// Validate checks that required S3 configuration is present.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("S3 bucket is required")
	}
	return nil
}

// ParseS3Path parses a path in format "bucket/prefix" or "bucket".
func ParseS3Path(path string) (bucket, prefix string) {
	bucket, prefix, _ = strings.Cut(strings.TrimPrefix(path, "s3://"), "/")
	return bucket, strings.Trim(prefix, "/")
}

// NewS3Factory returns a Lode store factory for the bucket in cfg.
// Credentials come from the AWS SDK default chain (env vars, shared config,
// IAM role).
func NewS3Factory(ctx context.Context, cfg S3Config) (lode.StoreFactory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, Wrap(fmt.Errorf("failed to load AWS config: %w", err), "init", cfg.Bucket)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
	client := s3.NewFromConfig(awsConfig, s3Opts...)

	return func() (lode.Store, error) {
		return lodes3.New(client, lodes3.Config{
			Bucket: cfg.Bucket,
			Prefix: cfg.Prefix,
		})
	}, nil
}

// NewS3Opener returns a StoreOpener writing bodies to S3 under prefix
// (relative to the bucket prefix in cfg).
func NewS3Opener(ctx context.Context, cfg S3Config, prefix string) (*StoreOpener, error) {
	factory, err := NewS3Factory(ctx, cfg)
	if err != nil {
		return nil, err
	}
	o := NewStoreOpener(factory, prefix)
	o.backend = BackendS3
	o.locate = func(key string) string { return S3Location(cfg, key) }
	return o, nil
}

// S3Location returns the s3:// URL of key in the bucket of cfg.
func S3Location(cfg S3Config, key string) string {
	if cfg.Prefix == "" {
		return "s3://" + cfg.Bucket + "/" + key
	}
	return "s3://" + cfg.Bucket + "/" + strings.Trim(cfg.Prefix, "/") + "/" + key
}
