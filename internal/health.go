package internal

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/xcodebn/zoun"
)

const defaultHealthTimeout = 5 * time.Second

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// ValidatePostgresConfig performs basic sanity checks on Postgres-related settings.
func ValidatePostgresConfig(cfg zoun.DatabaseConfig) error {
	if cfg.Host == "" {
		return fmt.Errorf("storage.postgres.host is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("storage.postgres.port must be a valid TCP port")
	}
	if cfg.MaxConnections <= 0 {
		return fmt.Errorf("storage.postgres.maxConnections must be greater than 0")
	}
	return nil
}

// PostgresHealthCheck pings the pool and runs a trivial query.
func PostgresHealthCheck(pool *pgxpool.Pool, timeout time.Duration) HealthCheck {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, orDefault(timeout))
		defer cancel()

		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("postgres ping failed: %w", err)
		}
		if _, err := pool.Exec(ctx, "SELECT 1"); err != nil {
			return fmt.Errorf("postgres simple query failed: %w", err)
		}
		return nil
	}
}

// SQLHealthCheck pings a database/sql handle.
func SQLHealthCheck(ping func(ctx context.Context) error, timeout time.Duration) HealthCheck {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, orDefault(timeout))
		defer cancel()
		if err := ping(ctx); err != nil {
			return fmt.Errorf("database ping failed: %w", err)
		}
		return nil
	}
}

// ValidateS3Config performs basic sanity checks on blob store settings.
func ValidateS3Config(cfg zoun.BlobConfig) error {
	if !cfg.Enabled || cfg.Driver != zoun.BlobDriverS3 {
		return nil
	}
	if cfg.Bucket == "" {
		return fmt.Errorf("blob.bucket is required for the s3 driver")
	}
	if cfg.AccessKey != "" && cfg.SecretKey == "" {
		return fmt.Errorf("blob.accessKey provided without blob.secretKey")
	}
	if cfg.SecretKey != "" && cfg.AccessKey == "" {
		return fmt.Errorf("blob.secretKey provided without blob.accessKey")
	}
	return nil
}

// S3HealthCheck verifies that the configured bucket is reachable with the store's credentials.
func S3HealthCheck(store *S3BlobStore, timeout time.Duration) HealthCheck {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, orDefault(timeout))
		defer cancel()
		if _, err := store.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(store.bucket)}); err != nil {
			return fmt.Errorf("s3 bucket %s unreachable: %w", store.bucket, err)
		}
		return nil
	}
}

// RedisHealthCheck pings the cache server.
func RedisHealthCheck(client redis.Cmdable, timeout time.Duration) HealthCheck {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, orDefault(timeout))
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping failed: %w", err)
		}
		return nil
	}
}

// RunHealthChecks runs every check and returns the failures keyed by name.
func RunHealthChecks(ctx context.Context, checks map[string]HealthCheck) map[string]error {
	failures := make(map[string]error)
	for name, check := range checks {
		if err := check(ctx); err != nil {
			failures[name] = err
		}
	}
	return failures
}

func orDefault(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return defaultHealthTimeout
	}
	return timeout
}
