package internal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xcodebn/zoun"
)

func TestValidatePostgresConfig(t *testing.T) {
	valid := zoun.DatabaseConfig{Host: "localhost", Port: 5432, MaxConnections: 10}
	assert.NoError(t, ValidatePostgresConfig(valid))

	tests := []struct {
		name   string
		mutate func(c *zoun.DatabaseConfig)
		want   string
	}{
		{name: "missing host", mutate: func(c *zoun.DatabaseConfig) { c.Host = "" }, want: "host is required"},
		{name: "port out of range", mutate: func(c *zoun.DatabaseConfig) { c.Port = 70000 }, want: "valid TCP port"},
		{name: "no connections", mutate: func(c *zoun.DatabaseConfig) { c.MaxConnections = 0 }, want: "maxConnections"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.ErrorContains(t, ValidatePostgresConfig(cfg), tt.want)
		})
	}
}

func TestValidateS3Config(t *testing.T) {
	assert.NoError(t, ValidateS3Config(zoun.BlobConfig{}), "disabled blob store needs nothing")
	assert.NoError(t, ValidateS3Config(zoun.BlobConfig{Enabled: true, Driver: zoun.BlobDriverMemory}))
	assert.NoError(t, ValidateS3Config(zoun.BlobConfig{Enabled: true, Driver: zoun.BlobDriverS3, Bucket: "b"}))

	assert.ErrorContains(t, ValidateS3Config(zoun.BlobConfig{Enabled: true, Driver: zoun.BlobDriverS3}), "bucket is required")
	assert.ErrorContains(t, ValidateS3Config(zoun.BlobConfig{Enabled: true, Driver: zoun.BlobDriverS3, Bucket: "b", AccessKey: "k"}), "without blob.secretKey")
	assert.ErrorContains(t, ValidateS3Config(zoun.BlobConfig{Enabled: true, Driver: zoun.BlobDriverS3, Bucket: "b", SecretKey: "s"}), "without blob.accessKey")
}

func TestSQLHealthCheck(t *testing.T) {
	db, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer db.Close()

	assert.NoError(t, SQLHealthCheck(db.PingContext, time.Second)(context.Background()))

	failing := SQLHealthCheck(func(ctx context.Context) error { return errStorageDown }, 0)
	assert.ErrorIs(t, failing(context.Background()), errStorageDown)
}

func TestRedisHealthCheck(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	check := RedisHealthCheck(client, time.Second)
	assert.NoError(t, check(context.Background()))

	mr.SetError("ERR down")
	assert.ErrorContains(t, check(context.Background()), "redis ping failed")
}

func TestS3HealthCheck(t *testing.T) {
	fake := newFakeS3()
	check := S3HealthCheck(newS3BlobStore(fake, fake, "zoun-blobs"), time.Second)
	assert.ErrorContains(t, check(context.Background()), "s3 bucket zoun-blobs unreachable")

	fake.bucketExists = true
	assert.NoError(t, check(context.Background()))
}

func TestRunHealthChecks(t *testing.T) {
	failures := RunHealthChecks(context.Background(), map[string]HealthCheck{
		"ok":     func(ctx context.Context) error { return nil },
		"broken": func(ctx context.Context) error { return errors.New("down") },
	})
	require.Len(t, failures, 1)
	assert.EqualError(t, failures["broken"], "down")
}

func TestOrDefault(t *testing.T) {
	assert.Equal(t, defaultHealthTimeout, orDefault(0))
	assert.Equal(t, time.Second, orDefault(time.Second))
}
