package e2e_harness

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/xcodebn/zoun"
	"github.com/xcodebn/zoun/internal"
)

const (
	s3AccessKey = "rustfs"
	s3SecretKey = "rustfs-secret"
)

// TestHarness runs the storage backends used by the end-to-end tests in containers.
type TestHarness struct {
	PGContainer testcontainers.Container
	PGDSN       string
	PGPool      *pgxpool.Pool
	PGDB        *sql.DB
	S3Container testcontainers.Container
	S3Endpoint  string
}

// StartPostgres starts a postgres container and opens both a pgx pool and a lib/pq handle on it.
// Caller is responsible for calling StopPostgres.
func (h *TestHarness) StartPostgres(ctx context.Context) (string, error) {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_PASSWORD": "password",
			"POSTGRES_USER":     "postgres",
			"POSTGRES_DB":       "zoun",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", err
	}
	h.PGContainer = container

	host, err := container.Host(ctx)
	if err != nil {
		return "", err
	}
	mapped, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return "", err
	}
	h.PGDSN = fmt.Sprintf("postgres://postgres:password@%s:%s/zoun?sslmode=disable", host, mapped.Port())

	pool, err := pgxpool.New(ctx, h.PGDSN)
	if err != nil {
		return "", fmt.Errorf("open pgx pool: %w", err)
	}
	h.PGPool = pool

	db, err := sql.Open(internal.SQLDriverPostgres, h.PGDSN)
	if err != nil {
		return "", err
	}
	h.PGDB = db

	deadline := time.Now().Add(20 * time.Second)
	for {
		err := pool.Ping(ctx)
		if err == nil {
			err = db.PingContext(ctx)
		}
		if err == nil {
			return h.PGDSN, nil
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("postgres did not become ready: %w", err)
		}
		time.Sleep(200 * time.Millisecond)
	}
}

// StopPostgres closes the connections and stops the Postgres container.
func (h *TestHarness) StopPostgres(ctx context.Context) error {
	if h.PGPool != nil {
		h.PGPool.Close()
		h.PGPool = nil
	}
	if h.PGDB != nil {
		h.PGDB.Close()
		h.PGDB = nil
	}
	if h.PGContainer != nil {
		if err := h.PGContainer.Terminate(ctx); err != nil {
			return err
		}
		h.PGContainer = nil
	}
	return nil
}

// StartS3 starts an S3 compatible object store and returns its endpoint.
func (h *TestHarness) StartS3(ctx context.Context) (string, error) {
	req := testcontainers.ContainerRequest{
		Image:        "rustfs/rustfs:latest",
		ExposedPorts: []string{"9000/tcp"},
		Env: map[string]string{
			"RUSTFS_ACCESS_KEY": s3AccessKey,
			"RUSTFS_SECRET_KEY": s3SecretKey,
		},
		WaitingFor: wait.ForListeningPort("9000/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", err
	}
	h.S3Container = container
	host, err := container.Host(ctx)
	if err != nil {
		return "", err
	}
	mapped, err := container.MappedPort(ctx, "9000")
	if err != nil {
		return "", err
	}
	h.S3Endpoint = fmt.Sprintf("http://%s:%s", host, mapped.Port())
	return h.S3Endpoint, nil
}

// BlobConfig returns the blob settings that target the started object store.
func (h *TestHarness) BlobConfig(bucket string) zoun.BlobConfig {
	return zoun.BlobConfig{
		Enabled:      true,
		Driver:       zoun.BlobDriverS3,
		Bucket:       bucket,
		Region:       "us-east-1",
		Endpoint:     h.S3Endpoint,
		AccessKey:    s3AccessKey,
		SecretKey:    s3SecretKey,
		UsePathStyle: true,
		Prefix:       "e2e",
	}
}

// StopS3 stops the object store container.
func (h *TestHarness) StopS3(ctx context.Context) error {
	if h.S3Container != nil {
		if err := h.S3Container.Terminate(ctx); err != nil {
			return err
		}
		h.S3Container = nil
	}
	return nil
}
