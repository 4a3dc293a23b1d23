package factory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/xcodebn/zoun"
	"github.com/xcodebn/zoun/internal"
	"go.uber.org/zap"
)

// schemaOwner is implemented by storage handles backed by a document table.
type schemaOwner interface {
	EnsureSchema(ctx context.Context) error
}

// Storage owns the connections behind the storage handles and builds one handle per model.
type Storage struct {
	cfg          *zoun.Config
	introspector *internal.Introspector

	pool    *pgxpool.Pool
	db      *sql.DB
	blobs   internal.BlobStore
	redis   *redis.Client
	breaker *internal.CircuitBreaker
	checks  map[string]internal.HealthCheck

	schemaReady bool
}

// NewStorage opens the backends selected by config: the record store, the blob store,
// the option cache and the circuit breaker.
func NewStorage(ctx context.Context, cfg *zoun.Config) (*Storage, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Storage{
		cfg:          cfg,
		introspector: internal.NewIntrospector(),
		checks:       make(map[string]internal.HealthCheck),
	}
	timeout := cfg.Storage.Postgres.Timeout

	var err error
	switch cfg.Storage.Driver {
	case zoun.StorageDriverMemory:
	case zoun.StorageDriverSQLite:
		s.db, err = internal.OpenSQLite(cfg.Storage.SQLite.Path)
		if err != nil {
			return nil, err
		}
		s.checks["storage"] = internal.SQLHealthCheck(s.db.PingContext, timeout)
	case zoun.StorageDriverPQ:
		s.db, err = openPQ(ctx, cfg.Storage.Postgres)
		if err != nil {
			return nil, err
		}
		s.checks["storage"] = internal.SQLHealthCheck(s.db.PingContext, timeout)
	case zoun.StorageDriverPostgres:
		s.pool, err = newPostgresPool(ctx, cfg.Storage.Postgres)
		if err != nil {
			return nil, err
		}
		s.checks["storage"] = internal.PostgresHealthCheck(s.pool, timeout)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}

	if err := s.openBlobStore(ctx); err != nil {
		s.Close()
		return nil, err
	}

	if cfg.Cache.Enabled {
		s.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Addr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		s.checks["cache"] = internal.RedisHealthCheck(s.redis, timeout)
	}

	if cfg.Resilience.Enabled {
		s.breaker = internal.NewCircuitBreaker(cfg.Resilience.Threshold, cfg.Resilience.Window, cfg.Resilience.OpenDuration)
	}

	zap.S().Infow("storage initialized",
		"driver", cfg.Storage.Driver,
		"blob", cfg.Blob.Enabled,
		"cache", cfg.Cache.Enabled,
		"breaker", cfg.Resilience.Enabled,
	)
	return s, nil
}

func (s *Storage) openBlobStore(ctx context.Context) error {
	if !s.cfg.Blob.Enabled {
		return nil
	}
	switch s.cfg.Blob.Driver {
	case zoun.BlobDriverMemory:
		s.blobs = internal.NewMemoryBlobStore()
	case zoun.BlobDriverS3:
		if err := internal.ValidateS3Config(s.cfg.Blob); err != nil {
			return err
		}
		store, err := internal.NewS3BlobStore(ctx, s.cfg.Blob)
		if err != nil {
			return err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return err
		}
		s.blobs = store
		s.checks["blob"] = internal.S3HealthCheck(store, s.cfg.Storage.Postgres.Timeout)
	default:
		return fmt.Errorf("unsupported blob driver %q", s.cfg.Blob.Driver)
	}
	return nil
}

// Introspector returns the introspector shared by the storage handles and the registry.
func (s *Storage) Introspector() *internal.Introspector {
	return s.introspector
}

// HealthChecks returns the checks of every opened backend, keyed by backend.
func (s *Storage) HealthChecks() map[string]internal.HealthCheck {
	return s.checks
}

// Repository builds the storage handle of one model. The base store is wrapped, innermost first,
// by blob offload, the circuit breaker and the option cache, each when enabled.
func (s *Storage) Repository(ctx context.Context, model string, recordType reflect.Type) (zoun.Repository, error) {
	repo, err := s.baseRepository(ctx, model, recordType)
	if err != nil {
		return nil, err
	}

	if s.blobs != nil {
		repo, err = internal.NewBlobRepository(model, s.cfg.Blob.Prefix, repo, s.blobs, recordType, s.introspector)
		if err != nil {
			return nil, err
		}
	}

	if s.breaker != nil {
		repo = internal.NewGuardedRepository(model, repo, s.breaker)
	}

	if s.redis != nil {
		repo, err = internal.NewCachedRepository(model, repo, s.redis, s.cfg.Cache.KeyPrefix, s.cfg.Cache.TTL, recordType, s.introspector)
		if err != nil {
			return nil, err
		}
	}
	return repo, nil
}

func (s *Storage) baseRepository(ctx context.Context, model string, recordType reflect.Type) (zoun.Repository, error) {
	table := s.cfg.Storage.Table

	var repo zoun.Repository
	var err error
	switch s.cfg.Storage.Driver {
	case zoun.StorageDriverMemory:
		repo, err = internal.NewMemoryRepository(recordType, s.introspector)
	case zoun.StorageDriverPostgres:
		repo, err = internal.NewPostgresRepository(s.pool, table, model, recordType, s.introspector)
	case zoun.StorageDriverSQLite:
		repo, err = internal.NewSQLRepository(s.db, internal.SQLDriverSQLite, table, model, recordType, s.introspector)
	case zoun.StorageDriverPQ:
		repo, err = internal.NewSQLRepository(s.db, internal.SQLDriverPostgres, table, model, recordType, s.introspector)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", s.cfg.Storage.Driver)
	}
	if err != nil {
		return nil, err
	}

	// All models share one document table.
	if owner, ok := repo.(schemaOwner); ok && !s.schemaReady {
		if err := owner.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		s.schemaReady = true
	}
	return repo, nil
}

// Close releases every opened connection.
func (s *Storage) Close() error {
	var errs []error
	if s.pool != nil {
		s.pool.Close()
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	return errors.Join(errs...)
}

// Admin is an assembled admin engine.
type Admin struct {
	Config     *zoun.Config
	Registry   *internal.ModelRegistry
	Controller zoun.Controller
	// Metrics is nil when metrics are disabled.
	Metrics *internal.PrometheusMetrics
	Storage *Storage
}

// NewAdmin assembles the admin engine for the given registrations. A registration without a
// storage handle gets one from the configured storage.
//
// Usage:
//
//	cfg, _ := zoun.LoadConfig("")
//	admin, err := factory.NewAdmin(ctx, cfg, []zoun.Registration{
//	    zoun.Register[Department, int64](nil),
//	    zoun.Register[Employee, int64](nil),
//	})
func NewAdmin(ctx context.Context, cfg *zoun.Config, registrations []zoun.Registration) (*Admin, error) {
	storage, err := NewStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	regs := make([]zoun.Registration, 0, len(registrations))
	for _, reg := range registrations {
		if reg.Repository == nil && reg.RecordType != nil {
			repo, err := storage.Repository(ctx, reg.ModelName(), reg.RecordType)
			if err != nil {
				storage.Close()
				return nil, fmt.Errorf("storage for model %s: %w", reg.ModelName(), err)
			}
			reg.Repository = repo
		}
		regs = append(regs, reg)
	}

	registry, err := internal.NewModelRegistry(regs, internal.RegistryOptions{
		StrictNames:  cfg.Registry.StrictNames,
		Introspector: storage.Introspector(),
	})
	if err != nil {
		storage.Close()
		return nil, err
	}

	admin := &Admin{
		Config:     cfg,
		Registry:   registry,
		Controller: internal.NewAdminController(registry, cfg.Admin),
		Storage:    storage,
	}
	if cfg.Metrics.Enabled {
		admin.Metrics = internal.NewPrometheusMetrics(cfg.Metrics.Namespace)
		internal.RegisterTelemetryEmitter(admin.Metrics.Emit)
	}
	return admin, nil
}

// Close releases the storage connections.
func (a *Admin) Close() error {
	return a.Storage.Close()
}
