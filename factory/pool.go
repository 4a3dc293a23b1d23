package factory

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dsql/auth"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xcodebn/zoun"
	"github.com/xcodebn/zoun/internal"
	"go.uber.org/zap"
)

// tokenFunc returns the password used for the next connection.
type tokenFunc func(ctx context.Context) (string, error)

// passwordSource returns the static password, or a generator of IAM auth tokens when useIAM is set.
func passwordSource(ctx context.Context, cfg zoun.DatabaseConfig) (tokenFunc, error) {
	if !cfg.UseIAM {
		return func(context.Context) (string, error) { return cfg.Password, nil }, nil
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	endpoint := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	return func(ctx context.Context) (string, error) {
		token, err := auth.GenerateDbConnectAuthToken(ctx, endpoint, awsCfg.Region, awsCfg.Credentials)
		if err != nil {
			return "", fmt.Errorf("generate IAM auth token: %w", err)
		}
		return token, nil
	}, nil
}

func connString(cfg zoun.DatabaseConfig, password string) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.Username, password),
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:   "/" + cfg.Database,
	}
	if cfg.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {cfg.SSLMode}}.Encode()
	}
	return u.String()
}

// newPostgresPool creates a pgx pool from config. With IAM auth every new connection gets a fresh token.
func newPostgresPool(ctx context.Context, cfg zoun.DatabaseConfig) (*pgxpool.Pool, error) {
	if err := internal.ValidatePostgresConfig(cfg); err != nil {
		return nil, err
	}
	password, err := passwordSource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	poolConfig, err := pgxpool.ParseConfig(connString(cfg, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(min(cfg.MaxIdleConns, cfg.MaxConnections))
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = cfg.ConnMaxIdleTime
	poolConfig.ConnConfig.ConnectTimeout = cfg.Timeout
	poolConfig.BeforeConnect = func(ctx context.Context, cc *pgx.ConnConfig) error {
		pw, err := password(ctx)
		if err != nil {
			return err
		}
		cc.Password = pw
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	zap.S().Infow("postgres pool ready", "host", cfg.Host, "database", cfg.Database, "iam", cfg.UseIAM)
	return pool, nil
}

// openPQ opens a database/sql handle through lib/pq. An IAM token is generated once at open time.
func openPQ(ctx context.Context, cfg zoun.DatabaseConfig) (*sql.DB, error) {
	if err := internal.ValidatePostgresConfig(cfg); err != nil {
		return nil, err
	}
	password, err := passwordSource(ctx, cfg)
	if err != nil {
		return nil, err
	}
	pw, err := password(ctx)
	if err != nil {
		if !cfg.UseIAM {
			return nil, err
		}
		zap.S().Warnw("failed to generate IAM auth token; falling back to the configured password", "error", err)
		pw = cfg.Password
	}

	db, err := sql.Open(internal.SQLDriverPostgres, connString(cfg, pw))
	if err != nil {
		return nil, fmt.Errorf("open pg: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}
