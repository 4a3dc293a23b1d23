package zoun

import (
	"strings"
	"time"
)

// Config consolidates the admin engine settings and the adapters around it
type Config struct {
	Admin      AdminConfig      `json:"admin" mapstructure:"admin"`
	Registry   RegistryConfig   `json:"registry" mapstructure:"registry"`
	Storage    StorageConfig    `json:"storage" mapstructure:"storage"`
	Blob       BlobConfig       `json:"blob" mapstructure:"blob"`
	Cache      CacheConfig      `json:"cache" mapstructure:"cache"`
	Resilience ResilienceConfig `json:"resilience" mapstructure:"resilience"`
	Metrics    MetricsConfig    `json:"metrics" mapstructure:"metrics"`
	Auth       AuthConfig       `json:"auth" mapstructure:"auth"`
	Logging    LoggingConfig    `json:"logging" mapstructure:"logging"`
	Server     ServerConfig     `json:"server" mapstructure:"server"`
}

// AdminConfig contains the admin panel behaviour and appearance settings
type AdminConfig struct {
	// Enabled must be set explicitly before the admin routes are mounted.
	Enabled         bool   `json:"enabled" mapstructure:"enabled"`
	BasePath        string `json:"basePath" mapstructure:"basePath"`
	RequiredRole    string `json:"requiredRole" mapstructure:"requiredRole"`
	PageSize        int    `json:"pageSize" mapstructure:"pageSize"`
	AppTitle        string `json:"appTitle" mapstructure:"appTitle"`
	DarkMode        bool   `json:"darkMode" mapstructure:"darkMode"`
	MaxFileSizeMb   int    `json:"maxFileSizeMb" mapstructure:"maxFileSizeMb"`
	ListColumnLimit int    `json:"listColumnLimit" mapstructure:"listColumnLimit"`
	ValidateOnSave  bool   `json:"validateOnSave" mapstructure:"validateOnSave"`
}

// MaxFileSizeBytes returns the upload limit in bytes.
func (c AdminConfig) MaxFileSizeBytes() int64 {
	return int64(c.MaxFileSizeMb) << 20
}

// RegistryConfig contains model registration settings
type RegistryConfig struct {
	// StrictNames turns a duplicate model name into a registration failure instead of last-wins.
	StrictNames bool `json:"strictNames" mapstructure:"strictNames"`
}

// Storage drivers
const (
	StorageDriverMemory   = "memory"
	StorageDriverSQLite   = "sqlite"
	StorageDriverPostgres = "postgres"
	StorageDriverPQ       = "pq"
)

// StorageConfig selects and configures the storage handles
type StorageConfig struct {
	Driver   string         `json:"driver" mapstructure:"driver"`
	Table    string         `json:"table" mapstructure:"table"`
	SQLite   SQLiteConfig   `json:"sqlite" mapstructure:"sqlite"`
	Postgres DatabaseConfig `json:"postgres" mapstructure:"postgres"`
}

// SQLiteConfig contains sqlite connection settings
type SQLiteConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host            string        `json:"host" mapstructure:"host"`
	Port            int           `json:"port" mapstructure:"port"`
	Database        string        `json:"database" mapstructure:"database"`
	Username        string        `json:"username" mapstructure:"username"`
	Password        string        `json:"password" mapstructure:"password"`
	SSLMode         string        `json:"sslMode" mapstructure:"sslMode"`
	MaxConnections  int           `json:"maxConnections" mapstructure:"maxConnections"`
	MaxIdleConns    int           `json:"maxIdleConns" mapstructure:"maxIdleConns"`
	ConnMaxLifetime time.Duration `json:"connMaxLifetime" mapstructure:"connMaxLifetime"`
	ConnMaxIdleTime time.Duration `json:"connMaxIdleTime" mapstructure:"connMaxIdleTime"`
	Timeout         time.Duration `json:"timeout" mapstructure:"timeout"`
	// UseIAM replaces the password with a generated DSQL auth token.
	UseIAM bool   `json:"useIAM" mapstructure:"useIAM"`
	Region string `json:"region" mapstructure:"region"`
}

// Blob drivers
const (
	BlobDriverMemory = "memory"
	BlobDriverS3     = "s3"
)

// BlobConfig contains binary field offload settings
type BlobConfig struct {
	Enabled      bool   `json:"enabled" mapstructure:"enabled"`
	Driver       string `json:"driver" mapstructure:"driver"`
	Bucket       string `json:"bucket" mapstructure:"bucket"`
	Region       string `json:"region" mapstructure:"region"`
	Endpoint     string `json:"endpoint" mapstructure:"endpoint"`
	AccessKey    string `json:"accessKey" mapstructure:"accessKey"`
	SecretKey    string `json:"secretKey" mapstructure:"secretKey"`
	UsePathStyle bool   `json:"usePathStyle" mapstructure:"usePathStyle"`
	Prefix       string `json:"prefix" mapstructure:"prefix"`
}

// CacheConfig contains relationship option cache settings
type CacheConfig struct {
	Enabled   bool          `json:"enabled" mapstructure:"enabled"`
	Addr      string        `json:"addr" mapstructure:"addr"`
	Password  string        `json:"password" mapstructure:"password"`
	DB        int           `json:"db" mapstructure:"db"`
	TTL       time.Duration `json:"ttl" mapstructure:"ttl"`
	KeyPrefix string        `json:"keyPrefix" mapstructure:"keyPrefix"`
}

// ResilienceConfig contains the storage circuit breaker settings
type ResilienceConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	Threshold    int           `json:"threshold" mapstructure:"threshold"`
	Window       time.Duration `json:"window" mapstructure:"window"`
	OpenDuration time.Duration `json:"openDuration" mapstructure:"openDuration"`
}

// MetricsConfig contains metrics collection settings
type MetricsConfig struct {
	Enabled   bool   `json:"enabled" mapstructure:"enabled"`
	Namespace string `json:"namespace" mapstructure:"namespace"`
	Path      string `json:"path" mapstructure:"path"`
}

// AuthConfig contains admin access control settings
type AuthConfig struct {
	// JWTSecret enables bearer token role checks when set.
	JWTSecret string `json:"-" mapstructure:"jwtSecret"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level       string `json:"level" mapstructure:"level"`
	Development bool   `json:"development" mapstructure:"development"`
}

// ServerConfig contains HTTP listener settings
type ServerConfig struct {
	Port         string        `json:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `json:"readTimeout" mapstructure:"readTimeout"`
	WriteTimeout time.Duration `json:"writeTimeout" mapstructure:"writeTimeout"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Admin: AdminConfig{
			Enabled:         false,
			BasePath:        "/zoun-admin",
			RequiredRole:    "ADMIN",
			PageSize:        20,
			AppTitle:        "Zoun Admin Panel",
			DarkMode:        false,
			MaxFileSizeMb:   10,
			ListColumnLimit: 10,
			ValidateOnSave:  true,
		},
		Registry: RegistryConfig{
			StrictNames: false,
		},
		Storage: StorageConfig{
			Driver: StorageDriverMemory,
			Table:  "zoun_records",
			SQLite: SQLiteConfig{
				Path: "zoun-admin.db",
			},
			Postgres: DatabaseConfig{
				Host:            "localhost",
				Port:            5432,
				Database:        "zoun",
				Username:        "postgres",
				SSLMode:         "disable",
				MaxConnections:  25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
				ConnMaxIdleTime: 5 * time.Minute,
				Timeout:         30 * time.Second,
			},
		},
		Blob: BlobConfig{
			Enabled: false,
			Driver:  BlobDriverMemory,
			Region:  "us-east-1",
			Prefix:  "zoun-admin",
		},
		Cache: CacheConfig{
			Enabled:   false,
			Addr:      "localhost:6379",
			TTL:       5 * time.Minute,
			KeyPrefix: "zoun",
		},
		Resilience: ResilienceConfig{
			Enabled:      false,
			Threshold:    5,
			Window:       30 * time.Second,
			OpenDuration: 15 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "zoun_admin",
			Path:      "/metrics",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Port:         "8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Admin.PageSize <= 0 {
		return &ConfigError{Field: "admin.pageSize", Message: "must be greater than 0"}
	}

	if c.Admin.ListColumnLimit <= 0 {
		return &ConfigError{Field: "admin.listColumnLimit", Message: "must be greater than 0"}
	}

	if c.Admin.MaxFileSizeMb <= 0 {
		return &ConfigError{Field: "admin.maxFileSizeMb", Message: "must be greater than 0"}
	}

	if !strings.HasPrefix(c.Admin.BasePath, "/") {
		return &ConfigError{Field: "admin.basePath", Message: "must start with '/'"}
	}

	switch c.Storage.Driver {
	case StorageDriverMemory:
	case StorageDriverSQLite:
		if c.Storage.SQLite.Path == "" {
			return &ConfigError{Field: "storage.sqlite.path", Message: "is required for the sqlite driver"}
		}
	case StorageDriverPostgres, StorageDriverPQ:
		if c.Storage.Postgres.Host == "" {
			return &ConfigError{Field: "storage.postgres.host", Message: "is required for the postgres drivers"}
		}
		if c.Storage.Postgres.MaxConnections <= 0 {
			return &ConfigError{Field: "storage.postgres.maxConnections", Message: "must be greater than 0"}
		}
		if c.Storage.Postgres.UseIAM && c.Storage.Postgres.Region == "" {
			return &ConfigError{Field: "storage.postgres.region", Message: "is required when useIAM is set"}
		}
	default:
		return &ConfigError{Field: "storage.driver", Message: "unsupported driver '" + c.Storage.Driver + "'"}
	}

	if c.Storage.Driver != StorageDriverMemory && c.Storage.Table == "" {
		return &ConfigError{Field: "storage.table", Message: "is required"}
	}

	if c.Blob.Enabled {
		switch c.Blob.Driver {
		case BlobDriverMemory:
		case BlobDriverS3:
			if c.Blob.Bucket == "" {
				return &ConfigError{Field: "blob.bucket", Message: "is required for the s3 driver"}
			}
			if (c.Blob.AccessKey == "") != (c.Blob.SecretKey == "") {
				return &ConfigError{Field: "blob.accessKey", Message: "accessKey and secretKey must be provided together"}
			}
		default:
			return &ConfigError{Field: "blob.driver", Message: "unsupported driver '" + c.Blob.Driver + "'"}
		}
	}

	if c.Cache.Enabled && c.Cache.Addr == "" {
		return &ConfigError{Field: "cache.addr", Message: "is required when the cache is enabled"}
	}

	if c.Resilience.Enabled {
		if c.Resilience.Threshold <= 0 {
			return &ConfigError{Field: "resilience.threshold", Message: "must be greater than 0"}
		}
		if c.Resilience.Window <= 0 || c.Resilience.OpenDuration <= 0 {
			return &ConfigError{Field: "resilience.window", Message: "window and openDuration must be positive"}
		}
	}

	return nil
}

// ConfigError represents a configuration validation error
type ConfigError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ConfigError) Error() string {
	return "config validation error for field '" + e.Field + "': " + e.Message
}
