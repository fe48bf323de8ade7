package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tendant/simple-store/pkg/simplestore"
	"github.com/tendant/simple-store/pkg/simplestore/repo/memory"
	repopg "github.com/tendant/simple-store/pkg/simplestore/repo/postgres"
	fsstorage "github.com/tendant/simple-store/pkg/simplestore/storage/fs"
	"github.com/tendant/simple-store/pkg/simplestore/storage/instrumented"
	memorystorage "github.com/tendant/simple-store/pkg/simplestore/storage/memory"
	s3storage "github.com/tendant/simple-store/pkg/simplestore/storage/s3"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:         "8080",
		Environment:  "development",
		APIPrefix:    "/api",
		LogLevel:     "info",
		DatabaseType: "memory",
		Storage: StorageConfig{
			Type: "memory",
		},
		MaxUploadBytes: 100 << 20,
	}
}

// ServerConfig represents server configuration for the simple-store service
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing
	APIPrefix   string
	LogLevel    string // debug, info, warn, error

	// Database configuration
	DatabaseURL  string
	DatabaseType string // "memory", "postgres"
	DBSchema     string // Postgres schema to put on the search_path

	Storage StorageConfig

	// MaxUploadBytes caps request bodies; zero disables the cap
	MaxUploadBytes int64
}

// StorageConfig selects and configures the object store
type StorageConfig struct {
	Type    string // "memory", "fs", "s3"
	BaseDir string // fs only
	S3      s3storage.Config
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	if !strings.HasPrefix(c.APIPrefix, "/") {
		return fmt.Errorf("api prefix must start with '/', got %q", c.APIPrefix)
	}

	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}

	if c.DatabaseType != "memory" && c.DatabaseType != "postgres" {
		return errors.New("database_type must be 'memory' or 'postgres'")
	}

	if c.DatabaseType == "postgres" && c.DatabaseURL == "" {
		return errors.New("database_url is required when using postgres")
	}

	switch c.Storage.Type {
	case "memory":
	case "fs":
		if c.Storage.BaseDir == "" {
			return errors.New("filesystem base directory is required")
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return errors.New("s3 bucket is required")
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}

	if c.MaxUploadBytes < 0 {
		return errors.New("max upload bytes cannot be negative")
	}

	return nil
}

// Runtime holds the assembled service and the resources behind it
type Runtime struct {
	Service simplestore.Service
	pool    *pgxpool.Pool
}

// Ready reports whether the backing database is reachable
func (r *Runtime) Ready(ctx context.Context) error {
	if r.pool == nil {
		return nil
	}
	return r.pool.Ping(ctx)
}

// Close releases the database pool
func (r *Runtime) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}

// BuildService creates the service from the configuration. When reg is
// not nil the object store is instrumented with Prometheus metrics.
func (c *ServerConfig) BuildService(ctx context.Context, reg prometheus.Registerer) (*Runtime, error) {
	rt := &Runtime{}

	users, pool, err := c.buildUserRepository(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}
	rt.pool = pool

	objects, err := c.buildObjectStore(ctx)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to build storage backend %s: %w", c.Storage.Type, err)
	}
	if reg != nil {
		objects = instrumented.New(objects, c.Storage.Type, instrumented.NewMetrics(reg))
	}

	svc, err := simplestore.New(
		simplestore.WithUserRepository(users),
		simplestore.WithObjectStore(objects),
	)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Service = svc
	return rt, nil
}

func (c *ServerConfig) buildUserRepository(ctx context.Context) (simplestore.UserRepository, *pgxpool.Pool, error) {
	switch c.DatabaseType {
	case "memory":
		return memory.New(), nil, nil
	case "postgres":
		pool, err := NewPool(ctx, c.DatabaseURL, c.DBSchema)
		if err != nil {
			return nil, nil, err
		}
		return repopg.NewWithPool(pool), pool, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

// NewPool opens a pgx pool. A non-empty schema is put on every
// connection's search_path.
func NewPool(ctx context.Context, databaseURL, schema string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, errors.New("database_url is required")
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	if schema != "" {
		searchPath := "SET search_path TO " + pgx.Identifier{schema}.Sanitize()
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, searchPath)
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	return pool, nil
}

func (c *ServerConfig) buildObjectStore(ctx context.Context) (simplestore.ObjectStore, error) {
	switch c.Storage.Type {
	case "memory":
		return memorystorage.New(), nil
	case "fs":
		return fsstorage.New(fsstorage.Config{BaseDir: c.Storage.BaseDir})
	case "s3":
		return s3storage.New(ctx, c.Storage.S3)
	default:
		return nil, fmt.Errorf("unsupported storage backend type: %s", c.Storage.Type)
	}
}

// logOutput is where NewLogger writes
var logOutput io.Writer = os.Stderr

// NewLogger builds the process logger: JSON in production, text elsewhere.
func (c *ServerConfig) NewLogger() *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Environment == "production" {
		return slog.New(slog.NewJSONHandler(logOutput, opts))
	}
	return slog.New(slog.NewTextHandler(logOutput, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}
