// Package presets assembles ready-to-use services for common deployments.
package presets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/tendant/simple-store/pkg/simplestore"
	"github.com/tendant/simple-store/pkg/simplestore/config"
	memoryrepo "github.com/tendant/simple-store/pkg/simplestore/repo/memory"
	fsstorage "github.com/tendant/simple-store/pkg/simplestore/storage/fs"
	memorystorage "github.com/tendant/simple-store/pkg/simplestore/storage/memory"
)

// NewDevelopment creates a service for local development: users live in
// memory and files are written under ./dev-data (or WithDevStorage).
//
// The returned cleanup function removes the storage directory.
//
//	svc, cleanup, err := presets.NewDevelopment()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cleanup()
func NewDevelopment(opts ...DevelopmentOption) (simplestore.Service, func(), error) {
	cfg := &devConfig{
		storageDir: "./dev-data",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	fsBackend, err := fsstorage.New(fsstorage.Config{BaseDir: cfg.storageDir})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create filesystem storage: %w", err)
	}

	svc, err := simplestore.New(
		simplestore.WithUserRepository(memoryrepo.New()),
		simplestore.WithObjectStore(fsBackend),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create service: %w", err)
	}

	cleanup := func() {
		os.RemoveAll(cfg.storageDir)
	}
	return svc, cleanup, nil
}

// NewTesting creates an isolated in-memory service for tests.
// Safe for parallel tests: every call gets its own backends.
func NewTesting(t testing.TB, opts ...TestingOption) simplestore.Service {
	t.Helper()

	cfg := &testConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	options := append([]simplestore.Option{
		simplestore.WithUserRepository(memoryrepo.New()),
		simplestore.WithObjectStore(memorystorage.New()),
	}, cfg.options...)

	svc, err := simplestore.New(options...)
	if err != nil {
		t.Fatalf("failed to create test service: %v", err)
	}

	if cfg.fixtures {
		if err := loadFixtures(context.Background(), svc); err != nil {
			t.Fatalf("failed to load fixtures: %v", err)
		}
	}
	return svc
}

// Fixture data loaded by WithTestFixtures
var (
	FixtureUsers = []simplestore.CreateUserRequest{
		{Email: "alice@example.com", Name: "Alice"},
		{Email: "bob@example.com", Name: "Bob"},
	}
	FixtureFiles = map[string]string{
		"fixtures/readme.txt":  "simple-store fixture",
		"fixtures/data/a.json": `{"a":1}`,
	}
)

func loadFixtures(ctx context.Context, svc simplestore.Service) error {
	for _, u := range FixtureUsers {
		if _, err := svc.CreateUser(ctx, u); err != nil {
			return err
		}
	}
	for key, body := range FixtureFiles {
		_, err := svc.UploadFile(ctx, simplestore.RawUpload{
			Key:         key,
			ContentType: "text/plain",
			Body:        strings.NewReader(body),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// NewProduction builds the service from the environment (see config.EnvConfig)
// and refuses in-memory backends. Close the returned runtime on shutdown.
func NewProduction(ctx context.Context, opts ...config.Option) (*config.Runtime, error) {
	cfg, err := config.Load(append([]config.Option{config.WithEnv()}, opts...)...)
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseType == "memory" {
		return nil, errors.New("production preset requires a postgres DATABASE_URL")
	}
	if cfg.Storage.Type == "memory" {
		return nil, errors.New("production preset requires persistent storage (file:// or s3://)")
	}
	return cfg.BuildService(ctx, nil)
}

type devConfig struct {
	storageDir string
}

type testConfig struct {
	fixtures bool
	options  []simplestore.Option
}

// DevelopmentOption is a functional option for NewDevelopment
type DevelopmentOption func(*devConfig)

// WithDevStorage sets the development storage directory
func WithDevStorage(dir string) DevelopmentOption {
	return func(cfg *devConfig) {
		cfg.storageDir = dir
	}
}

// TestingOption is a functional option for NewTesting
type TestingOption func(*testConfig)

// WithTestFixtures seeds FixtureUsers and FixtureFiles
func WithTestFixtures() TestingOption {
	return func(cfg *testConfig) {
		cfg.fixtures = true
	}
}

// WithServiceOptions passes extra options (clock, key generator) to the service
func WithServiceOptions(opts ...simplestore.Option) TestingOption {
	return func(cfg *testConfig) {
		cfg.options = append(cfg.options, opts...)
	}
}
