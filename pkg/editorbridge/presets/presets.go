package presets

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/tendant/editor-bridge/pkg/editorbridge"
	"github.com/tendant/editor-bridge/pkg/editorbridge/config"
	"github.com/tendant/editor-bridge/pkg/editorbridge/fixtures"
)

// Configuration Presets
//
// Presets build a ready bridge for the common setups so embedders and tests
// skip the config plumbing.

// Bridge is a built bridge plus the ids of any seeded nodes, keyed by path.
type Bridge struct {
	*config.Runtime
	IDs map[string]string
}

// ID returns the seeded node id at path, or "" when nothing was seeded there.
func (b *Bridge) ID(path string) string {
	return b.IDs[path]
}

// NewDevelopment builds a bridge for local work.
//
//   - In-memory repository
//   - Events written to the log
//   - Picture previews enabled
//
// When a seed file is given the repository is populated before returning.
// The caller closes the returned bridge.
func NewDevelopment(ctx context.Context, opts ...DevelopmentOption) (*Bridge, error) {
	cfg := &devConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}

	options := append([]config.Option{
		config.WithEnvironment("development"),
		config.WithDatabaseURL("memory"),
		config.WithEventBus("log", 0),
	}, cfg.extra...)
	sc, err := config.Load(options...)
	if err != nil {
		return nil, fmt.Errorf("failed to load development config: %w", err)
	}
	rt, err := sc.BuildService(ctx, cfg.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build development bridge: %w", err)
	}

	b := &Bridge{Runtime: rt, IDs: map[string]string{}}
	if cfg.seedFile != "" {
		ids, err := fixtures.SeedFile(ctx, rt.Repository, cfg.seedFile, cfg.logger)
		if err != nil {
			_ = rt.Close()
			return nil, fmt.Errorf("failed to seed %s: %w", cfg.seedFile, err)
		}
		b.IDs = ids
	}
	return b, nil
}

// NewTesting builds an isolated in-memory bridge and closes it when the test
// finishes. Events are dropped and previews are built without a cache.
//
//	func TestMyFeature(t *testing.T) {
//	    b := presets.NewTesting(t, presets.WithFixture(tree))
//	    doc, err := b.Service.GetDocument(ctx, "alice", b.ID("/docs/topic.dita"))
//	}
func NewTesting(t testing.TB, opts ...TestingOption) *Bridge {
	t.Helper()
	cfg := &testConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	options := []config.Option{
		config.WithEnvironment("testing"),
		config.WithDatabaseURL("memory"),
		config.WithEventBus("none", 0),
		config.WithPreviews(true, 0),
		config.WithCreation(cfg.creationChain, cfg.docType),
		config.WithRendition(cfg.renditionChain, "", ""),
	}
	if cfg.chains != nil {
		options = append(options, config.WithChains(cfg.chains))
	}
	sc, err := config.Load(options...)
	if err != nil {
		t.Fatalf("failed to load test config: %v", err)
	}
	rt, err := sc.BuildService(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("failed to create test bridge: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })

	b := &Bridge{Runtime: rt, IDs: map[string]string{}}
	if cfg.fixture != "" {
		f, err := fixtures.Load(strings.NewReader(cfg.fixture))
		if err != nil {
			t.Fatalf("failed to load fixture: %v", err)
		}
		ids, err := fixtures.NewSeeder(rt.Repository, nil, slog.New(slog.NewTextHandler(io.Discard, nil))).Seed(context.Background(), f)
		if err != nil {
			t.Fatalf("failed to seed fixture: %v", err)
		}
		b.IDs = ids
	}
	return b
}

// NewProduction builds a bridge from the environment.
//
// Required:
//   - DATABASE_URL: postgres connection string
//   - STORAGE_URL: file://, s3:// or minio:// blob store
//
// Optional:
//   - DB_SCHEMA, OBJECT_KEY_GENERATOR
//
// Memory backends are rejected.
func NewProduction(ctx context.Context, logger *slog.Logger, opts ...ProductionOption) (*config.Runtime, error) {
	cfg := &prodConfig{
		databaseURL:  os.Getenv("DATABASE_URL"),
		storageURL:   os.Getenv("STORAGE_URL"),
		schema:       os.Getenv("DB_SCHEMA"),
		keyGenerator: os.Getenv("OBJECT_KEY_GENERATOR"),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.databaseURL == "" || cfg.databaseURL == "memory" {
		return nil, fmt.Errorf("production preset requires a postgres DATABASE_URL")
	}
	if cfg.storageURL == "" || strings.HasPrefix(cfg.storageURL, "memory") {
		return nil, fmt.Errorf("production preset requires persistent storage (file, s3 or minio)")
	}

	options := append([]config.Option{
		config.WithEnvironment("production"),
		config.WithDatabaseURL(cfg.databaseURL),
		config.WithDatabaseSchema(cfg.schema),
		config.WithStorageURL(cfg.storageURL),
		config.WithKeyGenerator(cfg.keyGenerator),
	}, cfg.extra...)
	sc, err := config.Load(options...)
	if err != nil {
		return nil, fmt.Errorf("failed to load production config: %w", err)
	}
	return sc.BuildService(ctx, logger)
}

type devConfig struct {
	seedFile string
	logger   *slog.Logger
	extra    []config.Option
}

type testConfig struct {
	fixture        string
	docType        string
	chains         *editorbridge.Chains
	renditionChain string
	creationChain  string
}

type prodConfig struct {
	databaseURL  string
	storageURL   string
	schema       string
	keyGenerator string
	extra        []config.Option
}

// DevelopmentOption is a functional option for NewDevelopment
type DevelopmentOption func(*devConfig)

// WithDevSeedFile seeds the development repository from a YAML fixture
func WithDevSeedFile(path string) DevelopmentOption {
	return func(cfg *devConfig) {
		cfg.seedFile = path
	}
}

// WithDevLogger sets the logger for the bridge and the seeder
func WithDevLogger(logger *slog.Logger) DevelopmentOption {
	return func(cfg *devConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithDevConfig appends config options applied after the preset defaults
func WithDevConfig(opts ...config.Option) DevelopmentOption {
	return func(cfg *devConfig) {
		cfg.extra = append(cfg.extra, opts...)
	}
}

// TestingOption is a functional option for NewTesting
type TestingOption func(*testConfig)

// WithFixture seeds the test repository from an inline YAML fixture
func WithFixture(yaml string) TestingOption {
	return func(cfg *testConfig) {
		cfg.fixture = yaml
	}
}

// WithDocumentType routes created documents to a custom document type
func WithDocumentType(docType string) TestingOption {
	return func(cfg *testConfig) {
		cfg.docType = docType
	}
}

// WithTestChains registers extension chains and binds them to rendition and creation
func WithTestChains(chains *editorbridge.Chains, renditionChain, creationChain string) TestingOption {
	return func(cfg *testConfig) {
		cfg.chains = chains
		cfg.renditionChain = renditionChain
		cfg.creationChain = creationChain
	}
}

// ProductionOption is a functional option for NewProduction
type ProductionOption func(*prodConfig)

// WithProdDatabase overrides DATABASE_URL and DB_SCHEMA
func WithProdDatabase(url, schema string) ProductionOption {
	return func(cfg *prodConfig) {
		cfg.databaseURL = url
		cfg.schema = schema
	}
}

// WithProdStorage overrides STORAGE_URL
func WithProdStorage(storageURL string) ProductionOption {
	return func(cfg *prodConfig) {
		cfg.storageURL = storageURL
	}
}

// WithProdConfig appends config options applied after the environment
func WithProdConfig(opts ...config.Option) ProductionOption {
	return func(cfg *prodConfig) {
		cfg.extra = append(cfg.extra, opts...)
	}
}
