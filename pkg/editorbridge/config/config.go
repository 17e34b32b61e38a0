package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/editor-bridge/pkg/editorbridge"
	"github.com/tendant/editor-bridge/pkg/editorbridge/events"
	"github.com/tendant/editor-bridge/pkg/editorbridge/objectkey"
	"github.com/tendant/editor-bridge/pkg/editorbridge/preview"
	"github.com/tendant/editor-bridge/pkg/editorbridge/repo/memory"
	repopg "github.com/tendant/editor-bridge/pkg/editorbridge/repo/postgres"
	fsstorage "github.com/tendant/editor-bridge/pkg/editorbridge/storage/fs"
	memorystorage "github.com/tendant/editor-bridge/pkg/editorbridge/storage/memory"
	miniostorage "github.com/tendant/editor-bridge/pkg/editorbridge/storage/minio"
	s3storage "github.com/tendant/editor-bridge/pkg/editorbridge/storage/s3"
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
		MountPath:    "/connector",
		DatabaseType: "memory",
		AutoMigrate:  true,
		Storage: StorageBackendConfig{
			Type:   "memory",
			Config: map[string]interface{}{},
		},
		KeyGenerator:    "git-like",
		MaxUploadSize:   64 << 20,
		EventBus:        "log",
		EventBuffer:     64,
		EnablePreviews:  true,
		PreviewCacheTTL: 10 * time.Minute,
	}
}

// ServerConfig represents the configuration of the editor bridge server
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing
	MountPath   string

	AllowedOrigins []string
	MaxUploadSize  int64
	JWTSecret      string

	// Database configuration
	DatabaseURL  string
	DatabaseType string // "memory", "postgres"
	DBSchema     string
	AutoMigrate  bool

	// Blob storage used by the postgres repository
	Storage      StorageBackendConfig
	KeyGenerator string // "git-like", "flat"

	// Bridge behaviour
	Rendition editorbridge.RenditionConfig
	Creation  editorbridge.CreationConfig
	Chains    *editorbridge.Chains

	// EventBus is "none", "log" or "gochannel".
	EventBus    string
	EventBuffer int64

	EnablePreviews  bool
	PreviewCacheTTL time.Duration

	SeedFile string
}

// StorageBackendConfig represents configuration for a blob storage backend
type StorageBackendConfig struct {
	Type   string // "memory", "fs", "s3", "minio"
	Config map[string]interface{}
}

// IsProduction reports whether the server runs in production mode.
func (c *ServerConfig) IsProduction() bool {
	return c.Environment == "production"
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	if c.DatabaseType != "memory" && c.DatabaseType != "postgres" {
		return errors.New("database_type must be 'memory' or 'postgres'")
	}

	if c.DatabaseType == "postgres" && c.DatabaseURL == "" {
		return errors.New("database_url is required when using postgres")
	}

	switch c.Storage.Type {
	case "memory", "fs", "s3", "minio":
	default:
		return fmt.Errorf("unsupported storage backend type: %s", c.Storage.Type)
	}

	switch c.KeyGenerator {
	case "git-like", "flat":
	default:
		return fmt.Errorf("unsupported key generator: %s", c.KeyGenerator)
	}

	switch c.EventBus {
	case "none", "log", "gochannel":
	default:
		return fmt.Errorf("event_bus must be 'none', 'log' or 'gochannel', got: %s", c.EventBus)
	}

	if c.Creation.DocumentType != "" && c.Creation.DocumentType == editorbridge.TypeFolder {
		return errors.New("document type cannot be a folder type")
	}

	return nil
}

// Runtime holds the built service and what must be released with it.
type Runtime struct {
	Service    editorbridge.Service
	Repository editorbridge.Repository
	// Publisher is set when EventBus is "gochannel".
	Publisher message.Publisher

	closers []func() error
}

// Close releases the database pool and the event publisher.
func (r *Runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BuildService creates the bridge service and its collaborators from the configuration
func (c *ServerConfig) BuildService(ctx context.Context, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rt := &Runtime{}

	types := editorbridge.DefaultTypes()
	if c.Creation.DocumentType != "" {
		types.Register(c.Creation.DocumentType, editorbridge.KindFile)
	}

	repo, err := c.buildRepository(ctx, rt, types, logger)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}
	rt.Repository = repo

	options := []editorbridge.Option{
		editorbridge.WithRepository(repo),
		editorbridge.WithRenditionConfig(c.Rendition),
		editorbridge.WithCreationConfig(c.Creation),
		editorbridge.WithLogger(logger),
	}
	if c.Chains != nil {
		options = append(options, editorbridge.WithChains(c.Chains))
	}

	// Set up event sink
	switch c.EventBus {
	case "log":
		options = append(options, editorbridge.WithEventSink(editorbridge.NewLoggingEventSink(logger)))
	case "gochannel":
		pubsub := events.NewGoChannel(c.EventBuffer)
		rt.Publisher = pubsub
		rt.closers = append(rt.closers, pubsub.Close)
		options = append(options, editorbridge.WithEventSink(editorbridge.MultiEventSink{
			editorbridge.NewLoggingEventSink(logger),
			events.NewWatermillSink(pubsub, logger),
		}))
	}

	// Set up previewer
	if c.EnablePreviews {
		options = append(options, editorbridge.WithPreviewer(preview.New(
			preview.WithTTL(c.PreviewCacheTTL),
			preview.WithLogger(logger),
		)))
	}

	svc, err := editorbridge.New(options...)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.Service = svc
	return rt, nil
}

// buildRepository creates a Repository based on the configuration
func (c *ServerConfig) buildRepository(ctx context.Context, rt *Runtime, types *editorbridge.TypeRegistry, logger *slog.Logger) (editorbridge.Repository, error) {
	switch c.DatabaseType {
	case "memory":
		return memory.New(memory.WithTypes(types)), nil
	case "postgres":
		pool, err := newPool(ctx, c.DatabaseURL, c.DBSchema)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() error { pool.Close(); return nil })

		store, err := c.buildStorageBackend(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to build storage backend %s: %w", c.Storage.Type, err)
		}
		repo := repopg.NewWithPool(pool, store,
			repopg.WithTypes(types),
			repopg.WithKeyGenerator(c.keyGenerator()),
			repopg.WithLogger(logger),
		)
		if c.AutoMigrate {
			if err := repo.Migrate(ctx); err != nil {
				return nil, err
			}
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

func (c *ServerConfig) keyGenerator() objectkey.Generator {
	if c.KeyGenerator == "flat" {
		return objectkey.NewFlatGenerator()
	}
	return objectkey.NewGitLikeGenerator()
}

func newPool(ctx context.Context, databaseURL, schema string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	if schema != "" {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s", pgx.Identifier{schema}.Sanitize()))
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	return pool, nil
}

// PingPostgres verifies connectivity to Postgres with the configured schema.
func PingPostgres(databaseURL, schema string) error {
	if databaseURL == "" {
		return errors.New("database_url is required")
	}
	pool, err := newPool(context.Background(), databaseURL, schema)
	if err != nil {
		return err
	}
	defer pool.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// buildStorageBackend creates a BlobStore based on the backend configuration
func (c *ServerConfig) buildStorageBackend(ctx context.Context) (editorbridge.BlobStore, error) {
	config := c.Storage
	switch config.Type {
	case "memory":
		return memorystorage.New(), nil

	case "fs":
		return fsstorage.New(fsstorage.Config{
			BaseDir: getString(config.Config, "base_dir", "./data/storage"),
		})

	case "s3":
		return s3storage.New(ctx, s3storage.Config{
			Region:                 getString(config.Config, "region", "us-east-1"),
			Bucket:                 getString(config.Config, "bucket", ""),
			AccessKeyID:            getString(config.Config, "access_key_id", ""),
			SecretAccessKey:        getString(config.Config, "secret_access_key", ""),
			Endpoint:               getString(config.Config, "endpoint", ""),
			UsePathStyle:           getBool(config.Config, "use_path_style", false),
			EnableSSE:              getBool(config.Config, "enable_sse", false),
			SSEAlgorithm:           getString(config.Config, "sse_algorithm", "AES256"),
			SSEKMSKeyID:            getString(config.Config, "sse_kms_key_id", ""),
			CreateBucketIfNotExist: getBool(config.Config, "create_bucket_if_not_exist", false),
		})

	case "minio":
		return miniostorage.New(ctx, miniostorage.Config{
			Endpoint:  getString(config.Config, "endpoint", ""),
			AccessKey: getString(config.Config, "access_key", ""),
			SecretKey: getString(config.Config, "secret_key", ""),
			Bucket:    getString(config.Config, "bucket", ""),
			UseSSL:    getBool(config.Config, "use_ssl", false),
		})

	default:
		return nil, fmt.Errorf("unsupported storage backend type: %s", config.Type)
	}
}

func getString(config map[string]interface{}, key string, defaultValue string) string {
	if value, exists := config[key]; exists {
		if str, ok := value.(string); ok && str != "" {
			return str
		}
	}
	return defaultValue
}

func getBool(config map[string]interface{}, key string, defaultValue bool) bool {
	if value, exists := config[key]; exists {
		if b, ok := value.(bool); ok {
			return b
		}
		if str, ok := value.(string); ok {
			if b, err := strconv.ParseBool(str); err == nil {
				return b
			}
		}
	}
	return defaultValue
}
