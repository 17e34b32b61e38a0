package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/tendant/editor-bridge/pkg/editorbridge"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithMountPath sets where the connector endpoints are served
func WithMountPath(path string) Option {
	return func(c *ServerConfig) error {
		if path == "" {
			return nil
		}
		if !strings.HasPrefix(path, "/") {
			return fmt.Errorf("mount path must start with '/', got: %s", path)
		}
		c.MountPath = path
		return nil
	}
}

// WithAllowedOrigins sets the CORS origins of the editor
func WithAllowedOrigins(origins ...string) Option {
	return func(c *ServerConfig) error {
		c.AllowedOrigins = nil
		for _, o := range origins {
			if o = strings.TrimSpace(o); o != "" {
				c.AllowedOrigins = append(c.AllowedOrigins, o)
			}
		}
		return nil
	}
}

// WithJWTSecret enables bearer token authentication
func WithJWTSecret(secret string) Option {
	return func(c *ServerConfig) error {
		c.JWTSecret = secret
		return nil
	}
}

// WithMaxUploadSize limits multipart asset uploads
func WithMaxUploadSize(n int64) Option {
	return func(c *ServerConfig) error {
		if n <= 0 {
			return fmt.Errorf("max upload size must be positive, got: %d", n)
		}
		c.MaxUploadSize = n
		return nil
	}
}

// WithDatabase configures the database backend
func WithDatabase(dbType, url string) Option {
	return func(c *ServerConfig) error {
		if dbType != "memory" && dbType != "postgres" {
			return fmt.Errorf("database type must be 'memory' or 'postgres', got: %s", dbType)
		}
		if dbType == "postgres" && url == "" {
			return fmt.Errorf("database URL is required for postgres")
		}
		c.DatabaseType = dbType
		c.DatabaseURL = url
		return nil
	}
}

// WithDatabaseURL picks the database from a URL: empty or "memory" selects the
// in-memory repository, postgres:// and postgresql:// select postgres.
func WithDatabaseURL(dbURL string) Option {
	return func(c *ServerConfig) error {
		switch {
		case dbURL == "" || dbURL == "memory":
			c.DatabaseType = "memory"
			c.DatabaseURL = ""
		case strings.HasPrefix(dbURL, "postgresql://"), strings.HasPrefix(dbURL, "postgres://"):
			c.DatabaseType = "postgres"
			c.DatabaseURL = dbURL
		default:
			return fmt.Errorf("unsupported DATABASE_URL format: %s (use 'memory' or 'postgresql://...')", dbURL)
		}
		return nil
	}
}

// WithDatabaseSchema sets the database schema (for Postgres)
func WithDatabaseSchema(schema string) Option {
	return func(c *ServerConfig) error {
		c.DBSchema = schema
		return nil
	}
}

// WithAutoMigrate controls table creation at startup
func WithAutoMigrate(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.AutoMigrate = enabled
		return nil
	}
}

// WithMemoryStorage keeps blobs in process memory
func WithMemoryStorage() Option {
	return func(c *ServerConfig) error {
		c.Storage = StorageBackendConfig{Type: "memory", Config: map[string]interface{}{}}
		return nil
	}
}

// WithFilesystemStorage stores blobs below baseDir
func WithFilesystemStorage(baseDir string) Option {
	return func(c *ServerConfig) error {
		if baseDir == "" {
			return fmt.Errorf("filesystem base directory cannot be empty")
		}
		c.Storage = StorageBackendConfig{
			Type:   "fs",
			Config: map[string]interface{}{"base_dir": baseDir},
		}
		return nil
	}
}

// WithS3Storage stores blobs in an S3 bucket
func WithS3Storage(bucket, region string) Option {
	return func(c *ServerConfig) error {
		if bucket == "" {
			return fmt.Errorf("S3 bucket cannot be empty")
		}
		if region == "" {
			region = "us-east-1"
		}
		c.Storage = StorageBackendConfig{
			Type: "s3",
			Config: map[string]interface{}{
				"bucket": bucket,
				"region": region,
			},
		}
		return nil
	}
}

// WithS3Credentials sets static credentials and an optional endpoint for S3
func WithS3Credentials(accessKeyID, secretAccessKey, endpoint string) Option {
	return func(c *ServerConfig) error {
		if c.Storage.Type != "s3" {
			return fmt.Errorf("S3 credentials need an s3 storage backend, got: %s", c.Storage.Type)
		}
		if accessKeyID != "" {
			c.Storage.Config["access_key_id"] = accessKeyID
		}
		if secretAccessKey != "" {
			c.Storage.Config["secret_access_key"] = secretAccessKey
		}
		if endpoint != "" {
			c.Storage.Config["endpoint"] = endpoint
			c.Storage.Config["use_path_style"] = true
		}
		return nil
	}
}

// WithMinioStorage stores blobs in a MinIO bucket
func WithMinioStorage(endpoint, bucket, accessKey, secretKey string, useSSL bool) Option {
	return func(c *ServerConfig) error {
		if endpoint == "" || bucket == "" {
			return fmt.Errorf("minio endpoint and bucket cannot be empty")
		}
		c.Storage = StorageBackendConfig{
			Type: "minio",
			Config: map[string]interface{}{
				"endpoint":   endpoint,
				"bucket":     bucket,
				"access_key": accessKey,
				"secret_key": secretKey,
				"use_ssl":    useSSL,
			},
		}
		return nil
	}
}

// WithStorageURL picks the blob store from a URL:
//
//	memory://                                   in-memory
//	file:///var/lib/bridge                      filesystem
//	s3://bucket?region=eu-west-1&endpoint=...   S3
//	minio://host:9000/bucket?ssl=true           MinIO
//
// Credentials for s3 and minio come from WithS3Credentials or the query
// parameters access_key and secret_key.
func WithStorageURL(storageURL string) Option {
	return func(c *ServerConfig) error {
		if storageURL == "" || storageURL == "memory" || storageURL == "memory://" {
			return WithMemoryStorage()(c)
		}
		u, err := url.Parse(storageURL)
		if err != nil {
			return fmt.Errorf("invalid STORAGE_URL: %w", err)
		}
		q := u.Query()
		switch u.Scheme {
		case "file":
			return WithFilesystemStorage(u.Host + u.Path)(c)
		case "s3":
			if err := WithS3Storage(u.Host, q.Get("region"))(c); err != nil {
				return err
			}
			return WithS3Credentials(q.Get("access_key"), q.Get("secret_key"), q.Get("endpoint"))(c)
		case "minio":
			bucket := strings.Trim(u.Path, "/")
			return WithMinioStorage(u.Host, bucket, q.Get("access_key"), q.Get("secret_key"), q.Get("ssl") == "true")(c)
		}
		return fmt.Errorf("unsupported STORAGE_URL format: %s (use 'memory://', 'file://...', 's3://...' or 'minio://...')", storageURL)
	}
}

// WithKeyGenerator selects the blob key layout ("git-like" or "flat")
func WithKeyGenerator(name string) Option {
	return func(c *ServerConfig) error {
		if name != "" {
			c.KeyGenerator = name
		}
		return nil
	}
}

// WithRendition configures the rendition resolver
func WithRendition(chainID, defaultView, xpath string) Option {
	return func(c *ServerConfig) error {
		if xpath != "" && !strings.Contains(xpath, ":") {
			return fmt.Errorf("rendition xpath must be schema-prefixed, got: %s", xpath)
		}
		c.Rendition = editorbridge.RenditionConfig{ChainID: chainID, DefaultView: defaultView, XPath: xpath}
		return nil
	}
}

// WithCreation configures the creation router
func WithCreation(chainID, documentType string) Option {
	return func(c *ServerConfig) error {
		c.Creation = editorbridge.CreationConfig{ChainID: chainID, DocumentType: documentType}
		return nil
	}
}

// WithChains sets the extension chain registry referenced by the rendition and
// creation chain ids
func WithChains(chains *editorbridge.Chains) Option {
	return func(c *ServerConfig) error {
		c.Chains = chains
		return nil
	}
}

// WithEventBus selects where bridge events go ("none", "log", "gochannel")
func WithEventBus(bus string, buffer int64) Option {
	return func(c *ServerConfig) error {
		if bus != "" {
			c.EventBus = bus
		}
		if buffer > 0 {
			c.EventBuffer = buffer
		}
		return nil
	}
}

// WithPreviews enables picture previews and sets the cache lifetime. A zero
// ttl disables caching.
func WithPreviews(enabled bool, ttl time.Duration) Option {
	return func(c *ServerConfig) error {
		if ttl < 0 {
			return fmt.Errorf("preview cache ttl cannot be negative")
		}
		c.EnablePreviews = enabled
		c.PreviewCacheTTL = ttl
		return nil
	}
}

// WithSeedFile seeds the repository from a YAML fixture at startup
func WithSeedFile(path string) Option {
	return func(c *ServerConfig) error {
		c.SeedFile = path
		return nil
	}
}
