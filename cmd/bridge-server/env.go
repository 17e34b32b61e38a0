package main

import (
	"strings"
	"time"

	"github.com/tendant/editor-bridge/pkg/editorbridge/config"
	"github.com/tendant/editor-bridge/pkg/editorbridge/telemetry"
)

// EnvConfig is read from the process environment with cleanenv.
type EnvConfig struct {
	Port        string `env:"PORT" env-default:"8080"`
	Environment string `env:"ENVIRONMENT" env-default:"development"`
	LogLevel    string `env:"LOG_LEVEL" env-default:"info"`
	MountPath   string `env:"MOUNT_PATH" env-default:"/connector"`
	CORSOrigins string `env:"CORS_ALLOWED_ORIGINS" env-default:"*"`
	MaxUpload   int64  `env:"MAX_UPLOAD_BYTES" env-default:"67108864"`
	JWTSecret   string `env:"JWT_SECRET"`

	DatabaseURL string `env:"DATABASE_URL" env-default:"memory"`
	DBSchema    string `env:"DB_SCHEMA"`
	AutoMigrate bool   `env:"DB_AUTO_MIGRATE" env-default:"true"`

	StorageURL   string `env:"STORAGE_URL" env-default:"memory://"`
	KeyGenerator string `env:"STORAGE_KEY_LAYOUT" env-default:"git-like"`
	S3           S3Env

	Rendition RenditionEnv
	Creation  CreationEnv

	EventBus    string `env:"EVENT_BUS" env-default:"log"`
	EventBuffer int64  `env:"EVENT_BUFFER" env-default:"64"`

	EnablePreviews  bool          `env:"ENABLE_PREVIEWS" env-default:"true"`
	PreviewCacheTTL time.Duration `env:"PREVIEW_CACHE_TTL" env-default:"10m"`

	SeedFile string `env:"SEED_FILE"`

	Tracing TracingEnv
}

// S3Env carries credentials for s3:// storage URLs.
type S3Env struct {
	AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	Endpoint        string `env:"AWS_S3_ENDPOINT"`
}

type RenditionEnv struct {
	ChainID     string `env:"RENDITION_CHAIN"`
	DefaultView string `env:"RENDITION_DEFAULT_VIEW"`
	XPath       string `env:"RENDITION_XPATH"`
}

type CreationEnv struct {
	ChainID      string `env:"CREATION_CHAIN"`
	DocumentType string `env:"CREATION_DOCUMENT_TYPE"`
}

type TracingEnv struct {
	Enabled    bool   `env:"OTEL_ENABLED" env-default:"false"`
	Service    string `env:"OTEL_SERVICE_NAME" env-default:"editor-bridge"`
	Protocol   string `env:"OTEL_EXPORTER_OTLP_PROTOCOL" env-default:"http/protobuf"`
	Endpoint   string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Insecure   bool   `env:"OTEL_EXPORTER_OTLP_INSECURE" env-default:"false"`
	Sampler    string `env:"OTEL_TRACES_SAMPLER" env-default:"parentbased_always_on"`
	SamplerArg string `env:"OTEL_TRACES_SAMPLER_ARG"`
}

// Options maps the environment onto config options.
func (e EnvConfig) Options() []config.Option {
	opts := []config.Option{
		config.WithPort(e.Port),
		config.WithEnvironment(e.Environment),
		config.WithMountPath(e.MountPath),
		config.WithAllowedOrigins(strings.Split(e.CORSOrigins, ",")...),
		config.WithMaxUploadSize(e.MaxUpload),
		config.WithJWTSecret(e.JWTSecret),
		config.WithDatabaseURL(e.DatabaseURL),
		config.WithDatabaseSchema(e.DBSchema),
		config.WithAutoMigrate(e.AutoMigrate),
		config.WithStorageURL(e.StorageURL),
		config.WithKeyGenerator(e.KeyGenerator),
		config.WithRendition(e.Rendition.ChainID, e.Rendition.DefaultView, e.Rendition.XPath),
		config.WithCreation(e.Creation.ChainID, e.Creation.DocumentType),
		config.WithEventBus(e.EventBus, e.EventBuffer),
		config.WithPreviews(e.EnablePreviews, e.PreviewCacheTTL),
		config.WithSeedFile(e.SeedFile),
	}
	if strings.HasPrefix(e.StorageURL, "s3://") {
		opts = append(opts, config.WithS3Credentials(e.S3.AccessKeyID, e.S3.SecretAccessKey, e.S3.Endpoint))
	}
	return opts
}

// Telemetry returns the tracing configuration.
func (e EnvConfig) Telemetry() telemetry.Config {
	return telemetry.Config{
		Enabled:     e.Tracing.Enabled,
		ServiceName: e.Tracing.Service,
		Protocol:    e.Tracing.Protocol,
		Endpoint:    e.Tracing.Endpoint,
		Insecure:    e.Tracing.Insecure,
		Sampler:     e.Tracing.Sampler,
		SamplerArg:  e.Tracing.SamplerArg,
	}
}
