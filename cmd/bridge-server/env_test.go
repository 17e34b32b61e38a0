package main

import (
	"testing"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/editor-bridge/pkg/editorbridge/config"
)

func TestEnvConfig_Defaults(t *testing.T) {
	var env EnvConfig
	require.NoError(t, cleanenv.ReadEnv(&env))

	cfg, err := config.Load(env.Options()...)
	require.NoError(t, err)
	assert.Equal(t, "/connector", cfg.MountPath)
	assert.Equal(t, "memory", cfg.DatabaseType)
	assert.Equal(t, "memory", cfg.Storage.Type)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, 10*time.Minute, cfg.PreviewCacheTTL)
	assert.False(t, env.Telemetry().Enabled)
}

func TestEnvConfig_S3(t *testing.T) {
	t.Setenv("STORAGE_URL", "s3://assets?region=eu-central-1")
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIA")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")
	t.Setenv("AWS_S3_ENDPOINT", "http://localhost:9000")
	t.Setenv("CREATION_DOCUMENT_TYPE", "Topic")
	t.Setenv("RENDITION_XPATH", "file:content")
	t.Setenv("MOUNT_PATH", "/fonto")

	var env EnvConfig
	require.NoError(t, cleanenv.ReadEnv(&env))
	cfg, err := config.Load(env.Options()...)
	require.NoError(t, err)

	assert.Equal(t, "/fonto", cfg.MountPath)
	assert.Equal(t, "s3", cfg.Storage.Type)
	assert.Equal(t, "AKIA", cfg.Storage.Config["access_key_id"])
	assert.Equal(t, "http://localhost:9000", cfg.Storage.Config["endpoint"])
	assert.Equal(t, "eu-central-1", cfg.Storage.Config["region"])
	assert.Equal(t, "Topic", cfg.Creation.DocumentType)
	assert.Equal(t, "file:content", cfg.Rendition.XPath)
}

func TestNewLogger(t *testing.T) {
	assert.NotNil(t, newLogger("production", "debug"))
	assert.NotNil(t, newLogger("development", "bogus"))
}
