package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setTestEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CI", "false")
	t.Setenv("ENV", "test")
	t.Setenv("SECRETS_DIR", t.TempDir())
	t.Setenv(ConfigPathEnvVar, "")
}

func TestLoadConfigDefaults(t *testing.T) {
	setTestEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "local", cfg.Storage.Driver)
	assert.Equal(t, 6, cfg.Pagination.DefaultLimit)
	assert.NotEmpty(t, cfg.Auth.JWTSecret)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestLoadConfigFromEnv(t *testing.T) {
	setTestEnv(t)
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_NAME", "foodgram")
	t.Setenv("DB_PASSWORD", "postgres")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("TOKEN_TTL", "2h")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "db", cfg.Database.Host)
	assert.Equal(t, "postgres", cfg.Database.Password)
	assert.Equal(t, "test-secret", cfg.Auth.JWTSecret)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
	assert.Contains(t, cfg.Database.DSN(), "host=db")
}

func TestLoadConfigFromFileAndSecrets(t *testing.T) {
	setTestEnv(t)
	dir := t.TempDir()

	path := filepath.Join(dir, "config.yaml")
	yaml := "server:\n  port: \"9000\"\nstorage:\n  driver: s3\n  bucket: images\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	t.Setenv(ConfigPathEnvVar, path)

	secrets := os.Getenv("SECRETS_DIR")
	require.NoError(t, os.WriteFile(filepath.Join(secrets, "jwt_secret"), []byte("from-secret\n"), 0o600))

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "s3", cfg.Storage.Driver)
	assert.Equal(t, "images", cfg.Storage.Bucket)
	assert.Equal(t, "from-secret", cfg.Auth.JWTSecret)
}

func TestValidateConfig(t *testing.T) {
	cfg := defaultConfig()
	cfg.Auth.JWTSecret = "x"
	assert.NoError(t, ValidateConfig(cfg, Development))

	err := ValidateConfig(cfg, Production)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite is not allowed in production")

	cfg.Storage.Driver = "ftp"
	cfg.Auth.JWTSecret = ""
	err = ValidateConfig(cfg, Development)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth.jwt_secret")
	assert.Contains(t, err.Error(), "storage.driver")
}

func TestPublicURL(t *testing.T) {
	s := StorageConfig{Bucket: "b", Region: "eu-west-1"}
	assert.Equal(t, "https://b.s3.eu-west-1.amazonaws.com/recipes/x.png", s.PublicURL("recipes/x.png"))

	s.Endpoint = "http://minio:9000"
	assert.Equal(t, "http://minio:9000/b/recipes/x.png", s.PublicURL("recipes/x.png"))

	s.BaseURL = "/media"
	assert.Equal(t, "/media/recipes/x.png", s.PublicURL("recipes/x.png"))
}
