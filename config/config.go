package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/foodgram/config.yaml",
}

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Database   DatabaseConfig   `koanf:"database"`
	Redis      RedisConfig      `koanf:"redis"`
	Auth       AuthConfig       `koanf:"auth"`
	Storage    StorageConfig    `koanf:"storage"`
	RateLimit  RateLimitConfig  `koanf:"ratelimit"`
	Logging    LoggingConfig    `koanf:"logging"`
	Pagination PaginationConfig `koanf:"pagination"`
}

type ServerConfig struct {
	Host         string        `koanf:"host"`
	Port         string        `koanf:"port"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	CORSOrigins  []string      `koanf:"cors_origins"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

type DatabaseConfig struct {
	// Driver is postgres or sqlite
	Driver        string        `koanf:"driver"`
	Host          string        `koanf:"host"`
	Port          string        `koanf:"port"`
	User          string        `koanf:"user"`
	Password      string        `koanf:"password"`
	Name          string        `koanf:"name"`
	SSLMode       string        `koanf:"sslmode"`
	SQLitePath    string        `koanf:"sqlite_path"`
	MigrationsDir string        `koanf:"migrations_dir"`
	MaxOpenConns  int           `koanf:"max_open_conns"`
	MaxIdleConns  int           `koanf:"max_idle_conns"`
	ConnLifetime  time.Duration `koanf:"conn_lifetime"`
}

// DSN builds the postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Enabled  bool   `koanf:"enabled"`
	URL      string `koanf:"url"`
	Host     string `koanf:"host"`
	Port     string `koanf:"port"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type AuthConfig struct {
	JWTSecret string        `koanf:"jwt_secret"`
	TokenTTL  time.Duration `koanf:"token_ttl"`
}

type RateLimitConfig struct {
	RecipeCreations int           `koanf:"recipe_creations"`
	Window          time.Duration `koanf:"window"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type PaginationConfig struct {
	DefaultLimit int `koanf:"default_limit"`
	MaxLimit     int `koanf:"max_limit"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         "8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			CORSOrigins:  []string{"http://localhost:3000"},
		},
		Database: DatabaseConfig{
			Driver:        "sqlite",
			Host:          "localhost",
			Port:          "5432",
			User:          "foodgram",
			Name:          "foodgram",
			SSLMode:       "disable",
			SQLitePath:    "foodgram.db",
			MigrationsDir: "migrations",
			MaxOpenConns:  25,
			MaxIdleConns:  25,
			ConnLifetime:  5 * time.Minute,
		},
		Redis: RedisConfig{
			Enabled: false,
			Host:    "localhost",
			Port:    "6379",
		},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
		},
		Storage: StorageConfig{
			Driver:   "local",
			LocalDir: "media",
			BaseURL:  "/media",
			Bucket:   "foodgram-recipe-images",
			Region:   "us-east-1",
		},
		RateLimit: RateLimitConfig{
			RecipeCreations: 30,
			Window:          time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Pagination: PaginationConfig{
			DefaultLimit: 6,
			MaxLimit:     100,
		},
	}
}

// LoadConfig builds the configuration from defaults, an optional YAML file,
// environment variables and finally Docker secrets for sensitive values.
func LoadConfig() (*Config, error) {
	env := GetEnvironment()
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(envProvider(), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := splitListValue(k, "server.cors_origins"); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	// CI passes secrets as environment variables only
	if env != CI {
		applySecrets(cfg)
	}
	if env == Development || env == Test {
		if cfg.Auth.JWTSecret == "" {
			cfg.Auth.JWTSecret = "dev-insecure-secret"
		}
		if cfg.Logging.Format == "json" && os.Getenv("LOG_FORMAT") == "" {
			cfg.Logging.Format = "console"
		}
	}

	if err := ValidateConfig(cfg, env); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envKeys maps environment variables onto config paths.
var envKeys = map[string]string{
	"server_host":         "server.host",
	"server_port":         "server.port",
	"cors_origins":        "server.cors_origins",
	"db_driver":           "database.driver",
	"db_host":             "database.host",
	"db_port":             "database.port",
	"db_user":             "database.user",
	"db_password":         "database.password",
	"db_name":             "database.name",
	"db_ssl_mode":         "database.sslmode",
	"sqlite_path":         "database.sqlite_path",
	"migrations_dir":      "database.migrations_dir",
	"redis_enabled":       "redis.enabled",
	"redis_url":           "redis.url",
	"redis_host":          "redis.host",
	"redis_port":          "redis.port",
	"redis_password":      "redis.password",
	"jwt_secret":          "auth.jwt_secret",
	"token_ttl":           "auth.token_ttl",
	"storage_driver":      "storage.driver",
	"s3_bucket_name":      "storage.bucket",
	"aws_region":          "storage.region",
	"s3_endpoint":         "storage.endpoint",
	"s3_access_key":       "storage.access_key",
	"s3_secret_key":       "storage.secret_key",
	"media_base_url":      "storage.base_url",
	"media_dir":           "storage.local_dir",
	"recipe_rate_limit":   "ratelimit.recipe_creations",
	"recipe_rate_window":  "ratelimit.window",
	"log_level":           "logging.level",
	"log_format":          "logging.format",
	"page_size":           "pagination.default_limit",
	"max_page_size":       "pagination.max_limit",
}

func envProvider() *env.Env {
	return env.Provider("", ".", envTransformFunc)
}

// envTransformFunc returns "" for variables that are not configuration keys,
// which makes koanf skip them.
func envTransformFunc(key string) string {
	return envKeys[strings.ToLower(key)]
}

func splitListValue(k *koanf.Koanf, path string) error {
	s, ok := k.Get(path).(string)
	if !ok || s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if err := k.Set(path, out); err != nil {
		return fmt.Errorf("failed to set %s: %w", path, err)
	}
	return nil
}

// applySecrets fills sensitive values from Docker secrets when the
// file and environment layers left them empty.
func applySecrets(cfg *Config) {
	fill := func(dst *string, name string) {
		if *dst != "" {
			return
		}
		*dst = readSecret(name)
	}
	fill(&cfg.Database.Password, "db_password")
	fill(&cfg.Auth.JWTSecret, "jwt_secret")
	fill(&cfg.Redis.Password, "redis_password")
	fill(&cfg.Storage.SecretKey, "s3_secret_key")
}

// readSecret reads a Docker secret from the secrets directory
func readSecret(name string) string {
	secretsDir := os.Getenv("SECRETS_DIR")
	if secretsDir == "" {
		secretsDir = "/run/secrets"
	}
	if data, err := os.ReadFile(filepath.Join(secretsDir, name)); err == nil {
		return strings.TrimSpace(string(data))
	}
	return ""
}
