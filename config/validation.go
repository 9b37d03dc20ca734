package config

import (
	"errors"
	"fmt"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateConfig checks the configuration against the requirements of env.
func ValidateConfig(cfg *Config, env Environment) error {
	var errs []error

	if cfg.Server.Port == "" {
		errs = append(errs, ValidationError{"server.port", "is required"})
	}

	switch cfg.Database.Driver {
	case "postgres":
		if cfg.Database.Host == "" {
			errs = append(errs, ValidationError{"database.host", "is required for postgres"})
		}
		if cfg.Database.Name == "" {
			errs = append(errs, ValidationError{"database.name", "is required for postgres"})
		}
	case "sqlite":
		if env == Production {
			errs = append(errs, ValidationError{"database.driver", "sqlite is not allowed in production"})
		}
	default:
		errs = append(errs, ValidationError{"database.driver", fmt.Sprintf("unknown driver %q", cfg.Database.Driver)})
	}

	if cfg.Auth.JWTSecret == "" {
		errs = append(errs, ValidationError{"auth.jwt_secret", "is required"})
	}
	if cfg.Auth.TokenTTL <= 0 {
		errs = append(errs, ValidationError{"auth.token_ttl", "must be positive"})
	}

	switch cfg.Storage.Driver {
	case "s3":
		if cfg.Storage.Bucket == "" {
			errs = append(errs, ValidationError{"storage.bucket", "is required for s3"})
		}
	case "local":
		if cfg.Storage.LocalDir == "" {
			errs = append(errs, ValidationError{"storage.local_dir", "is required for local storage"})
		}
	default:
		errs = append(errs, ValidationError{"storage.driver", fmt.Sprintf("unknown driver %q", cfg.Storage.Driver)})
	}

	if cfg.Pagination.DefaultLimit < 1 || cfg.Pagination.MaxLimit < cfg.Pagination.DefaultLimit {
		errs = append(errs, ValidationError{"pagination", "default_limit must be between 1 and max_limit"})
	}
	if cfg.RateLimit.RecipeCreations < 0 {
		errs = append(errs, ValidationError{"ratelimit.recipe_creations", "must not be negative"})
	}

	return errors.Join(errs...)
}
