package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every problem found in one pass.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "\n")
}

// ValidateConfig checks the configuration against the requirements of the
// current environment.
func ValidateConfig(cfg *Config) error {
	return validateFor(cfg, GetEnvironment())
}

func validateFor(cfg *Config, env Environment) error {
	var errs ValidationErrors
	add := func(field, msg string) {
		errs = append(errs, ValidationError{Field: field, Message: msg})
	}

	if cfg.Server.Port == "" {
		add("server.port", "is required")
	}

	switch cfg.DB.Driver {
	case "postgres":
		if cfg.DB.URL == "" {
			if cfg.DB.Host == "" {
				add("db.host", "is required for postgres")
			}
			if cfg.DB.Name == "" {
				add("db.name", "is required for postgres")
			}
			if cfg.DB.User == "" {
				add("db.user", "is required for postgres")
			}
		}
	case "sqlite":
		if cfg.DB.Path == "" {
			add("db.path", "is required for sqlite")
		}
		if env == Production {
			add("db.driver", "sqlite is not allowed in production")
		}
	default:
		add("db.driver", fmt.Sprintf("unsupported driver %q", cfg.DB.Driver))
	}

	switch cfg.Storage.Backend {
	case "local":
		if cfg.Storage.MediaRoot == "" {
			add("storage.media_root", "is required for the local backend")
		}
	case "s3":
		if cfg.S3.BucketName == "" {
			add("s3.bucket_name", "is required for the s3 backend")
		}
	default:
		add("storage.backend", fmt.Sprintf("unsupported backend %q", cfg.Storage.Backend))
	}
	if cfg.Storage.MaxImageBytes <= 0 {
		add("storage.max_image_bytes", "must be positive")
	}

	if cfg.JWT.TTL <= 0 {
		add("jwt.ttl", "must be positive")
	}
	if cfg.Pagination.DefaultLimit <= 0 || cfg.Pagination.MaxLimit < cfg.Pagination.DefaultLimit {
		add("pagination", "default_limit must be positive and not exceed max_limit")
	}

	if env == Production || env == CI {
		if cfg.JWT.Secret == "" || cfg.JWT.Secret == DefaultJWTSecret {
			add("jwt.secret", "jwt_secret secret is required")
		}
		if cfg.DB.Driver == "postgres" && cfg.DB.URL == "" && cfg.DB.Password == "" {
			add("db.password", "db_password secret is required")
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
