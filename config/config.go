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

// DefaultJWTSecret is only acceptable outside of production.
const DefaultJWTSecret = "dev-secret-change-me"

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are searched in order when CONFIG_PATH is not set.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/foodgram/config.yaml",
}

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	DB         DBConfig         `koanf:"db"`
	Redis      RedisConfig      `koanf:"redis"`
	JWT        JWTConfig        `koanf:"jwt"`
	Storage    StorageConfig    `koanf:"storage"`
	S3         S3Settings       `koanf:"s3"`
	Log        LogConfig        `koanf:"log"`
	RateLimit  RateLimitConfig  `koanf:"ratelimit"`
	CORS       CORSConfig       `koanf:"cors"`
	Pagination PaginationConfig `koanf:"pagination"`
}

type ServerConfig struct {
	Host         string        `koanf:"host"`
	Port         string        `koanf:"port"`
	Mode         string        `koanf:"mode"`
	PublicURL    string        `koanf:"public_url"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

type DBConfig struct {
	Driver          string        `koanf:"driver"`
	URL             string        `koanf:"url"`
	Host            string        `koanf:"host"`
	Port            string        `koanf:"port"`
	User            string        `koanf:"user"`
	Password        string        `koanf:"password"`
	Name            string        `koanf:"name"`
	SSLMode         string        `koanf:"ssl_mode"`
	Path            string        `koanf:"path"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

// DSN builds the connection string for the configured driver.
func (d DBConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.Path
	}
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

type RedisConfig struct {
	URL      string `koanf:"url"`
	Host     string `koanf:"host"`
	Port     string `koanf:"port"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// Enabled reports whether a redis endpoint is configured at all.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Host != ""
}

type JWTConfig struct {
	Secret string        `koanf:"secret"`
	TTL    time.Duration `koanf:"ttl"`
}

type StorageConfig struct {
	Backend       string `koanf:"backend"`
	MediaRoot     string `koanf:"media_root"`
	MediaURL      string `koanf:"media_url"`
	MaxImageBytes int64  `koanf:"max_image_bytes"`
}

type S3Settings struct {
	BucketName        string `koanf:"bucket_name"`
	Region            string `koanf:"region"`
	Endpoint          string `koanf:"endpoint"`
	PublicBaseURL     string `koanf:"public_base_url"`
	ApplyPublicPolicy bool   `koanf:"apply_public_policy"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type RateLimitConfig struct {
	RecipeCreatePerHour int `koanf:"recipe_create_per_hour"`
	RecipeModifyPerHour int `koanf:"recipe_modify_per_hour"`
}

type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
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
			Mode:         "release",
			PublicURL:    "http://localhost:8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		DB: DBConfig{
			Driver:          "postgres",
			Host:            "localhost",
			Port:            "5432",
			User:            "foodgram",
			Name:            "foodgram",
			SSLMode:         "disable",
			Path:            "foodgram.db",
			MaxOpenConns:    25,
			MaxIdleConns:    25,
			ConnMaxLifetime: 5 * time.Minute,
		},
		JWT: JWTConfig{
			Secret: "",
			TTL:    24 * time.Hour,
		},
		Storage: StorageConfig{
			Backend:       "local",
			MediaRoot:     "media",
			MediaURL:      "/media/",
			MaxImageBytes: 5 << 20,
		},
		S3: S3Settings{
			BucketName: "foodgram-media",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		RateLimit: RateLimitConfig{
			RecipeCreatePerHour: 30,
			RecipeModifyPerHour: 60,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Pagination: PaginationConfig{
			DefaultLimit: 6,
			MaxLimit:     100,
		},
	}
}

// LoadConfig builds the configuration from defaults, an optional YAML file and
// the environment, in increasing order of priority. Secrets still empty after
// that are read from the Docker secrets directory.
func LoadConfig() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	applySecrets(cfg)

	if GetEnvironment() != Production && cfg.JWT.Secret == "" {
		cfg.JWT.Secret = DefaultJWTSecret
	}

	if err := ValidateConfig(cfg); err != nil {
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

// sections are the top-level keys an environment variable may address.
var sections = map[string]bool{
	"server":     true,
	"db":         true,
	"redis":      true,
	"jwt":        true,
	"storage":    true,
	"s3":         true,
	"log":        true,
	"ratelimit":  true,
	"cors":       true,
	"pagination": true,
}

var envAliases = map[string]string{
	"database_url": "db.url",
	"aws_region":   "s3.region",
	"port":         "server.port",
}

// envTransformFunc maps SECTION_FIELD_NAME to section.field_name. Variables
// outside the known sections are dropped.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)
	if alias, ok := envAliases[key]; ok {
		return alias
	}
	section, field, ok := strings.Cut(key, "_")
	if !ok || !sections[section] || field == "" {
		return ""
	}
	return section + "." + field
}

var sliceConfigPaths = []string{
	"cors.allowed_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		raw, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(raw, ",")
		values := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				values = append(values, p)
			}
		}
		if err := k.Set(path, values); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

func applySecrets(cfg *Config) {
	if cfg.DB.Password == "" {
		cfg.DB.Password = readSecret("db_password")
	}
	if cfg.JWT.Secret == "" {
		cfg.JWT.Secret = readSecret("jwt_secret")
	}
	if cfg.Redis.Password == "" {
		cfg.Redis.Password = readSecret("redis_password")
	}
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
