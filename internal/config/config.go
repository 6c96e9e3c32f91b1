package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates runtime configuration for the ShopDrop API.
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Postgres PostgresConfig
	MinIO    MinIOConfig
	Redis    RedisConfig
	Rate     RateLimitConfig
	Upload   UploadConfig
	Shops    ShopConfig
	Events   EventsConfig
	Auth     AuthConfig
	Log      LogConfig
	Metrics  MetricsConfig
}

// ServerConfig parameterizes the HTTP server.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Address returns the listen address in host:port form.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Store backends.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// StoreConfig governs retention of uploaded files.
type StoreConfig struct {
	Backend       string
	Retention     time.Duration
	SweepInterval time.Duration
	LinkTTL       time.Duration
}

// PostgresConfig contains PostgreSQL connection details.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// DSN returns the PostgreSQL DSN string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

// MinIOConfig carries MinIO connection and bucket information.
type MinIOConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
	Region          string
}

// RedisConfig enables the shared rate limiter and cross-instance event relay.
// An empty Addr keeps both in-process.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a Redis address was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.Addr) != ""
}

// RateLimitConfig bounds uploads per shop.
type RateLimitConfig struct {
	Limit  int
	Window time.Duration
}

// UploadConfig holds the upload-edge validation limits.
type UploadConfig struct {
	MaxBytes         int64
	AllowedMIMETypes []string
}

// ShopConfig lists the shops accepted by the in-memory backend. Empty accepts any shop id;
// the postgres backend reads the shops table instead.
type ShopConfig struct {
	Known []string
}

// EventsConfig tunes dashboard event streams.
type EventsConfig struct {
	Heartbeat  time.Duration
	BufferSize int
}

// AuthConfig groups session verification settings.
type AuthConfig struct {
	TokenSecret string
	CookieName  string
}

// LogConfig selects the log level, encoding and optional rotating file.
type LogConfig struct {
	Level  string
	Format string
	File   string
}

// MetricsConfig groups observability settings.
type MetricsConfig struct {
	PrometheusPath string
}

var defaultMIMETypes = []string{
	"application/pdf",
	"image/jpeg",
	"image/jpg",
	"image/png",
	"image/gif",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"text/plain",
}

// Load reads configuration values from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host:         getString("SHOPDROP_API_HOST", "0.0.0.0"),
			Port:         getInt("SHOPDROP_API_PORT", 8080),
			ReadTimeout:  getDuration("SHOPDROP_API_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDuration("SHOPDROP_API_WRITE_TIMEOUT", 0),
			IdleTimeout:  getDuration("SHOPDROP_API_IDLE_TIMEOUT", 60*time.Second),
		},
		Store: StoreConfig{
			Backend:       strings.ToLower(getString("SHOPDROP_STORE_BACKEND", BackendPostgres)),
			Retention:     getDuration("SHOPDROP_RETENTION", 24*time.Hour),
			SweepInterval: getDuration("SHOPDROP_SWEEP_INTERVAL", time.Hour),
			LinkTTL:       getDuration("SHOPDROP_DOWNLOAD_LINK_TTL", 15*time.Minute),
		},
		Postgres: PostgresConfig{
			Host:     getString("POSTGRES_HOST", "localhost"),
			Port:     getInt("POSTGRES_PORT", 5432),
			User:     getString("POSTGRES_USER", "shopdrop_app"),
			Password: getString("POSTGRES_PASSWORD", "change-me"),
			Database: getString("POSTGRES_DB", "shopdrop"),
			SSLMode:  strings.ToLower(getString("POSTGRES_SSL_MODE", "disable")),
		},
		MinIO: MinIOConfig{
			Endpoint:        getString("MINIO_ENDPOINT", "localhost:9000"),
			AccessKeyID:     getString("MINIO_ROOT_USER", "shopdrop"),
			SecretAccessKey: getString("MINIO_ROOT_PASSWORD", "change-me-strong-password"),
			Bucket:          getString("MINIO_BUCKET", "shopdrop"),
			UseSSL:          getBool("MINIO_USE_SSL", false),
			Region:          getString("MINIO_REGION", ""),
		},
		Redis: RedisConfig{
			Addr:     getString("REDIS_ADDR", ""),
			Password: getString("REDIS_PASSWORD", ""),
			DB:       getInt("REDIS_DB", 0),
		},
		Rate: RateLimitConfig{
			Limit:  getInt("SHOPDROP_RATE_LIMIT", 5),
			Window: getDuration("SHOPDROP_RATE_WINDOW", time.Minute),
		},
		Upload: UploadConfig{
			MaxBytes:         int64(getInt("SHOPDROP_MAX_UPLOAD_BYTES", 10*1024*1024)),
			AllowedMIMETypes: lowerAll(getList("SHOPDROP_ALLOWED_MIME_TYPES", defaultMIMETypes)),
		},
		Shops: ShopConfig{
			Known: getList("SHOPDROP_KNOWN_SHOPS", nil),
		},
		Events: EventsConfig{
			Heartbeat:  getDuration("SHOPDROP_SSE_HEARTBEAT", 30*time.Second),
			BufferSize: getInt("SHOPDROP_SSE_BUFFER", 16),
		},
		Auth: AuthConfig{
			TokenSecret: getString("SHOPDROP_JWT_SECRET", "your-secret-key-change-in-production"),
			CookieName:  getString("SHOPDROP_SESSION_COOKIE", "token"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(getString("LOG_LEVEL", "info")),
			Format: strings.ToLower(getString("LOG_FORMAT", "json")),
			File:   getString("LOG_FILE", ""),
		},
		Metrics: MetricsConfig{
			PrometheusPath: getString("SHOPDROP_METRICS_PATH", "/metrics"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the core cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Store.Backend != BackendPostgres && c.Store.Backend != BackendMemory {
		errs = append(errs, fmt.Errorf("unknown store backend %q", c.Store.Backend))
	}
	if c.Store.Retention <= 0 {
		errs = append(errs, errors.New("retention must be positive"))
	}
	if c.Store.SweepInterval <= 0 {
		errs = append(errs, errors.New("sweep interval must be positive"))
	}
	if c.Store.LinkTTL <= 0 {
		errs = append(errs, errors.New("download link ttl must be positive"))
	}
	if c.Rate.Limit <= 0 {
		errs = append(errs, errors.New("rate limit must be positive"))
	}
	if c.Rate.Window <= 0 {
		errs = append(errs, errors.New("rate window must be positive"))
	}
	if c.Upload.MaxBytes <= 0 {
		errs = append(errs, errors.New("max upload bytes must be positive"))
	}
	if c.Events.BufferSize <= 0 {
		errs = append(errs, errors.New("event buffer size must be positive"))
	}
	if strings.TrimSpace(c.Auth.TokenSecret) == "" {
		errs = append(errs, errors.New("jwt secret is required"))
	}
	return errors.Join(errs...)
}

func getString(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.ToLower(strings.TrimSpace(val))
		switch val {
		case "1", "true", "t", "yes", "y":
			return true
		case "0", "false", "f", "no", "n":
			return false
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getList(key string, fallback []string) []string {
	val, ok := os.LookupEnv(key)
	if !ok {
		return append([]string(nil), fallback...)
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func lowerAll(values []string) []string {
	for i, v := range values {
		values[i] = strings.ToLower(v)
	}
	return values
}
