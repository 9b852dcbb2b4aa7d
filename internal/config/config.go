package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates runtime configuration for the GoStash API.
type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	MinIO    MinIOConfig
	Auth     AuthConfig
	Search   SearchConfig
	Cache    CacheConfig
	Metrics  MetricsConfig
	Logging  LoggingConfig
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
	DownloadURLTTL  time.Duration
}

// AuthConfig groups authentication-related settings.
type AuthConfig struct {
	TokenSecret string
	TokenTTL    time.Duration
	BcryptCost  int
}

// SearchConfig tunes the debounced search pipeline.
type SearchConfig struct {
	QuietPeriod time.Duration
}

// CacheConfig tunes the metadata LRU cache.
type CacheConfig struct {
	MaxEntries int
	TTL        time.Duration
}

// MetricsConfig groups observability settings.
type MetricsConfig struct {
	PrometheusPath string
}

// LoggingConfig selects log level and encoding.
type LoggingConfig struct {
	Level    string
	Encoding string
}

// Load reads configuration values from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host:         getString("GOSTASH_API_HOST", "0.0.0.0"),
			Port:         getInt("GOSTASH_API_PORT", 8080),
			ReadTimeout:  getDuration("GOSTASH_API_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getDuration("GOSTASH_API_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getDuration("GOSTASH_API_IDLE_TIMEOUT", 60*time.Second),
		},
		Postgres: PostgresConfig{
			Host:     getString("POSTGRES_HOST", "localhost"),
			Port:     getInt("POSTGRES_PORT", 5432),
			User:     getString("POSTGRES_USER", "gostash_app"),
			Password: getString("POSTGRES_PASSWORD", "change-me"),
			Database: getString("POSTGRES_DB", "gostash"),
			SSLMode:  strings.ToLower(getString("POSTGRES_SSL_MODE", "disable")),
		},
		MinIO: MinIOConfig{
			Endpoint:        getString("MINIO_ENDPOINT", "localhost:9000"),
			AccessKeyID:     getString("MINIO_ROOT_USER", "gostash"),
			SecretAccessKey: getString("MINIO_ROOT_PASSWORD", "change-me-strong-password"),
			Bucket:          getString("MINIO_BUCKET", "gostash"),
			UseSSL:          getBool("MINIO_USE_SSL", false),
			Region:          getString("MINIO_REGION", ""),
			DownloadURLTTL:  getDuration("GOSTASH_DOWNLOAD_URL_TTL", 15*time.Minute),
		},
		Auth: loadAuthConfig(),
		Search: SearchConfig{
			QuietPeriod: getDuration("GOSTASH_SEARCH_QUIET_PERIOD", 300*time.Millisecond),
		},
		Cache: CacheConfig{
			MaxEntries: getInt("GOSTASH_CACHE_MAX_ENTRIES", 1024),
			TTL:        getDuration("GOSTASH_CACHE_TTL", 5*time.Minute),
		},
		Metrics: MetricsConfig{
			PrometheusPath: getString("GOSTASH_METRICS_PATH", "/metrics"),
		},
		Logging: LoggingConfig{
			Level:    getString("GOSTASH_LOG_LEVEL", "info"),
			Encoding: getString("GOSTASH_LOG_ENCODING", "json"),
		},
	}

	return cfg, nil
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

func loadAuthConfig() AuthConfig {
	cost := getInt("GOSTASH_AUTH_BCRYPT_COST", 12)
	if cost < 4 || cost > 31 {
		cost = 12
	}

	return AuthConfig{
		TokenSecret: getString("GOSTASH_JWT_SECRET", "change-me-to-a-32-byte-secret"),
		TokenTTL:    getDuration("GOSTASH_AUTH_TOKEN_TTL", 12*time.Hour),
		BcryptCost:  cost,
	}
}
