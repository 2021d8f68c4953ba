package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPPort        string
	CORSOrigins     string
	ShutdownTimeout time.Duration

	// Shared secret for the capability check. APIKeyHash is a bcrypt hash and may
	// be used instead of the plain key.
	APIKey     string
	APIKeyHash string

	Database DatabaseConfig
	Lookup   LookupConfig
	Logger   LoggerConfig
}

type DatabaseConfig struct {
	Driver          string // postgres | sqlite
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type LookupConfig struct {
	Enabled bool
	BaseURL string
	Timeout time.Duration
}

type LoggerConfig struct {
	AppEnv   string
	Level    string
	Encoding string
}

const defaultDSN = "host=localhost user=postgres password=postgres dbname=pantry port=5432 sslmode=disable"

func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		CORSOrigins:     getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		APIKey:          getEnv("API_KEY", ""),
		APIKeyHash:      getEnv("API_KEY_HASH", ""),
		Database: DatabaseConfig{
			Driver:          strings.ToLower(getEnv("DATABASE_DRIVER", "postgres")),
			DSN:             getEnv("DATABASE_DSN", defaultDSN),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Lookup: LookupConfig{
			Enabled: getEnvBool("LOOKUP_ENABLED", true),
			BaseURL: getEnv("LOOKUP_BASE_URL", "https://world.openfoodfacts.org"),
			Timeout: getEnvDuration("LOOKUP_TIMEOUT", 5*time.Second),
		},
		Logger: LoggerConfig{
			AppEnv:   getEnv("APP_ENV", "production"),
			Level:    getEnv("LOG_LEVEL", "info"),
			Encoding: getEnv("LOG_ENCODING", "json"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.APIKey == "" && c.APIKeyHash == "" {
		return fmt.Errorf("API_KEY or API_KEY_HASH must be set")
	}
	if c.APIKey != "" && len(c.APIKey) < 16 {
		return fmt.Errorf("API_KEY must be at least 16 characters")
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.Database.Driver)
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("DATABASE_DSN must not be empty")
	}
	if c.Lookup.Timeout <= 0 {
		return fmt.Errorf("LOOKUP_TIMEOUT must be positive")
	}
	return nil
}

// UsesDefaultDSN reports whether the built-in development DSN is in effect.
func (c *Config) UsesDefaultDSN() bool {
	return c.Database.Driver == "postgres" && c.Database.DSN == defaultDSN
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// getEnvDuration accepts Go duration strings ("5s") or plain seconds ("5").
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}
