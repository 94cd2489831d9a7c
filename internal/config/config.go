package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

type Config struct {
	Environment string
	HTTPAddr    string

	// Storage
	StoreDriver string // postgres or memory
	DatabaseDSN string
	AutoMigrate bool

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	JWTExpiry   time.Duration

	LogLevel  string
	LogFormat string

	EnableMetrics     bool
	ImportMappingPath string

	// SeedAdminPassword, with STORE_DRIVER=memory, gives the seeded admin a login.
	SeedAdminPassword string
	ShutdownTimeout   time.Duration
}

func Load() *Config {
	config := &Config{
		Environment:       getEnv("ENVIRONMENT", "development"),
		HTTPAddr:          getEnv("HTTP_ADDR", ":8080"),
		StoreDriver:       strings.ToLower(getEnv("STORE_DRIVER", "postgres")),
		DatabaseDSN:       os.Getenv("DB_DSN"),
		AutoMigrate:       os.Getenv("AUTO_MIGRATE") == "true",
		JWTSecret:         getEnv("JWT_SECRET", defaultJWTSecret),
		JWTIssuer:         getEnv("JWT_ISS", "devicehub-api"),
		JWTAudience:       getEnv("JWT_AUD", "devicehub-api"),
		JWTExpiry:         24 * time.Hour, // Default to 24 hours
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "json"),
		EnableMetrics:     os.Getenv("ENABLE_METRICS") == "true",
		ImportMappingPath: os.Getenv("IMPORT_MAPPING_PATH"),
		SeedAdminPassword: os.Getenv("SEED_ADMIN_PASSWORD"),
		ShutdownTimeout:   10 * time.Second,
	}

	// Parse JWT expiry from environment if provided
	if expiryStr := os.Getenv("JWT_EXPIRY"); expiryStr != "" {
		if expiry, err := time.ParseDuration(expiryStr); err == nil {
			config.JWTExpiry = expiry
		}
	}

	if v := os.Getenv("SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.ShutdownTimeout = d
		}
	}

	return config
}

// Validate checks the configuration for values the server cannot start with.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters")
	}
	if c.Environment == "production" && c.JWTSecret == defaultJWTSecret {
		return errors.New("JWT_SECRET must be changed in production")
	}
	if c.JWTIssuer == "" {
		return errors.New("JWT_ISS is required")
	}
	if c.JWTAudience == "" {
		return errors.New("JWT_AUD is required")
	}
	if c.JWTExpiry < time.Minute {
		return fmt.Errorf("JWT_EXPIRY must be at least 1m, got %v", c.JWTExpiry)
	}
	if c.JWTExpiry > 30*24*time.Hour {
		return fmt.Errorf("JWT_EXPIRY must be at most 720h, got %v", c.JWTExpiry)
	}

	switch c.StoreDriver {
	case "memory":
	case "postgres":
		if c.DatabaseDSN == "" {
			return errors.New("DB_DSN is required when STORE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	return nil
}

// LoadAndValidate loads the configuration from the environment and validates it.
func LoadAndValidate() (*Config, error) {
	cfg := Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
