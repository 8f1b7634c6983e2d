package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/goccy/go-yaml"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort        string        `env:"HTTP_PORT" yaml:"http_port"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" yaml:"shutdown_timeout"`
	LogLevel        string        `env:"LOG_LEVEL" yaml:"log_level"`

	DatabaseDriver string `env:"DATABASE_DRIVER" yaml:"database_driver"`
	DatabaseURL    string `env:"DATABASE_URL" yaml:"database_url"`
	SQLitePath     string `env:"SQLITE_PATH" yaml:"sqlite_path"`

	AdminPassword       string        `env:"ADMIN_PASSWORD" yaml:"admin_password"`
	SessionSecret       string        `env:"SESSION_SECRET" yaml:"session_secret"`
	SessionTTL          time.Duration `env:"SESSION_TTL" yaml:"session_ttl"`
	SessionCookieName   string        `env:"SESSION_COOKIE_NAME" yaml:"session_cookie_name"`
	SessionCookieSecure bool          `env:"SESSION_COOKIE_SECURE" yaml:"session_cookie_secure"`

	MaxDocumentBytes int64 `env:"MAX_DOCUMENT_BYTES" yaml:"max_document_bytes"`

	LoginMaxAttempts int           `env:"LOGIN_MAX_ATTEMPTS" yaml:"login_max_attempts"`
	LoginWindow      time.Duration `env:"LOGIN_WINDOW" yaml:"login_window"`

	RedisAddr     string `env:"REDIS_ADDR" yaml:"redis_addr"`
	RedisPassword string `env:"REDIS_PASSWORD" yaml:"redis_password"`
	RedisDB       int    `env:"REDIS_DB" yaml:"redis_db"`
}

// Defaults devuelve la configuración base antes de aplicar archivo y entorno.
func Defaults() Config {
	return Config{
		HTTPPort:          "8080",
		ShutdownTimeout:   10 * time.Second,
		LogLevel:          "info",
		DatabaseDriver:    DriverPostgres,
		SQLitePath:        "database.db",
		SessionTTL:        12 * time.Hour,
		SessionCookieName: "bay_session",
		MaxDocumentBytes:  5 << 20,
		LoginMaxAttempts:  5,
		LoginWindow:       10 * time.Minute,
	}
}

// LoadConfig carga la configuración: defaults, luego el YAML de CONFIG_FILE (si existe)
// y por ultimo variables de entorno.
func LoadConfig() (*Config, error) {
	cfg := Defaults()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// Validate revisa los valores obligatorios.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.AdminPassword) == "" {
		errs = append(errs, errors.New("ADMIN_PASSWORD is required"))
	}
	if strings.TrimSpace(c.SessionSecret) == "" {
		errs = append(errs, errors.New("SESSION_SECRET is required"))
	}
	switch c.DatabaseDriver {
	case DriverPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for postgres"))
		}
	case DriverSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.MaxDocumentBytes <= 0 {
		errs = append(errs, errors.New("MAX_DOCUMENT_BYTES must be positive"))
	}
	return errors.Join(errs...)
}
