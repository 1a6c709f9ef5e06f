package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Auth modes.
const (
	AuthModeToken           = "token"
	AuthModeUnauthenticated = "unauthenticated"
)

// Database drivers.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

const defaultJWTSecret = "default_jwt_secret"

// Config holds all configuration for our application
type Config struct {
	Port        string   `mapstructure:"PORT"`
	Environment string   `mapstructure:"ENV"`
	LogLevel    string   `mapstructure:"LOG_LEVEL"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	Database DatabaseConfig `mapstructure:",squash"`

	JWTSecret          string        `mapstructure:"JWT_SECRET"`
	JWTExpiresIn       time.Duration `mapstructure:"JWT_EXPIRES_IN"`
	SessionTTL         time.Duration `mapstructure:"SESSION_TTL"`
	AuthMode           string        `mapstructure:"AUTH_MODE"`
	FallbackOwnerID    uint          `mapstructure:"FALLBACK_OWNER_ID"`
	AuthRequireSession bool          `mapstructure:"AUTH_REQUIRE_SESSION"`

	Workflow WorkflowConfig `mapstructure:",squash"`
}

// DatabaseConfig holds database connection details
type DatabaseConfig struct {
	Driver      string `mapstructure:"DB_DRIVER"`
	Host        string `mapstructure:"DB_HOST"`
	Port        string `mapstructure:"DB_PORT"`
	Username    string `mapstructure:"DB_USERNAME"`
	Password    string `mapstructure:"DB_PASSWORD"`
	Name        string `mapstructure:"DB_NAME"`
	DSN         string `mapstructure:"DATABASE_DSN"`
	AutoMigrate bool   `mapstructure:"DB_AUTO_MIGRATE"`
}

// WorkflowConfig points at the external workflow engine's webhook root.
type WorkflowConfig struct {
	BaseURL string        `mapstructure:"WORKFLOW_BASE_URL"`
	Timeout time.Duration `mapstructure:"WORKFLOW_TIMEOUT"`
}

var envKeys = []string{
	"PORT", "ENV", "LOG_LEVEL", "CORS_ORIGINS",
	"DB_DRIVER", "DB_HOST", "DB_PORT", "DB_USERNAME", "DB_PASSWORD", "DB_NAME", "DATABASE_DSN", "DB_AUTO_MIGRATE",
	"JWT_SECRET", "JWT_EXPIRES_IN", "SESSION_TTL", "AUTH_MODE", "FALLBACK_OWNER_ID", "AUTH_REQUIRE_SESSION",
	"WORKFLOW_BASE_URL", "WORKFLOW_TIMEOUT",
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "5000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("DB_DRIVER", DriverMySQL)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "3306")
	v.SetDefault("DB_USERNAME", "root")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_NAME", "hospital")
	v.SetDefault("DB_AUTO_MIGRATE", true)
	v.SetDefault("JWT_SECRET", defaultJWTSecret)
	v.SetDefault("JWT_EXPIRES_IN", "24h")
	v.SetDefault("SESSION_TTL", "24h")
	v.SetDefault("AUTH_MODE", AuthModeToken)
	v.SetDefault("FALLBACK_OWNER_ID", 1)
	v.SetDefault("AUTH_REQUIRE_SESSION", false)
	v.SetDefault("WORKFLOW_BASE_URL", "http://localhost:5678/webhook")
	v.SetDefault("WORKFLOW_TIMEOUT", "0s")

	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// A single comma separated env value arrives as one element.
	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}
	for i := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(cfg.CORSOrigins[i])
	}

	cfg.Database.Driver = strings.ToLower(cfg.Database.Driver)
	cfg.AuthMode = strings.ToLower(cfg.AuthMode)
	cfg.Workflow.BaseURL = strings.TrimRight(cfg.Workflow.BaseURL, "/")

	if cfg.Database.DSN == "" {
		cfg.Database.DSN = cfg.Database.BuildDSN()
	}

	return cfg, nil
}

// BuildDSN composes a driver specific DSN from the individual connection settings.
func (d DatabaseConfig) BuildDSN() string {
	switch d.Driver {
	case DriverPostgres:
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
			d.Host, d.Port, d.Username, d.Password, d.Name)
	case DriverMemory:
		return ""
	default:
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			d.Username, d.Password, d.Host, d.Port, d.Name)
	}
}

func (c *Config) IsDev() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Unauthenticated reports whether protected routes fall back to FallbackOwnerID
// when no bearer token is supplied.
func (c *Config) Unauthenticated() bool {
	return c.AuthMode == AuthModeUnauthenticated
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	switch c.AuthMode {
	case AuthModeToken, AuthModeUnauthenticated:
	default:
		return fmt.Errorf("AUTH_MODE must be %q or %q, got %q", AuthModeToken, AuthModeUnauthenticated, c.AuthMode)
	}

	switch c.Database.Driver {
	case DriverMySQL, DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("DB_DRIVER must be %q, %q or %q, got %q", DriverMySQL, DriverPostgres, DriverMemory, c.Database.Driver)
	}

	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.IsProduction() && c.JWTSecret == defaultJWTSecret {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}
	if c.JWTExpiresIn <= 0 {
		return fmt.Errorf("JWT_EXPIRES_IN must be positive, got %s", c.JWTExpiresIn)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}
	if c.Unauthenticated() && c.FallbackOwnerID == 0 {
		return fmt.Errorf("FALLBACK_OWNER_ID must be set when AUTH_MODE is %q", AuthModeUnauthenticated)
	}
	if c.Workflow.BaseURL == "" {
		return fmt.Errorf("WORKFLOW_BASE_URL is required")
	}
	return nil
}
