// Package config provides unified configuration loading for the control plane.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ServerConfig controls the HTTP API surface.
type ServerConfig struct {
	Host string `json:"host" yaml:"host" env:"SERVER_HOST"`
	Port int    `json:"port" yaml:"port" env:"SERVER_PORT"`
}

// DatabaseConfig controls the state store's Postgres connection. When
// Driver is "memory" the in-memory state store is used instead and the
// remaining fields are ignored.
type DatabaseConfig struct {
	Driver          string `json:"driver" yaml:"driver" env:"DATABASE_DRIVER"`
	DSN             string `json:"dsn" yaml:"dsn" env:"DATABASE_DSN"`
	Host            string `json:"host" yaml:"host" env:"DATABASE_HOST"`
	Port            int    `json:"port" yaml:"port" env:"DATABASE_PORT"`
	User            string `json:"user" yaml:"user" env:"DATABASE_USER"`
	Password        string `json:"password" yaml:"password" env:"DATABASE_PASSWORD"`
	Name            string `json:"name" yaml:"name" env:"DATABASE_NAME"`
	SSLMode         string `json:"sslmode" yaml:"sslmode" env:"DATABASE_SSLMODE"`
	MaxOpenConns    int    `json:"max_open_conns" yaml:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int    `json:"max_idle_conns" yaml:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime int    `json:"conn_max_lifetime" yaml:"conn_max_lifetime" env:"DATABASE_CONN_MAX_LIFETIME"`
	MigrateOnStart  bool   `json:"migrate_on_start" yaml:"migrate_on_start" env:"DATABASE_MIGRATE_ON_START"`
}

// LoggingConfig controls application logging.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" env:"LOG_LEVEL"`
	Format string `json:"format" yaml:"format" env:"LOG_FORMAT"`
}

// SecurityConfig controls secret material required outside dev.
type SecurityConfig struct {
	// JWTSigningSecret signs HMAC-mode tokens (dev/self-hosted auth).
	JWTSigningSecret string `json:"jwt_signing_secret" yaml:"jwt_signing_secret" env:"JWT_SIGNING_SECRET"`
	// SecretEncryptionKey encrypts webhook secrets and API key material at rest.
	SecretEncryptionKey string `json:"secret_encryption_key" yaml:"secret_encryption_key" env:"SECRET_ENCRYPTION_KEY"`
}

// AuthConfig controls tenant authentication mode.
type AuthConfig struct {
	// Mode is "hmac" (dev, self-signed tokens) or "oidc" (prod, external IdP).
	Mode string `json:"mode" yaml:"mode" env:"AUTH_MODE"`
	OIDCIssuer string `json:"oidc_issuer" yaml:"oidc_issuer" env:"AUTH_OIDC_ISSUER"`
}

// GovernanceConfig controls quota, rate-limit, and budget defaults applied
// to tenants that have not set their own overrides.
type GovernanceConfig struct {
	DefaultRateLimitWindowSeconds int     `json:"default_rate_limit_window_seconds" yaml:"default_rate_limit_window_seconds" env:"GOVERNANCE_RATE_LIMIT_WINDOW_SECONDS"`
	DefaultRateLimitBurst         int     `json:"default_rate_limit_burst" yaml:"default_rate_limit_burst" env:"GOVERNANCE_RATE_LIMIT_BURST"`
	DefaultRunsPerDayQuota        int     `json:"default_runs_per_day_quota" yaml:"default_runs_per_day_quota" env:"GOVERNANCE_RUNS_PER_DAY_QUOTA"`
	DefaultMonthlyBudgetUSD       float64 `json:"default_monthly_budget_usd" yaml:"default_monthly_budget_usd" env:"GOVERNANCE_MONTHLY_BUDGET_USD"`
	ApprovalLockTTLSeconds        int     `json:"approval_lock_ttl_seconds" yaml:"approval_lock_ttl_seconds" env:"GOVERNANCE_APPROVAL_LOCK_TTL_SECONDS"`
	CSRFCookieMaxAgeSeconds       int     `json:"csrf_cookie_max_age_seconds" yaml:"csrf_cookie_max_age_seconds" env:"GOVERNANCE_CSRF_COOKIE_MAX_AGE_SECONDS"`
}

// AdvisoryConfig controls the advisory engine's cache and LLM budget.
type AdvisoryConfig struct {
	CacheCapacity           int     `json:"cache_capacity" yaml:"cache_capacity" env:"ADVISORY_CACHE_CAPACITY"`
	CacheDefaultTTLSeconds  int     `json:"cache_default_ttl_seconds" yaml:"cache_default_ttl_seconds" env:"ADVISORY_CACHE_DEFAULT_TTL_SECONDS"`
	LLMDailyBudgetUSD       float64 `json:"llm_daily_budget_usd" yaml:"llm_daily_budget_usd" env:"ADVISORY_LLM_DAILY_BUDGET_USD"`
	LLMEnabled              bool    `json:"llm_enabled" yaml:"llm_enabled" env:"ADVISORY_LLM_ENABLED"`
}

// PlannerConfig controls planner defaults.
type PlannerConfig struct {
	DefaultClusterSize string `json:"default_cluster_size" yaml:"default_cluster_size" env:"PLANNER_DEFAULT_CLUSTER_SIZE"`
	MaxRetries         int    `json:"max_retries" yaml:"max_retries" env:"PLANNER_MAX_RETRIES"`
	LookbackDays       int    `json:"lookback_days" yaml:"lookback_days" env:"PLANNER_LOOKBACK_DAYS"`
}

// Config is the top-level configuration structure.
type Config struct {
	Server     ServerConfig     `json:"server" yaml:"server"`
	Database   DatabaseConfig   `json:"database" yaml:"database"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging"`
	Security   SecurityConfig   `json:"security" yaml:"security"`
	Auth       AuthConfig       `json:"auth" yaml:"auth"`
	Governance GovernanceConfig `json:"governance" yaml:"governance"`
	Advisory   AdvisoryConfig   `json:"advisory" yaml:"advisory"`
	Planner    PlannerConfig    `json:"planner" yaml:"planner"`
	// Env is "dev", "staging", or "prod". Fatal startup checks only fire
	// outside "dev".
	Env string `json:"env" yaml:"env" env:"IRONLAYER_ENV"`
}

// New returns a configuration populated with defaults.
func New() *Config {
	return &Config{
		Env: "dev",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Driver:          "memory",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 300,
			MigrateOnStart:  true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Auth: AuthConfig{
			Mode: "hmac",
		},
		Governance: GovernanceConfig{
			DefaultRateLimitWindowSeconds: 60,
			DefaultRateLimitBurst:         120,
			DefaultRunsPerDayQuota:        200,
			DefaultMonthlyBudgetUSD:       500,
			ApprovalLockTTLSeconds:        900,
			CSRFCookieMaxAgeSeconds:       3600,
		},
		Advisory: AdvisoryConfig{
			CacheCapacity:          1000,
			CacheDefaultTTLSeconds: 3600,
			LLMDailyBudgetUSD:      20,
			LLMEnabled:             false,
		},
		Planner: PlannerConfig{
			DefaultClusterSize: "medium",
			MaxRetries:         3,
			LookbackDays:       3,
		},
	}
}

// ConnectionString builds a PostgreSQL connection string using host parameters.
func (c DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// IsDev reports whether fatal production checks should be skipped.
func (c *Config) IsDev() bool {
	return c == nil || strings.EqualFold(c.Env, "dev")
}

// Load loads configuration from file (if CONFIG_FILE or configs/config.yaml
// is present) then applies environment variable overrides.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := New()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, err
		}
	} else {
		_ = loadFromFile("configs/config.yaml", cfg)
	}

	if err := envdecode.Decode(cfg); err != nil {
		if !strings.Contains(err.Error(), "none of the target fields were set") {
			return nil, fmt.Errorf("decode env: %w", err)
		}
	}

	applyDatabaseURLOverride(cfg)

	return cfg, nil
}

// LoadFile reads configuration from a YAML file, applying no env overrides.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	if err := loadFromFile(path, cfg); err != nil {
		return nil, err
	}
	applyDatabaseURLOverride(cfg)
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	expanded, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyDatabaseURLOverride lets DATABASE_URL, when set, override any file-
// or env-provided DSN and select the postgres driver.
func applyDatabaseURLOverride(cfg *Config) {
	if cfg == nil {
		return
	}
	if dsn := strings.TrimSpace(os.Getenv("DATABASE_URL")); dsn != "" {
		cfg.Database.DSN = dsn
		cfg.Database.Driver = "postgres"
	}
}

// Validate enforces the fatal startup conditions outside dev: a postgres
// store needs a DSN, HMAC auth mode needs a JWT signing secret, and a
// secret encryption key must be present whatever store is configured.
func (c *Config) Validate() error {
	if c.IsDev() {
		return nil
	}
	if c.Database.Driver == "postgres" && c.Database.DSN == "" {
		return fmt.Errorf("config: DATABASE_DSN (or DATABASE_URL) is required outside dev")
	}
	if c.Auth.Mode == "hmac" && c.Security.JWTSigningSecret == "" {
		return fmt.Errorf("config: JWT_SIGNING_SECRET is required outside dev")
	}
	if c.Security.SecretEncryptionKey == "" {
		return fmt.Errorf("config: SECRET_ENCRYPTION_KEY is required outside dev")
	}
	return nil
}
