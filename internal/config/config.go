// Package config loads application configuration from defaults, an optional
// YAML file, and environment variables, in that order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "TERMINWATCH_"

// Config is the root application configuration.
type Config struct {
	Log           LogConfig           `koanf:"log"`
	Server        ServerConfig        `koanf:"server"`
	Database      DatabaseConfig      `koanf:"database"`
	CORS          CORSConfig          `koanf:"cors"`
	Browser       BrowserConfig       `koanf:"browser"`
	Navigator     NavigatorConfig     `koanf:"navigator"`
	Checker       CheckerConfig       `koanf:"checker"`
	Notify        NotifyConfig        `koanf:"notify"`
	Telegram      TelegramConfig      `koanf:"telegram"`
	Subscriptions SubscriptionsConfig `koanf:"subscriptions"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// ServerConfig controls the HTTP servers.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              string        `koanf:"port"`
	MetricsPort       string        `koanf:"metrics_port"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
}

// DatabaseConfig controls the PostgreSQL pool and migrations.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	ConnectAttempts int           `koanf:"connect_attempts"`
	MigrationsPath  string        `koanf:"migrations_path"`
}

// CORSConfig controls cross-origin access.
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// BrowserConfig controls the headless browser.
type BrowserConfig struct {
	Headless  bool   `koanf:"headless"`
	ExecPath  string `koanf:"exec_path"`
	UserAgent string `koanf:"user_agent"`
}

// NavigatorConfig controls the navigation driver.
type NavigatorConfig struct {
	StepTimeout       time.Duration `koanf:"step_timeout"`
	StepRetries       int           `koanf:"step_retries"`
	RetryBackoff      time.Duration `koanf:"retry_backoff"`
	BackoffMultiplier float64       `koanf:"backoff_multiplier"`
	SnapshotDir       string        `koanf:"snapshot_dir"`
}

// CheckerConfig controls the check orchestrator and scheduler.
type CheckerConfig struct {
	PollInterval      time.Duration `koanf:"poll_interval"`
	CheckGap          time.Duration `koanf:"check_gap"`
	StaleLockTimeout  time.Duration `koanf:"stale_lock_timeout"`
	MaxRetries        int           `koanf:"max_retries"`
	RetryBackoff      time.Duration `koanf:"retry_backoff"`
	BackoffMultiplier float64       `koanf:"backoff_multiplier"`
	JitterFraction    float64       `koanf:"jitter_fraction"`
	CheckBudget       time.Duration `koanf:"check_budget"`
}

// NotifyConfig controls notification deduplication.
type NotifyConfig struct {
	Cooldown time.Duration `koanf:"cooldown"`
}

// TelegramConfig controls message delivery.
type TelegramConfig struct {
	Enabled   bool    `koanf:"enabled"`
	BotToken  string  `koanf:"bot_token"`
	RateLimit float64 `koanf:"rate_limit"`
}

// SubscriptionsConfig controls subscription management.
type SubscriptionsConfig struct {
	MinInterval time.Duration `koanf:"min_interval"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"log.level":  "info",
		"log.format": "json",

		"server.host":                "0.0.0.0",
		"server.port":                "8080",
		"server.metrics_port":        "9090",
		"server.read_timeout":        "10s",
		"server.read_header_timeout": "5s",
		"server.write_timeout":       "30s",
		"server.idle_timeout":        "120s",

		"database.max_open_conns":   10,
		"database.max_idle_conns":   2,
		"database.conn_max_lifetime": "30m",
		"database.connect_timeout":  "30s",
		"database.connect_attempts": 5,
		"database.migrations_path":  "file://migrations",

		"cors.allowed_origins": []string{},

		"browser.headless": true,

		"navigator.step_timeout":       "10s",
		"navigator.step_retries":       2,
		"navigator.retry_backoff":      "500ms",
		"navigator.backoff_multiplier": 2.0,
		"navigator.snapshot_dir":       "snapshots",

		"checker.poll_interval":      "30s",
		"checker.check_gap":          "30s",
		"checker.stale_lock_timeout": "15m",
		"checker.max_retries":        2,
		"checker.retry_backoff":      "10s",
		"checker.backoff_multiplier": 2.0,
		"checker.jitter_fraction":    0.1,
		"checker.check_budget":       "2m",

		"notify.cooldown": "6h",

		"telegram.enabled":    false,
		"telegram.rate_limit": 25.0,

		"subscriptions.min_interval": "5m",
	}
}

// Load reads configuration. path may be empty to skip the file layer.
// Environment variables use the TERMINWATCH_ prefix with double underscores
// as section separators, e.g. TERMINWATCH_DATABASE__URL.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}
	if c.Subscriptions.MinInterval < time.Minute {
		return fmt.Errorf("subscriptions.min_interval must be at least 1m, got %s", c.Subscriptions.MinInterval)
	}
	if c.Telegram.Enabled && c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
	}
	return nil
}
