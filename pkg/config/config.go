// Package config loads runtime configuration for the dashboard server and CLI.
package config

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/goliatone/go-dashboard-model/components/dashboard"
	"github.com/goliatone/go-dashboard-model/pkg/backend"
)

// EnvPrefix prefixes every environment override, e.g. DASHBOARD_SERVER_ADDR.
const EnvPrefix = "DASHBOARD"

// Config holds application configuration.
type Config struct {
	Backend   BackendConfig   `mapstructure:"backend"`
	Server    ServerConfig    `mapstructure:"server"`
	Processor ProcessorConfig `mapstructure:"processor"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// BackendConfig selects and configures the backend collaborator.
type BackendConfig struct {
	// Mode is "memory" or "http".
	Mode      string        `mapstructure:"mode"`
	Workspace string        `mapstructure:"workspace"`
	Fixture   string        `mapstructure:"fixture"`
	BaseURL   string        `mapstructure:"base_url"`
	APIKey    string        `mapstructure:"api_key"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr     string `mapstructure:"addr"`
	BasePath string `mapstructure:"base_path"`
}

// ProcessorConfig mirrors the tunables of dashboard.Options.
type ProcessorConfig struct {
	MailboxSize   int           `mapstructure:"mailbox_size"`
	HistoryLimit  int           `mapstructure:"history_limit"`
	EventBuffer   int           `mapstructure:"event_buffer"`
	QueryCacheTTL time.Duration `mapstructure:"query_cache_ttl"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Path      string `mapstructure:"path"`
}

const (
	ModeMemory = "memory"
	ModeHTTP   = "http"
)

var errUnknownMode = errors.New("config: unknown backend mode")

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend.mode", ModeMemory)
	v.SetDefault("backend.workspace", "default")
	v.SetDefault("backend.fixture", "")
	v.SetDefault("backend.base_url", "")
	v.SetDefault("backend.api_key", "")
	v.SetDefault("backend.timeout", 10*time.Second)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.base_path", "/dashboard")
	v.SetDefault("processor.mailbox_size", 64)
	v.SetDefault("processor.history_limit", dashboard.DefaultHistoryLimit)
	v.SetDefault("processor.event_buffer", 64)
	v.SetDefault("processor.query_cache_ttl", 5*time.Minute)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "dashboard")
	v.SetDefault("metrics.path", "/metrics")
}

// Load reads defaults, then the optional YAML file at path, then DASHBOARD_* env overrides.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks cross-field constraints viper cannot express.
func (c Config) Validate() error {
	switch c.Backend.Mode {
	case ModeMemory:
	case ModeHTTP:
		if c.Backend.BaseURL == "" {
			return errors.New("config: backend.base_url is required in http mode")
		}
	default:
		return fmt.Errorf("%w %q", errUnknownMode, c.Backend.Mode)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: log.level: %w", err)
	}
	return nil
}

// NewLogger builds the zap logger described by the log section.
func (c Config) NewLogger() (*zap.Logger, error) {
	return NewLogger(c.Log)
}

// NewLogger builds a production or development zap logger at the given level.
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("config: log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// NewBackend builds the backend collaborator selected by Backend.Mode.
func (c Config) NewBackend(logger *zap.Logger) (dashboard.Backend, error) {
	switch c.Backend.Mode {
	case ModeHTTP:
		client, err := backend.NewHTTPClient(backend.HTTPConfig{
			BaseURL:    c.Backend.BaseURL,
			APIKey:     c.Backend.APIKey,
			Workspace:  c.Backend.Workspace,
			HTTPClient: &http.Client{Timeout: c.Backend.Timeout},
			Breaker:    backend.DefaultBreakerConfig("backend:" + c.Backend.Workspace),
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	case ModeMemory:
		if c.Backend.Fixture == "" {
			return backend.NewMemory(c.Backend.Workspace), nil
		}
		mem, err := backend.LoadFixture(c.Backend.Fixture)
		if err != nil {
			return nil, err
		}
		return mem, nil
	}
	return nil, fmt.Errorf("%w %q", errUnknownMode, c.Backend.Mode)
}

// ProcessorOptions maps the processor section onto dashboard.Options.
func (c Config) ProcessorOptions(b dashboard.Backend, logger *zap.Logger, telemetry dashboard.Telemetry) dashboard.Options {
	return dashboard.Options{
		Backend:       b,
		Logger:        logger,
		Telemetry:     telemetry,
		MailboxSize:   c.Processor.MailboxSize,
		HistoryLimit:  c.Processor.HistoryLimit,
		EventBuffer:   c.Processor.EventBuffer,
		QueryCacheTTL: c.Processor.QueryCacheTTL,
	}
}
