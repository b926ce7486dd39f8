package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-dashboard-model/components/dashboard"
	"github.com/goliatone/go-dashboard-model/pkg/backend"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ModeMemory, cfg.Backend.Mode)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "/dashboard", cfg.Server.BasePath)
	assert.Equal(t, dashboard.DefaultHistoryLimit, cfg.Processor.HistoryLimit)
	assert.Equal(t, 5*time.Minute, cfg.Processor.QueryCacheTTL)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoadFileThenEnv(t *testing.T) {
	t.Setenv("DASHBOARD_SERVER_ADDR", ":7070")
	t.Setenv("DASHBOARD_PROCESSOR_HISTORY_LIMIT", "5")

	cfg, err := Load(filepath.Join("testdata", "dashboard.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "acme", cfg.Backend.Workspace)
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, 5, cfg.Processor.HistoryLimit)
	assert.Equal(t, 30*time.Second, cfg.Processor.QueryCacheTTL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Development)
	// untouched keys keep their defaults
	assert.Equal(t, 64, cfg.Processor.MailboxSize)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	bad := cfg
	bad.Backend.Mode = "carrier-pigeon"
	assert.ErrorIs(t, bad.Validate(), errUnknownMode)

	bad = cfg
	bad.Backend.Mode = ModeHTTP
	assert.ErrorContains(t, bad.Validate(), "base_url")

	bad = cfg
	bad.Log.Level = "chatty"
	assert.ErrorContains(t, bad.Validate(), "log.level")
}

func TestNewBackendAndOptions(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	b, err := cfg.NewBackend(nil)
	require.NoError(t, err)
	mem, ok := b.(*backend.Memory)
	require.True(t, ok)
	assert.Equal(t, "default", mem.Workspace())

	cfg.Backend.Mode = ModeHTTP
	cfg.Backend.BaseURL = "http://analytics.test"
	b, err = cfg.NewBackend(nil)
	require.NoError(t, err)
	_, ok = b.(*backend.HTTPClient)
	assert.True(t, ok)

	opts := cfg.ProcessorOptions(b, nil, nil)
	assert.Equal(t, cfg.Processor.HistoryLimit, opts.HistoryLimit)
	assert.Same(t, b, opts.Backend)
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(LogConfig{Level: "warn"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(-1))

	_, err = NewLogger(LogConfig{Level: "nope"})
	require.Error(t, err)
}
