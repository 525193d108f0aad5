package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.CheckIntervalSeconds)
	assert.Equal(t, 50, cfg.GlobalMaxParallel)
	assert.Equal(t, 3, cfg.DefaultUserMaxParallel)
	assert.Equal(t, 3600, cfg.DefaultQueueTimeoutSeconds)
	assert.Equal(t, "csv", cfg.DefaultExportType)
	assert.Equal(t, "/tmp/quarry", cfg.TmpExportLocation)
	assert.Equal(t, 22, cfg.SSHPort)
	assert.Equal(t, 30*time.Second, cfg.SSHTimeout())
	assert.Equal(t, 30*time.Second, cfg.SSHKeepalive())
	assert.Equal(t, 30*time.Minute, cfg.StuckThreshold())
	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("QUARRY_DATABASE_URL", "postgres://quarry:secret@db:5432/quarry")
	t.Setenv("QUARRY_CHECK_INTERVAL_SECONDS", "5")
	t.Setenv("QUARRY_GLOBAL_MAX_PARALLEL", "8")
	t.Setenv("QUARRY_DEFAULT_USER_MAX_PARALLEL", "2")
	t.Setenv("QUARRY_DEFAULT_EXPORT_TYPE", "feather")
	t.Setenv("QUARRY_SSH_HOST", "files.internal")
	t.Setenv("QUARRY_SSH_PORT", "2222")
	t.Setenv("QUARRY_LOG_JSON", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://quarry:secret@db:5432/quarry", cfg.DatabaseURL)
	assert.Equal(t, 5*time.Second, cfg.CheckInterval())
	assert.Equal(t, 8, cfg.GlobalMaxParallel)
	assert.Equal(t, 2, cfg.DefaultUserMaxParallel)
	assert.Equal(t, "feather", cfg.DefaultExportType)
	assert.Equal(t, "files.internal", cfg.SSHHost)
	assert.Equal(t, 2222, cfg.SSHPort)
	assert.True(t, cfg.LogJSON)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "zero check interval",
			mutate:  func(c *Config) { c.CheckIntervalSeconds = 0 },
			wantErr: "check interval",
		},
		{
			name:    "negative global cap",
			mutate:  func(c *Config) { c.GlobalMaxParallel = -1 },
			wantErr: "global max parallel",
		},
		{
			name:    "user cap above global cap",
			mutate:  func(c *Config) { c.DefaultUserMaxParallel = 100; c.GlobalMaxParallel = 10 },
			wantErr: "exceeds global max parallel",
		},
		{
			name:    "unknown export type",
			mutate:  func(c *Config) { c.DefaultExportType = "parquet" },
			wantErr: "unknown default export type",
		},
		{
			name:    "ssh port out of range",
			mutate:  func(c *Config) { c.SSHPort = 70000 },
			wantErr: "ssh port out of range",
		},
		{
			name:    "empty tmp location",
			mutate:  func(c *Config) { c.TmpExportLocation = "" },
			wantErr: "tmp export location",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)

			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
