package main

import (
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, modeRecords, cfg.Mode)
	assert.Equal(t, 1, cfg.Sheet)
	assert.Equal(t, 100, cfg.ChunkSize)
	assert.Equal(t, 0, cfg.Limit)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("XLSXSTREAM_MODE", "summary")
	t.Setenv("XLSXSTREAM_SHEET", "3")
	t.Setenv("XLSXSTREAM_SPOOL_IN_MEMORY", "true")
	t.Setenv("XLSXSTREAM_NO_FORMAT", "true")

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, modeSummary, cfg.Mode)
	assert.Equal(t, 3, cfg.Sheet)
	assert.True(t, cfg.SpoolInMemory)

	opts := cfg.readerOptions(nil, nil)
	assert.False(t, opts.ShouldFormat())
	assert.True(t, opts.SpoolInMemory)
}

func TestLoadConfigInvalidEnv(t *testing.T) {
	t.Setenv("XLSXSTREAM_SHEET", "first")
	_, err := loadConfig()
	assert.Error(t, err)
}

func TestFlagsOverrideEnv(t *testing.T) {
	t.Setenv("XLSXSTREAM_MODE", "rows")
	t.Setenv("XLSXSTREAM_LIMIT", "5")

	cfg, err := loadConfig()
	require.NoError(t, err)
	cmd := &cobra.Command{}
	cfg.bindFlags(cmd)
	require.NoError(t, cmd.Flags().Parse([]string{"--mode", "summary", "--sheet", "2", "--pretty"}))

	assert.Equal(t, modeSummary, cfg.Mode)
	assert.Equal(t, 2, cfg.Sheet)
	assert.Equal(t, 5, cfg.Limit, "env default kept")
	assert.True(t, cfg.Pretty)
}

func TestConfigValidate(t *testing.T) {
	base, err := loadConfig()
	require.NoError(t, err)

	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"unknown mode", func(c *Config) { c.Mode = "csv" }},
		{"sheet zero", func(c *Config) { c.Sheet = 0 }},
		{"chunk size zero", func(c *Config) { c.ChunkSize = 0 }},
		{"negative limit", func(c *Config) { c.Limit = -1 }},
		{"unknown log level", func(c *Config) { c.LogLevel = "trace" }},
		{"missing spool dir", func(c *Config) { c.SpoolDir = filepath.Join(t.TempDir(), "missing") }},
		{"spool dir and memory", func(c *Config) {
			c.SpoolDir = t.TempDir()
			c.SpoolInMemory = true
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := base
	cfg.SpoolDir = t.TempDir()
	assert.NoError(t, cfg.Validate(), "existing spool dir")
}
