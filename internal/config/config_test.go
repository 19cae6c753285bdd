package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.ListenAddr)
	assert.True(t, filepath.IsAbs(cfg.DataDir))
	assert.Equal(t, SourceFile, cfg.Location.Source)
	assert.Equal(t, SourceCommand, cfg.Noise.Source)
	assert.Equal(t, 600, cfg.Noise.WindowMillis)
	assert.Equal(t, filepath.Join(cfg.DataDir, "measurements.json"), cfg.MeasurementsPath())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
listen_addr = ":9000"
data_dir = "` + filepath.Join(dir, "data") + `"
locale = "pl"

[location]
source = "static"
latitude = 52.1
longitude = 21.0

[noise]
source = "FILE"
file = "` + filepath.Join(dir, "clip.wav") + `"
window_ms = 250

[camera]
source = "none"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, filepath.Join(dir, "data"), cfg.DataDir)
	assert.Equal(t, "pl", cfg.Locale)
	assert.Equal(t, SourceStatic, cfg.Location.Source)
	assert.InDelta(t, 52.1, cfg.Location.Latitude, 1e-9)
	assert.Equal(t, SourceFile, cfg.Noise.Source)
	assert.Equal(t, 250, cfg.Noise.WindowMillis)
	assert.Equal(t, SourceNone, cfg.Camera.Source)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`listen_addr = ":9000"`), 0o644))

	t.Setenv("LISTEN_ADDR", ":7000")
	t.Setenv("ENVMON_DATA_DIR", filepath.Join(dir, "env-data"))
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.ListenAddr)
	assert.Equal(t, filepath.Join(dir, "env-data"), cfg.DataDir)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("listen_addr = "), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown location source", func(c *Config) { c.Location.Source = "satellite" }},
		{"file location without path", func(c *Config) { c.Location.FixPath = "" }},
		{"unknown noise source", func(c *Config) { c.Noise.Source = "radio" }},
		{"empty recorder command", func(c *Config) { c.Noise.Command = nil }},
		{"zero window", func(c *Config) { c.Noise.WindowMillis = 0 }},
		{"file camera without path", func(c *Config) { c.Camera.Source = SourceFile }},
		{"no data dir", func(c *Config) { c.DataDir = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := Default()
	assert.NoError(t, cfg.Validate())
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := ExpandPath("~/envmon")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "envmon"), got)

	got, err = ExpandPath("")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.SpoolDir = filepath.Join(dir, "spool")

	require.NoError(t, cfg.EnsureDirectories())
	assert.DirExists(t, cfg.DataDir)
	assert.DirExists(t, cfg.SpoolDir)
}
