package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLoader() *Loader {
	return NewLoaderWith(viper.New())
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := newTestLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 100*time.Millisecond, cfg.Detection.Interval())
	assert.Equal(t, 2*time.Second, cfg.Detection.Timeout())
	assert.InDelta(t, 0.6, cfg.Detection.HideConfidence, 1e-9)
	assert.InDelta(t, 1.2, cfg.Detection.LandscapeRatio, 1e-9)
	assert.InDelta(t, 0.8, cfg.Detection.PortraitRatio, 1e-9)
	assert.True(t, cfg.Boundary.UseHeuristicFallback)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.InDelta(t, 1280, cfg.Guides.FrameWidth, 1e-9)
}

func TestLoadWithFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "guidealign.yaml")
	content := []byte(`
log_level: debug
detection:
  interval_ms: 50
  timeout_ms: 1500
boundary:
  heuristic_only: true
server:
  port: 9000
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := newTestLoader().LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 50*time.Millisecond, cfg.Detection.Interval())
	assert.Equal(t, 1500*time.Millisecond, cfg.Detection.Timeout())
	assert.True(t, cfg.Boundary.HeuristicOnly)
	assert.Equal(t, 9000, cfg.Server.Port)

	// Untouched keys keep their defaults.
	assert.InDelta(t, 0.6, cfg.Detection.HideConfidence, 1e-9)
}

func TestLoadWithFileMissing(t *testing.T) {
	_, err := newTestLoader().LoadWithFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "guidealign.yaml")
	require.NoError(t, os.WriteFile(path, []byte("detection:\n  interval_ms: -5\n"), 0o600))

	_, err := newTestLoader().LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interval_ms")
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("GUIDEALIGN_DETECTION_TIMEOUT_MS", "3500")

	cfg, err := newTestLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, 3500*time.Millisecond, cfg.Detection.Timeout())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := newTestLoader().Load()
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "negative interval",
			mutate:  func(c *Config) { c.Detection.IntervalMs = 0 },
			wantErr: "interval_ms",
		},
		{
			name:    "hide confidence out of range",
			mutate:  func(c *Config) { c.Detection.HideConfidence = 1.5 },
			wantErr: "hide_confidence",
		},
		{
			name:    "ratio bands inverted",
			mutate:  func(c *Config) { c.Detection.PortraitRatio = 2.0 },
			wantErr: "landscape_ratio",
		},
		{
			name: "detector can never become ready",
			mutate: func(c *Config) {
				c.Boundary.ModelPath = ""
				c.Boundary.UseHeuristicFallback = false
			},
			wantErr: "detector",
		},
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "port",
		},
		{
			name:    "zero frame",
			mutate:  func(c *Config) { c.Guides.FrameWidth = 0 },
			wantErr: "frame",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
