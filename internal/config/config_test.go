package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/screenreel/internal/apperr"
)

func TestLoadMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "screenreel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
export:
  fps: 30
  format: webm
camera:
  ramp_ms: 200
  smart_pan: true
  zoom_gap_ms: 100
suggest:
  typing_rate: 4
debug: true
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Export.FPS)
	assert.Equal(t, "webm", cfg.Export.Format)
	assert.Equal(t, 1920, cfg.Export.Width)
	assert.Equal(t, 200.0, cfg.Camera.RampMs)
	assert.True(t, cfg.Camera.SmartPan)
	assert.Equal(t, 100.0, cfg.Camera.ZoomGapMs)
	assert.Equal(t, 4.0, cfg.Camera.MaxScale)
	assert.Equal(t, 4.0, cfg.Suggest.TypingRate)
	assert.Equal(t, 6, cfg.Suggest.TypingMinKeys)
	assert.True(t, cfg.Debug)
}

func TestLoadFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env.yaml")
	require.NoError(t, os.WriteFile(path, []byte("export:\n  quality: 30\n"), 0644))
	t.Setenv(EnvConfigPath, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Export.Quality)
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, defaultConfig().Export, cfg.Export)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("export:\n  fps: 0\n"), 0644))
	_, err := Load(path)
	assert.True(t, apperr.Is(err, apperr.KindSettings))

	require.NoError(t, os.WriteFile(path, []byte("suggest:\n  typing_rate: 0.5\n"), 0644))
	_, err = Load(path)
	assert.True(t, apperr.Is(err, apperr.KindSettings))

	require.NoError(t, os.WriteFile(path, []byte("export: [not, a, map]\n"), 0644))
	_, err = Load(path)
	assert.True(t, apperr.Is(err, apperr.KindSettings))
}

func TestExportValidate(t *testing.T) {
	base := defaultConfig().Export
	tests := []struct {
		name   string
		mutate func(*ExportConfig)
		ok     bool
	}{
		{"defaults", func(*ExportConfig) {}, true},
		{"odd width h264", func(e *ExportConfig) { e.Width = 1919 }, false},
		{"odd width png", func(e *ExportConfig) { e.Width = 1919; e.Format = "png" }, true},
		{"zero height", func(e *ExportConfig) { e.Height = 0 }, false},
		{"fps too high", func(e *ExportConfig) { e.FPS = 500 }, false},
		{"gif", func(e *ExportConfig) { e.Format = "gif" }, false},
		{"negative quality", func(e *ExportConfig) { e.Quality = -1 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := base
			tt.mutate(&e)
			err := e.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, apperr.Is(err, apperr.KindSettings))
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultConfig()
	cfg.Export.Format = "mov"
	cfg.Camera.FollowLeadMs = 42
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "mov", loaded.Export.Format)
	assert.Equal(t, 42.0, loaded.Camera.FollowLeadMs)
}

func TestContextCarriesConfig(t *testing.T) {
	cfg := defaultConfig()
	cfg.Export.FPS = 24
	ctx := WithConfig(context.Background(), cfg)
	assert.Same(t, cfg, FromContext(ctx))
	assert.Equal(t, 60, FromContext(context.Background()).Export.FPS)
}
