package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ivlev/screenreel/internal/apperr"
	"github.com/ivlev/screenreel/internal/camera"
	"github.com/ivlev/screenreel/internal/director"
)

type contextKey string

const configKey contextKey = "config"

// EnvConfigPath names the config file when no path is given explicitly.
const EnvConfigPath = "SCREENREEL_CONFIG"

// Config holds all application configuration
type Config struct {
	Export ExportConfig `yaml:"export"`
	Camera CameraConfig `yaml:"camera"`
	Cursor CursorConfig `yaml:"cursor"`
	Stats  StatsConfig  `yaml:"stats"`

	// Suggest tunes automatic zoom and typing speed-up suggestions.
	Suggest director.Options `yaml:"suggest"`

	// Debug stamps every frame with a QR code of its index and time.
	Debug bool `yaml:"debug"`

	BuildVersion string `yaml:"-"`
}

type ExportConfig struct {
	Width       int    `yaml:"width"`
	Height      int    `yaml:"height"`
	FPS         int    `yaml:"fps"`
	Format      string `yaml:"format"` // mp4, mov, webm, png
	Quality     int    `yaml:"quality"`
	Encoder     string `yaml:"encoder"` // ffmpeg encoder name or "auto"
	OutputDir   string `yaml:"output_dir"`
	DecodeAhead int    `yaml:"decode_ahead"` // frames buffered between pipeline stages
	Workers     int    `yaml:"workers"`      // parallel compositors
	// MaxDecodeHeight caps source decode resolution; 0 decodes at export height.
	MaxDecodeHeight int `yaml:"max_decode_height"`
}

type CameraConfig struct {
	camera.Config `yaml:",inline"`
	ZoomGapMs     float64 `yaml:"zoom_gap_ms"` // gap used when appending a pasted zoom block
}

type CursorConfig struct {
	Size                 float64 `yaml:"size"`
	ClickRippleMs        float64 `yaml:"click_ripple_ms"`
	KeyHoldMs            float64 `yaml:"key_hold_ms"`
	ClickToleranceFrames float64 `yaml:"click_tolerance_frames"`
}

type StatsConfig struct {
	Enabled bool   `yaml:"enabled"`
	DBPath  string `yaml:"db_path"`
}

// Load reads configuration from file or returns defaults. With an empty
// path it tries $SCREENREEL_CONFIG and then the usual locations. A .env
// file in the working directory is loaded first.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		path = findConfigFile()
	}

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, apperr.New(apperr.KindSettings, "load config", fmt.Errorf("%s: %w", path, err))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate rejects settings no export can run with.
func (c *Config) Validate() error {
	if err := c.Export.Validate(); err != nil {
		return err
	}
	if c.Camera.MaxScale < 1 {
		return apperr.New(apperr.KindSettings, "validate config", fmt.Errorf("camera.max_scale %.2f < 1", c.Camera.MaxScale))
	}
	if c.Camera.RampMs < 0 || c.Camera.FollowSmoothingMs < 0 || c.Camera.FollowLeadMs < 0 {
		return apperr.New(apperr.KindSettings, "validate config", fmt.Errorf("camera timings must not be negative"))
	}
	if c.Suggest.TypingRate < 1 {
		return apperr.New(apperr.KindSettings, "validate config", fmt.Errorf("suggest.typing_rate %.2f < 1", c.Suggest.TypingRate))
	}
	return nil
}

// Validate checks resolution, rate and format.
func (e ExportConfig) Validate() error {
	fail := func(format string, args ...any) error {
		return apperr.New(apperr.KindSettings, "validate export", fmt.Errorf(format, args...))
	}
	if e.Width <= 0 || e.Height <= 0 {
		return fail("resolution %dx%d must be positive", e.Width, e.Height)
	}
	if e.Format != "png" && (e.Width%2 != 0 || e.Height%2 != 0) {
		return fail("resolution %dx%d must be even for %s", e.Width, e.Height, e.Format)
	}
	if e.FPS <= 0 || e.FPS > 240 {
		return fail("fps %d out of range 1-240", e.FPS)
	}
	switch e.Format {
	case "mp4", "mov", "webm", "png":
	default:
		return fail("unsupported format %q", e.Format)
	}
	if e.Quality < 0 {
		return fail("quality %d must not be negative", e.Quality)
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Export: ExportConfig{
			Width:       1920,
			Height:      1080,
			FPS:         60,
			Format:      "mp4",
			Quality:     23,
			Encoder:     "auto",
			OutputDir:   "./output",
			DecodeAhead: 4,
			Workers:     2,
		},
		Camera: CameraConfig{
			Config:    camera.DefaultConfig(),
			ZoomGapMs: 250,
		},
		Cursor: CursorConfig{
			Size:                 28,
			ClickRippleMs:        400,
			KeyHoldMs:            800,
			ClickToleranceFrames: 1,
		},
		Stats: StatsConfig{
			Enabled: true,
			DBPath:  filepath.Join(os.Getenv("HOME"), ".screenreel", "history.db"),
		},
		Suggest: director.DefaultOptions(),
	}
}

// Default returns a fresh default configuration.
func Default() *Config {
	return defaultConfig()
}

func findConfigFile() string {
	candidates := []string{
		"./screenreel.yaml",
		"./screenreel.yml",
		filepath.Join(os.Getenv("HOME"), ".screenreel", "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return defaultConfig()
}
