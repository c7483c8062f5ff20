package core

import (
	"bytes"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

const (
	EnvConfigPath = "PORTALIS_CONFIG"
	EnvLogLevel   = "PORTALIS_LOG_LEVEL"

	DefaultConfigPath          = "config.toml"
	DefaultFramesInFlight      = 2
	DefaultDescriptorBatchSize = 15
)

type Config struct {
	Application ApplicationConfig `toml:"application"`
	Renderer    RendererConfig    `toml:"renderer"`
	Assets      AssetsConfig      `toml:"assets"`
}

type ApplicationConfig struct {
	// The application name used in windowing, if applicable.
	Name string `toml:"name"`
	// Window starting position, if applicable.
	StartPosX uint32 `toml:"start_pos_x"`
	StartPosY uint32 `toml:"start_pos_y"`
	// Window starting size, if applicable.
	StartWidth  uint32 `toml:"start_width"`
	StartHeight uint32 `toml:"start_height"`
	// Frames per second the host loop is paced to. Zero disables pacing.
	TargetFPS uint32 `toml:"target_fps"`
	LogLevel  string `toml:"log_level"`
}

type RendererConfig struct {
	// Number of frames the CPU may prepare ahead of the GPU. At least 2.
	FramesInFlight uint32 `toml:"frames_in_flight"`
	// Descriptor sets carved out of each descriptor pool.
	DescriptorBatchSize uint32 `toml:"descriptor_batch_size"`
	// 1 for a single view, 2 for stereo multiview.
	Views      uint32     `toml:"views"`
	ClearColor [4]float32 `toml:"clear_color"`
	Validation bool       `toml:"validation"`
	VSync      bool       `toml:"vsync"`
	// Defer resource destruction until no in-flight frame can reference it,
	// instead of waiting for the device to go idle.
	DeferredRelease bool `toml:"deferred_release"`
	// Half side length of the square portal footprint in portal space.
	PortalHalfExtent float32 `toml:"portal_half_extent"`
}

type AssetsConfig struct {
	Root      string `toml:"root"`
	HotReload bool   `toml:"hot_reload"`
}

// DefaultConfig is used for every field the configuration file leaves out.
func DefaultConfig() *Config {
	return &Config{
		Application: ApplicationConfig{
			Name:        "Portalis",
			StartPosX:   100,
			StartPosY:   100,
			StartWidth:  1280,
			StartHeight: 720,
			TargetFPS:   60,
			LogLevel:    "info",
		},
		Renderer: RendererConfig{
			FramesInFlight:      DefaultFramesInFlight,
			DescriptorBatchSize: DefaultDescriptorBatchSize,
			Views:               1,
			ClearColor:          [4]float32{0.0, 0.0, 0.0, 1.0},
			VSync:               true,
			PortalHalfExtent:    1.0,
		},
		Assets: AssetsConfig{
			Root:      "assets",
			HotReload: true,
		},
	}
}

// LoadConfig reads the TOML configuration at path on top of the defaults.
// A .env file in the working directory may override the path and the log
// level. A missing configuration file is not an error.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		LogWarn("failed to read .env file: %s", err)
	}
	if p := os.Getenv(EnvConfigPath); p != "" {
		path = p
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		LogWarn("config file `%s` not found, using defaults", path)
	case err != nil:
		return nil, errors.Wrapf(err, "failed to read config file `%s`", path)
	default:
		if err := ParseConfig(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "failed to parse config file `%s`", path)
		}
	}

	if lvl := os.Getenv(EnvLogLevel); lvl != "" {
		cfg.Application.LogLevel = lvl
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseConfig decodes data into cfg, rejecting unknown keys.
func ParseConfig(data []byte, cfg *Config) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(cfg)
}

func (c *Config) Validate() error {
	if c.Renderer.FramesInFlight < 2 {
		return InvalidDataf("renderer.frames_in_flight must be at least 2, got %d", c.Renderer.FramesInFlight)
	}
	if c.Renderer.DescriptorBatchSize == 0 {
		return InvalidDataf("renderer.descriptor_batch_size must be positive")
	}
	if c.Renderer.Views != 1 && c.Renderer.Views != 2 {
		return InvalidDataf("renderer.views must be 1 or 2, got %d", c.Renderer.Views)
	}
	if c.Renderer.PortalHalfExtent <= 0 {
		return InvalidDataf("renderer.portal_half_extent must be positive, got %f", c.Renderer.PortalHalfExtent)
	}
	if c.Application.StartWidth == 0 || c.Application.StartHeight == 0 {
		return InvalidDataf("application window size must be non-zero")
	}
	return nil
}
