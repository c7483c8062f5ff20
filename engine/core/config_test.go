package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
)

func TestParseConfigKeepsDefaults(t *testing.T) {
	cfg := DefaultConfig()
	data := []byte(`
[renderer]
frames_in_flight = 3
views = 2
`)
	if err := ParseConfig(data, cfg); err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	if cfg.Renderer.FramesInFlight != 3 {
		t.Errorf("FramesInFlight = %d, want 3", cfg.Renderer.FramesInFlight)
	}
	if cfg.Renderer.Views != 2 {
		t.Errorf("Views = %d, want 2", cfg.Renderer.Views)
	}
	if cfg.Renderer.DescriptorBatchSize != DefaultDescriptorBatchSize {
		t.Errorf("DescriptorBatchSize = %d, want default %d", cfg.Renderer.DescriptorBatchSize, DefaultDescriptorBatchSize)
	}
	if cfg.Application.Name != "Portalis" {
		t.Errorf("Application.Name = %q, want default", cfg.Application.Name)
	}
}

func TestParseConfigRejectsUnknownKeys(t *testing.T) {
	cfg := DefaultConfig()
	if err := ParseConfig([]byte("[renderer]\nframes = 2\n"), cfg); err == nil {
		t.Fatal("ParseConfig() accepted an unknown key")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"one frame in flight", func(c *Config) { c.Renderer.FramesInFlight = 1 }, false},
		{"zero batch", func(c *Config) { c.Renderer.DescriptorBatchSize = 0 }, false},
		{"three views", func(c *Config) { c.Renderer.Views = 3 }, false},
		{"stereo", func(c *Config) { c.Renderer.Views = 2 }, true},
		{"negative portal", func(c *Config) { c.Renderer.PortalHalfExtent = -1 }, false},
		{"zero window", func(c *Config) { c.Application.StartWidth = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate() error = %v, want nil", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidData) {
				t.Errorf("Validate() error = %v, want ErrInvalidData", err)
			}
		})
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "portalis.toml")
	if err := os.WriteFile(path, []byte("[application]\ntarget_fps = 30\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvConfigPath, "")
	t.Setenv(EnvLogLevel, "debug")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Application.TargetFPS != 30 {
		t.Errorf("TargetFPS = %d, want 30", cfg.Application.TargetFPS)
	}
	if cfg.Application.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want env override", cfg.Application.LogLevel)
	}
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	t.Setenv(EnvLogLevel, "")
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Renderer.FramesInFlight != DefaultFramesInFlight {
		t.Errorf("FramesInFlight = %d, want %d", cfg.Renderer.FramesInFlight, DefaultFramesInFlight)
	}
}
