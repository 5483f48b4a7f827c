package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault_IsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults must validate, got %v", err)
	}
}

func TestValidate_RejectsBadOptions(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero duration", func(c *Config) { c.Duration = 0 }},
		{"negative cadence", func(c *Config) { c.SampleEvery = -time.Second }},
		{"zero window", func(c *Config) { c.WindowLength = 0 }},
		{"inverted extents", func(c *Config) { c.DancerX = Extent{Min: 10, Max: 5} }},
		{"empty extents", func(c *Config) { c.DancerY = Extent{Min: 3, Max: 3} }},
		{"live without address", func(c *Config) { c.EDALive = true; c.Adapter.Address = "" }},
		{"live without channels", func(c *Config) { c.EDALive = true; c.Adapter.Channels = nil }},
		{"live with bad baud", func(c *Config) { c.EDALive = true; c.Adapter.Baud = 0 }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := Default()
			c.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected validation error for %s", c.name)
			}
		})
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Duration != DefaultDuration {
		t.Errorf("duration: got %v, want default %v", cfg.Duration, DefaultDuration)
	}
	if cfg.WindowLength != DefaultWindowLength {
		t.Errorf("window: got %d, want default %d", cfg.WindowLength, DefaultWindowLength)
	}
}

func TestLoad_ReadsFile(t *testing.T) {
	dir := t.TempDir()
	body := []byte("duration: 30s\nwindow_length: 20\ndancer_x:\n  min: -500\n  max: 500\n")
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), body, 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Duration != 30*time.Second {
		t.Errorf("duration: got %v, want 30s", cfg.Duration)
	}
	if cfg.WindowLength != 20 {
		t.Errorf("window: got %d, want 20", cfg.WindowLength)
	}
	if cfg.DancerX != (Extent{Min: -500, Max: 500}) {
		t.Errorf("dancer_x: got %+v", cfg.DancerX)
	}
	// Untouched fields keep their defaults.
	if cfg.WebPort != DefaultWebPort {
		t.Errorf("web_port: got %q, want default", cfg.WebPort)
	}
}

func TestLoad_InvalidFileFails(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("duration: -5s\n"), 0o644)
	if _, err := Load(dir); err == nil {
		t.Error("expected validation error for negative duration")
	}
}
