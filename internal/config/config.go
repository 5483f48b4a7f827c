// Package config holds the static options for a kc-plus performance.
// Options are loaded once at startup from a config file (with KC_*
// environment overrides) and validated before any loop starts.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Defaults match a typical 4-minute gallery piece sampled at 10 Hz.
const (
	DefaultDuration     = 240 * time.Second
	DefaultSampleEvery  = 100 * time.Millisecond
	DefaultWindowLength = 50
	DefaultWebPort      = "8080"
)

// Extent is a configured min/max pair for one feature axis.
type Extent struct {
	Min float64 `mapstructure:"min"`
	Max float64 `mapstructure:"max"`
}

// Span returns Max - Min.
func (e Extent) Span() float64 { return e.Max - e.Min }

// Adapter holds the biosignal board connection parameters.
type Adapter struct {
	// Address of the board bridge, host:port.
	Address string `mapstructure:"address"`
	// Baud is the acquisition rate requested from the board.
	Baud int `mapstructure:"baud"`
	// Channels lists the analog channels to acquire.
	Channels []int `mapstructure:"channels"`
	// DialTimeout bounds the initial connection attempt.
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	// ReadTimeout bounds a single frame read. A board read must never
	// stall the ingestion loop past its cadence check.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// Retries is how many times to re-attempt the initial connection.
	Retries uint `mapstructure:"retries"`
}

// Config is the full static options structure for a performance.
type Config struct {
	LogLevel string `mapstructure:"log_level"`

	// Duration is the length of the piece; the deadline is computed
	// from it once, before any loop starts.
	Duration time.Duration `mapstructure:"duration"`

	// SampleEvery is the ingestion cadence (100ms = 10 Hz).
	SampleEvery time.Duration `mapstructure:"sample_every"`

	// WindowLength is the rolling buffer width in samples.
	WindowLength int `mapstructure:"window_length"`

	// EDALive selects the hardware adapter; false runs the whole
	// pipeline on synthetic data.
	EDALive bool `mapstructure:"eda_live"`

	Adapter Adapter `mapstructure:"adapter"`

	// Dancer position extents, in the motion-capture frame.
	DancerX Extent `mapstructure:"dancer_x"`
	DancerY Extent `mapstructure:"dancer_y"`
	DancerZ Extent `mapstructure:"dancer_z"`

	// StreamURL, when set, pushes feature frames to an external
	// consumer (sound engine, graphics) over websocket.
	StreamURL string `mapstructure:"stream_url"`

	// DataWriter records one CSV row per tick into DataDir.
	DataWriter bool   `mapstructure:"data_writer"`
	DataDir    string `mapstructure:"data_dir"`

	// WebPort serves the dashboard and feature stream.
	WebPort string `mapstructure:"web_port"`
}

// Default returns a Config with working defaults for a synthetic run.
func Default() Config {
	return Config{
		LogLevel:     "info",
		Duration:     DefaultDuration,
		SampleEvery:  DefaultSampleEvery,
		WindowLength: DefaultWindowLength,
		EDALive:      false,
		Adapter: Adapter{
			Address:     "127.0.0.1:5555",
			Baud:        10,
			Channels:    []int{0},
			DialTimeout: 5 * time.Second,
			ReadTimeout: 2 * time.Second,
			Retries:     3,
		},
		DancerX:    Extent{Min: 0, Max: 1000},
		DancerY:    Extent{Min: 0, Max: 1000},
		DancerZ:    Extent{Min: 0, Max: 1000},
		DataDir:    "data",
		WebPort:    DefaultWebPort,
	}
}

// Load reads config.{yaml,toml,json} from path, applies KC_* environment
// overrides, and validates the result.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(path)
	v.SetEnvPrefix("KC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := Default()
	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine, defaults apply; a malformed one is not.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return cfg, fmt.Errorf("reading config: %w", err)
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects options that would only fail later, mid-piece.
func (c Config) Validate() error {
	if c.Duration <= 0 {
		return fmt.Errorf("config: duration must be positive, got %v", c.Duration)
	}
	if c.SampleEvery <= 0 {
		return fmt.Errorf("config: sample_every must be positive, got %v", c.SampleEvery)
	}
	if c.WindowLength <= 0 {
		return fmt.Errorf("config: window_length must be positive, got %d", c.WindowLength)
	}
	for _, ax := range []struct {
		name string
		ext  Extent
	}{
		{"dancer_x", c.DancerX},
		{"dancer_y", c.DancerY},
		{"dancer_z", c.DancerZ},
	} {
		if ax.ext.Span() <= 0 {
			return fmt.Errorf("config: %s extents must satisfy min < max, got [%v, %v]",
				ax.name, ax.ext.Min, ax.ext.Max)
		}
	}
	if c.EDALive {
		if c.Adapter.Address == "" {
			return fmt.Errorf("config: adapter.address required when eda_live is set")
		}
		if c.Adapter.Baud <= 0 {
			return fmt.Errorf("config: adapter.baud must be positive, got %d", c.Adapter.Baud)
		}
		if len(c.Adapter.Channels) == 0 {
			return fmt.Errorf("config: adapter.channels must name at least one channel")
		}
	}
	return nil
}
