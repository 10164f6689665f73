package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"github.com/petems/deeply-recorder/internal/audio"
)

type Config struct {
	LogLevel string      `json:"log_level"` // "debug", "info", "warn", "error"
	Audio    AudioConfig `json:"audio"`
}

type AudioConfig struct {
	Source            string `json:"source"` // "default" or a device name
	SampleRateHz      int    `json:"sample_rate_hz"`
	Channels          string `json:"channels"` // "mono" or "stereo"
	Encoding          string `json:"encoding"` // "int16" or "float32"
	BufferSampleCount int    `json:"buffer_sample_count"`
	BufferSizing      string `json:"buffer_sizing"` // "double" or "minimum", used when buffer_sample_count is 0
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Audio: AudioConfig{
			Source:            string(audio.SourceDefault),
			SampleRateHz:      16000,
			Channels:          "mono",
			Encoding:          "int16",
			BufferSampleCount: 0, // Derived from the device minimum
			BufferSizing:      "double",
		},
	}
}

// Load reads the config from the platform path or returns defaults
func Load() (*Config, error) {
	return LoadFrom(Path())
}

// LoadFrom reads the config at path over the defaults. A missing file is
// not an error.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	return c.SaveTo(Path())
}

// SaveTo writes the config to path
func (c *Config) SaveTo(path string) error {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Capture converts the file representation into a capture config. Unknown
// channel layouts, encodings or sizing policies fail with audio.ErrConfig.
func (a AudioConfig) Capture() (audio.CaptureConfig, error) {
	channels, err := audio.ParseChannelLayout(a.Channels)
	if err != nil {
		return audio.CaptureConfig{}, err
	}
	enc, err := audio.ParseEncoding(a.Encoding)
	if err != nil {
		return audio.CaptureConfig{}, err
	}
	sizing, err := audio.ParseSizing(a.BufferSizing)
	if err != nil {
		return audio.CaptureConfig{}, err
	}

	cfg := audio.CaptureConfig{
		Source:            audio.Source(a.Source),
		SampleRateHz:      a.SampleRateHz,
		Channels:          channels,
		Encoding:          enc,
		BufferSampleCount: a.BufferSampleCount,
		Sizing:            sizing,
	}
	if cfg.Source == "" {
		cfg.Source = audio.SourceDefault
	}
	return cfg, cfg.Validate()
}

// Path returns the platform-specific config file path
func Path() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		base = os.Getenv("APPDATA")
	default: // linux
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.config"
		}
	}

	return filepath.Join(base, "deeply-recorder", "config.json")
}
