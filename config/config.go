// Package config loads the optional YAML configuration file. Command-line
// flags are applied on top of whatever it returns.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"medilingua/audio"
	"medilingua/capture"
)

type Config struct {
	Capture   CaptureConfig   `yaml:"capture"`
	Service   ServiceConfig   `yaml:"service"`
	Logging   LoggingConfig   `yaml:"logging"`
	History   HistoryConfig   `yaml:"history"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Clipboard ClipboardConfig `yaml:"clipboard"`
	Cues      CuesConfig      `yaml:"cues"`
}

type CaptureConfig struct {
	SilenceDuration    time.Duration     `yaml:"silence_duration"`
	AmplitudeThreshold float64           `yaml:"amplitude_threshold"` // 0-255 mean bin level
	SampleInterval     time.Duration     `yaml:"sample_interval"`
	Device             string            `yaml:"device"`
	Constraints        audio.Constraints `yaml:"constraints"`
}

type ServiceConfig struct {
	URL      string        `yaml:"url"`
	Timeout  time.Duration `yaml:"timeout"`
	Format   string        `yaml:"format"`
	Language string        `yaml:"language"`
}

type LoggingConfig struct {
	Dir   string `yaml:"dir"`
	Level string `yaml:"level"`
}

type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // defaults to history.db in the log directory
}

type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables the endpoint
}

type ClipboardConfig struct {
	Copy bool `yaml:"copy"`
}

// CuesConfig controls the beeps played when a recording starts and stops.
type CuesConfig struct {
	Enabled bool `yaml:"enabled"`
}

func Default() *Config {
	return &Config{
		Capture: CaptureConfig{
			SilenceDuration:    capture.DefaultSilenceDuration,
			AmplitudeThreshold: capture.DefaultAmplitudeThreshold,
			SampleInterval:     capture.DefaultSampleInterval,
			Constraints:        audio.DefaultConstraints(),
		},
		Service: ServiceConfig{
			URL:     "http://127.0.0.1:5000",
			Timeout: 60 * time.Second,
			Format:  "wav",
		},
		Logging:   LoggingConfig{Level: "info"},
		History:   HistoryConfig{Enabled: true},
		Clipboard: ClipboardConfig{Copy: true},
		Cues:      CuesConfig{Enabled: true},
	}
}

// Load reads path over the defaults. A missing file is not an error when
// optional is set.
func Load(path string, optional bool) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := c.Capture.Validate(); err != nil {
		return fmt.Errorf("capture config: %w", err)
	}
	if err := c.Service.Validate(); err != nil {
		return fmt.Errorf("service config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

// Options converts the capture section into session options.
func (c *CaptureConfig) Options() capture.Options {
	return capture.Options{
		SilenceDuration:    c.SilenceDuration,
		AmplitudeThreshold: c.AmplitudeThreshold,
		SampleInterval:     c.SampleInterval,
		Constraints:        c.Constraints,
	}
}

func (c *CaptureConfig) Validate() error {
	if c.SilenceDuration <= 0 {
		return fmt.Errorf("silence_duration must be positive, got %s", c.SilenceDuration)
	}
	if c.AmplitudeThreshold <= 0 || c.AmplitudeThreshold > 255 {
		return fmt.Errorf("amplitude_threshold must be in (0, 255], got %g", c.AmplitudeThreshold)
	}
	if c.SampleInterval <= 0 {
		return fmt.Errorf("sample_interval must be positive, got %s", c.SampleInterval)
	}
	if c.SampleInterval > c.SilenceDuration {
		return fmt.Errorf("sample_interval (%s) must not exceed silence_duration (%s)",
			c.SampleInterval, c.SilenceDuration)
	}
	return nil
}

func (s *ServiceConfig) Validate() error {
	u, err := url.Parse(s.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("url must be an http(s) URL, got %q", s.URL)
	}
	if s.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative, got %s", s.Timeout)
	}
	switch s.Format {
	case "wav", "flac":
	default:
		return fmt.Errorf("format must be 'wav' or 'flac', got '%s'", s.Format)
	}
	return nil
}

func (l *LoggingConfig) Validate() error {
	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("level must be one of debug, info, warn, error, got '%s'", l.Level)
	}
	return nil
}
