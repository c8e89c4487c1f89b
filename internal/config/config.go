// Package config defines the curation service configuration and its loader.
//
// Conventions:
// - Defaults live in New; Load layers a YAML file and SPIKE_* env vars on top.
// - CLI flags are applied by cmd after Load and then re-checked with Validate.
// - Errors are wrapped with this package's sentinels.
package config

import (
	"fmt"

	"github.com/okian/spikecurator/internal/domain/project"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// HeightThreshold is the initial peak height threshold in signal units.
	HeightThreshold float64 `koanf:"height_threshold"`

	// PreSpikeMS and PostSpikeMS size the waveform window around each peak.
	PreSpikeMS  float64 `koanf:"pre_spike_ms"`
	PostSpikeMS float64 `koanf:"post_spike_ms"`

	// RefractoryMS is the minimum separation between accepted peaks.
	RefractoryMS float64 `koanf:"refractory_ms"`

	// ProjectionPolicy is "refit" (new basis after every edit) or "fixed".
	ProjectionPolicy string `koanf:"projection_policy"`

	// ISIBins is the default number of histogram bins for GET /isi.
	ISIBins int `koanf:"isi_bins"`

	// ISILogScale selects log-spaced ISI bins by default.
	ISILogScale bool `koanf:"isi_log_scale"`

	// CommandQueueSize bounds the pending command queue.
	CommandQueueSize int `koanf:"command_queue_size"`

	// DedupeSize sets how many command ids are remembered for replay detection.
	DedupeSize int `koanf:"dedupe_size"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":9080",
		HeightThreshold:  0,
		PreSpikeMS:       0.5,
		PostSpikeMS:      1.5,
		RefractoryMS:     1.0,
		ProjectionPolicy: string(project.PolicyRefit),
		ISIBins:          50,
		ISILogScale:      true,
		CommandQueueSize: 64,
		DedupeSize:       1024,
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.PreSpikeMS < 0 || c.PostSpikeMS < 0:
		return fmt.Errorf("%w: window must not be negative (pre=%v post=%v)", ErrInvalidConfig, c.PreSpikeMS, c.PostSpikeMS)
	case c.RefractoryMS < 0:
		return fmt.Errorf("%w: refractory_ms must not be negative", ErrInvalidConfig)
	case c.ISIBins <= 0:
		return fmt.Errorf("%w: isi_bins must be positive", ErrInvalidConfig)
	case c.CommandQueueSize <= 0:
		return fmt.Errorf("%w: command_queue_size must be positive", ErrInvalidConfig)
	}
	if _, err := project.ParsePolicy(c.ProjectionPolicy); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Policy returns the parsed projection policy. Call Validate first.
func (c *Config) Policy() project.Policy {
	p, _ := project.ParsePolicy(c.ProjectionPolicy)
	return p
}

// Seconds converts the millisecond window settings to seconds.
func (c *Config) Seconds() (pre, post, refractory float64) {
	const msPerSecond = 1000.0
	return c.PreSpikeMS / msPerSecond, c.PostSpikeMS / msPerSecond, c.RefractoryMS / msPerSecond
}
