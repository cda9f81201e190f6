// Package config loads and validates the netgauge configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/netgauge/netgauge/internal/sim"
	"github.com/netgauge/netgauge/pkg/gauge/spec"
	"github.com/netgauge/netgauge/pkg/results"
	"go.yaml.in/yaml/v3"
)

// Config is the on-disk YAML configuration.
type Config struct {
	// Profile is the default measurement profile: quick, standard or
	// extended.
	Profile string `yaml:"profile"`

	// Baseline holds the expected performance used for grading.
	Baseline Baseline `yaml:"baseline"`

	// StorePath is the SQLite history database path.
	StorePath string `yaml:"store_path"`

	// ArchiveDir is where archival JSON records are written. Empty
	// disables archival.
	ArchiveDir string `yaml:"archive_dir"`

	// Retention bounds stored history.
	Retention Retention `yaml:"retention"`

	// Tags are attached to every measurement.
	Tags Tags `yaml:"tags"`

	// Schedule is a cron expression (or an @every duration) driving
	// daemon mode. Empty disables scheduling.
	Schedule string `yaml:"schedule"`

	// API configures the HTTP server.
	API API `yaml:"api"`

	// Servers is the simulated server catalogue.
	Servers []sim.Server `yaml:"servers"`

	// Seed seeds the simulated source. Zero picks a time-based seed.
	Seed int64 `yaml:"seed"`
}

// Baseline is the configured expected performance.
type Baseline struct {
	Download float64 `yaml:"download"`
	Upload   float64 `yaml:"upload"`
	Ping     float64 `yaml:"ping"`
}

// Retention is the history retention policy.
type Retention struct {
	// MaxRecords caps how many results are kept. Zero or less keeps
	// everything.
	MaxRecords int `yaml:"max_records"`
	// MaxAgeDays drops results older than this many days. Zero keeps
	// everything.
	MaxAgeDays int `yaml:"max_age_days"`
}

// MaxAge returns the retention age as a duration.
func (r Retention) MaxAge() time.Duration {
	return time.Duration(r.MaxAgeDays) * 24 * time.Hour
}

// Tags are optional labels attached to every measurement.
type Tags struct {
	NetworkType string `yaml:"network_type"`
	Location    string `yaml:"location"`
}

// API configures the HTTP server.
type API struct {
	// Addr is the listen address.
	Addr string `yaml:"addr"`
	// RateLimit is the allowed request rate in requests per second.
	RateLimit float64 `yaml:"rate_limit"`
	// Burst is the rate limiter's burst size.
	Burst int `yaml:"burst"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Profile:   string(spec.ProfileStandard),
		Baseline:  Baseline{Download: 100, Upload: 50, Ping: 20},
		StorePath: "netgauge.db",
		Retention: Retention{MaxRecords: 50},
		API:       API{Addr: ":8080", RateLimit: 10, Burst: 20},
		Servers: []sim.Server{
			{ID: "ams-1", Name: "Amsterdam Exchange", Location: "Amsterdam, NL", Bias: 1},
			{ID: "fra-1", Name: "Frankfurt Core", Location: "Frankfurt, DE", Bias: 0.95},
			{ID: "lon-1", Name: "London Docklands", Location: "London, UK", Bias: 0.9},
		},
	}
}

// Load reads the file at path over the defaults and validates the
// result. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("cannot parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Default(), fmt.Errorf("invalid configuration %s: %w", path, err)
	}
	return cfg, nil
}

// Write writes cfg to path as YAML.
func Write(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks the configuration for values that cannot work.
func (c Config) Validate() error {
	if !spec.Profile(c.Profile).Valid() {
		return fmt.Errorf("unknown profile %q", c.Profile)
	}
	if err := c.GradingBaseline().Validate(); err != nil {
		return err
	}
	if c.Retention.MaxRecords < 0 || c.Retention.MaxAgeDays < 0 {
		return errors.New("retention values must not be negative")
	}
	if c.API.RateLimit <= 0 || c.API.Burst <= 0 {
		return errors.New("api rate limit and burst must be positive")
	}
	seen := map[string]bool{}
	for _, srv := range c.Servers {
		if srv.ID == "" {
			return errors.New("server entries need an id")
		}
		if seen[srv.ID] {
			return fmt.Errorf("duplicate server id %q", srv.ID)
		}
		seen[srv.ID] = true
	}
	return nil
}

// GradingBaseline returns the configured baseline as the results type.
func (c Config) GradingBaseline() results.Baseline {
	return results.Baseline{
		ExpectedDownload: c.Baseline.Download,
		ExpectedUpload:   c.Baseline.Upload,
		ExpectedPing:     c.Baseline.Ping,
	}
}

// Server returns the catalogue entry with the given ID.
func (c Config) Server(id string) (sim.Server, bool) {
	for _, srv := range c.Servers {
		if srv.ID == id {
			return srv, true
		}
	}
	return sim.Server{}, false
}
