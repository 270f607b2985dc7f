package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/samber/lo"
)

const (
	defaultPollInterval   = 30
	defaultFetchTimeout   = 10
	defaultMaxConcurrent  = 20
	defaultPort           = 8085
	defaultArchiveEnabled = true
)

// Provider is one monitored status page. Immutable for the process
// lifetime; reconfiguration means a restart.
type Provider struct {
	Name         string `toml:"name"`
	Product      string `toml:"product,omitempty"`
	FeedURL      string `toml:"feed_url"`
	PollInterval int    `toml:"poll_interval,omitempty"` // seconds
}

// Interval returns the base poll interval as a duration.
func (p Provider) Interval() time.Duration {
	return time.Duration(p.PollInterval) * time.Second
}

// ServerConfig holds settings for the HTTP dashboard server.
type ServerConfig struct {
	Hostname string `toml:"hostname,omitempty"`
	Port     int    `toml:"port,omitempty"`
}

// FetchConfig holds settings shared by all poll loops.
type FetchConfig struct {
	Timeout       int    `toml:"timeout,omitempty"` // seconds
	MaxConcurrent int    `toml:"max_concurrent,omitempty"`
	UserAgent     string `toml:"user_agent,omitempty"`
}

// ArchiveConfig holds settings for the SQLite event archive.
type ArchiveConfig struct {
	Enabled  bool   `toml:"enabled"`
	Database string `toml:"database,omitempty"`
}

// Config is the top-level provider registry and runtime settings.
type Config struct {
	Providers []Provider    `toml:"providers"`
	Server    ServerConfig  `toml:"server"`
	Fetch     FetchConfig   `toml:"fetch"`
	Archive   ArchiveConfig `toml:"archive"`
}

// LoadConfig reads, defaults and validates the TOML registry at path.
// Validation errors here are fatal by design: a malformed provider entry
// must be caught before any poll loop is scheduled.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := Config{
		Archive: ArchiveConfig{Enabled: defaultArchiveEnabled},
	}
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	for i := range c.Providers {
		if c.Providers[i].PollInterval == 0 {
			c.Providers[i].PollInterval = defaultPollInterval
		}
		if c.Providers[i].Product == "" {
			c.Providers[i].Product = c.Providers[i].Name
		}
	}
	if c.Fetch.Timeout == 0 {
		c.Fetch.Timeout = defaultFetchTimeout
	}
	if c.Fetch.MaxConcurrent == 0 {
		c.Fetch.MaxConcurrent = defaultMaxConcurrent
	}
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	if c.Archive.Database == "" {
		c.Archive.Database = "vigil.db"
	}
}

// Validate checks every provider entry. The first problem found is
// returned; nothing is silently skipped.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("no providers configured")
	}

	for i, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("provider %d: missing name", i)
		}
		if p.FeedURL == "" {
			return fmt.Errorf("provider %q: missing feed_url", p.Name)
		}
		u, err := url.Parse(p.FeedURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("provider %q: invalid feed_url %q", p.Name, p.FeedURL)
		}
		if p.PollInterval < 0 {
			return fmt.Errorf("provider %q: negative poll_interval", p.Name)
		}
	}

	duplicates := lo.FindDuplicatesBy(c.Providers, func(p Provider) string {
		return p.Name
	})
	if len(duplicates) > 0 {
		return fmt.Errorf("duplicate provider name %q", duplicates[0].Name)
	}

	return nil
}
