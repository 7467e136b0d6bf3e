// Copyright (c) 2025 drowolath
// Licensed under the MIT License.
// See the LICENSE file in the repository root for details.

package config

import (
	"fmt"
	"time"

	"github.com/drowolath/dvbboxes/internal/schedule"
)

// Config is the fully resolved configuration.
type Config struct {
	Log          LogConfig         `yaml:"log"`
	Timezone     string            `yaml:"timezone"`
	Anchor       string            `yaml:"anchor"`
	Media        MediaConfig       `yaml:"media"`
	DefaultStore StoreConfig       `yaml:"default_store"`
	Databases    DatabasesConfig   `yaml:"databases"`
	Timeouts     TimeoutsConfig    `yaml:"timeouts"`
	Concurrency  int               `yaml:"concurrency"`
	Breaker      BreakerConfig     `yaml:"breaker"`
	Channels     map[string]string `yaml:"channels"`
	Sites        []SiteConfig      `yaml:"sites"`
	Notify       NotifyConfig      `yaml:"notify"`
	API          APIConfig         `yaml:"api"`

	// Version is injected from the binary, never read from file.
	Version string `yaml:"-"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
}

// MediaConfig describes how asset names map to files on the controllers.
type MediaConfig struct {
	Prefix string `yaml:"prefix"` // directory prepended to schedule members
	Suffix string `yaml:"suffix"` // extension every playable asset carries
}

// StoreConfig addresses one Redis database.
type StoreConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// DatabasesConfig maps the two replica namespaces to Redis databases.
type DatabasesConfig struct {
	Programs int `yaml:"programs"`
	Media    int `yaml:"media"`
}

type TimeoutsConfig struct {
	Dial  time.Duration `yaml:"dial"`
	Read  time.Duration `yaml:"read"`
	Write time.Duration `yaml:"write"`
}

type BreakerConfig struct {
	Threshold int           `yaml:"threshold"`
	Reset     time.Duration `yaml:"reset"`
}

// SiteConfig is one geographic cluster.
type SiteConfig struct {
	Name     string          `yaml:"name"`
	Replicas []ReplicaConfig `yaml:"replicas"`
}

// ReplicaConfig is one playout controller. Reads go through ReadAddr
// (usually a local tunnel), writes go directly to WriteAddr.
type ReplicaConfig struct {
	Name      string `yaml:"name"`
	ReadAddr  string `yaml:"read_addr"`
	WriteAddr string `yaml:"write_addr"`
	Password  string `yaml:"password"`
}

// NotifyConfig drives the device refresh command run after each write.
type NotifyConfig struct {
	Enabled bool          `yaml:"enabled"`
	Command []string      `yaml:"command"`
	Timeout time.Duration `yaml:"timeout"`
}

type APIConfig struct {
	Listen     string        `yaml:"listen"`
	RateLimit  int           `yaml:"rate_limit"`
	RateWindow time.Duration `yaml:"rate_window"`
}

// Location returns the time zone broadcast days are anchored in.
func (c Config) Location() (*time.Location, error) {
	switch c.Timezone {
	case "", "Local", "local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// AnchorClock returns the daily anchor time.
func (c Config) AnchorClock() (schedule.Clock, error) {
	if c.Anchor == "" {
		return schedule.DefaultAnchor, nil
	}
	return schedule.ParseClock(c.Anchor)
}

// SiteNames returns site names in configured order.
func (c Config) SiteNames() []string {
	names := make([]string, 0, len(c.Sites))
	for _, s := range c.Sites {
		names = append(names, s.Name)
	}
	return names
}
