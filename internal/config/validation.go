// Copyright (c) 2025 drowolath
// Licensed under the MIT License.
// See the LICENSE file in the repository root for details.

package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks cfg and returns every problem found, joined.
func Validate(cfg Config) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if _, err := cfg.Location(); err != nil {
		add("%v", err)
	}
	if _, err := cfg.AnchorClock(); err != nil {
		add("anchor: %v", err)
	}
	if strings.TrimSpace(cfg.DefaultStore.Addr) == "" {
		add("default_store.addr must be set")
	}
	if cfg.Timeouts.Dial <= 0 || cfg.Timeouts.Read <= 0 || cfg.Timeouts.Write <= 0 {
		add("timeouts must be positive")
	}
	if cfg.Concurrency < 1 {
		add("concurrency must be at least 1, got %d", cfg.Concurrency)
	}
	if cfg.Notify.Enabled && len(cfg.Notify.Command) == 0 {
		add("notify.command must be set when notify is enabled")
	}

	if len(cfg.Sites) == 0 {
		add("at least one site must be configured")
	}
	sites := make(map[string]struct{}, len(cfg.Sites))
	for i, site := range cfg.Sites {
		if site.Name == "" {
			add("sites[%d].name must be set", i)
			continue
		}
		if _, dup := sites[site.Name]; dup {
			add("duplicate site %q", site.Name)
		}
		sites[site.Name] = struct{}{}
		if len(site.Replicas) == 0 {
			add("site %q has no replicas", site.Name)
		}
		replicas := make(map[string]struct{}, len(site.Replicas))
		for j, r := range site.Replicas {
			if r.Name == "" {
				add("site %q replicas[%d].name must be set", site.Name, j)
				continue
			}
			if _, dup := replicas[r.Name]; dup {
				add("site %q: duplicate replica %q", site.Name, r.Name)
			}
			replicas[r.Name] = struct{}{}
			if r.ReadAddr == "" || r.WriteAddr == "" {
				add("replica %s/%s needs read_addr and write_addr", site.Name, r.Name)
			}
		}
	}

	for name, id := range cfg.Channels {
		if !isServiceID(id) {
			add("channel %q: service id %q is not numeric", name, id)
		}
	}

	return errors.Join(errs...)
}
