// Copyright (c) 2025 drowolath
// Licensed under the MIT License.
// See the LICENSE file in the repository root for details.

// Package cluster is the immutable site/replica topology every component is
// constructed with.
package cluster

import (
	"errors"
	"fmt"
	"net"

	"github.com/drowolath/dvbboxes/internal/store"
)

var (
	ErrUnknownSite = errors.New("unknown site")
	ErrNoSites     = errors.New("topology has no sites")
)

// Replica is one playout controller and its store handles.
type Replica struct {
	Site      string
	Name      string
	ReadAddr  string
	WriteAddr string

	Programs store.Store // schedule namespace, read endpoint
	Media    store.Store // media namespace, read endpoint
	Writer   store.Store // schedule namespace, write endpoint
}

// ID returns "site/name".
func (r Replica) ID() string { return r.Site + "/" + r.Name }

// Host returns the host the controller itself is reachable at.
func (r Replica) Host() string {
	if host, _, err := net.SplitHostPort(r.WriteAddr); err == nil && host != "" {
		return host
	}
	return r.Name
}

// Site is a named group of replicas meant to hold the same data.
type Site struct {
	Name     string
	Replicas []Replica
}

// Topology is built once at startup and never mutated.
type Topology struct {
	sites    []Site
	index    map[string]int
	fallback store.Store
}

// New builds a topology from sites in the given order. fallback is the
// default media store that resolved durations are written back to; it may
// be nil.
func New(sites []Site, fallback store.Store) (*Topology, error) {
	if len(sites) == 0 {
		return nil, ErrNoSites
	}
	t := &Topology{
		sites:    make([]Site, len(sites)),
		index:    make(map[string]int, len(sites)),
		fallback: fallback,
	}
	for i, s := range sites {
		if _, dup := t.index[s.Name]; dup {
			return nil, fmt.Errorf("duplicate site %q", s.Name)
		}
		replicas := make([]Replica, len(s.Replicas))
		for j, r := range s.Replicas {
			r.Site = s.Name
			replicas[j] = r
		}
		t.sites[i] = Site{Name: s.Name, Replicas: replicas}
		t.index[s.Name] = i
	}
	return t, nil
}

// Sites returns every site in configured order.
func (t *Topology) Sites() []Site {
	out := make([]Site, len(t.sites))
	copy(out, t.sites)
	return out
}

// Site looks a site up by name.
func (t *Topology) Site(name string) (Site, error) {
	i, ok := t.index[name]
	if !ok {
		return Site{}, fmt.Errorf("%w: %q", ErrUnknownSite, name)
	}
	return t.sites[i], nil
}

// Select returns the named sites in the order given, deduplicated. No names
// selects every site.
func (t *Topology) Select(names ...string) ([]Site, error) {
	if len(names) == 0 {
		return t.Sites(), nil
	}
	seen := make(map[string]struct{}, len(names))
	out := make([]Site, 0, len(names))
	for _, name := range names {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		s, err := t.Site(name)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Replicas flattens sites into their replicas, preserving order.
func Replicas(sites []Site) []Replica {
	var out []Replica
	for _, s := range sites {
		out = append(out, s.Replicas...)
	}
	return out
}

// Default returns the default media store, or nil when none is configured.
func (t *Topology) Default() store.Store { return t.fallback }

// Close releases every store handle.
func (t *Topology) Close() error {
	var errs []error
	closeOnce := func(s store.Store) {
		if s != nil {
			errs = append(errs, s.Close())
		}
	}
	for _, site := range t.sites {
		for _, r := range site.Replicas {
			closeOnce(r.Programs)
			closeOnce(r.Media)
			closeOnce(r.Writer)
		}
	}
	closeOnce(t.fallback)
	return errors.Join(errs...)
}
