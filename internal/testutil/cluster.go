// Copyright (c) 2025 drowolath
// Licensed under the MIT License.
// See the LICENSE file in the repository root for details.

// Package testutil builds in-process replica clusters on top of miniredis.
package testutil

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/drowolath/dvbboxes/internal/cluster"
	"github.com/drowolath/dvbboxes/internal/store"
)

// Database numbers used by every fake replica.
const (
	ProgramsDB = 0
	MediaDB    = 1
)

// SiteLayout names a site and its replicas.
type SiteLayout struct {
	Name     string
	Replicas []string
}

// Cluster is a topology whose every replica is a miniredis server. Reads
// and writes of one replica hit the same server.
type Cluster struct {
	Topology *cluster.Topology
	Default  *miniredis.Miniredis

	servers map[string]*miniredis.Miniredis
}

// NewCluster starts one miniredis per replica plus one for the default
// store. Everything is torn down with t.
func NewCluster(t testing.TB, layout ...SiteLayout) *Cluster {
	t.Helper()

	c := &Cluster{servers: make(map[string]*miniredis.Miniredis)}
	c.Default = miniredis.RunT(t)

	sites := make([]cluster.Site, 0, len(layout))
	for _, sl := range layout {
		site := cluster.Site{Name: sl.Name}
		for _, name := range sl.Replicas {
			mr := miniredis.RunT(t)
			c.servers[sl.Name+"/"+name] = mr
			site.Replicas = append(site.Replicas, cluster.Replica{
				Name:      name,
				ReadAddr:  mr.Addr(),
				WriteAddr: mr.Addr(),
				Programs:  newStore(mr.Addr(), ProgramsDB, cluster.NamespacePrograms),
				Media:     newStore(mr.Addr(), MediaDB, cluster.NamespaceMedia),
				Writer:    newStore(mr.Addr(), ProgramsDB, cluster.NamespacePrograms),
			})
		}
		sites = append(sites, site)
	}

	topo, err := cluster.New(sites, newStore(c.Default.Addr(), MediaDB, cluster.NamespaceMedia))
	if err != nil {
		t.Fatalf("build topology: %v", err)
	}
	t.Cleanup(func() { _ = topo.Close() })
	c.Topology = topo
	return c
}

func newStore(addr string, db int, namespace string) store.Store {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		DB:          db,
		DialTimeout: 500 * time.Millisecond,
		MaxRetries:  -1,
	})
	return store.NewRedisFromClient(client, namespace, 2*time.Second, zerolog.Nop())
}

// Server returns the miniredis behind replica "site/name".
func (c *Cluster) Server(id string) *miniredis.Miniredis {
	return c.servers[id]
}

// SetDuration stores a raw duration value in a replica's media namespace.
func (c *Cluster) SetDuration(t testing.TB, id, asset, value string) {
	t.Helper()
	if err := c.servers[id].DB(MediaDB).Set(asset, value); err != nil {
		t.Fatalf("set duration on %s: %v", id, err)
	}
}

// AddScheduled adds a member to a replica's schedule namespace.
func (c *Cluster) AddScheduled(t testing.TB, id, key, member string, score float64) {
	t.Helper()
	if _, err := c.servers[id].DB(ProgramsDB).ZAdd(key, score, member); err != nil {
		t.Fatalf("zadd on %s: %v", id, err)
	}
}

// Disconnect stops a replica's server so every call to it fails.
func (c *Cluster) Disconnect(id string) {
	c.servers[id].Close()
}
