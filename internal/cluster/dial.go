// Copyright (c) 2025 drowolath
// Licensed under the MIT License.
// See the LICENSE file in the repository root for details.

package cluster

import (
	"github.com/rs/zerolog"

	"github.com/drowolath/dvbboxes/internal/config"
	"github.com/drowolath/dvbboxes/internal/resilience"
	"github.com/drowolath/dvbboxes/internal/store"
)

// Namespace labels.
const (
	NamespacePrograms = "programs"
	NamespaceMedia    = "media"
)

// Dial builds the topology described by cfg. Connections are lazy; each
// replica endpoint is guarded by its own circuit breaker.
func Dial(cfg config.Config, logger zerolog.Logger) (*Topology, error) {
	open := func(addr, password string, db int, namespace string) store.Store {
		return store.NewRedis(store.RedisConfig{
			Addr:         addr,
			Password:     password,
			DB:           db,
			Namespace:    namespace,
			DialTimeout:  cfg.Timeouts.Dial,
			ReadTimeout:  cfg.Timeouts.Read,
			WriteTimeout: cfg.Timeouts.Write,
		}, logger)
	}
	breaker := func(component string) *resilience.CircuitBreaker {
		return resilience.NewCircuitBreaker(component, cfg.Breaker.Threshold, cfg.Breaker.Reset,
			resilience.WithFailureClassifier(store.IsUnavailable))
	}

	sites := make([]Site, 0, len(cfg.Sites))
	for _, sc := range cfg.Sites {
		site := Site{Name: sc.Name}
		for _, rc := range sc.Replicas {
			id := sc.Name + "/" + rc.Name
			// Both read namespaces live on the same endpoint and share a breaker.
			readCB, writeCB := breaker(id+"/read"), breaker(id+"/write")
			site.Replicas = append(site.Replicas, Replica{
				Name:      rc.Name,
				ReadAddr:  rc.ReadAddr,
				WriteAddr: rc.WriteAddr,
				Programs:  store.NewGuarded(open(rc.ReadAddr, rc.Password, cfg.Databases.Programs, NamespacePrograms), readCB),
				Media:     store.NewGuarded(open(rc.ReadAddr, rc.Password, cfg.Databases.Media, NamespaceMedia), readCB),
				Writer:    store.NewGuarded(open(rc.WriteAddr, rc.Password, cfg.Databases.Programs, NamespacePrograms), writeCB),
			})
		}
		sites = append(sites, site)
		logger.Debug().
			Str("event", "cluster.site_loaded").
			Str("site", sc.Name).
			Int("replicas", len(site.Replicas)).
			Msg("site loaded")
	}

	fallback := open(cfg.DefaultStore.Addr, cfg.DefaultStore.Password, cfg.DefaultStore.DB, NamespaceMedia)

	return New(sites, fallback)
}
