// Copyright (c) 2025 drowolath
// Licensed under the MIT License.
// See the LICENSE file in the repository root for details.

package main

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/drowolath/dvbboxes/internal/cluster"
	"github.com/drowolath/dvbboxes/internal/config"
	"github.com/drowolath/dvbboxes/internal/listing"
	xglog "github.com/drowolath/dvbboxes/internal/log"
	"github.com/drowolath/dvbboxes/internal/media"
	"github.com/drowolath/dvbboxes/internal/notify"
	"github.com/drowolath/dvbboxes/internal/program"
	"github.com/drowolath/dvbboxes/internal/replicate"
	"github.com/drowolath/dvbboxes/internal/schedule"
)

// app wires every component from one configuration.
type app struct {
	cfg    config.Config
	loc    *time.Location
	anchor schedule.Clock
	logger zerolog.Logger

	topo       *cluster.Topology
	media      *media.Resolver
	programs   *program.Reconciler
	replicator *replicate.Replicator
}

func newApp(cfg config.Config) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	anchor, err := cfg.AnchorClock()
	if err != nil {
		return nil, err
	}
	logger := xglog.WithComponent("cli")

	topo, err := cluster.Dial(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("build topology: %w", err)
	}

	var notifier replicate.Notifier = notify.Nop{}
	if cfg.Notify.Enabled {
		cmd, err := notify.NewCommand(cfg.Notify.Command, cfg.Notify.Timeout, xglog.Base())
		if err != nil {
			_ = topo.Close()
			return nil, err
		}
		notifier = cmd
	}

	mediaLogger := xglog.WithComponent("media")
	programLogger := xglog.WithComponent("program")
	replicateLogger := xglog.WithComponent("replicate")
	return &app{
		cfg:    cfg,
		loc:    loc,
		anchor: anchor,
		logger: logger,
		topo:   topo,
		media:  media.NewResolver(topo, media.Options{Suffix: cfg.Media.Suffix, Logger: &mediaLogger}),
		programs: program.New(topo, program.Options{
			Location: loc,
			Anchor:   anchor,
			Suffix:   cfg.Media.Suffix,
			Logger:   &programLogger,
		}),
		replicator: replicate.New(topo, notifier, replicate.Options{
			Prefix:        cfg.Media.Prefix,
			Suffix:        cfg.Media.Suffix,
			NotifyTimeout: cfg.Notify.Timeout,
			Concurrency:   cfg.Concurrency,
			Logger:        &replicateLogger,
		}),
	}, nil
}

func (a *app) listingOptions() listing.Options {
	return listing.Options{
		Location:    a.loc,
		Anchor:      a.anchor,
		Concurrency: a.cfg.Concurrency,
	}
}

// Close drains pending notifications and closes every store.
func (a *app) Close() error {
	a.replicator.Wait()
	return a.topo.Close()
}
