// Copyright (c) 2025 drowolath
// Licensed under the MIT License.
// See the LICENSE file in the repository root for details.

// Package media resolves playout durations of media assets across every
// replica and keeps the default media store converged on the result.
package media

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/drowolath/dvbboxes/internal/cluster"
	"github.com/drowolath/dvbboxes/internal/log"
	"github.com/drowolath/dvbboxes/internal/metrics"
	"github.com/drowolath/dvbboxes/internal/schedule"
	"github.com/drowolath/dvbboxes/internal/store"
)

var (
	// ErrAssetNotFound means no replica holds a usable duration for the asset.
	ErrAssetNotFound = errors.New("asset not found on any replica")
	// ErrUnavailable means no replica answered, so absence is not known.
	ErrUnavailable = errors.New("no replica answered the duration lookup")
	ErrEmptyName   = errors.New("empty asset name")
)

// DefaultTimeout bounds one shared resolution.
const DefaultTimeout = 30 * time.Second

// AssetError names the asset a resolution failed for.
type AssetError struct {
	Name string
	Err  error
}

func (e *AssetError) Error() string { return fmt.Sprintf("media %q: %v", e.Name, e.Err) }
func (e *AssetError) Unwrap() error { return e.Err }

// Asset is the resolved view of a media file.
type Asset struct {
	Name     string   `json:"name"`
	Duration float64  `json:"duration"`
	Sites    []string `json:"sites"` // sites holding any usable duration, in topology order
}

// Options configures a Resolver.
type Options struct {
	Suffix  string        // appended to names lacking it, e.g. ".ts"
	Timeout time.Duration // per resolution, DefaultTimeout when zero
	Logger  *zerolog.Logger
}

// Resolver is the media duration cache.
type Resolver struct {
	topo    *cluster.Topology
	suffix  string
	timeout time.Duration
	logger zerolog.Logger
	tracer trace.Tracer
	group  singleflight.Group
}

// NewResolver returns a Resolver over topo.
func NewResolver(topo *cluster.Topology, opts Options) *Resolver {
	logger := log.WithComponent("media")
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Resolver{
		topo:    topo,
		suffix:  opts.Suffix,
		timeout: opts.Timeout,
		logger: logger,
		tracer: otel.Tracer("dvbboxes/media"),
	}
}

// Normalize returns the canonical asset name.
func (r *Resolver) Normalize(name string) string {
	return schedule.NormalizeAsset(strings.TrimSpace(name), r.suffix)
}

// Resolve queries the media namespace of every replica and returns the
// largest duration any of them reports.
//
// Resolve always writes: the maximum is stored in the default media store,
// or, when no replica knows the asset, the default entry is deleted and an
// *AssetError wrapping ErrAssetNotFound is returned. When no replica
// answers at all the default store is left untouched and the error wraps
// ErrUnavailable. Concurrent calls for the same asset share one resolution,
// which is detached from the cancellation of whichever caller started it.
func (r *Resolver) Resolve(ctx context.Context, name string) (Asset, error) {
	name = r.Normalize(name)
	if name == "" || name == r.suffix {
		return Asset{}, &AssetError{Name: name, Err: ErrEmptyName}
	}
	v, err, _ := r.group.Do(name, func() (any, error) {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()
		return r.resolve(sctx, name)
	})
	asset, _ := v.(Asset)
	return asset, err
}

type reading struct {
	duration float64
	ok       bool
	answered bool
}

func (r *Resolver) resolve(ctx context.Context, name string) (Asset, error) {
	ctx, span := r.tracer.Start(ctx, "media.resolve", trace.WithAttributes(attribute.String("asset", name)))
	defer span.End()
	logger := log.WithContext(ctx, r.logger).With().Str(log.FieldAsset, name).Logger()

	replicas := cluster.Replicas(r.topo.Sites())
	readings := make([]reading, len(replicas))

	var g errgroup.Group
	for i, rep := range replicas {
		g.Go(func() error {
			raw, err := rep.Media.Get(ctx, name)
			switch {
			case errors.Is(err, store.ErrNotFound):
				readings[i].answered = true
				return nil
			case err != nil:
				metrics.RecordReplicaFailure(rep.Site, rep.Name, "media_get")
				logger.Warn().Err(err).
					Str(log.FieldReplica, rep.ID()).
					Str(log.FieldEvent, "media.replica_unavailable").
					Msg("replica skipped during duration lookup")
				return nil
			}
			d, ok := ParseDuration(raw)
			if !ok {
				logger.Debug().
					Str(log.FieldReplica, rep.ID()).
					Str("raw", raw).
					Msg("ignoring unusable duration value")
			}
			readings[i] = reading{duration: d, ok: ok, answered: true}
			return nil
		})
	}
	_ = g.Wait()

	asset := Asset{Name: name, Sites: []string{}}
	seen := make(map[string]struct{})
	answered := 0
	for i, rd := range readings {
		if rd.answered {
			answered++
		}
		if !rd.ok {
			continue
		}
		if rd.duration > asset.Duration {
			asset.Duration = rd.duration
		}
		site := replicas[i].Site
		if _, dup := seen[site]; !dup {
			seen[site] = struct{}{}
			asset.Sites = append(asset.Sites, site)
		}
	}

	if answered == 0 {
		metrics.RecordMediaResolution("unavailable", 0)
		logger.Warn().
			Int("replicas", len(replicas)).
			Str(log.FieldEvent, "media.unavailable").
			Msg("no replica answered, default store left as is")
		return asset, &AssetError{Name: name, Err: ErrUnavailable}
	}

	r.repair(ctx, logger, asset)

	if len(asset.Sites) == 0 {
		metrics.RecordMediaResolution("unknown", 0)
		return asset, &AssetError{Name: name, Err: ErrAssetNotFound}
	}
	metrics.RecordMediaResolution("resolved", asset.Duration)
	logger.Debug().
		Float64("duration", asset.Duration).
		Strs("sites", asset.Sites).
		Str(log.FieldEvent, "media.resolved").
		Msg("duration resolved")
	return asset, nil
}

// repair converges the default store on the resolved value.
func (r *Resolver) repair(ctx context.Context, logger zerolog.Logger, asset Asset) {
	def := r.topo.Default()
	if def == nil {
		return
	}
	var err error
	if len(asset.Sites) == 0 {
		_, err = def.Delete(ctx, asset.Name)
	} else {
		err = def.Set(ctx, asset.Name, FormatDuration(asset.Duration))
	}
	if err != nil {
		metrics.RecordMediaResolution("repair_failed", 0)
		logger.Warn().Err(err).
			Str(log.FieldEvent, "media.repair_failed").
			Msg("failed to update default media store")
	}
}

// ParseDuration parses a stored duration. Anything that is not a finite,
// strictly positive number is unusable.
func ParseDuration(raw string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, false
	}
	return v, true
}

// FormatDuration renders a duration the way it is stored.
func FormatDuration(d float64) string {
	return strconv.FormatFloat(d, 'f', -1, 64)
}

// Search returns the sorted, deduplicated media keys containing expr across
// the selected sites. expr is a glob fragment. Unreachable replicas are
// skipped.
func (r *Resolver) Search(ctx context.Context, expr string, sites ...string) ([]string, error) {
	selected, err := r.topo.Select(sites...)
	if err != nil {
		return nil, err
	}
	pattern := "*" + expr + "*"

	var (
		mu    sync.Mutex
		found = make(map[string]struct{})
		g     errgroup.Group
	)
	for _, rep := range cluster.Replicas(selected) {
		g.Go(func() error {
			keys, err := rep.Media.Keys(ctx, pattern)
			if err != nil {
				metrics.RecordReplicaFailure(rep.Site, rep.Name, "media_search")
				r.logger.Warn().Err(err).Str(log.FieldReplica, rep.ID()).Msg("replica skipped during search")
				return nil
			}
			mu.Lock()
			for _, k := range keys {
				found[k] = struct{}{}
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	out := make([]string, 0, len(found))
	for k := range found {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

// Schedule builds the reverse index channel -> start times for asset by
// scanning the schedule namespace of every replica of the sites that know
// the asset. Start times are ascending and unique.
func (r *Resolver) Schedule(ctx context.Context, asset Asset) (map[string][]float64, error) {
	result := make(map[string][]float64)
	if len(asset.Sites) == 0 {
		return result, nil
	}
	selected, err := r.topo.Select(asset.Sites...)
	if err != nil {
		return nil, err
	}

	var (
		mu    sync.Mutex
		found = make(map[string]map[float64]struct{})
		g     errgroup.Group
	)
	for _, rep := range cluster.Replicas(selected) {
		g.Go(func() error {
			hits, err := scanReplica(ctx, rep.Programs, asset.Name)
			if err != nil {
				metrics.RecordReplicaFailure(rep.Site, rep.Name, "media_schedule")
				r.logger.Warn().Err(err).Str(log.FieldReplica, rep.ID()).Msg("replica skipped during schedule scan")
				return nil
			}
			mu.Lock()
			for channel, starts := range hits {
				if found[channel] == nil {
					found[channel] = make(map[float64]struct{})
				}
				for _, s := range starts {
					found[channel][s] = struct{}{}
				}
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for channel, set := range found {
		starts := make([]float64, 0, len(set))
		for s := range set {
			starts = append(starts, s)
		}
		sort.Float64s(starts)
		result[channel] = starts
	}
	return result, nil
}

func scanReplica(ctx context.Context, programs store.Store, asset string) (map[string][]float64, error) {
	keys, err := programs.Keys(ctx, "*:*")
	if err != nil {
		return nil, err
	}
	hits := make(map[string][]float64)
	for _, key := range keys {
		_, channel, ok := schedule.ParseKey(key)
		if !ok {
			continue
		}
		members, err := programs.RangeByRank(ctx, key, 0, -1)
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			if name, _, ok := schedule.ParseMember(m.Member); ok && name == asset {
				hits[channel] = append(hits[channel], m.Score)
			}
		}
	}
	return hits, nil
}
