// Copyright (c) 2025 drowolath
// Licensed under the MIT License.
// See the LICENSE file in the repository root for details.

// Package program reconciles the schedule of one day and channel from
// replicas that may disagree.
//
// A query reads every targeted replica and keeps the most complete and most
// recent copy: a candidate replaces the current choice only when it has both
// more entries and a later last start. Candidates are visited in topology
// order, so among copies where neither dominates the first one wins. Once
// the day has started relative to the reference time, only the slot airing
// at that time and those after it are returned.
package program

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/drowolath/dvbboxes/internal/cluster"
	"github.com/drowolath/dvbboxes/internal/log"
	"github.com/drowolath/dvbboxes/internal/metrics"
	"github.com/drowolath/dvbboxes/internal/schedule"
	"github.com/drowolath/dvbboxes/internal/store"
)

// ErrNoSchedule means no targeted replica returned any entry for the day
// and channel. It is distinct from an empty, successful result.
var ErrNoSchedule = errors.New("no replica holds this schedule")

// Options configures a Reconciler.
type Options struct {
	Location *time.Location // defaults to time.Local
	Anchor   schedule.Clock // default reference time of day, zero means schedule.DefaultAnchor
	Suffix   string         // asset file suffix used to normalise lookups
	Logger   *zerolog.Logger
}

// ReplicaResult is what one replica returned during collection.
type ReplicaResult struct {
	Site    string  `json:"site"`
	Replica string  `json:"replica"`
	Entries int     `json:"entries"`
	Last    float64 `json:"last,omitempty"`
	Err     string  `json:"error,omitempty"`
}

// Schedule is a reconciled day.
type Schedule struct {
	Day         schedule.Day    `json:"day"`
	Channel     string          `json:"channel"`
	Source      string          `json:"source"`                 // site/replica the slots come from
	WindowStart float64         `json:"window_start,omitempty"` // set when the rolling window applied
	Slots       []schedule.Slot `json:"slots"`
	Replicas    []ReplicaResult `json:"replicas"`
}

// Reconciler is the schedule reader.
type Reconciler struct {
	topo   *cluster.Topology
	opts   Options
	logger zerolog.Logger
	tracer trace.Tracer
}

// New returns a Reconciler over topo.
func New(topo *cluster.Topology, opts Options) *Reconciler {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Anchor == (schedule.Clock{}) {
		opts.Anchor = schedule.DefaultAnchor
	}
	logger := log.WithComponent("program")
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Reconciler{
		topo:   topo,
		opts:   opts,
		logger: logger,
		tracer: otel.Tracer("dvbboxes/program"),
	}
}

type candidate struct {
	replica cluster.Replica
	entries []store.ScoredMember
	err     error
}

func (c candidate) last() float64 { return c.entries[len(c.entries)-1].Score }

// Query returns the reconciled schedule of channel on day. A zero at means
// the day's anchor time. Unreachable replicas are left out; ErrNoSchedule
// is returned when none of them has the key.
func (r *Reconciler) Query(ctx context.Context, day schedule.Day, channel string, at time.Time, sites ...string) (Schedule, error) {
	selected, err := r.topo.Select(sites...)
	if err != nil {
		return Schedule{}, err
	}
	key := day.Key(channel)
	ctx, span := r.tracer.Start(ctx, "program.query", trace.WithAttributes(attribute.String("key", key)))
	defer span.End()
	logger := log.WithContext(ctx, r.logger).With().Str(log.FieldKey, key).Logger()

	cands := r.collect(ctx, logger, cluster.Replicas(selected), key)
	out := Schedule{Day: day, Channel: channel, Slots: []schedule.Slot{}}
	for _, c := range cands {
		res := ReplicaResult{Site: c.replica.Site, Replica: c.replica.Name, Entries: len(c.entries)}
		if c.err != nil {
			res.Err = c.err.Error()
		} else if len(c.entries) > 0 {
			res.Last = c.last()
		}
		out.Replicas = append(out.Replicas, res)
	}

	best, ok := selectBest(cands)
	if !ok {
		metrics.RecordProgramQuery("empty")
		return out, fmt.Errorf("%s: %w", key, ErrNoSchedule)
	}
	out.Source = best.replica.ID()

	if at.IsZero() {
		at = day.At(r.opts.Anchor, r.opts.Location)
	}
	entries, windowStart, windowed := r.window(ctx, logger, best, key, schedule.Unix(at))
	if windowed {
		out.WindowStart = windowStart
		metrics.RecordProgramQuery("window")
	} else {
		metrics.RecordProgramQuery("full")
	}
	out.Slots = project(logger, entries)
	span.SetAttributes(attribute.String("source", out.Source), attribute.Int("slots", len(out.Slots)))
	return out, nil
}

func (r *Reconciler) collect(ctx context.Context, logger zerolog.Logger, replicas []cluster.Replica, key string) []candidate {
	cands := make([]candidate, len(replicas))
	var g errgroup.Group
	for i, rep := range replicas {
		g.Go(func() error {
			entries, err := rep.Programs.RangeByRank(ctx, key, 0, -1)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				metrics.RecordReplicaFailure(rep.Site, rep.Name, "schedule_read")
				logger.Warn().Err(err).
					Str(log.FieldReplica, rep.ID()).
					Str(log.FieldEvent, "program.replica_unavailable").
					Msg("replica excluded from reconciliation")
				cands[i] = candidate{replica: rep, err: err}
				return nil
			}
			cands[i] = candidate{replica: rep, entries: entries}
			return nil
		})
	}
	_ = g.Wait()
	return cands
}

// selectBest picks the authoritative candidate. The first non-empty
// candidate is taken, and a later one replaces it only with strictly more
// entries and a strictly later last start.
func selectBest(cands []candidate) (candidate, bool) {
	best := -1
	for i, c := range cands {
		if c.err != nil || len(c.entries) == 0 {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		b := cands[best]
		if len(c.entries) > len(b.entries) && c.last() > b.last() {
			best = i
		}
	}
	if best < 0 {
		return candidate{}, false
	}
	return cands[best], true
}

// window narrows best to the slot airing at ref and everything after it,
// up to one day past the first start. It reports whether narrowing applied.
func (r *Reconciler) window(ctx context.Context, logger zerolog.Logger, best candidate, key string, ref float64) ([]store.ScoredMember, float64, bool) {
	initial := best.entries[0].Score
	if ref < initial {
		return best.entries, 0, false
	}
	start := initial
	for _, e := range best.entries {
		if e.Score <= ref && e.Score > start {
			start = e.Score
		}
	}
	rng := store.ScoreRange{Min: start, Max: initial + schedule.WindowSeconds, MaxExclusive: true}

	entries, err := best.replica.Programs.RangeByScore(ctx, key, rng)
	if err == nil && len(entries) > 0 {
		return entries, start, true
	}
	if err != nil {
		metrics.RecordReplicaFailure(best.replica.Site, best.replica.Name, "schedule_refetch")
		logger.Warn().Err(err).
			Str(log.FieldReplica, best.replica.ID()).
			Str(log.FieldEvent, "program.refetch_failed").
			Msg("window refetch failed, using collected entries")
	}
	var kept []store.ScoredMember
	for _, e := range best.entries {
		if e.Score >= rng.Min && e.Score < rng.Max {
			kept = append(kept, e)
		}
	}
	return kept, start, true
}

// project orders entries by their index suffix and strips the path prefix.
func project(logger zerolog.Logger, entries []store.ScoredMember) []schedule.Slot {
	slots := make([]schedule.Slot, 0, len(entries))
	for _, e := range entries {
		name, idx, ok := schedule.ParseMember(e.Member)
		if !ok {
			logger.Debug().Str("member", e.Member).Msg("skipping member without index")
			continue
		}
		slots = append(slots, schedule.Slot{Name: name, Index: idx, Start: e.Score})
	}
	sort.SliceStable(slots, func(i, j int) bool { return slots[i].Index < slots[j].Index })
	return slots
}

// StartTimesOf returns, in ascending order, when asset airs in the
// reconciled schedule. An asset absent from an existing schedule yields an
// empty slice and a nil error.
func (r *Reconciler) StartTimesOf(ctx context.Context, asset string, day schedule.Day, channel string, at time.Time, sites ...string) ([]float64, error) {
	sched, err := r.Query(ctx, day, channel, at, sites...)
	if err != nil {
		return nil, err
	}
	name := schedule.NormalizeAsset(asset, r.opts.Suffix)
	starts := []float64{}
	for _, s := range sched.Slots {
		if s.Name == name {
			starts = append(starts, s.Start)
		}
	}
	sort.Float64s(starts)
	return starts, nil
}
