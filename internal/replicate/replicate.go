// Copyright (c) 2025 drowolath
// Licensed under the MIT License.
// See the LICENSE file in the repository root for details.

// Package replicate writes compiled day documents to every replica of the
// targeted sites.
//
// Writes are best effort: each replica is rewritten independently with a
// pipelined delete and insert, and a failing replica never stops the
// others. Readers compensate for partial writes when reconciling.
package replicate

import (
	"context"
	"errors"
	"sync"
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

var ErrNoChannel = errors.New("replicate: channel is required")

// Notifier asks a controller to reload one day of one channel.
type Notifier interface {
	Notify(ctx context.Context, r cluster.Replica, day schedule.Day, channel string) error
}

// Options configures a Replicator.
type Options struct {
	Prefix        string        // member path prefix, e.g. /opt/tsfiles/
	Suffix        string        // asset file suffix, e.g. .ts
	NotifyTimeout time.Duration // bound on one notification, default 30s
	Concurrency   int           // parallel replica writes, default 8
	Logger        *zerolog.Logger
}

// Replicator is the schedule writer.
type Replicator struct {
	topo     *cluster.Topology
	notifier Notifier
	opts     Options
	logger   zerolog.Logger
	tracer   trace.Tracer

	pending sync.WaitGroup
}

// New returns a Replicator. A nil notifier disables notifications.
func New(topo *cluster.Topology, notifier Notifier, opts Options) *Replicator {
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = 30 * time.Second
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 8
	}
	logger := log.WithComponent("replicate")
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Replicator{
		topo:     topo,
		notifier: notifier,
		opts:     opts,
		logger:   logger,
		tracer:   otel.Tracer("dvbboxes/replicate"),
	}
}

type job struct {
	replica cluster.Replica
	doc     schedule.Document
}

// Apply rewrites {day}:{channel} for every document on every replica of
// sites (all sites when none is given). The error is non-nil only when the
// request itself is invalid; replica failures are recorded in the Report.
//
// Every successful write schedules a notification for that replica. It runs
// detached from ctx; use Wait to drain them.
func (r *Replicator) Apply(ctx context.Context, docs []schedule.Document, channel string, sites ...string) (Report, error) {
	if channel == "" {
		return nil, ErrNoChannel
	}
	selected, err := r.topo.Select(sites...)
	if err != nil {
		return nil, err
	}

	ctx, span := r.tracer.Start(ctx, "replicate.apply", trace.WithAttributes(
		attribute.String("channel", channel),
		attribute.Int("days", len(docs)),
	))
	defer span.End()

	docs = lastPerDay(docs)
	var jobs []job
	for _, doc := range docs {
		for _, rep := range cluster.Replicas(selected) {
			jobs = append(jobs, job{replica: rep, doc: doc})
		}
	}

	outcomes := make([]Outcome, len(jobs))
	var g errgroup.Group
	g.SetLimit(r.opts.Concurrency)
	for i, j := range jobs {
		g.Go(func() error {
			outcomes[i] = r.write(ctx, j.replica, j.doc, channel)
			return nil
		})
	}
	_ = g.Wait()

	report := make(Report)
	for i, j := range jobs {
		report.set(j.replica.Site, j.doc.Day.String(), j.replica.Name, outcomes[i])
	}
	failures := report.Failures()
	span.SetAttributes(attribute.Int("failures", len(failures)))
	logger := log.WithContext(ctx, r.logger)
	logger.Info().
		Str(log.FieldEvent, "replicate.applied").
		Str(log.FieldChannel, channel).
		Int("days", len(docs)).
		Int("writes", len(jobs)).
		Int("failures", len(failures)).
		Msg("schedule replicated")
	return report, nil
}

// lastPerDay keeps the last document of each day, in first-seen day order.
// A day repeated in one batch would otherwise race with itself on a replica.
func lastPerDay(docs []schedule.Document) []schedule.Document {
	pos := make(map[schedule.Day]int, len(docs))
	out := make([]schedule.Document, 0, len(docs))
	for _, doc := range docs {
		if i, dup := pos[doc.Day]; dup {
			out[i] = doc
			continue
		}
		pos[doc.Day] = len(out)
		out = append(out, doc)
	}
	return out
}

func (r *Replicator) write(ctx context.Context, rep cluster.Replica, doc schedule.Document, channel string) Outcome {
	key := doc.Day.Key(channel)
	logger := log.WithContext(ctx, r.logger).With().
		Str(log.FieldReplica, rep.ID()).
		Str(log.FieldKey, key).
		Logger()

	members := make([]store.ScoredMember, 0, len(doc.Items))
	for _, it := range doc.Items {
		asset := schedule.NormalizeAsset(it.Name, r.opts.Suffix)
		members = append(members, store.ScoredMember{
			Member: schedule.Member(r.opts.Prefix, asset, it.Index),
			Score:  it.Start,
		})
	}

	res, err := rep.Writer.Replace(ctx, key, members)
	out := Outcome{
		Deleted:  res.Deleted,
		Inserted: err == nil && res.Failed == 0,
		Removed:  res.Removed,
		Items:    len(members),
	}
	if err != nil {
		out.Err = err.Error()
		result := "failed"
		if out.Deleted {
			result = "partial"
		}
		metrics.RecordReplication(rep.Site, result)
		metrics.RecordReplicaFailure(rep.Site, rep.Name, "replace")
		logger.Warn().Err(err).
			Str(log.FieldEvent, "replicate.write_failed").
			Bool("deleted", out.Deleted).
			Msg("replica write failed")
		return out
	}

	metrics.RecordReplication(rep.Site, "ok")
	logger.Debug().
		Str(log.FieldEvent, "replicate.written").
		Int(log.FieldItems, len(members)).
		Msg("replica rewritten")
	r.notify(ctx, rep, doc.Day, channel)
	return out
}

func (r *Replicator) notify(ctx context.Context, rep cluster.Replica, day schedule.Day, channel string) {
	if r.notifier == nil {
		return
	}
	r.pending.Add(1)
	go func() {
		defer r.pending.Done()
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.NotifyTimeout)
		defer cancel()
		if err := r.notifier.Notify(nctx, rep, day, channel); err != nil {
			metrics.RecordNotification("error")
			r.logger.Warn().Err(err).
				Str(log.FieldEvent, "replicate.notify_failed").
				Str(log.FieldReplica, rep.ID()).
				Str(log.FieldDay, day.String()).
				Msg("device refresh failed")
			return
		}
		metrics.RecordNotification("ok")
	}()
}

// Wait blocks until every scheduled notification has returned.
func (r *Replicator) Wait() {
	r.pending.Wait()
}
