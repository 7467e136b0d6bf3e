// Copyright (c) 2025 drowolath
// Licensed under the MIT License.
// See the LICENSE file in the repository root for details.

// Package listing compiles a textual running order into one timestamped
// schedule document per broadcast day.
//
// A listing looks like:
//
//	[25/12]
//	morning_news
//	cartoon_01
//
//	[26/12]
//	movie_night
//
// Each item starts when the previous one ends, chained from the daily
// anchor time.
package listing

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/drowolath/dvbboxes/internal/log"
	"github.com/drowolath/dvbboxes/internal/media"
	"github.com/drowolath/dvbboxes/internal/metrics"
	"github.com/drowolath/dvbboxes/internal/schedule"
)

var validName = regexp.MustCompile(`^[0-9a-z_]+$`)

// Resolver looks up asset durations.
type Resolver interface {
	Resolve(ctx context.Context, name string) (media.Asset, error)
}

// Options configures compilation.
type Options struct {
	Now         func() time.Time // clock used for year resolution, defaults to time.Now
	Location    *time.Location   // defaults to time.Local
	Anchor      schedule.Clock   // zero value means schedule.DefaultAnchor
	Concurrency int              // parallel resolutions, defaults to 8
	Logger      *zerolog.Logger
}

// Listing is a compiled listing source.
type Listing struct {
	lines     []string
	days      []schedule.Day
	durations map[string]float64
	loc       *time.Location
	anchor    schedule.Clock
}

// Compile reads the whole source, resolves its day labels and looks every
// distinct asset up once through resolver. One unusable asset name rejects
// the whole listing with a *ListingError.
func Compile(ctx context.Context, r io.Reader, resolver Resolver, opts Options) (*Listing, error) {
	opts = withDefaults(opts)
	logger := log.WithContext(ctx, *opts.Logger)

	lines, err := readLines(r)
	if err != nil {
		return nil, fmt.Errorf("read listing: %w", err)
	}

	l := &Listing{
		lines:     lines,
		durations: make(map[string]float64),
		loc:       opts.Location,
		anchor:    opts.Anchor,
	}

	var (
		labels  []string
		names   []string
		invalid []string
		seen    = make(map[string]struct{})
		inDay   bool
	)
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		switch {
		case skip(line):
		case isMarker(line):
			inDay = true
			if label := stripMarker(line); !contains(labels, label) {
				labels = append(labels, label)
			}
		default:
			if !inDay {
				return nil, fmt.Errorf("line %d: %w", i+1, ErrOrphanItem)
			}
			name := normalize(line)
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			if !validName.MatchString(name) {
				invalid = append(invalid, name)
				continue
			}
			names = append(names, name)
		}
	}
	if len(labels) == 0 {
		metrics.RecordListingCompiled("rejected")
		return nil, ErrNoDays
	}

	now := opts.Now().In(opts.Location)
	for _, label := range labels {
		day, err := ResolveDay(label, now)
		if err != nil {
			metrics.RecordListingCompiled("rejected")
			return nil, err
		}
		l.days = append(l.days, day)
	}

	unresolved, errs := l.resolveAll(ctx, resolver, names, opts.Concurrency)
	if len(invalid) > 0 || len(unresolved) > 0 {
		sort.Strings(invalid)
		sort.Strings(unresolved)
		metrics.RecordListingCompiled("rejected")
		lerr := &ListingError{Invalid: invalid, Unresolved: unresolved, Errs: errs}
		logger.Warn().Err(lerr).Str(log.FieldEvent, "listing.rejected").Msg("listing rejected")
		return nil, lerr
	}

	metrics.RecordListingCompiled("ok")
	logger.Info().
		Str(log.FieldEvent, "listing.compiled").
		Int("days", len(l.days)).
		Int("assets", len(l.durations)).
		Msg("listing compiled")
	return l, nil
}

func withDefaults(opts Options) Options {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Anchor == (schedule.Clock{}) {
		opts.Anchor = schedule.DefaultAnchor
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 8
	}
	if opts.Logger == nil {
		l := log.WithComponent("listing")
		opts.Logger = &l
	}
	return opts
}

func (l *Listing) resolveAll(ctx context.Context, resolver Resolver, names []string, limit int) ([]string, []error) {
	var (
		mu         sync.Mutex
		unresolved []string
		errs       []error
		g          errgroup.Group
	)
	g.SetLimit(limit)
	for _, name := range names {
		g.Go(func() error {
			asset, err := resolver.Resolve(ctx, name)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				unresolved = append(unresolved, name)
				errs = append(errs, err)
				return nil
			}
			l.durations[name] = asset.Duration
			return nil
		})
	}
	_ = g.Wait()
	return unresolved, errs
}

// ResolveDay turns a DDMM label into a day of the year of now, or of the
// following year when the label's month is already past.
func ResolveDay(label string, now time.Time) (schedule.Day, error) {
	if len(label) != 4 {
		return schedule.Day{}, &DayLabelError{Label: label, Err: errors.New("expected DD/MM")}
	}
	month, err := strconv.Atoi(label[2:4])
	if err != nil {
		return schedule.Day{}, &DayLabelError{Label: label, Err: err}
	}
	year := now.Year()
	if month < int(now.Month()) {
		year++
	}
	day, err := schedule.ParseDay(fmt.Sprintf("%s%04d", label, year))
	if err != nil {
		return schedule.Day{}, &DayLabelError{Label: label, Err: err}
	}
	return day, nil
}

// Days returns the resolved days in declaration order.
func (l *Listing) Days() []schedule.Day {
	out := make([]schedule.Day, len(l.days))
	copy(out, l.days)
	return out
}

// Durations returns the resolved duration of every asset of the listing.
func (l *Listing) Durations() map[string]float64 {
	out := make(map[string]float64, len(l.durations))
	for k, v := range l.durations {
		out[k] = v
	}
	return out
}

// Entries yields one document per day section, in source order. Iteration
// stops after the first error.
func (l *Listing) Entries() iter.Seq2[schedule.Document, error] {
	return func(yield func(schedule.Document, error) bool) {
		var (
			cur   *schedule.Document
			start float64
		)
		for i, raw := range l.lines {
			line := strings.TrimSpace(raw)
			switch {
			case skip(line):
			case isMarker(line):
				if cur != nil && !yield(*cur, nil) {
					return
				}
				day, ok := l.match(stripMarker(line))
				if !ok {
					yield(schedule.Document{}, &DayLabelError{Label: line, Line: i + 1})
					return
				}
				cur = &schedule.Document{Day: day, Items: []schedule.Item{}}
				start = schedule.Unix(day.At(l.anchor, l.loc))
			default:
				if cur == nil {
					yield(schedule.Document{}, fmt.Errorf("line %d: %w", i+1, ErrOrphanItem))
					return
				}
				name := normalize(line)
				d := l.durations[name]
				cur.Items = append(cur.Items, schedule.Item{
					Index:    len(cur.Items),
					Name:     name,
					Start:    start,
					Duration: d,
				})
				start += d
			}
		}
		if cur != nil {
			yield(*cur, nil)
		}
	}
}

// Documents collects Entries.
func (l *Listing) Documents() ([]schedule.Document, error) {
	var docs []schedule.Document
	for doc, err := range l.Entries() {
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// match returns the first resolved day whose text starts with label.
func (l *Listing) match(label string) (schedule.Day, bool) {
	if label == "" {
		return schedule.Day{}, false
	}
	for _, d := range l.days {
		if strings.HasPrefix(d.String(), label) {
			return d, true
		}
	}
	return schedule.Day{}, false
}

func readLines(r io.Reader) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, strings.TrimRight(sc.Text(), "\r"))
	}
	return lines, sc.Err()
}

func skip(line string) bool {
	return line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";")
}

func isMarker(line string) bool { return strings.HasPrefix(line, "[") }

func stripMarker(line string) string {
	return strings.NewReplacer("[", "", "]", "", "/", "").Replace(strings.TrimSpace(line))
}

// normalize lowercases an asset line; listing names are case-insensitive.
func normalize(line string) string { return strings.ToLower(line) }

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
