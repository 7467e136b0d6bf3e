// Copyright (c) 2025 drowolath
// Licensed under the MIT License.
// See the LICENSE file in the repository root for details.

package listing

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drowolath/dvbboxes/internal/media"
	"github.com/drowolath/dvbboxes/internal/schedule"
)

type fakeResolver struct {
	durations map[string]float64
	calls     atomic.Int32
}

func (f *fakeResolver) Resolve(_ context.Context, name string) (media.Asset, error) {
	f.calls.Add(1)
	d, ok := f.durations[name]
	if !ok {
		return media.Asset{}, &media.AssetError{Name: name, Err: media.ErrAssetNotFound}
	}
	return media.Asset{Name: name, Duration: d}, nil
}

func november() time.Time { return time.Date(2025, time.November, 3, 12, 0, 0, 0, time.UTC) }

func compile(t *testing.T, src string, r Resolver) (*Listing, error) {
	t.Helper()
	return Compile(context.Background(), strings.NewReader(src), r, Options{
		Now:      november,
		Location: time.UTC,
	})
}

func TestCompile_ChainsStartTimes(t *testing.T) {
	r := &fakeResolver{durations: map[string]float64{"a": 100, "b": 50.5, "c": 10}}
	l, err := compile(t, "[25/12]\na\nb\na\n\n[26/12]\nc\n", r)
	require.NoError(t, err)

	docs, err := l.Documents()
	require.NoError(t, err)
	require.Len(t, docs, 2)

	anchor := schedule.Unix(time.Date(2025, time.December, 25, 7, 30, 0, 0, time.UTC))
	assert.Equal(t, "25122025", docs[0].Day.String())
	assert.Equal(t, []schedule.Item{
		{Index: 0, Name: "a", Start: anchor, Duration: 100},
		{Index: 1, Name: "b", Start: anchor + 100, Duration: 50.5},
		{Index: 2, Name: "a", Start: anchor + 150.5, Duration: 100},
	}, docs[0].Items)

	next := schedule.Unix(time.Date(2025, time.December, 26, 7, 30, 0, 0, time.UTC))
	assert.Equal(t, "26122025", docs[1].Day.String())
	require.Len(t, docs[1].Items, 1)
	assert.Equal(t, next, docs[1].Items[0].Start)

	// Each distinct name is resolved once.
	assert.EqualValues(t, 3, r.calls.Load())
	assert.Equal(t, map[string]float64{"a": 100, "b": 50.5, "c": 10}, l.Durations())
}

func TestCompile_StrictlyIncreasingStarts(t *testing.T) {
	r := &fakeResolver{durations: map[string]float64{"x": 0.5, "y": 3600}}
	l, err := compile(t, "[01/12]\nx\ny\nx\ny\nx\n", r)
	require.NoError(t, err)
	docs, err := l.Documents()
	require.NoError(t, err)
	items := docs[0].Items
	for i := 1; i < len(items); i++ {
		assert.Greater(t, items[i].Start, items[i-1].Start)
		assert.Equal(t, items[i-1].Start+items[i-1].Duration, items[i].Start)
		assert.Equal(t, i, items[i].Index)
	}
}

func TestResolveDay_YearRollover(t *testing.T) {
	tests := []struct {
		label string
		now   time.Time
		want  string
	}{
		{"2512", november(), "25122025"},
		{"0301", november(), "03012026"},
		{"0311", november(), "03112025"},
		{"2512", time.Date(2026, time.January, 10, 0, 0, 0, 0, time.UTC), "25122026"},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			day, err := ResolveDay(tt.label, tt.now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, day.String())
		})
	}
}

func TestResolveDay_Malformed(t *testing.T) {
	for _, label := range []string{"", "251", "25x2", "3202", "251299"} {
		_, err := ResolveDay(label, november())
		var dle *DayLabelError
		assert.True(t, errors.As(err, &dle), "label %q", label)
	}
}

func TestCompile_RejectsWholeListing(t *testing.T) {
	r := &fakeResolver{durations: map[string]float64{"known": 10}}
	_, err := compile(t, "[25/12]\nknown\nmissing\nbad-name\nalso missing\n", r)

	var lerr *ListingError
	require.True(t, errors.As(err, &lerr))
	assert.Equal(t, []string{"also missing", "bad-name"}, lerr.Invalid)
	assert.Equal(t, []string{"missing"}, lerr.Unresolved)
	assert.True(t, errors.Is(err, media.ErrAssetNotFound))
	assert.Contains(t, err.Error(), "missing")
}

func TestCompile_NamesAreCaseInsensitive(t *testing.T) {
	r := &fakeResolver{durations: map[string]float64{"news": 30}}
	l, err := compile(t, "[25/12]\nNews\nnews\n", r)
	require.NoError(t, err)
	docs, err := l.Documents()
	require.NoError(t, err)
	assert.Equal(t, "news", docs[0].Items[0].Name)
	assert.EqualValues(t, 1, r.calls.Load())
}

func TestCompile_NoDays(t *testing.T) {
	_, err := compile(t, "# nothing here\n\n", &fakeResolver{})
	assert.ErrorIs(t, err, ErrNoDays)
}

func TestCompile_OrphanItem(t *testing.T) {
	_, err := compile(t, "early\n[25/12]\nearly\n", &fakeResolver{durations: map[string]float64{"early": 1}})
	assert.ErrorIs(t, err, ErrOrphanItem)
}

func TestCompile_BadDayLabel(t *testing.T) {
	_, err := compile(t, "[99/99]\na\n", &fakeResolver{durations: map[string]float64{"a": 1}})
	var dle *DayLabelError
	assert.True(t, errors.As(err, &dle))
}

func TestCompile_CommentsAndCRLF(t *testing.T) {
	r := &fakeResolver{durations: map[string]float64{"a": 5}}
	l, err := compile(t, "; header\r\n[25/12]\r\n# skip\r\na\r\n", r)
	require.NoError(t, err)
	docs, err := l.Documents()
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Len(t, docs[0].Items, 1)
}

func TestEntries_StopsEarly(t *testing.T) {
	r := &fakeResolver{durations: map[string]float64{"a": 5}}
	l, err := compile(t, "[25/12]\na\n[26/12]\na\n[27/12]\na\n", r)
	require.NoError(t, err)

	var seen []string
	for doc, err := range l.Entries() {
		require.NoError(t, err)
		seen = append(seen, doc.Day.String())
		if len(seen) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"25122025", "26122025"}, seen)
	assert.Len(t, l.Days(), 3)
}

func TestCompile_AnchorAndLocation(t *testing.T) {
	loc := time.FixedZone("EAT", 3*3600)
	r := &fakeResolver{durations: map[string]float64{"a": 5}}
	l, err := Compile(context.Background(), strings.NewReader("[25/12]\na\n"), r, Options{
		Now:      november,
		Location: loc,
		Anchor:   schedule.Clock{Hour: 6},
	})
	require.NoError(t, err)
	docs, err := l.Documents()
	require.NoError(t, err)
	assert.Equal(t, schedule.Unix(time.Date(2025, time.December, 25, 6, 0, 0, 0, loc)), docs[0].Items[0].Start)
}
