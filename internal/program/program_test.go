// Copyright (c) 2025 drowolath
// Licensed under the MIT License.
// See the LICENSE file in the repository root for details.

package program

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drowolath/dvbboxes/internal/cluster"
	"github.com/drowolath/dvbboxes/internal/replicate"
	"github.com/drowolath/dvbboxes/internal/schedule"
	"github.com/drowolath/dvbboxes/internal/store"
	"github.com/drowolath/dvbboxes/internal/testutil"
)

var xmas = schedule.Day{Year: 2025, Month: time.December, Date: 25}

const key = "25122025:1001"

func reconciler(topo *cluster.Topology) *Reconciler {
	return New(topo, Options{Location: time.UTC, Suffix: ".ts"})
}

func seed(t *testing.T, c *testutil.Cluster, id string, n int, last float64) {
	t.Helper()
	for i := 0; i < n; i++ {
		score := last - float64(n-1-i)*10
		c.AddScheduled(t, id, key, fmt.Sprintf("/opt/tsfiles/%s_%d.ts:%d", id[len(id)-1:], i, i), score)
	}
}

func TestQuery_ApplyRoundTrip(t *testing.T) {
	c := testutil.NewCluster(t, testutil.SiteLayout{Name: "tana", Replicas: []string{"box1"}})

	anchor := schedule.Unix(xmas.At(schedule.DefaultAnchor, time.UTC))
	doc := schedule.Document{Day: xmas, Items: []schedule.Item{
		{Index: 0, Name: "news", Start: anchor, Duration: 600},
		{Index: 1, Name: "cartoon_01", Start: anchor + 600, Duration: 1200},
		{Index: 2, Name: "news", Start: anchor + 1800, Duration: 600},
	}}
	rep := replicate.New(c.Topology, nil, replicate.Options{Prefix: "/opt/tsfiles/", Suffix: ".ts"})
	report, err := rep.Apply(context.Background(), []schedule.Document{doc}, "1001")
	require.NoError(t, err)
	require.Empty(t, report.Failures())

	got, err := reconciler(c.Topology).Query(context.Background(), xmas, "1001", schedule.Time(anchor-60, time.UTC))
	require.NoError(t, err)

	want := []schedule.Slot{
		{Name: "news.ts", Index: 0, Start: anchor},
		{Name: "cartoon_01.ts", Index: 1, Start: anchor + 600},
		{Name: "news.ts", Index: 2, Start: anchor + 1800},
	}
	if diff := cmp.Diff(want, got.Slots); diff != "" {
		t.Errorf("slots mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "tana/box1", got.Source)
	assert.Zero(t, got.WindowStart)

	starts, err := reconciler(c.Topology).StartTimesOf(context.Background(), "news", xmas, "1001", schedule.Time(anchor-60, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, []float64{anchor, anchor + 1800}, starts)

	missing, err := reconciler(c.Topology).StartTimesOf(context.Background(), "weather", xmas, "1001", time.Time{})
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestQuery_RollingWindow(t *testing.T) {
	c := testutil.NewCluster(t, testutil.SiteLayout{Name: "tana", Replicas: []string{"box1"}})
	const T = 1_766_647_800.0
	c.AddScheduled(t, "tana/box1", key, "/opt/tsfiles/a.ts:0", T)
	c.AddScheduled(t, "tana/box1", key, "/opt/tsfiles/b.ts:1", T+100)
	c.AddScheduled(t, "tana/box1", key, "/opt/tsfiles/c.ts:2", T+200)

	got, err := reconciler(c.Topology).Query(context.Background(), xmas, "1001", schedule.Time(T+150, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, T+100, got.WindowStart)
	assert.Equal(t, []schedule.Slot{
		{Name: "b.ts", Index: 1, Start: T + 100},
		{Name: "c.ts", Index: 2, Start: T + 200},
	}, got.Slots)
}

func TestQuery_WindowExcludesNextDay(t *testing.T) {
	c := testutil.NewCluster(t, testutil.SiteLayout{Name: "tana", Replicas: []string{"box1"}})
	const T = 1_766_647_800.0
	c.AddScheduled(t, "tana/box1", key, "/opt/tsfiles/a.ts:0", T)
	c.AddScheduled(t, "tana/box1", key, "/opt/tsfiles/b.ts:1", T+schedule.WindowSeconds-1)
	c.AddScheduled(t, "tana/box1", key, "/opt/tsfiles/c.ts:2", T+schedule.WindowSeconds)

	got, err := reconciler(c.Topology).Query(context.Background(), xmas, "1001", schedule.Time(T, time.UTC))
	require.NoError(t, err)
	require.Len(t, got.Slots, 2)
	assert.Equal(t, "b.ts", got.Slots[1].Name)
}

func TestQuery_NonDominanceKeepsFirst(t *testing.T) {
	for _, order := range [][]string{{"a", "b"}, {"b", "a"}} {
		t.Run(order[0]+"_first", func(t *testing.T) {
			c := testutil.NewCluster(t, testutil.SiteLayout{Name: "tana", Replicas: order})
			seed(t, c, "tana/a", 3, 500)
			seed(t, c, "tana/b", 5, 400)

			got, err := reconciler(c.Topology).Query(context.Background(), xmas, "1001", schedule.Time(0, time.UTC))
			require.NoError(t, err)
			assert.Equal(t, "tana/"+order[0], got.Source)
		})
	}
}

func TestQuery_DominantReplicaWins(t *testing.T) {
	c := testutil.NewCluster(t,
		testutil.SiteLayout{Name: "tana", Replicas: []string{"a"}},
		testutil.SiteLayout{Name: "majunga", Replicas: []string{"b"}},
	)
	seed(t, c, "tana/a", 3, 500)
	seed(t, c, "majunga/b", 4, 600)

	got, err := reconciler(c.Topology).Query(context.Background(), xmas, "1001", schedule.Time(0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "majunga/b", got.Source)
	assert.Len(t, got.Slots, 4)
	require.Len(t, got.Replicas, 2)
	assert.Equal(t, ReplicaResult{Site: "tana", Replica: "a", Entries: 3, Last: 500}, got.Replicas[0])

	// Restricting to one site only considers its replicas.
	got, err = reconciler(c.Topology).Query(context.Background(), xmas, "1001", schedule.Time(0, time.UTC), "tana")
	require.NoError(t, err)
	assert.Equal(t, "tana/a", got.Source)
}

func TestQuery_DegradedRead(t *testing.T) {
	c := testutil.NewCluster(t, testutil.SiteLayout{Name: "tana", Replicas: []string{"a", "b"}})
	seed(t, c, "tana/a", 5, 900)
	seed(t, c, "tana/b", 3, 500)
	c.Disconnect("tana/a")

	got, err := reconciler(c.Topology).Query(context.Background(), xmas, "1001", schedule.Time(0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "tana/b", got.Source)
	assert.NotEmpty(t, got.Replicas[0].Err)
}

func TestQuery_NoSchedule(t *testing.T) {
	c := testutil.NewCluster(t, testutil.SiteLayout{Name: "tana", Replicas: []string{"a", "b"}})
	c.Disconnect("tana/a")

	_, err := reconciler(c.Topology).Query(context.Background(), xmas, "1001", time.Time{})
	assert.ErrorIs(t, err, ErrNoSchedule)

	_, err = reconciler(c.Topology).StartTimesOf(context.Background(), "news", xmas, "1001", time.Time{})
	assert.ErrorIs(t, err, ErrNoSchedule)

	_, err = reconciler(c.Topology).Query(context.Background(), xmas, "1001", time.Time{}, "diego")
	assert.ErrorIs(t, err, cluster.ErrUnknownSite)
}

func TestQuery_OrdersByIndex(t *testing.T) {
	c := testutil.NewCluster(t, testutil.SiteLayout{Name: "tana", Replicas: []string{"box1"}})
	c.AddScheduled(t, "tana/box1", key, "/opt/tsfiles/late.ts:0", 300)
	c.AddScheduled(t, "tana/box1", key, "/opt/tsfiles/early.ts:1", 100)
	c.AddScheduled(t, "tana/box1", key, "/opt/tsfiles/broken", 200)

	got, err := reconciler(c.Topology).Query(context.Background(), xmas, "1001", schedule.Time(0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, []schedule.Slot{
		{Name: "late.ts", Index: 0, Start: 300},
		{Name: "early.ts", Index: 1, Start: 100},
	}, got.Slots)
}

// flaky serves the full set but fails every score range.
type flaky struct {
	store.Store
	entries []store.ScoredMember
}

func (f flaky) RangeByRank(context.Context, string, int64, int64) ([]store.ScoredMember, error) {
	return f.entries, nil
}

func (flaky) RangeByScore(context.Context, string, store.ScoreRange) ([]store.ScoredMember, error) {
	return nil, errors.New("connection reset")
}

func TestQuery_RefetchFailureFiltersCollected(t *testing.T) {
	const T = 1000.0
	topo, err := cluster.New([]cluster.Site{{
		Name: "tana",
		Replicas: []cluster.Replica{{Name: "box1", Programs: flaky{entries: []store.ScoredMember{
			{Member: "/opt/tsfiles/a.ts:0", Score: T},
			{Member: "/opt/tsfiles/b.ts:1", Score: T + 100},
			{Member: "/opt/tsfiles/c.ts:2", Score: T + 200},
		}}}},
	}}, nil)
	require.NoError(t, err)

	got, err := reconciler(topo).Query(context.Background(), xmas, "1001", schedule.Time(T+150, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, []schedule.Slot{
		{Name: "b.ts", Index: 1, Start: T + 100},
		{Name: "c.ts", Index: 2, Start: T + 200},
	}, got.Slots)
}
