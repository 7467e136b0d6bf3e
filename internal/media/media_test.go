// Copyright (c) 2025 drowolath
// Licensed under the MIT License.
// See the LICENSE file in the repository root for details.

package media

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drowolath/dvbboxes/internal/testutil"
)

func threeSites(t *testing.T) *testutil.Cluster {
	return testutil.NewCluster(t,
		testutil.SiteLayout{Name: "tana", Replicas: []string{"box1"}},
		testutil.SiteLayout{Name: "majunga", Replicas: []string{"box2"}},
		testutil.SiteLayout{Name: "diego", Replicas: []string{"box3"}},
	)
}

func newResolver(c *testutil.Cluster) *Resolver {
	return NewResolver(c.Topology, Options{Suffix: ".ts"})
}

func TestResolve_ConvergesOnMaximum(t *testing.T) {
	c := threeSites(t)
	c.SetDuration(t, "tana/box1", "news.ts", "100")
	c.SetDuration(t, "majunga/box2", "news.ts", "0")
	c.SetDuration(t, "diego/box3", "news.ts", "120")

	asset, err := newResolver(c).Resolve(context.Background(), "news")
	require.NoError(t, err)
	assert.Equal(t, "news.ts", asset.Name)
	assert.Equal(t, 120.0, asset.Duration)
	assert.Equal(t, []string{"tana", "diego"}, asset.Sites, "zero is not a usable duration")

	got, err := c.Default.DB(testutil.MediaDB).Get("news.ts")
	require.NoError(t, err)
	assert.Equal(t, "120", got, "resolved maximum is written back")
}

func TestResolve_MalformedValuesAreNoData(t *testing.T) {
	c := threeSites(t)
	c.SetDuration(t, "tana/box1", "clip.ts", "__import__('os').system('true')")
	c.SetDuration(t, "majunga/box2", "clip.ts", "NaN")
	c.SetDuration(t, "diego/box3", "clip.ts", "42.5")

	asset, err := newResolver(c).Resolve(context.Background(), "clip.ts")
	require.NoError(t, err)
	assert.Equal(t, 42.5, asset.Duration)
	assert.Equal(t, []string{"diego"}, asset.Sites)
}

func TestResolve_UnknownAssetDeletesDefaultEntry(t *testing.T) {
	c := threeSites(t)
	require.NoError(t, c.Default.DB(testutil.MediaDB).Set("gone.ts", "300"))

	asset, err := newResolver(c).Resolve(context.Background(), "gone")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAssetNotFound)

	var ae *AssetError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "gone.ts", ae.Name)
	assert.Empty(t, asset.Sites)
	assert.False(t, c.Default.DB(testutil.MediaDB).Exists("gone.ts"))
}

func TestResolve_DisconnectedReplicaSkipped(t *testing.T) {
	c := threeSites(t)
	c.SetDuration(t, "tana/box1", "news.ts", "300")
	c.SetDuration(t, "majunga/box2", "news.ts", "100")
	c.Disconnect("tana/box1")

	asset, err := newResolver(c).Resolve(context.Background(), "news")
	require.NoError(t, err)
	assert.Equal(t, 100.0, asset.Duration)
	assert.Equal(t, []string{"majunga"}, asset.Sites)
}

func TestResolve_OutageKeepsDefaultEntry(t *testing.T) {
	c := threeSites(t)
	require.NoError(t, c.Default.DB(testutil.MediaDB).Set("news.ts", "120"))
	c.Disconnect("tana/box1")
	c.Disconnect("majunga/box2")
	c.Disconnect("diego/box3")

	_, err := newResolver(c).Resolve(context.Background(), "news")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.NotErrorIs(t, err, ErrAssetNotFound)

	got, err := c.Default.DB(testutil.MediaDB).Get("news.ts")
	require.NoError(t, err)
	assert.Equal(t, "120", got)
}

func TestResolve_OutageOnSomeReplicasStillClearsUnknown(t *testing.T) {
	c := threeSites(t)
	require.NoError(t, c.Default.DB(testutil.MediaDB).Set("gone.ts", "300"))
	c.Disconnect("tana/box1")

	_, err := newResolver(c).Resolve(context.Background(), "gone")
	assert.ErrorIs(t, err, ErrAssetNotFound)
	assert.False(t, c.Default.DB(testutil.MediaDB).Exists("gone.ts"))
}

func TestResolve_SharedLookupSurvivesCallerCancel(t *testing.T) {
	c := threeSites(t)
	c.SetDuration(t, "tana/box1", "news.ts", "60")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	asset, err := newResolver(c).Resolve(ctx, "news")
	require.NoError(t, err)
	assert.Equal(t, 60.0, asset.Duration)
}

func TestResolve_EmptyName(t *testing.T) {
	c := threeSites(t)
	_, err := newResolver(c).Resolve(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrEmptyName)
}

func TestParseDuration(t *testing.T) {
	for raw, want := range map[string]bool{
		"1800": true, " 12.5 ": true, "0": false, "-3": false,
		"": false, "abc": false, "Inf": false, "1e3": true,
	} {
		_, ok := ParseDuration(raw)
		assert.Equal(t, want, ok, "raw=%q", raw)
	}
}

func TestSearch_DeduplicatesAndSorts(t *testing.T) {
	c := threeSites(t)
	c.SetDuration(t, "tana/box1", "evening_news.ts", "1")
	c.SetDuration(t, "tana/box1", "movie.ts", "1")
	c.SetDuration(t, "majunga/box2", "evening_news.ts", "1")
	c.SetDuration(t, "diego/box3", "morning_news.ts", "1")

	r := newResolver(c)
	got, err := r.Search(context.Background(), "news")
	require.NoError(t, err)
	assert.Equal(t, []string{"evening_news.ts", "morning_news.ts"}, got)

	got, err = r.Search(context.Background(), "news", "majunga")
	require.NoError(t, err)
	assert.Equal(t, []string{"evening_news.ts"}, got)

	_, err = r.Search(context.Background(), "news", "nowhere")
	assert.Error(t, err)
}

func TestSchedule_ReverseIndex(t *testing.T) {
	c := threeSites(t)
	c.SetDuration(t, "tana/box1", "news.ts", "60")
	c.AddScheduled(t, "tana/box1", "25122026:1001", "/opt/tsfiles/news.ts:0", 1000)
	c.AddScheduled(t, "tana/box1", "25122026:1001", "/opt/tsfiles/movie.ts:1", 1060)
	c.AddScheduled(t, "tana/box1", "25122026:1001", "/opt/tsfiles/news.ts:2", 2000)
	c.AddScheduled(t, "tana/box1", "26122026:1002", "/opt/tsfiles/news.ts:0", 5000)
	c.AddScheduled(t, "tana/box1", "26122026:1002", "/opt/tsfiles/newsflash.ts:1", 6000)
	// diego does not know the asset, so its schedules are not scanned
	c.AddScheduled(t, "diego/box3", "25122026:1003", "/opt/tsfiles/news.ts:0", 9000)

	r := newResolver(c)
	asset, err := r.Resolve(context.Background(), "news")
	require.NoError(t, err)

	got, err := r.Schedule(context.Background(), asset)
	require.NoError(t, err)
	assert.Equal(t, map[string][]float64{
		"1001": {1000, 2000},
		"1002": {5000},
	}, got)
}
