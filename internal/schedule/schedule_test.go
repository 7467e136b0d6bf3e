// Copyright (c) 2025 drowolath
// Licensed under the MIT License.
// See the LICENSE file in the repository root for details.

package schedule

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDay(t *testing.T) {
	d, err := ParseDay("25122026")
	require.NoError(t, err)
	assert.Equal(t, Day{Year: 2026, Month: time.December, Date: 25}, d)
	assert.Equal(t, "25122026", d.String())
	assert.Equal(t, "25122026:1001", d.Key("1001"))

	_, err = ParseDay("31022026")
	assert.ErrorIs(t, err, ErrInvalidDay)
	_, err = ParseDay("2512")
	assert.ErrorIs(t, err, ErrInvalidDay)
}

func TestDayAt_Anchor(t *testing.T) {
	d := Day{Year: 2026, Month: time.March, Date: 1}
	at := d.At(DefaultAnchor, time.UTC)
	assert.Equal(t, time.Date(2026, time.March, 1, 7, 30, 0, 0, time.UTC), at)
	assert.Equal(t, float64(at.Unix()), Unix(at))
}

func TestDay_JSON(t *testing.T) {
	doc := Document{Day: Day{Year: 2026, Month: time.January, Date: 3}, Items: []Item{{Index: 0, Name: "news", Start: 10, Duration: 5}}}
	b, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"day":"03012026"`)

	var back Document
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, doc, back)
	assert.Equal(t, 15.0, back.End())
}

func TestParseClock(t *testing.T) {
	c, err := ParseClock("07:30:00")
	require.NoError(t, err)
	assert.Equal(t, DefaultAnchor, c)

	c, err = ParseClock("18:05")
	require.NoError(t, err)
	assert.Equal(t, Clock{Hour: 18, Minute: 5}, c)

	_, err = ParseClock("25:00")
	assert.Error(t, err)
}

func TestMemberRoundTrip(t *testing.T) {
	m := Member("/opt/tsfiles/", NormalizeAsset("news", ".ts"), 4)
	assert.Equal(t, "/opt/tsfiles/news.ts:4", m)

	asset, idx, ok := ParseMember(m)
	require.True(t, ok)
	assert.Equal(t, "news.ts", asset)
	assert.Equal(t, 4, idx)

	_, _, ok = ParseMember("/opt/tsfiles/news.ts")
	assert.False(t, ok)
	_, _, ok = ParseMember("news.ts:x")
	assert.False(t, ok)
}

func TestNormalizeAsset(t *testing.T) {
	assert.Equal(t, "news.ts", NormalizeAsset("news", ".ts"))
	assert.Equal(t, "news.ts", NormalizeAsset("news.ts", ".ts"))
	assert.Equal(t, "news", NormalizeAsset("news", ""))
}

func TestParseKey(t *testing.T) {
	day, channel, ok := ParseKey("25122026:1001")
	require.True(t, ok)
	assert.Equal(t, "25122026", day.String())
	assert.Equal(t, "1001", channel)

	_, _, ok = ParseKey("news.ts")
	assert.False(t, ok)
}
