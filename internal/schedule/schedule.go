// Copyright (c) 2025 drowolath
// Licensed under the MIT License.
// See the LICENSE file in the repository root for details.

// Package schedule holds the value types shared by the compiler, the
// replicator and the reconciler: broadcast days, compiled day documents and
// the member encoding used in the schedule namespace.
package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DayLayout is the textual form of a Day, as used in schedule keys.
const DayLayout = "02012006"

// WindowSeconds is the length of one broadcast day.
const WindowSeconds = 86400

// DefaultAnchor is the daily start of programming, 07:30:00 local time.
var DefaultAnchor = Clock{Hour: 7, Minute: 30}

var ErrInvalidDay = errors.New("invalid day")

// Day is a calendar date without time of day.
type Day struct {
	Year  int
	Month time.Month
	Date  int
}

// ParseDay parses the DDMMYYYY form.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return Day{}, fmt.Errorf("%w %q: %v", ErrInvalidDay, s, err)
	}
	return DayOf(t), nil
}

// DayOf returns the calendar day of t in t's location.
func DayOf(t time.Time) Day {
	y, m, d := t.Date()
	return Day{Year: y, Month: m, Date: d}
}

// String returns the DDMMYYYY form.
func (d Day) String() string {
	return fmt.Sprintf("%02d%02d%04d", d.Date, int(d.Month), d.Year)
}

// IsZero reports whether d is the zero Day.
func (d Day) IsZero() bool { return d == Day{} }

// At returns the instant of clock c on day d in loc.
func (d Day) At(c Clock, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(d.Year, d.Month, d.Date, c.Hour, c.Minute, c.Second, 0, loc)
}

// Key returns the schedule namespace key {day}:{channel}.
func (d Day) Key(channel string) string {
	return d.String() + ":" + channel
}

// MarshalText implements encoding.TextMarshaler.
func (d Day) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Day) UnmarshalText(b []byte) error {
	parsed, err := ParseDay(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Clock is a time of day.
type Clock struct {
	Hour, Minute, Second int
}

// ParseClock parses HH:MM:SS or HH:MM.
func ParseClock(s string) (Clock, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return Clock{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
		}
	}
	return Clock{}, fmt.Errorf("invalid time of day %q", s)
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
}

// Unix converts t to the float seconds used as scores.
func Unix(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// Time converts a score back to a time in loc.
func Time(score float64, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	sec := int64(score)
	nsec := int64((score - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec).In(loc)
}

// Item is one media asset placed in a day.
type Item struct {
	Index    int     `json:"index"`
	Name     string  `json:"name"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// Document is the compiled programming of one day: items are contiguous
// from index 0 and each starts where the previous one ends.
type Document struct {
	Day   Day    `json:"day"`
	Items []Item `json:"items"`
}

// End returns the instant the last item finishes.
func (d Document) End() float64 {
	if len(d.Items) == 0 {
		return 0
	}
	last := d.Items[len(d.Items)-1]
	return last.Start + last.Duration
}

// Slot is a reconciled schedule line: the asset airing at Start.
type Slot struct {
	Name  string  `json:"name"`
	Index int     `json:"index"`
	Start float64 `json:"start"`
}

// NormalizeAsset appends suffix to name unless already present.
func NormalizeAsset(name, suffix string) string {
	if suffix == "" || strings.HasSuffix(name, suffix) {
		return name
	}
	return name + suffix
}

// Member encodes the schedule namespace member for an asset at index:
// {prefix}{asset}:{index}. asset must already carry its file suffix.
func Member(prefix, asset string, index int) string {
	return prefix + asset + ":" + strconv.Itoa(index)
}

// ParseMember splits a member into the asset basename (path stripped) and
// its index. ok is false when the member carries no numeric index.
func ParseMember(member string) (asset string, index int, ok bool) {
	sep := strings.LastIndexByte(member, ':')
	if sep < 0 {
		return "", 0, false
	}
	index, err := strconv.Atoi(member[sep+1:])
	if err != nil {
		return "", 0, false
	}
	path := member[:sep]
	if slash := strings.LastIndexByte(path, '/'); slash >= 0 {
		path = path[slash+1:]
	}
	return path, index, true
}

// ParseKey splits a schedule namespace key into day and channel.
func ParseKey(key string) (Day, string, bool) {
	dayPart, channel, found := strings.Cut(key, ":")
	if !found || channel == "" {
		return Day{}, "", false
	}
	day, err := ParseDay(dayPart)
	if err != nil {
		return Day{}, "", false
	}
	return day, channel, true
}
