// Copyright (c) 2025 drowolath
// Licensed under the MIT License.
// See the LICENSE file in the repository root for details.

// Package store is the client side of a replica's remote ordered-score
// key-value namespaces.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("store: key not found")

// ScoredMember is one entry of a scored set.
type ScoredMember struct {
	Member string
	Score  float64
}

// ScoreRange selects members by score. Min is always inclusive.
type ScoreRange struct {
	Min          float64
	Max          float64
	MaxExclusive bool
}

// ReplaceResult reports what a pipelined Replace applied.
type ReplaceResult struct {
	Deleted  bool  // the leading delete was applied
	Removed  int64 // keys removed by the leading delete (0 or 1)
	Inserted int64 // members newly added
	Failed   int64 // inserts that did not apply
}

// Store is one namespace of one replica. Implementations must be safe for
// concurrent use.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) (int64, error)
	ScoredInsert(ctx context.Context, key, member string, score float64) (bool, error)
	// RangeByRank returns members ordered by score; stop -1 means the last one.
	RangeByRank(ctx context.Context, key string, start, stop int64) ([]ScoredMember, error)
	RangeByScore(ctx context.Context, key string, r ScoreRange) ([]ScoredMember, error)
	// Keys returns the sorted, deduplicated keys matching a glob pattern.
	Keys(ctx context.Context, pattern string) ([]string, error)
	// Replace deletes key then inserts members in a single round trip. It is
	// not atomic: on error the result reports whatever was applied.
	Replace(ctx context.Context, key string, members []ScoredMember) (ReplaceResult, error)
	Ping(ctx context.Context) error
	Close() error
}

// IsUnavailable reports whether err means the replica could not serve the
// call, as opposed to a well-formed negative answer.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrNotFound) && !errors.Is(err, context.Canceled)
}
