// Copyright (c) 2025 drowolath
// Licensed under the MIT License.
// See the LICENSE file in the repository root for details.

package store

import (
	"context"

	"github.com/drowolath/dvbboxes/internal/resilience"
)

// Guarded routes every call of the wrapped Store through a circuit breaker.
// Once a replica has failed repeatedly its calls return
// resilience.ErrCircuitOpen immediately until the breaker probes again.
type Guarded struct {
	next    Store
	breaker *resilience.CircuitBreaker
}

// NewGuarded wraps next with breaker. The breaker should classify errors with
// IsUnavailable so that misses do not trip it.
func NewGuarded(next Store, breaker *resilience.CircuitBreaker) *Guarded {
	return &Guarded{next: next, breaker: breaker}
}

// Breaker exposes the underlying breaker.
func (g *Guarded) Breaker() *resilience.CircuitBreaker { return g.breaker }

func (g *Guarded) Get(ctx context.Context, key string) (val string, err error) {
	err = g.breaker.Execute(func() error {
		val, err = g.next.Get(ctx, key)
		return err
	})
	return val, err
}

func (g *Guarded) Set(ctx context.Context, key, value string) error {
	return g.breaker.Execute(func() error { return g.next.Set(ctx, key, value) })
}

func (g *Guarded) Delete(ctx context.Context, key string) (n int64, err error) {
	err = g.breaker.Execute(func() error {
		n, err = g.next.Delete(ctx, key)
		return err
	})
	return n, err
}

func (g *Guarded) ScoredInsert(ctx context.Context, key, member string, score float64) (added bool, err error) {
	err = g.breaker.Execute(func() error {
		added, err = g.next.ScoredInsert(ctx, key, member, score)
		return err
	})
	return added, err
}

func (g *Guarded) RangeByRank(ctx context.Context, key string, start, stop int64) (out []ScoredMember, err error) {
	err = g.breaker.Execute(func() error {
		out, err = g.next.RangeByRank(ctx, key, start, stop)
		return err
	})
	return out, err
}

func (g *Guarded) RangeByScore(ctx context.Context, key string, r ScoreRange) (out []ScoredMember, err error) {
	err = g.breaker.Execute(func() error {
		out, err = g.next.RangeByScore(ctx, key, r)
		return err
	})
	return out, err
}

func (g *Guarded) Keys(ctx context.Context, pattern string) (keys []string, err error) {
	err = g.breaker.Execute(func() error {
		keys, err = g.next.Keys(ctx, pattern)
		return err
	})
	return keys, err
}

func (g *Guarded) Replace(ctx context.Context, key string, members []ScoredMember) (res ReplaceResult, err error) {
	err = g.breaker.Execute(func() error {
		res, err = g.next.Replace(ctx, key, members)
		return err
	})
	return res, err
}

func (g *Guarded) Ping(ctx context.Context) error {
	return g.breaker.Execute(func() error { return g.next.Ping(ctx) })
}

// Close is not guarded: releasing resources must always reach the client.
func (g *Guarded) Close() error {
	return g.next.Close()
}
