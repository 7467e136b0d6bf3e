// Copyright (c) 2025 drowolath
// Licensed under the MIT License.
// See the LICENSE file in the repository root for details.

package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/drowolath/dvbboxes/internal/metrics"
)

const scanBatch = 256

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr         string        // Redis server address (host:port)
	Password     string        // Redis password (optional)
	DB           int           // Redis database number
	Namespace    string        // label used in logs and metrics ("programs", "media")
	DialTimeout  time.Duration // defaults to 5s
	ReadTimeout  time.Duration // defaults to 10s
	WriteTimeout time.Duration // defaults to 10s
}

// Redis is a Store backed by one Redis database.
type Redis struct {
	client    *redis.Client
	namespace string
	timeout   time.Duration
	logger    zerolog.Logger
}

// NewRedis creates a Redis-backed store. The connection is established
// lazily so that an unreachable replica does not prevent startup.
func NewRedis(cfg RedisConfig, logger zerolog.Logger) *Redis {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     4,
		MaxRetries:   -1,
	})
	return NewRedisFromClient(client, cfg.Namespace, cfg.DialTimeout+cfg.ReadTimeout+cfg.WriteTimeout, logger)
}

// NewRedisFromClient wraps an existing client. timeout bounds every call.
func NewRedisFromClient(client *redis.Client, namespace string, timeout time.Duration, logger zerolog.Logger) *Redis {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Redis{
		client:    client,
		namespace: namespace,
		timeout:   timeout,
		logger:    logger.With().Str("namespace", namespace).Str("addr", client.Options().Addr).Logger(),
	}
}

func (s *Redis) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Redis) record(op string, err error) {
	switch {
	case err == nil:
		metrics.RecordReplicaOp(s.namespace, op, metrics.ResultOK)
	case errors.Is(err, ErrNotFound):
		metrics.RecordReplicaOp(s.namespace, op, metrics.ResultMiss)
	default:
		metrics.RecordReplicaOp(s.namespace, op, metrics.ResultError)
		s.logger.Debug().Err(err).Str("op", op).Msg("redis call failed")
	}
}

// Get retrieves the string value stored at key.
func (s *Redis) Get(ctx context.Context, key string) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		err = ErrNotFound
	} else if err != nil {
		err = fmt.Errorf("get %q: %w", key, err)
	}
	s.record("get", err)
	return val, err
}

// Set stores value at key without expiry.
func (s *Redis) Set(ctx context.Context, key, value string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err := s.client.Set(ctx, key, value, 0).Err()
	if err != nil {
		err = fmt.Errorf("set %q: %w", key, err)
	}
	s.record("set", err)
	return err
}

// Delete removes key and returns the number of keys removed.
func (s *Redis) Delete(ctx context.Context, key string) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	n, err := s.client.Del(ctx, key).Result()
	if err != nil {
		err = fmt.Errorf("delete %q: %w", key, err)
	}
	s.record("delete", err)
	return n, err
}

// ScoredInsert adds member with score to the set at key. It reports whether
// the member is new.
func (s *Redis) ScoredInsert(ctx context.Context, key, member string, score float64) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	n, err := s.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Result()
	if err != nil {
		err = fmt.Errorf("zadd %q: %w", key, err)
	}
	s.record("zadd", err)
	return n == 1, err
}

// RangeByRank returns members between ranks start and stop, with scores.
func (s *Redis) RangeByRank(ctx context.Context, key string, start, stop int64) ([]ScoredMember, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	zs, err := s.client.ZRangeWithScores(ctx, key, start, stop).Result()
	if err != nil {
		err = fmt.Errorf("zrange %q: %w", key, err)
		s.record("zrange", err)
		return nil, err
	}
	s.record("zrange", nil)
	return toMembers(zs), nil
}

// RangeByScore returns members whose score falls inside r, with scores.
func (s *Redis) RangeByScore(ctx context.Context, key string, r ScoreRange) ([]ScoredMember, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	upper := formatScore(r.Max)
	if r.MaxExclusive {
		upper = "(" + upper
	}
	zs, err := s.client.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
		Min: formatScore(r.Min),
		Max: upper,
	}).Result()
	if err != nil {
		err = fmt.Errorf("zrangebyscore %q: %w", key, err)
		s.record("zrangebyscore", err)
		return nil, err
	}
	s.record("zrangebyscore", nil)
	return toMembers(zs), nil
}

// Keys walks the keyspace with SCAN so a large namespace never blocks the
// server the way KEYS would.
func (s *Redis) Keys(ctx context.Context, pattern string) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	seen := make(map[string]struct{})
	it := s.client.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for it.Next(ctx) {
		seen[it.Val()] = struct{}{}
	}
	if err := it.Err(); err != nil {
		err = fmt.Errorf("scan %q: %w", pattern, err)
		s.record("scan", err)
		return nil, err
	}
	s.record("scan", nil)

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Replace pipelines DEL key followed by one ZADD per member.
func (s *Redis) Replace(ctx context.Context, key string, members []ScoredMember) (ReplaceResult, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		del  *redis.IntCmd
		adds = make([]*redis.IntCmd, 0, len(members))
	)
	_, err := s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		del = p.Del(ctx, key)
		for _, m := range members {
			adds = append(adds, p.ZAdd(ctx, key, redis.Z{Score: m.Score, Member: m.Member}))
		}
		return nil
	})

	var res ReplaceResult
	var reply redis.Error
	if err != nil && !errors.As(err, &reply) {
		// Transport failure: queued commands carry no result of their own.
		res.Failed = int64(len(members))
	} else {
		if del != nil && del.Err() == nil {
			res.Deleted = true
			res.Removed = del.Val()
		}
		for _, cmd := range adds {
			if cmd.Err() == nil {
				res.Inserted += cmd.Val()
			} else {
				res.Failed++
			}
		}
	}
	if err != nil {
		err = fmt.Errorf("replace %q: %w", key, err)
	}
	s.record("replace", err)
	return res, err
}

// Ping checks if Redis is available.
func (s *Redis) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection pool.
func (s *Redis) Close() error {
	return s.client.Close()
}

func toMembers(zs []redis.Z) []ScoredMember {
	out := make([]ScoredMember, 0, len(zs))
	for _, z := range zs {
		member, ok := z.Member.(string)
		if !ok {
			member = fmt.Sprint(z.Member)
		}
		out = append(out, ScoredMember{Member: member, Score: z.Score})
	}
	return out
}

func formatScore(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
