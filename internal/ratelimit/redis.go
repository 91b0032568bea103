// Package ratelimit provides a Redis-backed request log for the security
// gate's rate-limit check. Each (wallet, endpoint) pair is one sorted set
// scored by request time in milliseconds.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ratelimit"

type RedisLog struct {
	client *redis.Client
	window time.Duration
}

// NewRedisLog keeps entries for window; older members are trimmed on write
// and the key expires after a quiet window.
func NewRedisLog(client *redis.Client, window time.Duration) *RedisLog {
	return &RedisLog{client: client, window: window}
}

func key(wallet, endpoint string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, endpoint, wallet)
}

func (l *RedisLog) CountRequests(ctx context.Context, wallet, endpoint string, since time.Time) (int, error) {
	n, err := l.client.ZCount(ctx, key(wallet, endpoint), "("+strconv.FormatInt(since.UnixMilli(), 10), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("redis count requests: %w", err)
	}
	return int(n), nil
}

func (l *RedisLog) RecordRequest(ctx context.Context, wallet, endpoint string, at time.Time) error {
	k := key(wallet, endpoint)
	cutoff := at.Add(-l.window).UnixMilli()
	_, err := l.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZAdd(ctx, k, redis.Z{Score: float64(at.UnixMilli()), Member: uuid.NewString()})
		p.ZRemRangeByScore(ctx, k, "-inf", "("+strconv.FormatInt(cutoff, 10))
		p.PExpire(ctx, k, l.window)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis record request: %w", err)
	}
	return nil
}

func (l *RedisLog) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}
