// Package queue implements the durable job queue (spec.md §4.3): pending
// list, in-flight set, dead-letter list, and per-job records, backed by an
// external key/value/list store (Redis).
package queue

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client is the narrow slice of Redis commands the queue needs. Its
// methods are declared with go-redis's own return types so *redis.Client
// satisfies it directly; tests substitute an in-memory fake instead of
// requiring a live Redis server, the same seam the teacher's
// internal/store.Store interface gives the job store.
type Client interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LPop(ctx context.Context, key string) *redis.StringCmd
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	LRem(ctx context.Context, key string, count int64, value interface{}) *redis.IntCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	LLen(ctx context.Context, key string) *redis.IntCmd
	SCard(ctx context.Context, key string) *redis.IntCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
}

// NewRedisClient builds a go-redis client from the resolved config.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}
