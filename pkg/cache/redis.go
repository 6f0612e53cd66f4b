// Package cache is a small JSON cache over Redis. A nil *Redis or the Noop
// cache turns every call into a miss.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultTTL = 5 * time.Minute

type Cache interface {
	GetJSON(ctx context.Context, key string, v interface{}) bool
	SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration)
	InvalidatePrefix(ctx context.Context, prefix string)
}

type Options struct {
	Addr     string
	Password string
	DB       int
}

type Redis struct {
	rc  *redis.Client
	log *zap.SugaredLogger
}

// NewRedis returns nil when no address is configured.
func NewRedis(opts Options, log *zap.SugaredLogger) *Redis {
	if opts.Addr == "" {
		return nil
	}
	rc := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		log.Warnw("redis not reachable, cache will miss until it is", "addr", opts.Addr, "error", err)
	}
	return &Redis{rc: rc, log: log}
}

func (r *Redis) GetJSON(ctx context.Context, key string, v interface{}) bool {
	if r == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	b, err := r.rc.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.log.Debugw("cache get failed", "key", key, "error", err)
		}
		return false
	}
	return json.Unmarshal(b, v) == nil
}

func (r *Redis) SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) {
	if r == nil {
		return
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := r.rc.Set(ctx, key, b, ttl).Err(); err != nil {
		r.log.Warnw("cache set failed", "key", key, "error", err)
	}
}

// InvalidatePrefix deletes keys matching prefix using SCAN.
func (r *Redis) InvalidatePrefix(ctx context.Context, prefix string) {
	if r == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var cursor uint64
	for i := 0; i < 10; i++ {
		keys, cur, err := r.rc.Scan(ctx, cursor, prefix+"*", 1000).Result()
		if err != nil {
			r.log.Warnw("cache scan failed", "prefix", prefix, "error", err)
			return
		}
		if len(keys) > 0 {
			if err := r.rc.Del(ctx, keys...).Err(); err != nil {
				r.log.Warnw("cache delete failed", "prefix", prefix, "error", err)
			}
		}
		cursor = cur
		if cursor == 0 {
			return
		}
	}
}

func (r *Redis) Close() error {
	if r == nil {
		return nil
	}
	return r.rc.Close()
}

type Noop struct{}

func (Noop) GetJSON(context.Context, string, interface{}) bool           { return false }
func (Noop) SetJSON(context.Context, string, interface{}, time.Duration) {}
func (Noop) InvalidatePrefix(context.Context, string)                    {}
