package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis keeps one hash per scope at prefix+scope.  With a positive ttl the
// hash expiry slides forward on every read and write, so idle sessions
// age out on their own.
type Redis struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedis wraps an existing client.  The backend closes rdb on Close.
func NewRedis(rdb redis.UniversalClient, prefix string, ttl time.Duration) *Redis {
	return &Redis{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (r *Redis) key(scope string) string { return r.prefix + scope }

func (r *Redis) Load(ctx context.Context, scope, key string) (string, bool, error) {
	v, err := r.rdb.HGet(ctx, r.key(scope), key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if r.ttl > 0 {
		if err := r.rdb.Expire(ctx, r.key(scope), r.ttl).Err(); err != nil {
			return "", false, err
		}
	}
	return v, true, nil
}

func (r *Redis) Save(ctx context.Context, scope, key, value string) error {
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, r.key(scope), key, value)
		if r.ttl > 0 {
			p.Expire(ctx, r.key(scope), r.ttl)
		}
		return nil
	})
	return err
}

func (r *Redis) Delete(ctx context.Context, scope, key string) error {
	return r.rdb.HDel(ctx, r.key(scope), key).Err()
}

func (r *Redis) Close() error { return r.rdb.Close() }
