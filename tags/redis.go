package tags

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisKey = "cuesheet:tags"
)

// RedisStore keeps the tag list as one JSON value under a single key.
type RedisStore struct {
	rdb *redis.Client
	key string
}

type RedisStoreOpt func(*RedisStore)

// WithKey overrides the redis key; empty keeps the default.
func WithKey(key string) RedisStoreOpt {
	return func(r *RedisStore) {
		if key != "" {
			r.key = key
		}
	}
}

// NewRedisStore connects to addr and pings it once before returning.
func NewRedisStore(ctx context.Context, addr string, opts ...RedisStoreOpt) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}

	return newRedisStore(rdb, opts...), nil
}

func newRedisStore(rdb *redis.Client, opts ...RedisStoreOpt) *RedisStore {
	r := &RedisStore{rdb: rdb, key: defaultRedisKey}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *RedisStore) Load(ctx context.Context) ([]Tag, error) {
	val, err := r.rdb.Get(ctx, r.key).Bytes()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", r.key, err)
	}

	var tags []Tag
	if err := json.Unmarshal(val, &tags); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", r.key, err)
	}
	return tags, nil
}

func (r *RedisStore) Save(ctx context.Context, tags []Tag) error {
	if tags == nil {
		tags = []Tag{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, r.key, b, 0).Err()
}

func (r *RedisStore) Stop() {
	r.rdb.Close()
}
