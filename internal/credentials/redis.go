package credentials

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisSlot stores the value as a plain string key without expiry.
type RedisSlot struct {
	rdb redis.Cmdable
	key string
}

func NewRedisSlot(rdb redis.Cmdable, prefix string) *RedisSlot {
	key := SlotKey
	if prefix != "" {
		key = prefix + ":" + SlotKey
	}
	return &RedisSlot{rdb: rdb, key: key}
}

func (r *RedisSlot) Load(ctx context.Context) (string, bool, error) {
	value, err := r.rdb.Get(ctx, r.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

func (r *RedisSlot) Save(ctx context.Context, value string) error {
	return r.rdb.Set(ctx, r.key, value, 0).Err()
}

func (r *RedisSlot) Delete(ctx context.Context) error {
	return r.rdb.Del(ctx, r.key).Err()
}
