package ticket

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/minutemate/minutemate/engine/infra/cache"
	"github.com/redis/go-redis/v9"
)

const compareAndSwapScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  if tonumber(ARGV[3]) > 0 then
    redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
  else
    redis.call("SET", KEYS[1], ARGV[2])
  end
  return 1
end
return 0`

const compareAndDeleteScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0`

// RedisIndex keeps the index in Redis so every process shares it.
type RedisIndex struct {
	client cache.RedisInterface
}

func NewRedisIndex(client cache.RedisInterface) *RedisIndex {
	return &RedisIndex{client: client}
}

func (r *RedisIndex) ConditionalInsert(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis index insert %s: %w", key, err)
	}
	return ok, nil
}

func (r *RedisIndex) Lookup(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis index lookup %s: %w", key, err)
	}
	return v, true, nil
}

func (r *RedisIndex) CompareAndSwap(ctx context.Context, key, old, value string, ttl time.Duration) (bool, error) {
	n, err := r.client.Eval(ctx, compareAndSwapScript, []string{key}, old, value, ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("redis index swap %s: %w", key, err)
	}
	return n == 1, nil
}

func (r *RedisIndex) CompareAndDelete(ctx context.Context, key, old string) (bool, error) {
	n, err := r.client.Eval(ctx, compareAndDeleteScript, []string{key}, old).Int()
	if err != nil {
		return false, fmt.Errorf("redis index delete %s: %w", key, err)
	}
	return n == 1, nil
}
