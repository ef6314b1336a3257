package storage

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/pos-checkout/internal/core/domain"
)

const (
	idempotencyKeyPrefix = "pos:idem:"
	sequenceKeyPrefix    = "pos:seq:"
	idempotencyKeyTTL    = 24 * time.Hour
)

// RedisAdapter holds checkout idempotency keys and the order number counters.
type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, idempotencyKeyPrefix+key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, redisError("set idempotency", err)
	}

	return ok, nil
}

func (r *RedisAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, idempotencyKeyPrefix+key).Err(); err != nil {
		return redisError("release idempotency", err)
	}
	return nil
}

func (r *RedisAdapter) Next(ctx context.Context, name string) (int64, error) {
	v, err := r.client.Incr(ctx, sequenceKeyPrefix+name).Result()
	if err != nil {
		return 0, redisError("next "+name, err)
	}
	return v, nil
}

func (r *RedisAdapter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func redisError(op string, err error) error {
	var ne net.Error
	if errors.As(err, &ne) || errors.Is(err, redis.ErrClosed) || errors.Is(err, context.DeadlineExceeded) {
		return domain.Unavailable(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
