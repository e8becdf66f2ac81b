package locking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/wms/backend/internal/domain/shared"
)

// releaseScript deletes the lock key only when the caller still owns it
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

// RedisLocker implements distributed per-key locking on top of Redis using
// SET NX PX. Suitable when multiple instances mutate the same stock keys.
type RedisLocker struct {
	client      *redis.Client
	keyPrefix   string
	ttl         time.Duration
	waitTimeout time.Duration
	retryDelay  time.Duration
}

// RedisLockerConfig holds tuning for the Redis locker
type RedisLockerConfig struct {
	KeyPrefix   string
	TTL         time.Duration
	WaitTimeout time.Duration
	RetryDelay  time.Duration
}

// NewRedisLocker creates a locker with an existing Redis client
func NewRedisLocker(client *redis.Client, cfg RedisLockerConfig) *RedisLocker {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "stock:lock:"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = 5 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 50 * time.Millisecond
	}
	return &RedisLocker{
		client:      client,
		keyPrefix:   cfg.KeyPrefix,
		ttl:         cfg.TTL,
		waitTimeout: cfg.WaitTimeout,
		retryDelay:  cfg.RetryDelay,
	}
}

// Acquire takes the lock for the key, retrying until the wait timeout.
// The lock carries a TTL so a crashed holder cannot block the key forever.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	lockKey := l.keyPrefix + key
	token := uuid.New().String()

	deadline := time.Now().Add(l.waitTimeout)
	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			return func() {
				releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = l.client.Eval(releaseCtx, releaseScript, []string{lockKey}, token).Err()
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, shared.ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retryDelay):
		}
	}
}
