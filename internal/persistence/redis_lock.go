package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`)

// RedisLock is a best-effort mutual exclusion lock between replicas. With
// Redis disabled every TryLock succeeds, which is right for a single replica.
type RedisLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	token  string
}

// NewRedisLock builds a lock on key that expires after ttl if never released.
func NewRedisLock(r *Redis, key string, ttl time.Duration) *RedisLock {
	lock := &RedisLock{key: key, ttl: ttl}
	if r.Enabled() {
		lock.client = r.Client
	}
	return lock
}

// TryLock attempts to take the lock without blocking.
func (l *RedisLock) TryLock(ctx context.Context) (bool, error) {
	if l.client == nil {
		return true, nil
	}
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", l.key, err)
	}
	if ok {
		l.token = token
	}
	return ok, nil
}

// Unlock releases the lock if this holder still owns it.
func (l *RedisLock) Unlock(ctx context.Context) error {
	if l.client == nil || l.token == "" {
		return nil
	}
	token := l.token
	l.token = ""
	if err := unlockScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil {
		return fmt.Errorf("release lock %s: %w", l.key, err)
	}
	return nil
}
