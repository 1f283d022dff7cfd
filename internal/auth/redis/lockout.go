// Package redis keeps login failure counters in Redis so every instance behind a load balancer sees the same lockout state.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/frahmantamala/invoice-admin/internal/auth"
	"github.com/go-redis/redis/v8"
)

type LockoutTracker struct {
	client *redis.Client
	policy auth.LockoutPolicy
	prefix string
}

func NewLockoutTracker(client *redis.Client, policy auth.LockoutPolicy, prefix string) *LockoutTracker {
	if prefix == "" {
		prefix = "lockout"
	}
	return &LockoutTracker{client: client, policy: policy.Normalize(), prefix: prefix}
}

func (t *LockoutTracker) failKey(userID int64) string {
	return fmt.Sprintf("%s:fail:%d", t.prefix, userID)
}

func (t *LockoutTracker) lockKey(userID int64) string {
	return fmt.Sprintf("%s:lock:%d", t.prefix, userID)
}

func (t *LockoutTracker) LockedUntil(ctx context.Context, userID int64) (time.Time, bool, error) {
	ttl, err := t.client.PTTL(ctx, t.lockKey(userID)).Result()
	if err != nil {
		return time.Time{}, false, err
	}
	// -2 means no key, -1 means no expiry; a lock key is always written with one.
	if ttl <= 0 {
		return time.Time{}, false, nil
	}
	return time.Now().Add(ttl), true, nil
}

// RegisterFailure counts within a sliding window as long as the lockout itself.
func (t *LockoutTracker) RegisterFailure(ctx context.Context, userID int64) (bool, error) {
	key := t.failKey(userID)

	pipe := t.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, t.policy.LockoutDuration)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis error: %w", err)
	}

	if incr.Val() < int64(t.policy.MaxFailedAttempts) {
		return false, nil
	}

	pipe = t.client.TxPipeline()
	pipe.Set(ctx, t.lockKey(userID), 1, t.policy.LockoutDuration)
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis error: %w", err)
	}
	return true, nil
}

func (t *LockoutTracker) Reset(ctx context.Context, userID int64) error {
	return t.client.Del(ctx, t.failKey(userID), t.lockKey(userID)).Err()
}
