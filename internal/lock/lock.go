// Package lock serializes basket reconciliation per business across server processes.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clearing/internal/apperr"
	"clearing/internal/logging"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Release gives the lock back. It is always safe to call once.
type Release func(ctx context.Context)

type Locker interface {
	Obtain(ctx context.Context, key string) (Release, error)
}

// ReconcileKey scopes the basket lock to one business.
func ReconcileKey(businessID string) string {
	return "reconcile:" + businessID
}

type obtainer interface {
	Obtain(ctx context.Context, key string, ttl time.Duration, opt *redislock.Options) (*redislock.Lock, error)
}

type RedisLocker struct {
	client obtainer
	ttl    time.Duration
	opts   *redislock.Options
}

// NewRedisLocker waits briefly for a held lock before giving up with a Conflict.
func NewRedisLocker(rdb *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		client: redislock.New(rdb),
		ttl:    ttl,
		opts: &redislock.Options{
			RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 5),
		},
	}
}

func (l *RedisLocker) Obtain(ctx context.Context, key string) (Release, error) {
	held, err := l.client.Obtain(ctx, key, l.ttl, l.opts)
	if errors.Is(err, redislock.ErrNotObtained) {
		logging.FromContext(ctx).WithField("lock_key", key).Warn("basket lock busy")
		return nil, apperr.Conflict("reconcile_in_progress", "another reconciliation is in progress, retry shortly")
	}
	if err != nil {
		return nil, fmt.Errorf("lock.Obtain %s: %w", key, err)
	}
	return func(ctx context.Context) {
		if err := held.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			logging.LogError(ctx, "lock", "Release", logrus.Fields{"lock_key": key}, err)
		}
	}, nil
}

// NopLocker is used when no Redis is configured; the database row locks still apply.
type NopLocker struct{}

func (NopLocker) Obtain(context.Context, string) (Release, error) {
	return func(context.Context) {}, nil
}
