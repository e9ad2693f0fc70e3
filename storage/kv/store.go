// Package kvstore is the fast key-value store: a thin redis adapter plus the
// blacklist, session, cache and attempt-counter namespaces built on it.
package kvstore

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/elimu/core"
)

var connectRetries = promauto.NewCounter(prometheus.CounterOpts{
	Name: "elimu_kv_connect_retries_total",
	Help: "Total number of key-value store connection retries at startup.",
})

// Store is the generic key-value contract. Operations are never retried here:
// a failure is returned to the caller, who decides on a fallback.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

type RedisStore struct {
	client *redis.Client
}

var _ Store = (*RedisStore)(nil)

// Connect opens the shared client and pings it, retrying with exponential backoff
// (each wait capped at conf.MaxBackoff) until conf.ConnectTimeout elapses.
func Connect(ctx context.Context, conf core.RedisConfig, logger core.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        conf.Addr,
		Password:    conf.Password,
		DB:          conf.DB,
		DialTimeout: conf.DialTimeout,
		MaxRetries:  -1, // callers own retries
	})

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxInterval = conf.MaxBackoff
	bo.MaxElapsedTime = conf.ConnectTimeout

	ping := func() error {
		pingCtx, cancel := context.WithTimeout(ctx, conf.DialTimeout)
		defer cancel()
		return client.Ping(pingCtx).Err()
	}
	notify := func(err error, wait time.Duration) {
		connectRetries.Inc()
		logger.Warn(fmt.Sprintf("kv store %s unreachable, retrying in %v: %v", conf.Addr, wait, err))
	}

	if err := backoff.RetryNotify(ping, backoff.WithContext(bo, ctx), notify); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "connecting to kv store %s", conf.Addr)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "kv get %s", key)
	}
	return val, true, nil
}

// Set stores value under key. A ttl <= 0 means no expiry.
func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return errors.Wrapf(s.client.Set(ctx, key, value, ttl).Err(), "kv set %s", key)
}

func (s *RedisStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return errors.Wrap(s.client.Del(ctx, keys...).Err(), "kv del")
}

func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, errors.Wrapf(err, "kv exists %s", key)
	}
	return n > 0, nil
}

func (s *RedisStore) Incr(ctx context.Context, key string) (int64, error) {
	n, err := s.client.Incr(ctx, key).Result()
	return n, errors.Wrapf(err, "kv incr %s", key)
}

func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return errors.Wrapf(s.client.Expire(ctx, key, ttl).Err(), "kv expire %s", key)
}
