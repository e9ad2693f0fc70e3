package kvstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

const (
	blacklistPrefix = "blacklist:token:"
	sessionPrefix   = "session:"
	cachePrefix     = "cache:"
	attemptsPrefix  = "ratelimit:"

	blacklistSentinel = "1"
)

// Blacklist holds revoked tokens until they would have expired anyway.
type Blacklist struct {
	store Store
}

func NewBlacklist(store Store) *Blacklist {
	return &Blacklist{store: store}
}

func (b *Blacklist) Add(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return b.store.Set(ctx, blacklistPrefix+token, blacklistSentinel, ttl)
}

func (b *Blacklist) Contains(ctx context.Context, token string) (bool, error) {
	return b.store.Exists(ctx, blacklistPrefix+token)
}

// Sessions stores one JSON document per user.
type Sessions struct {
	store Store
	ttl   time.Duration
}

func NewSessions(store Store, ttl time.Duration) *Sessions {
	return &Sessions{store: store, ttl: ttl}
}

func (s *Sessions) Put(ctx context.Context, userID string, data interface{}) error {
	b, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "encoding session")
	}
	return s.store.Set(ctx, sessionPrefix+userID, string(b), s.ttl)
}

// Get decodes the user's session into dest and reports whether one was found.
func (s *Sessions) Get(ctx context.Context, userID string, dest interface{}) (bool, error) {
	val, ok, err := s.store.Get(ctx, sessionPrefix+userID)
	if err != nil || !ok {
		return false, err
	}
	if err = json.Unmarshal([]byte(val), dest); err != nil {
		return false, errors.Wrap(err, "decoding session")
	}
	return true, nil
}

func (s *Sessions) Delete(ctx context.Context, userID string) error {
	return s.store.Del(ctx, sessionPrefix+userID)
}

// Cache is the general-purpose string cache.
type Cache struct {
	store Store
}

func NewCache(store Store) *Cache {
	return &Cache{store: store}
}

func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	return c.store.Get(ctx, cachePrefix+key)
}

func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.store.Set(ctx, cachePrefix+key, value, ttl)
}

// Attempts counts hits per key inside a fixed window that starts on the first hit.
type Attempts struct {
	store  Store
	window time.Duration
}

func NewAttempts(store Store, window time.Duration) *Attempts {
	return &Attempts{store: store, window: window}
}

func (a *Attempts) Hit(ctx context.Context, key string) (int64, error) {
	n, err := a.store.Incr(ctx, attemptsPrefix+key)
	if err != nil {
		return 0, err
	}
	if n == 1 {
		if err = a.store.Expire(ctx, attemptsPrefix+key, a.window); err != nil {
			return n, err
		}
	}
	return n, nil
}

func (a *Attempts) Reset(ctx context.Context, key string) error {
	return a.store.Del(ctx, attemptsPrefix+key)
}
