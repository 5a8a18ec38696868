// Package redis adapts go-redis to the funnel's session persistence,
// idempotency and locking ports.
package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionStore is the durable per-session key/value store the cart, the
// profile draft and the funnel selection serialize into. Every write
// refreshes the session TTL.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (s *SessionStore) Set(ctx context.Context, key string, value []byte) error {
	return s.client.Set(ctx, key, value, s.ttl).Err()
}

func (s *SessionStore) Remove(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}
