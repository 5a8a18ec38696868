package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// CheckoutLock guards against double-submission: one finalize per session
// at a time, enforced with SetNX so the guard holds across processes.
type CheckoutLock struct {
	client *redis.Client
}

func NewCheckoutLock(client *redis.Client) *CheckoutLock {
	return &CheckoutLock{client: client}
}

func (l *CheckoutLock) Acquire(ctx context.Context, sessionID string, ttl time.Duration) (bool, error) {
	res := l.client.SetNX(ctx, "checkout:"+sessionID, "1", ttl)
	return res.Val(), res.Err()
}

func (l *CheckoutLock) Release(ctx context.Context, sessionID string) error {
	return l.client.Del(ctx, "checkout:"+sessionID).Err()
}
