package paycashlesswebhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stayhq-ng/hostelpay-backend/pkg/redis"
)

const idempotencyScope = "paycashless_webhook"

// IdempotencyGuard deduplicates gateway webhook deliveries by event id.
// The gateway retries unacknowledged events, so a processed event must be
// marked before the handler returns 200.
type IdempotencyGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &IdempotencyGuard{store: store, ttl: ttl}, nil
}

// CheckAndMark returns true when the event was already processed. A fresh
// event is marked immediately; callers must Release on handler failure so
// the gateway's retry is not swallowed.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	key := g.store.IdempotencyKey(idempotencyScope, eventID)
	set, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

// Release drops the processed mark so a retried delivery can be handled.
func (g *IdempotencyGuard) Release(ctx context.Context, eventID string) error {
	if eventID == "" {
		return errors.New("event id is required")
	}
	return g.store.Del(ctx, g.store.IdempotencyKey(idempotencyScope, eventID))
}
