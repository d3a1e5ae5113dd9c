package domain

import (
	"context"
	"time"
)

// QuoteCache holds recently resolved rate quotes keyed by period, bet type
// and number.
type QuoteCache interface {
	Get(ctx context.Context, periodID, betType, number string) (RateQuote, error)
	Set(ctx context.Context, periodID, betType, number string, q RateQuote) error
	InvalidatePeriod(ctx context.Context, periodID string) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// EventBus provides pub/sub and durable streams for session events.
type EventBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
}
