package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/lottobet/internal/domain"
)

// QuoteCache implements domain.QuoteCache with short-lived JSON strings and a
// per-period index set used for invalidation.
//
// Key schema:
//
//	quote:{period}:{betType}:{number} - JSON RateQuote
//	quote:period:{period}             - set of quote keys for the period
type QuoteCache struct {
	c   *Client
	ttl time.Duration
}

// NewQuoteCache creates a QuoteCache whose entries expire after ttl.
func NewQuoteCache(c *Client, ttl time.Duration) *QuoteCache {
	return &QuoteCache{c: c, ttl: ttl}
}

func (qc *QuoteCache) quoteKey(periodID, betType, number string) string {
	return qc.c.Key("quote:" + periodID + ":" + betType + ":" + number)
}

func (qc *QuoteCache) periodKey(periodID string) string {
	return qc.c.Key("quote:period:" + periodID)
}

// Get returns a cached quote or domain.ErrNotFound.
func (qc *QuoteCache) Get(ctx context.Context, periodID, betType, number string) (domain.RateQuote, error) {
	data, err := qc.c.rdb.Get(ctx, qc.quoteKey(periodID, betType, number)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.RateQuote{}, domain.ErrNotFound
		}
		return domain.RateQuote{}, fmt.Errorf("redis: get quote %s/%s: %w", betType, number, err)
	}

	var q domain.RateQuote
	if err := json.Unmarshal(data, &q); err != nil {
		return domain.RateQuote{}, fmt.Errorf("redis: unmarshal quote %s/%s: %w", betType, number, err)
	}
	return q, nil
}

// Set caches a resolved quote. Fallback quotes are never cached.
func (qc *QuoteCache) Set(ctx context.Context, periodID, betType, number string, q domain.RateQuote) error {
	if q.Fallback || qc.ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("redis: marshal quote %s/%s: %w", betType, number, err)
	}

	key := qc.quoteKey(periodID, betType, number)
	idx := qc.periodKey(periodID)

	pipe := qc.c.rdb.TxPipeline()
	pipe.Set(ctx, key, data, qc.ttl)
	pipe.SAdd(ctx, idx, key)
	pipe.Expire(ctx, idx, qc.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set quote %s/%s: %w", betType, number, err)
	}
	return nil
}

// InvalidatePeriod drops every cached quote of a period.
func (qc *QuoteCache) InvalidatePeriod(ctx context.Context, periodID string) error {
	idx := qc.periodKey(periodID)
	keys, err := qc.c.rdb.SMembers(ctx, idx).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis: invalidate quotes %s: %w", periodID, err)
	}

	pipe := qc.c.rdb.TxPipeline()
	if len(keys) > 0 {
		pipe.Del(ctx, keys...)
	}
	pipe.Del(ctx, idx)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: invalidate quotes %s: %w", periodID, err)
	}
	return nil
}

var _ domain.QuoteCache = (*QuoteCache)(nil)
