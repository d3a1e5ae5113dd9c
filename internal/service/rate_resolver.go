package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/lottobet/internal/domain"
	"github.com/alanyoungcy/lottobet/internal/metrics"
)

// RateChecker performs one per-number rate lookup against the rate service.
type RateChecker interface {
	CheckMultiply(ctx context.Context, token string, rc domain.RateCheck) (domain.RateQuote, error)
}

// RateResolver orchestrates rate lookups for the candidates of an add
// operation. A failed lookup never fails the caller: the candidate falls back
// to the base multiplier with no special-number metadata.
type RateResolver struct {
	checker     RateChecker
	cache       domain.QuoteCache
	concurrency int
	logger      *slog.Logger
}

// NewRateResolver creates a RateResolver. cache may be nil. concurrency caps
// the outstanding lookups of one batch; values below 1 mean 4.
func NewRateResolver(checker RateChecker, cache domain.QuoteCache, concurrency int, logger *slog.Logger) *RateResolver {
	if concurrency < 1 {
		concurrency = 4
	}
	return &RateResolver{
		checker:     checker,
		cache:       cache,
		concurrency: concurrency,
		logger:      logger.With(slog.String("component", "rate_resolver")),
	}
}

// Fallback returns the quote used when a lookup fails.
func Fallback(baseMultiplier float64) domain.RateQuote {
	return domain.RateQuote{
		Multiply:   baseMultiplier,
		Result:     domain.RateResultAdmissible,
		Admissible: true,
		Fallback:   true,
	}
}

// Resolve looks up one number. The returned quote is always usable; the
// error, wrapping domain.ErrRateLookup, only reports that the fallback was
// taken.
func (r *RateResolver) Resolve(ctx context.Context, token string, p domain.Period, betType, number string, baseMultiplier float64) (domain.RateQuote, error) {
	if r.cache != nil {
		if q, err := r.cache.Get(ctx, p.ID, betType, number); err == nil {
			metrics.RecordRateLookup(metrics.LookupCached)
			return q, nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			r.logger.WarnContext(ctx, "quote cache read failed", slog.String("error", err.Error()))
		}
	}

	q, err := r.checker.CheckMultiply(ctx, token, domain.RateCheck{
		HuayID:     p.LotteryID,
		StockType:  p.StockType(),
		HuayOption: betType,
		PoyNumber:  number,
		Multiply:   baseMultiplier,
		Value:      1,
	})
	if err != nil {
		metrics.RecordRateLookup(metrics.LookupFallback)
		r.logger.WarnContext(ctx, "rate lookup failed, using base multiplier",
			slog.String("period_id", p.ID),
			slog.String("bet_type", betType),
			slog.String("number", number),
			slog.Float64("base_multiplier", baseMultiplier),
			slog.String("error", err.Error()),
		)
		return Fallback(baseMultiplier), fmt.Errorf("%w: %s %s: %v", domain.ErrRateLookup, betType, number, err)
	}
	metrics.RecordRateLookup(metrics.LookupOK)

	if r.cache != nil {
		if err := r.cache.Set(ctx, p.ID, betType, number, q); err != nil {
			r.logger.WarnContext(ctx, "quote cache write failed", slog.String("error", err.Error()))
		}
	}
	return q, nil
}

// InvalidatePeriod drops the cached quotes of a period. Sold and remaining
// amounts move once a poy is placed.
func (r *RateResolver) InvalidatePeriod(ctx context.Context, periodID string) {
	if r == nil || r.cache == nil {
		return
	}
	if err := r.cache.InvalidatePeriod(ctx, periodID); err != nil {
		r.logger.WarnContext(ctx, "quote cache invalidation failed",
			slog.String("period_id", periodID),
			slog.String("error", err.Error()),
		)
	}
}

// ResolveAll looks up every number concurrently and returns the quotes in
// input order together with the number of fallbacks taken. One failure
// never cancels its siblings.
func (r *RateResolver) ResolveAll(ctx context.Context, token string, p domain.Period, betType string, numbers []string, baseMultiplier float64) ([]domain.RateQuote, int) {
	quotes := make([]domain.RateQuote, len(numbers))
	failed := make([]bool, len(numbers))

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, n := range numbers {
		g.Go(func() error {
			q, err := r.Resolve(ctx, token, p, betType, n, baseMultiplier)
			quotes[i] = q
			failed[i] = err != nil
			return nil
		})
	}
	_ = g.Wait()

	var fallbacks int
	for _, f := range failed {
		if f {
			fallbacks++
		}
	}
	return quotes, fallbacks
}
