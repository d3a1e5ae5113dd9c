package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/lottobet/internal/domain"
)

// LotteryBackend is the read side of the lottery backend plus bet
// cancellation.
type LotteryBackend interface {
	OpenPeriods(ctx context.Context, token, lotteryCode string) ([]domain.Period, error)
	Period(ctx context.Context, token, periodID string) (domain.Period, error)
	Rates(ctx context.Context, token string, lotteryID int64) ([]domain.LotteryRate, error)
	MyBets(ctx context.Context, token string, q domain.BetQuery) ([]domain.MyBet, int64, error)
	CancelBet(ctx context.Context, token, betID string) (string, error)
}

// LotteryService passes period, rate and bet history queries through to the
// backend.
type LotteryService struct {
	backend LotteryBackend
	audit   domain.AuditStore
	logger  *slog.Logger
}

// NewLotteryService creates a LotteryService. audit may be nil.
func NewLotteryService(backend LotteryBackend, audit domain.AuditStore, logger *slog.Logger) *LotteryService {
	return &LotteryService{
		backend: backend,
		audit:   audit,
		logger:  logger.With(slog.String("component", "lottery_service")),
	}
}

// Periods lists open periods, optionally for one lottery code.
func (s *LotteryService) Periods(ctx context.Context, m domain.Member, lotteryCode string) ([]domain.Period, error) {
	ps, err := s.backend.OpenPeriods(ctx, m.Token, strings.TrimSpace(lotteryCode))
	if err != nil {
		return nil, fmt.Errorf("lottery_service: periods: %w", err)
	}
	return ps, nil
}

// PeriodRates returns the rate table of one open period.
func (s *LotteryService) PeriodRates(ctx context.Context, m domain.Member, periodID string) ([]domain.LotteryRate, error) {
	p, err := s.backend.Period(ctx, m.Token, periodID)
	if err != nil {
		return nil, fmt.Errorf("lottery_service: rates: %w", err)
	}
	rates, err := s.backend.Rates(ctx, m.Token, p.LotteryID)
	if err != nil {
		return nil, fmt.Errorf("lottery_service: rates: %w", err)
	}
	return rates, nil
}

// MyBets returns a page of the member's bet history.
func (s *LotteryService) MyBets(ctx context.Context, m domain.Member, q domain.BetQuery) ([]domain.MyBet, int64, error) {
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 20
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	bets, total, err := s.backend.MyBets(ctx, m.Token, q)
	if err != nil {
		return nil, 0, fmt.Errorf("lottery_service: my bets: %w", err)
	}
	return bets, total, nil
}

// CancelBet cancels one pending bet and records it in the audit log.
func (s *LotteryService) CancelBet(ctx context.Context, m domain.Member, betID string) (string, error) {
	if betID == "" {
		return "", fmt.Errorf("lottery_service: cancel: %w: bet id is required", domain.ErrValidation)
	}
	msg, err := s.backend.CancelBet(ctx, m.Token, betID)
	if err != nil {
		return "", fmt.Errorf("lottery_service: cancel: %w", err)
	}

	s.logger.InfoContext(ctx, "bet cancelled", slog.String("bet_id", betID))
	if s.audit != nil {
		if err := s.audit.Log(ctx, "bet_cancelled", map[string]any{
			"bet_id": betID,
			"owner":  m.Owner,
		}); err != nil {
			s.logger.WarnContext(ctx, "audit log failed", slog.String("error", err.Error()))
		}
	}
	return msg, nil
}
