package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/lottobet/internal/domain"
)

// LotteryService is the pass-through view of the lottery backend.
type LotteryService interface {
	Periods(ctx context.Context, m domain.Member, lotteryCode string) ([]domain.Period, error)
	PeriodRates(ctx context.Context, m domain.Member, periodID string) ([]domain.LotteryRate, error)
	MyBets(ctx context.Context, m domain.Member, q domain.BetQuery) ([]domain.MyBet, int64, error)
	CancelBet(ctx context.Context, m domain.Member, betID string) (string, error)
}

// LotteryHandler serves periods, rates and bet history.
type LotteryHandler struct {
	lottery LotteryService
	logger  *slog.Logger
}

// NewLotteryHandler creates a LotteryHandler.
func NewLotteryHandler(lottery LotteryService, logger *slog.Logger) *LotteryHandler {
	return &LotteryHandler{lottery: lottery, logger: logger}
}

// ListPeriods returns the open periods, optionally for one lottery.
// GET /api/periods?lottery=gov
func (h *LotteryHandler) ListPeriods(w http.ResponseWriter, r *http.Request) {
	m, ok := member(w, r)
	if !ok {
		return
	}
	periods, err := h.lottery.Periods(r.Context(), m, r.URL.Query().Get("lottery"))
	if err != nil {
		writeServiceError(w, r, h.logger, "list periods", err)
		return
	}
	if periods == nil {
		periods = []domain.Period{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"periods": periods})
}

// ListRates returns a period's active rate table.
// GET /api/periods/{id}/rates
func (h *LotteryHandler) ListRates(w http.ResponseWriter, r *http.Request) {
	m, ok := member(w, r)
	if !ok {
		return
	}
	rates, err := h.lottery.PeriodRates(r.Context(), m, pathParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, "list rates", err)
		return
	}
	if rates == nil {
		rates = []domain.LotteryRate{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"rates": rates})
}

// ListBets returns the member's bet history.
// GET /api/bets?lottery=&period=&status=&limit=&offset=
func (h *LotteryHandler) ListBets(w http.ResponseWriter, r *http.Request) {
	m, ok := member(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	opts := parseListOpts(r)
	query := domain.BetQuery{
		LotteryCode: q.Get("lottery"),
		PeriodID:    q.Get("period"),
		Status:      q.Get("status"),
		Limit:       opts.Limit,
		Offset:      opts.Offset,
	}
	bets, total, err := h.lottery.MyBets(r.Context(), m, query)
	if err != nil {
		writeServiceError(w, r, h.logger, "list bets", err)
		return
	}
	if bets == nil {
		bets = []domain.MyBet{}
	}
	w.Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
	writeJSON(w, http.StatusOK, map[string]any{"bets": bets, "total": total})
}

// CancelBet cancels one bet upstream.
// POST /api/bets/{id}/cancel
func (h *LotteryHandler) CancelBet(w http.ResponseWriter, r *http.Request) {
	m, ok := member(w, r)
	if !ok {
		return
	}
	id := pathParam(r, "id")
	msg, err := h.lottery.CancelBet(r.Context(), m, id)
	if err != nil {
		writeServiceError(w, r, h.logger, "cancel bet", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "cancelled", "message": msg})
}
