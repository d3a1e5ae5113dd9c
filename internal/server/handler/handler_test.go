package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/lottobet/internal/domain"
	"github.com/alanyoungcy/lottobet/internal/server/middleware"
	"github.com/alanyoungcy/lottobet/internal/service"
)

var testMember = domain.Member{Token: "tok", Owner: "owner-1"}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSessions implements SessionService; unset funcs return zero values.
type fakeSessions struct {
	addNumber    func(req service.AddRequest) (domain.AddSummary, error)
	updateAmount func(lineID string, amount float64) (domain.CartLine, error)
	view         func(id string) (service.SessionView, error)
	gotMember    domain.Member
}

func (f *fakeSessions) Open(_ context.Context, m domain.Member, periodID string, shuffle *bool) (service.SessionView, error) {
	f.gotMember = m
	return service.SessionView{ID: "s-1", Period: domain.Period{ID: periodID}, Shuffle: shuffle != nil && *shuffle}, nil
}

func (f *fakeSessions) View(_ context.Context, _ domain.Member, id string) (service.SessionView, error) {
	return f.view(id)
}

func (f *fakeSessions) Close(context.Context, domain.Member, string) error { return nil }

func (f *fakeSessions) AddNumber(_ context.Context, _ domain.Member, _ string, req service.AddRequest) (domain.AddSummary, error) {
	return f.addNumber(req)
}

func (f *fakeSessions) AddNumbers(_ context.Context, _ domain.Member, _, _ string, numbers []string) (domain.AddSummary, error) {
	return domain.AddSummary{Requested: len(numbers), Added: len(numbers)}, nil
}

func (f *fakeSessions) UpdateAmount(_ context.Context, _ domain.Member, _, lineID string, amount float64) (domain.CartLine, error) {
	return f.updateAmount(lineID, amount)
}

func (f *fakeSessions) RemoveLine(context.Context, domain.Member, string, string) error { return nil }

func (f *fakeSessions) UndoLastBatch(context.Context, domain.Member, string) ([]domain.CartLine, error) {
	return nil, nil
}

func (f *fakeSessions) BulkSetPrice(context.Context, domain.Member, string, float64) (int, error) {
	return 3, nil
}

func (f *fakeSessions) ClearCart(context.Context, domain.Member, string) error { return nil }

type fakeSubmitter struct {
	outcome domain.SubmitOutcome
	err     error
	note    string
}

func (f *fakeSubmitter) Submit(_ context.Context, _ domain.Member, _, note string) (domain.SubmitOutcome, error) {
	f.note = note
	return f.outcome, f.err
}

// serve routes one request through a mux with the member attached.
func serve(t *testing.T, pattern string, h http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(pattern, h)

	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rdr)
	req = req.WithContext(middleware.WithMember(req.Context(), testMember))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", domain.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("x: %w", domain.ErrUnknownBetType), http.StatusBadRequest},
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrPeriodClosed, http.StatusConflict},
		{domain.ErrSubmitInFlight, http.StatusConflict},
		{domain.ErrSessionClosed, http.StatusGone},
		{domain.ErrRateLimited, http.StatusTooManyRequests},
		{domain.ErrUnauthorized, http.StatusUnauthorized},
		{fmt.Errorf("%w: %w", domain.ErrSubmission, errors.New("upstream")), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, statusFor(c.err), c.err.Error())
	}
}

func TestOpenSession(t *testing.T) {
	fs := &fakeSessions{}
	h := NewSessionHandler(fs, &fakeSubmitter{}, discardLogger())

	rec := serve(t, "POST /api/sessions", h.Open, http.MethodPost, "/api/sessions", `{"periodId":"42","shuffle":true}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "s-1", body["id"])
	assert.Equal(t, true, body["shuffle"])
	assert.Equal(t, testMember, fs.gotMember)
}

func TestOpenSessionBadBody(t *testing.T) {
	h := NewSessionHandler(&fakeSessions{}, &fakeSubmitter{}, discardLogger())
	rec := serve(t, "POST /api/sessions", h.Open, http.MethodPost, "/api/sessions", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddNumberMapsErrors(t *testing.T) {
	var got service.AddRequest
	fs := &fakeSessions{addNumber: func(req service.AddRequest) (domain.AddSummary, error) {
		got = req
		if req.BetType == "nope" {
			return domain.AddSummary{}, fmt.Errorf("catalog: %q: %w", req.BetType, domain.ErrUnknownBetType)
		}
		if req.Number == "closed" {
			return domain.AddSummary{}, domain.ErrSessionClosed
		}
		return domain.AddSummary{Requested: 6, Added: 5, Skipped: 1}, nil
	}}
	h := NewSessionHandler(fs, &fakeSubmitter{}, discardLogger())
	const pattern = "POST /api/sessions/{id}/numbers"

	rec := serve(t, pattern, h.AddNumber, http.MethodPost, "/api/sessions/s-1/numbers", `{"betType":"3top","number":"123","shuffle":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(5), decode(t, rec)["added"])
	require.NotNil(t, got.Shuffle)
	assert.False(t, *got.Shuffle)

	rec = serve(t, pattern, h.AddNumber, http.MethodPost, "/api/sessions/s-1/numbers", `{"betType":"nope","number":"1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "unknown bet type")

	rec = serve(t, pattern, h.AddNumber, http.MethodPost, "/api/sessions/s-1/numbers", `{"betType":"3top","number":"closed"}`)
	assert.Equal(t, http.StatusGone, rec.Code)
}

func TestUpdateLineRequiresAmount(t *testing.T) {
	fs := &fakeSessions{updateAmount: func(lineID string, amount float64) (domain.CartLine, error) {
		return domain.CartLine{ID: lineID, Amount: amount}, nil
	}}
	h := NewSessionHandler(fs, &fakeSubmitter{}, discardLogger())
	const pattern = "PATCH /api/sessions/{id}/lines/{lineId}"

	rec := serve(t, pattern, h.UpdateLine, http.MethodPatch, "/api/sessions/s-1/lines/l-9", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, pattern, h.UpdateLine, http.MethodPatch, "/api/sessions/s-1/lines/l-9", `{"amount":0}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "l-9", body["id"])
	assert.Equal(t, float64(0), body["amount"])
}

func TestSubmitOutcomes(t *testing.T) {
	const pattern = "POST /api/sessions/{id}/submit"

	ok := &fakeSubmitter{outcome: domain.SubmitOutcome{State: domain.SubmitSuccess, Receipt: &domain.Receipt{PoyID: "P1"}}}
	rec := serve(t, pattern, NewSessionHandler(&fakeSessions{}, ok, discardLogger()).Submit,
		http.MethodPost, "/api/sessions/s-1/submit", `{"note":"lucky"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "lucky", ok.note)
	assert.Equal(t, "P1", decode(t, rec)["receipt"].(map[string]any)["poy_id"])

	failed := &fakeSubmitter{
		outcome: domain.SubmitOutcome{State: domain.SubmitFailed, Reason: "limit exceeded"},
		err:     fmt.Errorf("submit_service: %w: %w", domain.ErrSubmission, errors.New("400")),
	}
	rec = serve(t, pattern, NewSessionHandler(&fakeSessions{}, failed, discardLogger()).Submit,
		http.MethodPost, "/api/sessions/s-1/submit", "")
	require.Equal(t, http.StatusBadGateway, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "limit exceeded", body["error"])
	assert.Equal(t, "failed", body["outcome"].(map[string]any)["state"])

	ignored := &fakeSubmitter{outcome: domain.SubmitOutcome{State: domain.SubmitSubmitting, Ignored: true}}
	rec = serve(t, pattern, NewSessionHandler(&fakeSessions{}, ignored, discardLogger()).Submit,
		http.MethodPost, "/api/sessions/s-1/submit", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	closed := &fakeSubmitter{err: fmt.Errorf("submit_service: period 42: %w", domain.ErrPeriodClosed)}
	rec = serve(t, pattern, NewSessionHandler(&fakeSessions{}, closed, discardLogger()).Submit,
		http.MethodPost, "/api/sessions/s-1/submit", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetSessionNotFound(t *testing.T) {
	fs := &fakeSessions{view: func(id string) (service.SessionView, error) {
		return service.SessionView{}, fmt.Errorf("session_service: session %s: %w", id, domain.ErrNotFound)
	}}
	h := NewSessionHandler(fs, &fakeSubmitter{}, discardLogger())
	rec := serve(t, "GET /api/sessions/{id}", h.Get, http.MethodGet, "/api/sessions/zzz", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInternalErrorIsHidden(t *testing.T) {
	fs := &fakeSessions{view: func(string) (service.SessionView, error) {
		return service.SessionView{}, errors.New("pq: connection refused at 10.0.0.3")
	}}
	h := NewSessionHandler(fs, &fakeSubmitter{}, discardLogger())
	rec := serve(t, "GET /api/sessions/{id}", h.Get, http.MethodGet, "/api/sessions/a", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "get session failed", decode(t, rec)["error"])
}

func TestMissingMember(t *testing.T) {
	h := NewSessionHandler(&fakeSessions{}, &fakeSubmitter{}, discardLogger())
	rec := httptest.NewRecorder()
	h.Open(rec, httptest.NewRequest(http.MethodPost, "/api/sessions", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

type fakeLottery struct {
	query domain.BetQuery
}

func (f *fakeLottery) Periods(context.Context, domain.Member, string) ([]domain.Period, error) {
	return nil, nil
}

func (f *fakeLottery) PeriodRates(_ context.Context, _ domain.Member, id string) ([]domain.LotteryRate, error) {
	if id == "missing" {
		return nil, domain.ErrNotFound
	}
	return []domain.LotteryRate{{BetType: "teng_bon_3", Multiply: 900}}, nil
}

func (f *fakeLottery) MyBets(_ context.Context, _ domain.Member, q domain.BetQuery) ([]domain.MyBet, int64, error) {
	f.query = q
	return []domain.MyBet{{ID: "b1"}}, 11, nil
}

func (f *fakeLottery) CancelBet(context.Context, domain.Member, string) (string, error) {
	return "cancelled", nil
}

func TestLotteryHandler(t *testing.T) {
	fl := &fakeLottery{}
	h := NewLotteryHandler(fl, discardLogger())

	rec := serve(t, "GET /api/periods", h.ListPeriods, http.MethodGet, "/api/periods", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"periods":[]}`, rec.Body.String())

	rec = serve(t, "GET /api/periods/{id}/rates", h.ListRates, http.MethodGet, "/api/periods/missing/rates", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(t, "GET /api/bets", h.ListBets, http.MethodGet, "/api/bets?status=pending&limit=5&offset=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "11", rec.Header().Get("X-Total-Count"))
	assert.Equal(t, domain.BetQuery{Status: "pending", Limit: 5, Offset: 10}, fl.query)

	rec = serve(t, "POST /api/bets/{id}/cancel", h.CancelBet, http.MethodPost, "/api/bets/b1/cancel", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "b1", decode(t, rec)["id"])
}

func TestHealthCheckDegraded(t *testing.T) {
	h := NewHealthHandler(map[string]Check{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("dial tcp: refused") },
	}, discardLogger())

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "ok", body["dependencies"].(map[string]any)["postgres"])
}
