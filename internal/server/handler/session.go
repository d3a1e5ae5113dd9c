package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/lottobet/internal/domain"
	"github.com/alanyoungcy/lottobet/internal/service"
)

// SessionService is what the session handler needs from the service layer.
type SessionService interface {
	Open(ctx context.Context, m domain.Member, periodID string, shuffle *bool) (service.SessionView, error)
	View(ctx context.Context, m domain.Member, id string) (service.SessionView, error)
	Close(ctx context.Context, m domain.Member, id string) error
	AddNumber(ctx context.Context, m domain.Member, id string, req service.AddRequest) (domain.AddSummary, error)
	AddNumbers(ctx context.Context, m domain.Member, id, betType string, numbers []string) (domain.AddSummary, error)
	UpdateAmount(ctx context.Context, m domain.Member, id, lineID string, amount float64) (domain.CartLine, error)
	RemoveLine(ctx context.Context, m domain.Member, id, lineID string) error
	UndoLastBatch(ctx context.Context, m domain.Member, id string) ([]domain.CartLine, error)
	BulkSetPrice(ctx context.Context, m domain.Member, id string, amount float64) (int, error)
	ClearCart(ctx context.Context, m domain.Member, id string) error
}

// Submitter places a session's cart as one bulk bet.
type Submitter interface {
	Submit(ctx context.Context, m domain.Member, sessionID, note string) (domain.SubmitOutcome, error)
}

// SessionHandler serves betting sessions and their carts.
type SessionHandler struct {
	sessions SessionService
	submit   Submitter
	logger   *slog.Logger
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(sessions SessionService, submit Submitter, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, submit: submit, logger: logger}
}

type openSessionRequest struct {
	PeriodID string `json:"periodId"`
	Shuffle  *bool  `json:"shuffle"`
}

type addNumberRequest struct {
	BetType string `json:"betType"`
	Number  string `json:"number"`
	Shuffle *bool  `json:"shuffle"`
}

type addNumbersRequest struct {
	BetType string   `json:"betType"`
	Numbers []string `json:"numbers"`
}

type amountRequest struct {
	Amount *float64 `json:"amount"`
}

type submitRequest struct {
	Note string `json:"note"`
}

// Open starts a session for a period.
// POST /api/sessions
func (h *SessionHandler) Open(w http.ResponseWriter, r *http.Request) {
	m, ok := member(w, r)
	if !ok {
		return
	}
	var req openSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.logger, "open session", err)
		return
	}
	view, err := h.sessions.Open(r.Context(), m, req.PeriodID, req.Shuffle)
	if err != nil {
		writeServiceError(w, r, h.logger, "open session", err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// Get returns the session's cart view.
// GET /api/sessions/{id}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	m, ok := member(w, r)
	if !ok {
		return
	}
	view, err := h.sessions.View(r.Context(), m, pathParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, "get session", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Close ends the session. Lookups still in flight are discarded.
// DELETE /api/sessions/{id}
func (h *SessionHandler) Close(w http.ResponseWriter, r *http.Request) {
	m, ok := member(w, r)
	if !ok {
		return
	}
	if err := h.sessions.Close(r.Context(), m, pathParam(r, "id")); err != nil {
		writeServiceError(w, r, h.logger, "close session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddNumber adds one number, expanded into its permutations when shuffle is
// on.
// POST /api/sessions/{id}/numbers
func (h *SessionHandler) AddNumber(w http.ResponseWriter, r *http.Request) {
	m, ok := member(w, r)
	if !ok {
		return
	}
	var req addNumberRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.logger, "add number", err)
		return
	}
	summary, err := h.sessions.AddNumber(r.Context(), m, pathParam(r, "id"), service.AddRequest{
		BetType: req.BetType,
		Number:  req.Number,
		Shuffle: req.Shuffle,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, "add number", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// AddNumbers adds many numbers at the base rate without rate lookups.
// POST /api/sessions/{id}/numbers/bulk
func (h *SessionHandler) AddNumbers(w http.ResponseWriter, r *http.Request) {
	m, ok := member(w, r)
	if !ok {
		return
	}
	var req addNumbersRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.logger, "add numbers", err)
		return
	}
	summary, err := h.sessions.AddNumbers(r.Context(), m, pathParam(r, "id"), req.BetType, req.Numbers)
	if err != nil {
		writeServiceError(w, r, h.logger, "add numbers", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// UpdateLine sets one line's amount.
// PATCH /api/sessions/{id}/lines/{lineId}
func (h *SessionHandler) UpdateLine(w http.ResponseWriter, r *http.Request) {
	m, ok := member(w, r)
	if !ok {
		return
	}
	amount, ok := h.amount(w, r, "update line")
	if !ok {
		return
	}
	line, err := h.sessions.UpdateAmount(r.Context(), m, pathParam(r, "id"), pathParam(r, "lineId"), amount)
	if err != nil {
		writeServiceError(w, r, h.logger, "update line", err)
		return
	}
	writeJSON(w, http.StatusOK, line)
}

// RemoveLine deletes one line.
// DELETE /api/sessions/{id}/lines/{lineId}
func (h *SessionHandler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	m, ok := member(w, r)
	if !ok {
		return
	}
	if err := h.sessions.RemoveLine(r.Context(), m, pathParam(r, "id"), pathParam(r, "lineId")); err != nil {
		writeServiceError(w, r, h.logger, "remove line", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Undo removes the most recent add batch.
// POST /api/sessions/{id}/undo
func (h *SessionHandler) Undo(w http.ResponseWriter, r *http.Request) {
	m, ok := member(w, r)
	if !ok {
		return
	}
	removed, err := h.sessions.UndoLastBatch(r.Context(), m, pathParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, "undo", err)
		return
	}
	if removed == nil {
		removed = []domain.CartLine{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": removed})
}

// SetPrice sets every line's amount.
// POST /api/sessions/{id}/price
func (h *SessionHandler) SetPrice(w http.ResponseWriter, r *http.Request) {
	m, ok := member(w, r)
	if !ok {
		return
	}
	amount, ok := h.amount(w, r, "set price")
	if !ok {
		return
	}
	n, err := h.sessions.BulkSetPrice(r.Context(), m, pathParam(r, "id"), amount)
	if err != nil {
		writeServiceError(w, r, h.logger, "set price", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": n})
}

// Clear empties the cart.
// DELETE /api/sessions/{id}/lines
func (h *SessionHandler) Clear(w http.ResponseWriter, r *http.Request) {
	m, ok := member(w, r)
	if !ok {
		return
	}
	if err := h.sessions.ClearCart(r.Context(), m, pathParam(r, "id")); err != nil {
		writeServiceError(w, r, h.logger, "clear cart", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Submit sends the cart as one bulk bet. A rejected submission answers 502
// with the outcome so the client can show the reason; a submission already
// in flight answers 409.
// POST /api/sessions/{id}/submit
func (h *SessionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	m, ok := member(w, r)
	if !ok {
		return
	}
	var req submitRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeServiceError(w, r, h.logger, "submit", err)
			return
		}
	}

	outcome, err := h.submit.Submit(r.Context(), m, pathParam(r, "id"), req.Note)
	switch {
	case err != nil && errors.Is(err, domain.ErrSubmission):
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":   outcome.Reason,
			"outcome": outcome,
		})
	case err != nil:
		writeServiceError(w, r, h.logger, "submit", err)
	case outcome.Ignored:
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":   domain.ErrSubmitInFlight.Error(),
			"outcome": outcome,
		})
	default:
		writeJSON(w, http.StatusOK, outcome)
	}
}

func (h *SessionHandler) amount(w http.ResponseWriter, r *http.Request, op string) (float64, bool) {
	var req amountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.logger, op, err)
		return 0, false
	}
	if req.Amount == nil {
		writeError(w, http.StatusBadRequest, "amount is required")
		return 0, false
	}
	return *req.Amount, true
}
