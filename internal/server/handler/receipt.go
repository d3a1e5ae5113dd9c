package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/lottobet/internal/domain"
)

// ReceiptService looks up stored receipts.
type ReceiptService interface {
	Get(ctx context.Context, m domain.Member, poyID string) (domain.Receipt, error)
	List(ctx context.Context, m domain.Member, opts domain.ListOpts) ([]domain.Receipt, error)
}

// ReceiptHandler serves submission receipts.
type ReceiptHandler struct {
	receipts ReceiptService
	logger   *slog.Logger
}

// NewReceiptHandler creates a ReceiptHandler.
func NewReceiptHandler(receipts ReceiptService, logger *slog.Logger) *ReceiptHandler {
	return &ReceiptHandler{receipts: receipts, logger: logger}
}

// Get returns one receipt by poy id.
// GET /api/receipts/{poyId}
func (h *ReceiptHandler) Get(w http.ResponseWriter, r *http.Request) {
	m, ok := member(w, r)
	if !ok {
		return
	}
	rec, err := h.receipts.Get(r.Context(), m, pathParam(r, "poyId"))
	if err != nil {
		writeServiceError(w, r, h.logger, "get receipt", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// List returns the member's receipts, newest first.
// GET /api/receipts?limit=&offset=
func (h *ReceiptHandler) List(w http.ResponseWriter, r *http.Request) {
	m, ok := member(w, r)
	if !ok {
		return
	}
	recs, err := h.receipts.List(r.Context(), m, parseListOpts(r))
	if err != nil {
		writeServiceError(w, r, h.logger, "list receipts", err)
		return
	}
	if recs == nil {
		recs = []domain.Receipt{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"receipts": recs})
}
