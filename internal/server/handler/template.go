package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/lottobet/internal/domain"
)

// TemplateService manages saved carts.
type TemplateService interface {
	Save(ctx context.Context, m domain.Member, sessionID, name, description string) (domain.Template, error)
	List(ctx context.Context, m domain.Member, opts domain.ListOpts) ([]domain.Template, int64, error)
	Load(ctx context.Context, m domain.Member, templateID, sessionID string) (domain.AddSummary, error)
	Delete(ctx context.Context, m domain.Member, templateID string) error
}

// TemplateHandler serves saved cart templates.
type TemplateHandler struct {
	templates TemplateService
	logger    *slog.Logger
}

// NewTemplateHandler creates a TemplateHandler.
func NewTemplateHandler(templates TemplateService, logger *slog.Logger) *TemplateHandler {
	return &TemplateHandler{templates: templates, logger: logger}
}

type saveTemplateRequest struct {
	SessionID   string `json:"sessionId"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type loadTemplateRequest struct {
	SessionID string `json:"sessionId"`
}

// List returns the member's templates.
// GET /api/templates?limit=&offset=
func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	m, ok := member(w, r)
	if !ok {
		return
	}
	list, total, err := h.templates.List(r.Context(), m, parseListOpts(r))
	if err != nil {
		writeServiceError(w, r, h.logger, "list templates", err)
		return
	}
	if list == nil {
		list = []domain.Template{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": list, "total": total})
}

// Save stores the session's current cart as a template.
// POST /api/templates
func (h *TemplateHandler) Save(w http.ResponseWriter, r *http.Request) {
	m, ok := member(w, r)
	if !ok {
		return
	}
	var req saveTemplateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.logger, "save template", err)
		return
	}
	tpl, err := h.templates.Save(r.Context(), m, req.SessionID, req.Name, req.Description)
	if err != nil {
		writeServiceError(w, r, h.logger, "save template", err)
		return
	}
	writeJSON(w, http.StatusCreated, tpl)
}

// Load adds a template's items to a session's cart as one undo batch.
// POST /api/templates/{id}/load
func (h *TemplateHandler) Load(w http.ResponseWriter, r *http.Request) {
	m, ok := member(w, r)
	if !ok {
		return
	}
	var req loadTemplateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.logger, "load template", err)
		return
	}
	summary, err := h.templates.Load(r.Context(), m, pathParam(r, "id"), req.SessionID)
	if err != nil {
		writeServiceError(w, r, h.logger, "load template", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Delete removes a template.
// DELETE /api/templates/{id}
func (h *TemplateHandler) Delete(w http.ResponseWriter, r *http.Request) {
	m, ok := member(w, r)
	if !ok {
		return
	}
	if err := h.templates.Delete(r.Context(), m, pathParam(r, "id")); err != nil {
		writeServiceError(w, r, h.logger, "delete template", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
