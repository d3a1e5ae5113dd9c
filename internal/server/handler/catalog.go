package handler

import (
	"net/http"

	"github.com/alanyoungcy/lottobet/internal/domain"
)

// CatalogSource lists the known bet types.
type CatalogSource interface {
	List() []domain.BetTypeDefinition
}

// CatalogHandler serves the bet-type catalog.
type CatalogHandler struct {
	catalog CatalogSource
}

// NewCatalogHandler creates a CatalogHandler.
func NewCatalogHandler(c CatalogSource) *CatalogHandler {
	return &CatalogHandler{catalog: c}
}

// List returns every bet type with its digit count, permutation class and
// base multiplier.
// GET /api/catalog
func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"bet_types": h.catalog.List()})
}
