package api

import (
	"net/http"

	"github.com/okian/qualtrack/internal/domain/events"
)

// CatalogueDependencies exposes the ranked events.
type CatalogueDependencies interface {
	Catalogue() *events.Catalogue
}

// CatalogueHandler handles event catalogue requests.
type CatalogueHandler struct {
	deps CatalogueDependencies
}

// NewCatalogueHandler creates a new catalogue handler.
func NewCatalogueHandler(deps CatalogueDependencies) *CatalogueHandler {
	return &CatalogueHandler{deps: deps}
}

// HandleGetEvents handles GET /events requests.
func (h *CatalogueHandler) HandleGetEvents(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Catalogue())
}
