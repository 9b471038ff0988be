package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/okian/qualtrack/internal/adapters/repository"
	"github.com/okian/qualtrack/internal/domain/model"
)

// RankDependencies defines the interface for rank operations.
type RankDependencies interface {
	ParseSegment(event, age, sex string) (model.Segment, error)
	Rank(ctx context.Context, seg model.Segment, id string) (repository.Entry, error)
}

// RankHandler handles rank requests.
type RankHandler struct {
	deps RankDependencies
}

// NewRankHandler creates a new rank handler.
func NewRankHandler(deps RankDependencies) *RankHandler {
	return &RankHandler{deps: deps}
}

// HandleGetRank handles GET /rank/{tiref-or-name}?event=&age=&sex= requests.
func (h *RankHandler) HandleGetRank(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	// Extract path parameter after /rank/
	id, err := url.PathUnescape(strings.TrimPrefix(r.URL.EscapedPath(), "/rank/"))
	if err != nil || strings.TrimSpace(id) == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	seg, err := segmentFrom(h.deps, r.URL.Query())
	if err != nil {
		writeFailure(w, err)
		return
	}
	entry, err := h.deps.Rank(r.Context(), seg, id)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
