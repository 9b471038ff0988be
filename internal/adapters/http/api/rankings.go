package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/okian/qualtrack/internal/adapters/repository"
	"github.com/okian/qualtrack/internal/domain/model"
)

const defaultRankingsLimit = 50

// RankingsDependencies defines the interface for ranking list operations.
type RankingsDependencies interface {
	ParseSegment(event, age, sex string) (model.Segment, error)
	Rankings(ctx context.Context, seg model.Segment) ([]model.RankedSwimmer, error)
	PersonalBests(ctx context.Context, seg model.Segment, tiref string) ([]model.PersonalBest, error)
	Top(ctx context.Context, seg model.Segment, n int) ([]repository.Entry, error)
}

// RankingsHandler handles scraped ranking and history requests.
type RankingsHandler struct {
	deps     RankingsDependencies
	maxLimit int
}

// NewRankingsHandler creates a new rankings handler.
func NewRankingsHandler(deps RankingsDependencies, maxLimit int) *RankingsHandler {
	if maxLimit < 1 {
		maxLimit = defaultRankingsLimit
	}
	return &RankingsHandler{deps: deps, maxLimit: maxLimit}
}

type rankingsResponse struct {
	Segment model.Segment         `json:"segment"`
	Rows    []model.RankedSwimmer `json:"rows"`
	Board   []repository.Entry    `json:"board"`
}

// HandleGetRankings handles GET /rankings?event=&age=&sex=&limit= requests.
func (h *RankingsHandler) HandleGetRankings(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	seg, err := segmentFrom(h.deps, q)
	if err != nil {
		writeFailure(w, err)
		return
	}
	limit, err := intParam(q, "limit", defaultRankingsLimit)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if limit < 1 || limit > h.maxLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded", fmt.Errorf("%w: limit must be 1..%d", ErrBadRequest, h.maxLimit))
		return
	}

	rows, err := h.deps.Rankings(r.Context(), seg)
	if err != nil {
		writeFailure(w, err)
		return
	}
	board, err := h.deps.Top(r.Context(), seg, limit)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rankingsResponse{Segment: seg, Rows: rows, Board: board})
}

type personalBestsResponse struct {
	Segment model.Segment        `json:"segment"`
	Tiref   string               `json:"tiref"`
	Records []model.PersonalBest `json:"records"`
}

// HandleGetPersonalBests handles GET /personal-bests?event=&age=&sex=&tiref= requests.
func (h *RankingsHandler) HandleGetPersonalBests(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	seg, err := segmentFrom(h.deps, q)
	if err != nil {
		writeFailure(w, err)
		return
	}
	tiref := q.Get("tiref")
	if tiref == "" {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: tiref is required", ErrBadRequest))
		return
	}
	records, err := h.deps.PersonalBests(r.Context(), seg, tiref)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if records == nil {
		records = []model.PersonalBest{}
	}
	writeJSON(w, http.StatusOK, personalBestsResponse{Segment: seg, Tiref: tiref, Records: records})
}
