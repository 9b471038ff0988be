package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/okian/qualtrack/internal/adapters/repository"
	"github.com/okian/qualtrack/internal/domain/model"
)

// HistoryDependencies defines the interface for snapshot queries.
type HistoryDependencies interface {
	ParseSegment(event, age, sex string) (model.Segment, error)
	RankingTrend(ctx context.Context, seg model.Segment, swimmer string, limit int) ([]repository.TrendPoint, error)
	ClubReport(ctx context.Context, club string) ([]repository.Appearance, error)
}

// HistoryHandler serves queries over stored snapshots.
type HistoryHandler struct {
	deps     HistoryDependencies
	maxLimit int
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(deps HistoryDependencies, maxLimit int) *HistoryHandler {
	if maxLimit < 1 {
		maxLimit = defaultRankingsLimit
	}
	return &HistoryHandler{deps: deps, maxLimit: maxLimit}
}

type trendResponse struct {
	Swimmer string                  `json:"swimmer"`
	Segment string                  `json:"segment,omitempty"`
	Points  []repository.TrendPoint `json:"points"`
}

// HandleGetRankingTrend handles GET /ranking-trend?swimmer=&limit=&event=&age=&sex= requests.
// Without an event the trend spans every stored segment.
func (h *HistoryHandler) HandleGetRankingTrend(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	swimmer := q.Get("swimmer")
	limit, err := intParam(q, "limit", 0)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if limit > h.maxLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded", fmt.Errorf("%w: limit must be at most %d", ErrBadRequest, h.maxLimit))
		return
	}
	var seg model.Segment
	if q.Get("event") != "" {
		if seg, err = segmentFrom(h.deps, q); err != nil {
			writeFailure(w, err)
			return
		}
	}
	points, err := h.deps.RankingTrend(r.Context(), seg, swimmer, limit)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if points == nil {
		points = []repository.TrendPoint{}
	}
	resp := trendResponse{Swimmer: swimmer, Points: points}
	if seg != (model.Segment{}) {
		resp.Segment = seg.Key()
	}
	writeJSON(w, http.StatusOK, resp)
}

type clubResponse struct {
	Club        string                  `json:"club"`
	Appearances []repository.Appearance `json:"appearances"`
}

// HandleGetClub handles GET /club?name= requests.
func (h *HistoryHandler) HandleGetClub(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	name := r.URL.Query().Get("name")
	rows, err := h.deps.ClubReport(r.Context(), name)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if rows == nil {
		rows = []repository.Appearance{}
	}
	writeJSON(w, http.StatusOK, clubResponse{Club: name, Appearances: rows})
}
