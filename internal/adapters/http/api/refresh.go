package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/okian/qualtrack/internal/domain/model"
)

const maxRefreshBody = 1 << 12

// RefreshDependencies defines the interface for maintenance operations.
type RefreshDependencies interface {
	ParseSegment(event, age, sex string) (model.Segment, error)
	EnqueueRefresh(ctx context.Context, seg model.Segment) (model.RefreshJob, bool, error)
	EnqueueAll(ctx context.Context) (int, error)
	ClearCache(ctx context.Context) error
}

// RefreshHandler handles refresh and cache requests.
type RefreshHandler struct {
	deps RefreshDependencies
}

// NewRefreshHandler creates a new refresh handler.
func NewRefreshHandler(deps RefreshDependencies) *RefreshHandler {
	return &RefreshHandler{deps: deps}
}

// refreshRequest mirrors the OpenAPI schema for POST /refresh. Query parameters fill
// fields the body leaves empty.
type refreshRequest struct {
	Event string `json:"event"`
	Age   string `json:"age"`
	Sex   string `json:"sex"`
	All   bool   `json:"all"`
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
	JobID     string `json:"jobId,omitempty"`
	Segment   string `json:"segment,omitempty"`
	Accepted  int    `json:"accepted,omitempty"`
}

func decodeRefresh(r *http.Request) (refreshRequest, error) {
	var req refreshRequest
	err := json.NewDecoder(io.LimitReader(r.Body, maxRefreshBody)).Decode(&req)
	if err != nil && !errors.Is(err, io.EOF) {
		return req, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	q := r.URL.Query()
	if req.Event == "" {
		req.Event = q.Get("event")
	}
	if req.Age == "" {
		req.Age = q.Get("age")
	}
	if req.Sex == "" {
		req.Sex = q.Get("sex")
	}
	if !req.All && q.Get("all") == "true" {
		req.All = true
	}
	return req, nil
}

// HandlePostRefresh handles POST /refresh requests.
func (h *RefreshHandler) HandlePostRefresh(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	req, err := decodeRefresh(r)
	if err != nil {
		writeFailure(w, err)
		return
	}

	if req.All {
		n, err := h.deps.EnqueueAll(r.Context())
		if err != nil {
			writeFailure(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", Accepted: n})
		return
	}

	seg, err := h.deps.ParseSegment(req.Event, req.Age, req.Sex)
	if err != nil {
		writeFailure(w, err)
		return
	}
	job, dup, err := h.deps.EnqueueRefresh(r.Context(), seg)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if dup {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true, Segment: seg.Key()})
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", JobID: job.ID, Segment: seg.Key()})
}

// HandlePostClearCache handles POST /cache/clear requests.
func (h *RefreshHandler) HandlePostClearCache(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	if err := h.deps.ClearCache(r.Context()); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Status: "cleared"})
}
