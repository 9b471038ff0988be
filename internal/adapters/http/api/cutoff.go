package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	service "github.com/okian/qualtrack/internal/app"
	"github.com/okian/qualtrack/internal/domain/model"
	"github.com/okian/qualtrack/internal/report"
)

// CutoffDependencies defines the interface for cutoff and prediction operations.
type CutoffDependencies interface {
	ParseSegment(event, age, sex string) (model.Segment, error)
	CutoffSeries(ctx context.Context, req service.CutoffRequest) (service.CutoffReport, error)
	Predict(ctx context.Context, req service.PredictRequest) (service.PredictReport, error)
	VirtualRanking(ctx context.Context, seg model.Segment, w service.Window, level string) ([]model.RankingMonth, error)
}

// CutoffHandler handles the analysis endpoints.
type CutoffHandler struct {
	deps CutoffDependencies
}

// NewCutoffHandler creates a new cutoff handler.
func NewCutoffHandler(deps CutoffDependencies) *CutoffHandler {
	return &CutoffHandler{deps: deps}
}

func windowFrom(q url.Values) (service.Window, error) {
	months, err := intParam(q, "months", 0)
	if err != nil {
		return service.Window{}, err
	}
	return service.Window{Months: months, Start: q.Get("start"), End: q.Get("end")}, nil
}

func (h *CutoffHandler) cutoff(r *http.Request) (service.CutoffReport, error) {
	q := r.URL.Query()
	seg, err := segmentFrom(h.deps, q)
	if err != nil {
		return service.CutoffReport{}, err
	}
	w, err := windowFrom(q)
	if err != nil {
		return service.CutoffReport{}, err
	}
	return h.deps.CutoffSeries(r.Context(), service.CutoffRequest{
		Segment: seg,
		Swimmer: q.Get("swimmer"),
		Window:  w,
		Level:   q.Get("level"),
	})
}

// HandleGetCutoff handles GET /cutoff?event=&age=&sex=&swimmer=&months=&start=&end=&level= requests.
func (h *CutoffHandler) HandleGetCutoff(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	rep, err := h.cutoff(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// HandleGetCutoffChart handles GET /chart/cutoff.png with the same parameters as /cutoff.
func (h *CutoffHandler) HandleGetCutoffChart(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	rep, err := h.cutoff(r)
	if err != nil {
		writeFailure(w, err)
		return
	}

	var buf bytes.Buffer
	title := fmt.Sprintf("%s %s %s: virtual %d cutoff", rep.Segment.Event, rep.Segment.AgeGroup, rep.Segment.Sex, rep.CutoffSize)
	if err := report.CutoffChart(&buf, title, rep.CutoffSeries, rep.TrackedName, rep.TrackedSeries); err != nil {
		if errors.Is(err, report.ErrNotEnoughData) {
			writeError(w, http.StatusUnprocessableEntity, "not_enough_data", err)
			return
		}
		writeFailure(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// HandleGetPredict handles GET /predict?event=&age=&sex=&swimmer=&qualEnd=&baseline=&k=&level= requests.
func (h *CutoffHandler) HandleGetPredict(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	seg, err := segmentFrom(h.deps, q)
	if err != nil {
		writeFailure(w, err)
		return
	}
	k, err := floatParam(q, "k")
	if err != nil {
		writeFailure(w, err)
		return
	}
	rep, err := h.deps.Predict(r.Context(), service.PredictRequest{
		Segment:  seg,
		Swimmer:  q.Get("swimmer"),
		QualEnd:  q.Get("qualEnd"),
		Baseline: q.Get("baseline"),
		Level:    q.Get("level"),
		K:        k,
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

type virtualRankingResponse struct {
	Segment model.Segment        `json:"segment"`
	Months  []model.RankingMonth `json:"months"`
}

// HandleGetVirtualRanking handles GET /virtual-ranking?event=&age=&sex=&months=&start=&end=&level= requests.
func (h *CutoffHandler) HandleGetVirtualRanking(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	seg, err := segmentFrom(h.deps, q)
	if err != nil {
		writeFailure(w, err)
		return
	}
	win, err := windowFrom(q)
	if err != nil {
		writeFailure(w, err)
		return
	}
	months, err := h.deps.VirtualRanking(r.Context(), seg, win, q.Get("level"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, virtualRankingResponse{Segment: seg, Months: months})
}
