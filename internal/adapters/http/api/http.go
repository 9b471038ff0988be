// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/qualtrack/internal/adapters/repository"
	service "github.com/okian/qualtrack/internal/app"
	"github.com/okian/qualtrack/internal/domain/events"
	"github.com/okian/qualtrack/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	ParseSegment(event, age, sex string) (model.Segment, error)
	Catalogue() *events.Catalogue

	// Scraped data, cached.
	Rankings(ctx context.Context, seg model.Segment) ([]model.RankedSwimmer, error)
	PersonalBests(ctx context.Context, seg model.Segment, tiref string) ([]model.PersonalBest, error)

	// Analysis.
	CutoffSeries(ctx context.Context, req service.CutoffRequest) (service.CutoffReport, error)
	Predict(ctx context.Context, req service.PredictRequest) (service.PredictReport, error)
	VirtualRanking(ctx context.Context, seg model.Segment, w service.Window, level string) ([]model.RankingMonth, error)

	// Live board and stored snapshots.
	Rank(ctx context.Context, seg model.Segment, id string) (repository.Entry, error)
	Top(ctx context.Context, seg model.Segment, n int) ([]repository.Entry, error)
	RankingTrend(ctx context.Context, seg model.Segment, swimmer string, limit int) ([]repository.TrendPoint, error)
	ClubReport(ctx context.Context, club string) ([]repository.Appearance, error)

	// Maintenance.
	EnqueueRefresh(ctx context.Context, seg model.Segment) (model.RefreshJob, bool, error)
	EnqueueAll(ctx context.Context) (int, error)
	ClearCache(ctx context.Context) error
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	catalogHandler  *CatalogueHandler
	rankingsHandler *RankingsHandler
	rankHandler     *RankHandler
	cutoffHandler   *CutoffHandler
	historyHandler  *HistoryHandler
	refreshHandler  *RefreshHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxLimit int) *Server {
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		catalogHandler:  NewCatalogueHandler(deps),
		rankingsHandler: NewRankingsHandler(deps, maxLimit),
		rankHandler:     NewRankHandler(deps),
		cutoffHandler:   NewCutoffHandler(deps),
		historyHandler:  NewHistoryHandler(deps, maxLimit),
		refreshHandler:  NewRefreshHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/events", MetricsMiddleware(s.catalogHandler.HandleGetEvents, "events"))
	mux.HandleFunc("/rankings", MetricsMiddleware(s.rankingsHandler.HandleGetRankings, "rankings"))
	mux.HandleFunc("/personal-bests", MetricsMiddleware(s.rankingsHandler.HandleGetPersonalBests, "personal_bests"))
	mux.HandleFunc("/rank/", MetricsMiddleware(s.rankHandler.HandleGetRank, "rank"))
	mux.HandleFunc("/cutoff", MetricsMiddleware(s.cutoffHandler.HandleGetCutoff, "cutoff"))
	mux.HandleFunc("/chart/cutoff.png", MetricsMiddleware(s.cutoffHandler.HandleGetCutoffChart, "cutoff_chart"))
	mux.HandleFunc("/predict", MetricsMiddleware(s.cutoffHandler.HandleGetPredict, "predict"))
	mux.HandleFunc("/virtual-ranking", MetricsMiddleware(s.cutoffHandler.HandleGetVirtualRanking, "virtual_ranking"))
	mux.HandleFunc("/ranking-trend", MetricsMiddleware(s.historyHandler.HandleGetRankingTrend, "ranking_trend"))
	mux.HandleFunc("/club", MetricsMiddleware(s.historyHandler.HandleGetClub, "club"))
	mux.HandleFunc("/refresh", MetricsMiddleware(s.refreshHandler.HandlePostRefresh, "refresh"))
	mux.HandleFunc("/cache/clear", MetricsMiddleware(s.refreshHandler.HandlePostClearCache, "cache_clear"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps err to its status code and writes it.
func writeFailure(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}
