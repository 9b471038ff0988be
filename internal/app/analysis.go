package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/okian/qualtrack/internal/adapters/repository"
	"github.com/okian/qualtrack/internal/domain/cutoff"
	"github.com/okian/qualtrack/internal/domain/identity"
	"github.com/okian/qualtrack/internal/domain/model"
	"github.com/okian/qualtrack/internal/domain/predict"
	"github.com/okian/qualtrack/internal/domain/swimtime"
	"github.com/okian/qualtrack/pkg/logger"
	"github.com/okian/qualtrack/pkg/metrics"
)

// Window selects the months of a series: an explicit Start..End range ("YYYY-MM"), or the
// last Months months.
type Window struct {
	Months int
	Start  string
	End    string
}

// CutoffRequest asks for a segment's virtual cutoff series.
type CutoffRequest struct {
	Segment model.Segment
	Swimmer string // tiref or name; empty skips the tracked series
	Window  Window
	Level   string
}

// CutoffReport is the cutoff series with the tracked swimmer's times beside it.
type CutoffReport struct {
	Segment       model.Segment        `json:"segment"`
	CutoffSize    int                  `json:"cutoffSize"`
	Floor         model.Seconds        `json:"floor"`
	Months        []string             `json:"months"`
	CutoffSeries  []model.CutoffEntry  `json:"cutoffSeries"`
	TrackedName   string               `json:"trackedName,omitempty"`
	TrackedSeries []model.TrackedEntry `json:"trackedSeries,omitempty"`
}

// PredictRequest asks for projections to the end of the qualifying window.
type PredictRequest struct {
	Segment  model.Segment
	Swimmer  string
	QualEnd  string // YYYY-MM-DD; defaults to the ranking date
	Baseline string // YYYY-MM; empty skips the baseline-drop projection
	Level    string
	K        float64
}

// PredictReport bundles the cohort and tracked projections.
type PredictReport struct {
	Segment     model.Segment            `json:"segment"`
	QualEnd     string                   `json:"qualEnd"`
	CutoffSize  int                      `json:"cutoffSize"`
	Cohort      model.CohortPrediction   `json:"cohort"`
	TrackedName string                   `json:"trackedName,omitempty"`
	Tracked     *model.TrackedPrediction `json:"tracked,omitempty"`
	Drop        *model.DropPrediction    `json:"drop,omitempty"`
}

func (s *Service) months(w Window, anchor time.Time) ([]string, error) {
	if w.Start != "" || w.End != "" {
		months := swimtime.MonthRange(w.Start, w.End)
		if len(months) == 0 {
			return nil, fmt.Errorf("%w: month range %q..%q", ErrBadRequest, w.Start, w.End)
		}
		return months, nil
	}
	n := w.Months
	if n <= 0 {
		n = s.defaultMonths
	}
	return swimtime.LastNMonths(anchor, n), nil
}

// load returns the ranking list and the cohort of ranked swimmers' histories.
func (s *Service) load(ctx context.Context, seg model.Segment) ([]model.RankedSwimmer, []model.SwimmerTimeline, error) {
	date := s.RankingDate()
	rows, err := s.rankings(ctx, seg, date, false)
	if err != nil {
		return nil, nil, err
	}
	cohort, err := s.cohort(ctx, seg, rows, date, false)
	if err != nil {
		return nil, nil, err
	}
	return rows, cohort, nil
}

// tracked finds the swimmer in the cohort. A numeric query outside the cohort is fetched
// directly by tiref.
func (s *Service) tracked(ctx context.Context, seg model.Segment, cohort []model.SwimmerTimeline, query string) (model.SwimmerTimeline, error) {
	if tl, ok := identity.Find(identity.TirefThenName, cohort, query); ok {
		return tl, nil
	}
	q := strings.TrimSpace(query)
	if _, err := strconv.Atoi(q); err != nil {
		return model.SwimmerTimeline{}, fmt.Errorf("%w: swimmer %q", ErrNotFound, query)
	}
	records, err := s.PersonalBests(ctx, seg, q)
	if err != nil {
		return model.SwimmerTimeline{}, err
	}
	if len(records) == 0 {
		return model.SwimmerTimeline{}, fmt.Errorf("%w: swimmer %q has no results", ErrNotFound, query)
	}
	return model.SwimmerTimeline{Name: q, Tiref: q, Records: records}, nil
}

// floor reads the size-th fastest current time from the live board, which load has just
// filled, and falls back to sorting the ranking list.
func (s *Service) floor(ctx context.Context, seg model.Segment, rows []model.RankedSwimmer, size int) model.Seconds {
	if s.board.Count(ctx, seg) > 0 {
		if f, err := s.board.NthTime(ctx, seg, size); err == nil {
			return f
		}
	}
	return cutoff.FloorFromRankings(rows, size)
}

// CutoffSeries reconstructs the month-by-month qualifying cutoff for a segment.
func (s *Service) CutoffSeries(ctx context.Context, req CutoffRequest) (CutoffReport, error) {
	start := time.Now()
	months, err := s.months(req.Window, s.now())
	if err != nil {
		return CutoffReport{}, err
	}
	rows, cohort, err := s.load(ctx, req.Segment)
	if err != nil {
		return CutoffReport{}, err
	}

	size := cutoff.SizeForAge(req.Segment.AgeGroup)
	floor := s.floor(ctx, req.Segment, rows, size)
	opts := []cutoff.Option{cutoff.WithLevel(req.Level)}
	report := CutoffReport{
		Segment:      req.Segment,
		CutoffSize:   size,
		Floor:        floor,
		Months:       months,
		CutoffSeries: cutoff.VirtualSeries(cohort, size, floor, months, opts...),
	}

	if req.Swimmer != "" {
		tl, err := s.tracked(ctx, req.Segment, cohort, req.Swimmer)
		if err != nil {
			return CutoffReport{}, err
		}
		report.TrackedName = tl.Name
		report.TrackedSeries = cutoff.TrackedSeries(tl, months, opts...)
	}

	metrics.RecordCutoffSeries(size, float64(time.Since(start).Milliseconds()))
	s.logger.Debug(ctx, "cutoff series computed",
		logger.String("segment", req.Segment.Key()),
		logger.Int("cohort", len(cohort)),
		logger.Int("months", len(months)),
	)
	return report, nil
}

// Predict projects the cohort and, when named, the tracked swimmer to the qualifying window end.
func (s *Service) Predict(ctx context.Context, req PredictRequest) (PredictReport, error) {
	start := time.Now()
	qualEnd := req.QualEnd
	if qualEnd == "" {
		qualEnd, _ = swimtime.ISODate(s.RankingDate())
	}
	endDate, ok := swimtime.ParseAnyDate(qualEnd)
	if !ok {
		return PredictReport{}, fmt.Errorf("%w: qualEnd %q", ErrBadRequest, req.QualEnd)
	}
	qualEnd = endDate.Format(time.DateOnly)
	if req.Baseline != "" && !swimtime.ValidMonth(req.Baseline) {
		return PredictReport{}, fmt.Errorf("%w: baseline %q", ErrBadRequest, req.Baseline)
	}
	if req.Baseline != "" && req.Swimmer == "" {
		return PredictReport{}, fmt.Errorf("%w: baseline needs a swimmer", ErrBadRequest)
	}

	_, cohort, err := s.load(ctx, req.Segment)
	if err != nil {
		return PredictReport{}, err
	}

	k := req.K
	if k <= 0 {
		k = s.predictionK
	}
	opts := []predict.Option{predict.WithK(k), predict.WithLevel(req.Level)}
	report := PredictReport{
		Segment:    req.Segment,
		QualEnd:    qualEnd,
		CutoffSize: cutoff.SizeForAge(req.Segment.AgeGroup),
		Cohort:     predict.Cohort(cohort, qualEnd, opts...),
	}
	metrics.RecordPrediction("cohort", float64(time.Since(start).Milliseconds()))

	if req.Swimmer == "" {
		return report, nil
	}
	tl, err := s.tracked(ctx, req.Segment, cohort, req.Swimmer)
	if err != nil {
		return PredictReport{}, err
	}
	tp := predict.Tracked(tl, report.Cohort, qualEnd, opts...)
	report.TrackedName = tl.Name
	report.Tracked = &tp
	metrics.RecordPrediction("tracked", float64(time.Since(start).Milliseconds()))

	if req.Baseline != "" {
		drop := predict.BaselineDrop(cohort, tl, req.Baseline, swimtime.MonthOf(endDate), opts...)
		report.Drop = &drop
		metrics.RecordPrediction("baseline_drop", float64(time.Since(start).Milliseconds()))
	}
	return report, nil
}

// VirtualRanking lists each month's ranking by best time so far. Stored histories are used
// when present. The window is anchored at the latest stored run, else today.
func (s *Service) VirtualRanking(ctx context.Context, seg model.Segment, w Window, level string) ([]model.RankingMonth, error) {
	anchor := s.now()
	var cohort []model.SwimmerTimeline
	if s.store != nil {
		run, err := s.store.LatestRun(ctx)
		switch {
		case err == nil:
			if t, ok := swimtime.ParseAnyDate(run.RunISO); ok {
				anchor = t
			}
		case !errors.Is(err, repository.ErrNotFound):
			return nil, fmt.Errorf("latest run: %w", err)
		}
		cohort, err = s.store.PersonalBests(ctx, seg)
		if err != nil {
			return nil, fmt.Errorf("stored personal bests: %w", err)
		}
	}

	months, err := s.months(w, anchor)
	if err != nil {
		return nil, err
	}
	if len(cohort) == 0 {
		if _, cohort, err = s.load(ctx, seg); err != nil {
			return nil, err
		}
	}
	return cutoff.VirtualRanking(cohort, months, cutoff.WithLevel(swimtime.NormalizeLevel(level))), nil
}

// RankingTrend returns a swimmer's rank in every stored run of a segment. A zero segment
// returns the swimmer's rows from all segments.
func (s *Service) RankingTrend(ctx context.Context, seg model.Segment, swimmer string, limit int) ([]repository.TrendPoint, error) {
	if s.store == nil {
		return nil, ErrUnavailable
	}
	if strings.TrimSpace(swimmer) == "" {
		return nil, fmt.Errorf("%w: swimmer is required", ErrBadRequest)
	}
	points, err := s.store.RankingTrend(ctx, seg, swimmer, limit)
	if err != nil {
		return nil, fmt.Errorf("ranking trend: %w", err)
	}
	return points, nil
}

// ClubReport lists stored appearances of a club's swimmers.
func (s *Service) ClubReport(ctx context.Context, club string) ([]repository.Appearance, error) {
	if s.store == nil {
		return nil, ErrUnavailable
	}
	if strings.TrimSpace(club) == "" {
		club = defaultClub
	}
	rows, err := s.store.ClubAppearances(ctx, club)
	if err != nil {
		return nil, fmt.Errorf("club appearances: %w", err)
	}
	return rows, nil
}

// Rank returns a swimmer's live competition rank, loading the segment onto the board first
// if it is empty.
func (s *Service) Rank(ctx context.Context, seg model.Segment, id string) (repository.Entry, error) {
	if s.board.Count(ctx, seg) == 0 {
		if _, err := s.Rankings(ctx, seg); err != nil {
			return repository.Entry{}, err
		}
	}
	e, err := s.board.Rank(ctx, seg, id)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Entry{}, fmt.Errorf("%w: swimmer %q in %s", ErrNotFound, id, seg)
	}
	return e, err
}

// Top returns the board's n fastest entries for a segment.
func (s *Service) Top(ctx context.Context, seg model.Segment, n int) ([]repository.Entry, error) {
	if s.board.Count(ctx, seg) == 0 {
		if _, err := s.Rankings(ctx, seg); err != nil {
			return nil, err
		}
	}
	entries, err := s.board.TopN(ctx, seg, n)
	if errors.Is(err, repository.ErrInvalidLimit) {
		return nil, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return entries, err
}
