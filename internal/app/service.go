// Package service wires the scraper, cache, board and snapshot store around the cutoff
// and prediction engines, and implements the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/qualtrack/internal/adapters/cache"
	"github.com/okian/qualtrack/internal/adapters/mq/queue"
	"github.com/okian/qualtrack/internal/adapters/mq/worker"
	"github.com/okian/qualtrack/internal/adapters/repository"
	"github.com/okian/qualtrack/internal/adapters/source"
	"github.com/okian/qualtrack/internal/domain/dedupe"
	"github.com/okian/qualtrack/internal/domain/events"
	"github.com/okian/qualtrack/internal/domain/model"
	"github.com/okian/qualtrack/internal/domain/predict"
	"github.com/okian/qualtrack/pkg/logger"
	"github.com/okian/qualtrack/pkg/metrics"
)

const (
	defaultRankingsTTL = 6 * time.Hour
	defaultPBTTL       = 7 * 24 * time.Hour
	defaultMaxCohort   = 50
	defaultQueueSize   = 256
	defaultDedupeSize  = 1024
	defaultWorkerCount = 2
	defaultClub        = "tonbridge"
)

// RankingSource scrapes ranking lists and personal best histories.
type RankingSource interface {
	Rankings(ctx context.Context, seg model.Segment, date string) ([]model.RankedSwimmer, error)
	PersonalBests(ctx context.Context, seg model.Segment, tiref, date string) ([]model.PersonalBest, error)
	// Cohort returns a timeline for every row that has a tiref.
	Cohort(ctx context.Context, seg model.Segment, rows []model.RankedSwimmer, date string) ([]model.SwimmerTimeline, error)
}

// Service implements the API dependencies for the qualifying tracker.
type Service struct {
	mu sync.RWMutex

	// Core components
	source    RankingSource
	cache     cache.Cache
	board     repository.Board
	store     repository.SnapshotStore
	catalogue *events.Catalogue
	deduper   dedupe.Deduper
	queue     queue.Queue
	pool      *worker.Pool

	// Configuration
	workerCount   int
	queueSize     int
	dedupeSize    int
	rankingDate   string
	rankingsTTL   time.Duration
	pbTTL         time.Duration
	defaultMonths int
	predictionK   float64
	maxCohort     int
	now           func() time.Time

	// State
	started bool

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:   defaultWorkerCount,
		queueSize:     defaultQueueSize,
		dedupeSize:    defaultDedupeSize,
		rankingsTTL:   defaultRankingsTTL,
		pbTTL:         defaultPBTTL,
		defaultMonths: 12,
		predictionK:   predict.DefaultK,
		maxCohort:     defaultMaxCohort,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Named("service")
	}
	if s.catalogue == nil {
		s.catalogue = events.Default()
	}
	if s.source == nil {
		s.source = source.NewClient(source.WithCatalogue(s.catalogue), source.WithLogger(s.logger.Named("source")))
	}
	if s.cache == nil {
		s.cache = cache.NewMemory()
	}
	if s.board == nil {
		s.board = repository.NewTreapBoard()
	}
	return s
}

// Start initializes the refresh queue and worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting qualifying tracker service...")

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	q := queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.queue = q
	s.pool = worker.NewPool(s.workerCount, q, s)
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "qualifying tracker service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Bool("snapshots", s.store != nil),
	)
	return nil
}

// Stop drains the refresh workers and closes the snapshot store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping qualifying tracker service...")

	var errs []error
	if s.pool != nil {
		errs = append(errs, s.pool.Shutdown(ctx))
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	s.started = false
	s.logger.Info(ctx, "qualifying tracker service stopped")
	return errors.Join(errs...)
}

// Catalogue returns the events that can be ranked.
func (s *Service) Catalogue() *events.Catalogue { return s.catalogue }

// RankingDate returns the configured ranking date or 31/12 of the current year.
func (s *Service) RankingDate() string {
	if s.rankingDate != "" {
		return s.rankingDate
	}
	return fmt.Sprintf("31/12/%d", s.now().Year())
}

// ParseSegment validates request parameters. Sex defaults to M; "all" selects both sexes.
func (s *Service) ParseSegment(event, age, sex string) (model.Segment, error) {
	ev, err := s.catalogue.Lookup(event)
	if err != nil {
		return model.Segment{}, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	age = strings.TrimSpace(age)
	if _, err := strconv.Atoi(age); err != nil {
		return model.Segment{}, fmt.Errorf("%w: age group %q", ErrBadRequest, age)
	}
	sex = strings.TrimSpace(sex)
	switch {
	case sex == "":
		sex = model.SexMale
	case strings.EqualFold(sex, model.SexBoth):
		sex = model.SexBoth
	default:
		sex = strings.ToUpper(sex)
	}
	if !events.ValidSex(sex) {
		return model.Segment{}, fmt.Errorf("%w: sex %q", ErrBadRequest, sex)
	}
	return model.Segment{Event: ev.Name, AgeGroup: age, Sex: sex}, nil
}

func rankingsKey(seg model.Segment, date string) string {
	return cache.ComputeKey(map[string]any{
		"kind":  "rankings",
		"event": seg.Event,
		"age":   seg.AgeGroup,
		"sex":   seg.Sex,
		"date":  date,
	})
}

func pbKey(seg model.Segment, tiref, date string) string {
	return cache.ComputeKey(map[string]any{
		"kind":  "pb",
		"event": seg.Event,
		"age":   seg.AgeGroup,
		"tiref": tiref,
		"date":  date,
	})
}

// readCache treats every cache failure as a miss.
func (s *Service) readCache(ctx context.Context, key string, dst any) bool {
	err := cache.GetJSON(ctx, s.cache, key, dst)
	if err == nil {
		return true
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		metrics.RecordErrorByComponent("cache", "read")
		s.logger.Warn(ctx, "cache read failed", logger.String("key", key), logger.Error(err))
	}
	return false
}

func (s *Service) writeCache(ctx context.Context, key string, v any, ttl time.Duration) {
	if err := cache.SetJSON(ctx, s.cache, key, v, ttl); err != nil {
		metrics.RecordErrorByComponent("cache", "write")
		s.logger.Warn(ctx, "cache write failed", logger.String("key", key), logger.Error(err))
	}
}

// Rankings returns the segment's current ranking list, from cache when fresh enough,
// and loads it onto the live board.
func (s *Service) Rankings(ctx context.Context, seg model.Segment) ([]model.RankedSwimmer, error) {
	return s.rankings(ctx, seg, s.RankingDate(), false)
}

func (s *Service) rankings(ctx context.Context, seg model.Segment, date string, fresh bool) ([]model.RankedSwimmer, error) {
	key := rankingsKey(seg, date)
	var rows []model.RankedSwimmer
	if fresh || !s.readCache(ctx, key, &rows) {
		var err error
		rows, err = s.source.Rankings(ctx, seg, date)
		if err != nil {
			return nil, fmt.Errorf("rankings %s: %w", seg, err)
		}
		s.writeCache(ctx, key, rows, s.rankingsTTL)
	}
	if _, err := s.board.Replace(ctx, seg, rows); err != nil {
		s.logger.Warn(ctx, "board load failed", logger.String("segment", seg.Key()), logger.Error(err))
	}
	return rows, nil
}

// PersonalBests returns one swimmer's history for the segment's event.
func (s *Service) PersonalBests(ctx context.Context, seg model.Segment, tiref string) ([]model.PersonalBest, error) {
	tiref = strings.TrimSpace(tiref)
	if tiref == "" {
		return nil, fmt.Errorf("%w: tiref is required", ErrBadRequest)
	}
	date := s.RankingDate()
	key := pbKey(seg, tiref, date)
	var records []model.PersonalBest
	if s.readCache(ctx, key, &records) {
		return records, nil
	}
	records, err := s.source.PersonalBests(ctx, seg, tiref, date)
	if err != nil {
		return nil, fmt.Errorf("personal bests %s: %w", tiref, err)
	}
	s.writeCache(ctx, key, records, s.pbTTL)
	return records, nil
}

// cohort resolves the histories of the ranked swimmers, reusing cached histories unless
// fresh is set. Only non-empty histories are cached.
func (s *Service) cohort(ctx context.Context, seg model.Segment, rows []model.RankedSwimmer, date string, fresh bool) ([]model.SwimmerTimeline, error) {
	if len(rows) > s.maxCohort {
		rows = rows[:s.maxCohort]
	}
	found := make(map[string]model.SwimmerTimeline, len(rows))
	missing := make([]model.RankedSwimmer, 0, len(rows))
	for _, r := range rows {
		if r.Tiref == "" {
			continue
		}
		var records []model.PersonalBest
		if !fresh && s.readCache(ctx, pbKey(seg, r.Tiref, date), &records) {
			found[r.Tiref] = model.SwimmerTimeline{Name: r.Name, Tiref: r.Tiref, Records: records}
			continue
		}
		missing = append(missing, r)
	}

	if len(missing) > 0 {
		fetched, err := s.source.Cohort(ctx, seg, missing, date)
		if err != nil {
			return nil, fmt.Errorf("cohort %s: %w", seg, err)
		}
		for _, tl := range fetched {
			found[tl.Tiref] = tl
			if len(tl.Records) > 0 {
				s.writeCache(ctx, pbKey(seg, tl.Tiref, date), tl.Records, s.pbTTL)
			}
		}
	}

	out := make([]model.SwimmerTimeline, 0, len(found))
	for _, r := range rows {
		if tl, ok := found[r.Tiref]; ok && r.Tiref != "" {
			out = append(out, tl)
			delete(found, r.Tiref)
		}
	}
	return out, nil
}

// ClearCache drops every cached page.
func (s *Service) ClearCache(ctx context.Context) error {
	if err := s.cache.Clear(ctx); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	s.logger.Info(ctx, "cache cleared")
	return nil
}

// EnqueueRefresh schedules a segment refresh. A refresh already pending for the same
// segment is reported as a duplicate instead of being queued again.
func (s *Service) EnqueueRefresh(ctx context.Context, seg model.Segment) (model.RefreshJob, bool, error) {
	s.mu.RLock()
	started, q, d := s.started, s.queue, s.deduper
	s.mu.RUnlock()
	if !started {
		return model.RefreshJob{}, false, ErrNotStarted
	}

	if d.SeenAndRecord(ctx, seg.Key()) {
		metrics.RecordRefreshJob("duplicate")
		s.logger.Debug(ctx, "refresh already pending", logger.String("segment", seg.Key()))
		return model.RefreshJob{Segment: seg}, true, nil
	}

	job := model.RefreshJob{ID: uuid.New().String(), Segment: seg, RankingDate: s.RankingDate(), EnqueuedAt: s.now()}
	if err := q.Enqueue(ctx, job); err != nil {
		d.Unrecord(ctx, seg.Key())
		metrics.RecordRefreshJob("rejected")
		if errors.Is(err, queue.ErrFull) {
			return job, false, fmt.Errorf("%w: %w", ErrBackpressure, err)
		}
		if errors.Is(err, queue.ErrClosed) {
			return job, false, fmt.Errorf("%w: %w", ErrNotStarted, err)
		}
		return job, false, err
	}
	metrics.RecordRefreshJob("enqueued")
	s.logger.Debug(ctx, "refresh enqueued",
		logger.String("job", job.ID),
		logger.String("segment", seg.Key()),
	)
	return job, false, nil
}

// EnqueueAll schedules a refresh of every catalogue segment and returns how many were
// accepted. It stops at the first backpressure error.
func (s *Service) EnqueueAll(ctx context.Context) (int, error) {
	accepted := 0
	for _, seg := range s.catalogue.Segments() {
		_, dup, err := s.EnqueueRefresh(ctx, seg)
		if err != nil {
			return accepted, err
		}
		if !dup {
			accepted++
		}
	}
	return accepted, nil
}

// Refresh implements worker.Handler: it re-scrapes a segment bypassing the cache and
// stores the run. The segment can be queued again once it returns.
func (s *Service) Refresh(ctx context.Context, job queue.Job) error {
	seg := job.Segment
	defer func() {
		if s.deduper != nil {
			s.deduper.Unrecord(ctx, seg.Key())
		}
	}()

	date := job.RankingDate
	if date == "" {
		date = s.RankingDate()
	}
	rows, err := s.rankings(ctx, seg, date, true)
	if err != nil {
		return err
	}
	cohort, err := s.cohort(ctx, seg, rows, date, true)
	if err != nil {
		return err
	}
	if s.store == nil {
		return nil
	}

	runID, err := s.store.SaveRun(ctx, s.now().Format(time.DateOnly), map[string]string{"rankingDate": date})
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	if err := s.store.SaveEntries(ctx, runID, seg, rows); err != nil {
		return fmt.Errorf("save entries: %w", err)
	}
	for _, tl := range cohort {
		if err := s.store.SavePersonalBests(ctx, seg, tl); err != nil {
			return fmt.Errorf("save personal bests %s: %w", tl.Tiref, err)
		}
	}
	s.logger.Info(ctx, "segment refreshed",
		logger.String("job", job.ID),
		logger.String("segment", seg.Key()),
		logger.Int("rows", len(rows)),
		logger.Int("cohort", len(cohort)),
	)
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
		"rankingDate": s.RankingDate(),
		"snapshots":   s.store != nil,
	}

	boardEntries := s.board.Total(ctx)
	stats["boardEntries"] = boardEntries
	metrics.UpdateBoardEntries(boardEntries)

	if s.started {
		queueLen := s.queue.Len(ctx)
		stats["queueLength"] = queueLen
		stats["pendingRefreshes"] = s.deduper.Size()
		stats["activeWorkers"] = s.pool.Active()

		metrics.UpdateQueueSize(queueLen)
		s.pool.UpdateMetrics()
	}
	return stats
}
