package service

import (
	"time"

	"github.com/okian/qualtrack/internal/adapters/cache"
	"github.com/okian/qualtrack/internal/adapters/repository"
	"github.com/okian/qualtrack/internal/domain/events"
	"github.com/okian/qualtrack/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithSource sets where ranking lists and histories are scraped from.
func WithSource(src RankingSource) Option {
	return func(s *Service) {
		if src != nil {
			s.source = src
		}
	}
}

// WithCache sets the page cache.
func WithCache(c cache.Cache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithStore sets the snapshot store. Without one, trend and club queries fail with ErrUnavailable.
func WithStore(st repository.SnapshotStore) Option {
	return func(s *Service) {
		s.store = st
	}
}

// WithBoard sets the live ranking board.
func WithBoard(b repository.Board) Option {
	return func(s *Service) {
		if b != nil {
			s.board = b
		}
	}
}

// WithCatalogue sets the event catalogue used to validate segments.
func WithCatalogue(c *events.Catalogue) Option {
	return func(s *Service) {
		if c != nil {
			s.catalogue = c
		}
	}
}

// WithWorkerCount sets the number of refresh workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of pending refresh jobs.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many pending refresh keys are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithRankingDate fixes the ranking date (DD/MM/YYYY). Empty means 31/12 of the current year.
func WithRankingDate(date string) Option {
	return func(s *Service) {
		s.rankingDate = date
	}
}

// WithTTLs sets how long ranking lists and histories stay cached.
func WithTTLs(rankings, personalBests time.Duration) Option {
	return func(s *Service) {
		if rankings > 0 {
			s.rankingsTTL = rankings
		}
		if personalBests > 0 {
			s.pbTTL = personalBests
		}
	}
}

// WithDefaultMonths sets the window length used when a request names none.
func WithDefaultMonths(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.defaultMonths = n
		}
	}
}

// WithPredictionK sets the default shrinkage strength.
func WithPredictionK(k float64) Option {
	return func(s *Service) {
		if k > 0 {
			s.predictionK = k
		}
	}
}

// WithMaxCohort caps how many ranked swimmers form a cohort.
func WithMaxCohort(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxCohort = n
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
