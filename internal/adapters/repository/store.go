// Package repository holds the live ranking board and the snapshot store.
package repository

import (
	"context"

	"github.com/okian/qualtrack/internal/domain/model"
)

// Entry represents a ranking board row.
type Entry struct {
	Rank  int     `json:"rank"`
	Key   string  `json:"key"`
	Name  string  `json:"name"`
	Tiref string  `json:"tiref,omitempty"`
	Club  string  `json:"club,omitempty"`
	Time  float64 `json:"time"`
	Date  string  `json:"date,omitempty"`
}

// Board provides read/write access to the live rankings of every segment.
type Board interface {
	// Replace discards a segment's rows and loads the given list. Returns the number of rows kept.
	Replace(ctx context.Context, seg model.Segment, rows []model.RankedSwimmer) (int, error)

	// Rank returns the competition rank of a swimmer looked up by tiref or name.
	// Returns ErrNotFound if the swimmer is unknown.
	Rank(ctx context.Context, seg model.Segment, id string) (Entry, error)

	// TopN returns the N fastest entries ordered by time asc.
	TopN(ctx context.Context, seg model.Segment, n int) ([]Entry, error)

	// NthTime returns the time of the N-th fastest entry, or None when fewer are held.
	NthTime(ctx context.Context, seg model.Segment, n int) (model.Seconds, error)

	// Count returns the number of swimmers held for a segment.
	Count(ctx context.Context, seg model.Segment) int

	// Total returns the number of swimmers held across all segments.
	Total(ctx context.Context) int
}

// Run is one stored scrape of the ranking lists.
type Run struct {
	ID          string            `json:"id"`
	RunISO      string            `json:"runIso"`
	GeneratedAt string            `json:"generatedAt"`
	Meta        map[string]string `json:"meta,omitempty"`
}

// TrendPoint is a swimmer's rank and time in one stored run.
type TrendPoint struct {
	Date    string        `json:"date"`
	Segment string        `json:"segment"`
	Rank    int           `json:"rank"`
	Time    model.Seconds `json:"time"`
}

// Appearance is one stored ranking row of a club member.
type Appearance struct {
	RunISO string        `json:"runIso"`
	Key    string        `json:"key"`
	Name   string        `json:"name"`
	Tiref  string        `json:"tiref,omitempty"`
	Club   string        `json:"club"`
	Rank   int           `json:"rank"`
	Time   model.Seconds `json:"time"`
}

// SnapshotStore persists ranking runs and personal-best histories.
type SnapshotStore interface {
	// SaveRun creates the run for runISO or refreshes its metadata, and returns its id.
	SaveRun(ctx context.Context, runISO string, meta map[string]string) (string, error)
	// SaveEntries replaces the rows of one segment within a run.
	SaveEntries(ctx context.Context, runID string, seg model.Segment, rows []model.RankedSwimmer) error
	// SavePersonalBests replaces a swimmer's stored history for a segment.
	SavePersonalBests(ctx context.Context, seg model.Segment, tl model.SwimmerTimeline) error
	// PersonalBests returns every stored history of a segment.
	PersonalBests(ctx context.Context, seg model.Segment) ([]model.SwimmerTimeline, error)
	// RankingTrend returns a swimmer's rank per run, oldest first, within seg unless it is zero.
	RankingTrend(ctx context.Context, seg model.Segment, swimmerID string, limit int) ([]TrendPoint, error)
	// LatestRun returns the most recent run. Returns ErrNotFound when nothing is stored.
	LatestRun(ctx context.Context) (Run, error)
	// ClubAppearances lists stored rows whose club contains the given text.
	ClubAppearances(ctx context.Context, club string) ([]Appearance, error)
	Close() error
}
