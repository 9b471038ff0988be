package service_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/qualtrack/internal/adapters/source"
	"github.com/okian/qualtrack/internal/domain/model"
)

func pb(date string, t float64) model.PersonalBest {
	return model.PersonalBest{Date: date, Time: model.Some(t), Meet: "County Champs", Level: "3"}
}

// fakeSource serves a fixed four-swimmer list. Dee has no tiref.
type fakeSource struct {
	mu            sync.Mutex
	rankingCalls  int
	pbCalls       int
	cohortCalls   int
	cohortFetched int

	// padding appends ranked swimmers without a tiref, so the list grows but the cohort does not.
	padding int

	// gate, when set, blocks Rankings until closed. entered receives once per blocked call.
	gate    chan struct{}
	entered chan struct{}
}

func newFakeSource() *fakeSource { return &fakeSource{} }

func (f *fakeSource) rows() []model.RankedSwimmer {
	rows := []model.RankedSwimmer{
		{Rank: 1, Name: "Ann Archer", Tiref: "1001", Club: "Tonbridge SC", Time: model.Some(61.00), Date: "15/02/2024"},
		{Rank: 2, Name: "Bea Brook", Tiref: "1002", Club: "Maidstone", Time: model.Some(62.50), Date: "05/03/2024"},
		{Rank: 3, Name: "Cat Cole", Tiref: "1003", Club: "Tonbridge SC", Time: model.Some(64.00), Date: "01/02/2024"},
		{Rank: 4, Name: "Dee Dale", Club: "Dover", Time: model.Some(65.00), Date: "01/03/2024"},
	}
	for i := 0; i < f.padding; i++ {
		rows = append(rows, model.RankedSwimmer{
			Rank: 5 + i,
			Name: fmt.Sprintf("Pad %02d", i),
			Club: "Dover",
			Time: model.Some(66.0 + float64(i)/10),
		})
	}
	return rows
}

var histories = map[string][]model.PersonalBest{
	"1001": {pb("10/01/2024", 62.00), pb("15/02/2024", 61.00)},
	"1002": {pb("20/01/2024", 63.50), pb("05/03/2024", 62.50)},
	"1003": {pb("01/02/2024", 64.00)},
	"9999": {pb("12/01/2024", 70.00), pb("12/03/2024", 68.00)},
}

func (f *fakeSource) Rankings(ctx context.Context, _ model.Segment, _ string) ([]model.RankedSwimmer, error) {
	f.mu.Lock()
	f.rankingCalls++
	gate, entered := f.gate, f.entered
	f.mu.Unlock()

	if gate != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
			return nil, source.ErrUpstream
		}
	}
	return f.rows(), nil
}

func (f *fakeSource) PersonalBests(_ context.Context, _ model.Segment, tiref, _ string) ([]model.PersonalBest, error) {
	f.mu.Lock()
	f.pbCalls++
	f.mu.Unlock()
	return histories[tiref], nil
}

func (f *fakeSource) Cohort(_ context.Context, _ model.Segment, rows []model.RankedSwimmer, _ string) ([]model.SwimmerTimeline, error) {
	f.mu.Lock()
	f.cohortCalls++
	f.mu.Unlock()

	out := make([]model.SwimmerTimeline, 0, len(rows))
	for _, r := range rows {
		if r.Tiref == "" {
			continue
		}
		f.mu.Lock()
		f.cohortFetched++
		f.mu.Unlock()
		out = append(out, model.SwimmerTimeline{Name: r.Name, Tiref: r.Tiref, Records: histories[r.Tiref]})
	}
	return out, nil
}

func (f *fakeSource) counts() (rankings, pbs, cohorts, fetched int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rankingCalls, f.pbCalls, f.cohortCalls, f.cohortFetched
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}
