// Package monthly buckets a swimmer's results by calendar month.
package monthly

import (
	"sort"
	"time"

	"github.com/okian/qualtrack/internal/domain/model"
	"github.com/okian/qualtrack/internal/domain/swimtime"
)

// Swim is an eligible record with its resolved date and month.
type Swim struct {
	Date   time.Time
	Month  string
	Time   float64
	Record model.PersonalBest
}

// Bests holds a swimmer's eligible swims grouped by month.
type Bests struct {
	byMonth map[string][]Swim
	months  []string
	swims   []Swim
}

// Eligible reports whether a record can take part in aggregation under a level filter.
func Eligible(r model.PersonalBest, level string) (Swim, bool) {
	t, ok := r.Time.Get()
	if !ok {
		return Swim{}, false
	}
	d, ok := swimtime.ParseAnyDate(r.Date)
	if !ok {
		return Swim{}, false
	}
	if !swimtime.LevelMatches(level, r.Level) {
		return Swim{}, false
	}
	return Swim{Date: d, Month: swimtime.MonthOf(d), Time: t, Record: r}, true
}

// Compute groups a timeline's eligible records by month. An empty or "All" level disables filtering.
func Compute(tl model.SwimmerTimeline, level string) Bests {
	b := Bests{byMonth: make(map[string][]Swim)}
	for _, r := range tl.Records {
		s, ok := Eligible(r, level)
		if !ok {
			continue
		}
		if _, seen := b.byMonth[s.Month]; !seen {
			b.months = append(b.months, s.Month)
		}
		b.byMonth[s.Month] = append(b.byMonth[s.Month], s)
		b.swims = append(b.swims, s)
	}
	sort.Strings(b.months)
	return b
}

// Months lists the months holding at least one eligible swim, ascending.
func (b Bests) Months() []string {
	out := make([]string, len(b.months))
	copy(out, b.months)
	return out
}

// Swims returns the eligible swims recorded in month, in scrape order.
func (b Bests) Swims(month string) []Swim {
	return b.byMonth[month]
}

// Len is the number of eligible swims.
func (b Bests) Len() int { return len(b.swims) }

// Best is the fastest swim recorded in month.
func (b Bests) Best(month string) model.Seconds {
	best := model.None()
	for _, s := range b.byMonth[month] {
		if v := model.Some(s.Time); v.Faster(best) {
			best = v
		}
	}
	return best
}

// SlowestIn is the slowest swim recorded in month.
func (b Bests) SlowestIn(month string) model.Seconds {
	slow := model.None()
	for _, s := range b.byMonth[month] {
		if !slow.Valid || s.Time > slow.V {
			slow = model.Some(s.Time)
		}
	}
	return slow
}

// CumulativeBest is the fastest swim recorded in month or any earlier month.
func (b Bests) CumulativeBest(month string) model.Seconds {
	best := model.None()
	for _, s := range b.swims {
		if s.Month > month {
			continue
		}
		if v := model.Some(s.Time); v.Faster(best) {
			best = v
		}
	}
	return best
}

// Latest is the most recent swim dated in month or earlier. Equal dates keep scrape order.
func (b Bests) Latest(month string) (Swim, bool) {
	var (
		out   Swim
		found bool
	)
	for _, s := range b.swims {
		if s.Month > month {
			continue
		}
		if !found || s.Date.After(out.Date) {
			out, found = s, true
		}
	}
	return out, found
}

// All returns every eligible swim in scrape order.
func (b Bests) All() []Swim {
	out := make([]Swim, len(b.swims))
	copy(out, b.swims)
	return out
}
