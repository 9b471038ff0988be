// Package cutoff reconstructs a month-by-month qualifying cutoff from a ranked cohort.
//
// The cutoff for a month is the time of the swimmer who would sit at position N of a
// ranking built from everyone's best time so far. Two clamps apply on top:
//   - a floor: the cutoff is never faster than the N-th time of the current rankings
//   - monotonicity: a month without a fresh in-month swim never gets faster than the month before
//
// Months with no usable data carry the previous cutoff forward.
package cutoff

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/okian/qualtrack/internal/domain/model"
	"github.com/okian/qualtrack/internal/domain/monthly"
)

// Cutoff sizes by age bracket.
const (
	YoungestAge       = 13
	YoungestSize      = 20
	DefaultSize       = 40
	DefaultMonthCount = 12
)

// Reason tags.
const (
	ReasonNoSwims   = "no swims - carry forward"
	ReasonFloor     = "floor enforced"
	ReasonFloorOnly = "floor applied"
	ReasonMonotonic = "monotonic enforced"
)

// ReasonSwimInMonth tags a cutoff taken from the N-th swimmer's own swim that month.
func ReasonSwimInMonth(size int, name string) string {
	return fmt.Sprintf("virtual%d swim in month: %s", size, name)
}

// ReasonCumulative tags a cutoff taken from the N-th swimmer's best so far.
func ReasonCumulative(size int) string {
	return fmt.Sprintf("virtual%d cumulativeBest (no month swim)", size)
}

// ReasonTooFew tags a cutoff taken from the slowest swim of a month with fewer than N eligible swimmers.
func ReasonTooFew(size int) string {
	return fmt.Sprintf("<%d eligible swimmers", size)
}

// SizeForAge returns the cutoff position for an age group: 20 for the youngest bracket, 40 otherwise.
func SizeForAge(age string) int {
	n, err := strconv.Atoi(strings.TrimSpace(age))
	if err == nil && n <= YoungestAge {
		return YoungestSize
	}
	return DefaultSize
}

// FloorFromRankings returns the size-th fastest valid time of a ranking list.
func FloorFromRankings(rows []model.RankedSwimmer, size int) model.Seconds {
	if size < 1 {
		return model.None()
	}
	times := make([]float64, 0, len(rows))
	for _, r := range rows {
		if v, ok := r.Time.Get(); ok {
			times = append(times, v)
		}
	}
	if len(times) < size {
		return model.None()
	}
	sort.Float64s(times)
	return model.Some(times[size-1])
}

type member struct {
	name  string
	bests monthly.Bests
}

type standing struct {
	member
	best float64
}

// VirtualSeries computes the cutoff for each month of months, in the given order.
// A size below 1 is treated as 1. An absent floor disables flooring.
func VirtualSeries(cohort []model.SwimmerTimeline, size int, floor model.Seconds, months []string, opts ...Option) []model.CutoffEntry {
	o := apply(opts)
	if size < 1 {
		size = 1
	}
	members := make([]member, 0, len(cohort))
	for _, tl := range cohort {
		members = append(members, member{name: tl.Name, bests: monthly.Compute(tl, o.level)})
	}

	out := make([]model.CutoffEntry, 0, len(months))
	last := model.None()
	for _, m := range months {
		var e model.CutoffEntry
		if last.Valid && !anySwim(members, m) {
			e = model.CutoffEntry{Month: m, Reason: ReasonNoSwims}
		} else {
			e = monthEntry(members, size, m)
		}

		if f, ok := floor.Get(); ok {
			switch {
			case e.Cutoff.Valid && e.Cutoff.V < f:
				e.Cutoff, e.Reason = floor, ReasonFloor
			case !e.Cutoff.Valid:
				e.Cutoff, e.Reason = floor, ReasonFloorOnly
			}
		}

		if !e.Fresh && e.Cutoff.Valid && last.Valid && e.Cutoff.V < last.V {
			e.Cutoff, e.Reason = last, ReasonMonotonic
		}

		if !e.Cutoff.Valid {
			e.Cutoff = last
		}
		if e.Cutoff.Valid {
			last = e.Cutoff
		}
		out = append(out, e)
	}
	return out
}

func anySwim(members []member, month string) bool {
	for _, mb := range members {
		if len(mb.bests.Swims(month)) > 0 {
			return true
		}
	}
	return false
}

// monthEntry picks the unclamped candidate for one month.
func monthEntry(members []member, size int, month string) model.CutoffEntry {
	eligible := make([]standing, 0, len(members))
	for _, mb := range members {
		if best, ok := mb.bests.CumulativeBest(month).Get(); ok {
			eligible = append(eligible, standing{member: mb, best: best})
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool { return eligible[i].best < eligible[j].best })

	if len(eligible) >= size {
		v := eligible[size-1]
		if slow, ok := v.bests.SlowestIn(month).Get(); ok {
			return model.CutoffEntry{Month: month, Cutoff: model.Some(slow), Reason: ReasonSwimInMonth(size, v.name), Fresh: true}
		}
		return model.CutoffEntry{Month: month, Cutoff: model.Some(v.best), Reason: ReasonCumulative(size)}
	}

	slowest := model.None()
	for _, mb := range members {
		if s, ok := mb.bests.SlowestIn(month).Get(); ok && (!slowest.Valid || s > slowest.V) {
			slowest = model.Some(s)
		}
	}
	if slowest.Valid {
		return model.CutoffEntry{Month: month, Cutoff: slowest, Reason: ReasonTooFew(size), Fresh: true}
	}
	return model.CutoffEntry{Month: month, Reason: ReasonNoSwims}
}
