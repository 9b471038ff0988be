package cutoff

import (
	"sort"

	"github.com/okian/qualtrack/internal/domain/model"
	"github.com/okian/qualtrack/internal/domain/monthly"
)

// TrackedSeries returns, for each month, the tracked swimmer's most recent time dated in or
// before that month. It is the latest swim, not the fastest. Months before the first swim are null.
func TrackedSeries(tl model.SwimmerTimeline, months []string, opts ...Option) []model.TrackedEntry {
	o := apply(opts)
	b := monthly.Compute(tl, o.level)
	out := make([]model.TrackedEntry, 0, len(months))
	for _, m := range months {
		e := model.TrackedEntry{Month: m}
		if s, ok := b.Latest(m); ok {
			e.Time = model.Some(s.Time)
		}
		out = append(out, e)
	}
	return out
}

// VirtualRanking lists, for each month, every swimmer's best time so far, fastest first.
// Swimmers sharing a key are merged and keep their fastest time.
func VirtualRanking(cohort []model.SwimmerTimeline, months []string, opts ...Option) []model.RankingMonth {
	o := apply(opts)
	type entry struct {
		key   string
		tl    model.SwimmerTimeline
		bests monthly.Bests
	}
	entries := make([]entry, 0, len(cohort))
	for _, tl := range cohort {
		entries = append(entries, entry{key: o.keyer.Key(tl.Name, tl.Tiref), tl: tl, bests: monthly.Compute(tl, o.level)})
	}

	out := make([]model.RankingMonth, 0, len(months))
	for _, m := range months {
		best := make(map[string]model.RankingRow, len(entries))
		order := make([]string, 0, len(entries))
		for _, e := range entries {
			t := e.bests.CumulativeBest(m)
			if !t.Valid {
				continue
			}
			cur, seen := best[e.key]
			if !seen {
				order = append(order, e.key)
			}
			if !seen || t.Faster(cur.Time) {
				best[e.key] = model.RankingRow{Name: e.tl.Name, Tiref: e.tl.Tiref, Time: t}
			}
		}
		rows := make([]model.RankingRow, 0, len(order))
		for _, k := range order {
			rows = append(rows, best[k])
		}
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Time.V < rows[j].Time.V })
		for i := range rows {
			rows[i].Position = i + 1
		}
		out = append(out, model.RankingMonth{Month: m, Ranking: rows})
	}
	return out
}
