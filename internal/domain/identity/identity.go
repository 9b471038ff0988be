// Package identity decides when two scraped records describe the same swimmer.
//
// The results site exposes a numeric tiref for most swimmers but not all, so joins fall
// back to display names. Name collisions are not resolved.
package identity

import (
	"strings"

	"github.com/okian/qualtrack/internal/domain/model"
)

// Keyer derives the join key of a swimmer.
type Keyer interface {
	Key(name, tiref string) string
}

// KeyerFunc adapts a function to Keyer.
type KeyerFunc func(name, tiref string) string

// Key implements Keyer.
func (f KeyerFunc) Key(name, tiref string) string { return f(name, tiref) }

// TirefThenName keys by tiref when present, else by normalised name.
var TirefThenName Keyer = KeyerFunc(func(name, tiref string) string {
	if t := strings.TrimSpace(tiref); t != "" {
		return "tiref:" + t
	}
	return "name:" + NormalizeName(name)
})

// NameOnly keys by normalised name and ignores tirefs.
var NameOnly Keyer = KeyerFunc(func(name, _ string) string {
	return "name:" + NormalizeName(name)
})

// NormalizeName lowercases and collapses whitespace.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// TimelineKey is Key applied to a timeline.
func TimelineKey(k Keyer, tl model.SwimmerTimeline) string {
	return k.Key(tl.Name, tl.Tiref)
}

// Join pairs ranking rows with their timelines. Rows without a timeline are skipped and
// returned separately, in ranking order.
func Join(k Keyer, rows []model.RankedSwimmer, timelines []model.SwimmerTimeline) (cohort []model.SwimmerTimeline, missing []model.RankedSwimmer) {
	byKey := make(map[string]model.SwimmerTimeline, len(timelines))
	byName := make(map[string]model.SwimmerTimeline, len(timelines))
	for _, tl := range timelines {
		byKey[TimelineKey(k, tl)] = tl
		byName[NormalizeName(tl.Name)] = tl
	}
	seen := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		key := k.Key(r.Name, r.Tiref)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		tl, ok := byKey[key]
		if !ok {
			tl, ok = byName[NormalizeName(r.Name)]
		}
		if !ok {
			missing = append(missing, r)
			continue
		}
		cohort = append(cohort, tl)
	}
	return cohort, missing
}

// Find returns the timeline matching query by tiref or name.
func Find(k Keyer, timelines []model.SwimmerTimeline, query string) (model.SwimmerTimeline, bool) {
	q := strings.TrimSpace(query)
	if q == "" {
		return model.SwimmerTimeline{}, false
	}
	for _, tl := range timelines {
		if tl.Tiref != "" && tl.Tiref == q {
			return tl, true
		}
	}
	want := NormalizeName(q)
	for _, tl := range timelines {
		if NormalizeName(tl.Name) == want {
			return tl, true
		}
	}
	return model.SwimmerTimeline{}, false
}
