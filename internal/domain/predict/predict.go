// Package predict projects swimmers' times to the end of a qualifying window.
//
// Each swimmer gets a straight-line trend over their own history. Short histories are
// unreliable, so every swimmer's slope is pulled toward a cohort slope: the weighted mean of
// all individual slopes after dropping outliers beyond 1.5 IQR. Confidence values are a
// heuristic proxy, not calibrated probabilities.
package predict

import (
	"math"
	"sort"

	"github.com/okian/qualtrack/internal/domain/model"
	"github.com/okian/qualtrack/internal/domain/monthly"
)

type point struct{ x, y float64 }

type series struct {
	name   string
	points []point
	fit    Fit
	hasFit bool
}

func pointsOf(tl model.SwimmerTimeline, level string) []point {
	var pts []point
	for _, s := range monthly.Compute(tl, level).All() {
		pts = append(pts, point{x: float64(daysOf(s.Date)), y: s.Time})
	}
	return pts
}

func seriesOf(tl model.SwimmerTimeline, level string) series {
	s := series{name: tl.Name, points: pointsOf(tl, level)}
	xs := make([]float64, len(s.points))
	ys := make([]float64, len(s.points))
	for i, p := range s.points {
		xs[i], ys[i] = p.x, p.y
	}
	s.fit, s.hasFit = FitLinear(xs, ys)
	return s
}

// latest is the point with the largest x; ties keep the first.
func (s series) latest() (point, bool) {
	if len(s.points) == 0 {
		return point{}, false
	}
	best := s.points[0]
	for _, p := range s.points[1:] {
		if p.x > best.x {
			best = p
		}
	}
	return best, true
}

// CohortSlope is the sqrt(n)-weighted mean of slopes inside the 1.5 IQR fences.
func CohortSlope(slopes []float64, weights []float64) model.Seconds {
	type sw struct{ s, w float64 }
	vals := make([]sw, 0, len(slopes))
	for i, s := range slopes {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			continue
		}
		w := 1.0
		if i < len(weights) {
			w = weights[i]
		}
		vals = append(vals, sw{s: s, w: w})
	}
	if len(vals) == 0 {
		return model.None()
	}
	sort.SliceStable(vals, func(i, j int) bool { return vals[i].s < vals[j].s })
	q1 := vals[(len(vals)-1)/4].s
	q3 := vals[3*(len(vals)-1)/4].s
	iqr := q3 - q1
	lo, hi := q1-1.5*iqr, q3+1.5*iqr

	var sum, wsum float64
	for _, v := range vals {
		if v.s < lo || v.s > hi {
			continue
		}
		sum += v.s * v.w
		wsum += v.w
	}
	if wsum == 0 {
		wsum = 1
	}
	return model.Some(sum / wsum)
}

// shrink blends an own slope toward the cohort slope with strength k.
func shrink(own float64, n int, cohort model.Seconds, k float64) float64 {
	c, ok := cohort.Get()
	if !ok {
		return own
	}
	fn := float64(n)
	if fn+k == 0 {
		return c
	}
	return fn/(fn+k)*own + k/(fn+k)*c
}

func method(n int) string {
	switch {
	case n >= 3:
		return model.MethodLinear
	case n == 2:
		return model.MethodTwoPoint
	default:
		return model.MethodCohort
	}
}

type slopeChoice struct {
	final model.Seconds
	own   bool
}

func finalSlope(s series, cohort model.Seconds, o options) slopeChoice {
	if s.hasFit && s.fit.N >= o.minPoints {
		return slopeChoice{final: model.Some(shrink(s.fit.Slope, s.fit.N, cohort, o.k)), own: true}
	}
	return slopeChoice{final: cohort}
}

func project(s series, slope model.Seconds, qualDay int, qualOK bool) model.Seconds {
	p, ok := s.latest()
	if !ok || !qualOK {
		return model.None()
	}
	return model.Some(p.y + slope.Or(0)*(float64(qualDay)-p.x))
}

func confidence(s series, cohort model.Seconds) float64 {
	if s.hasFit {
		if se, ok := s.fit.Stderr.Get(); ok {
			denom := math.Abs(cohort.Or(0))
			if denom == 0 {
				denom = 1
			}
			return math.Max(0, math.Min(1, 1-se/denom))
		}
	}
	if len(s.points) > 0 {
		return 0.5
	}
	return 0.2
}

// Cohort fits every swimmer, derives the cohort slope and projects each swimmer to qualEnd.
// Rows keep cohort order. When no swimmer has enough points the cohort slope is absent and
// swimmers with data are projected flat from their latest swim.
func Cohort(cohort []model.SwimmerTimeline, qualEnd string, opts ...Option) model.CohortPrediction {
	o := apply(opts)
	qualDay, qualOK := DaysSinceEpoch(qualEnd)

	all := make([]series, 0, len(cohort))
	var slopes, weights []float64
	for _, tl := range cohort {
		s := seriesOf(tl, o.level)
		all = append(all, s)
		if s.hasFit && s.fit.N >= o.minPoints {
			slopes = append(slopes, s.fit.Slope)
			weights = append(weights, math.Sqrt(math.Max(1, float64(s.fit.N))))
		}
	}
	cs := CohortSlope(slopes, weights)

	rows := make([]model.PredictionRow, 0, len(all))
	for _, s := range all {
		choice := finalSlope(s, cs, o)
		rows = append(rows, model.PredictionRow{
			Name:       s.name,
			N:          len(s.points),
			Predicted:  project(s, choice.final, qualDay, qualOK),
			FinalSlope: choice.final,
			Method:     method(len(s.points)),
			Confidence: confidence(s, cs),
		})
	}
	return model.CohortPrediction{Rows: rows, CohortSlope: cs, K: o.k, MinPoints: o.minPoints}
}

// Tracked projects one swimmer using a cohort prediction's slope and shrinkage settings.
func Tracked(tl model.SwimmerTimeline, cp model.CohortPrediction, qualEnd string, opts ...Option) model.TrackedPrediction {
	o := apply(opts)
	if cp.MinPoints > 0 {
		o.k, o.minPoints = cp.K, cp.MinPoints
	}
	qualDay, qualOK := DaysSinceEpoch(qualEnd)
	s := seriesOf(tl, o.level)
	choice := finalSlope(s, cp.CohortSlope, o)
	return model.TrackedPrediction{
		Predicted:  project(s, choice.final, qualDay, qualOK),
		FinalSlope: choice.final,
		Method:     method(len(s.points)),
		N:          len(s.points),
	}
}

// BaselineDrop projects the tracked swimmer by subtracting the cohort's average improvement
// between baselineMonth and endMonth from the tracked swimmer's best as of baselineMonth.
// Improvement uses best-so-far times, so a member contributes only when both months have one.
func BaselineDrop(cohort []model.SwimmerTimeline, tracked model.SwimmerTimeline, baselineMonth, endMonth string, opts ...Option) model.DropPrediction {
	o := apply(opts)
	var sum float64
	var n int
	for _, tl := range cohort {
		b := monthly.Compute(tl, o.level)
		base, okBase := b.CumulativeBest(baselineMonth).Get()
		end, okEnd := b.CumulativeBest(endMonth).Get()
		if !okBase || !okEnd {
			continue
		}
		sum += base - end
		n++
	}
	out := model.DropPrediction{
		Contributors:    n,
		TrackedBaseline: monthly.Compute(tracked, o.level).CumulativeBest(baselineMonth),
	}
	if n == 0 {
		return out
	}
	out.AverageDrop = model.Some(sum / float64(n))
	if base, ok := out.TrackedBaseline.Get(); ok {
		out.Predicted = model.Some(base - out.AverageDrop.V)
	}
	return out
}
