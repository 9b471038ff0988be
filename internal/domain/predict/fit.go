package predict

import (
	"math"
	"time"

	"github.com/okian/qualtrack/internal/domain/model"
	"github.com/okian/qualtrack/internal/domain/swimtime"
)

const msPerDay = 86400000

// DaysSinceEpoch returns whole days since 1970-01-01 of an ISO, RFC3339 or UK date.
func DaysSinceEpoch(date string) (int, bool) {
	t, ok := swimtime.ParseAnyDate(date)
	if !ok {
		return 0, false
	}
	return daysOf(t), true
}

func daysOf(t time.Time) int {
	return int(math.Floor(float64(t.UnixMilli()) / msPerDay))
}

// Fit is an ordinary least squares line. Stderr is present only with more than two points.
type Fit struct {
	Slope     float64
	Intercept float64
	Stderr    model.Seconds
	N         int
}

// FitLinear fits y = intercept + slope*x. Points sharing one x give a flat line through their mean.
// It fails only for empty or mismatched input.
func FitLinear(xs, ys []float64) (Fit, bool) {
	n := len(xs)
	if n == 0 || n != len(ys) {
		return Fit{}, false
	}
	var sx, sy float64
	for i := range xs {
		sx += xs[i]
		sy += ys[i]
	}
	mx, my := sx/float64(n), sy/float64(n)

	var num, den float64
	for i := range xs {
		dx := xs[i] - mx
		num += dx * (ys[i] - my)
		den += dx * dx
	}
	slope := 0.0
	if den != 0 {
		slope = num / den
	}
	f := Fit{Slope: slope, Intercept: my - slope*mx, N: n}
	if n > 2 {
		var rss float64
		for i := range xs {
			r := ys[i] - (f.Intercept + slope*xs[i])
			rss += r * r
		}
		f.Stderr = model.Some(math.Sqrt(rss / float64(n-2)))
	}
	return f, true
}

// At evaluates the line at x.
func (f Fit) At(x float64) float64 { return f.Intercept + f.Slope*x }
