// Package report renders cutoff and prediction results as charts, tables and CSV.
package report

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/okian/qualtrack/internal/domain/model"
)

// ErrNotEnoughData is returned when a chart would have fewer than two cutoff points.
var ErrNotEnoughData = errors.New("report: at least two months with a cutoff are needed")

const (
	chartWidth  = 1024
	chartHeight = 480
	monthLayout = "2006-01"
)

func lineStyle(col drawing.Color, dashed bool) chart.Style {
	s := chart.Style{
		StrokeColor: col,
		StrokeWidth: 2,
		DotColor:    col,
		DotWidth:    3,
	}
	if dashed {
		s.StrokeDashArray = []float64{5, 3}
	}
	return s
}

type points struct {
	xs []time.Time
	ys []float64
}

func (p *points) add(month string, v model.Seconds) {
	t, err := time.Parse(monthLayout, month)
	if err != nil || !v.Valid {
		return
	}
	p.xs = append(p.xs, t)
	p.ys = append(p.ys, v.V)
}

// CutoffChart draws the monthly cutoff and, when present, the tracked swimmer's times as
// a PNG. Months without a value are skipped.
func CutoffChart(w io.Writer, title string, cutoffs []model.CutoffEntry, trackedName string, tracked []model.TrackedEntry) error {
	var cut, trk points
	for _, e := range cutoffs {
		cut.add(e.Month, e.Cutoff)
	}
	for _, e := range tracked {
		trk.add(e.Month, e.Time)
	}
	if len(cut.xs) < 2 {
		return ErrNotEnoughData
	}

	series := []chart.Series{
		chart.TimeSeries{Name: "Cutoff", XValues: cut.xs, YValues: cut.ys, Style: lineStyle(chart.ColorRed, false)},
	}
	if len(trk.xs) >= 2 {
		if trackedName == "" {
			trackedName = "Tracked"
		}
		series = append(series, chart.TimeSeries{Name: trackedName, XValues: trk.xs, YValues: trk.ys, Style: lineStyle(chart.ColorBlue, true)})
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, ys := range [][]float64{cut.ys, trk.ys} {
		for _, y := range ys {
			lo, hi = math.Min(lo, y), math.Max(hi, y)
		}
	}
	// go-chart rejects a zero-height range
	pad := math.Max((hi-lo)*0.1, 0.5)

	ch := chart.Chart{
		Title:      title,
		Width:      chartWidth,
		Height:     chartHeight,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      chart.XAxis{ValueFormatter: chart.TimeValueFormatterWithFormat(monthLayout)},
		YAxis: chart.YAxis{
			Name:  "seconds",
			Range: &chart.ContinuousRange{Min: lo - pad, Max: hi + pad},
		},
		Series: series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("report: render chart: %w", err)
	}
	return nil
}
