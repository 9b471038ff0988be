package report

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/jszwec/csvutil"

	"github.com/okian/qualtrack/internal/domain/model"
	"github.com/okian/qualtrack/internal/domain/swimtime"
)

// CutoffRow is one printable month of a cutoff report.
type CutoffRow struct {
	Month   string `csv:"month"`
	Cutoff  string `csv:"cutoff"`
	Tracked string `csv:"tracked"`
	Gap     string `csv:"gap"`
	Fresh   bool   `csv:"fresh"`
	Reason  string `csv:"reason"`
}

// PredictionRow is one printable cohort projection.
type PredictionRow struct {
	Name       string `csv:"name"`
	Points     int    `csv:"points"`
	Predicted  string `csv:"predicted"`
	SlopePerWk string `csv:"slope_per_week"`
	Method     string `csv:"method"`
	Confidence string `csv:"confidence"`
}

func gap(tracked, cutoff model.Seconds) string {
	if !tracked.Valid || !cutoff.Valid {
		return ""
	}
	return strconv.FormatFloat(tracked.V-cutoff.V, 'f', 2, 64)
}

// CutoffRows joins the cutoff series with the tracked series by month. Gap is tracked
// minus cutoff, so a negative gap is inside the cutoff.
func CutoffRows(cutoffs []model.CutoffEntry, tracked []model.TrackedEntry) []CutoffRow {
	byMonth := make(map[string]model.Seconds, len(tracked))
	for _, t := range tracked {
		byMonth[t.Month] = t.Time
	}
	rows := make([]CutoffRow, 0, len(cutoffs))
	for _, c := range cutoffs {
		t := byMonth[c.Month]
		rows = append(rows, CutoffRow{
			Month:   c.Month,
			Cutoff:  swimtime.FormatTime(c.Cutoff),
			Tracked: swimtime.FormatTime(t),
			Gap:     gap(t, c.Cutoff),
			Fresh:   c.Fresh,
			Reason:  c.Reason,
		})
	}
	return rows
}

// PredictionRows formats a cohort prediction. Slopes are shown per week.
func PredictionRows(cp model.CohortPrediction) []PredictionRow {
	rows := make([]PredictionRow, 0, len(cp.Rows))
	for _, r := range cp.Rows {
		slope := ""
		if v, ok := r.FinalSlope.Get(); ok {
			slope = strconv.FormatFloat(v*7, 'f', 3, 64)
		}
		rows = append(rows, PredictionRow{
			Name:       r.Name,
			Points:     r.N,
			Predicted:  swimtime.FormatTime(r.Predicted),
			SlopePerWk: slope,
			Method:     r.Method,
			Confidence: strconv.FormatFloat(r.Confidence, 'f', 2, 64),
		})
	}
	return rows
}

// WriteCutoffTable prints rows as an aligned text table.
func WriteCutoffTable(w io.Writer, rows []CutoffRow) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MONTH\tCUTOFF\tTRACKED\tGAP\tREASON")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Month, r.Cutoff, r.Tracked, r.Gap, r.Reason)
	}
	return tw.Flush()
}

// WritePredictionTable prints rows as an aligned text table.
func WritePredictionTable(w io.Writer, rows []PredictionRow) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tN\tPREDICTED\tSLOPE/WK\tMETHOD\tCONF")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\n", r.Name, r.Points, r.Predicted, r.SlopePerWk, r.Method, r.Confidence)
	}
	return tw.Flush()
}

// WriteCSV encodes rows (a slice of CutoffRow or PredictionRow) with a header line.
func WriteCSV(w io.Writer, rows any) error {
	b, err := csvutil.Marshal(rows)
	if err != nil {
		return fmt.Errorf("report: encode csv: %w", err)
	}
	_, err = w.Write(b)
	return err
}
