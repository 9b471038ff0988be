package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	app "github.com/okian/qualtrack/internal/app"
	"github.com/okian/qualtrack/internal/domain/swimtime"
	"github.com/okian/qualtrack/internal/report"
)

var (
	predictFixture  string
	predictSwimmer  string
	predictQualEnd  string
	predictBaseline string
	predictLevel    string
	predictK        float64
	predictAnchor   string
	predictFormat   string
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Project the fixture's cohort to the qualifying window end",
	Long: `Fits each ranked swimmer's improvement trend and projects it to --qual-end.
With --swimmer the tracked swimmer is projected too; --baseline adds the
average-drop projection from that month.

Example:
  qualtrack-report predict --fixture 100free-13f.json --swimmer 1001 --qual-end 2024-12-31 --baseline 2024-01`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		svc, seg, err := offlineService(predictFixture, predictAnchor)
		if err != nil {
			return err
		}
		rep, err := svc.Predict(ctx, app.PredictRequest{
			Segment:  seg,
			Swimmer:  predictSwimmer,
			QualEnd:  predictQualEnd,
			Baseline: predictBaseline,
			Level:    predictLevel,
			K:        predictK,
		})
		if err != nil {
			return err
		}

		rows := report.PredictionRows(rep.Cohort)
		return emit(cmd.OutOrStdout(), predictFormat, func(w io.Writer) error {
			if err := report.WritePredictionTable(w, rows); err != nil {
				return err
			}
			fmt.Fprintf(w, "\ncohort slope/wk: %s  k: %.2f  window end: %s\n", slopePerWeek(rep), rep.Cohort.K, rep.QualEnd)
			if rep.Tracked != nil {
				fmt.Fprintf(w, "%s: %s (%s, %d points)\n", rep.TrackedName, swimtime.FormatTime(rep.Tracked.Predicted), rep.Tracked.Method, rep.Tracked.N)
			}
			if rep.Drop != nil {
				fmt.Fprintf(w, "baseline drop: %s from %s over %d swimmers\n",
					swimtime.FormatTime(rep.Drop.Predicted), swimtime.FormatTime(rep.Drop.TrackedBaseline), rep.Drop.Contributors)
			}
			return nil
		}, rows, rep)
	},
}

func slopePerWeek(rep app.PredictReport) string {
	v, ok := rep.Cohort.CohortSlope.Get()
	if !ok {
		return "--"
	}
	return fmt.Sprintf("%.3f", v*7)
}

func init() {
	predictCmd.Flags().StringVar(&predictFixture, "fixture", "", "path to a segment fixture JSON (required)")
	predictCmd.Flags().StringVar(&predictSwimmer, "swimmer", "", "tiref or name of the tracked swimmer")
	predictCmd.Flags().StringVar(&predictQualEnd, "qual-end", "", "qualifying window end, YYYY-MM-DD or DD/MM/YYYY")
	predictCmd.Flags().StringVar(&predictBaseline, "baseline", "", "baseline month YYYY-MM for the average-drop projection")
	predictCmd.Flags().StringVar(&predictLevel, "level", "", "meet level filter, e.g. L1 or L3")
	predictCmd.Flags().Float64Var(&predictK, "k", 0, "slope shrinkage constant (default from config)")
	predictCmd.Flags().StringVar(&predictAnchor, "anchor", "", "anchor date YYYY-MM-DD (default: newest swim in the fixture)")
	predictCmd.Flags().StringVar(&predictFormat, "format", formatTable, "output format: table, csv or json")
	_ = predictCmd.MarkFlagRequired("fixture")
	rootCmd.AddCommand(predictCmd)
}
