package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	app "github.com/okian/qualtrack/internal/app"
	"github.com/okian/qualtrack/internal/report"
)

var (
	cutoffFixture string
	cutoffSwimmer string
	cutoffMonths  int
	cutoffStart   string
	cutoffEnd     string
	cutoffLevel   string
	cutoffAnchor  string
	cutoffFormat  string
	cutoffPNG     string
)

var cutoffCmd = &cobra.Command{
	Use:   "cutoff",
	Short: "Monthly virtual cutoff from a fixture",
	Long: `Rebuilds the month-by-month qualifying cutoff for the fixture's segment and, with
--swimmer, the tracked swimmer's times alongside it.

Examples:
  qualtrack-report cutoff --fixture 100free-13f.json --start 2024-01 --end 2024-12
  qualtrack-report cutoff --fixture 100free-13f.json --swimmer 1001 --format csv --png cutoff.png`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		svc, seg, err := offlineService(cutoffFixture, cutoffAnchor)
		if err != nil {
			return err
		}
		rep, err := svc.CutoffSeries(ctx, app.CutoffRequest{
			Segment: seg,
			Swimmer: cutoffSwimmer,
			Window:  app.Window{Months: cutoffMonths, Start: cutoffStart, End: cutoffEnd},
			Level:   cutoffLevel,
		})
		if err != nil {
			return err
		}

		if cutoffPNG != "" {
			title := fmt.Sprintf("%s %s %s: virtual %d cutoff", seg.Event, seg.AgeGroup, seg.Sex, rep.CutoffSize)
			err := writeFile(cutoffPNG, func(w io.Writer) error {
				return report.CutoffChart(w, title, rep.CutoffSeries, rep.TrackedName, rep.TrackedSeries)
			})
			if err != nil {
				return fmt.Errorf("write chart: %w", err)
			}
		}

		rows := report.CutoffRows(rep.CutoffSeries, rep.TrackedSeries)
		return emit(cmd.OutOrStdout(), cutoffFormat, func(w io.Writer) error {
			return report.WriteCutoffTable(w, rows)
		}, rows, rep)
	},
}

func init() {
	cutoffCmd.Flags().StringVar(&cutoffFixture, "fixture", "", "path to a segment fixture JSON (required)")
	cutoffCmd.Flags().StringVar(&cutoffSwimmer, "swimmer", "", "tiref or name of the tracked swimmer")
	cutoffCmd.Flags().IntVar(&cutoffMonths, "months", 0, "months ending at the anchor (default from config)")
	cutoffCmd.Flags().StringVar(&cutoffStart, "start", "", "first month, YYYY-MM")
	cutoffCmd.Flags().StringVar(&cutoffEnd, "end", "", "last month, YYYY-MM")
	cutoffCmd.Flags().StringVar(&cutoffLevel, "level", "", "meet level filter, e.g. L1 or L3")
	cutoffCmd.Flags().StringVar(&cutoffAnchor, "anchor", "", "anchor date YYYY-MM-DD (default: newest swim in the fixture)")
	cutoffCmd.Flags().StringVar(&cutoffFormat, "format", formatTable, "output format: table, csv or json")
	cutoffCmd.Flags().StringVar(&cutoffPNG, "png", "", "also write the chart to this PNG file")
	_ = cutoffCmd.MarkFlagRequired("fixture")
	rootCmd.AddCommand(cutoffCmd)
}
