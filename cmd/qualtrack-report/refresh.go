package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/qualtrack/internal/domain/model"
	"github.com/okian/qualtrack/internal/report"
	"github.com/okian/qualtrack/pkg/logger"
)

var (
	refreshURL     string
	refreshEvent   string
	refreshAge     string
	refreshSex     string
	refreshWorkers int
	refreshTimeout time.Duration
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Queue segment refreshes on a running server",
	Long: `Reads the server's event catalogue and posts a refresh for every segment that
matches the --event, --age and --sex filters. Empty filters match everything.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		log := logger.Named("refresh")
		client := report.NewClient(refreshURL, refreshTimeout)

		cat, err := client.Catalogue(ctx)
		if err != nil {
			return err
		}
		segs := filterSegments(cat.Segments(), refreshEvent, refreshAge, refreshSex)
		if len(segs) == 0 {
			return fmt.Errorf("no segments match event=%q age=%q sex=%q", refreshEvent, refreshAge, refreshSex)
		}
		log.Info(ctx, "posting refreshes", logger.Int("segments", len(segs)), logger.Int("workers", refreshWorkers))

		start := time.Now()
		sum, err := client.RefreshSegments(ctx, segs, refreshWorkers)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "accepted=%d duplicate=%d rejected=%d failed=%d elapsed=%s\n",
			sum.Accepted, sum.Duplicate, sum.Rejected, sum.Failed, time.Since(start).Round(time.Millisecond))
		if sum.Failed > 0 {
			return fmt.Errorf("%d refresh requests failed", sum.Failed)
		}
		return nil
	},
}

func filterSegments(all []model.Segment, event, age, sex string) []model.Segment {
	var out []model.Segment
	for _, s := range all {
		if (event == "" || s.Event == event) && (age == "" || s.AgeGroup == age) && (sex == "" || s.Sex == sex) {
			out = append(out, s)
		}
	}
	return out
}

func init() {
	refreshCmd.Flags().StringVar(&refreshURL, "url", "http://localhost:9080", "base URL of the qualtrack server")
	refreshCmd.Flags().StringVar(&refreshEvent, "event", "", "only this event, e.g. \"100 Free\"")
	refreshCmd.Flags().StringVar(&refreshAge, "age", "", "only this age group")
	refreshCmd.Flags().StringVar(&refreshSex, "sex", "", "only this sex, M or F")
	refreshCmd.Flags().IntVar(&refreshWorkers, "workers", 4, "concurrent requests")
	refreshCmd.Flags().DurationVar(&refreshTimeout, "timeout", 10*time.Second, "per-request timeout")
	rootCmd.AddCommand(refreshCmd)
}
