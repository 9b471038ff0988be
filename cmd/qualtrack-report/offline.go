package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/qualtrack/internal/adapters/cache"
	app "github.com/okian/qualtrack/internal/app"
	"github.com/okian/qualtrack/internal/domain/model"
	"github.com/okian/qualtrack/internal/domain/swimtime"
	"github.com/okian/qualtrack/internal/report"
	"github.com/okian/qualtrack/pkg/logger"
)

// Output formats.
const (
	formatTable = "table"
	formatCSV   = "csv"
	formatJSON  = "json"
)

// latestSwim is the date of the newest record in the fixture, or today.
func latestSwim(f report.Fixture) time.Time {
	var latest time.Time
	for _, tl := range f.Timelines {
		for _, r := range tl.Records {
			if t, ok := swimtime.ParseAnyDate(r.Date); ok && t.After(latest) {
				latest = t
			}
		}
	}
	if latest.IsZero() {
		return time.Now().UTC()
	}
	return latest
}

// offlineService serves a fixture through the service without a cache, anchored at anchor
// ("YYYY-MM-DD") or at the fixture's newest swim.
func offlineService(path, anchor string) (*app.Service, model.Segment, error) {
	f, err := report.LoadFixtureFile(path)
	if err != nil {
		return nil, model.Segment{}, err
	}
	now := latestSwim(f)
	if anchor != "" {
		t, ok := swimtime.ParseAnyDate(anchor)
		if !ok {
			return nil, model.Segment{}, fmt.Errorf("invalid --anchor %q", anchor)
		}
		now = t
	}

	svc := app.New(
		app.WithSource(f),
		app.WithCache(cache.Nop{}),
		app.WithClock(func() time.Time { return now }),
		app.WithLogger(logger.Named("report")),
		app.WithMaxCohort(cfg.MaxCohort),
		app.WithDefaultMonths(cfg.DefaultMonths),
		app.WithPredictionK(cfg.PredictionK),
	)
	seg, err := svc.ParseSegment(f.Segment.Event, f.Segment.AgeGroup, f.Segment.Sex)
	if err != nil {
		return nil, model.Segment{}, err
	}
	return svc, seg, nil
}

// emit writes rows as a table or CSV, or v as indented JSON.
func emit(w io.Writer, format string, table func(io.Writer) error, rows, v any) error {
	switch format {
	case formatTable:
		return table(w)
	case formatCSV:
		return report.WriteCSV(w, rows)
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		return fmt.Errorf("unknown --format %q (table, csv or json)", format)
	}
}

func writeFile(path string, render func(io.Writer) error) (err error) {
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := fh.Close(); err == nil {
			err = cerr
		}
	}()
	return render(fh)
}
