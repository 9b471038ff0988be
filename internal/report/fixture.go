package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/okian/qualtrack/internal/domain/identity"
	"github.com/okian/qualtrack/internal/domain/model"
)

// Fixture is an offline snapshot of one segment: its ranking list and the scraped
// histories of the ranked swimmers.
type Fixture struct {
	Segment   model.Segment           `json:"segment"`
	Rows      []model.RankedSwimmer   `json:"rankings,omitempty"`
	Timelines []model.SwimmerTimeline `json:"timelines"`
}

// LoadFixture decodes a JSON fixture.
func LoadFixture(r io.Reader) (Fixture, error) {
	var f Fixture
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return Fixture{}, fmt.Errorf("report: decode fixture: %w", err)
	}
	if len(f.Timelines) == 0 {
		return Fixture{}, fmt.Errorf("report: fixture has no timelines")
	}
	return f, nil
}

// LoadFixtureFile reads a JSON fixture from disk.
func LoadFixtureFile(path string) (Fixture, error) {
	fh, err := os.Open(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("report: open fixture: %w", err)
	}
	defer fh.Close()
	return LoadFixture(fh)
}


// rows returns the fixture's ranking list, or one built from each timeline's best time.
func (f Fixture) rows() []model.RankedSwimmer {
	if len(f.Rows) > 0 {
		return f.Rows
	}
	rows := make([]model.RankedSwimmer, 0, len(f.Timelines))
	for _, tl := range f.Timelines {
		row := model.RankedSwimmer{Name: tl.Name, Tiref: tl.Tiref}
		for _, r := range tl.Records {
			if r.Time.Faster(row.Time) {
				row.Time, row.Date = r.Time, r.Date
			}
		}
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Time.Faster(rows[j].Time) })
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows
}

// Rankings serves the fixture as an offline ranking source.
func (f Fixture) Rankings(_ context.Context, _ model.Segment, _ string) ([]model.RankedSwimmer, error) {
	return f.rows(), nil
}

// PersonalBests returns the stored history for tiref, or nothing.
func (f Fixture) PersonalBests(_ context.Context, _ model.Segment, tiref, _ string) ([]model.PersonalBest, error) {
	for _, tl := range f.Timelines {
		if tl.Tiref != "" && tl.Tiref == tiref {
			return tl.Records, nil
		}
	}
	return nil, nil
}

// Cohort returns the stored timelines of rows, in row order.
func (f Fixture) Cohort(_ context.Context, _ model.Segment, rows []model.RankedSwimmer, _ string) ([]model.SwimmerTimeline, error) {
	cohort, _ := identity.Join(identity.TirefThenName, rows, f.Timelines)
	return cohort, nil
}
