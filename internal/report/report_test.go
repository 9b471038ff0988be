package report

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/qualtrack/internal/domain/events"
	"github.com/okian/qualtrack/internal/domain/model"
)

var (
	testCutoffs = []model.CutoffEntry{
		{Month: "2024-01", Cutoff: model.Some(63.5), Fresh: true, Reason: "20th of 3"},
		{Month: "2024-02", Cutoff: model.Some(64.0)},
		{Month: "2024-03", Cutoff: model.Some(62.5), Fresh: true},
	}
	testTracked = []model.TrackedEntry{
		{Month: "2024-01", Time: model.Some(62.0)},
		{Month: "2024-02", Time: model.None()},
		{Month: "2024-03", Time: model.Some(61.0)},
	}
)

func TestCutoffRows(t *testing.T) {
	Convey("Given a cutoff series and a tracked series", t, func() {
		rows := CutoffRows(testCutoffs, testTracked)

		Convey("Rows follow the cutoff months", func() {
			So(rows, ShouldHaveLength, 3)
			So(rows[0].Month, ShouldEqual, "2024-01")
			So(rows[0].Cutoff, ShouldEqual, "01:03.50")
			So(rows[0].Tracked, ShouldEqual, "01:02.00")
			So(rows[0].Reason, ShouldEqual, "20th of 3")
		})

		Convey("Gap is tracked minus cutoff", func() {
			So(rows[0].Gap, ShouldEqual, "-1.50")
			So(rows[2].Gap, ShouldEqual, "-1.50")
		})

		Convey("Months without a tracked time have no gap", func() {
			So(rows[1].Tracked, ShouldEqual, "--")
			So(rows[1].Gap, ShouldEqual, "")
		})
	})
}

func TestPredictionRows(t *testing.T) {
	Convey("Given a cohort prediction", t, func() {
		cp := model.CohortPrediction{Rows: []model.PredictionRow{
			{Name: "Ann Archer", N: 4, Predicted: model.Some(60.25), FinalSlope: model.Some(-0.01), Method: model.MethodLinear, Confidence: 0.8},
			{Name: "Cat Cole", N: 1, Predicted: model.Some(64), FinalSlope: model.None(), Method: model.MethodCohort},
		}}
		rows := PredictionRows(cp)

		So(rows, ShouldHaveLength, 2)
		So(rows[0].Predicted, ShouldEqual, "01:00.25")
		So(rows[0].SlopePerWk, ShouldEqual, "-0.070")
		So(rows[0].Confidence, ShouldEqual, "0.80")
		So(rows[1].SlopePerWk, ShouldEqual, "")
		So(rows[1].Points, ShouldEqual, 1)
	})
}

func TestWriters(t *testing.T) {
	Convey("Given cutoff rows", t, func() {
		rows := CutoffRows(testCutoffs, testTracked)

		Convey("The text table has a header and a line per month", func() {
			var buf bytes.Buffer
			So(WriteCutoffTable(&buf, rows), ShouldBeNil)
			lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
			So(lines, ShouldHaveLength, 4)
			So(lines[0], ShouldStartWith, "MONTH")
			So(lines[3], ShouldContainSubstring, "01:02.50")
		})

		Convey("The CSV carries the tag names as header", func() {
			var buf bytes.Buffer
			So(WriteCSV(&buf, rows), ShouldBeNil)
			lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
			So(lines[0], ShouldEqual, "month,cutoff,tracked,gap,fresh,reason")
			So(lines[1], ShouldEqual, "2024-01,01:03.50,01:02.00,-1.50,true,20th of 3")
		})

		Convey("Prediction tables print too", func() {
			var buf bytes.Buffer
			So(WritePredictionTable(&buf, []PredictionRow{{Name: "Ann", Points: 2, Predicted: "01:01.00"}}), ShouldBeNil)
			So(buf.String(), ShouldContainSubstring, "SLOPE/WK")
			So(buf.String(), ShouldContainSubstring, "Ann")
		})
	})
}

func TestCutoffChart(t *testing.T) {
	Convey("Given a cutoff series", t, func() {
		Convey("A PNG is rendered", func() {
			var buf bytes.Buffer
			So(CutoffChart(&buf, "100 Free 13 F", testCutoffs, "Ann Archer", testTracked), ShouldBeNil)
			So(bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG\r\n\x1a\n")), ShouldBeTrue)
		})

		Convey("A flat series still renders", func() {
			flat := []model.CutoffEntry{{Month: "2024-01", Cutoff: model.Some(60)}, {Month: "2024-02", Cutoff: model.Some(60)}}
			var buf bytes.Buffer
			So(CutoffChart(&buf, "flat", flat, "", nil), ShouldBeNil)
			So(buf.Len(), ShouldBeGreaterThan, 0)
		})

		Convey("One valid month is not enough", func() {
			few := []model.CutoffEntry{{Month: "2024-01", Cutoff: model.Some(60)}, {Month: "2024-02", Cutoff: model.None()}}
			So(CutoffChart(&bytes.Buffer{}, "few", few, "", nil), ShouldEqual, ErrNotEnoughData)
		})
	})
}

const fixtureJSON = `{
  "segment": {"event": "100 Free", "ageGroup": "13", "sex": "F"},
  "rankings": [
    {"rank": 1, "name": "Bea Brook", "tiref": "1002", "time": 62.5},
    {"rank": 2, "name": "Ann Archer", "tiref": "1001", "time": 61.0},
    {"rank": 3, "name": "Dee Dale", "time": 65.0}
  ],
  "timelines": [
    {"name": "Ann Archer", "tiref": "1001", "records": [{"date": "10/01/2024", "time": 62.0}]},
    {"name": "Bea Brook", "tiref": "1002", "records": [{"date": "20/01/2024", "time": 63.5}]},
    {"name": "Zed Zane", "tiref": "2000", "records": [{"date": "20/01/2024", "time": null}]}
  ]
}`

func TestFixture(t *testing.T) {
	Convey("Given a fixture file", t, func() {
		path := filepath.Join(t.TempDir(), "fixture.json")
		So(os.WriteFile(path, []byte(fixtureJSON), 0o600), ShouldBeNil)

		f, err := LoadFixtureFile(path)
		So(err, ShouldBeNil)
		So(f.Segment, ShouldResemble, model.Segment{Event: "100 Free", AgeGroup: "13", Sex: "F"})
		So(f.Timelines[2].Records[0].Time.Valid, ShouldBeFalse)

		ctx := context.Background()

		Convey("The cohort follows ranking order and skips unranked timelines", func() {
			rows, err := f.Rankings(ctx, f.Segment, "")
			So(err, ShouldBeNil)
			cohort, err := f.Cohort(ctx, f.Segment, rows, "")
			So(err, ShouldBeNil)
			So(cohort, ShouldHaveLength, 2)
			So(cohort[0].Tiref, ShouldEqual, "1002")
			So(cohort[1].Tiref, ShouldEqual, "1001")
		})

		Convey("Without rankings the list is built from best times", func() {
			f.Rows = nil
			rows, err := f.Rankings(ctx, f.Segment, "")
			So(err, ShouldBeNil)
			So(rows, ShouldHaveLength, 3)
			So(rows[0].Name, ShouldEqual, "Ann Archer")
			So(rows[0].Rank, ShouldEqual, 1)
			So(rows[2].Name, ShouldEqual, "Zed Zane")
			So(rows[2].Time.Valid, ShouldBeFalse)
		})

		Convey("Personal bests are looked up by tiref", func() {
			records, err := f.PersonalBests(ctx, f.Segment, "1001", "")
			So(err, ShouldBeNil)
			So(records, ShouldHaveLength, 1)

			records, err = f.PersonalBests(ctx, f.Segment, "4242", "")
			So(err, ShouldBeNil)
			So(records, ShouldBeEmpty)
		})
	})

	Convey("Given malformed fixtures", t, func() {
		_, err := LoadFixture(strings.NewReader(`{"timelines": []}`))
		So(err, ShouldNotBeNil)

		_, err = LoadFixture(strings.NewReader(`{"timelines": [{"name": "A"}], "extra": 1}`))
		So(err, ShouldNotBeNil)

		_, err = LoadFixtureFile(filepath.Join(t.TempDir(), "missing.json"))
		So(err, ShouldNotBeNil)
	})
}

func TestClient(t *testing.T) {
	Convey("Given a server answering refresh requests", t, func() {
		var calls int64
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/events":
				_ = json.NewEncoder(w).Encode(events.Default())
			case "/refresh":
				atomic.AddInt64(&calls, 1)
				var req RefreshRequest
				_ = json.NewDecoder(r.Body).Decode(&req)
				switch req.Event {
				case "50 Free":
					w.WriteHeader(http.StatusAccepted)
				case "100 Free":
					w.WriteHeader(http.StatusOK)
				case "200 Free":
					w.WriteHeader(http.StatusTooManyRequests)
				default:
					w.WriteHeader(http.StatusInternalServerError)
				}
			default:
				http.NotFound(w, r)
			}
		}))
		defer srv.Close()

		c := NewClient(srv.URL+"/", 2*time.Second)

		Convey("The catalogue is decoded", func() {
			cat, err := c.Catalogue(context.Background())
			So(err, ShouldBeNil)
			So(len(cat.Events), ShouldEqual, len(events.Default().Events))
		})

		Convey("Each answer is counted", func() {
			segs := []model.Segment{
				{Event: "50 Free", AgeGroup: "13", Sex: "M"},
				{Event: "50 Free", AgeGroup: "14", Sex: "M"},
				{Event: "100 Free", AgeGroup: "13", Sex: "M"},
				{Event: "200 Free", AgeGroup: "13", Sex: "M"},
				{Event: "400 Free", AgeGroup: "13", Sex: "M"},
			}
			sum, err := c.RefreshSegments(context.Background(), segs, 2)
			So(err, ShouldBeNil)
			So(sum, ShouldResemble, RefreshSummary{Accepted: 2, Duplicate: 1, Rejected: 1, Failed: 1})
			So(atomic.LoadInt64(&calls), ShouldEqual, 5)
		})
	})

	Convey("Given an unreachable server", t, func() {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		c := NewClient(url, time.Second)
		_, err := c.Catalogue(context.Background())
		So(err, ShouldNotBeNil)

		sum, err := c.RefreshSegments(context.Background(), []model.Segment{{Event: "50 Free", AgeGroup: "13", Sex: "M"}}, 1)
		So(err, ShouldBeNil)
		So(sum.Failed, ShouldEqual, 1)
	})
}
