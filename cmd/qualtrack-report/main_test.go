package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/qualtrack/internal/domain/events"
	"github.com/okian/qualtrack/internal/domain/model"
)

const fixtureJSON = `{
  "segment": {"event": "100 Free", "ageGroup": "13", "sex": "F"},
  "rankings": [
    {"rank": 1, "name": "Ann Archer", "tiref": "1001", "club": "Tonbridge SC", "time": 61.0, "date": "15/02/2024"},
    {"rank": 2, "name": "Bea Brook", "tiref": "1002", "club": "Maidstone", "time": 62.5, "date": "05/03/2024"},
    {"rank": 3, "name": "Cat Cole", "tiref": "1003", "club": "Tonbridge SC", "time": 64.0, "date": "01/02/2024"},
    {"rank": 4, "name": "Dee Dale", "club": "Dover", "time": 65.0, "date": "01/03/2024"}
  ],
  "timelines": [
    {"name": "Ann Archer", "tiref": "1001", "records": [
      {"date": "10/01/2024", "time": 62.0, "level": "3"}, {"date": "15/02/2024", "time": 61.0, "level": "3"}]},
    {"name": "Bea Brook", "tiref": "1002", "records": [
      {"date": "20/01/2024", "time": 63.5, "level": "3"}, {"date": "05/03/2024", "time": 62.5, "level": "3"}]},
    {"name": "Cat Cole", "tiref": "1003", "records": [{"date": "01/02/2024", "time": 64.0, "level": "3"}]}
  ]
}`

func execute(args ...string) (string, error) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeFixture(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "fixture.json")
	if err := os.WriteFile(path, []byte(fixtureJSON), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRootCommand(t *testing.T) {
	convey.Convey("Given the root command", t, func() {
		names := map[string]bool{}
		for _, c := range rootCmd.Commands() {
			names[c.Name()] = true
		}

		convey.So(rootCmd.Use, convey.ShouldEqual, "qualtrack-report")
		for _, name := range []string{"cutoff", "predict", "refresh"} {
			convey.So(names[name], convey.ShouldBeTrue)
		}
		convey.So(cutoffCmd.Flags().Lookup("format").DefValue, convey.ShouldEqual, "table")
		convey.So(refreshCmd.Flags().Lookup("workers").DefValue, convey.ShouldEqual, "4")
	})
}

func TestCutoffCommand(t *testing.T) {
	convey.Convey("Given a fixture", t, func() {
		path := writeFixture(t)

		convey.Convey("When the cutoff is printed as CSV with a chart", func() {
			png := filepath.Join(t.TempDir(), "cutoff.png")
			out, err := execute("cutoff", "--fixture", path, "--swimmer", "ann archer",
				"--start", "2024-01", "--end", "2024-03", "--format", "csv", "--png", png)

			convey.Convey("Then every month is a row", func() {
				convey.So(err, convey.ShouldBeNil)
				lines := strings.Split(strings.TrimSpace(out), "\n")
				convey.So(lines, convey.ShouldHaveLength, 4)
				convey.So(lines[0], convey.ShouldEqual, "month,cutoff,tracked,gap,fresh,reason")
				convey.So(lines[1], convey.ShouldStartWith, "2024-01,01:03.50,01:02.00,-1.50,")
				convey.So(lines[3], convey.ShouldStartWith, "2024-03,01:02.50,01:01.00,-1.50,")

				info, err := os.Stat(png)
				convey.So(err, convey.ShouldBeNil)
				convey.So(info.Size(), convey.ShouldBeGreaterThan, 0)
			})
		})

		convey.Convey("When the fixture is missing", func() {
			_, err := execute("cutoff", "--fixture", filepath.Join(t.TempDir(), "none.json"), "--format", "table")

			convey.Convey("Then the command fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestPredictCommand(t *testing.T) {
	convey.Convey("Given a fixture", t, func() {
		path := writeFixture(t)

		convey.Convey("When the prediction is printed as JSON", func() {
			out, err := execute("predict", "--fixture", path, "--swimmer", "1001",
				"--qual-end", "2024-12-31", "--baseline", "2024-01", "--format", "json")
			convey.So(err, convey.ShouldBeNil)

			var rep struct {
				QualEnd string `json:"qualEnd"`
				Cohort  struct {
					Rows []model.PredictionRow `json:"rows"`
				} `json:"cohort"`
				Drop *model.DropPrediction `json:"drop"`
			}
			convey.So(json.Unmarshal([]byte(out), &rep), convey.ShouldBeNil)

			convey.Convey("Then the cohort and the baseline drop are reported", func() {
				convey.So(rep.QualEnd, convey.ShouldEqual, "2024-12-31")
				convey.So(rep.Cohort.Rows, convey.ShouldHaveLength, 3)
				convey.So(rep.Drop, convey.ShouldNotBeNil)
				convey.So(rep.Drop.Contributors, convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When an unknown format is asked for", func() {
			_, err := execute("predict", "--fixture", path, "--baseline", "", "--swimmer", "", "--format", "yaml")
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestRefreshCommand(t *testing.T) {
	convey.Convey("Given a server accepting refreshes", t, func() {
		var posted []string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/events":
				_ = json.NewEncoder(w).Encode(events.Default())
			case "/refresh":
				var body map[string]any
				_ = json.NewDecoder(r.Body).Decode(&body)
				posted = append(posted, body["sex"].(string))
				w.WriteHeader(http.StatusAccepted)
			}
		}))
		defer srv.Close()

		convey.Convey("When refreshing one event and age", func() {
			out, err := execute("refresh", "--url", srv.URL, "--event", "100 Free", "--age", "13", "--sex", "", "--workers", "1")

			convey.Convey("Then both sexes are posted", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldContainSubstring, "accepted=2")
				convey.So(posted, convey.ShouldHaveLength, 2)
			})
		})

		convey.Convey("When nothing matches", func() {
			_, err := execute("refresh", "--url", srv.URL, "--event", "100 Butterfly", "--age", "", "--sex", "")
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestFilterSegments(t *testing.T) {
	convey.Convey("Given the catalogue segments", t, func() {
		all := events.Default().Segments()
		convey.So(filterSegments(all, "", "", ""), convey.ShouldHaveLength, len(all))
		convey.So(filterSegments(all, "50 Free", "", "F"), convey.ShouldHaveLength, 6)
		convey.So(filterSegments(all, "50 Free", "13", "M"), convey.ShouldResemble,
			[]model.Segment{{Event: "50 Free", AgeGroup: "13", Sex: "M"}})
	})
}
