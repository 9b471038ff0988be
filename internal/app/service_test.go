package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	service "github.com/okian/qualtrack/internal/app"
	"github.com/okian/qualtrack/internal/domain/events"
	"github.com/okian/qualtrack/internal/domain/model"
	"github.com/okian/qualtrack/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

var seg13 = model.Segment{Event: "100 Free", AgeGroup: "13", Sex: model.SexFemale}

func newTestService(src *fakeSource, clk *fakeClock, opts ...service.Option) *service.Service {
	base := []service.Option{
		service.WithSource(src),
		service.WithClock(clk.now),
		service.WithLogger(logger.Nop()),
	}
	return service.New(append(base, opts...)...)
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it should have sensible defaults", func() {
			So(svc, ShouldNotBeNil)
			So(svc.Catalogue(), ShouldNotBeNil)
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, false)
			So(stats["snapshots"], ShouldEqual, false)
		})
	})

	Convey("Given a fixed clock", t, func() {
		clk := &fakeClock{t: time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)}

		Convey("The ranking date defaults to the end of the year", func() {
			So(newTestService(newFakeSource(), clk).RankingDate(), ShouldEqual, "31/12/2024")
		})

		Convey("A configured ranking date wins", func() {
			svc := newTestService(newFakeSource(), clk, service.WithRankingDate("30/06/2024"))
			So(svc.RankingDate(), ShouldEqual, "30/06/2024")
		})
	})
}

func TestService_ParseSegment(t *testing.T) {
	Convey("Given a service", t, func() {
		svc := service.New(service.WithSource(newFakeSource()))

		Convey("Event names are canonicalised and sex defaults to M", func() {
			seg, err := svc.ParseSegment("100  free", "14", "")
			So(err, ShouldBeNil)
			So(seg, ShouldResemble, model.Segment{Event: "100 Free", AgeGroup: "14", Sex: model.SexMale})
		})

		Convey("All selects both sexes in any case", func() {
			seg, err := svc.ParseSegment("200 IM", "15", "all")
			So(err, ShouldBeNil)
			So(seg.Sex, ShouldEqual, model.SexBoth)

			seg, err = svc.ParseSegment("200 IM", "15", "f")
			So(err, ShouldBeNil)
			So(seg.Sex, ShouldEqual, model.SexFemale)
		})

		Convey("Bad parameters are rejected", func() {
			_, err := svc.ParseSegment("Butterfly", "14", "M")
			So(errors.Is(err, service.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, events.ErrUnknownEvent), ShouldBeTrue)

			_, err = svc.ParseSegment("100 Free", "open", "M")
			So(errors.Is(err, service.ErrBadRequest), ShouldBeTrue)

			_, err = svc.ParseSegment("100 Free", "14", "X")
			So(errors.Is(err, service.ErrBadRequest), ShouldBeTrue)
		})
	})
}

func TestService_CutoffFloor(t *testing.T) {
	Convey("Given a ranking list longer than the cutoff size", t, func() {
		ctx := context.Background()
		src := newFakeSource()
		src.padding = 16
		clk := &fakeClock{t: time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)}
		svc := newTestService(src, clk)

		report, err := svc.CutoffSeries(ctx, service.CutoffRequest{
			Segment: seg13,
			Window:  service.Window{Start: "2024-01", End: "2024-03"},
		})
		So(err, ShouldBeNil)

		Convey("Then the floor is the board's 20th fastest time", func() {
			top, err := svc.Top(ctx, seg13, 20)
			So(err, ShouldBeNil)
			So(top, ShouldHaveLength, 20)
			So(top[19].Time, ShouldAlmostEqual, 67.5, 1e-9)

			So(report.Floor.Valid, ShouldBeTrue)
			So(report.Floor.V, ShouldAlmostEqual, top[19].Time, 1e-9)
		})

		Convey("And every month is floored", func() {
			So(report.CutoffSeries, ShouldHaveLength, 3)
			for _, e := range report.CutoffSeries {
				So(e.Cutoff.V, ShouldAlmostEqual, 67.5, 1e-9)
			}
			So(report.CutoffSeries[0].Reason, ShouldEqual, "floor enforced")
		})
	})
}

func TestService_CutoffSeries(t *testing.T) {
	Convey("Given a service over a four-swimmer ranking list", t, func() {
		ctx := context.Background()
		src := newFakeSource()
		clk := &fakeClock{t: time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)}
		svc := newTestService(src, clk)

		Convey("When computing the cutoff for an explicit range", func() {
			report, err := svc.CutoffSeries(ctx, service.CutoffRequest{
				Segment: seg13,
				Swimmer: "ann archer",
				Window:  service.Window{Start: "2024-01", End: "2024-03"},
			})
			So(err, ShouldBeNil)

			Convey("Then the series uses the youngest cutoff size and no floor", func() {
				So(report.CutoffSize, ShouldEqual, 20)
				So(report.Floor.Valid, ShouldBeFalse)
				So(report.Months, ShouldResemble, []string{"2024-01", "2024-02", "2024-03"})
				So(report.CutoffSeries, ShouldHaveLength, 3)
				So(report.CutoffSeries[0].Cutoff.V, ShouldEqual, 63.5)
				So(report.CutoffSeries[1].Cutoff.V, ShouldEqual, 64.0)
				So(report.CutoffSeries[2].Cutoff.V, ShouldEqual, 62.5)
			})

			Convey("And the tracked series follows the latest swim", func() {
				So(report.TrackedName, ShouldEqual, "Ann Archer")
				So(report.TrackedSeries, ShouldHaveLength, 3)
				So(report.TrackedSeries[0].Time.V, ShouldEqual, 62.0)
				So(report.TrackedSeries[1].Time.V, ShouldEqual, 61.0)
				So(report.TrackedSeries[2].Time.V, ShouldEqual, 61.0)
			})

			Convey("And a second request is served from the cache", func() {
				_, err := svc.CutoffSeries(ctx, service.CutoffRequest{Segment: seg13, Window: service.Window{Months: 3}})
				So(err, ShouldBeNil)
				rankings, _, cohorts, fetched := src.counts()
				So(rankings, ShouldEqual, 1)
				So(cohorts, ShouldEqual, 1)
				So(fetched, ShouldEqual, 3)
			})

			Convey("And clearing the cache forces a new scrape", func() {
				So(svc.ClearCache(ctx), ShouldBeNil)
				_, err := svc.CutoffSeries(ctx, service.CutoffRequest{Segment: seg13})
				So(err, ShouldBeNil)
				rankings, _, cohorts, _ := src.counts()
				So(rankings, ShouldEqual, 2)
				So(cohorts, ShouldEqual, 2)
			})
		})

		Convey("When the default window is used", func() {
			report, err := svc.CutoffSeries(ctx, service.CutoffRequest{Segment: seg13})
			So(err, ShouldBeNil)
			So(report.Months, ShouldHaveLength, 12)
			So(report.Months[11], ShouldEqual, "2024-03")
			So(report.TrackedSeries, ShouldBeEmpty)
		})

		Convey("When the tracked swimmer is a tiref outside the cohort", func() {
			report, err := svc.CutoffSeries(ctx, service.CutoffRequest{
				Segment: seg13,
				Swimmer: "9999",
				Window:  service.Window{Start: "2024-01", End: "2024-03"},
			})
			So(err, ShouldBeNil)
			So(report.TrackedName, ShouldEqual, "9999")
			So(report.TrackedSeries[0].Time.V, ShouldEqual, 70.0)
			So(report.TrackedSeries[2].Time.V, ShouldEqual, 68.0)
		})

		Convey("When the tracked swimmer is unknown", func() {
			_, err := svc.CutoffSeries(ctx, service.CutoffRequest{Segment: seg13, Swimmer: "Zed Zane"})
			So(errors.Is(err, service.ErrNotFound), ShouldBeTrue)
		})

		Convey("When the range is inverted", func() {
			_, err := svc.CutoffSeries(ctx, service.CutoffRequest{
				Segment: seg13,
				Window:  service.Window{Start: "2024-05", End: "2024-01"},
			})
			So(errors.Is(err, service.ErrBadRequest), ShouldBeTrue)
		})
	})
}

func TestService_Predict(t *testing.T) {
	Convey("Given a service over a four-swimmer ranking list", t, func() {
		ctx := context.Background()
		clk := &fakeClock{t: time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)}
		svc := newTestService(newFakeSource(), clk)

		Convey("When predicting with a tracked swimmer and a baseline", func() {
			report, err := svc.Predict(ctx, service.PredictRequest{
				Segment:  seg13,
				Swimmer:  "1001",
				QualEnd:  "2024-12-31",
				Baseline: "2024-01",
			})
			So(err, ShouldBeNil)

			Convey("Then every ranked swimmer with a history is projected", func() {
				So(report.QualEnd, ShouldEqual, "2024-12-31")
				So(report.Cohort.Rows, ShouldHaveLength, 3)
				So(report.Cohort.Rows[0].Name, ShouldEqual, "Ann Archer")
				So(report.Cohort.K, ShouldEqual, 3.0)
			})

			Convey("And the tracked swimmer gets a projection", func() {
				So(report.TrackedName, ShouldEqual, "Ann Archer")
				So(report.Tracked, ShouldNotBeNil)
				So(report.Tracked.N, ShouldEqual, 2)
			})

			Convey("And the baseline drop averages the cohort's improvement", func() {
				So(report.Drop, ShouldNotBeNil)
				So(report.Drop.Contributors, ShouldEqual, 2)
				So(report.Drop.AverageDrop.V, ShouldAlmostEqual, 1.0, 1e-9)
				So(report.Drop.TrackedBaseline.V, ShouldEqual, 62.0)
				So(report.Drop.Predicted.V, ShouldAlmostEqual, 61.0, 1e-9)
			})
		})

		Convey("When no window end is given the ranking date is used", func() {
			report, err := svc.Predict(ctx, service.PredictRequest{Segment: seg13, K: 5})
			So(err, ShouldBeNil)
			So(report.QualEnd, ShouldEqual, "2024-12-31")
			So(report.Cohort.K, ShouldEqual, 5.0)
			So(report.Tracked, ShouldBeNil)
			So(report.Drop, ShouldBeNil)
		})

		Convey("When the parameters are malformed", func() {
			_, err := svc.Predict(ctx, service.PredictRequest{Segment: seg13, QualEnd: "soon"})
			So(errors.Is(err, service.ErrBadRequest), ShouldBeTrue)

			_, err = svc.Predict(ctx, service.PredictRequest{Segment: seg13, Swimmer: "1001", Baseline: "2024-13"})
			So(errors.Is(err, service.ErrBadRequest), ShouldBeTrue)

			_, err = svc.Predict(ctx, service.PredictRequest{Segment: seg13, Baseline: "2024-01"})
			So(errors.Is(err, service.ErrBadRequest), ShouldBeTrue)
		})
	})
}

func TestService_RankAndVirtualRanking(t *testing.T) {
	Convey("Given a service without a snapshot store", t, func() {
		ctx := context.Background()
		clk := &fakeClock{t: time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)}
		svc := newTestService(newFakeSource(), clk)

		Convey("Rank loads the board on demand", func() {
			e, err := svc.Rank(ctx, seg13, "1002")
			So(err, ShouldBeNil)
			So(e.Rank, ShouldEqual, 2)
			So(e.Name, ShouldEqual, "Bea Brook")

			e, err = svc.Rank(ctx, seg13, "dee dale")
			So(err, ShouldBeNil)
			So(e.Rank, ShouldEqual, 4)

			_, err = svc.Rank(ctx, seg13, "Zed")
			So(errors.Is(err, service.ErrNotFound), ShouldBeTrue)
		})

		Convey("Top returns the fastest entries", func() {
			top, err := svc.Top(ctx, seg13, 2)
			So(err, ShouldBeNil)
			So(top, ShouldHaveLength, 2)
			So(top[0].Name, ShouldEqual, "Ann Archer")

			_, err = svc.Top(ctx, seg13, 0)
			So(errors.Is(err, service.ErrBadRequest), ShouldBeTrue)
		})

		Convey("The virtual ranking is anchored at today", func() {
			months, err := svc.VirtualRanking(ctx, seg13, service.Window{Months: 3}, "All")
			So(err, ShouldBeNil)
			So(months, ShouldHaveLength, 3)
			So(months[0].Month, ShouldEqual, "2024-01")
			So(months[0].Ranking, ShouldHaveLength, 2)
			So(months[2].Ranking, ShouldHaveLength, 3)
			So(months[2].Ranking[0].Name, ShouldEqual, "Ann Archer")
			So(months[2].Ranking[2].Position, ShouldEqual, 3)
		})

		Convey("A level filter that matches nothing empties the ranking", func() {
			months, err := svc.VirtualRanking(ctx, seg13, service.Window{Months: 1}, "L1")
			So(err, ShouldBeNil)
			So(months[0].Ranking, ShouldBeEmpty)
		})

		Convey("Store-backed queries are unavailable", func() {
			_, err := svc.RankingTrend(ctx, seg13, "1001", 10)
			So(errors.Is(err, service.ErrUnavailable), ShouldBeTrue)
			_, err = svc.ClubReport(ctx, "")
			So(errors.Is(err, service.ErrUnavailable), ShouldBeTrue)
		})
	})
}

func TestService_EnqueueBeforeStart(t *testing.T) {
	Convey("Given a service that was never started", t, func() {
		svc := service.New(service.WithSource(newFakeSource()))

		Convey("Enqueueing a refresh fails", func() {
			_, _, err := svc.EnqueueRefresh(context.Background(), seg13)
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
		})

		Convey("Stopping is a no-op", func() {
			So(svc.Stop(context.Background()), ShouldBeNil)
		})
	})
}
