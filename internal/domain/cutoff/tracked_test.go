package cutoff

import (
	"testing"

	"github.com/okian/qualtrack/internal/domain/identity"
	"github.com/okian/qualtrack/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestTrackedSeries(t *testing.T) {
	Convey("Given a tracked swimmer", t, func() {
		tl := swimmer("Tracked",
			swim("10/01/24", 66.0),
			swim("25/01/24", 64.5),
			swim("03/03/24", 65.2),
			model.PersonalBest{Date: "04/04/24", Time: model.None()},
		)
		months := []string{"2023-12", "2024-01", "2024-02", "2024-03", "2024-04"}
		series := TrackedSeries(tl, months)

		Convey("Then each month shows the latest swim so far", func() {
			So(series, ShouldHaveLength, 5)
			So(series[0].Time.Valid, ShouldBeFalse)
			So(series[1].Time.V, ShouldEqual, 64.5)
			So(series[2].Time.V, ShouldEqual, 64.5)
			So(series[3].Time.V, ShouldEqual, 65.2)
			So(series[4].Time.V, ShouldEqual, 65.2)
		})
	})
}

func TestVirtualRanking(t *testing.T) {
	Convey("Given a cohort with a duplicate swimmer", t, func() {
		cohort := []model.SwimmerTimeline{
			{Name: "Ada", Tiref: "1", Records: []model.PersonalBest{swim("01/01/24", 62)}},
			{Name: "Bea", Tiref: "2", Records: []model.PersonalBest{swim("01/02/24", 61)}},
			{Name: "Ada L", Tiref: "1", Records: []model.PersonalBest{swim("05/02/24", 60)}},
		}
		out := VirtualRanking(cohort, []string{"2024-01", "2024-02"}, WithKeyer(identity.TirefThenName))

		Convey("Then January has only Ada", func() {
			So(out[0].Ranking, ShouldHaveLength, 1)
			So(out[0].Ranking[0].Position, ShouldEqual, 1)
			So(out[0].Ranking[0].Time.V, ShouldEqual, 62)
		})

		Convey("Then February merges Ada by tiref and sorts fastest first", func() {
			So(out[1].Ranking, ShouldHaveLength, 2)
			So(out[1].Ranking[0].Tiref, ShouldEqual, "1")
			So(out[1].Ranking[0].Time.V, ShouldEqual, 60)
			So(out[1].Ranking[1].Name, ShouldEqual, "Bea")
			So(out[1].Ranking[1].Position, ShouldEqual, 2)
		})
	})
}
