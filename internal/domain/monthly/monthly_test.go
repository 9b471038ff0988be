package monthly

import (
	"testing"

	"github.com/okian/qualtrack/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func pb(date string, secs float64, level string) model.PersonalBest {
	return model.PersonalBest{Date: date, Time: model.Some(secs), Level: level}
}

func TestCompute(t *testing.T) {
	Convey("Given a swimmer timeline", t, func() {
		tl := model.SwimmerTimeline{Name: "Ada", Records: []model.PersonalBest{
			pb("03/01/24", 64.0, "L3"),
			pb("20/01/24", 63.1, "L1"),
			pb("10/02/24", 63.8, "3"),
			{Date: "bad", Time: model.Some(50)},
			{Date: "12/03/24", Time: model.None()},
			pb("2024-04-02", 62.2, "L2"),
		}}

		Convey("When no level filter is set", func() {
			b := Compute(tl, "All")

			Convey("Then invalid records are dropped and months are sorted", func() {
				So(b.Len(), ShouldEqual, 4)
				So(b.Months(), ShouldResemble, []string{"2024-01", "2024-02", "2024-04"})
			})

			Convey("Then the per-month and cumulative bests follow", func() {
				So(b.Best("2024-01").V, ShouldEqual, 63.1)
				So(b.SlowestIn("2024-01").V, ShouldEqual, 64.0)
				So(b.Best("2024-03").Valid, ShouldBeFalse)
				So(b.CumulativeBest("2024-02").V, ShouldEqual, 63.1)
				So(b.CumulativeBest("2024-03").V, ShouldEqual, 63.1)
				So(b.CumulativeBest("2024-04").V, ShouldEqual, 62.2)
				So(b.CumulativeBest("2023-12").Valid, ShouldBeFalse)
			})

			Convey("Then the latest swim is taken by date, not speed", func() {
				s, ok := b.Latest("2024-03")
				So(ok, ShouldBeTrue)
				So(s.Time, ShouldEqual, 63.8)
				_, ok = b.Latest("2023-12")
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When a level filter is set", func() {
			b := Compute(tl, "L3")

			Convey("Then L3 and 3 both match", func() {
				So(b.Len(), ShouldEqual, 2)
				So(b.CumulativeBest("2024-12").V, ShouldEqual, 63.8)
			})
		})

		Convey("When the timeline is empty", func() {
			b := Compute(model.SwimmerTimeline{}, "")
			So(b.Len(), ShouldEqual, 0)
			So(b.Months(), ShouldBeEmpty)
			So(b.All(), ShouldBeEmpty)
		})
	})
}

func TestLatestTies(t *testing.T) {
	Convey("Given two swims on the same day", t, func() {
		tl := model.SwimmerTimeline{Records: []model.PersonalBest{
			pb("05/05/24", 70.0, ""),
			pb("05/05/24", 68.0, ""),
		}}
		s, ok := Compute(tl, "").Latest("2024-05")
		So(ok, ShouldBeTrue)
		So(s.Time, ShouldEqual, 70.0)
	})
}
