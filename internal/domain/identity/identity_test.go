package identity

import (
	"testing"

	"github.com/okian/qualtrack/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestKeyers(t *testing.T) {
	Convey("Given the default keyer", t, func() {
		So(TirefThenName.Key("Ada  Lovelace", "123"), ShouldEqual, "tiref:123")
		So(TirefThenName.Key("Ada  Lovelace", ""), ShouldEqual, "name:ada lovelace")
		So(NameOnly.Key("ADA Lovelace", "123"), ShouldEqual, "name:ada lovelace")
	})
}

func TestJoin(t *testing.T) {
	Convey("Given ranking rows and scraped timelines", t, func() {
		rows := []model.RankedSwimmer{
			{Rank: 1, Name: "Ada Lovelace", Tiref: "1"},
			{Rank: 2, Name: "Grace Hopper"},
			{Rank: 3, Name: "Mary Somerville", Tiref: "3"},
			{Rank: 4, Name: "Ada Lovelace", Tiref: "1"},
		}
		timelines := []model.SwimmerTimeline{
			{Name: "Grace Hopper", Tiref: "2"},
			{Name: "Ada Lovelace", Tiref: "1"},
		}

		Convey("When joined", func() {
			cohort, missing := Join(TirefThenName, rows, timelines)

			Convey("Then tiref matches first and names are the fallback", func() {
				So(cohort, ShouldHaveLength, 2)
				So(cohort[0].Name, ShouldEqual, "Ada Lovelace")
				So(cohort[1].Name, ShouldEqual, "Grace Hopper")
			})

			Convey("Then unmatched rows are reported", func() {
				So(missing, ShouldHaveLength, 1)
				So(missing[0].Name, ShouldEqual, "Mary Somerville")
			})
		})

		Convey("When finding one swimmer", func() {
			tl, ok := Find(TirefThenName, timelines, "2")
			So(ok, ShouldBeTrue)
			So(tl.Name, ShouldEqual, "Grace Hopper")

			tl, ok = Find(TirefThenName, timelines, "ada lovelace")
			So(ok, ShouldBeTrue)
			So(tl.Tiref, ShouldEqual, "1")

			_, ok = Find(TirefThenName, timelines, "")
			So(ok, ShouldBeFalse)
		})
	})
}
