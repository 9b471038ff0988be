package source

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/okian/qualtrack/internal/domain/model"
	"github.com/okian/qualtrack/internal/domain/swimtime"
)

var (
	tirefExpr = regexp.MustCompile(`tiref=(\d+)`)
	digits    = regexp.MustCompile(`\d+`)
)

// columns maps header labels of the rankings table to cell indexes. -1 means absent.
type columns struct {
	rank, name, time, date, club int
}

func headerColumns(header *goquery.Selection) columns {
	c := columns{rank: -1, name: -1, time: -1, date: -1, club: -1}
	header.Find("th,td").Each(func(i int, cell *goquery.Selection) {
		label := strings.ToLower(cell.Text())
		for _, col := range []struct {
			word string
			idx  *int
		}{
			{"rank", &c.rank},
			{"name", &c.name},
			{"time", &c.time},
			{"date", &c.date},
			{"club", &c.club},
		} {
			if *col.idx < 0 && strings.Contains(label, col.word) {
				*col.idx = i
			}
		}
	})
	return c
}

// cell returns the i-th cell, or nil when i is out of range.
func cell(cells *goquery.Selection, i int) *goquery.Selection {
	if i < 0 || i >= cells.Length() {
		return nil
	}
	return cells.Eq(i)
}

func text(s *goquery.Selection) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(s.Text())
}

// ParseRankings extracts the ranking rows of a 12-month rankings page.
func ParseRankings(r io.Reader) ([]model.RankedSwimmer, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse rankings: %w", err)
	}
	table := doc.Find("#rankTable").First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("rankings: %w", ErrNotFound)
	}

	rows := table.Find("tr")
	cols := headerColumns(rows.First())
	out := make([]model.RankedSwimmer, 0, rows.Length())
	if rows.Length() < 2 {
		return out, nil
	}
	rows.Slice(1, goquery.ToEnd).Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("th,td")
		nameCell := cell(cells, cols.name)
		name := text(nameCell)
		if name == "" {
			return
		}
		var tiref string
		if nameCell != nil {
			if href, ok := nameCell.Find("a[href*='tiref']").First().Attr("href"); ok {
				if m := tirefExpr.FindStringSubmatch(href); m != nil {
					tiref = m[1]
				}
			}
		}
		rank, _ := strconv.Atoi(digits.FindString(text(cell(cells, cols.rank))))
		out = append(out, model.RankedSwimmer{
			Rank:  rank,
			Name:  name,
			Tiref: tiref,
			Club:  text(cell(cells, cols.club)),
			Time:  swimtime.ParseSeconds(text(cell(cells, cols.time))),
			Date:  text(cell(cells, cols.date)),
		})
	})
	return out, nil
}

// ParsePersonalBests extracts the history rows of a personal best page.
// Columns: 0 time, 3 date, 4 meet, 5 venue, 7 level.
func ParsePersonalBests(r io.Reader, event string) ([]model.PersonalBest, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse personal bests: %w", err)
	}
	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("personal bests: %w", ErrNotFound)
	}

	rows := table.Find("tr")
	out := make([]model.PersonalBest, 0, rows.Length())
	if rows.Length() < 2 {
		return out, nil
	}
	rows.Slice(1, goquery.ToEnd).Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("th,td")
		if cells.Length() == 0 {
			return
		}
		out = append(out, model.PersonalBest{
			Time:  swimtime.ParseSeconds(text(cell(cells, 0))),
			Date:  text(cell(cells, 3)),
			Meet:  text(cell(cells, 4)),
			Venue: text(cell(cells, 5)),
			Level: text(cell(cells, 7)),
			Event: event,
		})
	})
	return out, nil
}
