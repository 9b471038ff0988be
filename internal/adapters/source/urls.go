package source

import (
	"net/url"
	"strconv"
	"strings"
)

// DefaultBaseURL is the public results site.
const DefaultBaseURL = "https://www.swimmingresults.org"

const (
	rankingsPath     = "/12months/last12.php"
	personalBestPath = "/individualbest/personal_best_time_date.php"
	recordsToView    = "50"
)

// Query identifies one ranking list page on the results site.
// Date is the ranking date as DD/MM/YYYY.
type Query struct {
	Pool        string
	Stroke      int
	Sex         string
	AgeGroup    string
	Date        string
	County      string
	Club        string
	Region      string
	Nationality string
}

func (q Query) withDefaults() Query {
	if q.Pool == "" {
		q.Pool = "L"
	}
	if q.County == "" {
		q.County = "XXXX"
	}
	if q.Club == "" {
		q.Club = "XXXX"
	}
	if q.Region == "" {
		q.Region = "P"
	}
	if q.Nationality == "" {
		q.Nationality = "E"
	}
	return q
}

// RankingsURL builds the 12-month rankings page URL.
func RankingsURL(base string, q Query) string {
	q = q.withDefaults()
	v := url.Values{}
	v.Set("Pool", q.Pool)
	v.Set("Stroke", strconv.Itoa(q.Stroke))
	v.Set("Sex", q.Sex)
	v.Set("AgeGroup", q.AgeGroup)
	v.Set("date", q.Date)
	v.Set("StartNumber", "1")
	v.Set("RecordsToView", recordsToView)
	v.Set("Level", "N")
	v.Set("TargetNationality", q.Nationality)
	v.Set("TargetRegion", q.Region)
	v.Set("TargetCounty", q.County)
	v.Set("TargetClub", q.Club)
	return strings.TrimSuffix(base, "/") + rankingsPath + "?" + v.Encode()
}

// PersonalBestURL builds the personal best history page URL of one swimmer.
func PersonalBestURL(base string, q Query, tiref string) string {
	q = q.withDefaults()
	parts := strings.Split(q.Date, "/")
	for len(parts) < 3 {
		parts = append(parts, "")
	}
	stroke := strconv.Itoa(q.Stroke)

	v := url.Values{}
	v.Set("back", "12months")
	v.Set("Pool", q.Pool)
	v.Set("Stroke", stroke)
	v.Set("Sex", q.Sex)
	v.Set("AgeGroup", q.AgeGroup)
	v.Set("date-1-dd", parts[0])
	v.Set("date-1-mm", parts[1])
	v.Set("date-1", parts[2])
	v.Set("StartNumber", "1")
	v.Set("RecordsToView", recordsToView)
	v.Set("Level", "N")
	v.Set("TargetClub", q.Club)
	v.Set("TargetRegion", q.Region)
	v.Set("TargetCounty", q.County)
	v.Set("TargetNationality", q.Nationality)
	v.Set("tiref", tiref)
	v.Set("mode", q.Pool)
	v.Set("tstroke", stroke)
	v.Set("tcourse", q.Pool)
	return strings.TrimSuffix(base, "/") + personalBestPath + "?" + v.Encode()
}
