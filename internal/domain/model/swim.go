// Package model contains domain models passed between layers.
package model

import "strings"

// PersonalBest is one scraped result row of a swimmer's history.
// Date is DD/MM/YY, DD/MM/YYYY or ISO YYYY-MM-DD depending on where it came from.
type PersonalBest struct {
	Date  string  `json:"date"`
	Time  Seconds `json:"time"`
	Meet  string  `json:"meet,omitempty"`
	Venue string  `json:"venue,omitempty"`
	Level string  `json:"level,omitempty"`
	Event string  `json:"event,omitempty"`
}

// SwimmerTimeline is a swimmer's full scraped history for one event, in scrape order.
type SwimmerTimeline struct {
	Name    string         `json:"name"`
	Tiref   string         `json:"tiref,omitempty"`
	Records []PersonalBest `json:"records"`
}

// RankedSwimmer is one row of a scraped ranking list.
type RankedSwimmer struct {
	Rank  int     `json:"rank"`
	Name  string  `json:"name"`
	Tiref string  `json:"tiref,omitempty"`
	Club  string  `json:"club,omitempty"`
	Time  Seconds `json:"time"`
	Date  string  `json:"date,omitempty"`
}

// Sex filters a ranking list. Both merges the male and female lists.
const (
	SexMale   = "M"
	SexFemale = "F"
	SexBoth   = "All"
)

// Segment identifies one ranking list: an event for an age group and sex.
type Segment struct {
	Event    string `json:"event"`
	AgeGroup string `json:"ageGroup"`
	Sex      string `json:"sex"`
}

// Key returns a stable identifier for the segment.
func (s Segment) Key() string {
	return strings.Join([]string{s.Event, s.AgeGroup, s.Sex}, "|")
}

// String implements fmt.Stringer.
func (s Segment) String() string { return s.Key() }
