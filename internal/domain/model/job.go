package model

import "time"

// RefreshJob asks for one segment's ranking list and its swimmers' histories to be
// re-scraped and stored.
type RefreshJob struct {
	ID          string    `json:"id"`
	Segment     Segment   `json:"segment"`
	RankingDate string    `json:"rankingDate"`
	EnqueuedAt  time.Time `json:"enqueuedAt"`
}
