package model

// CutoffEntry is one month of the virtual cutoff series.
// Fresh is set when the cutoff came from a swim recorded in that month.
type CutoffEntry struct {
	Month  string  `json:"month"`
	Cutoff Seconds `json:"cutoff"`
	Reason string  `json:"reason"`
	Fresh  bool    `json:"fresh"`
}

// TrackedEntry is the tracked swimmer's latest time as of a month.
type TrackedEntry struct {
	Month string  `json:"month"`
	Time  Seconds `json:"time"`
}

// RankingRow is a swimmer's standing in a virtual ranking month.
type RankingRow struct {
	Position int     `json:"position"`
	Name     string  `json:"name"`
	Tiref    string  `json:"tiref,omitempty"`
	Time     Seconds `json:"time"`
}

// RankingMonth is the virtual ranking as it stood at the end of a month.
type RankingMonth struct {
	Month   string       `json:"month"`
	Ranking []RankingRow `json:"ranking"`
}

// Prediction methods.
const (
	MethodLinear   = "linear"
	MethodTwoPoint = "two-point"
	MethodCohort   = "cohort"
)

// PredictionRow is one cohort member's projected time at the qualifying window end.
// FinalSlope is in seconds per day.
type PredictionRow struct {
	Name       string  `json:"name"`
	N          int     `json:"n"`
	Predicted  Seconds `json:"predicted"`
	FinalSlope Seconds `json:"finalSlope"`
	Method     string  `json:"method"`
	Confidence float64 `json:"confidence"`
}

// CohortPrediction is the result of a cohort-wide trend fit.
type CohortPrediction struct {
	Rows        []PredictionRow `json:"rows"`
	CohortSlope Seconds         `json:"cohortSlope"`
	K           float64         `json:"k"`
	MinPoints   int             `json:"minPoints"`
}

// TrackedPrediction is the tracked swimmer's projected time.
type TrackedPrediction struct {
	Predicted  Seconds `json:"predicted"`
	FinalSlope Seconds `json:"finalSlope"`
	Method     string  `json:"method"`
	N          int     `json:"n"`
}

// DropPrediction projects the tracked swimmer by the cohort's average improvement
// between a baseline month and the window end month.
type DropPrediction struct {
	Predicted       Seconds `json:"predicted"`
	AverageDrop     Seconds `json:"averageDrop"`
	Contributors    int     `json:"contributors"`
	TrackedBaseline Seconds `json:"trackedBaseline"`
}
