package reports

import (
	"time"

	"github.com/fdg312/nutriplan/internal/macros"
	"github.com/fdg312/nutriplan/internal/plans"
)

const (
	FormatPDF = "pdf"
	FormatCSV = "csv"
)

// PlanReport is everything a plan export shows.
type PlanReport struct {
	Plan plans.Plan
	// Effective are the targets currently shown to the user, which may come
	// from the latest historical snapshot.
	Effective   macros.DailyTargets
	Source      plans.TargetSource
	History     []plans.HistoricalTarget
	GeneratedAt time.Time
}

// Summary is the header block of a report.
type Summary struct {
	Strategy    string
	BMR         string
	TDEE        string
	Goal        string
	Adjustment  string
	Method      string
	Snapshots   int
	CaloriesMin int
	CaloriesMax int
}
