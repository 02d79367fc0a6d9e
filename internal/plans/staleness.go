package plans

import (
	"github.com/fdg312/nutriplan/internal/metabolic"
)

// Hardcoded calorie values older builds wrote instead of computing targets.
var legacyCalorieConstants = map[int]bool{
	1500: true,
	1800: true,
	2000: true,
	2100: true,
	2400: true,
}

// MaxTargetDivergence is how far DailyTargets.Calories may drift from
// MetabolicData.GoalCalories before the plan is considered corrupt.
const MaxTargetDivergence = 10

// StaleReason explains why a plan failed the staleness check.
type StaleReason string

const (
	NotStale             StaleReason = ""
	StaleSeededPlan      StaleReason = "legacy_seeded_plan"
	StaleLegacyConstant  StaleReason = "legacy_calorie_constant"
	StaleNoMetabolicData StaleReason = "missing_metabolic_data"
	StaleSchemaVersion   StaleReason = "schema_version"
	StaleDivergence      StaleReason = "targets_diverged"
)

// Staleness checks a normalized plan.
func Staleness(p Plan) StaleReason {
	switch {
	case p.ID == LegacySeededPlanID:
		return StaleSeededPlan
	case p.MetabolicData == nil:
		return StaleNoMetabolicData
	case p.SchemaVersion < MinSchemaVersion:
		return StaleSchemaVersion
	case legacyCalorieConstants[p.DailyTargets.Calories] && p.MetabolicData.CalculationMethod != metabolic.CalculationMethod:
		return StaleLegacyConstant
	}

	diff := p.DailyTargets.Calories - p.MetabolicData.GoalCalories
	if diff < 0 {
		diff = -diff
	}
	if diff > MaxTargetDivergence {
		return StaleDivergence
	}
	return NotStale
}

// firstStale returns the first stale plan in the collection, if any.
func firstStale(list []Plan) (Plan, StaleReason, bool) {
	for _, p := range list {
		if r := Staleness(p); r != NotStale {
			return p, r, true
		}
	}
	return Plan{}, NotStale, false
}
