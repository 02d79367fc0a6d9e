package metabolic

import (
	"fmt"
	"strings"
)

// MinGoalCalories is the hard floor for any computed daily target.
const MinGoalCalories = 1200

const kcalPerKgFat = 7700

type strategyRule struct {
	delta int
	note  string
}

var strategyRules = map[Strategy]strategyRule{
	Bulk:        {400, "lean surplus to support muscle gain"},
	Cut:         {-400, "moderate deficit to lose fat while preserving muscle"},
	Maintenance: {0, "calories matched to daily expenditure"},
	Recomp:      {-200, "slight deficit for body recomposition"},
	Maingaining: {150, "small surplus for slow lean gains"},
	FatLoss:     {-500, "deficit for steady fat loss"},
	MuscleGain:  {300, "surplus to support muscle growth"},
}

// Delta returns the fixed daily calorie adjustment for a canonical strategy.
func Delta(s Strategy) int {
	return strategyRules[s].delta
}

// Goal is the outcome of applying a strategy to TDEE.
type Goal struct {
	Calories   int
	Adjustment int
	Reason     string
	Strategy   Strategy
	Floored    bool
}

// ComputeGoalCalories applies the strategy delta to tdee and clamps the
// result at MinGoalCalories. weightKg and bodyFatPct only enrich Reason.
func ComputeGoalCalories(tdee float64, strategy string, weightKg float64, bodyFatPct *float64) Goal {
	s, _ := ResolveStrategy(strategy)
	rule := strategyRules[s]

	calories := round(tdee) + rule.delta

	var reason strings.Builder
	fmt.Fprintf(&reason, "%s: %+d kcal/day, %s", s.Label(), rule.delta, rule.note)
	if rule.delta != 0 && weightKg > 0 {
		weekly := float64(abs(rule.delta)) * 7 / kcalPerKgFat
		direction := "loss"
		if rule.delta > 0 {
			direction = "gain"
		}
		fmt.Fprintf(&reason, "; about %.2f kg/week %s at %.1f kg", weekly, direction, weightKg)
	}
	if bodyFatPct != nil && *bodyFatPct > 0 && *bodyFatPct < 70 && weightKg > 0 {
		lean := weightKg * (1 - *bodyFatPct/100)
		fmt.Fprintf(&reason, "; lean mass %.1f kg at %.1f%% body fat", lean, *bodyFatPct)
	}

	g := Goal{
		Calories:   calories,
		Adjustment: rule.delta,
		Strategy:   s,
	}
	if calories < MinGoalCalories {
		g.Calories = MinGoalCalories
		g.Floored = true
		fmt.Fprintf(&reason, "; raised to %d kcal safety minimum", MinGoalCalories)
	}
	g.Reason = reason.String()
	return g
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
