package macros

import (
	"math"

	"github.com/fdg312/nutriplan/internal/metabolic"
)

const (
	KcalPerGramProtein = 4
	KcalPerGramCarbs   = 4
	KcalPerGramFat     = 9
)

// Ratios are percentages of daily calories; every table entry sums to 100.
type Ratios struct {
	ProteinPct int `json:"protein_pct"`
	CarbsPct   int `json:"carbs_pct"`
	FatPct     int `json:"fat_pct"`
}

func (r Ratios) Sum() int {
	return r.ProteinPct + r.CarbsPct + r.FatPct
}

var strategyRatios = map[metabolic.Strategy]Ratios{
	metabolic.Cut:         {35, 25, 40},
	metabolic.Bulk:        {25, 50, 25},
	metabolic.Maintenance: {25, 45, 30},
	metabolic.Recomp:      {35, 35, 30},
	metabolic.Maingaining: {30, 45, 25},
	metabolic.FatLoss:     {40, 30, 30},
	metabolic.MuscleGain:  {30, 45, 25},
}

// StrategyRatios resolves aliases the same way the metabolic package does;
// unknown strategies get the maintenance split.
func StrategyRatios(strategy string) Ratios {
	s, _ := metabolic.ResolveStrategy(strategy)
	return strategyRatios[s]
}

// DailyTargets is the canonical macro target shape stored on plans.
type DailyTargets struct {
	Calories    int     `json:"calories"`
	ProteinG    int     `json:"protein_g"`
	CarbsG      int     `json:"carbs_g"`
	FatG        int     `json:"fat_g"`
	FiberG      int     `json:"fiber_g,omitempty"`
	WaterLiters float64 `json:"water_liters,omitempty"`
}

// Reconstructed returns the calories implied by the macro grams.
func (t DailyTargets) Reconstructed() int {
	return t.ProteinG*KcalPerGramProtein + t.CarbsG*KcalPerGramCarbs + t.FatG*KcalPerGramFat
}

// Allocate converts calories into gram targets. Each macro is rounded on
// its own, so Reconstructed may differ from calories by a few kcal.
func Allocate(calories int, r Ratios) DailyTargets {
	c := float64(calories)
	return DailyTargets{
		Calories: calories,
		ProteinG: int(math.Round(c * float64(r.ProteinPct) / 100 / KcalPerGramProtein)),
		CarbsG:   int(math.Round(c * float64(r.CarbsPct) / 100 / KcalPerGramCarbs)),
		FatG:     int(math.Round(c * float64(r.FatPct) / 100 / KcalPerGramFat)),
	}
}

// ForStrategy is StrategyRatios followed by Allocate.
func ForStrategy(calories int, strategy string) DailyTargets {
	return Allocate(calories, StrategyRatios(strategy))
}
