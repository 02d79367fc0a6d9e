package metabolic

import (
	"math"

	"github.com/fdg312/nutriplan/internal/logging"
)

// CalculationMethod tags MetabolicData produced by this package. Plans
// carrying any other value predate the current formulas.
const CalculationMethod = "henry_oxford_v2"

// Profile is the body/activity input of a calculation.
type Profile struct {
	WeightKg        float64  `json:"weight_kg"`
	HeightCm        float64  `json:"height_cm"`
	Age             int      `json:"age"`
	Gender          string   `json:"gender"`
	ActivityLevel   string   `json:"activity_level"`
	FitnessStrategy string   `json:"fitness_strategy"`
	BodyFatPct      *float64 `json:"body_fat_pct,omitempty"`
}

// Defaults substituted for missing or implausible profile fields.
const (
	DefaultWeightKg = 70.0
	DefaultHeightCm = 170.0
	DefaultAge      = 30
)

// Data is the derived metabolic block embedded in every plan.
// GoalCalories and AdjustedCalories always hold the same value.
type Data struct {
	BMR                  int           `json:"bmr"`
	TDEE                 int           `json:"tdee"`
	ActivityLevel        ActivityLevel `json:"activity_level"`
	ActivityMultiplier   float64       `json:"activity_multiplier"`
	GoalCalories         int           `json:"goal_calories"`
	AdjustedCalories     int           `json:"adjusted_calories"`
	GoalAdjustment       int           `json:"goal_adjustment"`
	GoalAdjustmentReason string        `json:"goal_adjustment_reason"`
	CalculationMethod    string        `json:"calculation_method"`
}

// SetGoalCalories writes both goal fields together.
func (d *Data) SetGoalCalories(kcal int) {
	d.GoalCalories = kcal
	d.AdjustedCalories = kcal
}

// Result bundles the computed data with the profile actually used.
type Result struct {
	Data      Data
	Profile   Profile
	Gender    Gender
	Strategy  Strategy
	Defaulted []string
}

// Normalize substitutes documented defaults for invalid fields and reports
// which ones were replaced.
func Normalize(p Profile) (Profile, []string) {
	var defaulted []string

	if p.WeightKg < 30 || p.WeightKg > 350 {
		p.WeightKg = DefaultWeightKg
		defaulted = append(defaulted, "weight_kg")
	}
	if p.HeightCm < 100 || p.HeightCm > 250 {
		p.HeightCm = DefaultHeightCm
		defaulted = append(defaulted, "height_cm")
	}
	if p.Age < 13 || p.Age > 110 {
		p.Age = DefaultAge
		defaulted = append(defaulted, "age")
	}
	if p.Gender == "" {
		defaulted = append(defaulted, "gender")
	}
	p.Gender = string(ParseGender(p.Gender))

	level, ok := ParseActivityLevel(p.ActivityLevel)
	if !ok {
		defaulted = append(defaulted, "activity_level")
	}
	p.ActivityLevel = string(level)

	strategy, ok := ResolveStrategy(p.FitnessStrategy)
	if !ok {
		defaulted = append(defaulted, "fitness_strategy")
	}
	p.FitnessStrategy = string(strategy)

	if p.BodyFatPct != nil && (*p.BodyFatPct <= 0 || *p.BodyFatPct >= 70) {
		p.BodyFatPct = nil
		defaulted = append(defaulted, "body_fat_pct")
	}

	return p, defaulted
}

// Calculate runs BMR -> TDEE -> goal calories. BMR is rounded before TDEE
// is derived from it.
func Calculate(p Profile) Result {
	np, defaulted := Normalize(p)
	if len(defaulted) > 0 {
		logger := logging.WithComponent("metabolic")
		logger.Warn().Strs("fields", defaulted).Msg("profile fields defaulted")
	}

	gender := Gender(np.Gender)
	level := ActivityLevel(np.ActivityLevel)
	mult := Multiplier(level)

	bmr := round(ComputeBMR(np.WeightKg, np.HeightCm, np.Age, gender))
	tdee := round(float64(bmr) * mult)
	goal := ComputeGoalCalories(float64(tdee), np.FitnessStrategy, np.WeightKg, np.BodyFatPct)

	d := Data{
		BMR:                  bmr,
		TDEE:                 tdee,
		ActivityLevel:        level,
		ActivityMultiplier:   mult,
		GoalAdjustment:       goal.Adjustment,
		GoalAdjustmentReason: goal.Reason,
		CalculationMethod:    CalculationMethod,
	}
	d.SetGoalCalories(goal.Calories)

	return Result{
		Data:      d,
		Profile:   np,
		Gender:    gender,
		Strategy:  goal.Strategy,
		Defaulted: defaulted,
	}
}

// FiberGrams is the daily fiber target, 1 g per 100 kcal.
func FiberGrams(calories int) int {
	return round(float64(calories) / 100)
}

// WaterLiters is 35 ml per kg of body weight, one decimal.
func WaterLiters(weightKg float64) float64 {
	return math.Round(weightKg*35/1000*10) / 10
}
