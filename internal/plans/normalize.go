package plans

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/fdg312/nutriplan/internal/macros"
	"github.com/fdg312/nutriplan/internal/metabolic"
)

// planFields has Plan's layout without its JSON aliases being overridden.
type planFields Plan

// storedPlan accepts every shape older clients wrote. The shallower
// DailyTargets and MetabolicData fields shadow the embedded ones.
type storedPlan struct {
	planFields
	Name                  string          `json:"name"`
	DailyTargets          json.RawMessage `json:"daily_targets"`
	MetabolicData         json.RawMessage `json:"metabolic_data"`
	MetabolicCalculations json.RawMessage `json:"metabolic_calculations"`
}

type legacyTargets struct {
	Calories      *float64 `json:"calories"`
	DailyCalories *float64 `json:"daily_calories"`
	ProteinG      *float64 `json:"protein_g"`
	Protein       *float64 `json:"protein"`
	ProteinGrams  *float64 `json:"protein_grams"`
	CarbsG        *float64 `json:"carbs_g"`
	Carbs         *float64 `json:"carbs"`
	CarbsGrams    *float64 `json:"carbs_grams"`
	FatG          *float64 `json:"fat_g"`
	Fat           *float64 `json:"fat"`
	FatGrams      *float64 `json:"fat_grams"`
	FiberG        *float64 `json:"fiber_g"`
	FiberGrams    *float64 `json:"fiber_grams"`
	WaterLiters   *float64 `json:"water_liters"`
}

type legacyMetabolic struct {
	BMR                  *float64 `json:"bmr"`
	TDEE                 *float64 `json:"tdee"`
	ActivityLevel        string   `json:"activity_level"`
	ActivityMultiplier   *float64 `json:"activity_multiplier"`
	GoalCalories         *float64 `json:"goal_calories"`
	AdjustedCalories     *float64 `json:"adjusted_calories"`
	GoalAdjustment       *float64 `json:"goal_adjustment"`
	GoalAdjustmentReason string   `json:"goal_adjustment_reason"`
	CalculationMethod    string   `json:"calculation_method"`
}

// decodePlans is the single normalization step for persisted plans. It
// returns migrated=true when any record was rewritten into the canonical
// shape and should be saved back.
func decodePlans(data []byte) ([]Plan, bool, error) {
	var raw []storedPlan
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, false, fmt.Errorf("decode plans: %w", err)
	}

	out := make([]Plan, 0, len(raw))
	migrated := false
	for i := range raw {
		p, changed, err := normalizePlan(&raw[i])
		if err != nil {
			return nil, false, fmt.Errorf("plan %d: %w", i, err)
		}
		migrated = migrated || changed
		out = append(out, p)
	}
	return out, migrated, nil
}

func normalizePlan(sp *storedPlan) (Plan, bool, error) {
	p := Plan(sp.planFields)
	changed := false

	if p.PlanName == "" && sp.Name != "" {
		p.PlanName = sp.Name
		changed = true
	}

	if len(sp.DailyTargets) > 0 && string(sp.DailyTargets) != "null" {
		var lt legacyTargets
		if err := json.Unmarshal(sp.DailyTargets, &lt); err != nil {
			return Plan{}, false, fmt.Errorf("daily_targets: %w", err)
		}
		p.DailyTargets = macros.DailyTargets{
			Calories:    firstInt(lt.Calories, lt.DailyCalories),
			ProteinG:    firstInt(lt.ProteinG, lt.Protein, lt.ProteinGrams),
			CarbsG:      firstInt(lt.CarbsG, lt.Carbs, lt.CarbsGrams),
			FatG:        firstInt(lt.FatG, lt.Fat, lt.FatGrams),
			FiberG:      firstInt(lt.FiberG, lt.FiberGrams),
			WaterLiters: firstFloat(lt.WaterLiters),
		}
		if lt.Calories == nil || lt.ProteinG == nil || lt.CarbsG == nil || lt.FatG == nil {
			changed = true
		}
	}

	metaRaw := sp.MetabolicData
	if len(metaRaw) == 0 || string(metaRaw) == "null" {
		metaRaw = sp.MetabolicCalculations
		if len(metaRaw) > 0 && string(metaRaw) != "null" {
			changed = true
		}
	}
	p.MetabolicData = nil
	if len(metaRaw) > 0 && string(metaRaw) != "null" {
		var lm legacyMetabolic
		if err := json.Unmarshal(metaRaw, &lm); err != nil {
			return Plan{}, false, fmt.Errorf("metabolic_data: %w", err)
		}
		d := &metabolic.Data{
			BMR:                  firstInt(lm.BMR),
			TDEE:                 firstInt(lm.TDEE),
			ActivityLevel:        metabolic.ActivityLevel(lm.ActivityLevel),
			ActivityMultiplier:   firstFloat(lm.ActivityMultiplier),
			GoalCalories:         firstInt(lm.GoalCalories, lm.AdjustedCalories),
			AdjustedCalories:     firstInt(lm.AdjustedCalories, lm.GoalCalories),
			GoalAdjustment:       firstInt(lm.GoalAdjustment),
			GoalAdjustmentReason: lm.GoalAdjustmentReason,
			CalculationMethod:    lm.CalculationMethod,
		}
		if lm.GoalCalories == nil || lm.AdjustedCalories == nil {
			changed = true
		}
		p.MetabolicData = d
	}

	if p.SchemaVersion >= MinSchemaVersion {
		if backfill(&p) {
			changed = true
		}
	}

	return p, changed, nil
}

// backfill completes migratable records using the calculators and stamps
// the current schema version.
func backfill(p *Plan) bool {
	changed := false

	if p.FitnessStrategy == "" {
		s, _ := metabolic.ResolveStrategy(p.Preferences.Goal)
		p.FitnessStrategy = string(s)
		changed = true
	}
	if p.GoalType == "" {
		s, _ := metabolic.ResolveStrategy(p.FitnessStrategy)
		p.GoalType = s.GoalType()
		changed = true
	}

	t := &p.DailyTargets
	if t.Calories > 0 && t.ProteinG == 0 && t.CarbsG == 0 && t.FatG == 0 {
		fiber, water := t.FiberG, t.WaterLiters
		*t = macros.ForStrategy(t.Calories, p.FitnessStrategy)
		t.FiberG, t.WaterLiters = fiber, water
		changed = true
	}
	if t.FiberG == 0 && t.Calories > 0 {
		t.FiberG = metabolic.FiberGrams(t.Calories)
		changed = true
	}
	if p.Profile != nil {
		if t.WaterLiters == 0 && p.Profile.WeightKg > 0 {
			t.WaterLiters = metabolic.WaterLiters(p.Profile.WeightKg)
			changed = true
		}
		if p.MicronutrientTargets == nil {
			m := metabolic.MicronutrientTargets(metabolic.ParseGender(p.Profile.Gender), p.Profile.Age)
			p.MicronutrientTargets = &m
			changed = true
		}
	}

	if p.Status == "" {
		p.Status = StatusDraft
		changed = true
	}
	if p.SchemaVersion < CurrentSchemaVersion {
		p.SchemaVersion = CurrentSchemaVersion
		changed = true
	}
	return changed
}

func firstInt(vals ...*float64) int {
	for _, v := range vals {
		if v != nil {
			return int(math.Round(*v))
		}
	}
	return 0
}

func firstFloat(vals ...*float64) float64 {
	for _, v := range vals {
		if v != nil {
			return *v
		}
	}
	return 0
}
