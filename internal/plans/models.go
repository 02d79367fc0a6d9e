package plans

import (
	"time"

	"github.com/fdg312/nutriplan/internal/foods"
	"github.com/fdg312/nutriplan/internal/macros"
	"github.com/fdg312/nutriplan/internal/metabolic"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
	StatusDraft    Status = "draft"
)

const (
	// CurrentSchemaVersion is written on every new or migrated plan.
	CurrentSchemaVersion = 2
	// MinSchemaVersion is the oldest version that can still be migrated.
	// Records without a version predate it and are treated as stale.
	MinSchemaVersion = 1

	// LegacySeededPlanID is the example plan older builds inserted for every user.
	LegacySeededPlanID = "550e8400-e29b-41d4-a716-446655440000"
)

// Preferences are the user inputs a plan was generated from.
type Preferences struct {
	Goal               string   `json:"goal"`
	DietaryPreferences []string `json:"dietary_preferences,omitempty"`
	Intolerances       []string `json:"intolerances,omitempty"`
	CuisinePreferences []string `json:"cuisine_preferences,omitempty"`
}

// Plan is a user's nutrition plan.
type Plan struct {
	ID                   string                    `json:"id"`
	UserID               string                    `json:"user_id"`
	PlanName             string                    `json:"plan_name"`
	GoalType             string                    `json:"goal_type"`
	FitnessStrategy      string                    `json:"fitness_strategy"`
	Status               Status                    `json:"status"`
	CreatedAt            time.Time                 `json:"created_at"`
	UpdatedAt            time.Time                 `json:"updated_at"`
	Preferences          Preferences               `json:"preferences"`
	Profile              *metabolic.Profile        `json:"profile,omitempty"`
	DailyTargets         macros.DailyTargets       `json:"daily_targets"`
	MetabolicData        *metabolic.Data           `json:"metabolic_data,omitempty"`
	MicronutrientTargets *metabolic.Micronutrients `json:"micronutrient_targets,omitempty"`
	FoodSuggestions      *foods.Suggestions        `json:"food_suggestions,omitempty"`
	SchemaVersion        int                       `json:"schema_version"`
}

// SetCalories updates the daily target and both metabolic goal fields in one step.
func (p *Plan) SetCalories(kcal int) {
	p.DailyTargets.Calories = kcal
	if p.MetabolicData != nil {
		p.MetabolicData.SetGoalCalories(kcal)
	}
}

// HistoricalTarget is an append-only snapshot taken whenever targets are
// (re)calculated.
type HistoricalTarget struct {
	ID            string    `json:"id"`
	PlanID        string    `json:"plan_id"`
	StartDate     string    `json:"start_date"`
	DailyCalories int       `json:"daily_calories"`
	ProteinG      int       `json:"protein_g"`
	CarbsG        int       `json:"carbs_g"`
	FatG          int       `json:"fat_g"`
	Reasoning     string    `json:"reasoning"`
	CreatedAt     time.Time `json:"created_at"`
	Synthesized   bool      `json:"synthesized,omitempty"`
}

// Targets returns the snapshot as DailyTargets.
func (h HistoricalTarget) Targets() macros.DailyTargets {
	return macros.DailyTargets{
		Calories: h.DailyCalories,
		ProteinG: h.ProteinG,
		CarbsG:   h.CarbsG,
		FatG:     h.FatG,
	}
}

// SnapshotOf builds a HistoricalTarget from a plan's current targets.
func SnapshotOf(p Plan, id, reasoning string, at time.Time) HistoricalTarget {
	return HistoricalTarget{
		ID:            id,
		PlanID:        p.ID,
		StartDate:     at.Format("2006-01-02"),
		DailyCalories: p.DailyTargets.Calories,
		ProteinG:      p.DailyTargets.ProteinG,
		CarbsG:        p.DailyTargets.CarbsG,
		FatG:          p.DailyTargets.FatG,
		Reasoning:     reasoning,
		CreatedAt:     at,
	}
}
