package nutrition

import (
	"fmt"
	"strings"

	"github.com/fdg312/nutriplan/internal/enrichment"
	"github.com/fdg312/nutriplan/internal/foodlog"
	"github.com/fdg312/nutriplan/internal/macros"
	"github.com/fdg312/nutriplan/internal/metabolic"
	"github.com/fdg312/nutriplan/internal/plans"
)

// GeneratePlanRequest is the body of POST /v1/nutrition/plans.
type GeneratePlanRequest struct {
	PlanName           string            `json:"plan_name"`
	Goal               string            `json:"goal"`
	DietaryPreferences []string          `json:"dietary_preferences"`
	Intolerances       []string          `json:"intolerances"`
	CuisinePreferences []string          `json:"cuisine_preferences"`
	Profile            metabolic.Profile `json:"profile"`
}

// Validate rejects an explicit goal that names no known strategy. Profile
// fields are never rejected; invalid ones fall back to defaults.
func (r *GeneratePlanRequest) Validate() error {
	if g := strings.TrimSpace(r.Goal); g != "" {
		if _, ok := metabolic.ResolveStrategy(g); !ok {
			return fmt.Errorf("unknown goal %q", g)
		}
	}
	if len(r.PlanName) > 120 {
		return fmt.Errorf("plan_name must be at most 120 characters")
	}
	return nil
}

// ReevaluateRequest is the body of POST /v1/nutrition/plans/reevaluate.
// A nil Profile reuses the one stored with the plan.
type ReevaluateRequest struct {
	PlanID  string             `json:"plan_id,omitempty"`
	Profile *metabolic.Profile `json:"profile,omitempty"`
}

// PlanResponse carries a plan together with the targets to display.
type PlanResponse struct {
	Plan             plans.Plan           `json:"plan"`
	EffectiveTargets macros.DailyTargets  `json:"effective_targets"`
	TargetSource     plans.TargetSource   `json:"target_source"`
	MealPlan         *enrichment.MealPlan `json:"meal_plan,omitempty"`
	MealPlanSource   string               `json:"meal_plan_source,omitempty"`
}

type ListPlansResponse struct {
	Plans []plans.Plan `json:"plans"`
}

type HistoricalTargetsResponse struct {
	PlanID  string                   `json:"plan_id"`
	Targets []plans.HistoricalTarget `json:"targets"`
}

type MealPlanRequest struct {
	Date string `json:"date"`
}

// Meal plan sources
const (
	SourceRemote = "remote"
	SourceLocal  = "local"
)

type MealPlanResponse struct {
	MealPlan enrichment.MealPlan `json:"meal_plan"`
	Source   string              `json:"source"`
}

// CustomizeMealRequest is the body of POST /v1/nutrition/meal-plan/customize.
// PlanID and MealType are optional; together they let the customized meal
// be saved into the plan's meal slot.
type CustomizeMealRequest struct {
	PlanID              string                 `json:"plan_id,omitempty"`
	MealType            string                 `json:"meal_type,omitempty"`
	OriginalMeal        string                 `json:"original_meal"`
	IngredientToReplace string                 `json:"ingredient_to_replace"`
	NewIngredient       string                 `json:"new_ingredient"`
	TargetMacros        *enrichment.MealMacros `json:"target_macros,omitempty"`
}

func (r *CustomizeMealRequest) Validate() error {
	switch {
	case strings.TrimSpace(r.OriginalMeal) == "":
		return fmt.Errorf("original_meal is required")
	case strings.TrimSpace(r.IngredientToReplace) == "":
		return fmt.Errorf("ingredient_to_replace is required")
	case strings.TrimSpace(r.NewIngredient) == "":
		return fmt.Errorf("new_ingredient is required")
	}
	return nil
}

type CustomizeMealResponse struct {
	Meal  enrichment.CustomizedMeal `json:"meal"`
	Saved bool                      `json:"saved"`
}

type ChatRequest struct {
	Message string `json:"message"`
}

type LogFoodRequest struct {
	FoodName    string  `json:"food_name"`
	MealType    string  `json:"meal_type"`
	ServingSize string  `json:"serving_size"`
	Calories    float64 `json:"calories"`
	ProteinG    float64 `json:"protein_grams"`
	CarbsG      float64 `json:"carbs_grams"`
	FatG        float64 `json:"fat_grams"`
}

func (r LogFoodRequest) entry() foodlog.Entry {
	return foodlog.Entry{
		FoodName:    strings.TrimSpace(r.FoodName),
		MealType:    r.MealType,
		ServingSize: r.ServingSize,
		Calories:    r.Calories,
		ProteinG:    r.ProteinG,
		CarbsG:      r.CarbsG,
		FatG:        r.FatG,
	}
}

type LogFoodResponse struct {
	Entry  foodlog.Entry `json:"entry"`
	Synced bool          `json:"synced"`
}

type FoodLogResponse struct {
	Date    string          `json:"date"`
	Entries []foodlog.Entry `json:"entries"`
	Totals  foodlog.Totals  `json:"totals"`
	// Remaining is the effective target minus the totals, when a plan exists.
	Remaining *macros.DailyTargets `json:"remaining,omitempty"`
}
