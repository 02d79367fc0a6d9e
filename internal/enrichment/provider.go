// Package enrichment talks to the remote nutrition service for content the
// engine does not compute itself: meal plans, recipes and chat replies.
// Numeric targets never come from here.
package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fdg312/nutriplan/internal/foodlog"
	"github.com/fdg312/nutriplan/internal/foods"
	"github.com/fdg312/nutriplan/internal/macros"
	"github.com/fdg312/nutriplan/internal/metabolic"
)

// Remote endpoints, relative to every candidate base.
const (
	PathDailyMealPlan   = "/api/generate-daily-meal-plan"
	PathRecipe          = "/api/generate-recipe"
	PathSimpleRecipe    = "/api/simple-recipe"
	PathCustomizeMeal   = "/api/customize-meal"
	PathUpdateMeal      = "/api/update-meal"
	PathLogFoodEntry    = "/api/log-food-entry"
	PathReevaluatePlan  = "/api/re-evaluate-plan"
	PathChatAdjust      = "/api/nutrition-chat-adjust"
)

// ErrUnavailable means no base could serve the call. Callers fall back to
// local computation.
var ErrUnavailable = errors.New("remote enrichment unavailable")

// RemoteRejectedError is a transport-level success carrying success:false.
type RemoteRejectedError struct {
	Path       string
	StatusCode int
	Message    string
}

func (e *RemoteRejectedError) Error() string {
	return fmt.Sprintf("remote rejected %s (status %d): %s", e.Path, e.StatusCode, e.Message)
}

type Provider interface {
	DailyMealPlan(ctx context.Context, req MealPlanRequest) (MealPlan, error)
	Recipe(ctx context.Context, req RecipeRequest) (Recipe, error)
	CustomizeMeal(ctx context.Context, req CustomizeMealRequest) (CustomizedMeal, error)
	UpdateMeal(ctx context.Context, u MealUpdate) error
	SyncFoodEntry(ctx context.Context, userID string, entry foodlog.Entry) error
	NotifyReevaluation(ctx context.Context, n ReevaluationNotice) error
	ChatAdjust(ctx context.Context, req ChatRequest) (ChatReply, error)
}

type MealPlanRequest struct {
	UserID             string              `json:"userId"`
	PlanID             string              `json:"planId,omitempty"`
	Date               string              `json:"date,omitempty"`
	Targets            macros.DailyTargets `json:"targets"`
	DietaryPreferences []string            `json:"dietaryPreferences,omitempty"`
}

type MealMacros struct {
	Calories     float64 `json:"calories"`
	ProteinGrams float64 `json:"protein_grams"`
	CarbsGrams   float64 `json:"carbs_grams"`
	FatGrams     float64 `json:"fat_grams"`
}

type Meal struct {
	MealType     string                    `json:"meal_type"`
	RecipeName   string                    `json:"recipe_name"`
	PrepTime     int                       `json:"prep_time"`
	CookTime     int                       `json:"cook_time"`
	Servings     int                       `json:"servings"`
	Ingredients  []string                  `json:"ingredients"`
	Instructions []string                  `json:"instructions"`
	Macros       MealMacros                `json:"macros"`
	Portions     []foods.ServingSuggestion `json:"portions,omitempty"`
}

// MealPlan is one day of meals.
type MealPlan struct {
	Date       string `json:"date,omitempty"`
	Meals      []Meal `json:"meal_plan"`
	Method     string `json:"method"`
	AIProvider string `json:"aiProvider"`
	Message    string `json:"message,omitempty"`
}

// Totals adds up the macros of every meal.
func (p MealPlan) Totals() MealMacros {
	var t MealMacros
	for _, m := range p.Meals {
		t.Calories += m.Macros.Calories
		t.ProteinGrams += m.Macros.ProteinGrams
		t.CarbsGrams += m.Macros.CarbsGrams
		t.FatGrams += m.Macros.FatGrams
	}
	return t
}

type RecipeTargets struct {
	Calories int `json:"calories,omitempty"`
	Protein  int `json:"protein,omitempty"`
	Carbs    int `json:"carbs,omitempty"`
	Fat      int `json:"fat,omitempty"`
}

type RecipeRequest struct {
	MealType    string        `json:"mealType"`
	Targets     RecipeTargets `json:"targets"`
	Ingredients []string      `json:"ingredients"`
	// Strict disables the simple recipe fallback.
	Strict bool `json:"strict"`
}

// Recipe keeps the service's recipe document as is; its layout depends on
// the model that produced it.
type Recipe struct {
	Source string          `json:"source"`
	Body   json.RawMessage `json:"recipe"`
}

// CustomizeMealRequest asks for a meal rewritten with one ingredient swapped
// while staying close to the target macros.
type CustomizeMealRequest struct {
	OriginalMeal        string     `json:"originalMeal"`
	TargetMacros        MealMacros `json:"targetMacros"`
	IngredientToReplace string     `json:"ingredientToReplace"`
	NewIngredient       string     `json:"newIngredient"`
}

type CustomizedMeal struct {
	Description string `json:"new_meal_description"`
	Source      string `json:"source"`
}

// MealUpdate stores a customized meal in the remote copy of a plan.
type MealUpdate struct {
	PlanID             string `json:"planId"`
	MealTimeSlot       string `json:"mealTimeSlot"`
	NewMealDescription string `json:"newMealDescription"`
}

type ReevaluationNotice struct {
	UserID        string              `json:"userId"`
	PlanID        string              `json:"planId"`
	DailyTargets  macros.DailyTargets `json:"daily_targets"`
	MetabolicData *metabolic.Data     `json:"metabolic_data,omitempty"`
}

type ChatRequest struct {
	UserID  string              `json:"userId"`
	PlanID  string              `json:"planId,omitempty"`
	Message string              `json:"message"`
	Targets macros.DailyTargets `json:"currentTargets"`
}

type ChatReply struct {
	Response string `json:"response"`
	// SuggestedCalories is advisory. The engine never applies it to a plan.
	SuggestedCalories int    `json:"suggested_calories,omitempty"`
	Source            string `json:"source"`
}
