package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fdg312/nutriplan/internal/foodlog"
	"github.com/fdg312/nutriplan/internal/foods"
)

// MockProvider answers every call locally. It backs ENRICHMENT_MODE=mock.
type MockProvider struct {
	foods *foods.Database
}

func NewMockProvider(db *foods.Database) *MockProvider {
	return &MockProvider{foods: db}
}

func (p *MockProvider) DailyMealPlan(ctx context.Context, req MealPlanRequest) (MealPlan, error) {
	_ = ctx

	plan := LocalMealPlan(p.foods, req.Targets, foods.TagsForPreferences(req.DietaryPreferences...))
	plan.Date = req.Date
	plan.Message = "Mock meal plan, generated without the remote service."
	return plan, nil
}

func (p *MockProvider) Recipe(ctx context.Context, req RecipeRequest) (Recipe, error) {
	_ = ctx

	mealType := req.MealType
	if mealType == "" {
		mealType = "meal"
	}
	name := "Simple " + mealType
	if len(req.Ingredients) > 0 {
		name = fmt.Sprintf("%s %s bowl", strings.Join(req.Ingredients[:min(2, len(req.Ingredients))], " and "), mealType)
	}

	steps := make([]string, 0, len(req.Ingredients)+1)
	for _, ing := range req.Ingredients {
		steps = append(steps, "Prepare "+strings.ToLower(ing))
	}
	steps = append(steps, "Combine and serve")

	body, err := json.Marshal(map[string]any{
		"name":         name,
		"meal_type":    mealType,
		"servings":     1,
		"ingredients":  req.Ingredients,
		"instructions": steps,
		"macros":       req.Targets,
	})
	if err != nil {
		return Recipe{}, err
	}
	return Recipe{Source: "mock", Body: body}, nil
}

func (p *MockProvider) CustomizeMeal(ctx context.Context, req CustomizeMealRequest) (CustomizedMeal, error) {
	_ = ctx

	desc := req.OriginalMeal
	if req.IngredientToReplace != "" && strings.Contains(desc, req.IngredientToReplace) {
		desc = strings.ReplaceAll(desc, req.IngredientToReplace, req.NewIngredient)
	} else {
		desc = fmt.Sprintf("%s with %s instead of %s", desc, req.NewIngredient, req.IngredientToReplace)
	}
	return CustomizedMeal{Description: desc, Source: "mock"}, nil
}

func (p *MockProvider) UpdateMeal(ctx context.Context, u MealUpdate) error {
	return nil
}

func (p *MockProvider) SyncFoodEntry(ctx context.Context, userID string, entry foodlog.Entry) error {
	return nil
}

func (p *MockProvider) NotifyReevaluation(ctx context.Context, n ReevaluationNotice) error {
	return nil
}

func (p *MockProvider) ChatAdjust(ctx context.Context, req ChatRequest) (ChatReply, error) {
	_ = ctx

	reply := LocalChatReply(req)
	reply.Source = "mock"
	return reply, nil
}
