package nutrition

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fdg312/nutriplan/internal/enrichment"
	"github.com/fdg312/nutriplan/internal/foodlog"
	"github.com/fdg312/nutriplan/internal/foods"
	"github.com/fdg312/nutriplan/internal/macros"
	"github.com/fdg312/nutriplan/internal/metabolic"
	"github.com/fdg312/nutriplan/internal/plans"
	"github.com/fdg312/nutriplan/internal/storage/memory"
)

// stubProvider records calls and fails every operation when err is set.
// updateErr fails only UpdateMeal.
type stubProvider struct {
	err        error
	updateErr  error
	synced     []foodlog.Entry
	notices    []enrichment.ReevaluationNotice
	chats      []enrichment.ChatRequest
	customized []enrichment.CustomizeMealRequest
	updates    []enrichment.MealUpdate
	recipe     enrichment.Recipe
}

func (p *stubProvider) DailyMealPlan(ctx context.Context, req enrichment.MealPlanRequest) (enrichment.MealPlan, error) {
	if p.err != nil {
		return enrichment.MealPlan{}, p.err
	}
	return enrichment.MealPlan{
		Date:   req.Date,
		Method: "ai",
		Meals: []enrichment.Meal{{
			MealType:   "breakfast",
			RecipeName: "Remote oats",
			Macros:     enrichment.MealMacros{Calories: float64(req.Targets.Calories) / 4},
		}},
	}, nil
}

func (p *stubProvider) Recipe(ctx context.Context, req enrichment.RecipeRequest) (enrichment.Recipe, error) {
	return p.recipe, p.err
}

func (p *stubProvider) CustomizeMeal(ctx context.Context, req enrichment.CustomizeMealRequest) (enrichment.CustomizedMeal, error) {
	p.customized = append(p.customized, req)
	if p.err != nil {
		return enrichment.CustomizedMeal{}, p.err
	}
	return enrichment.CustomizedMeal{Description: "Oats with " + req.NewIngredient, Source: "remote"}, nil
}

func (p *stubProvider) UpdateMeal(ctx context.Context, u enrichment.MealUpdate) error {
	p.updates = append(p.updates, u)
	return p.updateErr
}

func (p *stubProvider) SyncFoodEntry(ctx context.Context, userID string, entry foodlog.Entry) error {
	if p.err != nil {
		return p.err
	}
	p.synced = append(p.synced, entry)
	return nil
}

func (p *stubProvider) NotifyReevaluation(ctx context.Context, n enrichment.ReevaluationNotice) error {
	p.notices = append(p.notices, n)
	return p.err
}

func (p *stubProvider) ChatAdjust(ctx context.Context, req enrichment.ChatRequest) (enrichment.ChatReply, error) {
	p.chats = append(p.chats, req)
	if p.err != nil {
		return enrichment.ChatReply{}, p.err
	}
	return enrichment.ChatReply{Response: "remote says hi", Source: "ai"}, nil
}

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	svc      *Service
	store    *plans.Store
	provider *stubProvider
	clock    *time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	kv := memory.New()
	provider := &stubProvider{}
	store := plans.NewStore(kv)
	svc := NewService(store, foodlog.NewStore(kv), foods.Default(), provider)

	clock := t0
	ids := 0
	svc.now = func() time.Time { return clock }
	svc.newID = func() string {
		ids++
		return fmt.Sprintf("id-%d", ids)
	}
	return &testEnv{svc: svc, store: store, provider: provider, clock: &clock}
}

func (e *testEnv) advance(d time.Duration) { *e.clock = e.clock.Add(d) }

func scenarioProfile() metabolic.Profile {
	return metabolic.Profile{
		WeightKg:        80,
		HeightCm:        180,
		Age:             28,
		Gender:          "male",
		ActivityLevel:   "moderately_active",
		FitnessStrategy: "cut",
	}
}

func TestGeneratePlanScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	resp, err := env.svc.GeneratePlan(ctx, "user-1", GeneratePlanRequest{Profile: scenarioProfile()})
	require.NoError(t, err)

	p := resp.Plan
	require.NotNil(t, p.MetabolicData)
	assert.Equal(t, 1828, p.MetabolicData.BMR)
	assert.Equal(t, 2833, p.MetabolicData.TDEE)
	assert.Equal(t, 2433, p.MetabolicData.GoalCalories)
	assert.Equal(t, 2433, p.MetabolicData.AdjustedCalories)
	assert.Equal(t, 2433, p.DailyTargets.Calories)
	assert.Equal(t, 213, p.DailyTargets.ProteinG)
	assert.Equal(t, 152, p.DailyTargets.CarbsG)
	assert.Equal(t, 108, p.DailyTargets.FatG)
	assert.Equal(t, 24, p.DailyTargets.FiberG)
	assert.Equal(t, 2.8, p.DailyTargets.WaterLiters)
	assert.Equal(t, "cut", p.FitnessStrategy)
	assert.Equal(t, "weight_loss", p.GoalType)
	assert.Equal(t, plans.StatusActive, p.Status)
	assert.Equal(t, plans.CurrentSchemaVersion, p.SchemaVersion)
	assert.Equal(t, "Cut plan", p.PlanName)

	require.NotNil(t, p.FoodSuggestions)
	assert.NotEmpty(t, p.FoodSuggestions.Protein)
	require.NotNil(t, p.MicronutrientTargets)

	require.NotNil(t, resp.MealPlan)
	assert.Equal(t, SourceRemote, resp.MealPlanSource)
	assert.Equal(t, "2026-03-01", resp.MealPlan.Date)
	assert.Equal(t, plans.SourcePlan, resp.TargetSource)

	selected, err := env.store.SelectedPlanID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, p.ID, selected)

	history, err := env.store.HistoricalTargets(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 2433, history[0].DailyCalories)
	assert.Equal(t, "2026-03-01", history[0].StartDate)
}

func TestGeneratePlanGoalOverridesProfile(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.svc.GeneratePlan(context.Background(), "user-1", GeneratePlanRequest{
		Goal:    "maintenance",
		Profile: scenarioProfile(),
	})
	require.NoError(t, err)
	assert.Equal(t, 2833, resp.Plan.DailyTargets.Calories)
	assert.Equal(t, "maintenance", resp.Plan.Preferences.Goal)
}

func TestGeneratePlanRejectsUnknownGoal(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.GeneratePlan(context.Background(), "user-1", GeneratePlanRequest{Goal: "shred"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestGeneratePlanFallsBackToLocalMealPlan(t *testing.T) {
	env := newTestEnv(t)
	env.provider.err = fmt.Errorf("%w: no bases", enrichment.ErrUnavailable)

	resp, err := env.svc.GeneratePlan(context.Background(), "user-1", GeneratePlanRequest{
		Profile:            scenarioProfile(),
		DietaryPreferences: []string{"vegan"},
	})
	require.NoError(t, err)

	require.NotNil(t, resp.MealPlan)
	assert.Equal(t, SourceLocal, resp.MealPlanSource)
	assert.Equal(t, enrichment.MethodMathematical, resp.MealPlan.Method)
	assert.Len(t, resp.MealPlan.Meals, 4)
	assert.InDelta(t, 2433, resp.MealPlan.Totals().Calories, 2)

	for _, s := range resp.Plan.FoodSuggestions.Protein {
		item, ok := foods.Default().Get(s.FoodKey)
		require.True(t, ok)
		assert.True(t, item.Satisfies(foods.Vegan), s.FoodKey)
	}
}

func TestGeneratePlanArchivesPrevious(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.svc.GeneratePlan(ctx, "user-1", GeneratePlanRequest{Profile: scenarioProfile()})
	require.NoError(t, err)
	env.advance(time.Hour)
	second, err := env.svc.GeneratePlan(ctx, "user-1", GeneratePlanRequest{Goal: "bulk", Profile: scenarioProfile()})
	require.NoError(t, err)

	old, err := env.store.Get(ctx, first.Plan.ID)
	require.NoError(t, err)
	assert.Equal(t, plans.StatusArchived, old.Status)

	latest, err := env.svc.GetLatestPlan(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, second.Plan.ID, latest.Plan.ID)
}

func TestReevaluateKeepsGoalFieldsEqual(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	gen, err := env.svc.GeneratePlan(ctx, "user-1", GeneratePlanRequest{Profile: scenarioProfile()})
	require.NoError(t, err)

	env.advance(48 * time.Hour)
	lighter := scenarioProfile()
	lighter.WeightKg = 75
	resp, err := env.svc.ReevaluatePlan(ctx, "user-1", ReevaluateRequest{Profile: &lighter})
	require.NoError(t, err)

	p := resp.Plan
	assert.Equal(t, gen.Plan.ID, p.ID)
	assert.Less(t, p.DailyTargets.Calories, 2433)
	assert.Equal(t, p.DailyTargets.Calories, p.MetabolicData.GoalCalories)
	assert.Equal(t, p.DailyTargets.Calories, p.MetabolicData.AdjustedCalories)
	assert.Equal(t, 75.0, p.Profile.WeightKg)

	history, err := env.store.HistoricalTargets(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, p.DailyTargets.Calories, history[0].DailyCalories)
	assert.Equal(t, "2026-03-03", history[0].StartDate)
	assert.Contains(t, history[0].Reasoning, "Re-evaluated: 2433 ->")

	require.Len(t, env.provider.notices, 1)
	assert.Equal(t, p.ID, env.provider.notices[0].PlanID)
}

func TestReevaluateReusesStoredProfile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.GeneratePlan(ctx, "user-1", GeneratePlanRequest{Profile: scenarioProfile()})
	require.NoError(t, err)

	resp, err := env.svc.ReevaluatePlan(ctx, "user-1", ReevaluateRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2433, resp.Plan.DailyTargets.Calories)
	assert.Equal(t, 2433, resp.Plan.MetabolicData.AdjustedCalories)
}

func TestReevaluateSurvivesNoticeFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.GeneratePlan(ctx, "user-1", GeneratePlanRequest{Profile: scenarioProfile()})
	require.NoError(t, err)

	env.provider.err = &enrichment.RemoteRejectedError{Path: enrichment.PathReevaluatePlan, StatusCode: 400, Message: "nope"}
	_, err = env.svc.ReevaluatePlan(ctx, "user-1", ReevaluateRequest{})
	assert.NoError(t, err)
}

func TestReevaluateWithoutPlan(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.ReevaluatePlan(context.Background(), "user-1", ReevaluateRequest{})
	assert.ErrorIs(t, err, ErrNoPlan)
}

func TestLatestPlanPrefersSnapshot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	gen, err := env.svc.GeneratePlan(ctx, "user-1", GeneratePlanRequest{Profile: scenarioProfile()})
	require.NoError(t, err)

	snap := plans.SnapshotOf(gen.Plan, "manual", "Coach adjustment", t0.Add(24*time.Hour))
	snap.DailyCalories = 2300
	require.NoError(t, env.store.AppendHistoricalTarget(ctx, snap))

	resp, err := env.svc.GetLatestPlan(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, plans.SourceSnapshot, resp.TargetSource)
	assert.Equal(t, 2300, resp.EffectiveTargets.Calories)
	assert.Equal(t, 24, resp.EffectiveTargets.FiberG)
	assert.Equal(t, 2433, resp.Plan.DailyTargets.Calories)
}

func TestLatestPlanNone(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.GetLatestPlan(context.Background(), "user-1")
	assert.ErrorIs(t, err, ErrNoPlan)
}

func TestHistoricalTargetsSynthesized(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	gen, err := env.svc.GeneratePlan(ctx, "user-1", GeneratePlanRequest{Profile: scenarioProfile()})
	require.NoError(t, err)

	bare := gen.Plan
	bare.ID = "bare"
	bare.Status = plans.StatusArchived
	require.NoError(t, env.store.UpsertPlan(ctx, bare))

	targets, err := env.svc.GetHistoricalTargets(ctx, "user-1", "bare")
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, "target-bare", targets[0].ID)
	assert.Equal(t, "Generated plan targets.", targets[0].Reasoning)
	assert.Equal(t, 2433, targets[0].DailyCalories)
	assert.True(t, targets[0].Synthesized)

	stored, err := env.store.HistoricalTargets(ctx, "bare")
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestHistoricalTargetsOwnership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	gen, err := env.svc.GeneratePlan(ctx, "user-1", GeneratePlanRequest{Profile: scenarioProfile()})
	require.NoError(t, err)

	_, err = env.svc.GetHistoricalTargets(ctx, "user-2", gen.Plan.ID)
	assert.ErrorIs(t, err, plans.ErrPlanNotFound)

	targets, err := env.svc.GetHistoricalTargets(ctx, "user-1", gen.Plan.ID)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.False(t, targets[0].Synthesized)
}

func TestSelectAndDeletePlan(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.svc.GeneratePlan(ctx, "user-1", GeneratePlanRequest{Profile: scenarioProfile()})
	require.NoError(t, err)
	env.advance(time.Hour)
	second, err := env.svc.GeneratePlan(ctx, "user-1", GeneratePlanRequest{Goal: "bulk", Profile: scenarioProfile()})
	require.NoError(t, err)

	resp, err := env.svc.SelectPlan(ctx, "user-1", first.Plan.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Plan.ID, resp.Plan.ID)

	latest, err := env.svc.GetLatestPlan(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, first.Plan.ID, latest.Plan.ID)

	_, err = env.svc.SelectPlan(ctx, "user-2", first.Plan.ID)
	assert.ErrorIs(t, err, plans.ErrPlanNotFound)

	require.NoError(t, env.svc.DeletePlan(ctx, "user-1", first.Plan.ID))
	latest, err = env.svc.GetLatestPlan(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, second.Plan.ID, latest.Plan.ID)

	list, err := env.svc.ListPlans(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	assert.ErrorIs(t, env.svc.DeletePlan(ctx, "user-2", second.Plan.ID), plans.ErrPlanNotFound)
}

func TestDeleteSeededPlanSetsFlag(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.svc.DeletePlan(ctx, "user-1", plans.LegacySeededPlanID))

	deleted, err := env.store.DeletedDefaultPlan(ctx)
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestDailyMealPlan(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.GenerateDailyMealPlan(ctx, "user-1", "")
	assert.ErrorIs(t, err, ErrNoPlan)

	_, err = env.svc.GeneratePlan(ctx, "user-1", GeneratePlanRequest{Profile: scenarioProfile()})
	require.NoError(t, err)

	resp, err := env.svc.GenerateDailyMealPlan(ctx, "user-1", "2026-03-05")
	require.NoError(t, err)
	assert.Equal(t, SourceRemote, resp.Source)
	assert.Equal(t, "2026-03-05", resp.MealPlan.Date)

	env.provider.err = &enrichment.RemoteRejectedError{StatusCode: 422, Message: "bad targets"}
	resp, err = env.svc.GenerateDailyMealPlan(ctx, "user-1", "2026-03-05")
	require.NoError(t, err)
	assert.Equal(t, SourceLocal, resp.Source)
	assert.Equal(t, "2026-03-05", resp.MealPlan.Date)

	_, err = env.svc.GenerateDailyMealPlan(ctx, "user-1", "05/03/2026")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestGenerateRecipeErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	req := enrichment.RecipeRequest{MealType: "lunch", Ingredients: []string{"rice"}}

	env.provider.recipe = enrichment.Recipe{Source: "ai"}
	recipe, err := env.svc.GenerateRecipe(ctx, "user-1", req)
	require.NoError(t, err)
	assert.Equal(t, "ai", recipe.Source)

	env.provider.err = fmt.Errorf("%w: exhausted", enrichment.ErrUnavailable)
	_, err = env.svc.GenerateRecipe(ctx, "user-1", req)
	assert.ErrorIs(t, err, ErrRemoteUnavailable)

	env.provider.err = &enrichment.RemoteRejectedError{StatusCode: 400, Message: "unknown meal"}
	_, err = env.svc.GenerateRecipe(ctx, "user-1", req)
	var rejected *enrichment.RemoteRejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, "unknown meal", rejected.Message)
	assert.False(t, errors.Is(err, ErrRemoteUnavailable))
}

func TestCustomizeMeal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	gen, err := env.svc.GeneratePlan(ctx, "user-1", GeneratePlanRequest{Profile: scenarioProfile()})
	require.NoError(t, err)

	resp, err := env.svc.CustomizeMeal(ctx, "user-1", CustomizeMealRequest{
		MealType:            "breakfast",
		OriginalMeal:        "Oats with whey",
		IngredientToReplace: "whey",
		NewIngredient:       "tofu",
	})
	require.NoError(t, err)
	assert.Equal(t, "Oats with tofu", resp.Meal.Description)
	assert.True(t, resp.Saved)

	require.Len(t, env.provider.customized, 1)
	assert.Equal(t, enrichment.MealMacros{Calories: 811, ProteinGrams: 71, CarbsGrams: 51, FatGrams: 36}, env.provider.customized[0].TargetMacros)
	require.Len(t, env.provider.updates, 1)
	assert.Equal(t, enrichment.MealUpdate{PlanID: gen.Plan.ID, MealTimeSlot: "breakfast", NewMealDescription: "Oats with tofu"}, env.provider.updates[0])

	explicit := enrichment.MealMacros{Calories: 500}
	_, err = env.svc.CustomizeMeal(ctx, "user-1", CustomizeMealRequest{
		OriginalMeal:        "Oats with whey",
		IngredientToReplace: "whey",
		NewIngredient:       "tofu",
		TargetMacros:        &explicit,
	})
	require.NoError(t, err)
	assert.Equal(t, explicit, env.provider.customized[1].TargetMacros)
	assert.Len(t, env.provider.updates, 1, "no meal slot, nothing to save")
}

func TestCustomizeMealSaveIsBestEffort(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.GeneratePlan(ctx, "user-1", GeneratePlanRequest{Profile: scenarioProfile()})
	require.NoError(t, err)

	env.provider.updateErr = &enrichment.RemoteRejectedError{Path: enrichment.PathUpdateMeal, StatusCode: 404, Message: "no such slot"}
	resp, err := env.svc.CustomizeMeal(ctx, "user-1", CustomizeMealRequest{
		MealType:            "lunch",
		OriginalMeal:        "Rice bowl",
		IngredientToReplace: "rice",
		NewIngredient:       "quinoa",
	})
	require.NoError(t, err)
	assert.False(t, resp.Saved)
	assert.NotEmpty(t, resp.Meal.Description)
}

func TestCustomizeMealErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	req := CustomizeMealRequest{OriginalMeal: "Rice bowl", IngredientToReplace: "rice", NewIngredient: "quinoa"}

	_, err := env.svc.CustomizeMeal(ctx, "user-1", CustomizeMealRequest{OriginalMeal: "Rice bowl"})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	withPlan := req
	withPlan.PlanID = "missing"
	_, err = env.svc.CustomizeMeal(ctx, "user-1", withPlan)
	assert.ErrorIs(t, err, plans.ErrPlanNotFound)

	env.provider.err = fmt.Errorf("%w: exhausted", enrichment.ErrUnavailable)
	_, err = env.svc.CustomizeMeal(ctx, "user-1", req)
	assert.ErrorIs(t, err, ErrRemoteUnavailable)

	env.provider.err = nil
	guest := req
	guest.MealType = "dinner"
	resp, err := env.svc.CustomizeMeal(ctx, "guest", guest)
	require.NoError(t, err)
	assert.False(t, resp.Saved)
	assert.Empty(t, env.provider.updates)
}

func TestPerMealTargets(t *testing.T) {
	got := perMealTargets(macros.DailyTargets{Calories: 2433, ProteinG: 213, CarbsG: 152, FatG: 108})
	assert.Equal(t, enrichment.RecipeTargets{Calories: 811, Protein: 71, Carbs: 51, Fat: 36}, got)
}

func TestLogFoodEntrySync(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	req := LogFoodRequest{FoodName: "Greek yogurt", MealType: "snack", Calories: 150, ProteinG: 15}

	resp, err := env.svc.LogFoodEntry(ctx, "user-1", req)
	require.NoError(t, err)
	assert.True(t, resp.Synced)
	assert.NotEmpty(t, resp.Entry.ID)
	require.Len(t, env.provider.synced, 1)

	resp, err = env.svc.LogFoodEntry(ctx, "guest-42", req)
	require.NoError(t, err)
	assert.False(t, resp.Synced)
	assert.Len(t, env.provider.synced, 1)

	env.provider.err = fmt.Errorf("%w: down", enrichment.ErrUnavailable)
	resp, err = env.svc.LogFoodEntry(ctx, "user-1", req)
	require.NoError(t, err)
	assert.False(t, resp.Synced)

	_, err = env.svc.LogFoodEntry(ctx, "user-1", LogFoodRequest{FoodName: "  "})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestFoodLogRemaining(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	entry, err := env.svc.LogFoodEntry(ctx, "user-1", LogFoodRequest{FoodName: "Oats", Calories: 400, ProteinG: 13, CarbsG: 68, FatG: 7})
	require.NoError(t, err)

	resp, err := env.svc.FoodLog(ctx, "user-1", entry.Entry.Date)
	require.NoError(t, err)
	assert.Len(t, resp.Entries, 1)
	assert.Nil(t, resp.Remaining)

	_, err = env.svc.GeneratePlan(ctx, "user-1", GeneratePlanRequest{Profile: scenarioProfile()})
	require.NoError(t, err)

	resp, err = env.svc.FoodLog(ctx, "user-1", entry.Entry.Date)
	require.NoError(t, err)
	require.NotNil(t, resp.Remaining)
	assert.Equal(t, 2033, resp.Remaining.Calories)
	assert.Equal(t, 200, resp.Remaining.ProteinG)

	_, err = env.svc.FoodLog(ctx, "user-1", "yesterday")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestChatAdjustFallback(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.GeneratePlan(ctx, "user-1", GeneratePlanRequest{Profile: scenarioProfile()})
	require.NoError(t, err)

	reply, err := env.svc.ChatAdjust(ctx, "user-1", "more carbs please")
	require.NoError(t, err)
	assert.Equal(t, "remote says hi", reply.Response)
	require.Len(t, env.provider.chats, 1)
	assert.Equal(t, 2433, env.provider.chats[0].Targets.Calories)

	env.provider.err = fmt.Errorf("%w: down", enrichment.ErrUnavailable)
	reply, err = env.svc.ChatAdjust(ctx, "user-1", "more carbs please")
	require.NoError(t, err)
	assert.Equal(t, "local", reply.Source)
	assert.Contains(t, reply.Response, "2433 kcal")

	_, err = env.svc.ChatAdjust(ctx, "user-1", " ")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestExportPlan(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	gen, err := env.svc.GeneratePlan(ctx, "user-1", GeneratePlanRequest{Profile: scenarioProfile()})
	require.NoError(t, err)

	csv, err := env.svc.ExportPlan(ctx, "user-1", gen.Plan.ID, "csv")
	require.NoError(t, err)
	assert.Contains(t, string(csv), "2026-03-01,2433,213,152,108")

	pdf, err := env.svc.ExportPlan(ctx, "user-1", gen.Plan.ID, "pdf")
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(pdf[:4]))

	_, err = env.svc.ExportPlan(ctx, "user-2", gen.Plan.ID, "pdf")
	assert.ErrorIs(t, err, plans.ErrPlanNotFound)
}

func TestIsGuest(t *testing.T) {
	assert.True(t, IsGuest(""))
	assert.True(t, IsGuest("guest"))
	assert.True(t, IsGuest("guest-1234"))
	assert.False(t, IsGuest("user-1"))
}
