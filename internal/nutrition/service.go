package nutrition

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fdg312/nutriplan/internal/enrichment"
	"github.com/fdg312/nutriplan/internal/foodlog"
	"github.com/fdg312/nutriplan/internal/foods"
	"github.com/fdg312/nutriplan/internal/logging"
	"github.com/fdg312/nutriplan/internal/macros"
	"github.com/fdg312/nutriplan/internal/metabolic"
	"github.com/fdg312/nutriplan/internal/plans"
	"github.com/fdg312/nutriplan/internal/reports"
	"github.com/fdg312/nutriplan/internal/telemetry"
)

var (
	ErrNoPlan            = errors.New("no nutrition plan")
	ErrRemoteUnavailable = errors.New("remote service unavailable")
	ErrInvalidRequest    = errors.New("invalid request")
)

// GuestUserPrefix marks users without a server-side account. Their food log
// stays local.
const GuestUserPrefix = "guest"

func IsGuest(userID string) bool {
	return userID == "" || strings.HasPrefix(userID, GuestUserPrefix)
}

// Service composes the calculators, the plan store and the enrichment
// provider. Targets are always computed locally; the provider only supplies
// meal content and chat replies.
type Service struct {
	plans    *plans.Store
	foodLog  *foodlog.Store
	foods    *foods.Database
	provider enrichment.Provider
	reports  *reports.Generator
	now      func() time.Time
	newID    func() string
	logger   zerolog.Logger
}

func NewService(store *plans.Store, log *foodlog.Store, db *foods.Database, provider enrichment.Provider) *Service {
	return &Service{
		plans:    store,
		foodLog:  log,
		foods:    db,
		provider: provider,
		reports:  reports.NewGenerator(),
		now:      time.Now,
		newID:    uuid.NewString,
		logger:   logging.WithComponent("nutrition"),
	}
}

// computed is one run of the calculators for a profile.
type computed struct {
	result  metabolic.Result
	targets macros.DailyTargets
	micro   metabolic.Micronutrients
	diet    []foods.Tag
	foods   foods.Suggestions
}

func (s *Service) compute(profile metabolic.Profile, prefs plans.Preferences) computed {
	res := metabolic.Calculate(profile)

	targets := macros.ForStrategy(res.Data.GoalCalories, string(res.Strategy))
	targets.FiberG = metabolic.FiberGrams(targets.Calories)
	targets.WaterLiters = metabolic.WaterLiters(res.Profile.WeightKg)

	diet := foods.TagsForPreferences(append(append([]string(nil), prefs.DietaryPreferences...), prefs.Intolerances...)...)
	return computed{
		result:  res,
		targets: targets,
		micro:   metabolic.MicronutrientTargets(res.Gender, res.Profile.Age),
		diet:    diet,
		foods:   s.foods.SuggestForTargets(targets, diet),
	}
}

func (c computed) apply(p *plans.Plan) {
	profile := c.result.Profile
	data := c.result.Data
	micro := c.micro
	suggestions := c.foods

	p.Profile = &profile
	p.MetabolicData = &data
	p.MicronutrientTargets = &micro
	p.FoodSuggestions = &suggestions
	p.FitnessStrategy = string(c.result.Strategy)
	p.GoalType = c.result.Strategy.GoalType()
	p.DailyTargets = c.targets
	p.SetCalories(data.GoalCalories)
	p.SchemaVersion = plans.CurrentSchemaVersion
}

// GeneratePlan computes a new plan, supersedes the user's active plan,
// snapshots the targets and selects the new plan.
func (s *Service) GeneratePlan(ctx context.Context, userID string, req GeneratePlanRequest) (PlanResponse, error) {
	if err := req.Validate(); err != nil {
		return PlanResponse{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	profile := req.Profile
	if strings.TrimSpace(req.Goal) != "" {
		profile.FitnessStrategy = req.Goal
	}
	goal := req.Goal
	if goal == "" {
		goal = profile.FitnessStrategy
	}
	prefs := plans.Preferences{
		Goal:               goal,
		DietaryPreferences: req.DietaryPreferences,
		Intolerances:       req.Intolerances,
		CuisinePreferences: req.CuisinePreferences,
	}

	c := s.compute(profile, prefs)
	now := s.now().UTC()
	p := plans.Plan{
		ID:          s.newID(),
		UserID:      userID,
		PlanName:    req.PlanName,
		Status:      plans.StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
		Preferences: prefs,
	}
	c.apply(&p)
	if p.PlanName == "" {
		p.PlanName = fmt.Sprintf("%s plan", c.result.Strategy.Label())
	}

	if err := s.plans.ReplaceActive(ctx, p); err != nil {
		return PlanResponse{}, fmt.Errorf("save plan: %w", err)
	}
	snap := plans.SnapshotOf(p, s.newID(), "Initial plan. "+p.MetabolicData.GoalAdjustmentReason, now)
	// The plan is already the user's active plan; a missing snapshot falls
	// back to the plan's own targets and a missing selection to the newest plan.
	if err := s.plans.AppendHistoricalTarget(ctx, snap); err != nil {
		s.logger.Warn().Err(err).Str("plan_id", p.ID).Msg("initial historical target not saved")
	}
	if err := s.plans.SetSelectedPlanID(ctx, userID, p.ID); err != nil {
		s.logger.Warn().Err(err).Str("plan_id", p.ID).Msg("plan selection not saved")
	}

	mealPlan, source := s.mealPlanFor(ctx, p, now.Format(foodlog.DateLayout))
	telemetry.PlansGenerated.WithLabelValues(source).Inc()

	s.logger.Info().
		Str("user_id", userID).
		Str("plan_id", p.ID).
		Str("strategy", p.FitnessStrategy).
		Int("calories", p.DailyTargets.Calories).
		Str("meal_plan_source", source).
		Msg("nutrition plan generated")

	return PlanResponse{
		Plan:             p,
		EffectiveTargets: p.DailyTargets,
		TargetSource:     plans.SourcePlan,
		MealPlan:         &mealPlan,
		MealPlanSource:   source,
	}, nil
}

// ReevaluatePlan recomputes the targets of the user's current plan in place.
// DailyTargets.Calories and both metabolic goal fields always change
// together. The recompute runs inside the store's update, so a plan deleted
// or superseded meanwhile is never written back as active.
func (s *Service) ReevaluatePlan(ctx context.Context, userID string, req ReevaluateRequest) (PlanResponse, error) {
	current, err := s.resolvePlan(ctx, userID, req.PlanID)
	if err != nil {
		return PlanResponse{}, err
	}

	now := s.now().UTC()
	var prev int
	p, err := s.plans.UpdatePlan(ctx, current.ID, func(p *plans.Plan) error {
		if p.UserID != userID {
			return plans.ErrPlanNotFound
		}
		var profile metabolic.Profile
		switch {
		case req.Profile != nil:
			profile = *req.Profile
		case p.Profile != nil:
			profile = *p.Profile
		}
		if profile.FitnessStrategy == "" {
			profile.FitnessStrategy = p.FitnessStrategy
		}

		prev = p.DailyTargets.Calories
		s.compute(profile, p.Preferences).apply(p)
		p.UpdatedAt = now
		return nil
	})
	if err != nil {
		if errors.Is(err, plans.ErrPlanNotFound) {
			return PlanResponse{}, err
		}
		return PlanResponse{}, fmt.Errorf("save plan: %w", err)
	}

	reason := fmt.Sprintf("Re-evaluated: %d -> %d kcal. %s", prev, p.DailyTargets.Calories, p.MetabolicData.GoalAdjustmentReason)
	snap := plans.SnapshotOf(p, s.newID(), reason, now)
	if err := s.plans.AppendHistoricalTarget(ctx, snap); err != nil {
		return PlanResponse{}, fmt.Errorf("save historical target: %w", err)
	}

	if !IsGuest(userID) {
		notice := enrichment.ReevaluationNotice{
			UserID:        userID,
			PlanID:        p.ID,
			DailyTargets:  p.DailyTargets,
			MetabolicData: p.MetabolicData,
		}
		if err := s.provider.NotifyReevaluation(ctx, notice); err != nil {
			s.logger.Warn().Err(err).Str("plan_id", p.ID).Msg("re-evaluation notice not delivered")
		}
	}

	s.logger.Info().
		Str("user_id", userID).
		Str("plan_id", p.ID).
		Int("previous_calories", prev).
		Int("calories", p.DailyTargets.Calories).
		Msg("nutrition plan re-evaluated")

	return PlanResponse{
		Plan:             p,
		EffectiveTargets: p.DailyTargets,
		TargetSource:     plans.SourcePlan,
	}, nil
}

// resolvePlan returns the named plan when it belongs to the user, or the
// latest plan when planID is empty.
func (s *Service) resolvePlan(ctx context.Context, userID, planID string) (plans.Plan, error) {
	if planID != "" {
		return s.ownedPlan(ctx, userID, planID)
	}
	p, err := s.plans.LatestPlan(ctx, userID)
	if err != nil {
		return plans.Plan{}, err
	}
	if p == nil {
		return plans.Plan{}, ErrNoPlan
	}
	return *p, nil
}

func (s *Service) ownedPlan(ctx context.Context, userID, planID string) (plans.Plan, error) {
	p, err := s.plans.Get(ctx, planID)
	if err != nil {
		return plans.Plan{}, err
	}
	if p.UserID != userID {
		return plans.Plan{}, plans.ErrPlanNotFound
	}
	return p, nil
}

// GetLatestPlan returns the plan to display and its effective targets. The
// newest historical snapshot wins over the plan's own targets.
func (s *Service) GetLatestPlan(ctx context.Context, userID string) (PlanResponse, error) {
	p, err := s.resolvePlan(ctx, userID, "")
	if err != nil {
		return PlanResponse{}, err
	}
	return s.withEffectiveTargets(ctx, p)
}

func (s *Service) withEffectiveTargets(ctx context.Context, p plans.Plan) (PlanResponse, error) {
	history, err := s.plans.HistoricalTargets(ctx, p.ID)
	if err != nil {
		return PlanResponse{}, err
	}
	targets, source := plans.EffectiveTargets(p, history)
	if source == plans.SourceSnapshot && targets.Calories != p.DailyTargets.Calories {
		s.logger.Debug().
			Str("plan_id", p.ID).
			Int("plan_calories", p.DailyTargets.Calories).
			Int("snapshot_calories", targets.Calories).
			Msg("historical snapshot overrides plan targets")
	}
	return PlanResponse{Plan: p, EffectiveTargets: targets, TargetSource: source}, nil
}

// GetHistoricalTargets lists the plan's snapshots newest first. A plan
// without snapshots gets a synthesized one that is not persisted.
func (s *Service) GetHistoricalTargets(ctx context.Context, userID, planID string) ([]plans.HistoricalTarget, error) {
	p, err := s.ownedPlan(ctx, userID, planID)
	if err != nil {
		return nil, err
	}
	history, err := s.plans.HistoricalTargets(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return []plans.HistoricalTarget{plans.SynthesizedTarget(p)}, nil
	}
	return history, nil
}

func (s *Service) ListPlans(ctx context.Context, userID string) ([]plans.Plan, error) {
	return s.plans.ListForUser(ctx, userID)
}

func (s *Service) SelectPlan(ctx context.Context, userID, planID string) (PlanResponse, error) {
	p, err := s.ownedPlan(ctx, userID, planID)
	if err != nil {
		return PlanResponse{}, err
	}
	if err := s.plans.SetSelectedPlanID(ctx, userID, p.ID); err != nil {
		return PlanResponse{}, fmt.Errorf("select plan: %w", err)
	}
	return s.withEffectiveTargets(ctx, p)
}

// DeletePlan removes one of the user's plans. Deleting the legacy seeded
// plan only records that it was dismissed.
func (s *Service) DeletePlan(ctx context.Context, userID, planID string) error {
	if planID == plans.LegacySeededPlanID {
		return s.plans.SetDeletedDefaultPlan(ctx, true)
	}
	if _, err := s.ownedPlan(ctx, userID, planID); err != nil {
		return err
	}
	if _, err := s.plans.Delete(ctx, planID); err != nil {
		return err
	}
	s.logger.Info().Str("user_id", userID).Str("plan_id", planID).Msg("nutrition plan deleted")
	return nil
}

// GenerateDailyMealPlan asks the remote service for the day's meals and
// falls back to the local template plan on any failure.
func (s *Service) GenerateDailyMealPlan(ctx context.Context, userID, date string) (MealPlanResponse, error) {
	if date == "" {
		date = s.now().UTC().Format(foodlog.DateLayout)
	}
	if _, err := time.Parse(foodlog.DateLayout, date); err != nil {
		return MealPlanResponse{}, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidRequest)
	}

	resp, err := s.GetLatestPlan(ctx, userID)
	if err != nil {
		return MealPlanResponse{}, err
	}
	p := resp.Plan
	p.DailyTargets = resp.EffectiveTargets

	mealPlan, source := s.mealPlanFor(ctx, p, date)
	return MealPlanResponse{MealPlan: mealPlan, Source: source}, nil
}

func (s *Service) mealPlanFor(ctx context.Context, p plans.Plan, date string) (enrichment.MealPlan, string) {
	prefs := append(append([]string(nil), p.Preferences.DietaryPreferences...), p.Preferences.Intolerances...)
	req := enrichment.MealPlanRequest{
		UserID:             p.UserID,
		PlanID:             p.ID,
		Date:               date,
		Targets:            p.DailyTargets,
		DietaryPreferences: prefs,
	}

	mp, err := s.provider.DailyMealPlan(ctx, req)
	if err == nil {
		return mp, SourceRemote
	}

	s.logger.Warn().Err(err).Str("plan_id", p.ID).Msg("meal plan served locally")
	telemetry.EnrichmentFallbacks.WithLabelValues("meal_plan").Inc()

	local := enrichment.LocalMealPlan(s.foods, p.DailyTargets, foods.TagsForPreferences(prefs...))
	local.Date = date
	return local, SourceLocal
}

// GenerateRecipe has no local equivalent. A rejected request surfaces as
// *enrichment.RemoteRejectedError; an unreachable service as
// ErrRemoteUnavailable.
func (s *Service) GenerateRecipe(ctx context.Context, userID string, req enrichment.RecipeRequest) (enrichment.Recipe, error) {
	if req.Targets == (enrichment.RecipeTargets{}) {
		if p, err := s.plans.LatestPlan(ctx, userID); err == nil && p != nil {
			req.Targets = perMealTargets(p.DailyTargets)
		}
	}

	recipe, err := s.provider.Recipe(ctx, req)
	if errors.Is(err, enrichment.ErrUnavailable) {
		return enrichment.Recipe{}, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	return recipe, err
}

// CustomizeMeal swaps one ingredient of a meal through the provider. When the
// request names a meal slot of one of the user's plans the new description
// is saved there too; that save is best-effort and reported as Saved.
func (s *Service) CustomizeMeal(ctx context.Context, userID string, req CustomizeMealRequest) (CustomizeMealResponse, error) {
	if err := req.Validate(); err != nil {
		return CustomizeMealResponse{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	var plan *plans.Plan
	if req.PlanID != "" {
		p, err := s.ownedPlan(ctx, userID, req.PlanID)
		if err != nil {
			return CustomizeMealResponse{}, err
		}
		plan = &p
	} else if p, err := s.plans.LatestPlan(ctx, userID); err == nil && p != nil {
		plan = p
	}

	var target enrichment.MealMacros
	switch {
	case req.TargetMacros != nil:
		target = *req.TargetMacros
	case plan != nil:
		per := perMealTargets(plan.DailyTargets)
		target = enrichment.MealMacros{
			Calories:     float64(per.Calories),
			ProteinGrams: float64(per.Protein),
			CarbsGrams:   float64(per.Carbs),
			FatGrams:     float64(per.Fat),
		}
	}

	meal, err := s.provider.CustomizeMeal(ctx, enrichment.CustomizeMealRequest{
		OriginalMeal:        req.OriginalMeal,
		TargetMacros:        target,
		IngredientToReplace: req.IngredientToReplace,
		NewIngredient:       req.NewIngredient,
	})
	if errors.Is(err, enrichment.ErrUnavailable) {
		return CustomizeMealResponse{}, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	if err != nil {
		return CustomizeMealResponse{}, err
	}

	resp := CustomizeMealResponse{Meal: meal}
	if plan == nil || strings.TrimSpace(req.MealType) == "" || IsGuest(userID) {
		return resp, nil
	}
	update := enrichment.MealUpdate{
		PlanID:             plan.ID,
		MealTimeSlot:       req.MealType,
		NewMealDescription: meal.Description,
	}
	if err := s.provider.UpdateMeal(ctx, update); err != nil {
		s.logger.Warn().Err(err).Str("plan_id", plan.ID).Str("meal_type", req.MealType).Msg("customized meal not saved")
		return resp, nil
	}
	resp.Saved = true
	return resp, nil
}

func perMealTargets(t macros.DailyTargets) enrichment.RecipeTargets {
	per := func(v int) int { return int(math.Round(float64(v) / foods.MealsPerDay)) }
	return enrichment.RecipeTargets{
		Calories: per(t.Calories),
		Protein:  per(t.ProteinG),
		Carbs:    per(t.CarbsG),
		Fat:      per(t.FatG),
	}
}

// LogFoodEntry stores the entry locally and then syncs it to the remote
// service on a best-effort basis. Guests are never synced.
func (s *Service) LogFoodEntry(ctx context.Context, userID string, req LogFoodRequest) (LogFoodResponse, error) {
	entry, err := s.foodLog.Append(ctx, userID, req.entry())
	if err != nil {
		if errors.Is(err, foodlog.ErrMissingName) || errors.Is(err, foodlog.ErrNegativeMacro) {
			return LogFoodResponse{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		return LogFoodResponse{}, err
	}

	if IsGuest(userID) {
		s.logger.Debug().Str("user_id", userID).Msg("guest user, food entry not synced")
		return LogFoodResponse{Entry: entry}, nil
	}
	if err := s.provider.SyncFoodEntry(ctx, userID, entry); err != nil {
		s.logger.Warn().Err(err).Str("entry_id", entry.ID).Msg("food entry sync failed")
		return LogFoodResponse{Entry: entry}, nil
	}
	return LogFoodResponse{Entry: entry, Synced: true}, nil
}

// FoodLog returns a day of entries with totals and, when the user has a
// plan, what is left of the effective targets.
func (s *Service) FoodLog(ctx context.Context, userID, date string) (FoodLogResponse, error) {
	if date == "" {
		date = s.now().UTC().Format(foodlog.DateLayout)
	}
	entries, err := s.foodLog.List(ctx, userID, date)
	if err != nil {
		if errors.Is(err, foodlog.ErrInvalidDate) {
			return FoodLogResponse{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		return FoodLogResponse{}, err
	}
	resp := FoodLogResponse{Date: date, Entries: entries, Totals: foodlog.Sum(entries)}

	latest, err := s.GetLatestPlan(ctx, userID)
	switch {
	case err == nil:
		t := latest.EffectiveTargets
		resp.Remaining = &macros.DailyTargets{
			Calories: t.Calories - int(math.Round(resp.Totals.Calories)),
			ProteinG: t.ProteinG - int(math.Round(resp.Totals.ProteinG)),
			CarbsG:   t.CarbsG - int(math.Round(resp.Totals.CarbsG)),
			FatG:     t.FatG - int(math.Round(resp.Totals.FatG)),
		}
	case !errors.Is(err, ErrNoPlan):
		return FoodLogResponse{}, err
	}
	return resp, nil
}

// ChatAdjust forwards the message to the nutrition assistant. When it
// cannot answer, a local reply describing the current targets is returned.
func (s *Service) ChatAdjust(ctx context.Context, userID, message string) (enrichment.ChatReply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return enrichment.ChatReply{}, fmt.Errorf("%w: message is required", ErrInvalidRequest)
	}

	req := enrichment.ChatRequest{UserID: userID, Message: message}
	if latest, err := s.GetLatestPlan(ctx, userID); err == nil {
		req.PlanID = latest.Plan.ID
		req.Targets = latest.EffectiveTargets
	}

	reply, err := s.provider.ChatAdjust(ctx, req)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("chat served locally")
		telemetry.EnrichmentFallbacks.WithLabelValues("chat").Inc()
		return enrichment.LocalChatReply(req), nil
	}
	return reply, nil
}

// ExportPlan renders one of the user's plans as PDF or CSV.
func (s *Service) ExportPlan(ctx context.Context, userID, planID, format string) ([]byte, error) {
	p, err := s.ownedPlan(ctx, userID, planID)
	if err != nil {
		return nil, err
	}
	history, err := s.plans.HistoricalTargets(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	effective, source := plans.EffectiveTargets(p, history)
	if len(history) == 0 {
		history = []plans.HistoricalTarget{plans.SynthesizedTarget(p)}
	}

	return s.reports.Generate(format, reports.PlanReport{
		Plan:        p,
		Effective:   effective,
		Source:      source,
		History:     history,
		GeneratedAt: s.now().UTC(),
	})
}
