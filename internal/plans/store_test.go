package plans

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fdg312/nutriplan/internal/macros"
	"github.com/fdg312/nutriplan/internal/metabolic"
	"github.com/fdg312/nutriplan/internal/storage/memory"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestStore() (*Store, *memory.MemoryStorage) {
	kv := memory.New()
	s := NewStore(kv)
	s.now = func() time.Time { return t0.Add(time.Hour) }
	return s, kv
}

func validPlan(id, userID string, created time.Time, calories int) Plan {
	return Plan{
		ID:              id,
		UserID:          userID,
		PlanName:        "Plan " + id,
		GoalType:        "weight_loss",
		FitnessStrategy: "cut",
		Status:          StatusActive,
		CreatedAt:       created,
		UpdatedAt:       created,
		Preferences:     Preferences{Goal: "cut"},
		DailyTargets: macros.DailyTargets{
			Calories: calories, ProteinG: 213, CarbsG: 152, FatG: 108, FiberG: 24,
		},
		MetabolicData: &metabolic.Data{
			BMR: 1828, TDEE: 2833, ActivityLevel: metabolic.ModeratelyActive, ActivityMultiplier: 1.55,
			GoalCalories: calories, AdjustedCalories: calories, GoalAdjustment: -400,
			CalculationMethod: metabolic.CalculationMethod,
		},
		SchemaVersion: CurrentSchemaVersion,
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()

	in := []Plan{
		validPlan("p1", "u1", t0, 2433),
		validPlan("p2", "u2", t0.Add(time.Minute), 2433),
	}
	in[0].Status = StatusArchived

	require.NoError(t, s.Save(ctx, in))
	out, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestLoadEmpty(t *testing.T) {
	s, _ := newTestStore()
	out, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestLoadPurgesWholeCollectionWhenAnyPlanStale(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Plan)
	}{
		{"missing metabolic data", func(p *Plan) { p.MetabolicData = nil }},
		{"legacy seeded id", func(p *Plan) { p.ID = LegacySeededPlanID }},
		{"diverged targets", func(p *Plan) { p.DailyTargets.Calories += 11 }},
		{"legacy constant", func(p *Plan) {
			p.SetCalories(1800)
			p.MetabolicData.CalculationMethod = "hardcoded"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s, kv := newTestStore()

			good := validPlan("good", "u1", t0, 2433)
			bad := validPlan("bad", "u2", t0, 2433)
			tt.mutate(&bad)
			require.NoError(t, s.Save(ctx, []Plan{good, bad}))
			require.NoError(t, kv.Put(ctx, HistoryKey("good"), []byte(`[]`)))

			out, err := s.Load(ctx)
			require.NoError(t, err)
			assert.Empty(t, out)

			_, found, _ := kv.Get(ctx, KeyPlans)
			assert.False(t, found, "plans blob should be deleted")
			_, found, _ = kv.Get(ctx, HistoryKey("good"))
			assert.False(t, found, "history of purged plans should be deleted")
		})
	}
}

func TestLegacyConstantWithCurrentMethodIsNotStale(t *testing.T) {
	p := validPlan("p", "u", t0, 1800)
	assert.Equal(t, NotStale, Staleness(p))

	p.SetCalories(1810)
	p.DailyTargets.Calories = 1800
	assert.Equal(t, NotStale, Staleness(p), "divergence of exactly 10 is tolerated")
}

func TestStalenessSchemaVersion(t *testing.T) {
	p := validPlan("p", "u", t0, 2433)
	p.SchemaVersion = 0
	assert.Equal(t, StaleSchemaVersion, Staleness(p))
}

func TestLoadPurgesUndecodableBlob(t *testing.T) {
	ctx := context.Background()
	s, kv := newTestStore()
	require.NoError(t, kv.Put(ctx, KeyPlans, []byte(`{"not":"an array"}`)))

	out, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, out)
	_, found, _ := kv.Get(ctx, KeyPlans)
	assert.False(t, found)
}

func TestLoadNormalizesLegacyShape(t *testing.T) {
	ctx := context.Background()
	s, kv := newTestStore()

	legacy := `[{
		"id": "p-legacy",
		"user_id": "u1",
		"name": "Old plan",
		"status": "active",
		"created_at": "2026-02-01T10:00:00Z",
		"preferences": {"goal": "bulk"},
		"profile": {"weight_kg": 80, "height_cm": 180, "age": 28, "gender": "male"},
		"daily_targets": {"daily_calories": 3233.4, "protein_grams": 202, "carbs_grams": 404.2, "fat_grams": 90},
		"metabolic_calculations": {"bmr": 1828, "tdee": 2833, "goal_calories": 3233, "calculation_method": "henry_oxford_v1"},
		"schema_version": 1
	}]`
	require.NoError(t, kv.Put(ctx, KeyPlans, []byte(legacy)))

	out, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, out, 1)

	p := out[0]
	assert.Equal(t, "Old plan", p.PlanName)
	assert.Equal(t, macros.DailyTargets{Calories: 3233, ProteinG: 202, CarbsG: 404, FatG: 90, FiberG: 32, WaterLiters: 2.8}, p.DailyTargets)
	require.NotNil(t, p.MetabolicData)
	assert.Equal(t, 3233, p.MetabolicData.GoalCalories)
	assert.Equal(t, 3233, p.MetabolicData.AdjustedCalories)
	assert.Equal(t, "bulk", p.FitnessStrategy)
	assert.Equal(t, "muscle_gain", p.GoalType)
	assert.Equal(t, CurrentSchemaVersion, p.SchemaVersion)
	require.NotNil(t, p.MicronutrientTargets)
	assert.Equal(t, 90, p.MicronutrientTargets.VitaminCMg)

	// migrated shape is written back once
	raw, _, _ := kv.Get(ctx, KeyPlans)
	var stored []map[string]any
	require.NoError(t, json.Unmarshal(raw, &stored))
	assert.Contains(t, stored[0], "metabolic_data")
	assert.NotContains(t, stored[0], "metabolic_calculations")
}

func TestBackfillMacrosFromCalories(t *testing.T) {
	ctx := context.Background()
	s, kv := newTestStore()
	legacy := `[{"id":"p","user_id":"u","status":"draft","fitness_strategy":"cut","schema_version":1,
		"daily_targets":{"calories":2433},
		"metabolic_data":{"goal_calories":2433,"adjusted_calories":2433,"calculation_method":"henry_oxford_v2"}}]`
	require.NoError(t, kv.Put(ctx, KeyPlans, []byte(legacy)))

	out, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 213, out[0].DailyTargets.ProteinG)
	assert.Equal(t, 152, out[0].DailyTargets.CarbsG)
	assert.Equal(t, 108, out[0].DailyTargets.FatG)
}

func TestReplaceActiveArchivesPrevious(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()

	require.NoError(t, s.ReplaceActive(ctx, validPlan("p1", "u1", t0, 2433)))
	require.NoError(t, s.ReplaceActive(ctx, validPlan("other", "u2", t0, 2433)))
	require.NoError(t, s.ReplaceActive(ctx, validPlan("p2", "u1", t0.Add(time.Minute), 2433)))

	list, err := s.ListForUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "p2", list[0].ID)
	assert.Equal(t, StatusActive, list[0].Status)
	assert.Equal(t, StatusArchived, list[1].Status)

	other, err := s.Get(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, other.Status)
}

type failingPut struct {
	*memory.MemoryStorage
	fail bool
}

func (f *failingPut) Put(ctx context.Context, key string, value []byte) error {
	if f.fail {
		return errors.New("disk full")
	}
	return f.MemoryStorage.Put(ctx, key, value)
}

func TestReplaceActiveAllOrNothing(t *testing.T) {
	ctx := context.Background()
	kv := &failingPut{MemoryStorage: memory.New()}
	s := NewStore(kv)

	require.NoError(t, s.ReplaceActive(ctx, validPlan("p1", "u1", t0, 2433)))

	kv.fail = true
	err := s.ReplaceActive(ctx, validPlan("p2", "u1", t0.Add(time.Minute), 2433))
	require.Error(t, err)

	kv.fail = false
	list, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "p1", list[0].ID)
	assert.Equal(t, StatusActive, list[0].Status)
}

func TestUpdatePlan(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()

	require.NoError(t, s.ReplaceActive(ctx, validPlan("p1", "u1", t0, 2433)))

	updated, err := s.UpdatePlan(ctx, "p1", func(p *Plan) error {
		p.SetCalories(2300)
		p.ID = "renamed"
		p.UserID = "u2"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "p1", updated.ID)
	assert.Equal(t, "u1", updated.UserID)

	stored, err := s.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2300, stored.DailyTargets.Calories)
	assert.Equal(t, StatusActive, stored.Status)

	errVeto := errors.New("veto")
	_, err = s.UpdatePlan(ctx, "p1", func(p *Plan) error {
		p.SetCalories(1)
		return errVeto
	})
	assert.ErrorIs(t, err, errVeto)
	stored, err = s.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2300, stored.DailyTargets.Calories)
}

func TestUpdatePlanAfterDelete(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()

	require.NoError(t, s.ReplaceActive(ctx, validPlan("p1", "u1", t0, 2433)))
	_, err := s.Delete(ctx, "p1")
	require.NoError(t, err)

	called := false
	_, err = s.UpdatePlan(ctx, "p1", func(p *Plan) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrPlanNotFound)
	assert.False(t, called)

	list, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAppendHistoricalTargetRequiresPlan(t *testing.T) {
	ctx := context.Background()
	s, kv := newTestStore()

	err := s.AppendHistoricalTarget(ctx, SnapshotOf(validPlan("gone", "u1", t0, 2433), "h1", "initial", t0))
	assert.ErrorIs(t, err, ErrPlanNotFound)
	_, found, _ := kv.Get(ctx, HistoryKey("gone"))
	assert.False(t, found)
}

func TestLoadEnforcesSingleActivePlan(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()

	older := validPlan("older", "u1", t0, 2433)
	newer := validPlan("newer", "u1", t0.Add(time.Hour), 2433)
	require.NoError(t, s.Save(ctx, []Plan{newer, older}))

	out, err := s.Load(ctx)
	require.NoError(t, err)
	byID := map[string]Plan{}
	for _, p := range out {
		byID[p.ID] = p
	}
	assert.Equal(t, StatusActive, byID["newer"].Status)
	assert.Equal(t, StatusArchived, byID["older"].Status)
}

func TestLatestPlanResolution(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()

	p, err := s.LatestPlan(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, p, "no default plan is fabricated")

	first := validPlan("first", "u1", t0, 2433)
	first.Status = StatusArchived
	second := validPlan("second", "u1", t0.Add(time.Hour), 2433)
	foreign := validPlan("foreign", "u2", t0.Add(2*time.Hour), 2433)
	require.NoError(t, s.Save(ctx, []Plan{first, second, foreign}))

	p, err = s.LatestPlan(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "second", p.ID, "most recent plan without selection")

	require.NoError(t, s.SetSelectedPlanID(ctx, "u1", "first"))
	p, err = s.LatestPlan(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "first", p.ID, "selection pointer wins")

	require.NoError(t, s.SetSelectedPlanID(ctx, "u1", "foreign"))
	p, err = s.LatestPlan(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "second", p.ID, "selection of another user's plan is ignored")

	require.NoError(t, s.SetSelectedPlanID(ctx, "u1", "missing"))
	p, err = s.LatestPlan(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "second", p.ID)
}

func TestDeleteClearsSelectionAndHistory(t *testing.T) {
	ctx := context.Background()
	s, kv := newTestStore()

	p := validPlan("p1", "u1", t0, 2433)
	require.NoError(t, s.ReplaceActive(ctx, p))
	require.NoError(t, s.SetSelectedPlanID(ctx, "u1", "p1"))
	require.NoError(t, s.AppendHistoricalTarget(ctx, SnapshotOf(p, "h1", "initial", t0)))

	removed, err := s.Delete(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", removed.ID)

	sel, err := s.SelectedPlanID(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, sel)
	_, found, _ := kv.Get(ctx, HistoryKey("p1"))
	assert.False(t, found)

	_, err = s.Delete(ctx, "p1")
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestDeletedDefaultPlanFlag(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()

	v, err := s.DeletedDefaultPlan(ctx)
	require.NoError(t, err)
	assert.False(t, v)

	require.NoError(t, s.SetDeletedDefaultPlan(ctx, true))
	v, err = s.DeletedDefaultPlan(ctx)
	require.NoError(t, err)
	assert.True(t, v)
}

func TestHistoricalTargetsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()
	p := validPlan("p1", "u1", t0, 2433)
	require.NoError(t, s.ReplaceActive(ctx, p))

	require.NoError(t, s.AppendHistoricalTarget(ctx, SnapshotOf(p, "h1", "initial", t0)))
	p.SetCalories(2500)
	require.NoError(t, s.AppendHistoricalTarget(ctx, SnapshotOf(p, "h2", "reevaluated", t0.Add(24*time.Hour))))

	list, err := s.HistoricalTargets(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "h2", list[0].ID)
	assert.Equal(t, 2500, list[0].DailyCalories)
	assert.Equal(t, "2026-03-02", list[0].StartDate)
}
