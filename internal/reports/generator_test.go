package reports

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fdg312/nutriplan/internal/macros"
	"github.com/fdg312/nutriplan/internal/metabolic"
	"github.com/fdg312/nutriplan/internal/plans"
)

func sampleReport() PlanReport {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	p := plans.Plan{
		ID:              "p1",
		UserID:          "u1",
		PlanName:        "Summer cut",
		FitnessStrategy: "cut",
		Status:          plans.StatusActive,
		CreatedAt:       created,
		DailyTargets:    macros.DailyTargets{Calories: 2433, ProteinG: 213, CarbsG: 152, FatG: 108, FiberG: 24, WaterLiters: 2.8},
		MetabolicData: &metabolic.Data{
			BMR: 1828, TDEE: 2833, ActivityLevel: metabolic.ModeratelyActive, ActivityMultiplier: 1.55,
			GoalCalories: 2433, AdjustedCalories: 2433, GoalAdjustment: -400,
			GoalAdjustmentReason: "Cut: -400 kcal/day", CalculationMethod: metabolic.CalculationMethod,
		},
	}
	return PlanReport{
		Plan:      p,
		Effective: p.DailyTargets,
		Source:    plans.SourceSnapshot,
		History: []plans.HistoricalTarget{
			plans.SnapshotOf(p, "h2", "Re-evaluated, weight 78 kg", created.Add(48*time.Hour)),
			plans.SnapshotOf(p, "h1", "Initial plan", created),
		},
		GeneratedAt: created.Add(72 * time.Hour),
	}
}

func TestGeneratePDF(t *testing.T) {
	g := NewGenerator()
	data, err := g.Generate(FormatPDF, sampleReport())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
	assert.Greater(t, len(data), 500)
}

func TestGeneratePDFWithoutMetabolicData(t *testing.T) {
	r := sampleReport()
	r.Plan.MetabolicData = nil
	r.History = nil

	data, err := NewGenerator().Generate(FormatPDF, r)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
}

func TestGenerateCSV(t *testing.T) {
	data, err := NewGenerator().Generate(FormatCSV, sampleReport())
	require.NoError(t, err)

	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"start_date", "daily_calories", "protein_g", "carbs_g", "fat_g", "reasoning"}, rows[0])
	assert.Equal(t, []string{"2026-03-03", "2433", "213", "152", "108", "Re-evaluated, weight 78 kg"}, rows[1])
}

func TestGenerateUnsupportedFormat(t *testing.T) {
	_, err := NewGenerator().Generate("xlsx", sampleReport())
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleReport())
	assert.Equal(t, "1828 kcal", s.BMR)
	assert.Equal(t, "-400 kcal, Cut: -400 kcal/day", s.Adjustment)
	assert.Equal(t, 2, s.Snapshots)
	assert.Equal(t, 2433, s.CaloriesMin)
	assert.Equal(t, 2433, s.CaloriesMax)

	empty := Summarize(PlanReport{})
	assert.Equal(t, noData, empty.BMR)
	assert.Zero(t, empty.Snapshots)
}
