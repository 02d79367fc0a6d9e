package plans

import (
	"github.com/fdg312/nutriplan/internal/macros"
)

// TargetSource tells which record supplied the displayed targets.
type TargetSource string

const (
	SourcePlan     TargetSource = "plan"
	SourceSnapshot TargetSource = "historical_target"
)

// EffectiveTargets picks the targets to display. The most recent historical
// snapshot wins over the plan's own DailyTargets when one exists; fiber and
// water are not snapshotted and always come from the plan.
func EffectiveTargets(p Plan, newestFirst []HistoricalTarget) (macros.DailyTargets, TargetSource) {
	if len(newestFirst) == 0 || newestFirst[0].Synthesized {
		return p.DailyTargets, SourcePlan
	}
	t := newestFirst[0].Targets()
	t.FiberG = p.DailyTargets.FiberG
	t.WaterLiters = p.DailyTargets.WaterLiters
	return t, SourceSnapshot
}

// SynthesizedTarget is the read-time stand-in for a plan without snapshots.
// It is never persisted.
func SynthesizedTarget(p Plan) HistoricalTarget {
	h := SnapshotOf(p, "target-"+p.ID, "Generated plan targets.", p.CreatedAt)
	h.Synthesized = true
	return h
}
