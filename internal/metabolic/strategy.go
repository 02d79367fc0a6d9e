package metabolic

import "strings"

// Strategy is the user's fitness goal category.
type Strategy string

const (
	Bulk        Strategy = "bulk"
	Cut         Strategy = "cut"
	Maintenance Strategy = "maintenance"
	Recomp      Strategy = "recomp"
	Maingaining Strategy = "maingaining"
	FatLoss     Strategy = "fat_loss"
	MuscleGain  Strategy = "muscle_gain"
)

var strategyAliases = map[string]Strategy{
	"weight_loss": FatLoss,
	"weight_gain": MuscleGain,
	"maintain":    Maintenance,
	"lose_weight": FatLoss,
	"gain_muscle": MuscleGain,
}

// Strategies lists every canonical strategy.
var Strategies = []Strategy{Bulk, Cut, Maintenance, Recomp, Maingaining, FatLoss, MuscleGain}

// ResolveStrategy maps raw input (any case, dashes or spaces) to a canonical
// strategy. ok is false when the input was unknown and Maintenance was used.
func ResolveStrategy(raw string) (s Strategy, ok bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)

	for _, c := range Strategies {
		if string(c) == key {
			return c, true
		}
	}
	if alias, found := strategyAliases[key]; found {
		return alias, true
	}
	return Maintenance, false
}

// GoalType is the coarse goal label stored with a plan for older clients.
func (s Strategy) GoalType() string {
	switch s {
	case Cut, FatLoss:
		return "weight_loss"
	case Bulk, Maingaining, MuscleGain:
		return "muscle_gain"
	case Recomp:
		return "recomp"
	default:
		return "maintenance"
	}
}

// Label is the display name used in adjustment reasons.
func (s Strategy) Label() string {
	switch s {
	case Bulk:
		return "Bulk"
	case Cut:
		return "Cut"
	case Recomp:
		return "Recomp"
	case Maingaining:
		return "Maingaining"
	case FatLoss:
		return "Fat loss"
	case MuscleGain:
		return "Muscle gain"
	default:
		return "Maintenance"
	}
}
