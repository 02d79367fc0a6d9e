package foods

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/fdg312/nutriplan/internal/macros"
)

const DefaultMaxResults = 5

var (
	ErrUnknownMacro  = errors.New("unknown macro")
	ErrInvalidTarget = errors.New("target grams must be positive")
)

// Options narrows a serving search.
type Options struct {
	Diet       []Tag
	MaxResults int
}

// SolveServings finds foods of the macro's category that can supply
// targetGrams of that macro, smallest portion first. Foods with none of the
// macro are left out.
func (db *Database) SolveServings(macro Macro, targetGrams float64, opts Options) ([]ServingSuggestion, error) {
	switch macro {
	case Protein, Carbs, Fat:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMacro, macro)
	}
	if targetGrams <= 0 || math.IsNaN(targetGrams) || math.IsInf(targetGrams, 0) {
		return nil, ErrInvalidTarget
	}
	limit := opts.MaxResults
	if limit <= 0 {
		limit = DefaultMaxResults
	}

	var out []ServingSuggestion
	for _, it := range db.ByCategory(macro) {
		if !it.Satisfies(opts.Diet...) {
			continue
		}
		per100 := it.Per100g.of(macro)
		if per100 <= 0 {
			continue
		}

		amount := targetGrams / per100 * 100
		factor := amount / 100
		out = append(out, ServingSuggestion{
			FoodKey:       it.Key,
			FoodName:      it.Name,
			AmountNeededG: round1(amount),
			Description:   describeServing(amount, it.Serving),
			Protein:       round1(it.Per100g.Protein * factor),
			Carbs:         round1(it.Per100g.Carbs * factor),
			Fat:           round1(it.Per100g.Fat * factor),
			Calories:      math.Round(it.Per100g.Calories * factor),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AmountNeededG < out[j].AmountNeededG
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MealsPerDay splits daily targets when suggesting per-meal portions.
const MealsPerDay = 3

// SuggestForTargets returns per-meal portions for each macro of the daily
// targets, three options each.
func (db *Database) SuggestForTargets(t macros.DailyTargets, diet []Tag) Suggestions {
	pick := func(m Macro, daily int) []ServingSuggestion {
		if daily <= 0 {
			return nil
		}
		s, err := db.SolveServings(m, float64(daily)/MealsPerDay, Options{Diet: diet, MaxResults: 3})
		if err != nil {
			return nil
		}
		return s
	}
	return Suggestions{
		Protein: pick(Protein, t.ProteinG),
		Carbs:   pick(Carbs, t.CarbsG),
		Fat:     pick(Fat, t.FatG),
	}
}

// describeServing expresses amount relative to the common serving when it
// is between half and double of it, otherwise in grams.
func describeServing(amount float64, s Serving) string {
	ratio := amount / s.Grams
	if ratio >= 0.5 && ratio <= 2 {
		return fmt.Sprintf("%s × %s (%.0f g)", quarterFraction(ratio), s.Label, amount)
	}
	return fmt.Sprintf("%.0f g (about %.1f servings of %s)", amount, ratio, s.Label)
}

// quarterFraction renders v rounded to the nearest quarter, e.g. "1 1/2".
func quarterFraction(v float64) string {
	q := int(math.Round(v * 4))
	whole, rest := q/4, q%4
	frac := [...]string{"", "1/4", "1/2", "3/4"}[rest]
	switch {
	case whole == 0 && frac == "":
		return "0"
	case whole == 0:
		return frac
	case frac == "":
		return fmt.Sprintf("%d", whole)
	default:
		return fmt.Sprintf("%d %s", whole, frac)
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
