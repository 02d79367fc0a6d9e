package foods

import "strings"

// Macro names a macronutrient and doubles as a food category.
type Macro string

const (
	Protein Macro = "protein"
	Carbs   Macro = "carbs"
	Fat     Macro = "fat"
)

func ParseMacro(raw string) (Macro, bool) {
	switch Macro(strings.ToLower(strings.TrimSpace(raw))) {
	case Protein:
		return Protein, true
	case Carbs, "carb", "carbohydrates":
		return Carbs, true
	case Fat, "fats":
		return Fat, true
	}
	return "", false
}

// Tag is a dietary property a food satisfies.
type Tag string

const (
	Vegan      Tag = "vegan"
	Vegetarian Tag = "vegetarian"
	GlutenFree Tag = "gluten_free"
	DairyFree  Tag = "dairy_free"
)

// TagsForPreferences maps free-form dietary preferences and intolerances to
// required tags. Unrecognised entries are ignored.
func TagsForPreferences(prefs ...string) []Tag {
	seen := make(map[Tag]bool)
	var out []Tag
	add := func(t Tag) {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	for _, p := range prefs {
		switch strings.ToLower(strings.TrimSpace(p)) {
		case "vegan":
			add(Vegan)
		case "vegetarian", "plant_based":
			add(Vegetarian)
		case "gluten_free", "gluten", "celiac":
			add(GlutenFree)
		case "dairy_free", "dairy", "lactose", "lactose_free":
			add(DairyFree)
		}
	}
	return out
}

type Per100g struct {
	Protein  float64 `yaml:"protein" json:"protein"`
	Carbs    float64 `yaml:"carbs" json:"carbs"`
	Fat      float64 `yaml:"fat" json:"fat"`
	Calories float64 `yaml:"calories" json:"calories"`
}

func (p Per100g) of(m Macro) float64 {
	switch m {
	case Protein:
		return p.Protein
	case Carbs:
		return p.Carbs
	case Fat:
		return p.Fat
	}
	return 0
}

type Serving struct {
	Grams float64 `yaml:"grams" json:"grams"`
	Label string  `yaml:"label" json:"label"`
}

// FoodItem is read-only reference data.
type FoodItem struct {
	Key      string  `yaml:"key" json:"key"`
	Name     string  `yaml:"name" json:"name"`
	Category Macro   `yaml:"category" json:"category"`
	Per100g  Per100g `yaml:"per_100g" json:"per_100g"`
	Serving  Serving `yaml:"serving" json:"serving"`
	Tags     []Tag   `yaml:"tags" json:"tags"`

	tagSet map[Tag]struct{}
}

// Satisfies reports whether the item carries every required tag.
func (f *FoodItem) Satisfies(required ...Tag) bool {
	for _, t := range required {
		if _, ok := f.tagSet[t]; !ok {
			return false
		}
	}
	return true
}

// ServingSuggestion is one ranked answer from SolveServings.
type ServingSuggestion struct {
	FoodKey       string  `json:"food_key"`
	FoodName      string  `json:"food_name"`
	AmountNeededG float64 `json:"amount_needed_g"`
	Description   string  `json:"description"`
	Protein       float64 `json:"protein_g"`
	Carbs         float64 `json:"carbs_g"`
	Fat           float64 `json:"fat_g"`
	Calories      float64 `json:"calories"`
}

// Suggestions groups per-macro suggestions for a plan.
type Suggestions struct {
	Protein []ServingSuggestion `json:"protein"`
	Carbs   []ServingSuggestion `json:"carbs"`
	Fat     []ServingSuggestion `json:"fat"`
}
