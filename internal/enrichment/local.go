package enrichment

import (
	_ "embed"
	"fmt"
	"math"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/fdg312/nutriplan/internal/foods"
	"github.com/fdg312/nutriplan/internal/macros"
)

//go:embed meal_templates.yaml
var templatesYAML []byte

const (
	MethodMathematical = "mathematical"
	ProviderNone       = "none"
)

type mealShare struct {
	MealType string  `yaml:"meal_type"`
	Calories float64 `yaml:"calories"`
	Protein  float64 `yaml:"protein"`
	Carbs    float64 `yaml:"carbs"`
	Fat      float64 `yaml:"fat"`
}

type mealTemplate struct {
	Name         string   `yaml:"name"`
	PrepTime     int      `yaml:"prep_time"`
	CookTime     int      `yaml:"cook_time"`
	Ingredients  []string `yaml:"ingredients"`
	Instructions []string `yaml:"instructions"`
}

type templateBook struct {
	Distribution []mealShare                        `yaml:"distribution"`
	Templates    map[string]map[string]mealTemplate `yaml:"templates"`
}

var (
	bookOnce sync.Once
	book     templateBook
)

func templates() templateBook {
	bookOnce.Do(func() {
		if err := yaml.Unmarshal(templatesYAML, &book); err != nil {
			panic(fmt.Sprintf("enrichment: invalid embedded meal templates: %v", err))
		}
	})
	return book
}

// dietCategory picks the template column. Vegan wins over vegetarian.
func dietCategory(diet []foods.Tag) string {
	category := "standard"
	for _, t := range diet {
		switch t {
		case foods.Vegan:
			return "vegan"
		case foods.Vegetarian:
			category = "vegetarian"
		}
	}
	return category
}

// LocalMealPlan splits the daily targets over breakfast, lunch, dinner and
// a snack using fixed templates, and attaches the smallest portion per
// macro that satisfies the diet.
func LocalMealPlan(db *foods.Database, t macros.DailyTargets, diet []foods.Tag) MealPlan {
	b := templates()
	category := dietCategory(diet)

	meals := make([]Meal, 0, len(b.Distribution))
	for _, share := range b.Distribution {
		tpl := b.Templates[share.MealType][category]
		m := Meal{
			MealType:     share.MealType,
			RecipeName:   tpl.Name,
			PrepTime:     tpl.PrepTime,
			CookTime:     tpl.CookTime,
			Servings:     1,
			Ingredients:  append([]string(nil), tpl.Ingredients...),
			Instructions: append([]string(nil), tpl.Instructions...),
			Macros: MealMacros{
				Calories:     math.Round(float64(t.Calories) * share.Calories),
				ProteinGrams: math.Round(float64(t.ProteinG) * share.Protein),
				CarbsGrams:   math.Round(float64(t.CarbsG) * share.Carbs),
				FatGrams:     math.Round(float64(t.FatG) * share.Fat),
			},
		}
		if db != nil {
			m.Portions = portions(db, m.Macros, diet)
		}
		meals = append(meals, m)
	}

	return MealPlan{
		Meals:      meals,
		Method:     MethodMathematical,
		AIProvider: ProviderNone,
	}
}

func portions(db *foods.Database, mm MealMacros, diet []foods.Tag) []foods.ServingSuggestion {
	var out []foods.ServingSuggestion
	for _, want := range []struct {
		macro foods.Macro
		grams float64
	}{
		{foods.Protein, mm.ProteinGrams},
		{foods.Carbs, mm.CarbsGrams},
		{foods.Fat, mm.FatGrams},
	} {
		if want.grams <= 0 {
			continue
		}
		s, err := db.SolveServings(want.macro, want.grams, foods.Options{Diet: diet, MaxResults: 1})
		if err != nil || len(s) == 0 {
			continue
		}
		out = append(out, s[0])
	}
	return out
}

// LocalChatReply answers without the remote service.
func LocalChatReply(req ChatRequest) ChatReply {
	t := req.Targets
	text := "I can't reach the nutrition assistant right now."
	if t.Calories > 0 {
		text = fmt.Sprintf(
			"I can't reach the nutrition assistant right now. Your current targets are %d kcal, %d g protein, %d g carbs and %d g fat per day. "+
				"Re-evaluate your plan after updating your profile to change them.",
			t.Calories, t.ProteinG, t.CarbsG, t.FatG,
		)
	}
	return ChatReply{Response: text, Source: "local"}
}
