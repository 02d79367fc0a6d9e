package foods

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed foods.yaml
var embeddedFoods []byte

// Database is an immutable, validated food table.
type Database struct {
	items []FoodItem
	byKey map[string]int
}

var (
	defaultOnce sync.Once
	defaultDB   *Database
	defaultErr  error
)

// Default returns the embedded food table. It panics if the embedded data
// is invalid, which only a broken build can cause.
func Default() *Database {
	defaultOnce.Do(func() {
		defaultDB, defaultErr = Parse(embeddedFoods)
	})
	if defaultErr != nil {
		panic(fmt.Sprintf("foods: embedded table: %v", defaultErr))
	}
	return defaultDB
}

// Parse decodes and validates a YAML food table.
func Parse(data []byte) (*Database, error) {
	var items []FoodItem
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode foods: %w", err)
	}
	return New(items)
}

// New validates items and builds a Database. Vegan items are also
// treated as vegetarian.
func New(items []FoodItem) (*Database, error) {
	db := &Database{
		items: make([]FoodItem, 0, len(items)),
		byKey: make(map[string]int, len(items)),
	}
	for _, it := range items {
		if it.Key == "" {
			return nil, fmt.Errorf("food without key")
		}
		if _, dup := db.byKey[it.Key]; dup {
			return nil, fmt.Errorf("duplicate food key %q", it.Key)
		}
		switch it.Category {
		case Protein, Carbs, Fat:
		default:
			return nil, fmt.Errorf("food %q: unknown category %q", it.Key, it.Category)
		}
		if it.Per100g.Protein < 0 || it.Per100g.Carbs < 0 || it.Per100g.Fat < 0 || it.Per100g.Calories < 0 {
			return nil, fmt.Errorf("food %q: negative composition", it.Key)
		}
		if it.Serving.Grams <= 0 {
			return nil, fmt.Errorf("food %q: serving grams must be positive", it.Key)
		}

		it.tagSet = make(map[Tag]struct{}, len(it.Tags)+1)
		for _, t := range it.Tags {
			it.tagSet[t] = struct{}{}
		}
		if _, vegan := it.tagSet[Vegan]; vegan {
			if _, ok := it.tagSet[Vegetarian]; !ok {
				it.tagSet[Vegetarian] = struct{}{}
				it.Tags = append(it.Tags, Vegetarian)
			}
		}

		db.byKey[it.Key] = len(db.items)
		db.items = append(db.items, it)
	}
	return db, nil
}

func (db *Database) Len() int {
	return len(db.items)
}

func (db *Database) Get(key string) (FoodItem, bool) {
	i, ok := db.byKey[key]
	if !ok {
		return FoodItem{}, false
	}
	return db.items[i], true
}

// ByCategory returns items of category c in table order.
func (db *Database) ByCategory(c Macro) []FoodItem {
	var out []FoodItem
	for _, it := range db.items {
		if it.Category == c {
			out = append(out, it)
		}
	}
	return out
}
