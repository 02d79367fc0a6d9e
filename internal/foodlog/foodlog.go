// Package foodlog keeps the per-user, per-day food entries. Each day is one
// append-only blob under nutrition_log_{userID}_{date}.
package foodlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fdg312/nutriplan/internal/storage"
)

const (
	keyPrefix  = "nutrition_log_"
	DateLayout = "2006-01-02"
)

var (
	ErrInvalidDate   = errors.New("date must be YYYY-MM-DD")
	ErrMissingName   = errors.New("food_name is required")
	ErrNegativeMacro = errors.New("nutrient values must not be negative")
)

func Key(userID, date string) string {
	return keyPrefix + userID + "_" + date
}

// Entry is one logged food.
type Entry struct {
	ID          string    `json:"id"`
	FoodName    string    `json:"food_name"`
	MealType    string    `json:"meal_type,omitempty"`
	ServingSize string    `json:"serving_size,omitempty"`
	Calories    float64   `json:"calories"`
	ProteinG    float64   `json:"protein_grams"`
	CarbsG      float64   `json:"carbs_grams"`
	FatG        float64   `json:"fat_grams"`
	Timestamp   time.Time `json:"timestamp"`
	Date        string    `json:"date"`
}

func (e Entry) validate() error {
	if strings.TrimSpace(e.FoodName) == "" {
		return ErrMissingName
	}
	if e.Calories < 0 || e.ProteinG < 0 || e.CarbsG < 0 || e.FatG < 0 {
		return ErrNegativeMacro
	}
	return nil
}

// Totals sums a day of entries.
type Totals struct {
	Entries  int     `json:"entries"`
	Calories float64 `json:"calories"`
	ProteinG float64 `json:"protein_grams"`
	CarbsG   float64 `json:"carbs_grams"`
	FatG     float64 `json:"fat_grams"`
}

func Sum(entries []Entry) Totals {
	t := Totals{Entries: len(entries)}
	for _, e := range entries {
		t.Calories += e.Calories
		t.ProteinG += e.ProteinG
		t.CarbsG += e.CarbsG
		t.FatG += e.FatG
	}
	return t
}

type Store struct {
	kv  storage.Store
	mu  sync.Mutex
	now func() time.Time
}

func NewStore(kv storage.Store) *Store {
	return &Store{kv: kv, now: time.Now}
}

// Append stamps the entry with an ID, timestamp and today's date and adds
// it to the user's log for that day.
func (s *Store) Append(ctx context.Context, userID string, e Entry) (Entry, error) {
	if err := e.validate(); err != nil {
		return Entry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	e.ID = newEntryID(now)
	e.Timestamp = now
	e.Date = now.Format(DateLayout)

	key := Key(userID, e.Date)
	list, err := s.readLocked(ctx, key)
	if err != nil {
		return Entry{}, err
	}
	list = append(list, e)

	data, err := json.Marshal(list)
	if err != nil {
		return Entry{}, fmt.Errorf("encode food log: %w", err)
	}
	if err := s.kv.Put(ctx, key, data); err != nil {
		return Entry{}, fmt.Errorf("write food log: %w", err)
	}
	return e, nil
}

// List returns the entries of one day in insertion order. An empty date
// means today.
func (s *Store) List(ctx context.Context, userID, date string) ([]Entry, error) {
	if date == "" {
		date = s.now().UTC().Format(DateLayout)
	}
	if _, err := time.Parse(DateLayout, date); err != nil {
		return nil, ErrInvalidDate
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.readLocked(ctx, Key(userID, date))
}

func (s *Store) readLocked(ctx context.Context, key string) ([]Entry, error) {
	data, found, err := s.kv.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read food log: %w", err)
	}
	if !found || len(data) == 0 {
		return []Entry{}, nil
	}
	var list []Entry
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decode food log: %w", err)
	}
	return list, nil
}

// entry-<unix ms>-<5 random chars>
func newEntryID(at time.Time) string {
	return fmt.Sprintf("entry-%d-%s", at.UnixMilli(), strings.ReplaceAll(uuid.NewString(), "-", "")[:5])
}
