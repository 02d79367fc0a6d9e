package plans

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fdg312/nutriplan/internal/logging"
	"github.com/fdg312/nutriplan/internal/storage"
	"github.com/fdg312/nutriplan/internal/telemetry"
)

const (
	KeyPlans              = "nutrition_plans"
	KeyDeletedDefaultPlan = "deleted_default_plan"
	selectedKeyPrefix     = "selected_nutrition_plan_"
	historyKeyPrefix      = "historical_targets_"
)

var ErrPlanNotFound = errors.New("plan not found")

func SelectedKey(userID string) string { return selectedKeyPrefix + userID }
func HistoryKey(planID string) string  { return historyKeyPrefix + planID }

// Store owns the persisted plan collection. Every method is serialized by
// one mutex; the collection itself lives in a single blob so each write
// replaces it atomically.
type Store struct {
	kv     storage.Store
	mu     sync.Mutex
	now    func() time.Time
	logger zerolog.Logger
}

func NewStore(kv storage.Store) *Store {
	return &Store{
		kv:     kv,
		now:    time.Now,
		logger: logging.WithComponent("plans"),
	}
}

// Load returns the persisted plans after normalization. If any plan is
// stale, or the blob cannot be decoded, the whole collection is purged and
// an empty slice is returned.
func (s *Store) Load(ctx context.Context) ([]Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loadLocked(ctx)
}

func (s *Store) loadLocked(ctx context.Context) ([]Plan, error) {
	data, found, err := s.kv.Get(ctx, KeyPlans)
	if err != nil {
		return nil, fmt.Errorf("read plans: %w", err)
	}
	if !found || len(data) == 0 {
		return []Plan{}, nil
	}

	list, migrated, err := decodePlans(data)
	if err != nil {
		s.logger.Error().Err(err).Msg("plan collection unreadable, purging")
		telemetry.PlanPurges.WithLabelValues("corrupt").Inc()
		if err := s.purgeLocked(ctx, nil); err != nil {
			return nil, err
		}
		return []Plan{}, nil
	}

	if stale, reason, ok := firstStale(list); ok {
		s.logger.Warn().
			Str("plan_id", stale.ID).
			Str("reason", string(reason)).
			Int("plans", len(list)).
			Msg("stale plan detected, purging collection")
		telemetry.PlanPurges.WithLabelValues(string(reason)).Inc()
		if err := s.purgeLocked(ctx, list); err != nil {
			return nil, err
		}
		return []Plan{}, nil
	}

	if enforceSingleActive(list, s.now()) {
		s.logger.Warn().Msg("multiple active plans for one user, newest kept active")
		migrated = true
	}

	if migrated {
		if err := s.saveLocked(ctx, list); err != nil {
			return nil, err
		}
	}
	return list, nil
}

func (s *Store) purgeLocked(ctx context.Context, list []Plan) error {
	if err := s.kv.Delete(ctx, KeyPlans); err != nil {
		return fmt.Errorf("purge plans: %w", err)
	}
	for _, p := range list {
		if err := s.kv.Delete(ctx, HistoryKey(p.ID)); err != nil {
			return fmt.Errorf("purge history %s: %w", p.ID, err)
		}
	}
	return nil
}

// Save overwrites the persisted collection.
func (s *Store) Save(ctx context.Context, list []Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.saveLocked(ctx, list)
}

func (s *Store) saveLocked(ctx context.Context, list []Plan) error {
	if list == nil {
		list = []Plan{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode plans: %w", err)
	}
	if err := s.kv.Put(ctx, KeyPlans, data); err != nil {
		return fmt.Errorf("write plans: %w", err)
	}
	return nil
}

func (s *Store) DeletedDefaultPlan(ctx context.Context) (bool, error) {
	data, found, err := s.kv.Get(ctx, KeyDeletedDefaultPlan)
	if err != nil || !found {
		return false, err
	}
	return strings.TrimSpace(string(data)) == "true", nil
}

func (s *Store) SetDeletedDefaultPlan(ctx context.Context, deleted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	val := "false"
	if deleted {
		val = "true"
	}
	return s.kv.Put(ctx, KeyDeletedDefaultPlan, []byte(val))
}

// UpsertPlan replaces the plan with the same ID or appends it.
func (s *Store) UpsertPlan(ctx context.Context, p Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.loadLocked(ctx)
	if err != nil {
		return err
	}
	return s.saveLocked(ctx, upsert(list, p))
}

// UpdatePlan loads the stored plan, applies fn and writes it back under one
// lock. A plan deleted before the call returns ErrPlanNotFound and is never
// written again. The ID and UserID cannot be changed by fn.
func (s *Store) UpdatePlan(ctx context.Context, planID string, fn func(*Plan) error) (Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.loadLocked(ctx)
	if err != nil {
		return Plan{}, err
	}
	idx := -1
	for i := range list {
		if list[i].ID == planID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Plan{}, ErrPlanNotFound
	}

	p := list[idx]
	if err := fn(&p); err != nil {
		return Plan{}, err
	}
	p.ID = list[idx].ID
	p.UserID = list[idx].UserID
	list[idx] = p

	if err := s.saveLocked(ctx, list); err != nil {
		return Plan{}, err
	}
	return p, nil
}

func contains(list []Plan, planID string) bool {
	for _, p := range list {
		if p.ID == planID {
			return true
		}
	}
	return false
}

func upsert(list []Plan, p Plan) []Plan {
	for i := range list {
		if list[i].ID == p.ID {
			list[i] = p
			return list
		}
	}
	return append(list, p)
}

// ArchiveActivePlansForUser marks every active plan of the user archived.
func (s *Store) ArchiveActivePlansForUser(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.loadLocked(ctx)
	if err != nil {
		return 0, err
	}
	n := archiveActive(list, userID, s.now())
	if n == 0 {
		return 0, nil
	}
	return n, s.saveLocked(ctx, list)
}

func archiveActive(list []Plan, userID string, at time.Time) int {
	n := 0
	for i := range list {
		if list[i].UserID == userID && list[i].Status == StatusActive {
			list[i].Status = StatusArchived
			list[i].UpdatedAt = at
			n++
		}
	}
	return n
}

// ReplaceActive archives the user's active plans and inserts p in a single
// write, so callers observe both changes or neither.
func (s *Store) ReplaceActive(ctx context.Context, p Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.loadLocked(ctx)
	if err != nil {
		return err
	}
	archived := archiveActive(list, p.UserID, s.now())
	p.Status = StatusActive
	if err := s.saveLocked(ctx, upsert(list, p)); err != nil {
		return err
	}
	s.logger.Info().Str("user_id", p.UserID).Str("plan_id", p.ID).Int("archived", archived).Msg("active plan replaced")
	return nil
}

// enforceSingleActive keeps only the newest active plan per user active.
func enforceSingleActive(list []Plan, at time.Time) bool {
	newest := make(map[string]int)
	for i, p := range list {
		if p.Status != StatusActive {
			continue
		}
		if j, ok := newest[p.UserID]; !ok || p.CreatedAt.After(list[j].CreatedAt) {
			newest[p.UserID] = i
		}
	}
	changed := false
	for i := range list {
		if list[i].Status == StatusActive && newest[list[i].UserID] != i {
			list[i].Status = StatusArchived
			list[i].UpdatedAt = at
			changed = true
		}
	}
	return changed
}

// Get returns the plan with the given ID.
func (s *Store) Get(ctx context.Context, planID string) (Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.loadLocked(ctx)
	if err != nil {
		return Plan{}, err
	}
	for _, p := range list {
		if p.ID == planID {
			return p, nil
		}
	}
	return Plan{}, ErrPlanNotFound
}

// ListForUser returns the user's plans, newest first.
func (s *Store) ListForUser(ctx context.Context, userID string) ([]Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.loadLocked(ctx)
	if err != nil {
		return nil, err
	}
	return ownedBy(list, userID), nil
}

func ownedBy(list []Plan, userID string) []Plan {
	out := make([]Plan, 0)
	for _, p := range list {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Delete removes a plan, its history and any selection pointing at it.
func (s *Store) Delete(ctx context.Context, planID string) (Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.loadLocked(ctx)
	if err != nil {
		return Plan{}, err
	}
	idx := -1
	for i := range list {
		if list[i].ID == planID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Plan{}, ErrPlanNotFound
	}
	removed := list[idx]
	list = append(list[:idx], list[idx+1:]...)

	if err := s.saveLocked(ctx, list); err != nil {
		return Plan{}, err
	}
	if err := s.kv.Delete(ctx, HistoryKey(planID)); err != nil {
		return removed, fmt.Errorf("delete history: %w", err)
	}
	selected, err := s.selectedLocked(ctx, removed.UserID)
	if err != nil {
		return removed, err
	}
	if selected == planID {
		if err := s.kv.Delete(ctx, SelectedKey(removed.UserID)); err != nil {
			return removed, fmt.Errorf("clear selection: %w", err)
		}
	}
	return removed, nil
}

// SetSelectedPlanID stores the user's selection pointer. An empty planID
// clears it.
func (s *Store) SetSelectedPlanID(ctx context.Context, userID, planID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if planID == "" {
		return s.kv.Delete(ctx, SelectedKey(userID))
	}
	return s.kv.Put(ctx, SelectedKey(userID), []byte(planID))
}

func (s *Store) SelectedPlanID(ctx context.Context, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.selectedLocked(ctx, userID)
}

func (s *Store) selectedLocked(ctx context.Context, userID string) (string, error) {
	data, found, err := s.kv.Get(ctx, SelectedKey(userID))
	if err != nil {
		return "", fmt.Errorf("read selection: %w", err)
	}
	if !found {
		return "", nil
	}
	return strings.TrimSpace(string(data)), nil
}

// LatestPlan resolves the plan to display: the selected plan when it exists
// and belongs to the user, otherwise the most recently created one. It
// returns nil when the user has no plans.
func (s *Store) LatestPlan(ctx context.Context, userID string) (*Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.loadLocked(ctx)
	if err != nil {
		return nil, err
	}
	owned := ownedBy(list, userID)
	if len(owned) == 0 {
		return nil, nil
	}

	selected, err := s.selectedLocked(ctx, userID)
	if err != nil {
		return nil, err
	}
	if selected != "" {
		for i := range owned {
			if owned[i].ID == selected {
				return &owned[i], nil
			}
		}
	}
	return &owned[0], nil
}

// AppendHistoricalTarget adds a snapshot for its plan. The plan must still
// exist, otherwise ErrPlanNotFound is returned and nothing is written.
func (s *Store) AppendHistoricalTarget(ctx context.Context, h HistoricalTarget) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.loadLocked(ctx)
	if err != nil {
		return err
	}
	if !contains(existing, h.PlanID) {
		return ErrPlanNotFound
	}

	list, err := s.historyLocked(ctx, h.PlanID)
	if err != nil {
		return err
	}
	list = append(list, h)
	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	return s.kv.Put(ctx, HistoryKey(h.PlanID), data)
}

// HistoricalTargets returns the plan's snapshots, newest first.
func (s *Store) HistoricalTargets(ctx context.Context, planID string) ([]HistoricalTarget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.historyLocked(ctx, planID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list, nil
}

func (s *Store) historyLocked(ctx context.Context, planID string) ([]HistoricalTarget, error) {
	data, found, err := s.kv.Get(ctx, HistoryKey(planID))
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	if !found || len(data) == 0 {
		return []HistoricalTarget{}, nil
	}
	var list []HistoricalTarget
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return list, nil
}
