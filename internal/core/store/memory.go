package store

import (
	"context"
	"sort"
	"sync"

	"nutripal/internal/core/nutrition"
	"nutripal/internal/pkg/common"
)

// MemoryStore 行程內儲存，用於開發與測試
type MemoryStore struct {
	mu       sync.RWMutex
	logs     []FoodLog
	recipes  []SavedRecipe
	goals    map[string]map[nutrition.Nutrient]UserGoal
	failures []AnalyticsFailure
}

// NewMemoryStore 創建記憶體儲存
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		goals: make(map[string]map[nutrition.Nutrient]UserGoal),
	}
}

// InsertFoodLog implements Store.
func (s *MemoryStore) InsertFoodLog(_ context.Context, log *FoodLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if log.ID == "" {
		log.ID = common.GenerateUUID()
	}
	s.logs = append(s.logs, *log)
	return nil
}

// ListFoodLogs implements Store.
func (s *MemoryStore) ListFoodLogs(_ context.Context, userID string, limit int) ([]FoodLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]FoodLog, 0)
	for _, l := range s.logs {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LoggedAt.After(out[j].LoggedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// InsertRecipe implements Store.
func (s *MemoryStore) InsertRecipe(_ context.Context, r *SavedRecipe) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = common.GenerateUUID()
	}
	s.recipes = append(s.recipes, *r)
	return nil
}

// ListRecipes implements Store.
func (s *MemoryStore) ListRecipes(_ context.Context, userID string, limit int) ([]SavedRecipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]SavedRecipe, 0)
	for i := len(s.recipes) - 1; i >= 0; i-- {
		if s.recipes[i].UserID == userID {
			out = append(out, s.recipes[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// FindRecipeByName implements Store.
func (s *MemoryStore) FindRecipeByName(ctx context.Context, userID, name string) (*SavedRecipe, error) {
	recipes, err := s.ListRecipes(ctx, userID, 0)
	if err != nil {
		return nil, err
	}
	if r, ok := MatchRecipeName(recipes, name); ok {
		return r, nil
	}
	return nil, ErrNotFound
}

// UpsertGoal implements Store.
func (s *MemoryStore) UpsertGoal(_ context.Context, goal *UserGoal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.goals[goal.UserID] == nil {
		s.goals[goal.UserID] = make(map[nutrition.Nutrient]UserGoal)
	}
	s.goals[goal.UserID][goal.Nutrient] = *goal
	return nil
}

// ListGoals implements Store.
func (s *MemoryStore) ListGoals(_ context.Context, userID string) ([]UserGoal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]UserGoal, 0, len(s.goals[userID]))
	for _, g := range s.goals[userID] {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nutrient < out[j].Nutrient })
	return out, nil
}

// InsertAnalyticsFailure implements Store.
func (s *MemoryStore) InsertAnalyticsFailure(_ context.Context, f *AnalyticsFailure) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f.ID == "" {
		f.ID = common.GenerateUUID()
	}
	s.failures = append(s.failures, *f)
	return nil
}

// AnalyticsFailures 目前所有的失敗紀錄（測試用）
func (s *MemoryStore) AnalyticsFailures() []AnalyticsFailure {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]AnalyticsFailure(nil), s.failures...)
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}
