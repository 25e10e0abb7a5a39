package supabase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/supabase-community/supabase-go"

	"nutripal/internal/core/nutrition"
	"nutripal/internal/core/recipe"
	"nutripal/internal/core/store"
	"nutripal/internal/pkg/common"
)

const (
	tableFoodLog   = "food_log"
	tableRecipes   = "user_recipes"
	tableGoals     = "user_goals"
	tableFailures  = "analytics_failures"
	goalConflictOn = "user_id,nutrient"
)

// Config Supabase 連線設定
type Config struct {
	URL    string
	APIKey string
}

// Store 以 Supabase (PostgREST) 實作 store.Store，資料表結構由外部管理
type Store struct {
	client *supabase.Client
}

// New 創建 Supabase 紀錄儲存
func New(cfg Config) (*Store, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("supabase URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("supabase API key is required")
	}

	client, err := supabase.NewClient(cfg.URL, cfg.APIKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}
	return &Store{client: client}, nil
}

type foodLogRow struct {
	ID        string                  `json:"id"`
	UserID    string                  `json:"user_id"`
	FoodName  string                  `json:"food_name"`
	Portion   string                  `json:"portion,omitempty"`
	Nutrition nutrition.NutritionData `json:"nutrition"`
	RecipeID  *string                 `json:"recipe_id"`
	LoggedAt  time.Time               `json:"logged_at"`
	Timezone  string                  `json:"timezone,omitempty"`
}

type recipeRow struct {
	ID             string                  `json:"id"`
	UserID         string                  `json:"user_id"`
	Name           string                  `json:"name"`
	Ingredients    []recipe.Ingredient     `json:"ingredients"`
	Fingerprint    string                  `json:"fingerprint"`
	BatchGrams     float64                 `json:"batch_grams"`
	BatchMl        float64                 `json:"batch_ml"`
	Servings       float64                 `json:"servings"`
	TotalNutrition nutrition.NutritionData `json:"total_nutrition"`
	PerServing     nutrition.NutritionData `json:"per_serving"`
	CreatedAt      time.Time               `json:"created_at"`
}

// InsertFoodLog implements store.Store.
func (s *Store) InsertFoodLog(_ context.Context, log *store.FoodLog) error {
	if log.ID == "" {
		log.ID = common.GenerateUUID()
	}
	row := foodLogRow{
		ID:        log.ID,
		UserID:    log.UserID,
		FoodName:  log.FoodName,
		Portion:   log.Portion,
		Nutrition: log.Nutrition,
		LoggedAt:  log.LoggedAt.UTC(),
		Timezone:  log.Timezone,
	}
	if log.RecipeID != "" {
		row.RecipeID = &log.RecipeID
	}

	if _, _, err := s.client.From(tableFoodLog).Insert(row, false, "", "minimal", "").Execute(); err != nil {
		return fmt.Errorf("failed to insert food log: %w", err)
	}
	return nil
}

// ListFoodLogs implements store.Store.
func (s *Store) ListFoodLogs(_ context.Context, userID string, limit int) ([]store.FoodLog, error) {
	var rows []foodLogRow
	_, err := s.client.From(tableFoodLog).
		Select("*", "", false).
		Eq("user_id", userID).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list food logs: %w", err)
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].LoggedAt.After(rows[j].LoggedAt) })
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	out := make([]store.FoodLog, 0, len(rows))
	for _, r := range rows {
		l := store.FoodLog{
			ID:        r.ID,
			UserID:    r.UserID,
			FoodName:  r.FoodName,
			Portion:   r.Portion,
			Nutrition: r.Nutrition,
			LoggedAt:  r.LoggedAt,
			Timezone:  r.Timezone,
		}
		if r.RecipeID != nil {
			l.RecipeID = *r.RecipeID
		}
		out = append(out, l)
	}
	return out, nil
}

// InsertRecipe implements store.Store.
func (s *Store) InsertRecipe(_ context.Context, r *store.SavedRecipe) error {
	if r.ID == "" {
		r.ID = common.GenerateUUID()
	}
	row := recipeRow(*r)
	row.CreatedAt = row.CreatedAt.UTC()

	if _, _, err := s.client.From(tableRecipes).Insert(row, false, "", "minimal", "").Execute(); err != nil {
		return fmt.Errorf("failed to insert recipe: %w", err)
	}
	return nil
}

// ListRecipes implements store.Store.
func (s *Store) ListRecipes(_ context.Context, userID string, limit int) ([]store.SavedRecipe, error) {
	var rows []recipeRow
	_, err := s.client.From(tableRecipes).
		Select("*", "", false).
		Eq("user_id", userID).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipes: %w", err)
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].CreatedAt.After(rows[j].CreatedAt) })
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	out := make([]store.SavedRecipe, 0, len(rows))
	for _, r := range rows {
		out = append(out, store.SavedRecipe(r))
	}
	return out, nil
}

// FindRecipeByName implements store.Store.
func (s *Store) FindRecipeByName(ctx context.Context, userID, name string) (*store.SavedRecipe, error) {
	recipes, err := s.ListRecipes(ctx, userID, 0)
	if err != nil {
		return nil, err
	}
	if r, ok := store.MatchRecipeName(recipes, name); ok {
		return r, nil
	}
	return nil, store.ErrNotFound
}

// UpsertGoal implements store.Store.
func (s *Store) UpsertGoal(_ context.Context, goal *store.UserGoal) error {
	row := *goal
	row.UpdatedAt = row.UpdatedAt.UTC()
	if _, _, err := s.client.From(tableGoals).Insert(row, true, goalConflictOn, "minimal", "").Execute(); err != nil {
		return fmt.Errorf("failed to upsert goal: %w", err)
	}
	return nil
}

// ListGoals implements store.Store.
func (s *Store) ListGoals(_ context.Context, userID string) ([]store.UserGoal, error) {
	var goals []store.UserGoal
	_, err := s.client.From(tableGoals).
		Select("*", "", false).
		Eq("user_id", userID).
		ExecuteTo(&goals)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	sort.Slice(goals, func(i, j int) bool { return goals[i].Nutrient < goals[j].Nutrient })
	return goals, nil
}

// InsertAnalyticsFailure implements store.Store.
func (s *Store) InsertAnalyticsFailure(_ context.Context, f *store.AnalyticsFailure) error {
	if f.ID == "" {
		f.ID = common.GenerateUUID()
	}
	row := *f
	row.CreatedAt = row.CreatedAt.UTC()
	if _, _, err := s.client.From(tableFailures).Insert(row, false, "", "minimal", "").Execute(); err != nil {
		return fmt.Errorf("failed to insert analytics failure: %w", err)
	}
	return nil
}

// Close implements store.Store. supabase-go 沒有需要釋放的連線
func (s *Store) Close() error {
	return nil
}
