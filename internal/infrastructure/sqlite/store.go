package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"

	"nutripal/internal/core/nutrition"
	"nutripal/internal/core/store"
)

// Store 以 SQLite 實作 store.Store
type Store struct {
	db *DB
}

// NewStore 創建 SQLite 紀錄儲存
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// newID 依時間排序的 ULID
func newID() string {
	return ulid.Make().String()
}

// InsertFoodLog implements store.Store.
func (s *Store) InsertFoodLog(ctx context.Context, log *store.FoodLog) error {
	if log.ID == "" {
		log.ID = newID()
	}
	nutritionJSON, err := json.Marshal(log.Nutrition)
	if err != nil {
		return fmt.Errorf("encode nutrition: %w", err)
	}

	_, err = s.db.db.ExecContext(ctx, `
		INSERT INTO food_log (id, user_id, food_name, portion, nutrition, recipe_id, logged_at, timezone)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		log.ID,
		log.UserID,
		log.FoodName,
		nullString(log.Portion),
		string(nutritionJSON),
		nullString(log.RecipeID),
		formatTime(log.LoggedAt),
		nullString(log.Timezone),
	)
	if err != nil {
		return fmt.Errorf("insert food log: %w", err)
	}
	return nil
}

// ListFoodLogs implements store.Store.
func (s *Store) ListFoodLogs(ctx context.Context, userID string, limit int) ([]store.FoodLog, error) {
	query := `
		SELECT id, user_id, food_name, portion, nutrition, recipe_id, logged_at, timezone
		FROM food_log WHERE user_id = ? ORDER BY logged_at DESC, id DESC`
	args := []any{userID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query food logs: %w", err)
	}
	defer rows.Close()

	out := make([]store.FoodLog, 0)
	for rows.Next() {
		var (
			l                           store.FoodLog
			portion, recipeID, timezone sql.NullString
			nutritionJSON, loggedAt     string
		)
		if err := rows.Scan(&l.ID, &l.UserID, &l.FoodName, &portion, &nutritionJSON, &recipeID, &loggedAt, &timezone); err != nil {
			return nil, fmt.Errorf("scan food log: %w", err)
		}
		if err := json.Unmarshal([]byte(nutritionJSON), &l.Nutrition); err != nil {
			return nil, fmt.Errorf("decode nutrition for %s: %w", l.ID, err)
		}
		l.Portion = portion.String
		l.RecipeID = recipeID.String
		l.Timezone = timezone.String
		l.LoggedAt = parseTime(loggedAt)
		out = append(out, l)
	}
	return out, rows.Err()
}

// InsertRecipe implements store.Store.
func (s *Store) InsertRecipe(ctx context.Context, r *store.SavedRecipe) error {
	if r.ID == "" {
		r.ID = newID()
	}
	ingredients, err := json.Marshal(r.Ingredients)
	if err != nil {
		return fmt.Errorf("encode ingredients: %w", err)
	}
	total, err := json.Marshal(r.TotalNutrition)
	if err != nil {
		return fmt.Errorf("encode total nutrition: %w", err)
	}
	per, err := json.Marshal(r.PerServing)
	if err != nil {
		return fmt.Errorf("encode per serving: %w", err)
	}

	_, err = s.db.db.ExecContext(ctx, `
		INSERT INTO user_recipes (id, user_id, name, ingredients, fingerprint, batch_grams, batch_ml, servings, total_nutrition, per_serving, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID,
		r.UserID,
		r.Name,
		string(ingredients),
		r.Fingerprint,
		r.BatchGrams,
		r.BatchMl,
		r.Servings,
		string(total),
		string(per),
		formatTime(r.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert recipe: %w", err)
	}
	return nil
}

const recipeColumns = `id, user_id, name, ingredients, fingerprint, batch_grams, batch_ml, servings, total_nutrition, per_serving, created_at`

func scanRecipe(row interface{ Scan(...any) error }) (store.SavedRecipe, error) {
	var (
		r                       store.SavedRecipe
		ingredients, total, per string
		createdAt               string
		batchGrams, batchMl     sql.NullFloat64
	)
	if err := row.Scan(&r.ID, &r.UserID, &r.Name, &ingredients, &r.Fingerprint, &batchGrams, &batchMl, &r.Servings, &total, &per, &createdAt); err != nil {
		return r, err
	}
	if err := json.Unmarshal([]byte(ingredients), &r.Ingredients); err != nil {
		return r, fmt.Errorf("decode ingredients for %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(total), &r.TotalNutrition); err != nil {
		return r, fmt.Errorf("decode total nutrition for %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(per), &r.PerServing); err != nil {
		return r, fmt.Errorf("decode per serving for %s: %w", r.ID, err)
	}
	r.BatchGrams = batchGrams.Float64
	r.BatchMl = batchMl.Float64
	r.CreatedAt = parseTime(createdAt)
	return r, nil
}

// ListRecipes implements store.Store.
func (s *Store) ListRecipes(ctx context.Context, userID string, limit int) ([]store.SavedRecipe, error) {
	query := `SELECT ` + recipeColumns + ` FROM user_recipes WHERE user_id = ? ORDER BY created_at DESC, id DESC`
	args := []any{userID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recipes: %w", err)
	}
	defer rows.Close()

	out := make([]store.SavedRecipe, 0)
	for rows.Next() {
		r, err := scanRecipe(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recipe: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// FindRecipeByName implements store.Store. 先以 SQL 做不分大小寫的完全比對，再退回到包含比對
func (s *Store) FindRecipeByName(ctx context.Context, userID, name string) (*store.SavedRecipe, error) {
	row := s.db.db.QueryRowContext(ctx,
		`SELECT `+recipeColumns+` FROM user_recipes WHERE user_id = ? AND lower(name) = ? ORDER BY created_at DESC LIMIT 1`,
		userID, strings.ToLower(strings.TrimSpace(name)))
	r, err := scanRecipe(row)
	if err == nil {
		return &r, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find recipe: %w", err)
	}

	recipes, err := s.ListRecipes(ctx, userID, 0)
	if err != nil {
		return nil, err
	}
	if match, ok := store.MatchRecipeName(recipes, name); ok {
		return match, nil
	}
	return nil, store.ErrNotFound
}

// UpsertGoal implements store.Store.
func (s *Store) UpsertGoal(ctx context.Context, goal *store.UserGoal) error {
	_, err := s.db.db.ExecContext(ctx, `
		INSERT INTO user_goals (user_id, nutrient, target, unit, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, nutrient) DO UPDATE SET
			target = excluded.target,
			unit = excluded.unit,
			updated_at = excluded.updated_at
	`, goal.UserID, string(goal.Nutrient), goal.Target, goal.Unit, formatTime(goal.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert goal: %w", err)
	}
	return nil
}

// ListGoals implements store.Store.
func (s *Store) ListGoals(ctx context.Context, userID string) ([]store.UserGoal, error) {
	rows, err := s.db.db.QueryContext(ctx,
		`SELECT user_id, nutrient, target, unit, updated_at FROM user_goals WHERE user_id = ? ORDER BY nutrient`, userID)
	if err != nil {
		return nil, fmt.Errorf("query goals: %w", err)
	}
	defer rows.Close()

	out := make([]store.UserGoal, 0)
	for rows.Next() {
		var (
			g         store.UserGoal
			nutrient  string
			updatedAt string
		)
		if err := rows.Scan(&g.UserID, &nutrient, &g.Target, &g.Unit, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		g.Nutrient = nutrition.Nutrient(nutrient)
		g.UpdatedAt = parseTime(updatedAt)
		out = append(out, g)
	}
	return out, rows.Err()
}

// InsertAnalyticsFailure implements store.Store.
func (s *Store) InsertAnalyticsFailure(ctx context.Context, f *store.AnalyticsFailure) error {
	if f.ID == "" {
		f.ID = newID()
	}
	violations, err := json.Marshal(f.Violations)
	if err != nil {
		return fmt.Errorf("encode violations: %w", err)
	}
	_, err = s.db.db.ExecContext(ctx, `
		INSERT INTO analytics_failures (id, user_id, query, portion, food_name, violations, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, f.ID, f.UserID, nullString(f.Query), nullString(f.Portion), nullString(f.FoodName), string(violations), formatTime(f.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert analytics failure: %w", err)
	}
	return nil
}

// Close implements store.Store.
func (s *Store) Close() error {
	return s.db.Close()
}
