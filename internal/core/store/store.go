package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"nutripal/internal/core/nutrition"
	"nutripal/internal/core/recipe"
)

// ErrNotFound 找不到紀錄
var ErrNotFound = errors.New("record not found")

// FoodLog 一筆已確認的飲食紀錄
type FoodLog struct {
	ID        string                  `json:"id"`
	UserID    string                  `json:"user_id"`
	FoodName  string                  `json:"food_name"`
	Portion   string                  `json:"portion,omitempty"`
	Nutrition nutrition.NutritionData `json:"nutrition"`
	RecipeID  string                  `json:"recipe_id,omitempty"`
	LoggedAt  time.Time               `json:"logged_at"`
	Timezone  string                  `json:"timezone,omitempty"`
}

// SavedRecipe 使用者儲存的食譜
type SavedRecipe struct {
	ID             string                  `json:"id"`
	UserID         string                  `json:"user_id"`
	Name           string                  `json:"name"`
	Ingredients    []recipe.Ingredient     `json:"ingredients"`
	Fingerprint    string                  `json:"fingerprint"`
	BatchGrams     float64                 `json:"batch_grams,omitempty"`
	BatchMl        float64                 `json:"batch_ml,omitempty"`
	Servings       float64                 `json:"servings"`
	TotalNutrition nutrition.NutritionData `json:"total_nutrition"`
	PerServing     nutrition.NutritionData `json:"per_serving"`
	CreatedAt      time.Time               `json:"created_at"`
}

// UserGoal 每日營養目標，每位使用者每種營養素一筆
type UserGoal struct {
	UserID    string             `json:"user_id"`
	Nutrient  nutrition.Nutrient `json:"nutrient"`
	Target    float64            `json:"target"`
	Unit      string             `json:"unit"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// AnalyticsFailure 驗證失敗的分析紀錄
type AnalyticsFailure struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Query      string    `json:"query"`
	Portion    string    `json:"portion,omitempty"`
	FoodName   string    `json:"food_name"`
	Violations []string  `json:"violations"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store 紀錄持久化邊界
type Store interface {
	InsertFoodLog(ctx context.Context, log *FoodLog) error
	// ListFoodLogs 依時間由新到舊，limit <= 0 表示不限
	ListFoodLogs(ctx context.Context, userID string, limit int) ([]FoodLog, error)

	InsertRecipe(ctx context.Context, r *SavedRecipe) error
	// ListRecipes 依建立時間由新到舊
	ListRecipes(ctx context.Context, userID string, limit int) ([]SavedRecipe, error)
	// FindRecipeByName 名稱不分大小寫；找不到時回傳 ErrNotFound
	FindRecipeByName(ctx context.Context, userID, name string) (*SavedRecipe, error)

	UpsertGoal(ctx context.Context, goal *UserGoal) error
	ListGoals(ctx context.Context, userID string) ([]UserGoal, error)

	InsertAnalyticsFailure(ctx context.Context, f *AnalyticsFailure) error

	Close() error
}

// MatchRecipeName 先找完全相符（不分大小寫），再找包含關係
func MatchRecipeName(recipes []SavedRecipe, name string) (*SavedRecipe, bool) {
	want := strings.ToLower(strings.TrimSpace(name))
	if want == "" {
		return nil, false
	}
	for i := range recipes {
		if strings.ToLower(recipes[i].Name) == want {
			return &recipes[i], true
		}
	}
	for i := range recipes {
		got := strings.ToLower(recipes[i].Name)
		if strings.Contains(got, want) || strings.Contains(want, got) {
			return &recipes[i], true
		}
	}
	return nil, false
}
