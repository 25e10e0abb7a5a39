// Package storetest 共用的 store.Store 行為測試，各驅動程式以自己的實例執行
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutripal/internal/core/nutrition"
	"nutripal/internal/core/recipe"
	"nutripal/internal/core/store"
)

// Run 對 s 執行所有行為測試
func Run(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	t.Run("food logs newest first", func(t *testing.T) {
		for i, name := range []string{"oatmeal", "salad", "pasta"} {
			log := &store.FoodLog{
				UserID:    "u1",
				FoodName:  name,
				Portion:   "1 bowl",
				Nutrition: nutrition.NutritionData{FoodName: name, Calories: float64(100 * (i + 1)), ProteinG: 5},
				LoggedAt:  base.Add(time.Duration(i) * time.Hour),
				Timezone:  "UTC",
			}
			require.NoError(t, s.InsertFoodLog(ctx, log))
			assert.NotEmpty(t, log.ID)
		}
		require.NoError(t, s.InsertFoodLog(ctx, &store.FoodLog{UserID: "u2", FoodName: "tea", LoggedAt: base}))

		logs, err := s.ListFoodLogs(ctx, "u1", 2)
		require.NoError(t, err)
		require.Len(t, logs, 2)
		assert.Equal(t, "pasta", logs[0].FoodName)
		assert.Equal(t, 300.0, logs[0].Nutrition.Calories)
		assert.Equal(t, "salad", logs[1].FoodName)

		all, err := s.ListFoodLogs(ctx, "u1", 0)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("recipes", func(t *testing.T) {
		ings := []recipe.Ingredient{{Name: "lentils", Quantity: recipe.Qty(300), Unit: "g"}, {Name: "carrot", Quantity: recipe.Qty(2)}}
		older := &store.SavedRecipe{
			UserID:         "u1",
			Name:           "Lentil Soup",
			Ingredients:    ings,
			Fingerprint:    recipe.Fingerprint(ings),
			BatchGrams:     422,
			Servings:       4,
			TotalNutrition: nutrition.NutritionData{FoodName: "Lentil Soup", Calories: 1200},
			PerServing:     nutrition.NutritionData{FoodName: "Lentil Soup", Calories: 300},
			CreatedAt:      base,
		}
		newer := &store.SavedRecipe{
			UserID:      "u1",
			Name:        "Morning Smoothie",
			Ingredients: []recipe.Ingredient{{Name: "banana"}},
			Fingerprint: "banana",
			BatchMl:     500,
			Servings:    2,
			CreatedAt:   base.Add(time.Hour),
		}
		require.NoError(t, s.InsertRecipe(ctx, older))
		require.NoError(t, s.InsertRecipe(ctx, newer))
		assert.NotEmpty(t, older.ID)

		recipes, err := s.ListRecipes(ctx, "u1", 10)
		require.NoError(t, err)
		require.Len(t, recipes, 2)
		assert.Equal(t, "Morning Smoothie", recipes[0].Name)
		assert.Equal(t, "carrot,lentil", recipes[1].Fingerprint)
		require.Len(t, recipes[1].Ingredients, 2)
		require.NotNil(t, recipes[1].Ingredients[0].Quantity)
		assert.Equal(t, 300.0, *recipes[1].Ingredients[0].Quantity)

		found, err := s.FindRecipeByName(ctx, "u1", "lentil soup")
		require.NoError(t, err)
		assert.Equal(t, older.ID, found.ID)
		assert.Equal(t, 300.0, found.PerServing.Calories)

		_, err = s.FindRecipeByName(ctx, "u1", "lasagna")
		assert.ErrorIs(t, err, store.ErrNotFound)
		_, err = s.FindRecipeByName(ctx, "u2", "lentil soup")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("goals upsert", func(t *testing.T) {
		require.NoError(t, s.UpsertGoal(ctx, &store.UserGoal{UserID: "u1", Nutrient: nutrition.Calories, Target: 2000, Unit: "kcal", UpdatedAt: base}))
		require.NoError(t, s.UpsertGoal(ctx, &store.UserGoal{UserID: "u1", Nutrient: nutrition.Protein, Target: 120, Unit: "g", UpdatedAt: base}))
		require.NoError(t, s.UpsertGoal(ctx, &store.UserGoal{UserID: "u1", Nutrient: nutrition.Calories, Target: 1800, Unit: "kcal", UpdatedAt: base.Add(time.Hour)}))

		goals, err := s.ListGoals(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, goals, 2)

		byNutrient := map[nutrition.Nutrient]float64{}
		for _, g := range goals {
			byNutrient[g.Nutrient] = g.Target
		}
		assert.Equal(t, 1800.0, byNutrient[nutrition.Calories])
		assert.Equal(t, 120.0, byNutrient[nutrition.Protein])

		none, err := s.ListGoals(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("analytics failures", func(t *testing.T) {
		f := &store.AnalyticsFailure{
			UserID:     "u1",
			Query:      "a spoon of butter",
			FoodName:   "butter",
			Violations: []string{"butter: reports 0 calories"},
			CreatedAt:  base,
		}
		require.NoError(t, s.InsertAnalyticsFailure(ctx, f))
		assert.NotEmpty(t, f.ID)
	})
}
