package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutripal/internal/core/nutrition"
	"nutripal/internal/core/recipe"
	"nutripal/internal/core/session"
	"nutripal/internal/core/store/storetest"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nutripal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, NewStore(openTestDB(t)))
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "app.db")

	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())
	require.NoError(t, db.Close(), "close can be called twice")

	again, err := Open(path)
	require.NoError(t, err)
	defer again.Close()
	assert.NoError(t, again.Ping())
}

func TestSessionRepository(t *testing.T) {
	repo := NewSessionRepository(openTestDB(t))
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	_, err := repo.Latest(ctx, "u1")
	assert.ErrorIs(t, err, session.ErrNotFound)

	first := session.NewState("a", "u1", base)
	first.Buffer.RecentFoods = []string{"toast"}
	require.NoError(t, repo.Save(ctx, first))

	second := session.NewState("b", "u1", base.Add(time.Minute))
	flow := session.NewRecipeFlow("stew", []recipe.Ingredient{{Name: "beef", Quantity: recipe.Qty(1), Unit: "kg"}}, nutrition.NutritionData{FoodName: "stew", Calories: 2500})
	require.NoError(t, flow.ProposeBatch(recipe.CalculateBatchSize(flow.Ingredients)))
	second.Buffer.FlowState = flow
	second.CurrentMode = session.ModeRecipeCreate
	require.NoError(t, repo.Save(ctx, second))

	latest, err := repo.Latest(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "b", latest.ID)
	require.NotNil(t, latest.Buffer.FlowState)
	assert.Equal(t, session.StepBatchConfirm, latest.Buffer.FlowState.Step())

	first.UpdatedAt = base.Add(time.Hour)
	first.CurrentMode = session.ModeLogFood
	require.NoError(t, repo.Save(ctx, first))

	latest, err = repo.Latest(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "a", latest.ID)
	assert.Equal(t, session.ModeLogFood, latest.CurrentMode)
	assert.Equal(t, []string{"toast"}, latest.Buffer.RecentFoods)

	_, err = repo.Get(ctx, "u2", "a")
	assert.ErrorIs(t, err, session.ErrNotFound)
}
