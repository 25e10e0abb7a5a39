package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutripal/internal/core/store"
	"nutripal/internal/core/store/storetest"
)

func TestMemoryStore(t *testing.T) {
	s := store.NewMemoryStore()
	storetest.Run(t, s)

	failures := s.AnalyticsFailures()
	require.Len(t, failures, 1)
	assert.Equal(t, "butter", failures[0].FoodName)
}

func TestMatchRecipeName(t *testing.T) {
	recipes := []store.SavedRecipe{{Name: "Chicken Curry"}, {Name: "Curry"}}

	r, ok := store.MatchRecipeName(recipes, "curry")
	require.True(t, ok)
	assert.Equal(t, "Curry", r.Name, "exact match preferred")

	r, ok = store.MatchRecipeName(recipes, "my chicken curry")
	require.True(t, ok)
	assert.Equal(t, "Chicken Curry", r.Name)

	_, ok = store.MatchRecipeName(recipes, "")
	assert.False(t, ok)

	_, err := store.NewMemoryStore().FindRecipeByName(context.Background(), "u", "x")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
