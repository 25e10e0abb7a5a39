package recipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLooksLikeRecipe(t *testing.T) {
	assert.True(t, LooksLikeRecipe("2 cups flour\n1 tsp salt\n3 eggs"))
	assert.True(t, LooksLikeRecipe("- rice\n- beans\n- salsa"))
	assert.True(t, LooksLikeRecipe("Here's my chili recipe"))
	assert.False(t, LooksLikeRecipe("I had a banana"))
	assert.False(t, LooksLikeRecipe("2 eggs\ntoast"))
}

func TestParseIngredientLine(t *testing.T) {
	tests := []struct {
		line string
		name string
		qty  float64
		unit string
	}{
		{"2 cups flour", "flour", 2, "cups"},
		{"1/2 tsp salt", "salt", 0.5, "tsp"},
		{"1 1/2 cups milk", "milk", 1.5, "cups"},
		{"3 eggs", "eggs", 3, ""},
		{"3 large eggs", "eggs", 3, "large"},
		{"2 chicken breasts", "chicken breasts", 2, ""},
		{"8 fl oz cream", "cream", 8, "fl oz"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			ing := ParseIngredientLine(tt.line)
			assert.Equal(t, tt.name, ing.Name)
			require.NotNil(t, ing.Quantity)
			assert.InDelta(t, tt.qty, *ing.Quantity, 0.0001)
			assert.Equal(t, tt.unit, ing.Unit)
		})
	}

	plain := ParseIngredientLine("salt to taste")
	assert.Equal(t, "salt to taste", plain.Name)
	assert.Nil(t, plain.Quantity)
}

func TestParseIngredientLines(t *testing.T) {
	ings := ParseIngredientLines("Ingredients:\n- 200 g pasta\n- 1 jar pesto\n")
	require.Len(t, ings, 2)
	assert.Equal(t, "pasta", ings[0].Name)
	assert.Equal(t, "g", ings[0].Unit)
	assert.Equal(t, "jar pesto", ings[1].Name)
}
