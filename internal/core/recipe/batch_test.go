package recipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateBatchSizeMass(t *testing.T) {
	result := CalculateBatchSize([]Ingredient{
		{Name: "chicken breast", Quantity: Qty(500), Unit: "g"},
		{Name: "rice", Quantity: Qty(200), Unit: "g"},
		{Name: "vegetables", Quantity: Qty(300), Unit: "g"},
	})

	assert.Equal(t, 1000.0, result.TotalGrams)
	assert.Equal(t, 0.0, result.TotalMl)
	assert.Equal(t, ConfidenceHigh, result.Confidence)
	assert.Equal(t, "1.0kg", result.EstimatedSize)
	assert.Empty(t, result.UnconvertedIngredients)
	assert.Len(t, result.IngredientBreakdown, 3)
}

func TestCalculateBatchSizeUnconvertible(t *testing.T) {
	result := CalculateBatchSize([]Ingredient{
		{Name: "salt", Quantity: Qty(1), Unit: "pinch"},
		{Name: "sour cream", Quantity: Qty(1), Unit: "dollop"},
	})

	assert.Equal(t, ConfidenceLow, result.Confidence)
	assert.Len(t, result.UnconvertedIngredients, 2)
	assert.Equal(t, "1 pinch salt", result.UnconvertedIngredients[0])
	assert.Equal(t, "unknown", result.EstimatedSize)
}

func TestCalculateBatchSizeEmpty(t *testing.T) {
	result := CalculateBatchSize(nil)
	assert.Equal(t, ConfidenceLow, result.Confidence)
	assert.Empty(t, result.UnconvertedIngredients)
}

func TestCalculateBatchSizeVolumeOnly(t *testing.T) {
	result := CalculateBatchSize([]Ingredient{
		{Name: "milk", Quantity: Qty(2), Unit: "cups"},
		{Name: "vanilla", Quantity: Qty(1), Unit: "tbsp"},
	})

	assert.InDelta(t, 488.0, result.TotalMl, 0.01)
	assert.Equal(t, 0.0, result.TotalGrams)
	assert.Equal(t, "488ml", result.EstimatedSize)
	assert.Equal(t, ConfidenceHigh, result.Confidence)
}

func TestCalculateBatchSizeMassAndVolumeSeparately(t *testing.T) {
	result := CalculateBatchSize([]Ingredient{
		{Name: "flour", Quantity: Qty(1), Unit: "kg"},
		{Name: "water", Quantity: Qty(1.5), Unit: "L"},
	})

	assert.Equal(t, 1000.0, result.TotalGrams)
	assert.Equal(t, 1500.0, result.TotalMl)
	assert.Equal(t, "1.0kg", result.EstimatedSize, "mass string is preferred")
	assert.Equal(t, "1.5L", FormatMl(result.TotalMl))
}

func TestCalculateBatchSizeCountable(t *testing.T) {
	tests := []struct {
		name  string
		ing   Ingredient
		grams float64
	}{
		{"bare quantity", Ingredient{Name: "eggs", Quantity: Qty(3)}, 150},
		{"large unit", Ingredient{Name: "bananas", Quantity: Qty(2), Unit: "large"}, 236},
		{"longest key wins", Ingredient{Name: "red onions", Quantity: Qty(1), Unit: "whole"}, 140},
		{"unknown food falls back", Ingredient{Name: "dragonfruit", Quantity: Qty(2), Unit: "piece"}, 200},
		{"egg-sized", Ingredient{Name: "cookie dough", Quantity: Qty(4), Unit: "egg-sized"}, 200},
		{"countable without quantity", Ingredient{Name: "apple", Unit: "medium"}, 182},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CalculateBatchSize([]Ingredient{tt.ing})
			assert.InDelta(t, tt.grams, result.TotalGrams, 0.01)
			assert.Equal(t, ConfidenceHigh, result.Confidence)
		})
	}
}

func TestCalculateBatchSizeConfidence(t *testing.T) {
	medium := CalculateBatchSize([]Ingredient{
		{Name: "rice", Quantity: Qty(200), Unit: "g"},
		{Name: "beans", Quantity: Qty(200), Unit: "g"},
		{Name: "salt", Unit: "pinch"},
	})
	assert.Equal(t, ConfidenceMedium, medium.Confidence)

	low := CalculateBatchSize([]Ingredient{
		{Name: "rice", Quantity: Qty(200), Unit: "g"},
		{Name: "butter", Unit: "g"},
		{Name: "salt", Unit: "pinch"},
	})
	assert.Equal(t, ConfidenceLow, low.Confidence)
	assert.Equal(t, []string{"g butter", "pinch salt"}, low.UnconvertedIngredients)
}

func TestFormatSizes(t *testing.T) {
	assert.Equal(t, "850g", FormatGrams(850))
	assert.Equal(t, "1.2kg", FormatGrams(1249))
	assert.Equal(t, "750ml", FormatMl(750))
	assert.Equal(t, "2.0L", FormatMl(2000))
	assert.Equal(t, "1.5kg", BatchSize{Amount: 1500, Unit: "g"}.String())
}

func TestGenerateBatchConfirmationPrompt(t *testing.T) {
	result := CalculateBatchSize([]Ingredient{
		{Name: "pasta", Quantity: Qty(500), Unit: "g"},
		{Name: "salt", Quantity: Qty(1), Unit: "pinch"},
	})
	prompt := GenerateBatchConfirmationPrompt(result)
	assert.Contains(t, prompt, "500g")
	assert.Contains(t, prompt, "1 pinch salt")

	empty := GenerateBatchConfirmationPrompt(CalculateBatchSize(nil))
	assert.Contains(t, empty, "couldn't estimate")
}

func TestParseBatchSizeResponse(t *testing.T) {
	t.Run("liters correction", func(t *testing.T) {
		r := ParseBatchSizeResponse("no, it makes about 2 liters")
		assert.False(t, r.Confirmed)
		require.NotNil(t, r.Ml)
		assert.Equal(t, 2000.0, *r.Ml)
		assert.Nil(t, r.Grams)
	})

	t.Run("kg correction", func(t *testing.T) {
		r := ParseBatchSizeResponse("actually 1.5kg")
		assert.False(t, r.Confirmed)
		require.NotNil(t, r.Grams)
		assert.Equal(t, 1500.0, *r.Grams)
		assert.Nil(t, r.Ml)
	})

	t.Run("affirmative", func(t *testing.T) {
		r := ParseBatchSizeResponse("yes")
		assert.True(t, r.Confirmed)
		assert.Nil(t, r.Ml)
		assert.Nil(t, r.Grams)

		assert.True(t, ParseBatchSizeResponse("Looks good!").Confirmed)
	})

	t.Run("number wins over affirmative", func(t *testing.T) {
		r := ParseBatchSizeResponse("yes but more like 3 cups")
		assert.False(t, r.Confirmed)
		require.NotNil(t, r.Ml)
		assert.InDelta(t, 709.77, *r.Ml, 0.01)
	})

	t.Run("pounds", func(t *testing.T) {
		r := ParseBatchSizeResponse("2 lbs")
		require.NotNil(t, r.Grams)
		assert.InDelta(t, 907.184, *r.Grams, 0.001)
	})

	t.Run("first unit mentioned wins", func(t *testing.T) {
		r := ParseBatchSizeResponse("it's 3 pounds not 2 cups")
		require.NotNil(t, r.Grams)
		assert.InDelta(t, 1360.78, *r.Grams, 0.01)
		assert.Nil(t, r.Ml)

		r = ParseBatchSizeResponse("2 cups, not 3 pounds")
		require.NotNil(t, r.Ml)
		assert.InDelta(t, 473.18, *r.Ml, 0.01)
		assert.Nil(t, r.Grams)
	})

	t.Run("ambiguous rejection", func(t *testing.T) {
		r := ParseBatchSizeResponse("no that's way off")
		assert.False(t, r.Confirmed)
		assert.False(t, r.HasCorrection())
	})
}

func TestParseServings(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"4", 4, true},
		{"it serves 6 people", 6, true},
		{"2.5 servings", 2.5, true},
		{"about eight", 8, true},
		{"a dozen", 12, true},
		{"0", 0, false},
		{"lots", 0, false},
		{"someone", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseServings(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
