package nutrition

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateNutrientHierarchy(t *testing.T) {
	tests := []struct {
		name       string
		data       NutritionData
		valid      bool
		violations int
	}{
		{
			name:  "empty record is valid",
			data:  NutritionData{},
			valid: true,
		},
		{
			name:  "children within parents",
			data:  NutritionData{CarbsG: 30, SugarG: 10, FiberG: 5, AddedSugarsG: 4, FatTotalG: 10, FatSaturated: 3, FatPoly: 2, Omega3G: 1},
			valid: true,
		},
		{
			name:  "rounding tolerance",
			data:  NutritionData{CarbsG: 10, SugarG: 10.8},
			valid: true,
		},
		{
			name:       "sugar exceeds carbs",
			data:       NutritionData{CarbsG: 10, SugarG: 15},
			violations: 2,
		},
		{
			name:       "strict group sum exceeds fat",
			data:       NutritionData{FatTotalG: 10, FatSaturated: 5, FatMono: 5, FatPoly: 3},
			violations: 1,
		},
		{
			name:       "added sugar exceeds sugar",
			data:       NutritionData{CarbsG: 50, SugarG: 5, AddedSugarsG: 8},
			violations: 1,
		},
		{
			name:       "missing parent treated as zero",
			data:       NutritionData{Omega3G: 2},
			violations: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateNutrientHierarchy(tt.data)
			assert.Equal(t, tt.valid, result.Valid)
			assert.Len(t, result.Violations, tt.violations)
		})
	}
}

func TestValidateNutrientHierarchyDoesNotMutate(t *testing.T) {
	data := NutritionData{CarbsG: 10, SugarG: 20}
	_ = ValidateNutrientHierarchy(data)
	assert.Equal(t, 20.0, data.SugarG)
}

func TestSanitizeNutrients(t *testing.T) {
	data := NutritionData{
		FoodName:     "granola",
		CarbsG:       10,
		SugarG:       20,
		AddedSugarsG: 25,
		FatTotalG:    5,
		FatPoly:      8,
		Omega6G:      7,
	}

	once := SanitizeNutrients(data)
	assert.Equal(t, 10.0, once.SugarG)
	assert.Equal(t, 10.0, once.AddedSugarsG, "capped against the already-capped sugar")
	assert.Equal(t, 5.0, once.FatPoly)
	assert.Equal(t, 5.0, once.Omega6G)
	assert.Equal(t, 20.0, data.SugarG, "input is not modified")

	twice := SanitizeNutrients(once)
	assert.Equal(t, once, twice)
}

func TestSanitizedChildrenPassIndividually(t *testing.T) {
	data := NutritionData{CarbsG: 5, SugarG: 40, FatTotalG: 2, FatTrans: 9}
	clean := SanitizeNutrients(data)
	for _, rel := range hierarchy {
		for _, child := range rel.Children {
			assert.LessOrEqual(t, clean.Get(child), clean.Get(rel.Parent))
		}
	}
}

func TestSanitizeNegativeParentCapsAtZero(t *testing.T) {
	data := NutritionData{CarbsG: -5, SugarG: 3, FiberG: 2}
	clean := SanitizeNutrients(data)

	assert.Equal(t, 0.0, clean.SugarG)
	assert.Equal(t, 0.0, clean.FiberG)
	assert.Equal(t, -5.0, clean.CarbsG, "parent is left for the validator to reject")
	assert.Equal(t, clean, SanitizeNutrients(clean))
}
