package nutrition

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecorder struct {
	mu      sync.Mutex
	reports []FailureReport
	err     error
	done    chan struct{}
}

func newFakeRecorder(err error) *fakeRecorder {
	return &fakeRecorder{err: err, done: make(chan struct{}, 10)}
}

func (r *fakeRecorder) RecordFailure(_ context.Context, report FailureReport) error {
	r.mu.Lock()
	r.reports = append(r.reports, report)
	r.mu.Unlock()
	r.done <- struct{}{}
	return r.err
}

func (r *fakeRecorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		t.Fatal("failure report was not recorded")
	}
}

func TestValidatorExecute(t *testing.T) {
	tests := []struct {
		name     string
		item     NutritionData
		passed   bool
		warnings int
	}{
		{
			name:   "consistent item",
			item:   NutritionData{FoodName: "chicken breast", Calories: 165, ProteinG: 31, FatTotalG: 3.6},
			passed: true,
		},
		{
			name:     "calorie macro mismatch is a warning",
			item:     NutritionData{FoodName: "mystery bar", Calories: 500, ProteinG: 10, CarbsG: 20, FatTotalG: 5},
			passed:   true,
			warnings: 1,
		},
		{
			name:     "very high calories",
			item:     NutritionData{FoodName: "party platter", Calories: 3000, ProteinG: 150, CarbsG: 300, FatTotalG: 133},
			passed:   true,
			warnings: 1,
		},
		{
			name:     "very high sodium and large serving",
			item:     NutritionData{FoodName: "soup", ServingSize: "3 kg", Calories: 300, ProteinG: 15, CarbsG: 40, FatTotalG: 9, SodiumMg: 6000},
			passed:   true,
			warnings: 2,
		},
		{
			name:   "ghost calorie from macros",
			item:   NutritionData{FoodName: "shake", Calories: 0, ProteinG: 10},
			passed: false,
		},
		{
			name:   "ghost calorie from food name",
			item:   NutritionData{FoodName: "Olive Oil", Calories: 0},
			passed: false,
		},
		{
			name:   "negative macro",
			item:   NutritionData{FoodName: "salad", Calories: 20, CarbsG: -3},
			passed: false,
		},
		{
			name:   "zero calorie drink",
			item:   NutritionData{FoodName: "zero sugar soda", Calories: 0},
			passed: true,
		},
	}

	v := NewValidator(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := v.Execute(context.Background(), []NutritionData{tt.item}, ValidationContext{})
			assert.Equal(t, tt.passed, result.Passed)
			if tt.passed {
				assert.Empty(t, result.Errors)
			} else {
				assert.NotEmpty(t, result.Errors)
			}
			assert.Len(t, result.Warnings, tt.warnings)
		})
	}
}

func TestValidatorGhostCalorieIsHardError(t *testing.T) {
	v := NewValidator(nil)
	result := v.Execute(context.Background(), []NutritionData{{FoodName: "protein", Calories: 0, ProteinG: 10}}, ValidationContext{})
	require.False(t, result.Passed)
	assert.Len(t, result.Errors, 1)
	assert.Empty(t, result.Warnings)
}

func TestValidatorRecordsFailures(t *testing.T) {
	recorder := newFakeRecorder(nil)
	v := NewValidator(recorder)

	result := v.Execute(context.Background(), []NutritionData{{FoodName: "butter", Calories: 0}}, ValidationContext{
		UserID:  "u1",
		Query:   "a pat of butter",
		Portion: "1 pat",
	})
	require.False(t, result.Passed)

	recorder.wait(t)
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	require.Len(t, recorder.reports, 1)
	assert.Equal(t, "u1", recorder.reports[0].UserID)
	assert.Equal(t, "butter", recorder.reports[0].FoodName)
	assert.Equal(t, "1 pat", recorder.reports[0].Portion)
	assert.NotEmpty(t, recorder.reports[0].Violations)
}

func TestValidatorRecorderFailureDoesNotChangeResult(t *testing.T) {
	recorder := newFakeRecorder(errors.New("db down"))
	v := NewValidator(recorder)

	result := v.Execute(context.Background(), []NutritionData{{FoodName: "egg", Calories: 0, ProteinG: 6}}, ValidationContext{UserID: "u1"})
	recorder.wait(t)

	assert.False(t, result.Passed)
	assert.Len(t, result.Errors, 1)
}

func TestParseServingGrams(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"250 g", 250, true},
		{"1.2kg", 1200, true},
		{"100 grams", 100, true},
		{"1 cup", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseServingGrams(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.InDelta(t, tt.want, got, 0.001, tt.in)
	}
}

func TestValidateGoal(t *testing.T) {
	assert.Len(t, ValidateGoal(Calories, 800).Warnings, 1)
	assert.Len(t, ValidateGoal(Calories, 6000).Warnings, 1)
	assert.Empty(t, ValidateGoal(Calories, 2000).Warnings)
	assert.Len(t, ValidateGoal(Protein, 20).Warnings, 1)
	assert.Len(t, ValidateGoal(Protein, 450).Warnings, 1)
	assert.Len(t, ValidateGoal(Sodium, 6000).Warnings, 1)
	assert.Len(t, ValidateGoal(Fiber, 150).Warnings, 1)
	assert.Empty(t, ValidateGoal(VitaminC, 5000).Warnings)
}

func TestNutritionDataArithmetic(t *testing.T) {
	a := NutritionData{FoodName: "a", Calories: 100, ProteinG: 10, SodiumMg: 200}
	b := NutritionData{FoodName: "b", Calories: 50, ProteinG: 5, SodiumMg: 100}

	sum := a.Add(b)
	assert.Equal(t, "a", sum.FoodName)
	assert.Equal(t, 150.0, sum.Calories)
	assert.Equal(t, 300.0, sum.SodiumMg)

	half := sum.Scale(0.5)
	assert.Equal(t, 75.0, half.Calories)
	assert.Equal(t, 7.5, half.ProteinG)

	total := Sum([]NutritionData{a, b, b})
	assert.Equal(t, 200.0, total.Calories)

	n, ok := ParseNutrient("Carbohydrates")
	require.True(t, ok)
	assert.Equal(t, Carbs, n)
	assert.Equal(t, "mg", Sodium.Unit())
	assert.Equal(t, "kcal", Calories.Unit())
}
