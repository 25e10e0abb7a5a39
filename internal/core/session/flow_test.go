package session

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutripal/internal/core/nutrition"
	"nutripal/internal/core/recipe"
)

func testFlow() *RecipeFlow {
	return NewRecipeFlow("chili", []recipe.Ingredient{
		{Name: "ground beef", Quantity: recipe.Qty(500), Unit: "g"},
		{Name: "kidney beans", Quantity: recipe.Qty(400), Unit: "g"},
	}, nutrition.NutritionData{FoodName: "chili", Calories: 1600, ProteinG: 120, CarbsG: 80, FatTotalG: 80})
}

func TestRecipeFlowTransitions(t *testing.T) {
	f := testFlow()
	assert.Equal(t, StepParsing, f.Step())
	assert.Equal(t, "beef,kidney bean", f.Fingerprint)

	assert.ErrorIs(t, f.ConfirmBatch(), ErrIllegalTransition)
	assert.ErrorIs(t, f.SetServings(4), ErrIllegalTransition)

	estimate := recipe.CalculateBatchSize(f.Ingredients)
	require.NoError(t, f.ProposeBatch(estimate))
	assert.Equal(t, StepBatchConfirm, f.Step())
	assert.ErrorIs(t, f.ProposeBatch(estimate), ErrIllegalTransition)

	require.NoError(t, f.CorrectBatch(recipe.BatchSize{Amount: 2000, Unit: "ml"}))
	st, ok := f.Stage().(BatchConfirmStage)
	require.True(t, ok)
	assert.Equal(t, 2000.0, st.BatchSize.Amount)
	assert.Equal(t, 900.0, st.Estimate.TotalGrams)

	require.NoError(t, f.ConfirmBatch())
	assert.Equal(t, StepServingsConfirm, f.Step())
	assert.ErrorIs(t, f.CorrectBatch(recipe.BatchSize{Amount: 1, Unit: "g"}), ErrIllegalTransition)
	assert.Error(t, f.SetServings(0))

	_, ok = f.PerServing()
	assert.False(t, ok)

	require.NoError(t, f.SetServings(4))
	assert.Equal(t, StepReadyToSave, f.Step())

	per, ok := f.PerServing()
	require.True(t, ok)
	assert.Equal(t, 400.0, per.Calories)
	assert.Equal(t, 30.0, per.ProteinG)
	assert.Equal(t, "chili", per.FoodName)

	require.NoError(t, f.ReviseServings(8))
	assert.Error(t, f.ReviseServings(-1))
	per, ok = f.PerServing()
	require.True(t, ok)
	assert.Equal(t, 200.0, per.Calories)
}

func TestRecipeFlowJSONRoundTripKeepsStage(t *testing.T) {
	f := testFlow()
	require.NoError(t, f.ProposeBatch(recipe.CalculateBatchSize(f.Ingredients)))
	require.NoError(t, f.ConfirmBatch())
	require.NoError(t, f.SetServings(6))

	data, err := json.Marshal(f)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"step":"ready_to_save"`)

	var decoded RecipeFlow
	require.NoError(t, json.Unmarshal(data, &decoded))
	st, ok := decoded.Stage().(ReadyToSaveStage)
	require.True(t, ok)
	assert.Equal(t, 6.0, st.Servings)
	assert.Equal(t, 900.0, st.BatchSize.Amount)
}

func TestRecipeFlowRejectsMismatchedStageData(t *testing.T) {
	tests := []string{
		`{"step":"parsing","servings":4}`,
		`{"step":"batch_confirm","batchSize":{"amount":1,"unit":"g"}}`,
		`{"step":"servings_confirm","batchSize":{"amount":1,"unit":"g"},"servings":2}`,
		`{"step":"ready_to_save","batchSize":{"amount":1,"unit":"g"},"servings":0}`,
		`{"step":"cooking"}`,
	}
	for _, raw := range tests {
		var f RecipeFlow
		assert.ErrorIs(t, json.Unmarshal([]byte(raw), &f), ErrInvalidStage, raw)
	}
}

func TestBufferPreservesUnknownKeys(t *testing.T) {
	raw := `{"recentFoods":["toast"],"lastTopic":"breakfast","client_flag":{"a":1},"flowState":{"step":"servings_confirm","recipeName":"soup","ingredients":[],"totalNutrition":{"food_name":"soup","calories":0,"protein_g":0,"fat_total_g":0,"carbs_g":0},"batchSize":{"amount":1500,"unit":"ml"}}}`

	var b Buffer
	require.NoError(t, json.Unmarshal([]byte(raw), &b))
	assert.Equal(t, []string{"toast"}, b.RecentFoods)
	require.NotNil(t, b.FlowState)
	assert.Equal(t, StepServingsConfirm, b.FlowState.Step())
	assert.Equal(t, []string{"client_flag"}, b.ExtraKeys())

	out, err := json.Marshal(b)
	require.NoError(t, err)

	var generic map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &generic))
	assert.JSONEq(t, `{"a":1}`, string(generic["client_flag"]))
	assert.JSONEq(t, `"breakfast"`, string(generic["lastTopic"]))
}

func TestBufferApplyAndClone(t *testing.T) {
	b := Buffer{RecentFoods: []string{"a"}}
	clone := b.Clone()
	clone.Apply(BufferPatch{RecentFoods: []string{"b"}, FlowState: testFlow()})

	assert.Equal(t, []string{"a"}, b.RecentFoods)
	assert.Nil(t, b.FlowState)
	assert.Equal(t, []string{"a", "b"}, clone.RecentFoods)

	clone.Apply(BufferPatch{ClearFlowState: true, Extra: map[string]json.RawMessage{"x": json.RawMessage(`1`)}})
	assert.Nil(t, clone.FlowState)
	clone.Apply(BufferPatch{Extra: map[string]json.RawMessage{"x": nil}})
	assert.Empty(t, clone.Extra)
}

func TestStateCloneIsDeep(t *testing.T) {
	s := NewState("s", "u", time.Now())
	s.Buffer.FlowState = testFlow()
	s.MissingFields = []string{"servings"}

	c := s.Clone()
	c.Buffer.FlowState.Ingredients[0].Name = "changed"
	*c.Buffer.FlowState.Ingredients[0].Quantity = 1
	c.MissingFields[0] = "other"

	assert.Equal(t, "ground beef", s.Buffer.FlowState.Ingredients[0].Name)
	assert.Equal(t, 500.0, *s.Buffer.FlowState.Ingredients[0].Quantity)
	assert.Equal(t, "servings", s.MissingFields[0])
}
