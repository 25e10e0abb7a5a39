package intent

import (
	"context"
	"errors"
	"testing"

	"nutripal/internal/core/ai/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	content string
	err     error
	calls   []service.Call
}

func (f *fakeCompleter) Complete(_ context.Context, call service.Call) (string, error) {
	f.calls = append(f.calls, call)
	return f.content, f.err
}

func TestParseIntent(t *testing.T) {
	assert.Equal(t, LogFood, ParseIntent("Log Food"))
	assert.Equal(t, CreateRecipe, ParseIntent("save-recipe"))
	assert.Equal(t, Greeting, ParseIntent("greet"))
	assert.Equal(t, Unknown, ParseIntent("dance"))
	assert.Equal(t, Unknown, ParseIntent(""))
}

func TestParseResultToleratesLooseOutput(t *testing.T) {
	content := "```json\n{intent: \"create_recipe\", \"confidence\": \"0.8\", \"servings\": \"4\"," +
		" \"ingredients\": [{\"name\": \"flour\", \"quantity\": \"1 1/2\", \"unit\": \"Cup\"}, {\"name\": \"egg\", \"quantity\": 2}, {\"name\": \"\"},]," +
		" \"goals\": [{\"nutrient\": \"protein\", \"target\": \"150\"}, {\"nutrient\": \"fat\"}]}\n```"

	r, err := ParseResult(content)
	require.NoError(t, err)
	assert.Equal(t, CreateRecipe, r.Intent)
	assert.InDelta(t, 0.8, r.Confidence, 1e-9)
	assert.Equal(t, 4.0, r.Servings)
	assert.Equal(t, AmbiguityNone, r.Ambiguity)

	require.Len(t, r.Ingredients, 2)
	require.NotNil(t, r.Ingredients[0].Quantity)
	assert.Equal(t, 1.5, *r.Ingredients[0].Quantity)
	assert.Equal(t, "cup", r.Ingredients[0].Unit)
	assert.Equal(t, 2.0, *r.Ingredients[1].Quantity)

	require.Len(t, r.Goals, 1)
	assert.Equal(t, GoalChange{Nutrient: "protein", Target: 150}, r.Goals[0])
}

func TestParseResultMissingFields(t *testing.T) {
	r, err := ParseResult(`{"intent": "log_food", "food_items": [{"name": "apple", "portion": 1}, {"name": " "}]}`)
	require.NoError(t, err)
	assert.Equal(t, LogFood, r.Intent)
	assert.Equal(t, []FoodItem{{Name: "apple", Portion: "1"}}, r.FoodItems)
	assert.False(t, r.NeedsClarification())

	_, err = ParseResult("I could not decide")
	assert.Error(t, err)
}

func TestExtract(t *testing.T) {
	ai := &fakeCompleter{content: `{"intent":"log_food","ambiguity_level":"HIGH","clarification_question":"Which pizza?"}`}
	e := NewExtractor(ai)

	r, err := e.Extract(context.Background(), Input{
		Message:         "the big one",
		OriginalMessage: "I had pizza",
		PriorReasoning:  "size unknown",
	})
	require.NoError(t, err)
	assert.True(t, r.NeedsClarification())
	assert.Equal(t, "Which pizza?", r.ClarificationQuestion)

	require.Len(t, ai.calls, 1)
	assert.Equal(t, capability, ai.calls[0].Capability)
	assert.False(t, ai.calls[0].Cacheable)
	assert.Contains(t, ai.calls[0].Prompt, `"I had pizza"`)
	assert.Contains(t, ai.calls[0].Prompt, "size unknown")

	_, err = NewExtractor(&fakeCompleter{err: errors.New("down")}).Extract(context.Background(), Input{Message: "x"})
	assert.Error(t, err)
}

func TestBuildPromptKeepsRecentHistory(t *testing.T) {
	history := make([]HistoryMessage, 0, 10)
	for i := 0; i < 10; i++ {
		history = append(history, HistoryMessage{Role: "user", Content: string(rune('a' + i))})
	}
	p := BuildPrompt(Input{Message: "hi", History: history, BufferSummary: "recent foods: apple"})

	assert.NotContains(t, p, "user: a\n")
	assert.Contains(t, p, "user: j\n")
	assert.Contains(t, p, "Session context: recent foods: apple")
	assert.Contains(t, p, "User message: hi")
}
