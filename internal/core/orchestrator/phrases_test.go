package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"nutripal/internal/core/nutrition"
)

func TestClassify(t *testing.T) {
	p := DefaultPhrases()

	cases := []struct {
		text string
		want ReplyKind
	}{
		{"yes", ReplyConfirm},
		{"Yes!", ReplyConfirm},
		{"yes please", ReplyConfirm},
		{"sounds good", ReplyConfirm},
		{"ok, log it", ReplyConfirm},
		{"no", ReplyDecline},
		{"nope.", ReplyDecline},
		{"don't log it", ReplyDecline},
		{"no, 3 slices", ReplyOther},
		{"yes 2 cups", ReplyOther},
		{"3 slices", ReplyOther},
		{"nothing else", ReplyOther},
		{"yesterday", ReplyOther},
		{"", ReplyOther},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, p.Classify(tc.text), tc.text)
	}
}

func TestIsCancel(t *testing.T) {
	p := DefaultPhrases()

	assert.True(t, p.IsCancel("cancel"))
	assert.True(t, p.IsCancel("Never mind."))
	assert.True(t, p.IsCancel("stop, forget it"))
	assert.False(t, p.IsCancel("stop adding salt to my soup recipe please"))
	assert.False(t, p.IsCancel("cancellation"))
	assert.False(t, p.IsCancel(""))
	assert.True(t, p.IsCancel("cancel that please"))
	assert.True(t, p.IsCancel("never mind, thanks"))
	assert.False(t, p.IsCancel("reset protein to 150"))
	assert.False(t, p.IsCancel("stop 2"))
	assert.False(t, p.IsCancel("reset my calorie goal"))
}

func TestIsGreeting(t *testing.T) {
	p := DefaultPhrases()

	assert.True(t, p.IsGreeting("hi"))
	assert.True(t, p.IsGreeting("Hello there!"))
	assert.True(t, p.IsGreeting("thank you so much"))
	assert.True(t, p.IsGreeting("good morning"))
	assert.False(t, p.IsGreeting("hi, I had pizza"))
	assert.False(t, p.IsGreeting("history of pizza"))
	assert.False(t, p.IsGreeting("hey can you log two eggs for breakfast"))
}

func TestParsePortion(t *testing.T) {
	got, ok := parsePortion("actually 3 slices")
	assert.True(t, ok)
	assert.Equal(t, "3 slices", got)

	got, ok = parsePortion("make it 250g")
	assert.True(t, ok)
	assert.Equal(t, "250g", got)

	_, ok = parsePortion("I had a banana")
	assert.False(t, ok)
}

func TestFindNutrientMention(t *testing.T) {
	n, ok := findNutrientMention("make protein 160")
	assert.True(t, ok)
	assert.Equal(t, nutrition.Protein, n)

	_, ok = findNutrientMention("make it 160")
	assert.False(t, ok)
}

func TestParseNumber(t *testing.T) {
	v, ok := parseNumber("set it to 2,200")
	assert.True(t, ok)
	assert.Equal(t, 2200.0, v)

	_, ok = parseNumber("none")
	assert.False(t, ok)
}
