package intent

import (
	"context"
	"fmt"
	"strings"

	"nutripal/internal/core/ai/service"
	"nutripal/internal/core/recipe"
	"nutripal/internal/pkg/common"

	"go.uber.org/zap"
)

const (
	capability = "intent"
	maxHistory = 6
)

// Completer 能力呼叫介面，由 service.Service 實作
type Completer interface {
	Complete(ctx context.Context, call service.Call) (string, error)
}

// Extractor 以語言模型擷取意圖與結構化資料
type Extractor struct {
	ai Completer
}

// NewExtractor 創建意圖擷取器
func NewExtractor(ai Completer) *Extractor {
	return &Extractor{ai: ai}
}

const systemPrompt = `You are the intent classifier of a nutrition logging assistant.
Return ONLY a JSON object with these keys (omit what does not apply):
{
  "intent": one of log_food, log_recipe, create_recipe, update_goals, suggest_goals, show_goals, query_nutrition, greeting, off_topic, cancel, confirm, decline,
  "confidence": number 0..1,
  "ambiguity_level": none | low | medium | high,
  "ambiguity_reasons": [string],
  "reasoning": short string,
  "clarification_question": question to ask when ambiguity_level is high,
  "food_items": [{"name": string, "portion": string}],
  "recipe_name": string,
  "ingredients": [{"name": string, "quantity": number, "unit": string}],
  "servings": number,
  "goals": [{"nutrient": string, "target": number}],
  "question": the nutrition question when intent is query_nutrition
}
Use log_recipe when the user ate a recipe they saved before, create_recipe when they describe a new recipe or ingredient list.`

// Extract 擷取意圖；模型輸出缺欄位時以零值補齊
func (e *Extractor) Extract(ctx context.Context, in Input) (*Result, error) {
	content, err := e.ai.Complete(ctx, service.Call{
		Capability:  capability,
		System:      systemPrompt,
		Prompt:      BuildPrompt(in),
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("extract intent: %w", err)
	}

	result, err := ParseResult(content)
	if err != nil {
		common.LogWarn("意圖解析失敗",
			zap.String("preview", common.Truncate(content, 120)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("extract intent: %w", err)
	}
	return result, nil
}

// BuildPrompt 組合訊息、近期對話、緩衝摘要與釐清內容
func BuildPrompt(in Input) string {
	var b strings.Builder

	history := in.History
	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}
	if len(history) > 0 {
		b.WriteString("Recent conversation:\n")
		for _, h := range history {
			fmt.Fprintf(&b, "%s: %s\n", h.Role, h.Content)
		}
		b.WriteString("\n")
	}

	if in.BufferSummary != "" {
		fmt.Fprintf(&b, "Session context: %s\n\n", in.BufferSummary)
	}

	if in.OriginalMessage != "" {
		fmt.Fprintf(&b, "The user was asked to clarify this earlier message: %q\n", in.OriginalMessage)
		if in.PriorReasoning != "" {
			fmt.Fprintf(&b, "It was ambiguous because: %s\n", in.PriorReasoning)
		}
		b.WriteString("Interpret the new message as the answer to that question.\n\n")
	}

	fmt.Fprintf(&b, "User message: %s", in.Message)
	return b.String()
}

// rawResult 寬鬆解析用，數值欄位可能是字串
type rawResult struct {
	Intent                string          `json:"intent"`
	Confidence            interface{}     `json:"confidence"`
	Ambiguity             string          `json:"ambiguity_level"`
	AmbiguityReasons      []string        `json:"ambiguity_reasons"`
	Reasoning             string          `json:"reasoning"`
	ClarificationQuestion string          `json:"clarification_question"`
	FoodItems             []rawFoodItem   `json:"food_items"`
	RecipeName            string          `json:"recipe_name"`
	Ingredients           []rawIngredient `json:"ingredients"`
	Servings              interface{}     `json:"servings"`
	Goals                 []rawGoal       `json:"goals"`
	Question              string          `json:"question"`
}

type rawFoodItem struct {
	Name    string      `json:"name"`
	Portion interface{} `json:"portion"`
}

type rawIngredient struct {
	Name     string      `json:"name"`
	Quantity interface{} `json:"quantity"`
	Unit     string      `json:"unit"`
}

type rawGoal struct {
	Nutrient string      `json:"nutrient"`
	Target   interface{} `json:"target"`
}

// ParseResult 解析模型輸出
func ParseResult(content string) (*Result, error) {
	var raw rawResult
	if err := common.ParseAIJSON(content, &raw); err != nil {
		return nil, err
	}

	r := &Result{
		Intent:                ParseIntent(raw.Intent),
		Ambiguity:             parseAmbiguity(raw.Ambiguity),
		AmbiguityReasons:      raw.AmbiguityReasons,
		Reasoning:             strings.TrimSpace(raw.Reasoning),
		ClarificationQuestion: strings.TrimSpace(raw.ClarificationQuestion),
		RecipeName:            strings.TrimSpace(raw.RecipeName),
		Question:              strings.TrimSpace(raw.Question),
	}
	if c, ok := common.ToFloat(raw.Confidence); ok {
		r.Confidence = c
	}
	if s, ok := common.ToFloat(raw.Servings); ok && s > 0 {
		r.Servings = s
	}

	for _, f := range raw.FoodItems {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			continue
		}
		item := FoodItem{Name: name}
		switch p := f.Portion.(type) {
		case string:
			item.Portion = strings.TrimSpace(p)
		case float64:
			item.Portion = fmt.Sprintf("%g", p)
		}
		r.FoodItems = append(r.FoodItems, item)
	}

	for _, ing := range raw.Ingredients {
		if parsed, ok := toIngredient(ing); ok {
			r.Ingredients = append(r.Ingredients, parsed)
		}
	}

	for _, g := range raw.Goals {
		target, ok := common.ToFloat(g.Target)
		if !ok || strings.TrimSpace(g.Nutrient) == "" {
			continue
		}
		r.Goals = append(r.Goals, GoalChange{Nutrient: strings.TrimSpace(g.Nutrient), Target: target})
	}

	return r, nil
}

func toIngredient(raw rawIngredient) (recipe.Ingredient, bool) {
	name := strings.TrimSpace(raw.Name)
	if name == "" {
		return recipe.Ingredient{}, false
	}
	ing := recipe.Ingredient{Name: name, Unit: strings.ToLower(strings.TrimSpace(raw.Unit))}
	switch q := raw.Quantity.(type) {
	case float64:
		ing.Quantity = recipe.Qty(q)
	case string:
		if v, ok := recipe.ParseQuantity(q); ok {
			ing.Quantity = recipe.Qty(v)
		}
	}
	return ing, true
}

func parseAmbiguity(s string) Ambiguity {
	switch Ambiguity(strings.ToLower(strings.TrimSpace(s))) {
	case AmbiguityLow:
		return AmbiguityLow
	case AmbiguityMedium:
		return AmbiguityMedium
	case AmbiguityHigh:
		return AmbiguityHigh
	default:
		return AmbiguityNone
	}
}
