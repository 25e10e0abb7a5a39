package lookup

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"nutripal/internal/core/ai/service"
	"nutripal/internal/core/nutrition"
	"nutripal/internal/core/recipe"
	"nutripal/internal/pkg/common"

	"go.uber.org/zap"
)

const capability = "lookup"

// ErrNotFound 查無營養資料
var ErrNotFound = errors.New("nutrition data not found")

// Completer 能力呼叫介面，由 service.Service 實作
type Completer interface {
	Complete(ctx context.Context, call service.Call) (string, error)
}

// Query 查詢內容：單一食物描述或一組食材
type Query struct {
	Description string
	Portion     string
	Ingredients []recipe.Ingredient
}

func (q Query) prompt() string {
	if len(q.Ingredients) > 0 {
		var b strings.Builder
		b.WriteString("Give nutrition for each ingredient at the stated quantity:\n")
		for _, ing := range q.Ingredients {
			fmt.Fprintf(&b, "- %s\n", ing.String())
		}
		return b.String()
	}
	if q.Portion != "" {
		return fmt.Sprintf("Give nutrition for: %s (portion: %s)", q.Description, q.Portion)
	}
	return "Give nutrition for: " + q.Description
}

// Analyzer 營養查詢
type Analyzer struct {
	ai Completer
}

// NewAnalyzer 創建營養查詢器
func NewAnalyzer(ai Completer) *Analyzer {
	return &Analyzer{ai: ai}
}

const systemPrompt = `You are a nutrition database. Return ONLY a JSON object:
{"found": true|false, "items": [{"food_name": string, "serving_size": string,
 "calories": number, "protein_g": number, "fat_total_g": number, "carbs_g": number,
 "fiber_g": number, "sugar_g": number, "added_sugars_g": number, "fat_saturated_g": number,
 "fat_poly_g": number, "fat_mono_g": number, "fat_trans_g": number, "sodium_mg": number,
 "cholesterol_mg": number, "potassium_mg": number}]}
Use one item per food or ingredient. serving_size must include grams when known, e.g. "1 cup (158g)".
Set "found" to false when the text is not a food.`

// Lookup 查詢營養資料，查無時回傳 ErrNotFound
func (a *Analyzer) Lookup(ctx context.Context, q Query) ([]nutrition.NutritionData, error) {
	if strings.TrimSpace(q.Description) == "" && len(q.Ingredients) == 0 {
		return nil, ErrNotFound
	}

	content, err := a.ai.Complete(ctx, service.Call{
		Capability:  capability,
		System:      systemPrompt,
		Prompt:      q.prompt(),
		Cacheable:   true,
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("nutrition lookup: %w", err)
	}

	items, err := ParseItems(content)
	if err != nil {
		common.LogWarn("營養資料解析失敗",
			zap.String("preview", common.Truncate(content, 120)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("nutrition lookup: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrNotFound
	}
	return items, nil
}

type rawLookup struct {
	Found *bool                    `json:"found"`
	Items []map[string]interface{} `json:"items"`
}

// ParseItems 解析模型輸出；鍵名可用別名（protein、fat、carbohydrates 等）
func ParseItems(content string) ([]nutrition.NutritionData, error) {
	var raw rawLookup
	if err := common.ParseAIJSON(content, &raw); err != nil {
		return nil, err
	}
	if raw.Found != nil && !*raw.Found {
		return nil, nil
	}

	out := make([]nutrition.NutritionData, 0, len(raw.Items))
	for _, fields := range raw.Items {
		var d nutrition.NutritionData
		for key, val := range fields {
			switch key {
			case "food_name", "name":
				d.FoodName, _ = val.(string)
				continue
			case "serving_size", "portion":
				d.ServingSize, _ = val.(string)
				continue
			}
			n, ok := nutrition.ParseNutrient(key)
			if !ok {
				continue
			}
			if v, ok := common.ToFloat(val); ok {
				d.Set(n, v)
			}
		}
		d.FoodName = strings.TrimSpace(d.FoodName)
		if d.FoodName == "" {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}
