package intent

import (
	"strings"

	"nutripal/internal/core/recipe"
)

// Intent 使用者訊息的意圖
type Intent string

const (
	LogFood        Intent = "log_food"
	LogRecipe      Intent = "log_recipe"
	CreateRecipe   Intent = "create_recipe"
	UpdateGoals    Intent = "update_goals"
	SuggestGoals   Intent = "suggest_goals"
	ShowGoals      Intent = "show_goals"
	QueryNutrition Intent = "query_nutrition"
	Greeting       Intent = "greeting"
	OffTopic       Intent = "off_topic"
	Cancel         Intent = "cancel"
	Confirm        Intent = "confirm"
	Decline        Intent = "decline"
	Unknown        Intent = "unknown"
)

var intentAliases = map[string]Intent{
	"log_food":        LogFood,
	"food_log":        LogFood,
	"log_meal":        LogFood,
	"log_recipe":      LogRecipe,
	"recipe_log":      LogRecipe,
	"create_recipe":   CreateRecipe,
	"save_recipe":     CreateRecipe,
	"recipe":          CreateRecipe,
	"update_goals":    UpdateGoals,
	"set_goals":       UpdateGoals,
	"update_goal":     UpdateGoals,
	"suggest_goals":   SuggestGoals,
	"show_goals":      ShowGoals,
	"get_goals":       ShowGoals,
	"query_nutrition": QueryNutrition,
	"nutrition_query": QueryNutrition,
	"question":        QueryNutrition,
	"greeting":        Greeting,
	"greet":           Greeting,
	"off_topic":       OffTopic,
	"cancel":          Cancel,
	"confirm":         Confirm,
	"decline":         Decline,
}

// ParseIntent 正規化模型輸出的意圖名稱，無法辨識時回傳 Unknown
func ParseIntent(s string) Intent {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
	key = strings.ReplaceAll(key, "-", "_")
	if i, ok := intentAliases[key]; ok {
		return i
	}
	return Unknown
}

// Ambiguity 模糊程度
type Ambiguity string

const (
	AmbiguityNone   Ambiguity = "none"
	AmbiguityLow    Ambiguity = "low"
	AmbiguityMedium Ambiguity = "medium"
	AmbiguityHigh   Ambiguity = "high"
)

// FoodItem 訊息中提到的食物與份量
type FoodItem struct {
	Name    string `json:"name"`
	Portion string `json:"portion,omitempty"`
}

// String 組合成查詢描述，例如 "2 slices pizza"
func (f FoodItem) String() string {
	if f.Portion == "" {
		return f.Name
	}
	return f.Portion + " " + f.Name
}

// GoalChange 單一營養目標的變更
type GoalChange struct {
	Nutrient string  `json:"nutrient"`
	Target   float64 `json:"target"`
}

// HistoryMessage 最近的對話紀錄
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Input 意圖擷取的輸入
type Input struct {
	Message string
	History []HistoryMessage
	// BufferSummary 對話緩衝的摘要（進行中的流程、最近食物）
	BufferSummary string
	// OriginalMessage 與 PriorReasoning 只在釐清回覆時出現
	OriginalMessage string
	PriorReasoning  string
}

// Result 意圖擷取結果，所有欄位都可能缺漏
type Result struct {
	Intent                Intent              `json:"intent"`
	Confidence            float64             `json:"confidence"`
	Ambiguity             Ambiguity           `json:"ambiguity_level"`
	AmbiguityReasons      []string            `json:"ambiguity_reasons,omitempty"`
	Reasoning             string              `json:"reasoning,omitempty"`
	ClarificationQuestion string              `json:"clarification_question,omitempty"`
	FoodItems             []FoodItem          `json:"food_items,omitempty"`
	RecipeName            string              `json:"recipe_name,omitempty"`
	Ingredients           []recipe.Ingredient `json:"ingredients,omitempty"`
	Servings              float64             `json:"servings,omitempty"`
	Goals                 []GoalChange        `json:"goals,omitempty"`
	Question              string              `json:"question,omitempty"`
}

// NeedsClarification 高度模糊或沒有可辨識的意圖時需要追問
func (r *Result) NeedsClarification() bool {
	return r.Ambiguity == AmbiguityHigh
}
