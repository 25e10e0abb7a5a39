package nutrition

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"nutripal/internal/pkg/common"
)

const (
	maxItemCalories    = 2500.0
	maxItemSodiumMg    = 5000.0
	maxServingGrams    = 2500.0
	minMismatchKcal    = 50.0
	mismatchRatio      = 0.25
	failureReportLimit = 5 * time.Second
)

// ValidationContext 驗證時的請求上下文，用於失敗記錄
type ValidationContext struct {
	UserID  string
	Query   string
	Portion string
}

// ValidationResult 食物驗證結果；Errors 非空時不可寫入
type ValidationResult struct {
	Passed   bool     `json:"passed"`
	Warnings []string `json:"warnings"`
	Errors   []string `json:"errors"`
}

// FailureReport 驗證失敗時送出的分析紀錄
type FailureReport struct {
	UserID     string
	Query      string
	Portion    string
	FoodName   string
	Violations []string
}

// FailureRecorder 接收驗證失敗報告；實作需自行處理非同步與錯誤
type FailureRecorder interface {
	RecordFailure(ctx context.Context, report FailureReport) error
}

// Validator 食物營養資料合理性檢查
type Validator struct {
	recorder FailureRecorder
}

// NewValidator 創建驗證器，recorder 可為 nil
func NewValidator(recorder FailureRecorder) *Validator {
	return &Validator{recorder: recorder}
}

// Execute 驗證多筆營養資料
func (v *Validator) Execute(ctx context.Context, items []NutritionData, vctx ValidationContext) ValidationResult {
	result := ValidationResult{
		Warnings: make([]string, 0),
		Errors:   make([]string, 0),
	}

	for _, item := range items {
		warnings, errs := checkItem(item)
		result.Warnings = append(result.Warnings, warnings...)
		result.Errors = append(result.Errors, errs...)

		if len(errs) > 0 {
			v.reportFailure(ctx, item, errs, vctx)
		}
	}

	result.Passed = len(result.Errors) == 0
	return result
}

func checkItem(item NutritionData) (warnings, errs []string) {
	name := item.FoodName
	if name == "" {
		name = "item"
	}

	for _, n := range []Nutrient{Calories, Protein, Carbs, FatTotal} {
		if item.Get(n) < 0 {
			errs = append(errs, fmt.Sprintf("%s: %s cannot be negative (%.1f)", name, n.Label(), item.Get(n)))
		}
	}

	// 幽靈熱量
	if item.Calories == 0 {
		if item.ProteinG > 0 || item.CarbsG > 0 || item.FatTotalG > 0 {
			errs = append(errs, fmt.Sprintf("%s: reports 0 calories but has macronutrients (protein %.1fg, carbs %.1fg, fat %.1fg)",
				name, item.ProteinG, item.CarbsG, item.FatTotalG))
		} else if kw, ok := HasCaloricKeyword(item.FoodName); ok {
			errs = append(errs, fmt.Sprintf("%s: reports 0 calories but %q foods always contain calories", name, kw))
		}
	}

	if item.Calories > 0 {
		expected := 4*item.ProteinG + 4*item.CarbsG + 9*item.FatTotalG
		diff := math.Abs(item.Calories - expected)
		if diff > math.Max(minMismatchKcal, mismatchRatio*item.Calories) {
			warnings = append(warnings, fmt.Sprintf("%s: calories (%.0f) do not match macros (~%.0f kcal)", name, item.Calories, expected))
		}
	}

	if item.Calories > maxItemCalories {
		warnings = append(warnings, fmt.Sprintf("%s: unusually high calories for one item (%.0f kcal)", name, item.Calories))
	}
	if item.SodiumMg > maxItemSodiumMg {
		warnings = append(warnings, fmt.Sprintf("%s: very high sodium (%.0f mg)", name, item.SodiumMg))
	}
	if grams, ok := ParseServingGrams(item.ServingSize); ok && grams > maxServingGrams {
		warnings = append(warnings, fmt.Sprintf("%s: serving size is very large (%.0f g)", name, grams))
	}

	return warnings, errs
}

// reportFailure 非同步送出失敗紀錄，錯誤只記錄日誌
func (v *Validator) reportFailure(ctx context.Context, item NutritionData, errs []string, vctx ValidationContext) {
	if v.recorder == nil {
		return
	}
	report := FailureReport{
		UserID:     vctx.UserID,
		Query:      vctx.Query,
		Portion:    vctx.Portion,
		FoodName:   item.FoodName,
		Violations: append([]string(nil), errs...),
	}

	go func() {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureReportLimit)
		defer cancel()
		if err := v.recorder.RecordFailure(rctx, report); err != nil {
			common.LogWarn("驗證失敗紀錄寫入失敗",
				zap.String("user_id", report.UserID),
				zap.String("food", report.FoodName),
				zap.Error(err),
			)
		}
	}()
}

var servingSizePattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(kg|kilograms?|g|grams?)\b`)

// ParseServingGrams 從份量字串（如 "250 g"、"1.2kg"）解析出公克數
func ParseServingGrams(serving string) (float64, bool) {
	m := servingSizePattern.FindStringSubmatch(strings.TrimSpace(serving))
	if m == nil {
		return 0, false
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	if strings.HasPrefix(strings.ToLower(m[2]), "k") {
		value *= 1000
	}
	return value, true
}
