package recipe

import (
	"fmt"
	"strconv"
	"strings"
)

// Ingredient 食譜食材；Quantity 為 nil 表示使用者未提供數量
type Ingredient struct {
	Name     string   `json:"name"`
	Quantity *float64 `json:"quantity,omitempty"`
	Unit     string   `json:"unit,omitempty"`
}

// Qty 建立數量指標的輔助函式
func Qty(v float64) *float64 {
	return &v
}

// String 還原成使用者可讀的描述，例如 "2 cup flour"
func (i Ingredient) String() string {
	parts := make([]string, 0, 3)
	if i.Quantity != nil {
		parts = append(parts, strconv.FormatFloat(*i.Quantity, 'f', -1, 64))
	}
	if i.Unit != "" {
		parts = append(parts, i.Unit)
	}
	parts = append(parts, i.Name)
	return strings.Join(parts, " ")
}

// Confidence 批量估算的可信度
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Measure 轉換後的度量種類
type Measure string

const (
	MeasureMass   Measure = "mass"
	MeasureVolume Measure = "volume"
	MeasureCount  Measure = "count"
)

// BreakdownItem 單一食材的換算結果
type BreakdownItem struct {
	Ingredient string  `json:"ingredient"`
	Grams      float64 `json:"grams,omitempty"`
	Ml         float64 `json:"ml,omitempty"`
	Measure    Measure `json:"measure"`
}

// BatchCalculationResult 整份食譜的總量估算
type BatchCalculationResult struct {
	TotalGrams             float64         `json:"totalGrams"`
	TotalMl                float64         `json:"totalMl"`
	EstimatedSize          string          `json:"estimatedSize"`
	IngredientBreakdown    []BreakdownItem `json:"ingredientBreakdown"`
	UnconvertedIngredients []string        `json:"unconvertedIngredients"`
	Confidence             Confidence      `json:"confidence"`
}

// BatchSize 整份食譜的總量
type BatchSize struct {
	Amount float64 `json:"amount"`
	Unit   string  `json:"unit"`
}

// String 例如 "1.2kg"、"750ml"
func (b BatchSize) String() string {
	switch b.Unit {
	case "g":
		return FormatGrams(b.Amount)
	case "ml":
		return FormatMl(b.Amount)
	}
	return fmt.Sprintf("%g%s", b.Amount, b.Unit)
}

// BatchSizeFromResult 由估算結果取得總量，質量優先於體積
func BatchSizeFromResult(r BatchCalculationResult) BatchSize {
	if r.TotalGrams > 0 {
		return BatchSize{Amount: r.TotalGrams, Unit: "g"}
	}
	if r.TotalMl > 0 {
		return BatchSize{Amount: r.TotalMl, Unit: "ml"}
	}
	return BatchSize{}
}
