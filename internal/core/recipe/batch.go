package recipe

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// 質量單位換算為公克
var massUnits = map[string]float64{
	"g": 1, "gr": 1, "gram": 1, "grams": 1,
	"kg": 1000, "kgs": 1000, "kilo": 1000, "kilos": 1000, "kilogram": 1000, "kilograms": 1000,
	"oz": 28.3495, "ounce": 28.3495, "ounces": 28.3495,
	"lb": 453.592, "lbs": 453.592, "pound": 453.592, "pounds": 453.592,
}

// 體積單位換算為毫升（美制）
var volumeUnits = map[string]float64{
	"ml": 1, "milliliter": 1, "milliliters": 1, "millilitre": 1, "millilitres": 1,
	"l": 1000, "liter": 1000, "liters": 1000, "litre": 1000, "litres": 1000,
	"cup": 236.59, "cups": 236.59, "c": 236.59,
	"tbsp": 14.787, "tbs": 14.787, "tablespoon": 14.787, "tablespoons": 14.787,
	"tsp": 4.929, "teaspoon": 4.929, "teaspoons": 4.929,
	"fl oz": 29.574, "floz": 29.574, "fluid ounce": 29.574, "fluid ounces": 29.574,
	"pint": 473.176, "pints": 473.176, "pt": 473.176,
	"quart": 946.353, "quarts": 946.353, "qt": 946.353,
	"gallon": 3785.41, "gallons": 3785.41, "gal": 3785.41,
}

// 可數單位，以食材平均重量換算
var countUnits = map[string]bool{
	"": true, "whole": true, "large": true, "medium": true, "small": true,
	"egg-sized": true, "piece": true, "pieces": true, "item": true, "items": true,
	"clove": true, "cloves": true, "slice": true, "slices": true,
}

// 常見食材單顆平均重量（公克）
var averageMass = map[string]float64{
	"egg":            50,
	"banana":         118,
	"apple":          182,
	"orange":         131,
	"lemon":          58,
	"lime":           67,
	"avocado":        150,
	"onion":          110,
	"red onion":      140,
	"garlic":         5,
	"shallot":        25,
	"tomato":         123,
	"cherry tomato":  17,
	"potato":         173,
	"sweet potato":   130,
	"carrot":         61,
	"celery":         40,
	"bell pepper":    119,
	"zucchini":       196,
	"cucumber":       301,
	"chicken breast": 174,
	"chicken thigh":  116,
	"tortilla":       45,
	"bread":          30,
	"bagel":          105,
	"strawberry":     12,
	"mushroom":       18,
}

const (
	defaultItemMass = 100.0
	eggSizedMass    = 50.0
)

// averageMassKeys 依長度由長到短，確保最長的關鍵字優先
var averageMassKeys = func() []string {
	keys := make([]string, 0, len(averageMass))
	for k := range averageMass {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}()

func normalizeUnit(unit string) string {
	unit = strings.ToLower(strings.TrimSpace(unit))
	unit = strings.TrimSuffix(unit, ".")
	return strings.Join(strings.Fields(unit), " ")
}

// itemMass 依名稱子字串找出單顆平均重量，找不到時回傳預設值
func itemMass(name string) float64 {
	lower := strings.ToLower(name)
	for _, key := range averageMassKeys {
		if strings.Contains(lower, key) {
			return averageMass[key]
		}
	}
	return defaultItemMass
}

// convert 將單一食材換算為質量或體積；ok 為 false 表示無法換算
func convert(ing Ingredient) (BreakdownItem, bool) {
	unit := normalizeUnit(ing.Unit)
	item := BreakdownItem{Ingredient: ing.Name}

	if ing.Quantity != nil && *ing.Quantity <= 0 {
		return item, false
	}

	if factor, ok := massUnits[unit]; ok {
		if ing.Quantity == nil {
			return item, false
		}
		item.Grams = *ing.Quantity * factor
		item.Measure = MeasureMass
		return item, true
	}

	if factor, ok := volumeUnits[unit]; ok {
		if ing.Quantity == nil {
			return item, false
		}
		item.Ml = *ing.Quantity * factor
		item.Measure = MeasureVolume
		return item, true
	}

	if countUnits[unit] {
		if unit == "" && ing.Quantity == nil {
			return item, false
		}
		count := 1.0
		if ing.Quantity != nil {
			count = *ing.Quantity
		}
		mass := itemMass(ing.Name)
		if unit == "egg-sized" {
			mass = eggSizedMass
		}
		item.Grams = count * mass
		item.Measure = MeasureCount
		return item, true
	}

	return item, false
}

// CalculateBatchSize 估算整份食譜的總質量與總體積
func CalculateBatchSize(ingredients []Ingredient) BatchCalculationResult {
	result := BatchCalculationResult{
		IngredientBreakdown:    make([]BreakdownItem, 0, len(ingredients)),
		UnconvertedIngredients: make([]string, 0),
	}

	for _, ing := range ingredients {
		item, ok := convert(ing)
		if !ok {
			result.UnconvertedIngredients = append(result.UnconvertedIngredients, ing.String())
			continue
		}
		result.TotalGrams += item.Grams
		result.TotalMl += item.Ml
		result.IngredientBreakdown = append(result.IngredientBreakdown, item)
	}

	result.TotalGrams = math.Round(result.TotalGrams*10) / 10
	result.TotalMl = math.Round(result.TotalMl*10) / 10
	result.Confidence = confidenceFor(len(ingredients), len(result.UnconvertedIngredients))
	result.EstimatedSize = estimatedSize(result.TotalGrams, result.TotalMl)
	return result
}

func confidenceFor(total, unconverted int) Confidence {
	switch {
	case total == 0 || unconverted*2 > total:
		return ConfidenceLow
	case unconverted == 0:
		return ConfidenceHigh
	default:
		return ConfidenceMedium
	}
}

func estimatedSize(grams, ml float64) string {
	if grams > 0 {
		return FormatGrams(grams)
	}
	if ml > 0 {
		return FormatMl(ml)
	}
	return "unknown"
}

// FormatGrams 例如 "1.0kg"、"850g"
func FormatGrams(g float64) string {
	if g >= 1000 {
		return fmt.Sprintf("%.1fkg", g/1000)
	}
	return fmt.Sprintf("%dg", int(math.Round(g)))
}

// FormatMl 例如 "2.0L"、"750ml"
func FormatMl(ml float64) string {
	if ml >= 1000 {
		return fmt.Sprintf("%.1fL", ml/1000)
	}
	return fmt.Sprintf("%dml", int(math.Round(ml)))
}

// GenerateBatchConfirmationPrompt 產生請使用者確認總量的提問
func GenerateBatchConfirmationPrompt(result BatchCalculationResult) string {
	var b strings.Builder

	if result.TotalGrams == 0 && result.TotalMl == 0 {
		b.WriteString("I couldn't estimate the total size of this recipe. ")
		b.WriteString("Roughly how much does the whole batch make? (for example \"about 2 liters\" or \"1.5kg\")")
		return b.String()
	}

	b.WriteString("I estimate this recipe makes about ")
	b.WriteString(result.EstimatedSize)
	if result.TotalGrams > 0 && result.TotalMl > 0 {
		fmt.Fprintf(&b, " plus %s of liquids", FormatMl(result.TotalMl))
	}
	b.WriteString(" in total.")

	if len(result.UnconvertedIngredients) > 0 {
		fmt.Fprintf(&b, " I couldn't measure: %s, so the total may be off.",
			strings.Join(result.UnconvertedIngredients, ", "))
	}

	b.WriteString(" Does that sound right? Reply \"yes\" or tell me the actual amount (for example \"about 2 liters\" or \"1.5kg\").")
	return b.String()
}
