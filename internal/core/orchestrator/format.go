package orchestrator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"nutripal/internal/core/nutrition"
)

// describe 單行營養摘要，例如 "pizza (2 slices): 570 kcal, 24g protein, 21g fat, 70g carbs"
func describe(d nutrition.NutritionData) string {
	name := d.FoodName
	if d.ServingSize != "" {
		name = fmt.Sprintf("%s (%s)", d.FoodName, d.ServingSize)
	}
	return fmt.Sprintf("%s: %.0f kcal, %.1fg protein, %.1fg fat, %.1fg carbs",
		name, d.Calories, d.ProteinG, d.FatTotalG, d.CarbsG)
}

func describeAll(items []nutrition.NutritionData) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, "- "+describe(item))
	}
	return strings.Join(lines, "\n")
}

// withWarnings 將軟性警告附在訊息後
func withWarnings(msg string, warnings []string) string {
	if len(warnings) == 0 {
		return msg
	}
	return msg + "\nNote: " + strings.Join(warnings, "; ") + "."
}

func formatServings(n float64) string {
	if n == 1 {
		return "1 serving"
	}
	return strconv.FormatFloat(n, 'f', -1, 64) + " servings"
}

func sameText(a, b string) bool {
	return strings.EqualFold(strings.Join(strings.Fields(a), " "), strings.Join(strings.Fields(b), " "))
}

var (
	portionPattern = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?(?:/\d+)?|half|one|two|three|four|five)\s*(?:a\s+)?([a-z]+)?`)
	numberPattern  = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

// portionUnits 視為份量修正的單位詞
var portionUnits = map[string]bool{
	"g": true, "gram": true, "grams": true, "kg": true, "oz": true, "ounce": true, "ounces": true,
	"lb": true, "lbs": true, "pound": true, "pounds": true, "ml": true, "l": true, "liter": true, "liters": true,
	"cup": true, "cups": true, "tbsp": true, "tsp": true, "tablespoon": true, "tablespoons": true,
	"teaspoon": true, "teaspoons": true, "slice": true, "slices": true, "piece": true, "pieces": true,
	"serving": true, "servings": true, "bowl": true, "bowls": true, "plate": true, "plates": true,
	"portion": true, "portions": true, "handful": true, "handfuls": true, "can": true, "cans": true,
	"bottle": true, "bottles": true, "glass": true, "glasses": true, "scoop": true, "scoops": true,
	"small": true, "medium": true, "large": true, "x": true,
}

// parsePortion 從修正回覆中取出份量，例如 "actually 2 slices" → "2 slices"
func parsePortion(text string) (string, bool) {
	for _, m := range portionPattern.FindAllStringSubmatch(text, -1) {
		unit := strings.ToLower(m[2])
		if unit == "" || portionUnits[unit] {
			return strings.TrimSpace(m[0]), true
		}
	}
	return "", false
}

// parseNumber 取出第一個數字，允許千分位逗號
func parseNumber(text string) (float64, bool) {
	m := numberPattern.FindString(strings.ReplaceAll(text, ",", ""))
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	return v, err == nil
}

// findNutrientMention 找出訊息中提到的營養素，先比對雙字詞
func findNutrientMention(text string) (nutrition.Nutrient, bool) {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && r != '-'
	})
	for i := 0; i+1 < len(words); i++ {
		if n, ok := nutrition.ParseNutrient(words[i] + " " + words[i+1]); ok {
			return n, true
		}
	}
	for _, w := range words {
		if n, ok := nutrition.ParseNutrient(w); ok {
			return n, true
		}
	}
	return "", false
}
