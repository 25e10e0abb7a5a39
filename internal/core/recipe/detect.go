package recipe

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	bulletPrefix   = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+`)
	ingredientLine = regexp.MustCompile(`^\s*(\d+\s+\d+/\d+|\d+/\d+|\d+(?:\.\d+)?)\s*([a-zA-Z-]+\.?(?:\s+oz)?)?\s+(.+)$`)
	recipeMarkers  = []string{"ingredients:", "recipe", "i made", "i cooked", "homemade", "batch of"}
)

const minRecipeLines = 3

// LooksLikeRecipe 判斷訊息是否像食譜（多行食材清單或明確的食譜用語）
func LooksLikeRecipe(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range recipeMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}

	count := 0
	for _, line := range splitLines(text) {
		if bulletPrefix.MatchString(line) || ingredientLine.MatchString(line) {
			count++
		}
	}
	return count >= minRecipeLines
}

// ParseIngredientLines 逐行解析食材清單，用於模型未回傳食材時的備援
func ParseIngredientLines(text string) []Ingredient {
	out := make([]Ingredient, 0)
	for _, line := range splitLines(text) {
		line = bulletPrefix.ReplaceAllString(line, "")
		line = strings.TrimSpace(line)
		if line == "" || strings.HasSuffix(line, ":") {
			continue
		}
		out = append(out, ParseIngredientLine(line))
	}
	return out
}

// ParseIngredientLine 解析單行如 "2 cups flour"、"1/2 tsp salt"、"3 eggs"
func ParseIngredientLine(line string) Ingredient {
	m := ingredientLine.FindStringSubmatch(line)
	if m == nil {
		return Ingredient{Name: strings.TrimSpace(line)}
	}

	qty, ok := ParseQuantity(m[1])
	ing := Ingredient{Name: strings.TrimSpace(m[3])}
	if ok {
		ing.Quantity = &qty
	}

	unit := normalizeUnit(m[2])
	if _, mass := massUnits[unit]; mass {
		ing.Unit = unit
	} else if _, vol := volumeUnits[unit]; vol {
		ing.Unit = unit
	} else if countUnits[unit] {
		ing.Unit = unit
	} else if unit != "" {
		// 不是單位，屬於名稱的一部分，例如 "3 eggs"
		ing.Name = strings.TrimSpace(m[2] + " " + m[3])
	}
	return ing
}

// ParseQuantity 解析數量字串，支援小數、分數與帶分數（"1 1/2"）
func ParseQuantity(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if parts := strings.Fields(s); len(parts) == 2 {
		whole, ok1 := ParseQuantity(parts[0])
		frac, ok2 := ParseQuantity(parts[1])
		return whole + frac, ok1 && ok2
	}
	if num, den, found := strings.Cut(s, "/"); found {
		n, err1 := strconv.ParseFloat(num, 64)
		d, err2 := strconv.ParseFloat(den, 64)
		if err1 != nil || err2 != nil || d == 0 {
			return 0, false
		}
		return n / d, true
	}
	v, err := strconv.ParseFloat(s, 64)
	return v, err == nil
}

func splitLines(text string) []string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}
