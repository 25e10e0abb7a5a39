package recipe

import (
	"sort"
	"strings"
	"unicode"
)

// stopWords 冠詞、單位與料理形容詞，不影響食譜識別
var stopWords = map[string]bool{
	// 冠詞與連接詞
	"a": true, "an": true, "the": true, "of": true, "and": true, "or": true, "to": true,
	"for": true, "with": true, "some": true, "about": true, "taste": true,
	// 單位
	"cup": true, "cups": true, "tbsp": true, "tablespoon": true, "tablespoons": true,
	"tsp": true, "teaspoon": true, "teaspoons": true, "oz": true, "ounce": true, "ounces": true,
	"lb": true, "lbs": true, "pound": true, "pounds": true, "g": true, "gram": true, "grams": true,
	"kg": true, "ml": true, "liter": true, "liters": true, "pinch": true, "dash": true,
	"can": true, "cans": true, "package": true, "pkg": true, "piece": true, "pieces": true,
	"whole": true, "large": true, "medium": true, "small": true,
	// 料理形容詞
	"chopped": true, "diced": true, "minced": true, "sliced": true, "grated": true,
	"shredded": true, "fresh": true, "frozen": true, "dried": true, "cooked": true,
	"raw": true, "boneless": true, "skinless": true, "peeled": true, "crushed": true,
	"ground": true, "finely": true, "roughly": true, "thinly": true, "organic": true,
	"optional": true, "softened": true, "melted": true, "beaten": true,
}

// NormalizeIngredientName 將食材名稱正規化：去數量、單位與形容詞，並做簡易單數化
func NormalizeIngredientName(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsSpace(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, name)

	tokens := make([]string, 0)
	for _, tok := range strings.Fields(cleaned) {
		if len(tok) <= 1 || stopWords[tok] {
			continue
		}
		tokens = append(tokens, singularize(tok))
	}
	return strings.Join(tokens, " ")
}

func singularize(tok string) string {
	switch {
	case strings.HasSuffix(tok, "es") && len(tok) > 3:
		return tok[:len(tok)-2]
	case strings.HasSuffix(tok, "s") && !strings.HasSuffix(tok, "ss") && len(tok) > 3:
		return tok[:len(tok)-1]
	}
	return tok
}

// Fingerprint 產生與順序、數量無關的食譜識別鍵
func Fingerprint(ingredients []Ingredient) string {
	names := make([]string, 0, len(ingredients))
	for _, ing := range ingredients {
		if n := NormalizeIngredientName(ing.Name); n != "" {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}
