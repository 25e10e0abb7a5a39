package nutrition

import "strings"

// caloricKeywords 已知有熱量的食物關鍵字，熱量為 0 時視為幽靈熱量
var caloricKeywords = []string{
	// 肉類
	"chicken", "beef", "pork", "lamb", "turkey", "bacon", "sausage", "ham", "steak",
	"salmon", "tuna", "fish", "shrimp", "egg",
	// 油脂
	"oil", "butter", "ghee", "lard", "margarine", "mayonnaise", "mayo",
	// 乳製品
	"cheese", "milk", "cream", "yogurt", "yoghurt", "ice cream",
	// 穀物
	"rice", "bread", "pasta", "noodle", "oat", "cereal", "flour", "tortilla", "bagel", "quinoa",
	// 甜食
	"cake", "cookie", "chocolate", "candy", "donut", "doughnut", "pastry", "pie", "honey", "syrup",
	// 其他
	"avocado", "nut", "peanut", "almond", "potato", "banana", "pizza", "burger", "fries",
}

// HasCaloricKeyword 名稱（不分大小寫）是否包含已知有熱量的關鍵字
func HasCaloricKeyword(name string) (string, bool) {
	lower := strings.ToLower(name)
	for _, kw := range caloricKeywords {
		if strings.Contains(lower, kw) {
			return kw, true
		}
	}
	return "", false
}
