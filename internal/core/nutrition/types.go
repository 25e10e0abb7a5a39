package nutrition

import (
	"strings"

	"nutripal/internal/pkg/common"
)

// Nutrient 營養素欄位鍵，對應 NutritionData 的 JSON 欄位名稱
type Nutrient string

const (
	Calories     Nutrient = "calories"
	Protein      Nutrient = "protein_g"
	FatTotal     Nutrient = "fat_total_g"
	Carbs        Nutrient = "carbs_g"
	Fiber        Nutrient = "fiber_g"
	FiberSoluble Nutrient = "fiber_soluble_g"
	Sugar        Nutrient = "sugar_g"
	AddedSugars  Nutrient = "added_sugars_g"
	FatSaturated Nutrient = "fat_saturated_g"
	FatPoly      Nutrient = "fat_poly_g"
	FatMono      Nutrient = "fat_mono_g"
	FatTrans     Nutrient = "fat_trans_g"
	Omega3       Nutrient = "omega_3_g"
	Omega6       Nutrient = "omega_6_g"
	Sodium       Nutrient = "sodium_mg"
	Cholesterol  Nutrient = "cholesterol_mg"
	Potassium    Nutrient = "potassium_mg"
	Calcium      Nutrient = "calcium_mg"
	Iron         Nutrient = "iron_mg"
	Magnesium    Nutrient = "magnesium_mg"
	Phosphorus   Nutrient = "phosphorus_mg"
	Zinc         Nutrient = "zinc_mg"
	VitaminA     Nutrient = "vitamin_a_mcg"
	VitaminC     Nutrient = "vitamin_c_mg"
	VitaminD     Nutrient = "vitamin_d_mcg"
	VitaminE     Nutrient = "vitamin_e_mg"
	VitaminK     Nutrient = "vitamin_k_mcg"
	VitaminB6    Nutrient = "vitamin_b6_mg"
	VitaminB12   Nutrient = "vitamin_b12_mcg"
	Thiamin      Nutrient = "thiamin_mg"
	Riboflavin   Nutrient = "riboflavin_mg"
	Niacin       Nutrient = "niacin_mg"
	Folate       Nutrient = "folate_mcg"
	Water        Nutrient = "water_g"
	Caffeine     Nutrient = "caffeine_mg"
)

// AllNutrients 所有可定址的營養素，依顯示順序排列
var AllNutrients = []Nutrient{
	Calories, Protein, FatTotal, Carbs,
	Fiber, FiberSoluble, Sugar, AddedSugars,
	FatSaturated, FatPoly, FatMono, FatTrans, Omega3, Omega6,
	Sodium, Cholesterol, Potassium, Calcium, Iron, Magnesium, Phosphorus, Zinc,
	VitaminA, VitaminC, VitaminD, VitaminE, VitaminK, VitaminB6, VitaminB12,
	Thiamin, Riboflavin, Niacin, Folate, Water, Caffeine,
}

// Unit 回傳營養素的單位（由鍵的後綴推得）
func (n Nutrient) Unit() string {
	s := string(n)
	switch {
	case n == Calories:
		return "kcal"
	case strings.HasSuffix(s, "_mcg"):
		return "mcg"
	case strings.HasSuffix(s, "_mg"):
		return "mg"
	default:
		return "g"
	}
}

// Label 可讀名稱，例如 "added sugars"
func (n Nutrient) Label() string {
	s := string(n)
	for _, suffix := range []string{"_mcg", "_mg", "_g"} {
		s = strings.TrimSuffix(s, suffix)
	}
	switch n {
	case FatTotal:
		return "total fat"
	case FatPoly:
		return "polyunsaturated fat"
	case FatMono:
		return "monounsaturated fat"
	case FatSaturated:
		return "saturated fat"
	case FatTrans:
		return "trans fat"
	case FiberSoluble:
		return "soluble fiber"
	}
	return strings.ReplaceAll(s, "_", " ")
}

// ParseNutrient 從使用者或模型提供的名稱解析營養素鍵
func ParseNutrient(name string) (Nutrient, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.ReplaceAll(key, " ", "_")
	for _, n := range AllNutrients {
		if string(n) == key {
			return n, true
		}
	}
	if n, ok := nutrientAliases[key]; ok {
		return n, true
	}
	return "", false
}

var nutrientAliases = map[string]Nutrient{
	"calorie":       Calories,
	"kcal":          Calories,
	"energy":        Calories,
	"protein":       Protein,
	"fat":           FatTotal,
	"total_fat":     FatTotal,
	"fat_total":     FatTotal,
	"carbs":         Carbs,
	"carbohydrates": Carbs,
	"carbohydrate":  Carbs,
	"fiber":         Fiber,
	"fibre":         Fiber,
	"sugar":         Sugar,
	"sugars":        Sugar,
	"added_sugar":   AddedSugars,
	"added_sugars":  AddedSugars,
	"saturated_fat": FatSaturated,
	"sodium":        Sodium,
	"salt":          Sodium,
	"cholesterol":   Cholesterol,
	"potassium":     Potassium,
	"calcium":       Calcium,
	"iron":          Iron,
	"water":         Water,
	"caffeine":      Caffeine,
}

// NutritionData 單一食物（或食譜份量）的營養資料，缺少的欄位視為 0
type NutritionData struct {
	FoodName    string `json:"food_name"`
	ServingSize string `json:"serving_size,omitempty"`

	Calories     float64 `json:"calories"`
	ProteinG     float64 `json:"protein_g"`
	FatTotalG    float64 `json:"fat_total_g"`
	CarbsG       float64 `json:"carbs_g"`
	FiberG       float64 `json:"fiber_g,omitempty"`
	FiberSoluble float64 `json:"fiber_soluble_g,omitempty"`
	SugarG       float64 `json:"sugar_g,omitempty"`
	AddedSugarsG float64 `json:"added_sugars_g,omitempty"`
	FatSaturated float64 `json:"fat_saturated_g,omitempty"`
	FatPoly      float64 `json:"fat_poly_g,omitempty"`
	FatMono      float64 `json:"fat_mono_g,omitempty"`
	FatTrans     float64 `json:"fat_trans_g,omitempty"`
	Omega3G      float64 `json:"omega_3_g,omitempty"`
	Omega6G      float64 `json:"omega_6_g,omitempty"`

	SodiumMg      float64 `json:"sodium_mg,omitempty"`
	CholesterolMg float64 `json:"cholesterol_mg,omitempty"`
	PotassiumMg   float64 `json:"potassium_mg,omitempty"`
	CalciumMg     float64 `json:"calcium_mg,omitempty"`
	IronMg        float64 `json:"iron_mg,omitempty"`
	MagnesiumMg   float64 `json:"magnesium_mg,omitempty"`
	PhosphorusMg  float64 `json:"phosphorus_mg,omitempty"`
	ZincMg        float64 `json:"zinc_mg,omitempty"`

	VitaminAMcg   float64 `json:"vitamin_a_mcg,omitempty"`
	VitaminCMg    float64 `json:"vitamin_c_mg,omitempty"`
	VitaminDMcg   float64 `json:"vitamin_d_mcg,omitempty"`
	VitaminEMg    float64 `json:"vitamin_e_mg,omitempty"`
	VitaminKMcg   float64 `json:"vitamin_k_mcg,omitempty"`
	VitaminB6Mg   float64 `json:"vitamin_b6_mg,omitempty"`
	VitaminB12Mcg float64 `json:"vitamin_b12_mcg,omitempty"`
	ThiaminMg     float64 `json:"thiamin_mg,omitempty"`
	RiboflavinMg  float64 `json:"riboflavin_mg,omitempty"`
	NiacinMg      float64 `json:"niacin_mg,omitempty"`
	FolateMcg     float64 `json:"folate_mcg,omitempty"`

	WaterG     float64 `json:"water_g,omitempty"`
	CaffeineMg float64 `json:"caffeine_mg,omitempty"`
}

func (d *NutritionData) field(n Nutrient) *float64 {
	switch n {
	case Calories:
		return &d.Calories
	case Protein:
		return &d.ProteinG
	case FatTotal:
		return &d.FatTotalG
	case Carbs:
		return &d.CarbsG
	case Fiber:
		return &d.FiberG
	case FiberSoluble:
		return &d.FiberSoluble
	case Sugar:
		return &d.SugarG
	case AddedSugars:
		return &d.AddedSugarsG
	case FatSaturated:
		return &d.FatSaturated
	case FatPoly:
		return &d.FatPoly
	case FatMono:
		return &d.FatMono
	case FatTrans:
		return &d.FatTrans
	case Omega3:
		return &d.Omega3G
	case Omega6:
		return &d.Omega6G
	case Sodium:
		return &d.SodiumMg
	case Cholesterol:
		return &d.CholesterolMg
	case Potassium:
		return &d.PotassiumMg
	case Calcium:
		return &d.CalciumMg
	case Iron:
		return &d.IronMg
	case Magnesium:
		return &d.MagnesiumMg
	case Phosphorus:
		return &d.PhosphorusMg
	case Zinc:
		return &d.ZincMg
	case VitaminA:
		return &d.VitaminAMcg
	case VitaminC:
		return &d.VitaminCMg
	case VitaminD:
		return &d.VitaminDMcg
	case VitaminE:
		return &d.VitaminEMg
	case VitaminK:
		return &d.VitaminKMcg
	case VitaminB6:
		return &d.VitaminB6Mg
	case VitaminB12:
		return &d.VitaminB12Mcg
	case Thiamin:
		return &d.ThiaminMg
	case Riboflavin:
		return &d.RiboflavinMg
	case Niacin:
		return &d.NiacinMg
	case Folate:
		return &d.FolateMcg
	case Water:
		return &d.WaterG
	case Caffeine:
		return &d.CaffeineMg
	}
	return nil
}

// Get 取得營養素數值，未知鍵回傳 0
func (d NutritionData) Get(n Nutrient) float64 {
	if p := d.field(n); p != nil {
		return *p
	}
	return 0
}

// Set 設定營養素數值，未知鍵會被忽略
func (d *NutritionData) Set(n Nutrient, v float64) {
	if p := d.field(n); p != nil {
		*p = v
	}
}

// Add 逐欄相加，回傳新紀錄（名稱與份量沿用接收者）
func (d NutritionData) Add(other NutritionData) NutritionData {
	out := d
	for _, n := range AllNutrients {
		out.Set(n, d.Get(n)+other.Get(n))
	}
	return out
}

// Scale 逐欄乘以係數
func (d NutritionData) Scale(factor float64) NutritionData {
	out := d
	for _, n := range AllNutrients {
		out.Set(n, d.Get(n)*factor)
	}
	return out
}

// Rounded 四捨五入到一位小數，供顯示與儲存使用
func (d NutritionData) Rounded() NutritionData {
	out := d
	for _, n := range AllNutrients {
		out.Set(n, common.Round(d.Get(n), 1))
	}
	return out
}

// Sum 加總多筆營養資料
func Sum(items []NutritionData) NutritionData {
	var total NutritionData
	for _, item := range items {
		total = total.Add(item)
	}
	return total
}
