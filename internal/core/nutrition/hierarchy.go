package nutrition

import (
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"nutripal/internal/pkg/common"
)

// hierarchyTolerance 四捨五入容許誤差
const hierarchyTolerance = 1.0

// relationship 父子營養素關係；Strict 表示子項加總也不可超過父項
type relationship struct {
	Parent   Nutrient
	Children []Nutrient
	Strict   bool
}

// hierarchy 依父項先處理的順序排列，SanitizeNutrients 依賴此順序達成冪等
var hierarchy = []relationship{
	{Parent: Carbs, Children: []Nutrient{Sugar, Fiber}, Strict: true},
	{Parent: FatTotal, Children: []Nutrient{FatSaturated, FatPoly, FatMono, FatTrans}, Strict: true},
	{Parent: Sugar, Children: []Nutrient{AddedSugars}},
	{Parent: Fiber, Children: []Nutrient{FiberSoluble}},
	{Parent: FatPoly, Children: []Nutrient{Omega3, Omega6}, Strict: true},
}

// HierarchyResult 營養素階層檢查結果
type HierarchyResult struct {
	Valid      bool     `json:"valid"`
	Violations []string `json:"violations"`
}

// ValidateNutrientHierarchy 檢查子營養素不超過父營養素，不修改輸入
func ValidateNutrientHierarchy(d NutritionData) HierarchyResult {
	violations := make([]string, 0)

	for _, rel := range hierarchy {
		parent := d.Get(rel.Parent)
		sum := 0.0
		for _, child := range rel.Children {
			v := d.Get(child)
			sum += v
			if v > parent+hierarchyTolerance {
				violations = append(violations, fmt.Sprintf("%s (%.1f%s) exceeds %s (%.1f%s)",
					child.Label(), v, child.Unit(), rel.Parent.Label(), parent, rel.Parent.Unit()))
			}
		}
		if rel.Strict && len(rel.Children) > 1 && sum > parent+hierarchyTolerance {
			labels := make([]string, len(rel.Children))
			for i, child := range rel.Children {
				labels[i] = child.Label()
			}
			violations = append(violations, fmt.Sprintf("sum of %s (%.1f%s) exceeds %s (%.1f%s)",
				strings.Join(labels, " + "), sum, rel.Parent.Unit(), rel.Parent.Label(), parent, rel.Parent.Unit()))
		}
	}

	return HierarchyResult{
		Valid:      len(violations) == 0,
		Violations: violations,
	}
}

// SanitizeNutrients 回傳副本，將超過父項的子項數值壓到父項數值；父項為負時壓到 0
func SanitizeNutrients(d NutritionData) NutritionData {
	out := d
	for _, rel := range hierarchy {
		parent := math.Max(out.Get(rel.Parent), 0)
		for _, child := range rel.Children {
			v := out.Get(child)
			if v > parent {
				common.LogWarn("營養素超過父項，已調整",
					zap.String("food", d.FoodName),
					zap.String("child", string(child)),
					zap.String("parent", string(rel.Parent)),
					zap.Float64("original", v),
					zap.Float64("capped", parent),
				)
				out.Set(child, parent)
			}
		}
	}
	return out
}
