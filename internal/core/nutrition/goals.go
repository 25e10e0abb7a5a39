package nutrition

import "fmt"

// goalRange 每日目標的合理範圍，0 表示不檢查該端
type goalRange struct {
	Min float64
	Max float64
}

var goalRanges = map[Nutrient]goalRange{
	Calories: {Min: 1000, Max: 5000},
	Protein:  {Min: 30, Max: 400},
	Carbs:    {Min: 50, Max: 600},
	FatTotal: {Min: 20, Max: 250},
	Sugar:    {Max: 150},
	Sodium:   {Max: 5000},
	Fiber:    {Max: 100},
}

// GoalValidation 目標檢查只產生警告
type GoalValidation struct {
	Warnings []string `json:"warnings"`
}

// ValidateGoal 檢查單一每日目標是否落在合理範圍
func ValidateGoal(n Nutrient, value float64) GoalValidation {
	result := GoalValidation{Warnings: make([]string, 0)}
	r, ok := goalRanges[n]
	if !ok {
		return result
	}
	if r.Min > 0 && value < r.Min {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("a daily %s goal of %.0f%s is unusually low (typical minimum %.0f%s)", n.Label(), value, n.Unit(), r.Min, n.Unit()))
	}
	if r.Max > 0 && value > r.Max {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("a daily %s goal of %.0f%s is unusually high (typical maximum %.0f%s)", n.Label(), value, n.Unit(), r.Max, n.Unit()))
	}
	return result
}

// DefaultGoals 一般成人的建議每日目標，供 suggest_goals 在模型未給值時使用
func DefaultGoals() map[Nutrient]float64 {
	return map[Nutrient]float64{
		Calories: 2000,
		Protein:  100,
		Carbs:    250,
		FatTotal: 70,
		Fiber:    30,
		Sugar:    50,
		Sodium:   2300,
	}
}
