package orchestrator

import (
	"strings"

	"nutripal/internal/core/nutrition"
	"nutripal/internal/core/session"
	"nutripal/internal/pkg/common"

	"go.uber.org/zap"
)

// foodLogPayload 待確認的飲食紀錄；RecipeID 非空表示記錄已存食譜的份數
type foodLogPayload struct {
	Query       string                    `json:"query"`
	Portion     string                    `json:"portion,omitempty"`
	Items       []nutrition.NutritionData `json:"items"`
	Warnings    []string                  `json:"warnings,omitempty"`
	RecipeID    string                    `json:"recipe_id,omitempty"`
	RecipeName  string                    `json:"recipe_name,omitempty"`
	Fingerprint string                    `json:"fingerprint,omitempty"`
	Servings    float64                   `json:"servings,omitempty"`
	PerServing  *nutrition.NutritionData  `json:"per_serving,omitempty"`
	// Duplicate 拒絕時繼續建立新食譜
	Duplicate bool `json:"duplicate,omitempty"`
}

// recipeSavePayload 待確認的食譜儲存；完整流程資料在 Buffer.FlowState
type recipeSavePayload struct {
	RecipeName string                  `json:"recipe_name"`
	Servings   float64                 `json:"servings"`
	PerServing nutrition.NutritionData `json:"per_serving"`
	Warnings   []string                `json:"warnings,omitempty"`
}

// goalTarget 單一營養目標
type goalTarget struct {
	Nutrient nutrition.Nutrient `json:"nutrient"`
	Target   float64            `json:"target"`
	Unit     string             `json:"unit"`
}

// goalPayload 待確認的目標更新
type goalPayload struct {
	Goals    []goalTarget `json:"goals"`
	Warnings []string     `json:"warnings,omitempty"`
}

// handlePending 有待確認動作時，回覆先用來確認、拒絕或修正該動作
func (o *Orchestrator) handlePending(t *turn) *Response {
	p := t.state.PendingAction
	t.agent = "pending_" + string(p.Type)
	kind := o.phrases.Classify(t.message)
	t.step("Checking your reply against the pending " + string(p.Type))

	switch p.Type {
	case session.PendingFoodLog:
		var payload foodLogPayload
		if err := p.Decode(&payload); err != nil {
			return o.lostTrack(t, err)
		}
		return o.resolveFoodLog(t, kind, payload)
	case session.PendingRecipeSave:
		var payload recipeSavePayload
		if err := p.Decode(&payload); err != nil {
			return o.lostTrack(t, err)
		}
		return o.resolveRecipeSave(t, kind, payload)
	case session.PendingGoalUpdate:
		var payload goalPayload
		if err := p.Decode(&payload); err != nil {
			return o.lostTrack(t, err)
		}
		return o.resolveGoalUpdate(t, kind, payload)
	default:
		return o.lostTrack(t, session.ErrNoPendingAction)
	}
}

// setPending 序列化並掛上待確認動作
func (o *Orchestrator) setPending(t *turn, pt session.PendingType, payload interface{}, mode session.Mode) error {
	action, err := session.NewPendingAction(pt, payload, o.sessions.Now())
	if err != nil {
		return err
	}
	t.state.SetPendingAction(action)
	t.state.CurrentMode = mode
	return nil
}

// finish 動作完成，回到閒置
func finish(t *turn) {
	t.state.ClearPendingAction()
	t.state.CurrentMode = session.ModeIdle
}

// reask 保留待確認動作並再問一次
func reask(rt ResponseType, msg string) *Response {
	return respond(StatusProposal, rt, msg, nil)
}

// lostTrack 待確認資料或流程損壞，丟棄後請使用者重新開始
func (o *Orchestrator) lostTrack(t *turn, err error) *Response {
	common.LogWarn("待確認資料無法使用，已丟棄",
		zap.String("user_id", t.req.UserID),
		zap.Error(err),
	)
	finish(t)
	t.state.Buffer.FlowState = nil
	return respond(StatusError, TypeUnknown,
		"I lost track of what we were working on. Could you tell me again?", nil)
}

// recordCorrection 記下使用者對系統輸出的修正
func (o *Orchestrator) recordCorrection(t *turn, field, original, corrected string) {
	t.state.Buffer.AddUserCorrection(session.UserCorrection{
		Field:     field,
		Original:  original,
		Corrected: corrected,
		CreatedAt: o.sessions.Now(),
	})
}

// validate 清理子營養素後執行階層與食物驗證；兩者都通過才可寫入
func (o *Orchestrator) validate(t *turn, items []nutrition.NutritionData, query, portion string) ([]nutrition.NutritionData, nutrition.ValidationResult) {
	t.step("Checking nutrition values")
	clean := make([]nutrition.NutritionData, len(items))
	var violations []string
	for i, item := range items {
		clean[i] = nutrition.SanitizeNutrients(item)
		if h := nutrition.ValidateNutrientHierarchy(clean[i]); !h.Valid {
			violations = append(violations, h.Violations...)
		}
	}

	result := o.validator.Execute(t.ctx, clean, nutrition.ValidationContext{
		UserID:  t.req.UserID,
		Query:   query,
		Portion: portion,
	})
	if len(violations) > 0 {
		result.Errors = append(result.Errors, violations...)
		result.Passed = false
	}
	return clean, result
}

// validationFailed 硬性錯誤：不寫入，逐項列出原因
func validationFailed(v nutrition.ValidationResult, hint string) *Response {
	msg := "I can't log this because the nutrition data looks wrong:\n- " + strings.Join(v.Errors, "\n- ")
	if hint != "" {
		msg += "\n" + hint
	}
	return respond(StatusError, TypeValidationError, msg, map[string]interface{}{
		"errors":   v.Errors,
		"warnings": v.Warnings,
	})
}
