package orchestrator

import (
	"fmt"
	"strings"

	"nutripal/internal/core/ai/intent"
	"nutripal/internal/core/ai/lookup"
	"nutripal/internal/core/nutrition"
	"nutripal/internal/core/recipe"
	"nutripal/internal/core/session"
	"nutripal/internal/core/store"
)

const defaultRecipeName = "My recipe"

// handleCreateRecipe parsing 步驟：取得食材、檢查重複，再開始估算批量
func (o *Orchestrator) handleCreateRecipe(t *turn, r *intent.Result) *Response {
	t.agent = "recipe_builder"
	t.step("Reading the ingredient list")

	ingredients := r.Ingredients
	if len(ingredients) == 0 && recipe.LooksLikeRecipe(t.message) {
		for _, ing := range recipe.ParseIngredientLines(t.message) {
			if ing.Quantity != nil {
				ingredients = append(ingredients, ing)
			}
		}
	}
	if len(ingredients) == 0 {
		return o.askClarification(t, &intent.Result{
			Intent:                intent.CreateRecipe,
			Reasoning:             "recipe without ingredients",
			ClarificationQuestion: "What ingredients went into it? List them with amounts, one per line.",
		})
	}

	name := strings.TrimSpace(r.RecipeName)
	if name == "" {
		name = defaultRecipeName
	}
	flow := session.NewRecipeFlow(name, ingredients, nutrition.NutritionData{})

	t.step("Checking your saved recipes for duplicates")
	dup, err := o.findDuplicate(t, flow.Fingerprint)
	if err != nil {
		return persistenceFailed("list recipes", err)
	}
	if dup != nil {
		t.state.Buffer.FlowState = flow
		return o.proposeRecipeLog(t, dup, 1, true)
	}

	return o.startRecipeFlow(t, flow)
}

// findDuplicate 以指紋比對最近儲存的食譜與目前作用中的食譜
func (o *Orchestrator) findDuplicate(t *turn, fingerprint string) (*store.SavedRecipe, error) {
	if fingerprint == "" {
		return nil, nil
	}

	recipes, err := o.store.ListRecipes(t.ctx, t.req.UserID, recentRecipeLimit)
	if err != nil {
		return nil, err
	}
	for i := range recipes {
		if recipes[i].Fingerprint == fingerprint {
			return &recipes[i], nil
		}
	}

	active := t.state.Buffer.ActiveRecipeContext
	if active == nil || active.Fingerprint != fingerprint || active.Name == "" {
		return nil, nil
	}
	rec, err := o.store.FindRecipeByName(t.ctx, t.req.UserID, active.Name)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// startRecipeFlow 查詢食材營養並提出批量估算（parsing → batch_confirm）
func (o *Orchestrator) startRecipeFlow(t *turn, flow *session.RecipeFlow) *Response {
	t.step("Looking up ingredient nutrition")
	items, err := o.lookupNutrition(t, lookup.Query{Ingredients: flow.Ingredients})
	if isNotFound(err) {
		t.state.Buffer.FlowState = nil
		return o.askClarification(t, &intent.Result{
			Intent:                intent.CreateRecipe,
			Reasoning:             "no nutrition data for the ingredients",
			ClarificationQuestion: "I couldn't find nutrition data for those ingredients. Could you list them with amounts, one per line?",
		})
	}
	if err != nil {
		return capabilityError(err)
	}

	total := nutrition.Sum(items)
	total.FoodName = flow.RecipeName
	flow.TotalNutrition = total

	t.step("Estimating batch size")
	estimate := recipe.CalculateBatchSize(flow.Ingredients)
	if err := flow.ProposeBatch(estimate); err != nil {
		return o.lostTrack(t, err)
	}
	t.state.Buffer.FlowState = flow
	t.state.CurrentMode = session.ModeRecipeCreate

	return respond(StatusProposal, TypePendingBatchConfirm, recipe.GenerateBatchConfirmationPrompt(estimate), map[string]interface{}{
		"recipe_name":     flow.RecipeName,
		"ingredients":     flow.Ingredients,
		"batch":           estimate,
		"total_nutrition": total.Rounded(),
	})
}

// handleRecipeStep 依目前步驟解讀回覆；回傳 nil 表示流程已失效，改走一般處理
func (o *Orchestrator) handleRecipeStep(t *turn) *Response {
	flow := t.state.Buffer.FlowState
	t.agent = "recipe_builder"

	switch st := flow.Stage().(type) {
	case session.BatchConfirmStage:
		return o.handleBatchReply(t, flow, st)
	case session.ServingsConfirmStage:
		return o.handleServingsReply(t, flow)
	case session.ReadyToSaveStage:
		// 驗證未通過，等待新的份數
		servings, ok := recipe.ParseServings(t.message)
		if !ok {
			return respond(StatusError, TypeValidationError,
				"This recipe didn't pass the nutrition check. Reply with a different number of servings, or say cancel.", nil)
		}
		if err := flow.ReviseServings(servings); err != nil {
			return o.lostTrack(t, err)
		}
		o.recordCorrection(t, "servings", formatServings(st.Servings), formatServings(servings))
		return o.readyToSave(t, flow)
	default:
		t.state.Buffer.FlowState = nil
		if t.state.CurrentMode == session.ModeRecipeCreate {
			t.state.CurrentMode = session.ModeIdle
		}
		return nil
	}
}

// handleBatchReply batch_confirm：確認或修正總量後詢問份數
func (o *Orchestrator) handleBatchReply(t *turn, flow *session.RecipeFlow, st session.BatchConfirmStage) *Response {
	reply := recipe.ParseBatchSizeResponse(t.message)
	confirmed := reply.Confirmed || (!reply.HasCorrection() && o.phrases.Classify(t.message) == ReplyConfirm)

	switch {
	case reply.HasCorrection():
		size, _ := reply.BatchSize()
		if err := flow.CorrectBatch(size); err != nil {
			return o.lostTrack(t, err)
		}
		o.recordCorrection(t, "batch_size", st.BatchSize.String(), size.String())
		t.step("Batch size updated to " + size.String())
	case confirmed && st.BatchSize.Amount > 0:
		t.step("Batch size confirmed")
	default:
		return respond(StatusProposal, TypePendingBatchConfirm,
			"How big is the whole batch? For example \"2 liters\" or \"1.5 kg\".", map[string]interface{}{
				"batch": st.Estimate,
			})
	}

	if err := flow.ConfirmBatch(); err != nil {
		return o.lostTrack(t, err)
	}
	size := flow.Stage().(session.ServingsConfirmStage).BatchSize
	return respond(StatusProposal, TypePendingServingsConfirm,
		fmt.Sprintf("Great, the batch is about %s. How many servings does it make?", size.String()),
		map[string]interface{}{"batch_size": size})
}

// handleServingsReply servings_confirm：接受整數或小數
func (o *Orchestrator) handleServingsReply(t *turn, flow *session.RecipeFlow) *Response {
	servings, ok := recipe.ParseServings(t.message)
	if !ok {
		return respond(StatusProposal, TypePendingServingsConfirm,
			"How many servings does this batch make? A number like 4 or 2.5 works.", nil)
	}
	if err := flow.SetServings(servings); err != nil {
		return o.lostTrack(t, err)
	}
	t.step("Servings set to " + formatServings(servings))
	return o.readyToSave(t, flow)
}

// readyToSave 計算每份營養並驗證；通過才掛上待確認的儲存動作
func (o *Orchestrator) readyToSave(t *turn, flow *session.RecipeFlow) *Response {
	per, ok := flow.PerServing()
	if !ok {
		return o.lostTrack(t, session.ErrIllegalTransition)
	}
	st := flow.Stage().(session.ReadyToSaveStage)

	items, v := o.validate(t, []nutrition.NutritionData{per}, flow.RecipeName, per.ServingSize)
	if !v.Passed {
		if servingsDependent(items[0], v) {
			t.state.ClearPendingAction()
			t.state.CurrentMode = session.ModeRecipeCreate
			return validationFailed(v, "Reply with a different number of servings, or say cancel.")
		}
		finish(t)
		t.state.Buffer.FlowState = nil
		return validationFailed(v, "Changing the servings won't fix this. Please describe the ingredients again with amounts.")
	}

	p := recipeSavePayload{
		RecipeName: flow.RecipeName,
		Servings:   st.Servings,
		PerServing: items[0],
		Warnings:   v.Warnings,
	}
	if err := o.setPending(t, session.PendingRecipeSave, p, session.ModeRecipeCreate); err != nil {
		return o.lostTrack(t, err)
	}

	msg := fmt.Sprintf("%s makes %s (batch %s). Each serving has %.0f kcal, %.1fg protein, %.1fg fat and %.1fg carbs.",
		flow.RecipeName, formatServings(st.Servings), st.BatchSize.String(),
		p.PerServing.Calories, p.PerServing.ProteinG, p.PerServing.FatTotalG, p.PerServing.CarbsG)
	msg = withWarnings(msg, p.Warnings) + "\nShould I save this recipe?"
	return respond(StatusProposal, TypeConfirmRecipeSave, msg, map[string]interface{}{
		"recipe_name": flow.RecipeName,
		"servings":    st.Servings,
		"batch_size":  st.BatchSize,
		"per_serving": p.PerServing,
		"warnings":    p.Warnings,
	})
}

// servingsDependent 只有階層超量（含容許誤差）會隨份數改變；負值與幽靈熱量不會
func servingsDependent(per nutrition.NutritionData, v nutrition.ValidationResult) bool {
	return len(v.Errors) == len(nutrition.ValidateNutrientHierarchy(per).Violations)
}

// resolveRecipeSave 確認儲存、拒絕丟棄，或修正份數後重新確認
func (o *Orchestrator) resolveRecipeSave(t *turn, kind ReplyKind, p recipeSavePayload) *Response {
	flow := t.state.Buffer.FlowState
	if flow == nil || flow.Step() != session.StepReadyToSave {
		return o.lostTrack(t, session.ErrInvalidStage)
	}

	switch kind {
	case ReplyConfirm:
		return o.saveRecipe(t, flow)
	case ReplyDecline:
		finish(t)
		t.state.Buffer.FlowState = nil
		return respond(StatusSuccess, TypeActionCancelled, "Okay, I won't save that recipe.", nil)
	}

	servings, ok := recipe.ParseServings(t.message)
	if !ok {
		return reask(TypeConfirmRecipeSave,
			"Should I save this recipe? Reply yes to save it, no to discard it, or send a different number of servings.")
	}
	if servings == p.Servings {
		return o.saveRecipe(t, flow)
	}
	if err := flow.ReviseServings(servings); err != nil {
		return o.lostTrack(t, err)
	}
	o.recordCorrection(t, "servings", formatServings(p.Servings), formatServings(servings))
	t.step("Servings updated to " + formatServings(servings))
	return o.readyToSave(t, flow)
}

// saveRecipe 寫入食譜並設為作用中的食譜
func (o *Orchestrator) saveRecipe(t *turn, flow *session.RecipeFlow) *Response {
	per, ok := flow.PerServing()
	if !ok {
		return o.lostTrack(t, session.ErrInvalidStage)
	}
	st := flow.Stage().(session.ReadyToSaveStage)

	rec := &store.SavedRecipe{
		UserID:         t.req.UserID,
		Name:           flow.RecipeName,
		Ingredients:    flow.Ingredients,
		Fingerprint:    flow.Fingerprint,
		Servings:       st.Servings,
		TotalNutrition: flow.TotalNutrition.Rounded(),
		PerServing:     nutrition.SanitizeNutrients(per),
		CreatedAt:      o.sessions.Now(),
	}
	switch st.BatchSize.Unit {
	case "g":
		rec.BatchGrams = st.BatchSize.Amount
	case "ml":
		rec.BatchMl = st.BatchSize.Amount
	}

	t.step("Saving recipe")
	if err := o.store.InsertRecipe(t.ctx, rec); err != nil {
		return persistenceFailed("insert recipe", err)
	}

	finish(t)
	t.state.Buffer.FlowState = nil
	t.state.Buffer.LastTopic = "recipe"
	t.state.Buffer.ActiveRecipeContext = &session.ActiveRecipeContext{
		RecipeID:    rec.ID,
		Name:        rec.Name,
		Fingerprint: rec.Fingerprint,
	}

	msg := fmt.Sprintf("Saved %q: %s at %.0f kcal each. Tell me when you eat it and I'll log a serving.",
		rec.Name, formatServings(rec.Servings), rec.PerServing.Calories)
	return respond(StatusSuccess, TypeRecipeSaved, msg, map[string]interface{}{"recipe": rec})
}
