package orchestrator

import (
	"errors"
	"fmt"
	"strings"

	"nutripal/internal/core/ai/intent"
	"nutripal/internal/core/ai/lookup"
	"nutripal/internal/core/nutrition"
	"nutripal/internal/core/recipe"
	"nutripal/internal/core/session"
	"nutripal/internal/core/store"
)

// handleLogFood 查詢營養、驗證，提出待確認的飲食紀錄
func (o *Orchestrator) handleLogFood(t *turn, r *intent.Result) *Response {
	t.agent = "food_logger"

	items := r.FoodItems
	if len(items) == 0 {
		if recipe.LooksLikeRecipe(t.message) {
			return o.handleCreateRecipe(t, r)
		}
		items = []intent.FoodItem{{Name: t.message}}
	}

	t.step("Looking up nutrition")
	found := make([]nutrition.NutritionData, 0, len(items))
	missing := make([]string, 0)
	portions := make([]string, 0, len(items))
	for _, item := range items {
		res, err := o.lookupNutrition(t, lookup.Query{Description: item.Name, Portion: item.Portion})
		if isNotFound(err) {
			missing = append(missing, item.String())
			continue
		}
		if err != nil {
			return capabilityError(err)
		}
		found = append(found, res...)
		if item.Portion != "" {
			portions = append(portions, item.Portion)
		}
	}

	if len(found) == 0 {
		return o.askClarification(t, &intent.Result{
			Intent:    intent.LogFood,
			Reasoning: "no nutrition data for " + strings.Join(missing, ", "),
			ClarificationQuestion: fmt.Sprintf(
				"I couldn't find nutrition info for %s. Could you describe it differently, or add a brand or portion?",
				strings.Join(missing, ", ")),
		})
	}

	resp := o.proposeFoodLog(t, foodLogPayload{
		Query:   t.message,
		Portion: strings.Join(portions, ", "),
		Items:   found,
	})
	if len(missing) > 0 && resp.Status == StatusProposal {
		resp.Message += fmt.Sprintf("\n(I couldn't find %s, so it's not included.)", strings.Join(missing, ", "))
	}
	return resp
}

// proposeFoodLog 驗證後掛上待確認的飲食紀錄
func (o *Orchestrator) proposeFoodLog(t *turn, p foodLogPayload) *Response {
	items, v := o.validate(t, p.Items, p.Query, p.Portion)
	if !v.Passed {
		return validationFailed(v, "Could you check the food or portion and tell me again?")
	}
	p.Items = items
	p.Warnings = v.Warnings

	mode := session.ModeLogFood
	if p.Duplicate {
		mode = session.ModeRecipeCreate
	}
	if err := o.setPending(t, session.PendingFoodLog, p, mode); err != nil {
		return o.lostTrack(t, err)
	}

	data := map[string]interface{}{
		"items":    p.Items,
		"totals":   nutrition.Sum(p.Items).Rounded(),
		"warnings": p.Warnings,
	}

	if p.Duplicate {
		msg := fmt.Sprintf("This looks like your saved recipe %q. Should I log %s of it instead? "+
			"Say yes to log it, or no to save it as a new recipe.", p.RecipeName, formatServings(p.Servings))
		data["recipe_id"] = p.RecipeID
		return respond(StatusProposal, TypePendingDuplicate, msg, data)
	}

	msg := "Here's what I found:\n" + describeAll(p.Items)
	msg = withWarnings(msg, p.Warnings) + "\nShould I log this?"
	return respond(StatusProposal, TypeConfirmFoodLog, msg, data)
}

// resolveFoodLog 確認寫入、拒絕丟棄，或以新份量重新查詢後再次確認
func (o *Orchestrator) resolveFoodLog(t *turn, kind ReplyKind, p foodLogPayload) *Response {
	switch kind {
	case ReplyConfirm:
		return o.commitFoodLog(t, p)
	case ReplyDecline:
		if p.Duplicate {
			flow := t.state.Buffer.FlowState
			if flow == nil {
				return o.lostTrack(t, errors.New("duplicate confirmation without recipe flow"))
			}
			t.state.ClearPendingAction()
			t.step("Continuing with a new recipe")
			return o.startRecipeFlow(t, flow)
		}
		finish(t)
		return respond(StatusSuccess, TypeActionCancelled, "Okay, I won't log that.", nil)
	}

	if p.RecipeID != "" && p.PerServing != nil {
		servings, ok := recipe.ParseServings(t.message)
		if !ok {
			return reask(TypeConfirmFoodLog, fmt.Sprintf(
				"Should I log %s of %s? Reply yes, no, or a different number of servings.", formatServings(p.Servings), p.RecipeName))
		}
		if servings == p.Servings {
			return o.commitFoodLog(t, p)
		}
		o.recordCorrection(t, "servings", formatServings(p.Servings), formatServings(servings))
		t.step("Updated servings to " + formatServings(servings))
		return o.proposeFoodLog(t, recipeLogPayload(t.message, p, servings))
	}

	portion, ok := parsePortion(t.message)
	if !ok {
		return reask(TypeConfirmFoodLog,
			"Should I log this? Reply yes to log it, no to skip it, or tell me a different portion (for example \"2 slices\").")
	}
	if sameText(portion, p.Portion) {
		return o.commitFoodLog(t, p)
	}

	q := lookup.Query{Description: p.Query, Portion: portion}
	if len(p.Items) == 1 {
		q.Description = p.Items[0].FoodName
	}
	t.step("Looking up nutrition for " + portion)
	items, err := o.lookupNutrition(t, q)
	if isNotFound(err) {
		return reask(TypeConfirmFoodLog, fmt.Sprintf(
			"I couldn't find nutrition for %s. Should I log the original portion instead?", portion))
	}
	if err != nil {
		return capabilityError(err)
	}

	o.recordCorrection(t, "portion", p.Portion, portion)
	return o.proposeFoodLog(t, foodLogPayload{Query: p.Query, Portion: portion, Items: items})
}

// commitFoodLog 寫入飲食紀錄；任何一筆失敗即回報 fatal_error
func (o *Orchestrator) commitFoodLog(t *turn, p foodLogPayload) *Response {
	now := o.sessions.Now()
	t.step("Saving to your food log")

	names := make([]string, 0, len(p.Items))
	for _, item := range p.Items {
		portion := item.ServingSize
		if portion == "" {
			portion = p.Portion
		}
		entry := &store.FoodLog{
			UserID:    t.req.UserID,
			FoodName:  item.FoodName,
			Portion:   portion,
			Nutrition: item,
			RecipeID:  p.RecipeID,
			LoggedAt:  now,
			Timezone:  t.req.Timezone,
		}
		if err := o.store.InsertFoodLog(t.ctx, entry); err != nil {
			return persistenceFailed("insert food log", err)
		}
		names = append(names, item.FoodName)
	}

	finish(t)
	t.state.Buffer.Apply(session.BufferPatch{RecentFoods: names})

	totals := nutrition.Sum(p.Items).Rounded()
	data := map[string]interface{}{"items": p.Items, "totals": totals}

	if p.RecipeID != "" {
		t.state.Buffer.FlowState = nil
		t.state.Buffer.LastTopic = "recipe"
		t.state.Buffer.ActiveRecipeContext = &session.ActiveRecipeContext{
			RecipeID:    p.RecipeID,
			Name:        p.RecipeName,
			Fingerprint: p.Fingerprint,
		}
		msg := fmt.Sprintf("Logged %s of %s (%.0f kcal).", formatServings(p.Servings), p.RecipeName, totals.Calories)
		return respond(StatusSuccess, TypeRecipeLogged, msg, data)
	}

	t.state.Buffer.LastTopic = "food_log"
	msg := fmt.Sprintf("Logged %s (%.0f kcal).", strings.Join(names, ", "), totals.Calories)
	return respond(StatusSuccess, TypeFoodLogged, msg, data)
}

// handleLogRecipe 記錄已儲存食譜的份數
func (o *Orchestrator) handleLogRecipe(t *turn, r *intent.Result) *Response {
	t.agent = "recipe_logger"

	name := r.RecipeName
	if name == "" && len(r.FoodItems) > 0 {
		name = r.FoodItems[0].Name
	}
	if name == "" {
		if len(r.Ingredients) > 0 {
			return o.handleCreateRecipe(t, r)
		}
		return o.askClarification(t, &intent.Result{
			Intent:                intent.LogRecipe,
			Reasoning:             "no recipe name",
			ClarificationQuestion: "Which of your saved recipes did you have?",
		})
	}

	t.step("Finding your saved recipe")
	rec, err := o.store.FindRecipeByName(t.ctx, t.req.UserID, name)
	if errors.Is(err, store.ErrNotFound) {
		if len(r.Ingredients) > 0 || recipe.LooksLikeRecipe(t.message) {
			return o.handleCreateRecipe(t, r)
		}
		return o.askClarification(t, &intent.Result{
			Intent:    intent.CreateRecipe,
			Reasoning: "no saved recipe named " + name,
			ClarificationQuestion: fmt.Sprintf(
				"I couldn't find a saved recipe called %q. Share its ingredients and I'll set it up.", name),
		})
	}
	if err != nil {
		return persistenceFailed("find recipe", err)
	}

	servings := r.Servings
	if servings <= 0 {
		servings = 1
	}
	return o.proposeRecipeLog(t, rec, servings, false)
}

// proposeRecipeLog 以每份營養乘上份數，提出待確認紀錄
func (o *Orchestrator) proposeRecipeLog(t *turn, rec *store.SavedRecipe, servings float64, duplicate bool) *Response {
	per := rec.PerServing
	p := foodLogPayload{
		Query:       t.message,
		RecipeID:    rec.ID,
		RecipeName:  rec.Name,
		Fingerprint: rec.Fingerprint,
		PerServing:  &per,
		Duplicate:   duplicate,
	}
	return o.proposeFoodLog(t, recipeLogPayload(t.message, p, servings))
}

func recipeLogPayload(query string, p foodLogPayload, servings float64) foodLogPayload {
	item := p.PerServing.Scale(servings).Rounded()
	item.FoodName = p.RecipeName
	item.ServingSize = formatServings(servings)

	p.Query = query
	p.Servings = servings
	p.Portion = item.ServingSize
	p.Items = []nutrition.NutritionData{item}
	p.Warnings = nil
	return p
}

// handleQuery 直接回答營養問題，不改變流程狀態
func (o *Orchestrator) handleQuery(t *turn, r *intent.Result) *Response {
	t.agent = "nutrition_qa"

	desc := r.Question
	if len(r.FoodItems) > 0 {
		parts := make([]string, 0, len(r.FoodItems))
		for _, f := range r.FoodItems {
			parts = append(parts, f.String())
		}
		desc = strings.Join(parts, ", ")
	}
	if desc == "" {
		desc = t.message
	}

	t.step("Looking up nutrition")
	items, err := o.lookupNutrition(t, lookup.Query{Description: desc})
	if isNotFound(err) {
		return respond(StatusSuccess, TypeNutritionAnswer, "I couldn't find nutrition information for that.", nil)
	}
	if err != nil {
		return capabilityError(err)
	}

	return respond(StatusSuccess, TypeNutritionAnswer, describeAll(items), map[string]interface{}{
		"items":  items,
		"totals": nutrition.Sum(items).Rounded(),
	})
}
