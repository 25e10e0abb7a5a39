package orchestrator

import (
	"fmt"
	"strconv"
	"strings"

	"nutripal/internal/core/ai/intent"
	"nutripal/internal/core/nutrition"
	"nutripal/internal/core/session"
	"nutripal/internal/core/store"
)

func formatGoal(g goalTarget) string {
	return fmt.Sprintf("%s: %s%s", g.Nutrient.Label(), strconv.FormatFloat(g.Target, 'f', -1, 64), g.Unit)
}

func formatGoals(goals []goalTarget) string {
	lines := make([]string, 0, len(goals))
	for _, g := range goals {
		lines = append(lines, "- "+formatGoal(g))
	}
	return strings.Join(lines, "\n")
}

// handleGoalProposal update_goals / suggest_goals → 待確認的目標更新
func (o *Orchestrator) handleGoalProposal(t *turn, r *intent.Result) *Response {
	t.agent = "goal_planner"

	goals := make([]goalTarget, 0, len(r.Goals))
	for _, g := range r.Goals {
		n, ok := nutrition.ParseNutrient(g.Nutrient)
		if !ok {
			continue
		}
		if g.Target <= 0 {
			return respond(StatusError, TypeInvalidRequest,
				fmt.Sprintf("A %s goal must be greater than zero.", n.Label()), nil)
		}
		goals = setGoal(goals, goalTarget{Nutrient: n, Target: g.Target, Unit: n.Unit()})
	}

	if len(goals) == 0 && r.Intent == intent.SuggestGoals {
		defaults := nutrition.DefaultGoals()
		for _, n := range nutrition.AllNutrients {
			if v, ok := defaults[n]; ok {
				goals = append(goals, goalTarget{Nutrient: n, Target: v, Unit: n.Unit()})
			}
		}
	}

	if len(goals) == 0 {
		return o.askClarification(t, &intent.Result{
			Intent:                r.Intent,
			Reasoning:             "no goal values",
			ClarificationQuestion: "Which goal would you like to set? For example \"set my protein goal to 150g\".",
		})
	}

	return o.proposeGoals(t, goalPayload{Goals: goals})
}

func setGoal(goals []goalTarget, g goalTarget) []goalTarget {
	for i := range goals {
		if goals[i].Nutrient == g.Nutrient {
			goals[i] = g
			return goals
		}
	}
	return append(goals, g)
}

// proposeGoals 檢查合理範圍並掛上待確認動作；範圍外只警告
func (o *Orchestrator) proposeGoals(t *turn, p goalPayload) *Response {
	p.Warnings = nil
	for _, g := range p.Goals {
		p.Warnings = append(p.Warnings, nutrition.ValidateGoal(g.Nutrient, g.Target).Warnings...)
	}

	if err := o.setPending(t, session.PendingGoalUpdate, p, session.ModeGoalUpdate); err != nil {
		return o.lostTrack(t, err)
	}

	msg := withWarnings("Here are the daily goals I'd set:\n"+formatGoals(p.Goals), p.Warnings) + "\nShould I save these goals?"
	return respond(StatusProposal, TypeConfirmGoalUpdate, msg, map[string]interface{}{
		"goals":    p.Goals,
		"warnings": p.Warnings,
	})
}

// resolveGoalUpdate 確認寫入、拒絕保留原目標，或修正單一目標值
func (o *Orchestrator) resolveGoalUpdate(t *turn, kind ReplyKind, p goalPayload) *Response {
	switch kind {
	case ReplyConfirm:
		return o.saveGoals(t, p)
	case ReplyDecline:
		finish(t)
		return respond(StatusSuccess, TypeActionCancelled, "Okay, I'll keep your current goals.", nil)
	}

	value, ok := parseNumber(t.message)
	if !ok {
		return reask(TypeConfirmGoalUpdate,
			"Should I save these goals? Reply yes, no, or a new value such as \"protein 150\".")
	}
	if value <= 0 {
		return respond(StatusError, TypeInvalidRequest, "Goal values must be greater than zero.", nil)
	}

	idx := -1
	if n, found := findNutrientMention(t.message); found {
		for i := range p.Goals {
			if p.Goals[i].Nutrient == n {
				idx = i
			}
		}
		if idx < 0 {
			p.Goals = append(p.Goals, goalTarget{Nutrient: n, Unit: n.Unit()})
			idx = len(p.Goals) - 1
		}
	} else if len(p.Goals) == 1 {
		idx = 0
	}
	if idx < 0 {
		return reask(TypeConfirmGoalUpdate,
			fmt.Sprintf("Which goal should be %s? For example \"protein %s\".",
				strconv.FormatFloat(value, 'f', -1, 64), strconv.FormatFloat(value, 'f', -1, 64)))
	}

	g := p.Goals[idx]
	if g.Target == value {
		return o.saveGoals(t, p)
	}
	if g.Target > 0 {
		o.recordCorrection(t, "goal."+string(g.Nutrient), strconv.FormatFloat(g.Target, 'f', -1, 64), strconv.FormatFloat(value, 'f', -1, 64))
	}
	p.Goals[idx].Target = value
	t.step("Updated " + g.Nutrient.Label() + " goal")
	return o.proposeGoals(t, p)
}

// saveGoals 寫入所有目標
func (o *Orchestrator) saveGoals(t *turn, p goalPayload) *Response {
	now := o.sessions.Now()
	t.step("Saving your goals")
	for _, g := range p.Goals {
		goal := &store.UserGoal{
			UserID:    t.req.UserID,
			Nutrient:  g.Nutrient,
			Target:    g.Target,
			Unit:      g.Unit,
			UpdatedAt: now,
		}
		if err := o.store.UpsertGoal(t.ctx, goal); err != nil {
			return persistenceFailed("upsert goal", err)
		}
	}

	finish(t)
	t.state.Buffer.LastTopic = "goals"
	return respond(StatusSuccess, TypeGoalUpdated, "Your goals are updated:\n"+formatGoals(p.Goals),
		map[string]interface{}{"goals": p.Goals})
}

// handleShowGoals 列出目前目標
func (o *Orchestrator) handleShowGoals(t *turn) *Response {
	t.agent = "goal_planner"
	t.step("Loading your goals")

	saved, err := o.store.ListGoals(t.ctx, t.req.UserID)
	if err != nil {
		return persistenceFailed("list goals", err)
	}
	if len(saved) == 0 {
		return respond(StatusSuccess, TypeGoalsSummary,
			"You haven't set any goals yet. Say \"suggest goals\" and I'll propose some.",
			map[string]interface{}{"goals": []goalTarget{}})
	}

	goals := make([]goalTarget, 0, len(saved))
	for _, g := range saved {
		goals = append(goals, goalTarget{Nutrient: g.Nutrient, Target: g.Target, Unit: g.Unit})
	}
	return respond(StatusSuccess, TypeGoalsSummary, "Your daily goals:\n"+formatGoals(goals),
		map[string]interface{}{"goals": goals})
}
