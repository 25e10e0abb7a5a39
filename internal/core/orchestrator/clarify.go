package orchestrator

import (
	"strings"

	"nutripal/internal/core/ai/intent"
	"nutripal/internal/core/session"
)

const defaultClarificationQuestion = "Could you tell me a bit more about what you mean?"

// askClarification 保存原始訊息與推理並提出追問；連續追問時累積原始訊息
func (o *Orchestrator) askClarification(t *turn, r *intent.Result) *Response {
	t.agent = "clarifier"

	question := r.ClarificationQuestion
	if question == "" {
		question = defaultClarificationQuestion
	}
	reasoning := r.Reasoning
	if reasoning == "" {
		reasoning = strings.Join(r.AmbiguityReasons, "; ")
	}

	c := session.ClarificationContext{
		OriginalMessage: t.message,
		Reasoning:       reasoning,
		Question:        question,
		Intent:          string(r.Intent),
		CreatedAt:       o.sessions.Now(),
	}
	if prev := t.state.Buffer.PendingClarification; prev != nil && !strings.Contains(t.message, prev.OriginalMessage) {
		c.OriginalMessage = prev.OriginalMessage + "\n" + t.message
	}
	t.state.SetClarification(c)
	t.step("Asking a clarifying question")

	status := StatusClarification
	if r.Ambiguity == intent.AmbiguityHigh {
		status = StatusAmbiguous
	}
	return respond(status, TypeClarificationNeeded, question, map[string]interface{}{
		"reasons": r.AmbiguityReasons,
	})
}

// handleClarificationReply 以原始訊息為背景重新解讀使用者的回覆
func (o *Orchestrator) handleClarificationReply(t *turn) *Response {
	c := *t.state.Buffer.PendingClarification

	t.step("Re-reading your earlier message with this answer")
	result, err := o.extract(t, intent.Input{
		OriginalMessage: c.OriginalMessage,
		PriorReasoning:  c.Reasoning,
	})
	if err != nil {
		return capabilityError(err)
	}
	if result.NeedsClarification() {
		return o.askClarification(t, result)
	}

	t.state.ClearClarification()
	if result.Intent == intent.Unknown && c.Intent != "" {
		result.Intent = intent.ParseIntent(c.Intent)
	}
	t.message = c.OriginalMessage + "\n" + t.message
	return o.route(t, result)
}
