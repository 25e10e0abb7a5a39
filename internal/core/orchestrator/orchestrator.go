package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"nutripal/internal/core/ai/intent"
	"nutripal/internal/core/ai/lookup"
	"nutripal/internal/core/nutrition"
	"nutripal/internal/core/session"
	"nutripal/internal/core/store"
	"nutripal/internal/pkg/common"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	defaultCapabilityTimeout = 20 * time.Second
	recentRecipeLimit        = 20
	tracerName               = "nutripal/orchestrator"
)

// IntentExtractor 意圖擷取能力
type IntentExtractor interface {
	Extract(ctx context.Context, in intent.Input) (*intent.Result, error)
}

// NutritionLookup 營養查詢能力
type NutritionLookup interface {
	Lookup(ctx context.Context, q lookup.Query) ([]nutrition.NutritionData, error)
}

// Deps 協調器依賴
type Deps struct {
	Sessions  *session.Manager
	Store     store.Store
	Extractor IntentExtractor
	Lookup    NutritionLookup
	Validator *nutrition.Validator
	Phrases   *PhrasePolicy
	// CapabilityTimeout 單次能力呼叫上限
	CapabilityTimeout time.Duration
	Tracer            trace.Tracer
}

// Orchestrator 對話協調器：訊息 + 對話狀態 → 回應
type Orchestrator struct {
	sessions  *session.Manager
	store     store.Store
	extractor IntentExtractor
	lookup    NutritionLookup
	validator *nutrition.Validator
	phrases   *PhrasePolicy
	timeout   time.Duration
	tracer    trace.Tracer
}

// New 創建協調器
func New(d Deps) *Orchestrator {
	o := &Orchestrator{
		sessions:  d.Sessions,
		store:     d.Store,
		extractor: d.Extractor,
		lookup:    d.Lookup,
		validator: d.Validator,
		phrases:   d.Phrases,
		timeout:   d.CapabilityTimeout,
		tracer:    d.Tracer,
	}
	if o.validator == nil {
		o.validator = nutrition.NewValidator(nil)
	}
	if o.phrases == nil {
		o.phrases = DefaultPhrases()
	}
	if o.timeout <= 0 {
		o.timeout = defaultCapabilityTimeout
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}
	return o
}

// turn 單一回合的工作狀態；state 是讀出後的副本，成功時才寫回
type turn struct {
	ctx     context.Context
	req     Request
	message string
	state   *session.State
	steps   []string
	intent  string
	agent   string
}

func (t *turn) step(label string) {
	t.steps = append(t.steps, label)
}

// HandleTurn 處理一則使用者訊息，永遠回傳結構化回應
func (o *Orchestrator) HandleTurn(ctx context.Context, req Request) *Response {
	ctx, span := o.tracer.Start(ctx, "HandleTurn", trace.WithAttributes(
		attribute.String("user_id", req.UserID),
	))
	defer span.End()
	start := time.Now()

	if err := req.Validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		msg := "Invalid request"
		if common.IsValidationError(err) {
			msg = err.Error()
		}
		return respond(StatusError, TypeInvalidRequest, msg, nil)
	}

	unlock := o.sessions.Lock(req.UserID)
	defer unlock()

	stored, err := o.sessions.GetSession(ctx, req.UserID, req.SessionID)
	if err != nil {
		common.LogError("讀取對話失敗", zap.String("user_id", req.UserID), zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "load session")
		return fatal()
	}

	t := &turn{
		ctx:     ctx,
		req:     req,
		message: strings.TrimSpace(req.Message),
		state:   stored.Clone(),
	}
	resp := o.dispatch(t)

	if resp.ResponseType.commits() {
		t.state.SetContext(t.intent, t.agent, string(resp.ResponseType))
		if err := o.sessions.UpdateSession(ctx, t.state); err != nil {
			common.LogError("寫回對話失敗", zap.String("user_id", req.UserID), zap.Error(err))
			span.RecordError(err)
			resp = fatal()
		}
	}

	resp.Steps = t.steps
	resp.SessionID = stored.ID

	span.SetAttributes(
		attribute.String("session_id", stored.ID),
		attribute.String("response_type", string(resp.ResponseType)),
		attribute.String("status", string(resp.Status)),
		attribute.String("mode", string(t.state.CurrentMode)),
	)
	if resp.Status == StatusError {
		span.SetStatus(codes.Error, string(resp.ResponseType))
	}

	common.LogInfo("對話回合完成",
		zap.String("user_id", req.UserID),
		zap.String("session_id", stored.ID),
		zap.String("response_type", string(resp.ResponseType)),
		zap.String("intent", t.intent),
		zap.Duration("耗時", time.Since(start)),
	)
	return resp
}

// dispatch 優先順序：取消 → 待確認動作 → 食譜流程 → 釐清回覆 → 問候快速路徑 → 意圖分類
func (o *Orchestrator) dispatch(t *turn) *Response {
	if o.phrases.IsCancel(t.message) {
		return o.cancel(t)
	}

	if t.state.HasPendingAction() {
		return o.handlePending(t)
	}

	if t.state.Buffer.FlowState != nil {
		if resp := o.handleRecipeStep(t); resp != nil {
			return resp
		}
	}

	if t.state.Buffer.PendingClarification != nil {
		return o.handleClarificationReply(t)
	}

	if o.phrases.IsGreeting(t.message) {
		t.step("Greeting detected, skipped intent extraction")
		t.intent = string(intent.Greeting)
		t.agent = "fast_path"
		return greeting(t.message)
	}

	t.step("Understanding your message")
	result, err := o.extract(t, intent.Input{})
	if err != nil {
		return capabilityError(err)
	}
	return o.route(t, result)
}

// extract 呼叫意圖擷取，帶入近期對話與緩衝摘要
func (o *Orchestrator) extract(t *turn, in intent.Input) (*intent.Result, error) {
	in.Message = t.message
	in.History = t.req.ConversationHistory
	in.BufferSummary = summarizeBuffer(t.state)

	ctx, cancel := context.WithTimeout(t.ctx, o.timeout)
	defer cancel()
	result, err := o.extractor.Extract(ctx, in)
	if err != nil {
		return nil, err
	}
	t.intent = string(result.Intent)
	return result, nil
}

// lookupNutrition 呼叫營養查詢
func (o *Orchestrator) lookupNutrition(t *turn, q lookup.Query) ([]nutrition.NutritionData, error) {
	ctx, cancel := context.WithTimeout(t.ctx, o.timeout)
	defer cancel()
	return o.lookup.Lookup(ctx, q)
}

// route 依意圖分派
func (o *Orchestrator) route(t *turn, r *intent.Result) *Response {
	if r.NeedsClarification() {
		return o.askClarification(t, r)
	}

	switch r.Intent {
	case intent.LogFood:
		return o.handleLogFood(t, r)
	case intent.LogRecipe:
		return o.handleLogRecipe(t, r)
	case intent.CreateRecipe:
		return o.handleCreateRecipe(t, r)
	case intent.UpdateGoals, intent.SuggestGoals:
		return o.handleGoalProposal(t, r)
	case intent.ShowGoals:
		return o.handleShowGoals(t)
	case intent.QueryNutrition:
		return o.handleQuery(t, r)
	case intent.Greeting:
		t.agent = "chat"
		return greeting(t.message)
	case intent.OffTopic:
		t.agent = "chat"
		return respond(StatusSuccess, TypeOffTopic,
			"I'm your nutrition assistant, so I can help you log meals, save recipes and track goals.", nil)
	case intent.Cancel:
		return o.cancel(t)
	case intent.Confirm, intent.Decline:
		return respond(StatusSuccess, TypeUnknown, "There's nothing waiting for confirmation right now.", nil)
	default:
		return respond(StatusSuccess, TypeUnknown,
			"I'm not sure what you'd like to do. You can tell me what you ate, share a recipe, or set a nutrition goal.", nil)
	}
}

// cancel 清除待確認動作、流程與釐清內容，保留其他緩衝
func (o *Orchestrator) cancel(t *turn) *Response {
	t.intent = string(intent.Cancel)
	t.agent = "orchestrator"
	active := t.state.HasPendingAction() || t.state.Buffer.FlowState != nil ||
		t.state.Buffer.PendingClarification != nil || t.state.CurrentMode != session.ModeIdle

	t.state.ClearPendingAction()
	t.state.Buffer.FlowState = nil
	t.state.ClearClarification()
	t.state.CurrentMode = session.ModeIdle

	if !active {
		return respond(StatusSuccess, TypeActionCancelled, "There was nothing in progress to cancel.", nil)
	}
	t.step("Cancelled the action in progress")
	return respond(StatusSuccess, TypeActionCancelled, "Okay, I've cancelled that.", nil)
}

// summarizeBuffer 給意圖擷取的對話摘要
func summarizeBuffer(s *session.State) string {
	parts := make([]string, 0, 4)
	if s.CurrentMode != session.ModeIdle {
		parts = append(parts, "mode "+string(s.CurrentMode))
	}
	if f := s.Buffer.FlowState; f != nil {
		parts = append(parts, fmt.Sprintf("creating recipe %q at step %s", f.RecipeName, f.Step()))
	}
	if a := s.Buffer.ActiveRecipeContext; a != nil {
		parts = append(parts, fmt.Sprintf("last recipe %q", a.Name))
	}
	if len(s.Buffer.RecentFoods) > 0 {
		parts = append(parts, "recent foods: "+strings.Join(s.Buffer.RecentFoods, ", "))
	}
	if s.Buffer.LastTopic != "" {
		parts = append(parts, "last topic: "+s.Buffer.LastTopic)
	}
	return strings.Join(parts, "; ")
}

func greeting(message string) *Response {
	text := "Hi! Tell me what you ate, share a recipe, or ask about your goals."
	if strings.Contains(strings.ToLower(message), "thank") {
		text = "You're welcome! Anything else you'd like to log?"
	}
	return respond(StatusSuccess, TypeGreeting, text, nil)
}

// capabilityError 外部能力失敗；對話狀態不寫回
func capabilityError(err error) *Response {
	common.LogWarn("外部能力呼叫失敗", zap.Error(common.ErrAIServiceError.Wrap(err)))
	return respond(StatusError, TypeCapabilityError,
		"I'm having trouble analyzing that right now. Please try the same message again in a moment.", nil)
}

// fatal 持久化失敗
func fatal() *Response {
	return respond(StatusError, TypeFatalError,
		"Something went wrong while saving. Nothing was recorded, please try again.", nil)
}

// persistenceFailed 記錄錯誤並回傳 fatal_error
func persistenceFailed(op string, err error) *Response {
	common.LogError("寫入紀錄失敗", zap.String("op", op), zap.Error(common.ErrPersistence.Wrap(err)))
	return fatal()
}

func isNotFound(err error) bool {
	return errors.Is(err, lookup.ErrNotFound) || errors.Is(err, store.ErrNotFound)
}
