package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound 找不到對話狀態
	ErrNotFound = errors.New("session not found")
	// ErrIllegalTransition 食譜流程不允許的步驟轉換
	ErrIllegalTransition = errors.New("illegal recipe flow transition")
	// ErrInvalidStage 食譜流程的序列化資料與宣告的步驟不符
	ErrInvalidStage = errors.New("invalid recipe flow stage data")
	// ErrNoPendingAction 目前沒有待確認動作
	ErrNoPendingAction = errors.New("no pending action")
)

// Mode 決定下一則訊息由哪個流程解讀
type Mode string

const (
	ModeIdle          Mode = "idle"
	ModeLogFood       Mode = "flow_log_food"
	ModeRecipeCreate  Mode = "flow_recipe_create"
	ModeRecipeMod     Mode = "flow_recipe_mod"
	ModeGoalUpdate    Mode = "flow_goal_update"
	ModeClarification Mode = "flow_clarification"
)

// PendingType 待確認動作類型
type PendingType string

const (
	PendingFoodLog    PendingType = "food_log"
	PendingRecipeSave PendingType = "recipe_save"
	PendingGoalUpdate PendingType = "goal_update"
)

// PendingAction 等待使用者確認的寫入動作，Data 內容由發起的流程定義
type PendingAction struct {
	Type      PendingType     `json:"type"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewPendingAction 將 payload 序列化為待確認動作
func NewPendingAction(t PendingType, payload any, now time.Time) (*PendingAction, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal pending %s: %w", t, err)
	}
	return &PendingAction{Type: t, Data: data, CreatedAt: now}, nil
}

// Decode 解出 payload
func (p *PendingAction) Decode(v any) error {
	if p == nil {
		return ErrNoPendingAction
	}
	if err := json.Unmarshal(p.Data, v); err != nil {
		return fmt.Errorf("decode pending %s: %w", p.Type, err)
	}
	return nil
}

// State 單一使用者（單一對話）的對話狀態
type State struct {
	ID               string         `json:"id"`
	UserID           string         `json:"user_id"`
	CurrentMode      Mode           `json:"current_mode"`
	PendingAction    *PendingAction `json:"pending_action,omitempty"`
	Buffer           Buffer         `json:"buffer"`
	MissingFields    []string       `json:"missing_fields"`
	LastIntent       string         `json:"last_intent,omitempty"`
	LastAgent        string         `json:"last_agent,omitempty"`
	LastResponseType string         `json:"last_response_type,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// NewState 建立閒置狀態
func NewState(id, userID string, now time.Time) *State {
	return &State{
		ID:            id,
		UserID:        userID,
		CurrentMode:   ModeIdle,
		Buffer:        Buffer{},
		MissingFields: []string{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Reset 回到閒置：清除模式、緩衝、缺少欄位與待確認動作
func (s *State) Reset() {
	s.CurrentMode = ModeIdle
	s.PendingAction = nil
	s.Buffer = Buffer{}
	s.MissingFields = []string{}
}

// SetPendingAction 設定待確認動作
func (s *State) SetPendingAction(action *PendingAction) {
	s.PendingAction = action
}

// ClearPendingAction 清除待確認動作
func (s *State) ClearPendingAction() {
	s.PendingAction = nil
}

// HasPendingAction 是否有待確認動作
func (s *State) HasPendingAction() bool {
	return s.PendingAction != nil
}

// SetContext 記錄診斷用的最後意圖、處理者與回應類型
func (s *State) SetContext(intent, agent, responseType string) {
	if intent != "" {
		s.LastIntent = intent
	}
	if agent != "" {
		s.LastAgent = agent
	}
	if responseType != "" {
		s.LastResponseType = responseType
	}
}

// SetClarification 保存原始訊息與推理，並進入釐清模式
func (s *State) SetClarification(c ClarificationContext) {
	s.Buffer.PendingClarification = &c
	s.CurrentMode = ModeClarification
}

// ClearClarification 只移除釐清內容，其餘緩衝不動
func (s *State) ClearClarification() {
	s.Buffer.PendingClarification = nil
	if s.CurrentMode == ModeClarification {
		s.CurrentMode = ModeIdle
	}
}

// Clone 深拷貝，回合處理失敗時可直接丟棄
func (s *State) Clone() *State {
	out := *s
	if s.PendingAction != nil {
		p := *s.PendingAction
		p.Data = append(json.RawMessage(nil), s.PendingAction.Data...)
		out.PendingAction = &p
	}
	out.MissingFields = append([]string{}, s.MissingFields...)
	out.Buffer = s.Buffer.Clone()
	return &out
}

// ClarificationContext 模糊訊息的原始內容，供下一則回覆重新解讀
type ClarificationContext struct {
	OriginalMessage string    `json:"original_message"`
	Reasoning       string    `json:"reasoning,omitempty"`
	Question        string    `json:"question,omitempty"`
	Intent          string    `json:"intent,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// UserCorrection 使用者對系統輸出的修正紀錄
type UserCorrection struct {
	Field     string    `json:"field"`
	Original  string    `json:"original"`
	Corrected string    `json:"corrected"`
	CreatedAt time.Time `json:"created_at"`
}

// ActiveRecipeContext 最近一次儲存或記錄的食譜
type ActiveRecipeContext struct {
	RecipeID    string `json:"recipe_id,omitempty"`
	Name        string `json:"name"`
	Fingerprint string `json:"fingerprint"`
}
