package orchestrator

import (
	"strings"
	"time"
	"unicode/utf8"

	"nutripal/internal/core/ai/intent"
	"nutripal/internal/pkg/common"
)

const maxMessageLength = 4000

// Status 回應狀態
type Status string

const (
	StatusSuccess       Status = "success"
	StatusError         Status = "error"
	StatusAmbiguous     Status = "ambiguous"
	StatusClarification Status = "clarification"
	StatusProposal      Status = "proposal"
)

// ResponseType 回應類型
type ResponseType string

const (
	TypeFoodLogged             ResponseType = "food_logged"
	TypeConfirmFoodLog         ResponseType = "confirmation_food_log"
	TypePendingBatchConfirm    ResponseType = "pending_batch_confirm"
	TypePendingServingsConfirm ResponseType = "pending_servings_confirm"
	TypePendingDuplicate       ResponseType = "pending_duplicate_confirm"
	TypeConfirmRecipeSave      ResponseType = "confirmation_recipe_save"
	TypeRecipeSaved            ResponseType = "recipe_saved"
	TypeRecipeLogged           ResponseType = "recipe_logged"
	TypeClarificationNeeded    ResponseType = "clarification_needed"
	TypeGoalUpdated            ResponseType = "goal_updated"
	TypeGoalsSummary           ResponseType = "goals_summary"
	TypeConfirmGoalUpdate      ResponseType = "confirmation_goal_update"
	TypeNutritionAnswer        ResponseType = "nutrition_answer"
	TypeGreeting               ResponseType = "greeting"
	TypeOffTopic               ResponseType = "off_topic"
	TypeActionCancelled        ResponseType = "action_cancelled"
	TypeActionConfirmed        ResponseType = "action_confirmed"
	TypeValidationError        ResponseType = "validation_error"
	TypeCapabilityError        ResponseType = "capability_error"
	TypeInvalidRequest         ResponseType = "invalid_request"
	TypeFatalError             ResponseType = "fatal_error"
	TypeUnknown                ResponseType = "unknown"
)

// commits 是否寫回對話狀態；失敗回合保持原狀讓使用者重試
func (t ResponseType) commits() bool {
	switch t {
	case TypeCapabilityError, TypeInvalidRequest, TypeFatalError:
		return false
	default:
		return true
	}
}

// Request 一個對話回合的輸入
type Request struct {
	Message             string                  `json:"message"`
	UserID              string                  `json:"user_id"`
	SessionID           string                  `json:"session_id,omitempty"`
	ConversationHistory []intent.HistoryMessage `json:"conversation_history,omitempty"`
	Timezone            string                  `json:"timezone,omitempty"`
}

// Validate 檢查輸入欄位
func (r *Request) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return common.NewValidationError("user_id", "is required")
	}
	if strings.TrimSpace(r.Message) == "" {
		return common.NewValidationError("message", "must not be empty")
	}
	if !utf8.ValidString(r.Message) {
		return common.NewValidationError("message", "must be valid UTF-8")
	}
	if len(r.Message) > maxMessageLength {
		return common.NewValidationError("message", "is too long")
	}
	if r.Timezone != "" {
		if _, err := time.LoadLocation(r.Timezone); err != nil {
			return common.NewValidationError("timezone", "unknown time zone "+r.Timezone)
		}
	}
	return nil
}

// Response 一個對話回合的結構化輸出
type Response struct {
	Status       Status       `json:"status"`
	Message      string       `json:"message"`
	ResponseType ResponseType `json:"response_type"`
	Data         interface{}  `json:"data,omitempty"`
	Steps        []string     `json:"steps,omitempty"`
	SessionID    string       `json:"session_id,omitempty"`
}

func respond(status Status, rt ResponseType, msg string, data interface{}) *Response {
	return &Response{Status: status, ResponseType: rt, Message: msg, Data: data}
}
