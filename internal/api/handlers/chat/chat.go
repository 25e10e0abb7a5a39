package chat

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"nutripal/internal/api/middleware"
	"nutripal/internal/core/orchestrator"
	"nutripal/internal/core/session"
	"nutripal/internal/pkg/common"
)

// TurnHandler 處理一個對話回合
type TurnHandler interface {
	HandleTurn(ctx context.Context, req orchestrator.Request) *orchestrator.Response
}

// Sessions 對話狀態查詢與重置
type Sessions interface {
	Lock(userID string) func()
	GetSession(ctx context.Context, userID, sessionID string) (*session.State, error)
	ClearSession(ctx context.Context, userID, sessionID string) (*session.State, error)
}

// ClearRequest 重置對話
type ClearRequest struct {
	UserID    string `json:"user_id" binding:"required"`
	SessionID string `json:"session_id,omitempty"`
}

// Handler 對話處理程序
type Handler struct {
	turns    TurnHandler
	sessions Sessions
}

// NewHandler 創建對話處理程序
func NewHandler(turns TurnHandler, sessions Sessions) *Handler {
	return &Handler{turns: turns, sessions: sessions}
}

// statusFor invalid_request → 400，fatal_error → 500，其餘 200
func statusFor(rt orchestrator.ResponseType) int {
	switch rt {
	case orchestrator.TypeInvalidRequest:
		return http.StatusBadRequest
	case orchestrator.TypeFatalError:
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}

// HandleChat POST /api/v1/chat
func (h *Handler) HandleChat(c *gin.Context) {
	var req orchestrator.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		common.LogWarn("請求格式無效",
			zap.Error(err),
			zap.String("request_id", requestid.Get(c)),
		)
		c.JSON(http.StatusBadRequest, &orchestrator.Response{
			Status:       orchestrator.StatusError,
			ResponseType: orchestrator.TypeInvalidRequest,
			Message:      "Invalid request format",
		})
		return
	}
	c.Set(middleware.ContextUserID, req.UserID)

	resp := h.turns.HandleTurn(c.Request.Context(), req)
	c.JSON(statusFor(resp.ResponseType), resp)
}

// GetSession GET /api/v1/session?user_id=&session_id=
func (h *Handler) GetSession(c *gin.Context) {
	userID := strings.TrimSpace(c.Query("user_id"))
	if userID == "" {
		c.JSON(http.StatusBadRequest, common.ErrInvalidRequest.ToResponse(false))
		return
	}
	c.Set(middleware.ContextUserID, userID)

	unlock := h.sessions.Lock(userID)
	state, err := h.sessions.GetSession(c.Request.Context(), userID, c.Query("session_id"))
	unlock()
	if err != nil {
		common.LogError("讀取對話失敗", zap.String("user_id", userID), zap.Error(err))
		ce := common.AsCustomError(err)
		c.JSON(ce.Status, ce.ToResponse(false))
		return
	}

	c.JSON(http.StatusOK, state)
}

// ClearSession POST /api/v1/session/clear
func (h *Handler) ClearSession(c *gin.Context) {
	var req ClearRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.UserID) == "" {
		c.JSON(http.StatusBadRequest, common.ErrInvalidRequest.ToResponse(false))
		return
	}
	c.Set(middleware.ContextUserID, req.UserID)

	unlock := h.sessions.Lock(req.UserID)
	state, err := h.sessions.ClearSession(c.Request.Context(), req.UserID, req.SessionID)
	unlock()
	if err != nil {
		common.LogError("重置對話失敗", zap.String("user_id", req.UserID), zap.Error(err))
		ce := common.AsCustomError(err)
		c.JSON(ce.Status, ce.ToResponse(false))
		return
	}

	common.LogInfo("對話已重置", zap.String("user_id", req.UserID), zap.String("session_id", state.ID))
	c.JSON(http.StatusOK, gin.H{
		"status":     "success",
		"session_id": state.ID,
		"state":      state,
	})
}
