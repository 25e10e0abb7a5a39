package health

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"nutripal/internal/core/analytics"
	"nutripal/internal/pkg/common"
)

const checkTimeout = 2 * time.Second

// Check 就緒檢查項目，例如資料庫或 Redis 連線
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// HealthResponse 健康檢查響應
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	Runtime   map[string]interface{} `json:"runtime"`
	Analytics *analytics.Status      `json:"analytics,omitempty"`
}

// Handler 健康檢查處理器
type Handler struct {
	version   string
	started   time.Time
	checks    []Check
	analytics func() analytics.Status
}

// NewHandler 創建健康檢查處理器；analyticsStatus 可為 nil
func NewHandler(version string, checks []Check, analyticsStatus func() analytics.Status) *Handler {
	return &Handler{
		version:   version,
		started:   time.Now(),
		checks:    checks,
		analytics: analyticsStatus,
	}
}

// HealthCheck 版本、執行期與分析佇列狀態
func (h *Handler) HealthCheck(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   h.version,
		Uptime:    time.Since(h.started).Round(time.Second).String(),
		Runtime: map[string]interface{}{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]interface{}{
				"alloc":       m.Alloc,
				"total_alloc": m.TotalAlloc,
				"sys":         m.Sys,
				"num_gc":      m.NumGC,
			},
		},
	}
	if h.analytics != nil {
		status := h.analytics()
		response.Analytics = &status
	}

	common.LogDebug("Health check request",
		zap.String("client_ip", c.ClientIP()),
		zap.String("path", c.Request.URL.Path),
	)

	c.JSON(http.StatusOK, response)
}

// ReadinessCheck 依序執行所有檢查，任何一項失敗即回傳 503
func (h *Handler) ReadinessCheck(c *gin.Context) {
	results := make(map[string]string, len(h.checks))
	ready := true

	for _, check := range h.checks {
		ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
		err := check.Fn(ctx)
		cancel()

		if err != nil {
			ready = false
			results[check.Name] = err.Error()
			common.LogWarn("就緒檢查失敗", zap.String("check", check.Name), zap.Error(err))
			continue
		}
		results[check.Name] = "ok"
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "checks": results})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "checks": results})
}

// LivenessCheck 存活檢查處理器
func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}
