package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"nutripal/internal/core/ai/cache"
	"nutripal/internal/core/ai/provider"
	"nutripal/internal/pkg/common"

	"go.uber.org/zap"
)

// ErrTimeout 能力呼叫超過時限
var ErrTimeout = errors.New("capability call timed out")

// Call 一次能力呼叫
type Call struct {
	// Capability 呼叫名稱，用於日誌與快取鍵
	Capability string
	System     string
	Prompt     string
	// Cacheable 相同輸入可重用回應（營養查詢）
	Cacheable   bool
	MaxTokens   int
	Temperature float64
}

// Service AI 服務：統一超時、快取與日誌
type Service struct {
	provider provider.Provider
	cache    cache.Cache
	timeout  time.Duration
}

// NewService 創建 AI 服務，cache 可為 nil
func NewService(p provider.Provider, c cache.Cache, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = p.GetTimeout()
	}
	return &Service{provider: p, cache: c, timeout: timeout}
}

// Complete 送出請求並回傳文字內容
func (s *Service) Complete(ctx context.Context, call Call) (string, error) {
	prompt := strings.TrimSpace(call.Prompt)
	if prompt == "" {
		return "", common.NewValidationError("prompt", "must not be empty")
	}

	var key string
	if call.Cacheable && s.cache != nil {
		key = cache.Key(call.Capability, s.provider.GetModel(), call.System, prompt)
		if val, err := s.cache.Get(ctx, key); err == nil && val != "" {
			common.LogCacheHit(call.Capability)
			return val, nil
		} else if err != nil && !errors.Is(err, common.ErrCacheMiss) {
			common.LogWarn("讀取快取失敗", zap.String("capability", call.Capability), zap.Error(err))
		}
		common.LogCacheMiss(call.Capability)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	messages := make([]provider.Message, 0, 2)
	if call.System != "" {
		messages = append(messages, provider.Message{Role: "system", Content: call.System})
	}
	messages = append(messages, provider.Message{Role: "user", Content: prompt})

	start := time.Now()
	resp, err := s.provider.Generate(ctx, &provider.Request{
		Messages:    messages,
		MaxTokens:   call.MaxTokens,
		Temperature: call.Temperature,
		JSONMode:    true,
	})
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w after %s: %v", ErrTimeout, s.timeout, err)
	}
	common.LogAICall(call.Capability, time.Since(start), err)
	if err != nil {
		return "", err
	}

	if key != "" {
		if err := s.cache.Set(ctx, key, resp.Content); err != nil {
			common.LogWarn("寫入快取失敗", zap.String("capability", call.Capability), zap.Error(err))
		}
	}
	return resp.Content, nil
}

// Model 目前使用的模型
func (s *Service) Model() string {
	return s.provider.GetModel()
}

// Close 關閉底層提供者
func (s *Service) Close() error {
	return s.provider.Close()
}
