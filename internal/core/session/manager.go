package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"nutripal/internal/pkg/common"
)

// Manager 對話狀態操作。所有讀取-修改-寫入都必須在 Lock(userID) 之內呼叫
//
// 對話回合以 GetSession 取得狀態、在副本上修改、最後以 UpdateSession 一次寫回；
// SavePendingAction、UpdateBuffer、SetClarificationContext 等單欄位操作各自讀寫一次，
// 供回合以外的呼叫者使用
type Manager struct {
	repo  Repository
	locks *KeyedMutex
	now   func() time.Time
	newID func() string
}

// Option 設定 Manager
type Option func(*Manager)

// WithClock 替換時間來源
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithIDGenerator 替換對話 ID 產生器
func WithIDGenerator(gen func() string) Option {
	return func(m *Manager) { m.newID = gen }
}

// NewManager 創建對話管理器
func NewManager(repo Repository, opts ...Option) *Manager {
	m := &Manager{
		repo:  repo,
		locks: NewKeyedMutex(),
		now:   time.Now,
		newID: common.GenerateUUID,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Lock 取得使用者的臨界區，回傳解鎖函式
func (m *Manager) Lock(userID string) func() {
	return m.locks.Lock(userID)
}

// Now 管理器使用的時間
func (m *Manager) Now() time.Time {
	return m.now()
}

// GetSession 讀取對話；sessionID 為空時取最近更新的對話，不存在則建立閒置對話
func (m *Manager) GetSession(ctx context.Context, userID, sessionID string) (*State, error) {
	var (
		state *State
		err   error
	)
	if sessionID != "" {
		state, err = m.repo.Get(ctx, userID, sessionID)
	} else {
		state, err = m.repo.Latest(ctx, userID)
	}
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("load session: %w", err)
	}

	if sessionID == "" {
		sessionID = m.newID()
	}
	state = NewState(sessionID, userID, m.now())
	if err := m.repo.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	common.LogDebug("建立新對話", zap.String("user_id", userID), zap.String("session_id", sessionID))
	return state, nil
}

// UpdateSession 寫回整個對話狀態
func (m *Manager) UpdateSession(ctx context.Context, state *State) error {
	state.UpdatedAt = m.now()
	if err := m.repo.Save(ctx, state); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// mutate 讀取、套用修改、寫回
func (m *Manager) mutate(ctx context.Context, userID, sessionID string, fn func(*State)) (*State, error) {
	state, err := m.GetSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	fn(state)
	if err := m.UpdateSession(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// ClearSession 重設為閒置並清空緩衝
func (m *Manager) ClearSession(ctx context.Context, userID, sessionID string) (*State, error) {
	return m.mutate(ctx, userID, sessionID, func(s *State) { s.Reset() })
}

// SavePendingAction 設定待確認動作
func (m *Manager) SavePendingAction(ctx context.Context, userID, sessionID string, action *PendingAction) error {
	_, err := m.mutate(ctx, userID, sessionID, func(s *State) { s.SetPendingAction(action) })
	return err
}

// ClearPendingAction 清除待確認動作
func (m *Manager) ClearPendingAction(ctx context.Context, userID, sessionID string) error {
	_, err := m.mutate(ctx, userID, sessionID, func(s *State) { s.ClearPendingAction() })
	return err
}

// UpdateContext 記錄最後意圖、處理者與回應類型
func (m *Manager) UpdateContext(ctx context.Context, userID, sessionID, intent, agent, responseType string) error {
	_, err := m.mutate(ctx, userID, sessionID, func(s *State) { s.SetContext(intent, agent, responseType) })
	return err
}

// UpdateBuffer 合併部分緩衝更新
func (m *Manager) UpdateBuffer(ctx context.Context, userID, sessionID string, patch BufferPatch) error {
	_, err := m.mutate(ctx, userID, sessionID, func(s *State) { s.Buffer.Apply(patch) })
	return err
}

// AddUserCorrection 附加使用者修正
func (m *Manager) AddUserCorrection(ctx context.Context, userID, sessionID string, c UserCorrection) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = m.now()
	}
	_, err := m.mutate(ctx, userID, sessionID, func(s *State) { s.Buffer.AddUserCorrection(c) })
	return err
}

// SetClarificationContext 保存模糊訊息的原始內容
func (m *Manager) SetClarificationContext(ctx context.Context, userID, sessionID string, c ClarificationContext) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = m.now()
	}
	_, err := m.mutate(ctx, userID, sessionID, func(s *State) { s.SetClarification(c) })
	return err
}

// GetClarificationContext 讀取釐清內容，沒有時回傳 nil
func (m *Manager) GetClarificationContext(ctx context.Context, userID, sessionID string) (*ClarificationContext, error) {
	state, err := m.GetSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	return state.Buffer.PendingClarification, nil
}

// ClearClarificationContext 重新讀取後只移除釐清內容
func (m *Manager) ClearClarificationContext(ctx context.Context, userID, sessionID string) error {
	_, err := m.mutate(ctx, userID, sessionID, func(s *State) { s.ClearClarification() })
	return err
}

// Close 關閉底層儲存
func (m *Manager) Close() error {
	return m.repo.Close()
}
