package session

import (
	"context"
	"sort"
	"sync"
)

// Repository 對話狀態的持久化介面
type Repository interface {
	// Get 讀取指定對話，不存在時回傳 ErrNotFound
	Get(ctx context.Context, userID, sessionID string) (*State, error)

	// Latest 讀取使用者最近更新的對話，不存在時回傳 ErrNotFound
	Latest(ctx context.Context, userID string) (*State, error)

	// Save 新增或覆寫對話
	Save(ctx context.Context, state *State) error

	Close() error
}

// MemoryRepository 行程內的對話儲存，用於開發與測試
type MemoryRepository struct {
	mu       sync.RWMutex
	sessions map[string]map[string]*State
}

// NewMemoryRepository 創建記憶體儲存
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		sessions: make(map[string]map[string]*State),
	}
}

// Get implements Repository.
func (r *MemoryRepository) Get(_ context.Context, userID, sessionID string) (*State, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[userID][sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

// Latest implements Repository.
func (r *MemoryRepository) Latest(_ context.Context, userID string) (*State, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	states := make([]*State, 0, len(r.sessions[userID]))
	for _, s := range r.sessions[userID] {
		states = append(states, s)
	}
	if len(states) == 0 {
		return nil, ErrNotFound
	}
	sort.Slice(states, func(i, j int) bool {
		return states[i].UpdatedAt.After(states[j].UpdatedAt)
	})
	return states[0].Clone(), nil
}

// Save implements Repository.
func (r *MemoryRepository) Save(_ context.Context, state *State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sessions[state.UserID] == nil {
		r.sessions[state.UserID] = make(map[string]*State)
	}
	r.sessions[state.UserID][state.ID] = state.Clone()
	return nil
}

// Close implements Repository.
func (r *MemoryRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions = make(map[string]map[string]*State)
	return nil
}
