package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"nutripal/internal/core/session"
)

// SessionRepository 以 sessions 資料表實作 session.Repository
type SessionRepository struct {
	db *DB
}

// NewSessionRepository 創建 SQLite 對話儲存
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Get implements session.Repository.
func (r *SessionRepository) Get(ctx context.Context, userID, sessionID string) (*session.State, error) {
	row := r.db.db.QueryRowContext(ctx,
		`SELECT state FROM sessions WHERE user_id = ? AND id = ?`, userID, sessionID)
	return scanState(row)
}

// Latest implements session.Repository.
func (r *SessionRepository) Latest(ctx context.Context, userID string) (*session.State, error) {
	row := r.db.db.QueryRowContext(ctx,
		`SELECT state FROM sessions WHERE user_id = ? ORDER BY updated_at DESC LIMIT 1`, userID)
	return scanState(row)
}

func scanState(row *sql.Row) (*session.State, error) {
	var raw string
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, session.ErrNotFound
		}
		return nil, fmt.Errorf("query session: %w", err)
	}
	var state session.State
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &state, nil
}

// Save implements session.Repository.
func (r *SessionRepository) Save(ctx context.Context, state *session.State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", state.ID, err)
	}
	_, err = r.db.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, state, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, id) DO UPDATE SET
			state = excluded.state,
			updated_at = excluded.updated_at
	`, state.ID, state.UserID, string(raw), formatTime(state.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Close implements session.Repository.
func (r *SessionRepository) Close() error {
	return r.db.Close()
}
