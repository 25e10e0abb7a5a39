package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() *Manager {
	var (
		mu  sync.Mutex
		seq int
		now = time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	)
	return NewManager(NewMemoryRepository(),
		WithClock(func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			now = now.Add(time.Second)
			return now
		}),
		WithIDGenerator(func() string {
			mu.Lock()
			defer mu.Unlock()
			seq++
			return fmt.Sprintf("s%d", seq)
		}),
	)
}

func TestGetSessionCreatesIdleSession(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	s, err := m.GetSession(ctx, "u1", "")
	require.NoError(t, err)
	assert.Equal(t, "s1", s.ID)
	assert.Equal(t, ModeIdle, s.CurrentMode)
	assert.Nil(t, s.PendingAction)
	assert.Empty(t, s.MissingFields)

	again, err := m.GetSession(ctx, "u1", "")
	require.NoError(t, err)
	assert.Equal(t, "s1", again.ID, "latest session is reused")

	named, err := m.GetSession(ctx, "u1", "chat-2")
	require.NoError(t, err)
	assert.Equal(t, "chat-2", named.ID)

	latest, err := m.GetSession(ctx, "u1", "")
	require.NoError(t, err)
	assert.Equal(t, "chat-2", latest.ID, "most recently updated session wins")
}

func TestUpdateBufferRecentFoodsKeepsLastFive(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	require.NoError(t, m.UpdateBuffer(ctx, "u1", "s", BufferPatch{RecentFoods: []string{"a", "b", "c"}}))
	require.NoError(t, m.UpdateBuffer(ctx, "u1", "s", BufferPatch{RecentFoods: []string{"d", "e", "f", "g"}}))

	s, err := m.GetSession(ctx, "u1", "s")
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d", "e", "f", "g"}, s.Buffer.RecentFoods)
}

func TestUpdateBufferMergesWithoutClobbering(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	topic := "breakfast"

	require.NoError(t, m.UpdateBuffer(ctx, "u1", "s", BufferPatch{
		Extra: map[string]json.RawMessage{"ui_hint": json.RawMessage(`"compact"`)},
	}))
	require.NoError(t, m.UpdateBuffer(ctx, "u1", "s", BufferPatch{LastTopic: &topic}))

	s, err := m.GetSession(ctx, "u1", "s")
	require.NoError(t, err)
	assert.Equal(t, "breakfast", s.Buffer.LastTopic)
	assert.JSONEq(t, `"compact"`, string(s.Buffer.Extra["ui_hint"]))
}

func TestAddUserCorrectionCapsAtTen(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		require.NoError(t, m.AddUserCorrection(ctx, "u1", "s", UserCorrection{Field: "portion", Corrected: fmt.Sprint(i)}))
	}

	s, err := m.GetSession(ctx, "u1", "s")
	require.NoError(t, err)
	require.Len(t, s.Buffer.UserCorrections, 10)
	assert.Equal(t, "2", s.Buffer.UserCorrections[0].Corrected)
	assert.Equal(t, "11", s.Buffer.UserCorrections[9].Corrected)
}

func TestClarificationContextLifecycle(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	topic := "lunch"

	require.NoError(t, m.UpdateBuffer(ctx, "u1", "s", BufferPatch{LastTopic: &topic, RecentFoods: []string{"soup"}}))
	require.NoError(t, m.SetClarificationContext(ctx, "u1", "s", ClarificationContext{
		OriginalMessage: "I had the usual",
		Reasoning:       "unknown reference",
	}))

	c, err := m.GetClarificationContext(ctx, "u1", "s")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "I had the usual", c.OriginalMessage)
	assert.False(t, c.CreatedAt.IsZero())

	s, err := m.GetSession(ctx, "u1", "s")
	require.NoError(t, err)
	assert.Equal(t, ModeClarification, s.CurrentMode)

	require.NoError(t, m.ClearClarificationContext(ctx, "u1", "s"))
	s, err = m.GetSession(ctx, "u1", "s")
	require.NoError(t, err)
	assert.Nil(t, s.Buffer.PendingClarification)
	assert.Equal(t, ModeIdle, s.CurrentMode)
	assert.Equal(t, "lunch", s.Buffer.LastTopic)
	assert.Equal(t, []string{"soup"}, s.Buffer.RecentFoods)
}

func TestPendingActionAndClearSession(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	action, err := NewPendingAction(PendingFoodLog, map[string]string{"food": "apple"}, time.Now())
	require.NoError(t, err)
	require.NoError(t, m.SavePendingAction(ctx, "u1", "s", action))
	require.NoError(t, m.UpdateContext(ctx, "u1", "s", "log_food", "food", "confirmation_food_log"))

	s, err := m.GetSession(ctx, "u1", "s")
	require.NoError(t, err)
	require.NotNil(t, s.PendingAction)
	var payload map[string]string
	require.NoError(t, s.PendingAction.Decode(&payload))
	assert.Equal(t, "apple", payload["food"])
	assert.Equal(t, "log_food", s.LastIntent)

	require.NoError(t, m.ClearPendingAction(ctx, "u1", "s"))
	s, err = m.GetSession(ctx, "u1", "s")
	require.NoError(t, err)
	assert.Nil(t, s.PendingAction)

	require.NoError(t, m.SavePendingAction(ctx, "u1", "s", action))
	cleared, err := m.ClearSession(ctx, "u1", "s")
	require.NoError(t, err)
	assert.Nil(t, cleared.PendingAction)
	assert.Equal(t, ModeIdle, cleared.CurrentMode)
	assert.Equal(t, "s", cleared.ID, "sessions are reset, never deleted")
}

func TestManagerLockSerializesPerUser(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			unlock := m.Lock("u1")
			defer unlock()
			_ = m.UpdateBuffer(ctx, "u1", "s", BufferPatch{
				Extra: map[string]json.RawMessage{fmt.Sprintf("k%d", i): json.RawMessage(`true`)},
			})
		}(i)
	}
	wg.Wait()

	s, err := m.GetSession(ctx, "u1", "s")
	require.NoError(t, err)
	assert.Len(t, s.Buffer.Extra, 20, "no lost updates")
	assert.Equal(t, 0, m.locks.Len())
}

func TestRepositoryReturnsCopies(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	s := NewState("s", "u1", time.Now())
	require.NoError(t, repo.Save(ctx, s))

	got, err := repo.Get(ctx, "u1", "s")
	require.NoError(t, err)
	got.CurrentMode = ModeRecipeCreate

	again, err := repo.Get(ctx, "u1", "s")
	require.NoError(t, err)
	assert.Equal(t, ModeIdle, again.CurrentMode)

	_, err = repo.Get(ctx, "u2", "s")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.Latest(ctx, "u2")
	assert.ErrorIs(t, err, ErrNotFound)
}
