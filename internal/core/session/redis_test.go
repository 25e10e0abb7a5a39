package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"nutripal/internal/core/nutrition"
	"nutripal/internal/core/recipe"
	"nutripal/internal/pkg/common"
)

func newRedisRepo(t *testing.T, ttl time.Duration) (*RedisRepository, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisRepository(client, ttl), mr, client
}

func observeLogs(t *testing.T, level zapcore.Level) *observer.ObservedLogs {
	core, logs := observer.New(level)
	prev := common.Logger
	common.Logger = zap.New(core)
	t.Cleanup(func() { common.Logger = prev })
	return logs
}

func TestRedisRepository(t *testing.T) {
	repo, _, _ := newRedisRepo(t, time.Hour)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	_, err := repo.Latest(ctx, "u1")
	assert.ErrorIs(t, err, ErrNotFound)

	first := NewState("a", "u1", base)
	first.Buffer.RecentFoods = []string{"toast"}
	require.NoError(t, repo.Save(ctx, first))

	second := NewState("b", "u1", base.Add(time.Minute))
	flow := NewRecipeFlow("stew", []recipe.Ingredient{{Name: "beef", Quantity: recipe.Qty(1), Unit: "kg"}}, nutrition.NutritionData{FoodName: "stew", Calories: 2500})
	require.NoError(t, flow.ProposeBatch(recipe.CalculateBatchSize(flow.Ingredients)))
	second.Buffer.FlowState = flow
	second.CurrentMode = ModeRecipeCreate
	require.NoError(t, repo.Save(ctx, second))

	latest, err := repo.Latest(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "b", latest.ID)
	require.NotNil(t, latest.Buffer.FlowState)
	assert.Equal(t, StepBatchConfirm, latest.Buffer.FlowState.Step())

	first.UpdatedAt = base.Add(time.Hour)
	first.CurrentMode = ModeLogFood
	require.NoError(t, repo.Save(ctx, first))

	latest, err = repo.Latest(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "a", latest.ID)
	assert.Equal(t, ModeLogFood, latest.CurrentMode)
	assert.Equal(t, []string{"toast"}, latest.Buffer.RecentFoods)

	_, err = repo.Get(ctx, "u2", "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisLatestSkipsExpiredSessions(t *testing.T) {
	ttl := time.Hour
	repo, mr, _ := newRedisRepo(t, ttl)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	indexKey := indexKeyPrefix + "u1"

	// a 排序在前但先過期
	require.NoError(t, repo.Save(ctx, NewState("a", "u1", base.Add(2*time.Minute))))
	mr.FastForward(30 * time.Minute)
	require.NoError(t, repo.Save(ctx, NewState("b", "u1", base.Add(time.Minute))))
	mr.FastForward(31 * time.Minute)

	require.False(t, mr.Exists(repo.key("u1", "a")))
	members, err := mr.ZMembers(indexKey)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, members)

	latest, err := repo.Latest(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "b", latest.ID)

	members, err = mr.ZMembers(indexKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, members)
	assert.Equal(t, ttl, mr.TTL(repo.key("u1", "b")), "read refreshes the TTL")

	mr.FastForward(2 * ttl)
	_, err = repo.Latest(ctx, "u1")
	assert.ErrorIs(t, err, ErrNotFound)
}

type rejectZRem struct{}

func (rejectZRem) BeforeProcess(ctx context.Context, cmd redis.Cmder) (context.Context, error) {
	if cmd.Name() == "zrem" {
		return ctx, errors.New("READONLY You can't write against a read only replica")
	}
	return ctx, nil
}

func (rejectZRem) AfterProcess(context.Context, redis.Cmder) error { return nil }

func (rejectZRem) BeforeProcessPipeline(ctx context.Context, _ []redis.Cmder) (context.Context, error) {
	return ctx, nil
}

func (rejectZRem) AfterProcessPipeline(context.Context, []redis.Cmder) error { return nil }

func TestRedisLatestLogsIndexPruneFailure(t *testing.T) {
	repo, mr, client := newRedisRepo(t, time.Hour)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Save(ctx, NewState("a", "u1", base.Add(time.Minute))))
	require.NoError(t, repo.Save(ctx, NewState("b", "u1", base)))
	mr.Del(repo.key("u1", "a"))

	client.AddHook(rejectZRem{})
	logs := observeLogs(t, zapcore.DebugLevel)

	latest, err := repo.Latest(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "b", latest.ID)

	entries := logs.FilterMessage("清除過期對話索引失敗").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "a", entries[0].ContextMap()["session_id"])

	members, err := mr.ZMembers(indexKeyPrefix + "u1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, members)
}
