package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"nutripal/internal/pkg/common"
)

const (
	sessionKeyPrefix = "session:"
	indexKeyPrefix   = "session_index:"
	defaultTTL       = 24 * time.Hour
)

// RedisRepository 以 Redis 保存對話：每個對話一個 JSON 值，另以 sorted set 記錄使用者最近的對話
type RedisRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisRepository 創建 Redis 對話儲存
func NewRedisRepository(client *redis.Client, ttl time.Duration) *RedisRepository {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisRepository{
		client: client,
		ttl:    ttl,
	}
}

// Get implements Repository. 讀取時刷新 TTL
func (r *RedisRepository) Get(ctx context.Context, userID, sessionID string) (*State, error) {
	key := r.key(userID, sessionID)
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session: %w", err)
	}

	var state State
	if err := json.Unmarshal([]byte(val), &state); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}

	if err := r.client.Expire(ctx, key, r.ttl).Err(); err != nil {
		common.LogWarn("刷新對話 TTL 失敗", zap.String("key", key), zap.Error(err))
	}
	return &state, nil
}

// Latest implements Repository. 跳過並清除已過期的索引項
func (r *RedisRepository) Latest(ctx context.Context, userID string) (*State, error) {
	indexKey := indexKeyPrefix + userID
	ids, err := r.client.ZRevRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis read session index: %w", err)
	}

	for _, id := range ids {
		state, err := r.Get(ctx, userID, id)
		if errors.Is(err, ErrNotFound) {
			if err := r.client.ZRem(ctx, indexKey, id).Err(); err != nil {
				common.LogDebug("清除過期對話索引失敗", zap.String("key", indexKey), zap.String("session_id", id), zap.Error(err))
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		return state, nil
	}
	return nil, ErrNotFound
}

// Save implements Repository. 值與索引在同一個 MULTI/EXEC 中寫入
func (r *RedisRepository) Save(ctx context.Context, state *State) error {
	val, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", state.ID, err)
	}

	key := r.key(state.UserID, state.ID)
	indexKey := indexKeyPrefix + state.UserID
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, val, r.ttl)
		pipe.ZAdd(ctx, indexKey, &redis.Z{
			Score:  float64(state.UpdatedAt.UnixNano()),
			Member: state.ID,
		})
		pipe.Expire(ctx, indexKey, r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save session: %w", err)
	}
	return nil
}

// Close implements Repository.
func (r *RedisRepository) Close() error {
	return r.client.Close()
}

func (r *RedisRepository) key(userID, sessionID string) string {
	return sessionKeyPrefix + userID + ":" + sessionID
}
