package redisstate

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStateRepository 是 StateRepository 接口的 Redis 实现
type RedisStateRepository struct {
	client *redis.Client
	// Redis key 的前缀，方便管理
	keyPrefix string
}

// NewRedisStateRepository 创建 RedisStateRepository 实例
func NewRedisStateRepository(client *redis.Client, keyPrefix string) *RedisStateRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisStateRepository")
	}
	if keyPrefix == "" {
		keyPrefix = "dr:" // 默认前缀 "dr:" (dungeon-raid)
	}
	return &RedisStateRepository{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// --- Key Generation Helpers ---

func (r *RedisStateRepository) exitPendingKey(sessionCode string, playerID uint) string {
	return fmt.Sprintf("%ssession:%s:exit:%d", r.keyPrefix, sessionCode, playerID)
}

func (r *RedisStateRepository) sessionPattern(sessionCode string) string {
	return fmt.Sprintf("%ssession:%s:*", r.keyPrefix, sessionCode)
}

// --- StateRepository Interface Implementation ---

// SetExitPending 记录一条待确认的退出请求，依赖 Redis TTL 自动过期。
func (r *RedisStateRepository) SetExitPending(ctx context.Context, sessionCode string, playerID uint, ttl time.Duration) error {
	key := r.exitPendingKey(sessionCode, playerID)
	err := r.client.Set(ctx, key, "1", ttl).Err()
	if err != nil {
		return fmt.Errorf("redis: failed to set exit pending for session %s player %d: %w", sessionCode, playerID, err)
	}
	return nil
}

// TakeExitPending 检查并消费一条待确认的退出请求。
// 使用 DEL 的返回值判断 key 是否存在，检查和消费是一个原子操作。
func (r *RedisStateRepository) TakeExitPending(ctx context.Context, sessionCode string, playerID uint) (bool, error) {
	key := r.exitPendingKey(sessionCode, playerID)
	deleted, err := r.client.Del(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis: failed to take exit pending for session %s player %d: %w", sessionCode, playerID, err)
	}
	return deleted > 0, nil
}

// ClearSessionState 清理会话相关的全部 Redis key。
// 会话数量和每个会话的 key 数量都很小，SCAN 的开销可以接受。
func (r *RedisStateRepository) ClearSessionState(ctx context.Context, sessionCode string) error {
	pattern := r.sessionPattern(sessionCode)
	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis: failed to scan session keys for %s: %w", sessionCode, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis: failed to delete session keys for %s: %w", sessionCode, err)
	}
	return nil
}

// CheckRateLimit 递增给定 key 的计数并返回本次请求是否放行。
func (r *RedisStateRepository) CheckRateLimit(ctx context.Context, key string, limit int, duration time.Duration) (bool, error) {
	// 使用 Pipeline 减少网络往返
	pipe := r.client.Pipeline()
	// INCR 命令原子地增加计数器并返回新值
	incrCmd := pipe.Incr(ctx, key)
	// 设置或刷新过期时间
	pipe.Expire(ctx, key, duration)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("redis: pipeline failed for rate limit check on key %s: %w", key, err)
	}
	count, err := incrCmd.Result()
	if err != nil {
		return false, fmt.Errorf("redis: failed to get incr result for rate limit on key %s: %w", key, err)
	}
	return count <= int64(limit), nil
}
