package repository

import (
	"context"
	"time"
)

// StateRepository 定义了带 TTL 的实时状态操作，通常由 Redis 实现。
type StateRepository interface {
	// === Exit Confirmation ===

	// SetExitPending 记录一条待确认的退出请求，ttl 到期后自动失效。
	SetExitPending(ctx context.Context, sessionCode string, playerID uint, ttl time.Duration) error

	// TakeExitPending 检查并消费一条待确认的退出请求。
	// 返回 true 表示存在且已消费；不存在或已过期返回 false。
	TakeExitPending(ctx context.Context, sessionCode string, playerID uint) (bool, error)

	// ClearSessionState 清理会话相关的全部 Redis key (会话销毁时调用)。
	ClearSessionState(ctx context.Context, sessionCode string) error

	// === Rate Limiting ===

	// CheckRateLimit 递增给定 key 的计数并返回本次请求是否放行。
	// 返回 true 表示未超限放行，false 表示已超限。
	CheckRateLimit(ctx context.Context, key string, limit int, duration time.Duration) (bool, error)
}
