package repository

import (
	"context"
	"time"

	"dungeon-raid/internal/domain"
)

// PlayerRepository 定义了玩家数据的存储和检索操作。
type PlayerRepository interface {
	// FindByID 根据玩家 ID 查找玩家。
	// 如果玩家不存在，应返回 repository.ErrPlayerNotFound。
	FindByID(ctx context.Context, id uint) (*domain.Player, error)

	// FindByUsername 根据用户名查找玩家。
	// 如果玩家不存在，应返回 repository.ErrPlayerNotFound。
	FindByUsername(ctx context.Context, username string) (*domain.Player, error)

	// Save 保存玩家信息。
	// 如果玩家已存在 (基于 ID)，则更新；否则创建新玩家。
	Save(ctx context.Context, player *domain.Player) error

	// Stats 计算玩家的聚合战斗属性 (基础值 + 已装备物品的实际属性)。
	Stats(ctx context.Context, playerID uint) (*domain.PlayerStats, error)

	// SetState 更新玩家的状态机位置。
	SetState(ctx context.Context, playerID uint, state domain.PlayerState) error

	// UpdateHP 将玩家生命值写回持久化存储 (会话结束时同步快照)。
	UpdateHP(ctx context.Context, playerID uint, hp int) error

	// AddGoldXP 原子地给玩家增加金币和经验。
	AddGoldXP(ctx context.Context, playerID uint, gold int64, xp int64) error

	// ApplyXPPenalty 原子地扣除经验，结果不低于 0。
	ApplyXPPenalty(ctx context.Context, playerID uint, xp int64) error

	// SetTempBuff 设置玩家的临时增益及过期时间。
	SetTempBuff(ctx context.Context, playerID uint, xpPct, dropPct int, expires time.Time) error
}
