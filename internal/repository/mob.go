package repository

import (
	"context"

	"dungeon-raid/internal/domain"
)

// MobRepository 定义了怪物目录的检索操作 (只读配置数据)。
type MobRepository interface {
	// FindByKey 根据怪物 key 查找目录记录。
	// 如果怪物不存在，应返回 repository.ErrMobNotFound。
	FindByKey(ctx context.Context, key string) (*domain.Mob, error)

	// DungeonPool 返回指定区域的地下城怪物池 (DungeonOnly 记录)。
	// 区域没有专属怪物时返回空切片而不是错误，调用方自行回退到全局池。
	DungeonPool(ctx context.Context, zoneKey string) ([]domain.Mob, error)

	// GlobalDungeonPool 返回不限区域的全局地下城怪物池。
	GlobalDungeonPool(ctx context.Context) ([]domain.Mob, error)
}
