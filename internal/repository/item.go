package repository

import (
	"context"

	"dungeon-raid/internal/domain"
)

// ItemRepository 定义了物品目录的检索操作 (只读配置数据)。
type ItemRepository interface {
	// FindByKey 根据物品 key 查找目录记录。
	// 如果物品不存在，应返回 repository.ErrItemNotFound。
	FindByKey(ctx context.Context, key string) (*domain.Item, error)

	// DropCandidates 返回某区域可掉落的物品列表 (含不限区域的物品)。
	DropCandidates(ctx context.Context, zoneKey string) ([]domain.Item, error)
}
