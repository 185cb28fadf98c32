package repository

import (
	"context"

	"dungeon-raid/internal/domain"
)

// InventoryRepository 定义了玩家背包的存储和检索操作。
//
// 容量约定：背包共 domain.InventoryCapacity 个槽位，已装备的物品不占槽位，
// 消耗品按 (player, item_key) 堆叠为一个槽位。
type InventoryRepository interface {
	// ListByPlayer 返回玩家背包的全部条目。
	ListByPlayer(ctx context.Context, playerID uint) ([]domain.InventoryItem, error)

	// HasItemQty 检查玩家是否持有至少 qty 个指定物品 (含已装备)。
	HasItemQty(ctx context.Context, playerID uint, itemKey string, qty int) (bool, error)

	// HasShieldEquipped 检查玩家是否装备了盾牌槽位的物品。
	HasShieldEquipped(ctx context.Context, playerID uint) (bool, error)

	// AwardItem 将一件掉落放入玩家背包。
	// 消耗品堆叠到已有条目；装备新开一行。
	// 背包已满且无法堆叠时返回 repository.ErrInventoryFull，调用方负责折算金币。
	AwardItem(ctx context.Context, playerID uint, item *domain.InventoryItem) error

	// ConsumeItem 原子地扣减 qty 个消耗品，数量归零时删除该行。
	// 持有数量不足时返回 repository.ErrNotFound。
	ConsumeItem(ctx context.Context, playerID uint, itemKey string, qty int) error
}
