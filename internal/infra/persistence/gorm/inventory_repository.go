package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"dungeon-raid/internal/domain"
	"dungeon-raid/internal/repository"
)

// GormInventoryRepository 是 InventoryRepository 接口的 GORM 实现。
// 容量检查、堆叠与扣减都放在单个事务里，避免并发掉落挤爆背包。
type GormInventoryRepository struct {
	db *gorm.DB
}

// NewGormInventoryRepository 创建 GormInventoryRepository 实例
func NewGormInventoryRepository(db *gorm.DB) *GormInventoryRepository {
	if db == nil {
		panic("database connection cannot be nil for GormInventoryRepository")
	}
	return &GormInventoryRepository{db: db}
}

// ListByPlayer 实现背包全量查询
func (r *GormInventoryRepository) ListByPlayer(ctx context.Context, playerID uint) ([]domain.InventoryItem, error) {
	var items []domain.InventoryItem
	err := r.db.WithContext(ctx).
		Where("player_id = ?", playerID).
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list inventory for player %d: %w", playerID, err)
	}
	return items, nil
}

// HasItemQty 实现持有数量检查 (含已装备条目)
func (r *GormInventoryRepository) HasItemQty(ctx context.Context, playerID uint, itemKey string, qty int) (bool, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&domain.InventoryItem{}).
		Where("player_id = ? AND item_key = ?", playerID, itemKey).
		Select("COALESCE(SUM(qty), 0)").
		Scan(&total).Error
	if err != nil {
		return false, fmt.Errorf("gorm: count item '%s' for player %d: %w", itemKey, playerID, err)
	}
	return total >= int64(qty), nil
}

// HasShieldEquipped 实现盾牌装备检查
func (r *GormInventoryRepository) HasShieldEquipped(ctx context.Context, playerID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.InventoryItem{}).
		Where("player_id = ? AND slot = ? AND equipped = ?", playerID, domain.SlotShield, true).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("gorm: check equipped shield for player %d: %w", playerID, err)
	}
	return count > 0, nil
}

// AwardItem 实现掉落入包。
// 消耗品优先堆叠到已有条目 (不新占槽位)；其余情况受容量约束，
// 已装备的条目不计入占用。
func (r *GormInventoryRepository) AwardItem(ctx context.Context, playerID uint, item *domain.InventoryItem) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. 消耗品先尝试堆叠
		if item.Slot == domain.SlotConsumable {
			result := tx.Model(&domain.InventoryItem{}).
				Where("player_id = ? AND item_key = ? AND equipped = ?", playerID, item.ItemKey, false).
				Update("qty", gorm.Expr("qty + ?", item.Qty))
			if result.Error != nil {
				return fmt.Errorf("gorm: stack consumable '%s' for player %d: %w", item.ItemKey, playerID, result.Error)
			}
			if result.RowsAffected > 0 {
				return nil
			}
		}

		// 2. 检查未装备条目占用的槽位数
		var used int64
		err := tx.Model(&domain.InventoryItem{}).
			Where("player_id = ? AND equipped = ?", playerID, false).
			Count(&used).Error
		if err != nil {
			return fmt.Errorf("gorm: count inventory slots for player %d: %w", playerID, err)
		}
		if used >= int64(domain.InventoryCapacity) {
			return repository.ErrInventoryFull
		}

		// 3. 新开一行
		item.PlayerID = playerID
		if err := tx.Create(item).Error; err != nil {
			return fmt.Errorf("gorm: insert inventory item '%s' for player %d: %w", item.ItemKey, playerID, err)
		}
		return nil
	})
}

// ConsumeItem 实现消耗品扣减，数量归零时删除整行
func (r *GormInventoryRepository) ConsumeItem(ctx context.Context, playerID uint, itemKey string, qty int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row domain.InventoryItem
		err := tx.Where("player_id = ? AND item_key = ? AND equipped = ?", playerID, itemKey, false).
			First(&row).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return repository.ErrNotFound
			}
			return fmt.Errorf("gorm: find consumable '%s' for player %d: %w", itemKey, playerID, err)
		}
		if row.Qty < qty {
			return repository.ErrNotFound
		}
		if row.Qty == qty {
			if err := tx.Delete(&domain.InventoryItem{}, row.ID).Error; err != nil {
				return fmt.Errorf("gorm: delete consumable row %d: %w", row.ID, err)
			}
			return nil
		}
		result := tx.Model(&domain.InventoryItem{}).
			Where("id = ?", row.ID).
			Update("qty", gorm.Expr("qty - ?", qty))
		if result.Error != nil {
			return fmt.Errorf("gorm: decrement consumable row %d: %w", row.ID, result.Error)
		}
		return nil
	})
}
