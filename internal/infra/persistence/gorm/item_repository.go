package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"dungeon-raid/internal/domain"
	"dungeon-raid/internal/repository"
)

// GormItemRepository 是 ItemRepository 接口的 GORM 实现
type GormItemRepository struct {
	db *gorm.DB
}

// NewGormItemRepository 创建 GormItemRepository 实例
func NewGormItemRepository(db *gorm.DB) *GormItemRepository {
	if db == nil {
		panic("database connection cannot be nil for GormItemRepository")
	}
	return &GormItemRepository{db: db}
}

// FindByKey 实现根据物品 key 查找目录记录
func (r *GormItemRepository) FindByKey(ctx context.Context, key string) (*domain.Item, error) {
	var item domain.Item
	err := r.db.WithContext(ctx).Where("`key` = ?", key).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrItemNotFound
		}
		return nil, fmt.Errorf("gorm: find item by key '%s': %w", key, err)
	}
	return &item, nil
}

// DropCandidates 实现区域掉落候选查询 (区域专属 + 全区域通用)
func (r *GormItemRepository) DropCandidates(ctx context.Context, zoneKey string) ([]domain.Item, error) {
	var items []domain.Item
	err := r.db.WithContext(ctx).
		Where("zone_key = ? OR zone_key = ''", zoneKey).
		Where("drop_rate > 0").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: load drop candidates for zone '%s': %w", zoneKey, err)
	}
	return items, nil
}
