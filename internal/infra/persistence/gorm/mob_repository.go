package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"dungeon-raid/internal/domain"
	"dungeon-raid/internal/repository"
)

// GormMobRepository 是 MobRepository 接口的 GORM 实现
type GormMobRepository struct {
	db *gorm.DB
}

// NewGormMobRepository 创建 GormMobRepository 实例
func NewGormMobRepository(db *gorm.DB) *GormMobRepository {
	if db == nil {
		panic("database connection cannot be nil for GormMobRepository")
	}
	return &GormMobRepository{db: db}
}

// FindByKey 实现根据怪物 key 查找目录记录
func (r *GormMobRepository) FindByKey(ctx context.Context, key string) (*domain.Mob, error) {
	var mob domain.Mob
	err := r.db.WithContext(ctx).Where("`key` = ?", key).First(&mob).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrMobNotFound
		}
		return nil, fmt.Errorf("gorm: find mob by key '%s': %w", key, err)
	}
	return &mob, nil
}

// DungeonPool 实现区域地下城怪物池查询。
// 没有匹配记录时返回空切片，回退逻辑由调用方处理。
func (r *GormMobRepository) DungeonPool(ctx context.Context, zoneKey string) ([]domain.Mob, error) {
	var mobs []domain.Mob
	err := r.db.WithContext(ctx).
		Where("zone_key = ? AND dungeon_only = ?", zoneKey, true).
		Find(&mobs).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: load dungeon pool for zone '%s': %w", zoneKey, err)
	}
	return mobs, nil
}

// GlobalDungeonPool 实现全局地下城怪物池查询
func (r *GormMobRepository) GlobalDungeonPool(ctx context.Context) ([]domain.Mob, error) {
	var mobs []domain.Mob
	err := r.db.WithContext(ctx).
		Where("dungeon_only = ?", true).
		Find(&mobs).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: load global dungeon pool: %w", err)
	}
	return mobs, nil
}
