package mocks

import (
	"context"

	"dungeon-raid/internal/domain"

	"github.com/stretchr/testify/mock"
)

// MobRepository 是 repository.MobRepository 的 Mock 实现。
type MobRepository struct {
	mock.Mock
}

func (m *MobRepository) FindByKey(ctx context.Context, key string) (*domain.Mob, error) {
	args := m.Called(ctx, key)
	var mob *domain.Mob
	if args.Get(0) != nil {
		mob = args.Get(0).(*domain.Mob)
	}
	return mob, args.Error(1)
}

func (m *MobRepository) DungeonPool(ctx context.Context, zoneKey string) ([]domain.Mob, error) {
	args := m.Called(ctx, zoneKey)
	var pool []domain.Mob
	if args.Get(0) != nil {
		pool = args.Get(0).([]domain.Mob)
	}
	return pool, args.Error(1)
}

func (m *MobRepository) GlobalDungeonPool(ctx context.Context) ([]domain.Mob, error) {
	args := m.Called(ctx)
	var pool []domain.Mob
	if args.Get(0) != nil {
		pool = args.Get(0).([]domain.Mob)
	}
	return pool, args.Error(1)
}
