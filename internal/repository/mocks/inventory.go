package mocks

import (
	"context"

	"dungeon-raid/internal/domain"

	"github.com/stretchr/testify/mock"
)

// InventoryRepository 是 repository.InventoryRepository 的 Mock 实现。
type InventoryRepository struct {
	mock.Mock
}

func (m *InventoryRepository) ListByPlayer(ctx context.Context, playerID uint) ([]domain.InventoryItem, error) {
	args := m.Called(ctx, playerID)
	var items []domain.InventoryItem
	if args.Get(0) != nil {
		items = args.Get(0).([]domain.InventoryItem)
	}
	return items, args.Error(1)
}

func (m *InventoryRepository) HasItemQty(ctx context.Context, playerID uint, itemKey string, qty int) (bool, error) {
	args := m.Called(ctx, playerID, itemKey, qty)
	return args.Bool(0), args.Error(1)
}

func (m *InventoryRepository) HasShieldEquipped(ctx context.Context, playerID uint) (bool, error) {
	args := m.Called(ctx, playerID)
	return args.Bool(0), args.Error(1)
}

func (m *InventoryRepository) AwardItem(ctx context.Context, playerID uint, item *domain.InventoryItem) error {
	args := m.Called(ctx, playerID, item)
	return args.Error(0)
}

func (m *InventoryRepository) ConsumeItem(ctx context.Context, playerID uint, itemKey string, qty int) error {
	args := m.Called(ctx, playerID, itemKey, qty)
	return args.Error(0)
}
