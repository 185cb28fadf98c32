package mocks

import (
	"context"

	"dungeon-raid/internal/domain"

	"github.com/stretchr/testify/mock"
)

// ItemRepository 是 repository.ItemRepository 的 Mock 实现。
type ItemRepository struct {
	mock.Mock
}

func (m *ItemRepository) FindByKey(ctx context.Context, key string) (*domain.Item, error) {
	args := m.Called(ctx, key)
	var it *domain.Item
	if args.Get(0) != nil {
		it = args.Get(0).(*domain.Item)
	}
	return it, args.Error(1)
}

func (m *ItemRepository) DropCandidates(ctx context.Context, zoneKey string) ([]domain.Item, error) {
	args := m.Called(ctx, zoneKey)
	var items []domain.Item
	if args.Get(0) != nil {
		items = args.Get(0).([]domain.Item)
	}
	return items, args.Error(1)
}
