// Package mocks 提供 repository 接口的 testify Mock 实现，仅用于单元测试。
package mocks

import (
	"context"
	"time"

	"dungeon-raid/internal/domain"

	"github.com/stretchr/testify/mock"
)

// PlayerRepository 是 repository.PlayerRepository 的 Mock 实现。
type PlayerRepository struct {
	mock.Mock
}

func (m *PlayerRepository) FindByID(ctx context.Context, id uint) (*domain.Player, error) {
	args := m.Called(ctx, id)
	var p *domain.Player
	if args.Get(0) != nil {
		p = args.Get(0).(*domain.Player)
	}
	return p, args.Error(1)
}

func (m *PlayerRepository) FindByUsername(ctx context.Context, username string) (*domain.Player, error) {
	args := m.Called(ctx, username)
	var p *domain.Player
	if args.Get(0) != nil {
		p = args.Get(0).(*domain.Player)
	}
	return p, args.Error(1)
}

func (m *PlayerRepository) Save(ctx context.Context, player *domain.Player) error {
	args := m.Called(ctx, player)
	return args.Error(0)
}

func (m *PlayerRepository) Stats(ctx context.Context, playerID uint) (*domain.PlayerStats, error) {
	args := m.Called(ctx, playerID)
	var s *domain.PlayerStats
	if args.Get(0) != nil {
		s = args.Get(0).(*domain.PlayerStats)
	}
	return s, args.Error(1)
}

func (m *PlayerRepository) SetState(ctx context.Context, playerID uint, state domain.PlayerState) error {
	args := m.Called(ctx, playerID, state)
	return args.Error(0)
}

func (m *PlayerRepository) UpdateHP(ctx context.Context, playerID uint, hp int) error {
	args := m.Called(ctx, playerID, hp)
	return args.Error(0)
}

func (m *PlayerRepository) AddGoldXP(ctx context.Context, playerID uint, gold int64, xp int64) error {
	args := m.Called(ctx, playerID, gold, xp)
	return args.Error(0)
}

func (m *PlayerRepository) ApplyXPPenalty(ctx context.Context, playerID uint, xp int64) error {
	args := m.Called(ctx, playerID, xp)
	return args.Error(0)
}

func (m *PlayerRepository) SetTempBuff(ctx context.Context, playerID uint, xpPct, dropPct int, expires time.Time) error {
	args := m.Called(ctx, playerID, xpPct, dropPct, expires)
	return args.Error(0)
}
