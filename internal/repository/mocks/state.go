package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// StateRepository 是 repository.StateRepository 的 Mock 实现。
type StateRepository struct {
	mock.Mock
}

func (m *StateRepository) SetExitPending(ctx context.Context, sessionCode string, playerID uint, ttl time.Duration) error {
	args := m.Called(ctx, sessionCode, playerID, ttl)
	return args.Error(0)
}

func (m *StateRepository) TakeExitPending(ctx context.Context, sessionCode string, playerID uint) (bool, error) {
	args := m.Called(ctx, sessionCode, playerID)
	return args.Bool(0), args.Error(1)
}

func (m *StateRepository) ClearSessionState(ctx context.Context, sessionCode string) error {
	args := m.Called(ctx, sessionCode)
	return args.Error(0)
}

func (m *StateRepository) CheckRateLimit(ctx context.Context, key string, limit int, duration time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, duration)
	return args.Bool(0), args.Error(1)
}
