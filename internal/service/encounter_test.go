package service_test

import (
	"context"
	"testing"

	"dungeon-raid/internal/domain"
	"dungeon-raid/internal/repository/mocks"
	"dungeon-raid/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestGenerateFloors_ScalingAndBossPlacement(t *testing.T) {
	// Arrange: 单普通怪 + 单 Boss，双人队伍 (怪物生命 ×1.4)
	mockMobRepo := new(mocks.MobRepository)
	encounter := service.NewEncounterService(mockMobRepo)
	pool := []domain.Mob{
		{Key: "slime", Name: "Slime", HP: 50, Atk: 10, Def: 3, Rarity: "common", DungeonOnly: true},
		{Key: "slime_king", Name: "Slime King", HP: 100, Atk: 20, Def: 6, Rarity: "boss", DungeonOnly: true},
	}
	mockMobRepo.On("DungeonPool", mock.Anything, "plains").Return(pool, nil).Once()

	// Act
	floors, err := encounter.GenerateFloors(context.Background(), "plains", 2)

	// Assert
	require.NoError(t, err)
	require.Len(t, floors, 4)

	// 前 3 层普通怪，楼层缩放依次放大
	assert.Equal(t, "slime", floors[0].Mob.Key)
	assert.Equal(t, 70, floors[0].Mob.HP, "第 1 层: 50×1.0×1.4")
	assert.Equal(t, 10, floors[0].Mob.Atk, "攻击不吃队伍倍率")
	assert.Equal(t, 91, floors[1].Mob.HP, "第 2 层: 50×1.3×1.4")
	assert.Equal(t, 12, floors[1].Mob.Atk, "第 2 层: 10×1.2")
	assert.Equal(t, 112, floors[2].Mob.HP, "第 3 层: 50×1.6×1.4")

	// 第 4 层必为 Boss
	require.True(t, floors[3].IsBoss)
	assert.Equal(t, "slime_king", floors[3].Mob.Key)
	assert.Equal(t, 350, floors[3].Mob.HP, "Boss 层: 100×2.5×1.4")
	assert.Equal(t, 36, floors[3].Mob.Atk, "Boss 层: 20×1.8")
	assert.Equal(t, floors[3].Mob.HP, floors[3].Mob.MaxHP)

	mockMobRepo.AssertExpectations(t)
}

func TestGenerateFloors_FallsBackToGlobalPool(t *testing.T) {
	// Arrange: 区域池为空时回退到全局池
	mockMobRepo := new(mocks.MobRepository)
	encounter := service.NewEncounterService(mockMobRepo)
	mockMobRepo.On("DungeonPool", mock.Anything, "swamp").Return([]domain.Mob{}, nil).Once()
	mockMobRepo.On("GlobalDungeonPool", mock.Anything).Return([]domain.Mob{
		{Key: "rat", Name: "Rat", HP: 20, Atk: 5, Def: 1, Rarity: "common", DungeonOnly: true},
	}, nil).Once()

	// Act
	floors, err := encounter.GenerateFloors(context.Background(), "swamp", 1)

	// Assert
	require.NoError(t, err)
	require.Len(t, floors, 4)
	for _, fl := range floors {
		assert.Equal(t, "rat", fl.Mob.Key)
	}
	mockMobRepo.AssertExpectations(t)
}

func TestGenerateFloors_EmptyPoolsYieldNoFloors(t *testing.T) {
	// Arrange: 两个池都为空
	mockMobRepo := new(mocks.MobRepository)
	encounter := service.NewEncounterService(mockMobRepo)
	mockMobRepo.On("DungeonPool", mock.Anything, "plains").Return([]domain.Mob{}, nil).Once()
	mockMobRepo.On("GlobalDungeonPool", mock.Anything).Return([]domain.Mob{}, nil).Once()

	// Act
	floors, err := encounter.GenerateFloors(context.Background(), "plains", 3)

	// Assert: 空楼层列表是定义好的退化情形，不是错误
	require.NoError(t, err)
	assert.Empty(t, floors)
}

func TestGenerateFloors_BossOnlyPoolServesEveryFloor(t *testing.T) {
	// Arrange: 普通池为空时普通层回退到 Boss 池
	mockMobRepo := new(mocks.MobRepository)
	encounter := service.NewEncounterService(mockMobRepo)
	mockMobRepo.On("DungeonPool", mock.Anything, "plains").Return([]domain.Mob{
		{Key: "tyrant", Name: "Tyrant", HP: 80, Atk: 18, Def: 5, Rarity: "boss", DungeonOnly: true},
	}, nil).Once()

	// Act
	floors, err := encounter.GenerateFloors(context.Background(), "plains", 1)

	// Assert
	require.NoError(t, err)
	require.Len(t, floors, 4)
	for _, fl := range floors {
		assert.Equal(t, "tyrant", fl.Mob.Key)
	}
}
