package service_test

import (
	"context"
	"testing"
	"time"

	"dungeon-raid/internal/domain"
	"dungeon-raid/internal/repository"
	"dungeon-raid/internal/repository/mocks"
	"dungeon-raid/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// rewardFixture 打包 RewardService 及其 Mock 依赖。
type rewardFixture struct {
	playerRepo *mocks.PlayerRepository
	itemRepo   *mocks.ItemRepository
	invRepo    *mocks.InventoryRepository
	svc        *service.RewardService
}

func newRewardFixture(t *testing.T) *rewardFixture {
	t.Helper()
	f := &rewardFixture{
		playerRepo: new(mocks.PlayerRepository),
		itemRepo:   new(mocks.ItemRepository),
		invRepo:    new(mocks.InventoryRepository),
	}
	f.svc = service.NewRewardService(f.playerRepo, f.itemRepo, f.invRepo)
	return f
}

// contribSession 构造一个带贡献度的战斗会话 (不入注册表，直接结算用)。
func contribSession(zoneKey string, floorIdx int, isBoss bool, memberIDs ...uint) *domain.Session {
	s := domain.NewSession("RWRD01", "测试地下城", zoneKey, "", memberIDs[0])
	for _, id := range memberIDs {
		s.AddMember(&domain.Member{PlayerID: id, Name: "hero", HP: 100, MaxHP: 100, Alive: true})
	}
	s.State = domain.SessionStateRunning
	for i := 0; i <= floorIdx; i++ {
		s.Floors = append(s.Floors, domain.Floor{
			Number:  i + 1,
			IsBoss:  isBoss && i == floorIdx,
			Scaling: service.ScalingForFloor(i + 1),
		})
	}
	return s
}

func TestDistributeFloor_XPSplitByContribution(t *testing.T) {
	// Arrange: 第 1 层经验池 400；攻击贡献 60/40，防御贡献 0/20。
	// 权重 1 = 0.7×0.6 = 0.42 → 168；权重 2 = 0.7×0.4 + 0.3×1 = 0.58 → 232。
	f := newRewardFixture(t)
	session := contribSession("plains", 0, false, 1, 2)
	session.ContribAtk[1] = 60
	session.ContribAtk[2] = 40
	session.ContribDef[2] = 20

	f.playerRepo.On("FindByID", mock.Anything, uint(1)).Return(&domain.Player{ID: 1}, nil).Once()
	f.playerRepo.On("FindByID", mock.Anything, uint(2)).Return(&domain.Player{ID: 2}, nil).Once()
	f.playerRepo.On("AddGoldXP", mock.Anything, uint(1), mock.Anything, int64(168)).Return(nil).Once()
	f.playerRepo.On("AddGoldXP", mock.Anything, uint(2), mock.Anything, int64(232)).Return(nil).Once()
	f.itemRepo.On("DropCandidates", mock.Anything, "plains").Return([]domain.Item{}, nil)

	// Act
	session.Lock()
	entries, err := f.svc.DistributeFloor(context.Background(), session, 0)
	session.Unlock()

	// Assert
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 168, entries[0].XP)
	assert.Equal(t, 232, entries[1].XP)
	assert.Positive(t, entries[0].Gold, "金币应独立掷骰且至少为 1")
	assert.Empty(t, session.ContribAtk, "结算后贡献度应清零")
	assert.Empty(t, session.ContribDef)
	f.playerRepo.AssertExpectations(t)
}

func TestDistributeFloor_SoloPenaltyAndEvenSplit(t *testing.T) {
	// Arrange: 独自存活 ×0.7，无贡献时均分 → floor(400×0.7)=280
	f := newRewardFixture(t)
	session := contribSession("plains", 0, false, 1)

	f.playerRepo.On("FindByID", mock.Anything, uint(1)).Return(&domain.Player{ID: 1}, nil).Once()
	f.playerRepo.On("AddGoldXP", mock.Anything, uint(1), mock.Anything, int64(280)).Return(nil).Once()
	f.itemRepo.On("DropCandidates", mock.Anything, "plains").Return([]domain.Item{}, nil)

	// Act
	session.Lock()
	entries, err := f.svc.DistributeFloor(context.Background(), session, 0)
	session.Unlock()

	// Assert
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 280, entries[0].XP)
	f.playerRepo.AssertExpectations(t)
}

func TestDistributeFloor_XPBuffApplied(t *testing.T) {
	// Arrange: 有效的 +50% 经验增益 → round(280×1.5)=420
	f := newRewardFixture(t)
	session := contribSession("plains", 0, false, 1)
	expires := time.Now().Add(10 * time.Minute)

	f.playerRepo.On("FindByID", mock.Anything, uint(1)).
		Return(&domain.Player{ID: 1, TempXPBuffPct: 50, TempBuffExpires: &expires}, nil).Once()
	f.playerRepo.On("AddGoldXP", mock.Anything, uint(1), mock.Anything, int64(420)).Return(nil).Once()
	f.itemRepo.On("DropCandidates", mock.Anything, "plains").Return([]domain.Item{}, nil)

	// Act
	session.Lock()
	entries, err := f.svc.DistributeFloor(context.Background(), session, 0)
	session.Unlock()

	// Assert
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 420, entries[0].XP)
	f.playerRepo.AssertExpectations(t)
}

func TestDistributeFloor_DeadMembersExcluded(t *testing.T) {
	// Arrange: 成员 2 已倒下，不参与结算
	f := newRewardFixture(t)
	session := contribSession("plains", 0, false, 1, 2)
	session.Members[2].Alive = false
	session.ContribAtk[1] = 50

	f.playerRepo.On("FindByID", mock.Anything, uint(1)).Return(&domain.Player{ID: 1}, nil).Once()
	f.playerRepo.On("AddGoldXP", mock.Anything, uint(1), mock.Anything, mock.Anything).Return(nil).Once()
	f.itemRepo.On("DropCandidates", mock.Anything, "plains").Return([]domain.Item{}, nil)

	// Act
	session.Lock()
	entries, err := f.svc.DistributeFloor(context.Background(), session, 0)
	session.Unlock()

	// Assert
	require.NoError(t, err)
	require.Len(t, entries, 1, "死亡成员不应出现在结算中")
	assert.Equal(t, uint(1), entries[0].PlayerID)
	f.playerRepo.AssertNotCalled(t, "FindByID", mock.Anything, uint(2))
}

func TestDistributeFloor_BossGuaranteedPotionsAndOverflowConversion(t *testing.T) {
	// Arrange: Boss 层保底生命药水；背包已满时按目录价值折算成金币
	f := newRewardFixture(t)
	session := contribSession("plains", 3, true, 1)

	potion := &domain.Item{Key: "health_potion", Name: "生命药水", Slot: domain.SlotConsumable, Rarity: "common", Value: 5}
	f.playerRepo.On("FindByID", mock.Anything, uint(1)).Return(&domain.Player{ID: 1}, nil).Once()
	f.playerRepo.On("AddGoldXP", mock.Anything, uint(1), mock.Anything, mock.Anything).Return(nil)
	f.itemRepo.On("FindByKey", mock.Anything, "health_potion").Return(potion, nil).Once()
	// 能量药水与骨钥匙是概率掉落，可能不触发
	f.itemRepo.On("FindByKey", mock.Anything, "energy_potion").Return(nil, repository.ErrItemNotFound).Maybe()
	f.itemRepo.On("FindByKey", mock.Anything, "bone_key").Return(nil, repository.ErrItemNotFound).Maybe()
	f.itemRepo.On("DropCandidates", mock.Anything, "plains").Return([]domain.Item{}, nil)
	f.invRepo.On("AwardItem", mock.Anything, uint(1), mock.Anything).Return(repository.ErrInventoryFull)

	// Act
	session.Lock()
	entries, err := f.svc.DistributeFloor(context.Background(), session, 3)
	session.Unlock()

	// Assert: 保底药水必定出现且被折算，掉落不会悄悄丢失
	require.NoError(t, err)
	require.Len(t, entries, 1)
	var converted *domain.LootItem
	for i := range entries[0].Items {
		if entries[0].Items[i].Key == "health_potion" {
			converted = &entries[0].Items[i]
		}
	}
	require.NotNil(t, converted, "Boss 层应保底掉落生命药水")
	assert.GreaterOrEqual(t, converted.ConvertedGold, 5, "折算金币至少为单价×数量")
	f.itemRepo.AssertExpectations(t)
}

func TestDistributeFloor_WipedFloorNoRewards(t *testing.T) {
	// Arrange: 无人存活
	f := newRewardFixture(t)
	session := contribSession("plains", 0, false, 1)
	session.Members[1].Alive = false

	// Act
	session.Lock()
	entries, err := f.svc.DistributeFloor(context.Background(), session, 0)
	session.Unlock()

	// Assert
	require.NoError(t, err)
	assert.Empty(t, entries)
	f.playerRepo.AssertNotCalled(t, "AddGoldXP", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
