package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"dungeon-raid/internal/domain"
	"dungeon-raid/internal/repository/mocks"
	"dungeon-raid/internal/service"
	"dungeon-raid/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// scriptedRoller 按脚本顺序返回伤害值，用完后返回 1。
// 暴击判定默认恒为否。
type scriptedRoller struct {
	rolls []int
	crits []bool
}

func (r *scriptedRoller) Damage(atk, def int, isCrit bool) int {
	if len(r.rolls) == 0 {
		return 1
	}
	v := r.rolls[0]
	r.rolls = r.rolls[1:]
	return v
}

func (r *scriptedRoller) Crit(chancePct float64) bool {
	if len(r.crits) == 0 {
		return false
	}
	v := r.crits[0]
	r.crits = r.crits[1:]
	return v
}

// engineFixture 把引擎及其全部 Mock 依赖打包在一起。
type engineFixture struct {
	sessions   *store.SessionStore
	playerRepo *mocks.PlayerRepository
	mobRepo    *mocks.MobRepository
	itemRepo   *mocks.ItemRepository
	invRepo    *mocks.InventoryRepository
	stateRepo  *mocks.StateRepository
	roller     *scriptedRoller
	svc        *service.DungeonService
}

func newEngineFixture(t *testing.T, turnTimeout time.Duration) *engineFixture {
	t.Helper()
	f := &engineFixture{
		sessions:   store.NewSessionStore(),
		playerRepo: new(mocks.PlayerRepository),
		mobRepo:    new(mocks.MobRepository),
		itemRepo:   new(mocks.ItemRepository),
		invRepo:    new(mocks.InventoryRepository),
		stateRepo:  new(mocks.StateRepository),
		roller:     &scriptedRoller{},
	}
	encounter := service.NewEncounterService(f.mobRepo)
	rewards := service.NewRewardService(f.playerRepo, f.itemRepo, f.invRepo)
	f.svc = service.NewDungeonService(
		f.sessions, f.playerRepo, f.itemRepo, f.invRepo, f.stateRepo,
		encounter, rewards, service.NopPresenter{}, f.roller, turnTimeout,
	)
	return f
}

// runningSession 构造一个处于战斗第 1 回合的会话并放入注册表。
func (f *engineFixture) runningSession(code string, mobHP int, memberHP int, memberIDs ...uint) *domain.Session {
	s := domain.NewSession(code, "平原地下城", "plains", "", memberIDs[0])
	for _, id := range memberIDs {
		s.AddMember(&domain.Member{
			PlayerID: id,
			Name:     fmt.Sprintf("hero%d", id),
			Ready:    true,
			HP:       memberHP,
			MaxHP:    100,
			Alive:    true,
		})
	}
	s.State = domain.SessionStateRunning
	s.TurnSeq = 1
	s.Deadline = time.Now().Add(time.Minute)
	s.Floors = []domain.Floor{
		{
			Number:  1,
			Mob:     domain.MobCombatant{Key: "slime", Name: "Slime", HP: mobHP, MaxHP: mobHP, Atk: 10, Def: 5},
			Scaling: service.ScalingForFloor(1),
		},
		{
			Number:  2,
			Mob:     domain.MobCombatant{Key: "wolf", Name: "Wolf", HP: 120, MaxHP: 120, Atk: 12, Def: 6},
			Scaling: service.ScalingForFloor(2),
		},
	}
	f.sessions.Put(s)
	return s
}

func defaultStats() *domain.PlayerStats {
	return &domain.PlayerStats{TotalHP: 100, TotalAtk: 10, TotalDef: 5, TotalCrit: 0, Level: 5}
}

// --- 回合协调 ---

func TestSubmitAction_TwoAttackers_MobSurvives(t *testing.T) {
	// Arrange: 双人队伍对 100 HP 的怪物，伤害脚本 40+35，反击 7
	f := newEngineFixture(t, 0)
	session := f.runningSession("AB12CD", 100, 100, 1, 2)
	f.roller.rolls = []int{40, 35, 7}

	f.playerRepo.On("Stats", mock.Anything, mock.Anything).Return(defaultStats(), nil)
	f.playerRepo.On("UpdateHP", mock.Anything, mock.Anything, 93).Return(nil).Once()

	ctx := context.Background()

	// Act: 第一人提交后回合保持开放，第二人提交触发结算
	require.NoError(t, f.svc.SubmitAction(ctx, "AB12CD", 1, 1, domain.ActionAttack, ""))

	session.Lock()
	assert.Equal(t, uint64(1), session.TurnSeq, "只有一人提交时回合不应结算")
	assert.Len(t, session.Actions, 1)
	session.Unlock()

	require.NoError(t, f.svc.SubmitAction(ctx, "AB12CD", 2, 1, domain.ActionAttack, ""))

	// Assert
	session.Lock()
	defer session.Unlock()
	floor, ok := session.CurrentFloorRef()
	require.True(t, ok)
	assert.Equal(t, 25, floor.Mob.HP, "怪物应受到 40+35 伤害")
	assert.Equal(t, 0, session.CurrentFloor, "怪物存活时不应推进楼层")
	assert.Equal(t, uint64(2), session.TurnSeq, "结算后应开启新回合")
	assert.Empty(t, session.Actions, "新回合的行动表应为空")
	assert.Equal(t, 75, session.ContribAtk[1]+session.ContribAtk[2], "攻击贡献应等于总伤害")
	assert.NotEmpty(t, session.LastEvents, "结算应产生事件行")
	// 反击命中其中一人
	hurt := 0
	for _, id := range []uint{1, 2} {
		if session.Members[id].HP == 93 {
			hurt++
		}
	}
	assert.Equal(t, 1, hurt, "反击应恰好命中一名成员")
	f.playerRepo.AssertExpectations(t)
}

func TestSubmitAction_KillAdvancesFloorAndDistributesOnce(t *testing.T) {
	// Arrange: 60 HP 的怪物被 40+35 一回合击杀
	f := newEngineFixture(t, 0)
	session := f.runningSession("KILL01", 60, 100, 1, 2)
	f.roller.rolls = []int{40, 35}

	f.playerRepo.On("Stats", mock.Anything, mock.Anything).Return(defaultStats(), nil)
	f.playerRepo.On("FindByID", mock.Anything, uint(1)).Return(&domain.Player{ID: 1, Name: "hero1"}, nil)
	f.playerRepo.On("FindByID", mock.Anything, uint(2)).Return(&domain.Player{ID: 2, Name: "hero2"}, nil)
	// 经验池 400，权重 0.7×40/75 与 0.7×35/75
	f.playerRepo.On("AddGoldXP", mock.Anything, uint(1), mock.Anything, int64(149)).Return(nil).Once()
	f.playerRepo.On("AddGoldXP", mock.Anything, uint(2), mock.Anything, int64(130)).Return(nil).Once()
	f.itemRepo.On("DropCandidates", mock.Anything, "plains").Return([]domain.Item{}, nil)

	ctx := context.Background()

	// Act
	require.NoError(t, f.svc.SubmitAction(ctx, "KILL01", 1, 1, domain.ActionAttack, ""))
	require.NoError(t, f.svc.SubmitAction(ctx, "KILL01", 2, 1, domain.ActionAttack, ""))

	// Assert
	session.Lock()
	defer session.Unlock()
	assert.Equal(t, 1, session.CurrentFloor, "击杀后应推进到下一层")
	assert.Equal(t, uint64(2), session.TurnSeq)
	assert.Empty(t, session.ContribAtk, "结算后攻击贡献应清零")
	assert.Empty(t, session.ContribDef, "结算后防御贡献应清零")
	assert.Len(t, session.RewardLog[1], 1, "每名成员应有一条奖励记录")
	assert.Len(t, session.RewardLog[2], 1)
	floor, ok := session.CurrentFloorRef()
	require.True(t, ok)
	assert.Equal(t, 120, floor.Mob.HP, "下一层怪物应未受伤")
	f.playerRepo.AssertExpectations(t)
}

func TestSubmitAction_DefendMitigationCreditedOnHit(t *testing.T) {
	// Arrange: 成员 1 举盾 (防御 5 → 加成 max(1, floor(2.5))=2)，成员 2 攻击 10。
	// 反击必然打向防御者：实际伤害 6，无加成伤害 9，减免 3。
	f := newEngineFixture(t, 0)
	session := f.runningSession("DEF001", 100, 100, 1, 2)
	f.roller.rolls = []int{10, 6, 9}

	f.invRepo.On("HasShieldEquipped", mock.Anything, uint(1)).Return(true, nil).Once()
	f.playerRepo.On("Stats", mock.Anything, mock.Anything).Return(defaultStats(), nil)
	f.playerRepo.On("UpdateHP", mock.Anything, uint(1), 94).Return(nil).Once()

	ctx := context.Background()

	// Act
	require.NoError(t, f.svc.SubmitAction(ctx, "DEF001", 1, 1, domain.ActionDefend, ""))
	require.NoError(t, f.svc.SubmitAction(ctx, "DEF001", 2, 1, domain.ActionAttack, ""))

	// Assert
	session.Lock()
	defer session.Unlock()
	assert.Equal(t, 94, session.Members[1].HP, "防御者应承受减免后的 6 点伤害")
	assert.Equal(t, 100, session.Members[2].HP, "有防御者时反击不应打向其他成员")
	assert.Equal(t, 3, session.ContribDef[1], "防御贡献应等于实际减免量")
	assert.Zero(t, session.ContribAtk[1], "举盾本身不应计入攻击贡献")
	f.invRepo.AssertExpectations(t)
}

func TestSubmitAction_DefendWithoutShieldRejected(t *testing.T) {
	// Arrange
	f := newEngineFixture(t, 0)
	f.runningSession("NOSHLD", 100, 100, 1)
	f.invRepo.On("HasShieldEquipped", mock.Anything, uint(1)).Return(false, nil).Once()

	// Act
	err := f.svc.SubmitAction(context.Background(), "NOSHLD", 1, 1, domain.ActionDefend, "")

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrShieldRequired))
}

func TestSubmitAction_RejectionLadder(t *testing.T) {
	// Arrange: 成员 2 已死亡，成员 1 已提交
	f := newEngineFixture(t, 0)
	session := f.runningSession("REJECT", 100, 100, 1, 2, 3)
	session.Lock()
	session.Members[2].Alive = false
	session.Members[2].HP = 0
	session.Unlock()

	ctx := context.Background()
	require.NoError(t, f.svc.SubmitAction(ctx, "REJECT", 1, 1, domain.ActionWait, ""))

	// Act / Assert
	assert.True(t, errors.Is(f.svc.SubmitAction(ctx, "MISSING", 1, 1, domain.ActionAttack, ""), service.ErrSessionNotFound))
	assert.True(t, errors.Is(f.svc.SubmitAction(ctx, "REJECT", 99, 1, domain.ActionAttack, ""), service.ErrNotMember))
	assert.True(t, errors.Is(f.svc.SubmitAction(ctx, "REJECT", 2, 1, domain.ActionAttack, ""), service.ErrMemberDead))
	assert.True(t, errors.Is(f.svc.SubmitAction(ctx, "REJECT", 3, 7, domain.ActionAttack, ""), service.ErrStaleTurn))
	assert.True(t, errors.Is(f.svc.SubmitAction(ctx, "REJECT", 1, 1, domain.ActionWait, ""), service.ErrAlreadyActed))

	// 过期/重复提交不应触发结算
	session.Lock()
	assert.Equal(t, uint64(1), session.TurnSeq)
	session.Unlock()
}

func TestSubmitAction_CounterKillWipesParty(t *testing.T) {
	// Arrange: 独行成员仅剩 5 HP，攻击 10 不足以击杀，反击 8 致死
	f := newEngineFixture(t, 0)
	f.runningSession("WIPE01", 100, 5, 1)
	f.roller.rolls = []int{10, 8}

	f.playerRepo.On("Stats", mock.Anything, uint(1)).Return(defaultStats(), nil)
	f.playerRepo.On("UpdateHP", mock.Anything, uint(1), 0).Return(nil).Once()
	// 团灭结算：死亡惩罚 round(900×0.3)=270，状态复位
	f.playerRepo.On("ApplyXPPenalty", mock.Anything, uint(1), int64(270)).Return(nil).Once()
	f.playerRepo.On("SetState", mock.Anything, uint(1), domain.PlayerStateMenu).Return(nil).Once()
	f.stateRepo.On("ClearSessionState", mock.Anything, "WIPE01").Return(nil).Once()

	// Act
	require.NoError(t, f.svc.SubmitAction(context.Background(), "WIPE01", 1, 1, domain.ActionAttack, ""))

	// Assert: 会话应被销毁，且不发奖励
	_, ok := f.sessions.Get("WIPE01")
	assert.False(t, ok, "团灭后会话应从注册表移除")
	f.playerRepo.AssertExpectations(t)
	f.stateRepo.AssertExpectations(t)
	f.playerRepo.AssertNotCalled(t, "AddGoldXP", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitAction_UseItemHealsAtResolution(t *testing.T) {
	// Arrange: 独行成员 80/100 HP，使用治疗 30 的药水 (补满到 100)，随后被反击 7
	f := newEngineFixture(t, 0)
	session := f.runningSession("POTION", 100, 80, 1)
	f.roller.rolls = []int{7}

	potion := &domain.Item{Key: "health_potion", Name: "生命药水", Slot: domain.SlotConsumable, HealAmount: 30}
	f.invRepo.On("HasItemQty", mock.Anything, uint(1), "health_potion", 1).Return(true, nil).Once()
	f.itemRepo.On("FindByKey", mock.Anything, "health_potion").Return(potion, nil)
	f.invRepo.On("ConsumeItem", mock.Anything, uint(1), "health_potion", 1).Return(nil).Once()
	f.playerRepo.On("Stats", mock.Anything, uint(1)).Return(defaultStats(), nil)
	f.playerRepo.On("UpdateHP", mock.Anything, uint(1), 100).Return(nil).Once()
	f.playerRepo.On("UpdateHP", mock.Anything, uint(1), 93).Return(nil).Once()

	// Act
	require.NoError(t, f.svc.SubmitAction(context.Background(), "POTION", 1, 1, domain.ActionUseItem, "health_potion"))

	// Assert: 治疗封顶到上限，再扣除反击伤害
	session.Lock()
	assert.Equal(t, 93, session.Members[1].HP)
	session.Unlock()
	f.invRepo.AssertExpectations(t)
	f.playerRepo.AssertExpectations(t)
}

func TestDeadline_FillsAutoWaitAndResolves(t *testing.T) {
	// Arrange: 40ms 截止窗口，成员不提交任何行动
	f := newEngineFixture(t, 40*time.Millisecond)
	session := f.runningSession("TIMEUP", 100, 100, 1)
	f.roller.rolls = []int{10, 10, 10, 10}

	f.playerRepo.On("Stats", mock.Anything, uint(1)).Return(defaultStats(), nil)
	f.playerRepo.On("UpdateHP", mock.Anything, uint(1), mock.Anything).Return(nil)

	// 先用一次过期提交布置回合定时器：直接构造的会话没有定时器，
	// 引擎只在 startTurn 时布置。这里通过提交 wait 触发结算→新回合。
	require.NoError(t, f.svc.SubmitAction(context.Background(), "TIMEUP", 1, 1, domain.ActionWait, ""))

	session.Lock()
	require.Equal(t, uint64(2), session.TurnSeq, "等待行动也应触发结算并开启新回合")
	session.Unlock()

	// Act / Assert: 新回合无人提交，截止后引擎应自动补齐等待并结算
	require.Eventually(t, func() bool {
		session.Lock()
		defer session.Unlock()
		return session.TurnSeq >= 3
	}, time.Second, 10*time.Millisecond, "截止后回合应自动推进")

	session.Lock()
	assert.Less(t, session.Members[1].HP, 100, "自动等待的回合里怪物仍会反击")
	session.Unlock()
}
