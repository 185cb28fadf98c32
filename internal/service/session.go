package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"dungeon-raid/internal/domain"
	"dungeon-raid/internal/dto"
	"dungeon-raid/internal/repository"
	"dungeon-raid/internal/store"
)

// DefaultTurnTimeout 回合截止窗口。
const DefaultTurnTimeout = 30 * time.Second

// ExitConfirmTTL 退出确认的有效期。
const ExitConfirmTTL = 30 * time.Second

// 死亡成员在结算时损失的最终层经验比例
const deathPenaltyRate = 0.3

var passwordPattern = regexp.MustCompile(`^\d{4}$`)

// DungeonService 是地下城引擎的门面：会话生命周期 (大厅组建、
// 所有权移交、退出确认、销毁) 和回合协调器 (combat.go) 共用这一个服务。
// 所有会话变更都在持有该会话互斥锁的情况下进行。
type DungeonService struct {
	sessions   *store.SessionStore
	playerRepo repository.PlayerRepository
	itemRepo   repository.ItemRepository
	invRepo    repository.InventoryRepository
	stateRepo  repository.StateRepository
	encounter  *EncounterService
	rewards    *RewardService
	presenter  Presenter
	roller     DamageRoller

	turnTimeout time.Duration
}

// NewDungeonService 创建 DungeonService 实例。
// turnTimeout <= 0 时使用 DefaultTurnTimeout。
func NewDungeonService(
	sessions *store.SessionStore,
	playerRepo repository.PlayerRepository,
	itemRepo repository.ItemRepository,
	invRepo repository.InventoryRepository,
	stateRepo repository.StateRepository,
	encounter *EncounterService,
	rewards *RewardService,
	presenter Presenter,
	roller DamageRoller,
	turnTimeout time.Duration,
) *DungeonService {
	if sessions == nil {
		panic("SessionStore cannot be nil for DungeonService")
	}
	if playerRepo == nil {
		panic("PlayerRepository cannot be nil for DungeonService")
	}
	if itemRepo == nil {
		panic("ItemRepository cannot be nil for DungeonService")
	}
	if invRepo == nil {
		panic("InventoryRepository cannot be nil for DungeonService")
	}
	if stateRepo == nil {
		panic("StateRepository cannot be nil for DungeonService")
	}
	if encounter == nil {
		panic("EncounterService cannot be nil for DungeonService")
	}
	if rewards == nil {
		panic("RewardService cannot be nil for DungeonService")
	}
	if presenter == nil {
		panic("Presenter cannot be nil for DungeonService")
	}
	if roller == nil {
		panic("DamageRoller cannot be nil for DungeonService")
	}
	if turnTimeout <= 0 {
		turnTimeout = DefaultTurnTimeout
	}
	return &DungeonService{
		sessions:    sessions,
		playerRepo:  playerRepo,
		itemRepo:    itemRepo,
		invRepo:     invRepo,
		stateRepo:   stateRepo,
		encounter:   encounter,
		rewards:     rewards,
		presenter:   presenter,
		roller:      roller,
		turnTimeout: turnTimeout,
	}
}

// CreateSession 以调用者当前所在区域创建一个大厅状态的会话。
// password 为空表示公开；否则必须是 4 位数字。
// 特殊地下城有等级门槛，且创建时就要求持有骨钥匙 (开启时才消耗)。
func (svc *DungeonService) CreateSession(ctx context.Context, playerID uint, password string) (*domain.Session, error) {
	logCtx := logrus.WithField("player_id", playerID)

	if password != "" && !passwordPattern.MatchString(password) {
		return nil, ErrInvalidPassword
	}

	player, err := svc.playerRepo.FindByID(ctx, playerID)
	if err != nil {
		logCtx.WithError(err).Warn("Create session failed: player lookup")
		return nil, ErrInternalServer
	}
	def, ok := DungeonDefFor(player.CurrentZone)
	if !ok {
		return nil, ErrNoDungeonHere
	}

	stats, err := svc.playerRepo.Stats(ctx, playerID)
	if err != nil {
		logCtx.WithError(err).Error("Create session failed: stats lookup")
		return nil, ErrInternalServer
	}
	if def.MinLevel > 0 && stats.Level < def.MinLevel {
		return nil, ErrLevelTooLow
	}
	if def.KeyItem == "bone_key" {
		has, err := svc.invRepo.HasItemQty(ctx, playerID, def.KeyItem, 1)
		if err != nil {
			logCtx.WithError(err).Error("Create session failed: key item lookup")
			return nil, ErrInternalServer
		}
		if !has {
			return nil, ErrKeyItemRequired
		}
	}

	code, err := svc.generateUniqueCode()
	if err != nil {
		logCtx.WithError(err).Error("Create session failed: code generation")
		return nil, ErrInternalServer
	}

	session := domain.NewSession(code, def.Name, player.CurrentZone, password, playerID)
	session.AddMember(&domain.Member{
		PlayerID: playerID,
		Name:     player.Name,
		Ready:    true,
		HP:       player.HP,
		MaxHP:    stats.TotalHP,
		Alive:    true,
	})
	svc.sessions.Put(session)

	session.Lock()
	payload := buildLobbyPayload(session)
	session.Unlock()
	svc.presenter.SessionUpdated(code, payload)

	logCtx.WithFields(logrus.Fields{"session": code, "zone": player.CurrentZone}).Info("Dungeon session created")
	return session, nil
}

// generateUniqueCode 生成不与现存会话冲突的 6 位十六进制会话码。
func (svc *DungeonService) generateUniqueCode() (string, error) {
	const maxAttempts = 10
	for i := 0; i < maxAttempts; i++ {
		buf := make([]byte, 3)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("generate session code: %w", err)
		}
		code := strings.ToUpper(hex.EncodeToString(buf))
		if !svc.sessions.Exists(code) {
			return code, nil
		}
	}
	return "", fmt.Errorf("failed to generate a unique session code after %d attempts", maxAttempts)
}

// JoinSession 把玩家加入一个大厅状态的会话。
func (svc *DungeonService) JoinSession(ctx context.Context, code string, playerID uint, password string) error {
	logCtx := logrus.WithFields(logrus.Fields{"session": code, "player_id": playerID})

	session, ok := svc.sessions.Get(code)
	if !ok {
		return ErrSessionNotFound
	}

	player, err := svc.playerRepo.FindByID(ctx, playerID)
	if err != nil {
		logCtx.WithError(err).Warn("Join session failed: player lookup")
		return ErrInternalServer
	}
	stats, err := svc.playerRepo.Stats(ctx, playerID)
	if err != nil {
		logCtx.WithError(err).Error("Join session failed: stats lookup")
		return ErrInternalServer
	}

	session.Lock()
	if session.State != domain.SessionStateLobby {
		session.Unlock()
		return ErrSessionRunning
	}
	if _, exists := session.Members[playerID]; exists {
		session.Unlock()
		return ErrAlreadyMember
	}
	if session.IsFull() {
		session.Unlock()
		return ErrSessionFull
	}
	if session.Password != "" && session.Password != password {
		session.Unlock()
		return ErrPasswordMismatch
	}
	session.AddMember(&domain.Member{
		PlayerID: playerID,
		Name:     player.Name,
		Ready:    true,
		HP:       player.HP,
		MaxHP:    stats.TotalHP,
		Alive:    true,
	})
	session.Touch()
	payload := buildLobbyPayload(session)
	session.Unlock()

	svc.presenter.SessionUpdated(code, payload)
	logCtx.Info("Player joined dungeon session")
	return nil
}

// SetReady 切换大厅内的准备标记。
func (svc *DungeonService) SetReady(ctx context.Context, code string, playerID uint, ready bool) error {
	session, ok := svc.sessions.Get(code)
	if !ok {
		return ErrSessionNotFound
	}

	session.Lock()
	if session.State != domain.SessionStateLobby {
		session.Unlock()
		return ErrSessionRunning
	}
	member, exists := session.Members[playerID]
	if !exists {
		session.Unlock()
		return ErrNotMember
	}
	member.Ready = ready
	session.Touch()
	payload := buildLobbyPayload(session)
	session.Unlock()

	svc.presenter.SessionUpdated(code, payload)
	return nil
}

// Browse 返回调用者当前区域内可加入的大厅列表。
func (svc *DungeonService) Browse(ctx context.Context, playerID uint) ([]dto.LobbySummary, error) {
	player, err := svc.playerRepo.FindByID(ctx, playerID)
	if err != nil {
		logrus.WithError(err).WithField("player_id", playerID).Warn("Browse failed: player lookup")
		return nil, ErrInternalServer
	}

	var lobbies []dto.LobbySummary
	svc.sessions.Range(func(s *domain.Session) bool {
		s.Lock()
		if s.State == domain.SessionStateLobby && s.ZoneKey == player.CurrentZone && !s.IsFull() {
			lobbies = append(lobbies, dto.LobbySummary{
				Code:        s.Code,
				Name:        s.Name,
				Members:     len(s.MemberOrder),
				MaxMembers:  domain.MaxPartySize,
				HasPassword: s.Password != "",
			})
		}
		s.Unlock()
		return true
	})
	return lobbies, nil
}

// LeaveSession 立即离开一个大厅状态的会话。
// 战斗中的离开必须走 RequestExit/ConfirmExit 确认流程。
func (svc *DungeonService) LeaveSession(ctx context.Context, code string, playerID uint) error {
	session, ok := svc.sessions.Get(code)
	if !ok {
		return ErrSessionNotFound
	}

	session.Lock()
	if session.State == domain.SessionStateRunning {
		session.Unlock()
		return ErrSessionRunning
	}
	if _, exists := session.Members[playerID]; !exists {
		session.Unlock()
		return ErrNotMember
	}
	destroyed := svc.removeMemberLocked(ctx, session, playerID)
	var payload dto.RenderPayload
	if !destroyed {
		payload = buildLobbyPayload(session)
	}
	session.Unlock()

	if !destroyed {
		svc.presenter.SessionUpdated(code, payload)
	}
	logrus.WithFields(logrus.Fields{"session": code, "player_id": playerID, "destroyed": destroyed}).
		Info("Player left dungeon session")
	return nil
}

// RequestExit 在战斗中发起一次退出请求，需在有效期内用 ConfirmExit 确认。
func (svc *DungeonService) RequestExit(ctx context.Context, code string, playerID uint) error {
	session, ok := svc.sessions.Get(code)
	if !ok {
		return ErrSessionNotFound
	}

	session.Lock()
	_, exists := session.Members[playerID]
	running := session.State == domain.SessionStateRunning
	session.Unlock()

	if !exists {
		return ErrNotMember
	}
	if !running {
		return ErrSessionNotRunning
	}
	if err := svc.stateRepo.SetExitPending(ctx, code, playerID, ExitConfirmTTL); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{"session": code, "player_id": playerID}).
			Error("Failed to record exit confirmation")
		return ErrInternalServer
	}
	return nil
}

// ConfirmExit 消费退出确认并把成员移出战斗中的会话。
// 确认不存在或已过期时拒绝。
func (svc *DungeonService) ConfirmExit(ctx context.Context, code string, playerID uint) error {
	session, ok := svc.sessions.Get(code)
	if !ok {
		return ErrSessionNotFound
	}

	pending, err := svc.stateRepo.TakeExitPending(ctx, code, playerID)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{"session": code, "player_id": playerID}).
			Error("Failed to consume exit confirmation")
		return ErrInternalServer
	}
	if !pending {
		return ErrExitNotPending
	}

	session.Lock()
	if _, exists := session.Members[playerID]; !exists {
		session.Unlock()
		return ErrNotMember
	}
	destroyed := svc.removeMemberLocked(ctx, session, playerID)
	resolved := false
	var payload dto.RenderPayload
	if !destroyed {
		// 退出者可能是回合里最后一个没提交的人，移除后立即重查完成条件
		resolved = svc.resolveIfCompleteLocked(ctx, session)
		if !resolved {
			if session.State == domain.SessionStateRunning {
				payload = buildCombatPayload(session)
			} else {
				payload = buildLobbyPayload(session)
			}
		}
	}
	session.Unlock()

	if !destroyed && !resolved {
		svc.presenter.SessionUpdated(code, payload)
	}
	logrus.WithFields(logrus.Fields{"session": code, "player_id": playerID, "destroyed": destroyed}).
		Info("Player exited running dungeon session")
	return nil
}

// removeMemberLocked 移除成员并处理所有权移交与零成员销毁。
// 调用方必须持有会话锁；返回会话是否已销毁。
func (svc *DungeonService) removeMemberLocked(ctx context.Context, session *domain.Session, playerID uint) bool {
	session.RemoveMember(playerID)
	if err := svc.playerRepo.SetState(ctx, playerID, domain.PlayerStateMenu); err != nil {
		logrus.WithError(err).WithField("player_id", playerID).Error("Failed to reset leaving player state")
	}

	// 房主离开时移交给加入顺序中的下一位
	if session.OwnerID == playerID && len(session.MemberOrder) > 0 {
		session.OwnerID = session.MemberOrder[0]
	}

	if len(session.MemberOrder) == 0 {
		svc.teardownLocked(ctx, session)
		return true
	}
	session.Touch()
	return false
}

// teardownLocked 销毁会话：停定时器、清 Redis 状态、移出注册表。
// 调用方必须持有会话锁。
func (svc *DungeonService) teardownLocked(ctx context.Context, session *domain.Session) {
	session.StopTurnTimer()
	session.State = domain.SessionStateFinished
	svc.sessions.Delete(session.Code)
	if err := svc.stateRepo.ClearSessionState(ctx, session.Code); err != nil {
		logrus.WithError(err).WithField("session", session.Code).Warn("Failed to clear session redis state")
	}
}

// Refresh 重新广播会话当前画面，用于新连接或重连的客户端同步状态。
func (svc *DungeonService) Refresh(ctx context.Context, code string) error {
	session, ok := svc.sessions.Get(code)
	if !ok {
		return ErrSessionNotFound
	}

	session.Lock()
	var payload dto.RenderPayload
	if session.State == domain.SessionStateRunning {
		payload = buildCombatPayload(session)
	} else {
		payload = buildLobbyPayload(session)
	}
	session.Unlock()

	svc.presenter.SessionUpdated(code, payload)
	return nil
}

// StartSession 由房主开启战斗：校验并消耗钥匙物品、生成楼层、
// 把全体成员的持久化状态切到 dungeon，然后开始第一个回合。
func (svc *DungeonService) StartSession(ctx context.Context, code string, playerID uint) error {
	logCtx := logrus.WithFields(logrus.Fields{"session": code, "player_id": playerID})

	session, ok := svc.sessions.Get(code)
	if !ok {
		return ErrSessionNotFound
	}

	session.Lock()
	defer session.Unlock()

	if session.OwnerID != playerID {
		return ErrNotOwner
	}
	if session.State != domain.SessionStateLobby {
		return ErrSessionRunning
	}
	if len(session.MemberOrder) == 0 {
		return ErrSessionEmpty
	}
	def, ok := DungeonDefFor(session.ZoneKey)
	if !ok {
		return ErrNoDungeonHere
	}

	// 1. 校验并消耗房主的钥匙物品
	has, err := svc.invRepo.HasItemQty(ctx, playerID, def.KeyItem, 1)
	if err != nil {
		logCtx.WithError(err).Error("Start session failed: key item lookup")
		return ErrInternalServer
	}
	if !has {
		return ErrKeyItemRequired
	}
	if err := svc.invRepo.ConsumeItem(ctx, playerID, def.KeyItem, 1); err != nil {
		logCtx.WithError(err).Error("Start session failed: key item consumption")
		return ErrInternalServer
	}

	// 2. 生成楼层
	floors, err := svc.encounter.GenerateFloors(ctx, session.ZoneKey, len(session.MemberOrder))
	if err != nil {
		return err
	}

	// 3. 切换会话与成员状态
	session.State = domain.SessionStateRunning
	session.Floors = floors
	session.CurrentFloor = 0
	session.TurnSeq = 0
	session.Actions = make(map[uint]domain.Action)
	session.ContribAtk = make(map[uint]int)
	session.ContribDef = make(map[uint]int)
	session.RewardLog = make(map[uint][]domain.RewardEntry)
	for _, id := range session.MemberOrder {
		if err := svc.playerRepo.SetState(ctx, id, domain.PlayerStateDungeon); err != nil {
			logCtx.WithError(err).WithField("member_id", id).Error("Failed to set member state to dungeon")
		}
	}
	session.Touch()

	logCtx.WithField("floors", len(floors)).Info("Dungeon session started")

	// 4. 第一个回合 (楼层列表为空时立即按完成结算)
	if len(floors) == 0 {
		svc.finishLocked(ctx, session, "complete")
		return nil
	}
	svc.startTurnLocked(ctx, session)
	return nil
}

// SweepIdle 回收闲置超过 idleFor 的大厅会话，返回回收数量。
// 战斗中的会话由回合定时器驱动，不参与闲置回收。
func (svc *DungeonService) SweepIdle(ctx context.Context, idleFor time.Duration) int {
	cutoff := time.Now().Add(-idleFor)
	swept := 0
	svc.sessions.Range(func(session *domain.Session) bool {
		session.Lock()
		if session.State == domain.SessionStateLobby && session.LastActive.Before(cutoff) {
			svc.finishLocked(ctx, session, "abandoned")
			swept++
		}
		session.Unlock()
		return true
	})
	if swept > 0 {
		logrus.WithField("count", swept).Info("Idle lobby sessions swept")
	}
	return swept
}

// finishLocked 终结会话：死亡惩罚、成员状态复位、伤害排行广播、销毁。
// 三种结局共用：complete (通关)、wipe (团灭)、abandoned (全员退出前的清扫)。
// 调用方必须持有会话锁。
func (svc *DungeonService) finishLocked(ctx context.Context, session *domain.Session, outcome string) {
	logCtx := logrus.WithFields(logrus.Fields{"session": session.Code, "outcome": outcome})
	session.StopTurnTimer()

	def, hasDef := DungeonDefFor(session.ZoneKey)
	var penalty int64
	if hasDef {
		penalty = int64(math.Round(float64(def.XP[len(def.XP)-1]) * deathPenaltyRate))
	}

	for _, id := range session.MemberOrder {
		member := session.Members[id]
		if member == nil {
			continue
		}
		if !member.Alive && penalty > 0 {
			if err := svc.playerRepo.ApplyXPPenalty(ctx, id, penalty); err != nil {
				logCtx.WithError(err).WithField("member_id", id).Error("Failed to apply death penalty")
			}
		}
		if err := svc.playerRepo.SetState(ctx, id, domain.PlayerStateMenu); err != nil {
			logCtx.WithError(err).WithField("member_id", id).Error("Failed to reset member state")
		}
	}

	payload := buildSummaryPayload(session, outcome)
	svc.teardownLocked(ctx, session)
	svc.presenter.SessionFinished(session.Code, payload)
	logCtx.Info("Dungeon session finished")
}
