package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"dungeon-raid/internal/domain"
	"dungeon-raid/internal/repository"
)

// 每回合结算后保留的事件行数
const maxLastEvents = 6

// SubmitAction 记录一名成员针对当前回合的行动。
// 拒绝顺序：会话不存在 → 非战斗态 → 非成员 → 已死亡 → 回合序号过期 →
// 结算进行中 → 本回合已提交。防御与用药的前置条件在提交时校验，
// 但用药的效果要到结算阶段才生效。
// 当已提交数达到存活人数时，本次调用顺带触发结算。
func (svc *DungeonService) SubmitAction(ctx context.Context, code string, playerID uint, turnSeq uint64, kind domain.ActionKind, itemKey string) error {
	session, ok := svc.sessions.Get(code)
	if !ok {
		return ErrSessionNotFound
	}

	session.Lock()
	defer session.Unlock()

	if session.State != domain.SessionStateRunning {
		return ErrSessionNotRunning
	}
	member, exists := session.Members[playerID]
	if !exists {
		return ErrNotMember
	}
	if !member.Alive {
		return ErrMemberDead
	}
	if turnSeq != session.TurnSeq {
		return ErrStaleTurn
	}
	if session.Resolving {
		return ErrTurnResolving
	}
	if _, acted := session.Actions[playerID]; acted {
		return ErrAlreadyActed
	}

	action := domain.Action{Kind: kind, Icon: kind.DefaultIcon()}
	switch kind {
	case domain.ActionAttack, domain.ActionWait:
		// 无附加前置条件
	case domain.ActionDefend:
		hasShield, err := svc.invRepo.HasShieldEquipped(ctx, playerID)
		if err != nil {
			logrus.WithError(err).WithField("player_id", playerID).Error("Failed to check equipped shield")
			return ErrInternalServer
		}
		if !hasShield {
			return ErrShieldRequired
		}
		stats, err := svc.playerRepo.Stats(ctx, playerID)
		if err != nil {
			logrus.WithError(err).WithField("player_id", playerID).Error("Failed to load stats for defend")
			return ErrInternalServer
		}
		bonus := int(math.Floor(float64(stats.TotalDef) * 0.5))
		if bonus < 1 {
			bonus = 1
		}
		action.DefendBonus = bonus
	case domain.ActionUseItem:
		has, err := svc.invRepo.HasItemQty(ctx, playerID, itemKey, 1)
		if err != nil {
			logrus.WithError(err).WithField("player_id", playerID).Error("Failed to check consumable ownership")
			return ErrInternalServer
		}
		if !has {
			return ErrItemNotOwned
		}
		item, err := svc.itemRepo.FindByKey(ctx, itemKey)
		if err != nil {
			if errors.Is(err, repository.ErrItemNotFound) {
				return ErrItemNotOwned
			}
			logrus.WithError(err).WithField("item_key", itemKey).Error("Failed to look up consumable")
			return ErrInternalServer
		}
		if item.Slot != domain.SlotConsumable {
			return ErrItemNotOwned
		}
		action.ItemKey = itemKey
	default:
		return ErrUnknownAction
	}

	session.Actions[playerID] = action
	session.Touch()

	if len(session.Actions) >= session.AliveCount() {
		session.Resolving = true
		svc.resolveLocked(ctx, session)
		return nil
	}
	svc.presenter.SessionUpdated(code, buildCombatPayload(session))
	return nil
}

// resolveIfCompleteLocked 在成员中途退出后重新评估提交完成条件：
// 退出者若尚未提交，剩余成员可能已经全员到齐，不该再等截止定时器。
// 调用方必须持有会话锁；返回是否触发了结算。
func (svc *DungeonService) resolveIfCompleteLocked(ctx context.Context, session *domain.Session) bool {
	if session.State != domain.SessionStateRunning || session.Resolving {
		return false
	}
	alive := session.AliveCount()
	if alive == 0 || len(session.Actions) < alive {
		return false
	}
	session.Resolving = true
	logrus.WithFields(logrus.Fields{"session": session.Code, "turn": session.TurnSeq}).
		Info("Member removal completed the turn, resolving early")
	svc.resolveLocked(ctx, session)
	return true
}

// handleDeadline 是回合截止定时器的回调。
// 先重新校验回合序号与结算标志：过期定时器对着已前进的回合触发时静默退出。
// 未提交的存活成员补上自动等待，然后结算。
func (svc *DungeonService) handleDeadline(code string, seq uint64) {
	session, ok := svc.sessions.Get(code)
	if !ok {
		return
	}

	session.Lock()
	defer session.Unlock()

	if session.State != domain.SessionStateRunning || session.TurnSeq != seq || session.Resolving {
		return
	}

	for _, id := range session.AliveMembers() {
		if _, acted := session.Actions[id]; !acted {
			session.Actions[id] = domain.Action{Kind: domain.ActionWait, Icon: domain.IconWait, Auto: true}
		}
	}
	session.Resolving = true
	logrus.WithFields(logrus.Fields{"session": code, "turn": seq}).Info("Turn deadline reached, resolving with auto-wait")
	svc.resolveLocked(context.Background(), session)
}

// startTurnLocked 开启新回合：清空行动表、递增序号、布置截止定时器并广播。
// 调用方必须持有会话锁。
func (svc *DungeonService) startTurnLocked(ctx context.Context, session *domain.Session) {
	session.Resolving = false
	session.Actions = make(map[uint]domain.Action)
	session.TurnSeq++
	session.Deadline = time.Now().Add(svc.turnTimeout)

	code := session.Code
	seq := session.TurnSeq
	session.SetTurnTimer(time.AfterFunc(svc.turnTimeout, func() {
		svc.handleDeadline(code, seq)
	}))

	svc.presenter.SessionUpdated(code, buildCombatPayload(session))
}

// resolveLocked 对当前回合做一次完整结算。
// 调用方必须持有会话锁并已置位 Resolving；本函数负责决定下一状态
// (新回合、击杀结算后推进、团灭或通关终结)。
func (svc *DungeonService) resolveLocked(ctx context.Context, session *domain.Session) {
	session.StopTurnTimer()
	logCtx := logrus.WithFields(logrus.Fields{"session": session.Code, "turn": session.TurnSeq})

	floor, ok := session.CurrentFloorRef()
	if !ok || session.State != domain.SessionStateRunning {
		session.Resolving = false
		return
	}
	mob := &floor.Mob

	alive := session.AliveMembers()
	if len(alive) == 0 {
		svc.finishLocked(ctx, session, "wipe")
		return
	}

	var events []string
	totalDmg := 0
	defendBonus := make(map[uint]int)

	// 1. 按加入顺序处理每名存活成员的行动
	for _, id := range alive {
		member := session.Members[id]
		action := session.Actions[id]

		switch action.Kind {
		case domain.ActionAttack:
			stats, err := svc.playerRepo.Stats(ctx, id)
			if err != nil {
				logCtx.WithError(err).WithField("player_id", id).Error("Failed to load stats for attack")
				events = append(events, fmt.Sprintf("%s %s swings and misses", domain.IconAttack, member.Name))
				continue
			}
			crit := svc.roller.Crit(stats.TotalCrit)
			dmg := svc.roller.Damage(stats.TotalAtk, mob.Def, crit)
			totalDmg += dmg
			member.DamageDealt += dmg
			session.ContribAtk[id] += dmg
			if crit {
				events = append(events, fmt.Sprintf("%s %s crits %s for %d", domain.IconAttack, member.Name, mob.Name, dmg))
			} else {
				events = append(events, fmt.Sprintf("%s %s hits %s for %d", domain.IconAttack, member.Name, mob.Name, dmg))
			}
		case domain.ActionDefend:
			defendBonus[id] = action.DefendBonus
			events = append(events, fmt.Sprintf("%s %s raises a shield (+%d def)", domain.IconDefend, member.Name, action.DefendBonus))
		case domain.ActionUseItem:
			events = append(events, svc.applyConsumableLocked(ctx, member, action.ItemKey))
		default:
			events = append(events, fmt.Sprintf("%s %s lost the turn", domain.IconWait, member.Name))
		}
	}

	mob.HP -= totalDmg
	if mob.HP < 0 {
		mob.HP = 0
	}

	// 2. 怪物存活时反击：优先打防御者，否则在存活成员中等概率选人
	if mob.HP > 0 {
		targetID := svc.pickCounterTarget(session, defendBonus)
		target := session.Members[targetID]

		targetDef := 0
		if stats, err := svc.playerRepo.Stats(ctx, targetID); err == nil {
			targetDef = stats.TotalDef
		} else {
			logCtx.WithError(err).WithField("player_id", targetID).Error("Failed to load stats for counter-attack")
		}

		bonus := defendBonus[targetID]
		dmg := svc.roller.Damage(mob.Atk, targetDef+bonus, false)
		if bonus > 0 {
			// 减免量 = 无加成伤害与实际伤害之差，计入防御贡献
			dmgBase := svc.roller.Damage(mob.Atk, targetDef, false)
			if mitigated := dmgBase - dmg; mitigated > 0 {
				session.ContribDef[targetID] += mitigated
			}
		}

		target.HP -= dmg
		if target.HP <= 0 {
			target.HP = 0
			target.Alive = false
			events = append(events, fmt.Sprintf("💀 %s hits %s for %d, they fall!", mob.Name, target.Name, dmg))
		} else {
			events = append(events, fmt.Sprintf("👹 %s hits %s for %d", mob.Name, target.Name, dmg))
		}
		if err := svc.playerRepo.UpdateHP(ctx, targetID, target.HP); err != nil {
			logCtx.WithError(err).WithField("player_id", targetID).Error("Failed to persist member HP")
		}
	}

	if len(events) > maxLastEvents {
		events = events[len(events)-maxLastEvents:]
	}
	session.LastEvents = events

	// 3. 决定下一状态
	if session.AliveCount() == 0 {
		svc.finishLocked(ctx, session, "wipe")
		return
	}
	if mob.HP > 0 {
		svc.startTurnLocked(ctx, session)
		return
	}

	// 击杀：先取贡献榜 (结算会清零贡献度)，再分奖励
	topAtk := topContributor(session, session.ContribAtk, "dmg")
	topDef := topContributor(session, session.ContribDef, "mitigated")
	entries, err := svc.rewards.DistributeFloor(ctx, session, session.CurrentFloor)
	if err != nil {
		logCtx.WithError(err).Error("Failed to distribute floor rewards")
	}
	svc.presenter.FloorCleared(session.Code, buildRewardPayload(session, mob.Name, floor.Number, entries, topAtk, topDef))
	logCtx.WithFields(logrus.Fields{"mob": mob.Key, "floor": floor.Number}).Info("Floor mob defeated")

	session.CurrentFloor++
	if _, next := session.CurrentFloorRef(); !next {
		svc.finishLocked(ctx, session, "complete")
		return
	}
	svc.startTurnLocked(ctx, session)
}

// pickCounterTarget 选出怪物反击的目标。调用方必须持有会话锁。
func (svc *DungeonService) pickCounterTarget(session *domain.Session, defendBonus map[uint]int) uint {
	alive := session.AliveMembers()
	var defenders []uint
	for _, id := range alive {
		if defendBonus[id] > 0 {
			defenders = append(defenders, id)
		}
	}
	pool := alive
	if len(defenders) > 0 {
		pool = defenders
	}
	return pool[rand.Intn(len(pool))]
}

// applyConsumableLocked 在结算阶段消耗并生效一件消耗品，返回事件行。
// 提交后物品被卖掉或转移时，这里会失败，该成员等同于等待。
func (svc *DungeonService) applyConsumableLocked(ctx context.Context, member *domain.Member, itemKey string) string {
	item, err := svc.itemRepo.FindByKey(ctx, itemKey)
	if err != nil {
		logrus.WithError(err).WithField("item_key", itemKey).Warn("Consumable vanished before resolution")
		return fmt.Sprintf("%s %s fumbles with an empty flask", domain.IconUseItem, member.Name)
	}
	if err := svc.invRepo.ConsumeItem(ctx, member.PlayerID, itemKey, 1); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{"player_id": member.PlayerID, "item_key": itemKey}).
			Warn("Failed to consume item at resolution")
		return fmt.Sprintf("%s %s fumbles with an empty flask", domain.IconUseItem, member.Name)
	}

	if item.HealAmount > 0 {
		healed := item.HealAmount
		if member.HP+healed > member.MaxHP {
			healed = member.MaxHP - member.HP
		}
		member.HP += healed
		if err := svc.playerRepo.UpdateHP(ctx, member.PlayerID, member.HP); err != nil {
			logrus.WithError(err).WithField("player_id", member.PlayerID).Error("Failed to persist healed HP")
		}
		return fmt.Sprintf("%s %s drinks %s (+%d HP)", domain.IconUseItem, member.Name, item.Name, healed)
	}
	if item.XPBuffPct > 0 || item.DropBuffPct > 0 {
		expires := time.Now().Add(time.Duration(item.BuffMinutes) * time.Minute)
		if err := svc.playerRepo.SetTempBuff(ctx, member.PlayerID, item.XPBuffPct, item.DropBuffPct, expires); err != nil {
			logrus.WithError(err).WithField("player_id", member.PlayerID).Error("Failed to persist temp buff")
		}
		return fmt.Sprintf("%s %s uses %s", domain.IconUseItem, member.Name, item.Name)
	}
	return fmt.Sprintf("%s %s uses %s to no effect", domain.IconUseItem, member.Name, item.Name)
}
