package service

import (
	"fmt"
	"sort"

	"dungeon-raid/internal/domain"
	"dungeon-raid/internal/dto"
)

// Presenter 是引擎的出站展示接口，由 websocket hub 实现。
// 实现必须是非阻塞的：这些方法会在持有会话锁时被调用。
type Presenter interface {
	// SessionUpdated 广播一次会话状态渲染 (大厅或战斗画面，原地编辑)。
	SessionUpdated(code string, payload dto.RenderPayload)
	// FloorCleared 广播一次击杀结算。
	FloorCleared(code string, payload dto.RewardPayload)
	// SessionFinished 广播会话结束总结。
	SessionFinished(code string, payload dto.SummaryPayload)
}

// NopPresenter 是空实现，用于测试。
type NopPresenter struct{}

func (NopPresenter) SessionUpdated(string, dto.RenderPayload)   {}
func (NopPresenter) FloorCleared(string, dto.RewardPayload)     {}
func (NopPresenter) SessionFinished(string, dto.SummaryPayload) {}

// --- 渲染构建器 (调用方必须持有会话锁) ---

// buildLobbyPayload 构建大厅画面。
func buildLobbyPayload(s *domain.Session) dto.RenderPayload {
	members := make([]dto.MemberLine, 0, len(s.MemberOrder))
	for _, id := range s.MemberOrder {
		m := s.Members[id]
		if m == nil {
			continue
		}
		members = append(members, dto.MemberLine{
			PlayerID: id,
			Name:     m.Name,
			HP:       m.HP,
			MaxHP:    m.MaxHP,
			Alive:    m.Alive,
			Ready:    m.Ready,
			Owner:    id == s.OwnerID,
		})
	}
	locked := "open"
	if s.Password != "" {
		locked = "password"
	}
	return dto.RenderPayload{
		Type:     "lobby",
		Code:     s.Code,
		Revision: s.NextRevision(),
		State:    string(s.State),
		Caption: []string{
			fmt.Sprintf("🗝️ %s", s.Name),
			fmt.Sprintf("Access: %s", locked),
			fmt.Sprintf("Members (%d/%d)", len(s.MemberOrder), domain.MaxPartySize),
		},
		Members: members,
		Buttons: []dto.ActionButton{
			{Label: "✅ Ready", Callback: fmt.Sprintf("ready:%s", s.Code)},
			{Label: "❌ Not ready", Callback: fmt.Sprintf("unready:%s", s.Code)},
			{Label: "🚀 Start", Callback: fmt.Sprintf("start:%s", s.Code)},
			{Label: "🏃 Leave", Callback: fmt.Sprintf("leave:%s", s.Code)},
		},
	}
}

// buildCombatPayload 构建战斗画面，含当前楼层、成员状态和回合按钮。
func buildCombatPayload(s *domain.Session) dto.RenderPayload {
	floor, ok := s.CurrentFloorRef()
	if !ok {
		return dto.RenderPayload{
			Type:     "combat",
			Code:     s.Code,
			Revision: s.NextRevision(),
			State:    string(s.State),
			Caption:  []string{"Dungeon over."},
		}
	}
	mob := floor.Mob

	caption := []string{
		fmt.Sprintf("🗝️ %s", s.Name),
		fmt.Sprintf("Floor %d/%d%s", floor.Number, FloorCount, bossTag(floor.IsBoss)),
		fmt.Sprintf("👹 %s", mob.Name),
		fmt.Sprintf("HP %d/%d", mob.HP, mob.MaxHP),
	}
	if len(s.LastEvents) > 0 {
		caption = append(caption, "⚡ Last turn:")
		caption = append(caption, s.LastEvents...)
	}

	members := make([]dto.MemberLine, 0, len(s.MemberOrder))
	for _, id := range s.MemberOrder {
		m := s.Members[id]
		if m == nil {
			continue
		}
		icon := domain.IconWait
		if act, has := s.Actions[id]; has {
			icon = act.Icon
		}
		members = append(members, dto.MemberLine{
			PlayerID:   id,
			Name:       m.Name,
			HP:         m.HP,
			MaxHP:      m.MaxHP,
			Alive:      m.Alive,
			ActionIcon: icon,
			Damage:     m.DamageDealt,
			Owner:      id == s.OwnerID,
		})
	}

	return dto.RenderPayload{
		Type:         "combat",
		Code:         s.Code,
		Revision:     s.NextRevision(),
		State:        string(s.State),
		Caption:      caption,
		Members:      members,
		TurnSeq:      s.TurnSeq,
		DeadlineUnix: s.Deadline.Unix(),
		Buttons: []dto.ActionButton{
			{Label: "⚔️ Attack", Callback: fmt.Sprintf("act:%s:%d:attack", s.Code, s.TurnSeq)},
			{Label: "🛡️ Defend", Callback: fmt.Sprintf("act:%s:%d:defend", s.Code, s.TurnSeq)},
			{Label: "🧪 Use item", Callback: fmt.Sprintf("act:%s:%d:use_item", s.Code, s.TurnSeq)},
			{Label: "🚪 Exit", Callback: fmt.Sprintf("exit:%s", s.Code)},
		},
	}
}

func bossTag(isBoss bool) string {
	if isBoss {
		return " 👑 Boss"
	}
	return ""
}

// buildRewardPayload 构建击杀结算广播。
// topAtk/topDef 需在贡献度清零前由调用方取好。
func buildRewardPayload(s *domain.Session, mobName string, floorNumber int, entries []domain.RewardEntry, topAtk, topDef string) dto.RewardPayload {
	lines := make([]dto.RewardLine, 0, len(entries))
	for _, e := range entries {
		name := fmt.Sprintf("player %d", e.PlayerID)
		if m := s.Members[e.PlayerID]; m != nil {
			name = m.Name
		}
		items := make([]string, 0, len(e.Items))
		for _, it := range e.Items {
			line := fmt.Sprintf("%s %s x%d", rarityIcon(it.Rarity), it.Name, it.Qty)
			if it.ConvertedGold > 0 {
				line += fmt.Sprintf(" (bag full, converted to %d gold)", it.ConvertedGold)
			}
			items = append(items, line)
		}
		lines = append(lines, dto.RewardLine{PlayerID: e.PlayerID, Name: name, Gold: e.Gold, XP: e.XP, Items: items})
	}
	return dto.RewardPayload{
		Type:    "reward",
		Code:    s.Code,
		MobName: mobName,
		Floor:   floorNumber,
		Rewards: lines,
		TopAtk:  topAtk,
		TopDef:  topDef,
	}
}

func rarityIcon(rarity string) string {
	switch rarity {
	case "common":
		return "🟢"
	case "uncommon":
		return "🔵"
	case "rare":
		return "🟣"
	case "epic":
		return "🟡"
	case "legendary":
		return "🟠"
	}
	return "⚪"
}

// buildSummaryPayload 构建结束总结：按累计伤害排序的排行。
func buildSummaryPayload(s *domain.Session, outcome string) dto.SummaryPayload {
	ranking := make([]dto.RankLine, 0, len(s.MemberOrder))
	for _, id := range s.MemberOrder {
		m := s.Members[id]
		if m == nil {
			continue
		}
		ranking = append(ranking, dto.RankLine{Name: m.Name, Dmg: m.DamageDealt, Alive: m.Alive})
	}
	sort.SliceStable(ranking, func(i, j int) bool { return ranking[i].Dmg > ranking[j].Dmg })
	return dto.SummaryPayload{
		Type:    "finished",
		Code:    s.Code,
		Outcome: outcome,
		Ranking: ranking,
	}
}

// topContributor 返回贡献度最高且大于零的成员描述，无人上榜时返回空串。
func topContributor(s *domain.Session, contrib map[uint]int, unit string) string {
	var bestID uint
	best := 0
	for _, id := range s.MemberOrder {
		if v := contrib[id]; v > best {
			best = v
			bestID = id
		}
	}
	if best == 0 {
		return ""
	}
	name := fmt.Sprintf("player %d", bestID)
	if m := s.Members[bestID]; m != nil {
		name = m.Name
	}
	return fmt.Sprintf("%s (%d %s)", name, best, unit)
}
