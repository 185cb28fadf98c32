package service

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"dungeon-raid/internal/domain"
	"dungeon-raid/internal/repository"
)

// RewardService 负责击杀结算：按贡献度拆分经验池、独立掷金币、
// 按分层掉落表掷物品，并把变更持久化到玩家存储。
type RewardService struct {
	playerRepo repository.PlayerRepository
	itemRepo   repository.ItemRepository
	invRepo    repository.InventoryRepository
}

// NewRewardService 创建 RewardService 实例。
func NewRewardService(playerRepo repository.PlayerRepository, itemRepo repository.ItemRepository, invRepo repository.InventoryRepository) *RewardService {
	if playerRepo == nil {
		panic("PlayerRepository cannot be nil for RewardService")
	}
	if itemRepo == nil {
		panic("ItemRepository cannot be nil for RewardService")
	}
	if invRepo == nil {
		panic("InventoryRepository cannot be nil for RewardService")
	}
	return &RewardService{playerRepo: playerRepo, itemRepo: itemRepo, invRepo: invRepo}
}

// 独自存活时的经验惩罚倍率
const soloXPMult = 0.7

// 经验权重：攻击贡献占 7 成，防御贡献占 3 成
const (
	atkWeight = 0.7
	defWeight = 0.3
)

// DistributeFloor 对被击败的楼层执行一次完整结算。
// 调用方必须持有会话锁；持久化写入是尽力而为的，没有跨成员事务。
// 结算完成后两个贡献度累计器清零。
func (s *RewardService) DistributeFloor(ctx context.Context, session *domain.Session, floorIdx int) ([]domain.RewardEntry, error) {
	floor, ok := session.FloorAt(floorIdx)
	if !ok {
		return nil, nil
	}
	def, ok := DungeonDefFor(session.ZoneKey)
	if !ok {
		return nil, ErrNoDungeonHere
	}
	logCtx := logrus.WithFields(logrus.Fields{"session": session.Code, "floor": floor.Number, "boss": floor.IsBoss})

	alive := session.AliveMembers()
	if len(alive) == 0 {
		return nil, nil
	}

	// 1. 计算经验池
	xpIdx := floorIdx
	if xpIdx >= len(def.XP) {
		xpIdx = len(def.XP) - 1
	}
	xpBase := float64(def.XP[xpIdx]) * floor.Scaling.XPMult
	if len(alive) == 1 {
		xpBase *= soloXPMult
	}
	xpPool := int(math.Round(xpBase))

	// 2. 贡献度总和
	var atkSum, defSum int
	for _, id := range alive {
		atkSum += session.ContribAtk[id]
		defSum += session.ContribDef[id]
	}

	partyMult := PartyHPMultiplier(len(alive))
	entries := make([]domain.RewardEntry, 0, len(alive))

	for _, id := range alive {
		player, err := s.playerRepo.FindByID(ctx, id)
		if err != nil {
			logCtx.WithError(err).WithField("player_id", id).Error("Failed to load player for reward distribution")
			continue
		}
		xpBuffPct, dropBuffPct := player.ActiveBuff(time.Now())

		// 3. 经验份额：0.7·攻击占比 + 0.3·防御占比；两项皆零时均分
		var weight float64
		if atkSum+defSum > 0 {
			var atkShare, defShare float64
			if atkSum > 0 {
				atkShare = float64(session.ContribAtk[id]) / float64(atkSum)
			}
			if defSum > 0 {
				defShare = float64(session.ContribDef[id]) / float64(defSum)
			}
			weight = atkWeight*atkShare + defWeight*defShare
		} else {
			weight = 1 / float64(len(alive))
		}
		xpShare := int(math.Floor(float64(xpPool) * weight))
		if xpShare < 1 {
			xpShare = 1
		}
		xpShare = int(math.Round(float64(xpShare) * (1 + float64(xpBuffPct)/100)))

		// 4. 金币独立掷骰
		goldCap := 100
		if floor.IsBoss {
			goldCap = 300
		}
		gold := int(math.Round(float64(randInt(1, goldCap)) * floor.Scaling.GoldMult * partyMult))

		if err := s.playerRepo.AddGoldXP(ctx, id, int64(gold), int64(xpShare)); err != nil {
			logCtx.WithError(err).WithField("player_id", id).Error("Failed to persist gold/xp")
		}

		entry := domain.RewardEntry{PlayerID: id, Gold: gold, XP: xpShare}

		// 5. 掉落
		if floor.IsBoss {
			s.rollBossLoot(ctx, session, floorIdx, def, player, dropBuffPct, &entry)
		} else {
			difficulty := math.Min(3, float64(floorIdx)+1+floor.Scaling.TierBonus)
			if drop := s.maybeDropItem(ctx, session.ZoneKey, difficulty, false, dropBuffPct); drop != nil {
				s.grantLoot(ctx, id, drop, 1, &entry)
			}
		}

		entries = append(entries, entry)
		session.RewardLog[id] = append(session.RewardLog[id], entry)
	}

	// 6. 下一层从零开始累计贡献
	session.ContribAtk = make(map[uint]int)
	session.ContribDef = make(map[uint]int)

	logCtx.WithField("xp_pool", xpPool).Info("Floor rewards distributed")
	return entries, nil
}

// rollBossLoot 执行 Boss 层的保底消耗品、多次独立掉落和骨钥匙判定。
func (s *RewardService) rollBossLoot(ctx context.Context, session *domain.Session, floorIdx int, def DungeonDef, player *domain.Player, dropBuffPct int, entry *domain.RewardEntry) {
	// 保底 1-5 瓶生命药水
	s.grantByKey(ctx, player.ID, "health_potion", randInt(1, 5), entry)
	// 50% 概率 1-2 瓶能量药水
	if rand.Float64() < 0.5 {
		s.grantByKey(ctx, player.ID, "energy_potion", randInt(1, 2), entry)
	}

	// 1-4 次独立掉落
	difficulty := math.Min(4, float64(floorIdx)+2)
	rolls := randInt(1, 4)
	for i := 0; i < rolls; i++ {
		if drop := s.maybeDropItem(ctx, session.ZoneKey, difficulty, true, dropBuffPct); drop != nil {
			s.grantLoot(ctx, player.ID, drop, 1, entry)
		}
	}

	// 骨钥匙判定
	if rand.Float64() < def.BoneChance {
		s.grantByKey(ctx, player.ID, "bone_key", 1, entry)
	}
}

// maybeDropItem 按分层掉落表掷一次物品。
// 每件候选独立判定：概率 = min(0.6, 基础掉率 × 难度加成 × Boss 稀有加成 × 掉落增益)，
// 命中集合非空时等概率取一件；Boss 层在全部落空时回退到稀有池。
func (s *RewardService) maybeDropItem(ctx context.Context, zoneKey string, difficulty float64, isBoss bool, dropBuffPct int) *domain.Item {
	candidates, err := s.itemRepo.DropCandidates(ctx, zoneKey)
	if err != nil {
		logrus.WithError(err).WithField("zone", zoneKey).Error("Failed to load drop candidates")
		return nil
	}
	if len(candidates) == 0 {
		return nil
	}

	difficultyBonus := 1 + math.Max(0, difficulty-1)*0.35
	buffMult := 1 + float64(dropBuffPct)/100

	var hits []domain.Item
	for _, item := range candidates {
		if _, shopOnly := shopOnlyKeys[item.Key]; shopOnly {
			continue
		}
		bonusFactor := 1.0
		if isBoss && isRarePlus(item.Rarity) {
			bonusFactor = 4
		}
		chance := math.Min(0.6, item.DropRate*difficultyBonus*bonusFactor*buffMult)
		if rand.Float64() < chance {
			hits = append(hits, item)
		}
	}
	if len(hits) > 0 {
		return &hits[rand.Intn(len(hits))]
	}

	if isBoss {
		var rarePool []domain.Item
		for _, item := range candidates {
			if _, shopOnly := shopOnlyKeys[item.Key]; shopOnly {
				continue
			}
			if isUncommonPlus(item.Rarity) {
				rarePool = append(rarePool, item)
			}
		}
		if len(rarePool) > 0 {
			return &rarePool[rand.Intn(len(rarePool))]
		}
	}
	return nil
}

func isRarePlus(rarity string) bool {
	switch rarity {
	case "rare", "epic", "legendary":
		return true
	}
	return false
}

func isUncommonPlus(rarity string) bool {
	return rarity == "uncommon" || isRarePlus(rarity)
}

// grantByKey 按物品 key 发放保底掉落。
func (s *RewardService) grantByKey(ctx context.Context, playerID uint, itemKey string, qty int, entry *domain.RewardEntry) {
	item, err := s.itemRepo.FindByKey(ctx, itemKey)
	if err != nil {
		if !errors.Is(err, repository.ErrItemNotFound) {
			logrus.WithError(err).WithField("item_key", itemKey).Error("Failed to look up guaranteed drop")
		}
		return
	}
	s.grantLoot(ctx, playerID, item, qty, entry)
}

// grantLoot 把一件掉落放入玩家背包并记入奖励条目。
// 背包溢出时按目录价值折算成金币，折算会被记录，掉落永不悄悄丢失。
func (s *RewardService) grantLoot(ctx context.Context, playerID uint, item *domain.Item, qty int, entry *domain.RewardEntry) {
	invItem := &domain.InventoryItem{
		ItemKey:    item.Key,
		Slot:       item.Slot,
		Qty:        qty,
		RolledAtk:  item.BonusAtk,
		RolledDef:  item.BonusDef,
		RolledHP:   item.BonusHP,
		RolledCrit: item.BonusCrit,
	}
	err := s.invRepo.AwardItem(ctx, playerID, invItem)
	if err == nil {
		entry.Items = append(entry.Items, domain.LootItem{Key: item.Key, Name: item.Name, Rarity: item.Rarity, Qty: qty})
		return
	}
	if errors.Is(err, repository.ErrInventoryFull) {
		converted := item.Value * qty
		if converted < 1 {
			converted = 1
		}
		if perr := s.playerRepo.AddGoldXP(ctx, playerID, int64(converted), 0); perr != nil {
			logrus.WithError(perr).WithField("player_id", playerID).Error("Failed to persist overflow gold conversion")
		}
		entry.Gold += converted
		entry.Items = append(entry.Items, domain.LootItem{Key: item.Key, Name: item.Name, Rarity: item.Rarity, Qty: qty, ConvertedGold: converted})
		logrus.WithFields(logrus.Fields{"player_id": playerID, "item_key": item.Key, "gold": converted}).
			Info("Inventory full, loot converted to gold")
		return
	}
	logrus.WithError(err).WithFields(logrus.Fields{"player_id": playerID, "item_key": item.Key}).
		Error("Failed to award loot item")
}
