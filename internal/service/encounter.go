package service

import (
	"context"
	"math"
	"math/rand"

	"github.com/sirupsen/logrus"

	"dungeon-raid/internal/domain"
	"dungeon-raid/internal/repository"
)

// EncounterService 负责生成一场会话的楼层遭遇列表。
// 纯转换逻辑加一次怪物池查询，不持有任何会话状态。
type EncounterService struct {
	mobRepo repository.MobRepository
}

// NewEncounterService 创建 EncounterService 实例。
func NewEncounterService(mobRepo repository.MobRepository) *EncounterService {
	if mobRepo == nil {
		panic("MobRepository cannot be nil for EncounterService")
	}
	return &EncounterService{mobRepo: mobRepo}
}

// GenerateFloors 为指定区域和队伍规模生成有序楼层列表。
// 目标是 4 层 (前 3 层普通 + 第 4 层 Boss)；某层选不出怪物时跳过该层，
// 因此结果可能短于 4，协调器按实际长度推进。
func (s *EncounterService) GenerateFloors(ctx context.Context, zoneKey string, partySize int) ([]domain.Floor, error) {
	logCtx := logrus.WithFields(logrus.Fields{"zone": zoneKey, "party_size": partySize})

	pool, err := s.mobRepo.DungeonPool(ctx, zoneKey)
	if err != nil {
		logCtx.WithError(err).Error("Failed to load dungeon mob pool")
		return nil, ErrInternalServer
	}
	// 区域没有专属怪物池时回退到全局池
	if len(pool) == 0 {
		pool, err = s.mobRepo.GlobalDungeonPool(ctx)
		if err != nil {
			logCtx.WithError(err).Error("Failed to load global dungeon mob pool")
			return nil, ErrInternalServer
		}
	}

	floors := make([]domain.Floor, 0, FloorCount)
	for number := 1; number <= FloorCount; number++ {
		isBoss := number == FloorCount
		base := pickMob(pool, isBoss)
		if base == nil {
			logCtx.WithField("floor", number).Warn("No candidate mob for floor, skipping")
			continue
		}
		scaling := ScalingForFloor(number)
		floors = append(floors, domain.Floor{
			Number:  number,
			IsBoss:  isBoss,
			Mob:     scaleMob(base, scaling, partySize),
			Scaling: scaling,
		})
	}
	logCtx.WithField("floors", len(floors)).Info("Dungeon floors generated")
	return floors, nil
}

// pickMob 从池中选一只怪物。
// Boss 层优先 Boss 池；普通层优先普通池；各自为空时互为回退。
func pickMob(pool []domain.Mob, preferBoss bool) *domain.Mob {
	if len(pool) == 0 {
		return nil
	}
	var bosses, normals []domain.Mob
	for _, m := range pool {
		if m.IsBoss() {
			bosses = append(bosses, m)
		} else {
			normals = append(normals, m)
		}
	}
	if preferBoss && len(bosses) > 0 {
		return &bosses[rand.Intn(len(bosses))]
	}
	candidates := normals
	if preferBoss || len(normals) == 0 {
		candidates = bosses
	}
	if len(candidates) == 0 {
		return &pool[rand.Intn(len(pool))]
	}
	return &candidates[rand.Intn(len(candidates))]
}

// scaleMob 按楼层系数和队伍规模缩放怪物战斗快照。
// 队伍规模倍率只作用于生命值；生命/攻击四舍五入后下限 1。
func scaleMob(base *domain.Mob, scaling domain.FloorScaling, partySize int) domain.MobCombatant {
	partyMult := PartyHPMultiplier(partySize)
	hp := int(math.Round(float64(base.HP) * scaling.MobHPMult * partyMult))
	if hp < 1 {
		hp = 1
	}
	atk := int(math.Round(float64(base.Atk) * scaling.MobAtkMult))
	if atk < 1 {
		atk = 1
	}
	return domain.MobCombatant{
		Key:    base.Key,
		Name:   base.Name,
		HP:     hp,
		MaxHP:  hp,
		Atk:    atk,
		Def:    base.Def,
		Rarity: base.Rarity,
	}
}
