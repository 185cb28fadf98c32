package service

import "dungeon-raid/internal/domain"

// DungeonDef 是一个区域对应的地下城静态配置。
type DungeonDef struct {
	Name       string // 地下城名称
	KeyItem    string // 开启所需的钥匙物品 key
	XP         [4]int // 每层的基础经验池
	BoneChance float64 // Boss 层掉落骨钥匙的概率
	MinLevel   int    // 创建所需的最低等级 (0 表示无要求)
}

// 区域 key -> 地下城配置。
// 特殊地下城 (墓地) 需要骨钥匙开启并有等级门槛。
var dungeonDefs = map[string]DungeonDef{
	"plains": {Name: "平原地下城", KeyItem: "dungeon_key", XP: [4]int{400, 500, 600, 900}, BoneChance: 0.01},
	"forest": {Name: "森林地下城", KeyItem: "dungeon_key", XP: [4]int{600, 800, 1000, 1400}, BoneChance: 0.01},
	"swamp":  {Name: "沼泽地下城", KeyItem: "dungeon_key", XP: [4]int{900, 1100, 1300, 2200}, BoneChance: 0.01},
	"grave":  {Name: "特殊地下城", KeyItem: "bone_key", XP: [4]int{1200, 1600, 2000, 3200}, BoneChance: 0.02, MinLevel: 22},
}

// DungeonDefFor 返回区域对应的地下城配置。
func DungeonDefFor(zoneKey string) (DungeonDef, bool) {
	def, ok := dungeonDefs[zoneKey]
	return def, ok
}

// 楼层缩放系数表 (下标 = 楼层序号 1..4)。
var floorScaling = map[int]domain.FloorScaling{
	1: {XPMult: 1.0, GoldMult: 1.0, TierBonus: 0, MobHPMult: 1.0, MobAtkMult: 1.0},
	2: {XPMult: 1.5, GoldMult: 1.5, TierBonus: 0.5, MobHPMult: 1.3, MobAtkMult: 1.2},
	3: {XPMult: 2.0, GoldMult: 2.0, TierBonus: 1, MobHPMult: 1.6, MobAtkMult: 1.4},
	4: {XPMult: 3.0, GoldMult: 3.0, TierBonus: 1, MobHPMult: 2.5, MobAtkMult: 1.8},
}

// ScalingForFloor 返回楼层的缩放系数，越界时退回第 1 层。
func ScalingForFloor(floor int) domain.FloorScaling {
	if s, ok := floorScaling[floor]; ok {
		return s
	}
	return floorScaling[1]
}

// FloorCount 每场地下城的楼层数 (3 个普通层 + 1 个 Boss 层)。
const FloorCount = 4

// PartyHPMultiplier 返回作用于怪物生命的队伍规模倍率。
func PartyHPMultiplier(partySize int) float64 {
	if partySize < 1 {
		partySize = 1
	}
	return 1 + 0.4*float64(partySize-1)
}

// ClassConfig 是职业基础属性配置。
type ClassConfig struct {
	HPMax    int
	BaseAtk  int
	BaseDef  int
	BaseCrit float64
}

// 职业 key -> 基础属性。
var classConfigs = map[string]ClassConfig{
	"warrior": {HPMax: 130, BaseAtk: 6, BaseDef: 4, BaseCrit: 4},
	"archer":  {HPMax: 110, BaseAtk: 7, BaseDef: 2, BaseCrit: 10},
	"mage":    {HPMax: 105, BaseAtk: 8, BaseDef: 2, BaseCrit: 9},
}

// DefaultClass 注册时未指定职业时的默认职业。
const DefaultClass = "warrior"

// ClassConfigFor 返回职业配置，未知职业时退回默认职业。
func ClassConfigFor(class string) ClassConfig {
	if cfg, ok := classConfigs[class]; ok {
		return cfg
	}
	return classConfigs[DefaultClass]
}

// 只在商店出售、永不掉落的物品 key。
var shopOnlyKeys = map[string]struct{}{
	"elixir_xp":          {},
	"elixir_drop":        {},
	"energy_potion_pack": {},
}
