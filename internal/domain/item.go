package domain

import "time"

// 物品槽位常量
const (
	SlotConsumable = "consumable" // 消耗品 (可堆叠)
	SlotWeapon     = "weapon"
	SlotShield     = "shield"
	SlotHead       = "head"
	SlotBody       = "body"
)

// Item 表示物品目录中的一条记录 (静态配置数据)。
type Item struct {
	ID      uint   `gorm:"primaryKey"`                                         // 物品目录主键
	Key     string `gorm:"type:varchar(64);uniqueIndex:idx_item_key;not null"` // 物品 key
	Name    string `gorm:"type:varchar(64);not null"`                         // 显示名称
	Slot    string `gorm:"type:varchar(16);not null"`                         // 槽位类型 (consumable/weapon/shield/...)
	Rarity  string `gorm:"type:varchar(16);not null;default:'common'"`        // 稀有度 (common..legendary)
	ZoneKey string `gorm:"type:varchar(32);index"`                            // 限定掉落区域，空表示全区域可掉

	DropRate float64 `gorm:"not null;default:0.01"` // 基础掉落概率 (0-1)
	Value    int     `gorm:"not null;default:1"`    // 金币价值 (背包溢出时按此折算)

	// 消耗品效果字段
	HealAmount  int `gorm:"not null;default:0"` // 使用后恢复的生命值
	XPBuffPct   int `gorm:"not null;default:0"` // 使用后获得的 XP 增益百分比
	DropBuffPct int `gorm:"not null;default:0"` // 使用后获得的掉落增益百分比
	BuffMinutes int `gorm:"not null;default:0"` // 增益持续分钟数

	// 装备属性字段 (随机浮动的基准值)
	BonusAtk  int     `gorm:"not null;default:0"`
	BonusDef  int     `gorm:"not null;default:0"`
	BonusHP   int     `gorm:"not null;default:0"`
	BonusCrit float64 `gorm:"not null;default:0"`
}

// InventoryItem 表示玩家背包中的一行。
// 消耗品按 (player, item_key) 堆叠；装备永远是独立行。
type InventoryItem struct {
	ID       uint   `gorm:"primaryKey"`
	PlayerID uint   `gorm:"index:idx_inv_player;not null"`  // 所属玩家 ID
	ItemKey  string `gorm:"type:varchar(64);index;not null"` // 物品 key (关联 Item.Key)
	Slot     string `gorm:"type:varchar(16);not null"`       // 冗余的槽位类型，便于查询
	Qty      int    `gorm:"not null;default:1"`              // 数量 (仅消耗品 > 1)
	Equipped bool   `gorm:"not null;default:false;index"`    // 是否已装备 (已装备不占背包槽位)

	// 获得时掷出的实际属性
	RolledAtk  int     `gorm:"not null;default:0"`
	RolledDef  int     `gorm:"not null;default:0"`
	RolledHP   int     `gorm:"not null;default:0"`
	RolledCrit float64 `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// InventoryCapacity 背包槽位上限 (已装备的物品不计入)。
const InventoryCapacity = 20
