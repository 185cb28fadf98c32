package domain

import "strings"

// Mob 表示一种怪物的目录记录 (按区域配置)。
type Mob struct {
	ID      uint   `gorm:"primaryKey"`                                    // 怪物目录主键
	Key     string `gorm:"type:varchar(64);uniqueIndex:idx_mob_key;not null"` // 怪物 key
	ZoneKey string `gorm:"type:varchar(32);index;not null"`               // 所属区域 key
	Name    string `gorm:"type:varchar(64);not null"`                    // 显示名称

	HP  int `gorm:"not null"` // 基础生命值
	Atk int `gorm:"not null"` // 基础攻击力
	Def int `gorm:"not null"` // 基础防御力

	Rarity      string `gorm:"type:varchar(32);not null;default:'common'"` // 稀有度，包含 "boss" 的进入 Boss 池
	DungeonOnly bool   `gorm:"not null;default:false;index"`               // 是否仅出现在地下城 (替代旧的 key 前缀约定)

	XPGain   int `gorm:"not null;default:0"` // 击杀基础经验 (单人狩猎用，地下城经验走楼层表)
	GoldGain int `gorm:"not null;default:0"` // 击杀基础金币
}

// IsBoss 判断该怪物是否属于 Boss 池。
func (m *Mob) IsBoss() bool {
	return strings.Contains(m.Rarity, "boss")
}
