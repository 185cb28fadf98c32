// Package domain 定义了应用程序中使用的数据结构 (数据库模型与会话内存模型)。
package domain

import "time"

// PlayerState 表示玩家当前所处的游戏状态机位置。
type PlayerState string

const (
	// PlayerStateMenu 玩家在主菜单 (空闲)
	PlayerStateMenu PlayerState = "menu"
	// PlayerStateDungeon 玩家正在参与一场地下城会话
	PlayerStateDungeon PlayerState = "dungeon"
	// PlayerStateHunting 玩家在单人狩猎循环中 (引擎外部，仅作状态值保留)
	PlayerStateHunting PlayerState = "hunting"
)

// Player 表示一个玩家账号及其持久化的游戏数据。
// 引擎只通过 repository 接口读写这些字段，不直接拥有该表。
type Player struct {
	ID       uint   `gorm:"primaryKey"`                                          // 玩家唯一标识符 (主键)
	Username string `gorm:"type:varchar(191);uniqueIndex:idx_player_username;not null"` // 登录用户名，必须唯一
	Password string `gorm:"type:text;not null"`                                  // 存储的是 bcrypt 哈希后的密码
	Name     string `gorm:"type:varchar(64);not null"`                           // 游戏内显示名称

	HP      int    `gorm:"not null;default:100"` // 当前生命值
	Gold    int64  `gorm:"not null;default:0"`   // 金币
	XPTotal int64  `gorm:"not null;default:0"`   // 累计经验值
	Class   string `gorm:"type:varchar(32)"`     // 职业 (决定基础属性)

	// 职业基础属性 (创建角色时按职业配置写入)
	HPMax    int     `gorm:"not null;default:100"` // 生命值上限基础值
	BaseAtk  int     `gorm:"not null;default:5"`   // 基础攻击力
	BaseDef  int     `gorm:"not null;default:3"`   // 基础防御力
	BaseCrit float64 `gorm:"not null;default:5"`   // 基础暴击率百分比

	State       PlayerState `gorm:"type:varchar(16);not null;default:'menu';index"` // 当前状态机位置
	CurrentZone string      `gorm:"type:varchar(32);not null;default:'plains'"`     // 当前所在的世界区域 key

	// 临时增益 (商店药剂等)，过期时间之后视为无效
	TempXPBuffPct   int        `gorm:"not null;default:0"` // XP 增益百分比
	TempDropBuffPct int        `gorm:"not null;default:0"` // 掉落率增益百分比
	TempBuffExpires *time.Time // 增益过期时间，nil 表示没有增益

	CreatedAt time.Time `gorm:"autoCreateTime"` // 记录创建时间 (GORM 自动填充)
	UpdatedAt time.Time `gorm:"autoUpdateTime"` // 记录最后更新时间 (GORM 自动填充)
}

// PlayerStats 是玩家的聚合战斗属性 (基础值 + 已装备物品加成)。
// 由 PlayerRepository.Stats 计算得出，不单独持久化。
type PlayerStats struct {
	TotalHP   int     // 生命值上限
	TotalAtk  int     // 攻击力
	TotalDef  int     // 防御力
	TotalCrit float64 // 暴击率百分比 (0-100)
	Level     int     // 由累计经验推导出的等级
}

// ActiveBuff 返回玩家当前生效的临时增益百分比。
// 过期或不存在时返回零值。
func (p *Player) ActiveBuff(now time.Time) (xpPct, dropPct int) {
	if p.TempBuffExpires == nil || !p.TempBuffExpires.After(now) {
		return 0, 0
	}
	return p.TempXPBuffPct, p.TempDropBuffPct
}

// LevelStep 表示等级曲线表中的一行：从该等级升到下一级所需的经验。
type LevelStep struct {
	Level    int `gorm:"primaryKey"` // 等级
	XPToNext int `gorm:"not null"`   // 升到下一级所需经验
}

// LevelForXP 根据累计经验沿等级曲线推导当前等级。
// 曲线按等级升序给出；经验超出曲线末端时停在最高等级。
func LevelForXP(xpTotal int64, curve []LevelStep) int {
	level := 1
	var accumulated int64
	for _, step := range curve {
		if xpTotal >= accumulated+int64(step.XPToNext) {
			accumulated += int64(step.XPToNext)
			level++
			continue
		}
		break
	}
	return level
}
