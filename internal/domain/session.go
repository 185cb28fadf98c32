package domain

import (
	"sync"
	"time"
)

// SessionState 表示一场地下城会话的生命周期状态。
type SessionState string

const (
	// SessionStateLobby 组队大厅，接受加入/准备切换
	SessionStateLobby SessionState = "lobby"
	// SessionStateRunning 战斗进行中，回合状态机运转
	SessionStateRunning SessionState = "running"
	// SessionStateFinished 终态，会话即将从注册表移除
	SessionStateFinished SessionState = "finished"
)

// ActionKind 表示成员在一个回合中选择的行动种类。
// 这是一个带标签的变体类型：每种 Kind 只读取自己的附加字段，
// 解析器对 Kind 做穷尽匹配。
type ActionKind string

const (
	ActionAttack  ActionKind = "attack"
	ActionDefend  ActionKind = "defend"
	ActionUseItem ActionKind = "use_item"
	ActionWait    ActionKind = "wait"
)

// 行动的展示图标
const (
	IconAttack  = "⚔️"
	IconDefend  = "🛡️"
	IconUseItem = "🧪"
	IconWait    = "⌛"
)

// Action 表示一名成员针对当前回合提交的一次行动。
type Action struct {
	Kind ActionKind // 行动种类
	Icon string     // 展示图标

	DefendBonus int    // 仅 ActionDefend: 声明的防御加成
	ItemKey     string // 仅 ActionUseItem: 使用的消耗品 key

	Auto bool // 是否由回合超时自动补齐
}

// Icon 返回行动种类对应的展示图标。
func (k ActionKind) DefaultIcon() string {
	switch k {
	case ActionAttack:
		return IconAttack
	case ActionDefend:
		return IconDefend
	case ActionUseItem:
		return IconUseItem
	default:
		return IconWait
	}
}

// Member 是会话内的每名玩家子记录。
// HP/MaxHP 是进入会话时的快照，战斗过程中由引擎维护。
type Member struct {
	PlayerID uint   // 玩家 ID (外部身份引用)
	Name     string // 显示名称

	Ready bool // 大厅内的准备标记

	HP    int  // 当前生命值
	MaxHP int  // 生命值上限快照
	Alive bool // 存活标记

	DamageDealt int // 本次会话累计造成的伤害 (结算排行用)
}

// MobCombatant 是一个楼层遭遇中 NPC 的战斗快照 (已按楼层缩放)。
type MobCombatant struct {
	Key    string
	Name   string
	HP     int
	MaxHP  int
	Atk    int
	Def    int
	Rarity string
}

// FloorScaling 是按楼层序号索引的缩放系数表中的一行。
type FloorScaling struct {
	XPMult     float64 // 经验倍率
	GoldMult   float64 // 金币倍率
	MobHPMult  float64 // 怪物生命倍率
	MobAtkMult float64 // 怪物攻击倍率
	TierBonus  float64 // 掉落难度加成 (可以是半档)
}

// Floor 表示会话中的一个楼层遭遇。
type Floor struct {
	Number  int          // 楼层序号 (1..4，最后一层为 Boss)
	IsBoss  bool         // 是否 Boss 层
	Mob     MobCombatant // NPC 战斗快照
	Scaling FloorScaling // 本层缩放系数
}

// LootItem 是一次掉落结果。
// ConvertedGold > 0 表示背包已满，该掉落被折算成了金币。
type LootItem struct {
	Key           string `json:"key"`
	Name          string `json:"name"`
	Rarity        string `json:"rarity"`
	Qty           int    `json:"qty"`
	ConvertedGold int    `json:"converted_gold,omitempty"`
}

// RewardEntry 记录一名成员在一次击杀中获得的奖励。
// 仅在会话生命周期内保留，用于结算汇总。
type RewardEntry struct {
	PlayerID uint       `json:"player_id"`
	Gold     int        `json:"gold"`
	XP       int        `json:"xp"`
	Items    []LootItem `json:"items"`
}

// Session 表示一场地下城会话：从组队大厅到结算的全部内存状态。
// 会话独占拥有 Floors、Members 与回合行动表；玩家身份与持久化属性
// 存在外部玩家存储中，这里只保存引用和快照。
//
// 并发约定：除构造之外，所有字段读写都必须在持有 mu 的情况下进行。
// 回合截止定时器回调与行动提交是仅有的两个事件源，二者都先取锁、
// 再校验回合序号与 Resolving 标志，保证每个回合至多结算一次。
type Session struct {
	mu sync.Mutex

	Code     string // 可分享的短会话码
	Name     string // 地下城名称
	ZoneKey  string // 所在区域 key
	Password string // 可选的 4 位数字口令，空表示公开

	OwnerID     uint             // 房主玩家 ID
	MemberOrder []uint           // 成员 ID，按加入顺序 (同时是展示顺序)，上限 5
	Members     map[uint]*Member // 成员子记录

	State        SessionState
	Floors       []Floor // 有序楼层列表 (可能短于 4，见 FloorAt)
	CurrentFloor int     // 当前楼层下标

	TurnSeq   uint64          // 单调递增的回合序号
	Actions   map[uint]Action // 当前回合已提交的行动 (member -> action)
	Resolving bool            // 结算进行中标志 (不可重入保证)
	Deadline  time.Time       // 当前回合的截止时间

	// 每层累计的贡献度，奖励分配后清零
	ContribAtk map[uint]int // 攻击贡献 (造成的伤害)
	ContribDef map[uint]int // 防御贡献 (实际减免的伤害)

	RewardLog  map[uint][]RewardEntry // 成员 -> 每次击杀的奖励记录
	LastEvents []string               // 上一回合的结算事件行 (展示用)

	Revision uint64 // 渲染版本号，前端据此原地编辑消息

	CreatedAt  time.Time
	LastActive time.Time

	turnTimer *time.Timer // 当前回合的截止定时器
}

// MaxPartySize 队伍人数上限。
const MaxPartySize = 5

// NewSession 创建一个处于大厅状态的空会话。
func NewSession(code, name, zoneKey, password string, ownerID uint) *Session {
	now := time.Now()
	return &Session{
		Code:        code,
		Name:        name,
		ZoneKey:     zoneKey,
		Password:    password,
		OwnerID:     ownerID,
		MemberOrder: make([]uint, 0, MaxPartySize),
		Members:     make(map[uint]*Member),
		State:       SessionStateLobby,
		Actions:     make(map[uint]Action),
		ContribAtk:  make(map[uint]int),
		ContribDef:  make(map[uint]int),
		RewardLog:   make(map[uint][]RewardEntry),
		CreatedAt:   now,
		LastActive:  now,
	}
}

// Lock 获取会话互斥锁。
func (s *Session) Lock() { s.mu.Lock() }

// Unlock 释放会话互斥锁。
func (s *Session) Unlock() { s.mu.Unlock() }

// AddMember 按加入顺序添加一名成员。调用方需持有锁并自行校验容量。
func (s *Session) AddMember(m *Member) {
	s.MemberOrder = append(s.MemberOrder, m.PlayerID)
	s.Members[m.PlayerID] = m
}

// RemoveMember 移除一名成员并保持加入顺序。调用方需持有锁。
func (s *Session) RemoveMember(playerID uint) {
	delete(s.Members, playerID)
	delete(s.Actions, playerID)
	for i, id := range s.MemberOrder {
		if id == playerID {
			s.MemberOrder = append(s.MemberOrder[:i], s.MemberOrder[i+1:]...)
			break
		}
	}
}

// IsFull 判断队伍是否已满。调用方需持有锁。
func (s *Session) IsFull() bool {
	return len(s.MemberOrder) >= MaxPartySize
}

// AliveMembers 返回按加入顺序排列的存活成员 ID。调用方需持有锁。
func (s *Session) AliveMembers() []uint {
	alive := make([]uint, 0, len(s.MemberOrder))
	for _, id := range s.MemberOrder {
		if m := s.Members[id]; m != nil && m.Alive {
			alive = append(alive, id)
		}
	}
	return alive
}

// AliveCount 返回存活成员数量。调用方需持有锁。
func (s *Session) AliveCount() int {
	return len(s.AliveMembers())
}

// FloorAt 是带边界检查的楼层访问器。
// 楼层列表短于预期是一个已定义的退化情形，而不是越界故障。
func (s *Session) FloorAt(idx int) (*Floor, bool) {
	if idx < 0 || idx >= len(s.Floors) {
		return nil, false
	}
	return &s.Floors[idx], true
}

// CurrentFloorRef 返回当前楼层，越界时返回 (nil, false)。调用方需持有锁。
func (s *Session) CurrentFloorRef() (*Floor, bool) {
	return s.FloorAt(s.CurrentFloor)
}

// SetTurnTimer 替换当前回合定时器，旧定时器先停止。调用方需持有锁。
func (s *Session) SetTurnTimer(t *time.Timer) {
	s.StopTurnTimer()
	s.turnTimer = t
}

// StopTurnTimer 停止并丢弃当前回合定时器 (如果有)。调用方需持有锁。
// 所有提前结束回合或销毁会话的路径都必须经过这里，
// 避免过期定时器对着已经前进或销毁的会话触发。
func (s *Session) StopTurnTimer() {
	if s.turnTimer != nil {
		s.turnTimer.Stop()
		s.turnTimer = nil
	}
}

// Touch 更新最后活跃时间。调用方需持有锁。
func (s *Session) Touch() {
	s.LastActive = time.Now()
}

// NextRevision 递增并返回渲染版本号。调用方需持有锁。
func (s *Session) NextRevision() uint64 {
	s.Revision++
	return s.Revision
}
