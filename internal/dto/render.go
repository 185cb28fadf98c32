package dto

// IncomingAction 表示从客户端 WebSocket 消息中接收的一次回合行动提交

type IncomingAction struct {
	Type    string `json:"type" binding:"required,oneof=attack defend use_item wait"`
	TurnSeq uint64 `json:"turnSeq"`
	ItemKey string `json:"itemKey,omitempty"`
}

// ActionButton 表示渲染载荷中一个可点击的行动按钮

type ActionButton struct {
	Label    string `json:"label"`
	Callback string `json:"callback"` // 前端回调数据，如 "act:CODE:3:attack"
}

// MemberLine 表示渲染载荷中一行成员状态

type MemberLine struct {
	PlayerID   uint   `json:"player_id"`
	Name       string `json:"name"`
	HP         int    `json:"hp"`
	MaxHP      int    `json:"max_hp"`
	Alive      bool   `json:"alive"`
	ActionIcon string `json:"action_icon"` // 本回合已提交行动的图标，未提交为 ⌛
	Damage     int    `json:"damage"`      // 累计伤害
	Ready      bool   `json:"ready"`      // 大厅阶段的准备标记
	Owner      bool   `json:"owner"`
}

// RenderPayload 是一次会话状态渲染。
// Revision 单调递增，前端据此对同一会话的消息做原地编辑。

type RenderPayload struct {
	Type         string         `json:"type"` // "lobby" | "combat" | "summary"
	Code         string         `json:"code"`
	Revision     uint64         `json:"revision"`
	State        string         `json:"state"`
	Caption      []string       `json:"caption"` // 自由文本行
	Members      []MemberLine   `json:"members"`
	Buttons      []ActionButton `json:"buttons"`
	TurnSeq      uint64         `json:"turn_seq,omitempty"`
	DeadlineUnix int64          `json:"deadline_unix,omitempty"`
}

// RewardLine 表示一名成员在击杀结算中的所得

type RewardLine struct {
	PlayerID uint     `json:"player_id"`
	Name     string   `json:"name"`
	Gold     int      `json:"gold"`
	XP       int      `json:"xp"`
	Items    []string `json:"items"` // 已格式化的物品行 (含溢出折算说明)
}

// RewardPayload 是一次击杀结算广播

type RewardPayload struct {
	Type    string       `json:"type"` // "reward"
	Code    string       `json:"code"`
	MobName string       `json:"mob_name"`
	Floor   int          `json:"floor"`
	Rewards []RewardLine `json:"rewards"`
	TopAtk  string       `json:"top_atk,omitempty"`
	TopDef  string       `json:"top_def,omitempty"`
}

// RankLine 表示结束总结中的一行伤害排行

type RankLine struct {
	Name  string `json:"name"`
	Dmg   int    `json:"dmg"`
	Alive bool   `json:"alive"`
}

// SummaryPayload 是会话结束广播

type SummaryPayload struct {
	Type    string     `json:"type"` // "finished"
	Code    string     `json:"code"`
	Outcome string     `json:"outcome"` // "complete" | "wipe" | "abandoned"
	Ranking []RankLine `json:"ranking"`
}

// LobbySummary 是会话浏览列表中的一行

type LobbySummary struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Members     int    `json:"members"`
	MaxMembers  int    `json:"max_members"`
	HasPassword bool   `json:"has_password"`
}

// ErrorDTO 表示发送给客户端的错误消息数据结构

type ErrorDTO struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
