package service

import "math/rand"

// DamageRoller 是共享的伤害/暴击原语。
// 地下城引擎、竞技场和单人狩猎共用同一套公式；
// 接口形式便于测试注入固定值。
type DamageRoller interface {
	// Damage 掷一次伤害：随机基础值 + max(1, atk - floor(def*0.6))，
	// 暴击时 ×1.5 向下取整，总值下限 1。
	Damage(atk, def int, isCrit bool) int

	// Crit 按暴击率百分比独立掷一次暴击判定。
	Crit(chancePct float64) bool
}

// StdDamageRoller 是基于 math/rand 的默认实现。
type StdDamageRoller struct{}

// NewStdDamageRoller 创建默认伤害掷骰器。
func NewStdDamageRoller() *StdDamageRoller {
	return &StdDamageRoller{}
}

func (r *StdDamageRoller) Damage(atk, def int, isCrit bool) int {
	baseRand := rand.Intn(5) + 2 // 2..6
	net := atk - int(float64(def)*0.6)
	if net < 1 {
		net = 1
	}
	total := baseRand + net
	if isCrit {
		total = total * 3 / 2
	}
	if total < 1 {
		total = 1
	}
	return total
}

func (r *StdDamageRoller) Crit(chancePct float64) bool {
	return rand.Float64()*100 < chancePct
}

// randInt 返回 [min, max] 内的均匀随机整数。
func randInt(min, max int) int {
	if max <= min {
		return min
	}
	return rand.Intn(max-min+1) + min
}
