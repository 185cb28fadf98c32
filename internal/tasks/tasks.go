package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// 定义任务类型常量
const (
	TypeSessionSweep = "session:sweep" // 闲置会话回收任务类型
)

// SessionSweepPayload 定义了闲置会话回收任务的数据结构
type SessionSweepPayload struct {
	// 大厅会话的闲置阈值 (分钟)，超过即回收
	IdleThresholdMinutes int `json:"idle_threshold_minutes"`
}

// NewSessionSweepTask 创建一个新的闲置会话回收任务
func NewSessionSweepTask(idleThresholdMinutes int) (*asynq.Task, error) {
	payload := SessionSweepPayload{IdleThresholdMinutes: idleThresholdMinutes}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeSessionSweep, payloadBytes), nil
}
