package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"dungeon-raid/internal/service"
	"dungeon-raid/internal/tasks"
)

// 未配置阈值时的默认大厅闲置上限 (分钟)
const defaultIdleThresholdMinutes = 30

// SessionSweepHandler 处理周期性的闲置会话回收任务
type SessionSweepHandler struct {
	engine *service.DungeonService
}

// NewSessionSweepHandler 创建 Handler 实例
func NewSessionSweepHandler(engine *service.DungeonService) *SessionSweepHandler {
	if engine == nil {
		panic("DungeonService cannot be nil for SessionSweepHandler")
	}
	return &SessionSweepHandler{engine: engine}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *SessionSweepHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	taskID := ""
	if rw := t.ResultWriter(); rw != nil {
		taskID = rw.TaskID()
	}
	logCtx := logrus.WithFields(logrus.Fields{
		"task_id":   taskID,
		"task_type": t.Type(),
	})
	logCtx.Info("Processing session sweep task...")

	var payload tasks.SessionSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logCtx.WithError(err).Error("Failed to unmarshal task payload")
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	threshold := payload.IdleThresholdMinutes
	if threshold <= 0 {
		threshold = defaultIdleThresholdMinutes
	}

	swept := h.engine.SweepIdle(ctx, time.Duration(threshold)*time.Minute)
	logCtx.WithField("swept", swept).Info("Session sweep task processed successfully")
	return nil
}
