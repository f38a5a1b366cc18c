package worker

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"story-relay/internal/service"
)

// TurnSweeper 由 service.TurnService 实现
type TurnSweeper interface {
	SweepExpiredTurns(ctx context.Context) (service.SweepResult, error)
}

// TurnExpirySweepHandler 处理周期性的超时回合扫描任务
type TurnExpirySweepHandler struct {
	sweeper TurnSweeper
}

// NewTurnExpirySweepHandler 创建 Handler 实例
func NewTurnExpirySweepHandler(sweeper TurnSweeper) *TurnExpirySweepHandler {
	if sweeper == nil {
		panic("TurnSweeper cannot be nil for TurnExpirySweepHandler")
	}
	return &TurnExpirySweepHandler{sweeper: sweeper}
}

// ProcessTask 实现 asynq.Handler 接口。单个房间的失败已经在 service 层记录，
// 这里只有候选查询失败才返回错误。
func (h *TurnExpirySweepHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	logCtx := logrus.WithField("task_type", t.Type())
	if rw := t.ResultWriter(); rw != nil {
		logCtx = logCtx.WithField("task_id", rw.TaskID())
	}

	result, err := h.sweeper.SweepExpiredTurns(ctx)
	if err != nil {
		logCtx.WithError(err).Error("Turn expiry sweep failed")
		return err
	}

	fields := logrus.Fields{
		"candidates": result.Candidates,
		"advanced":   result.Advanced,
		"skipped":    result.Skipped,
		"failed":     result.Failed,
	}
	switch {
	case result.Failed > 0:
		logCtx.WithFields(fields).Warn("Turn expiry sweep completed with failures")
	case result.Candidates > 0:
		logCtx.WithFields(fields).Info("Turn expiry sweep completed")
	default:
		logCtx.Debug("Turn expiry sweep found no expired turns")
	}
	return nil
}
