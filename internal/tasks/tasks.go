package tasks

import (
	"time"

	"github.com/hibiken/asynq"
)

// 任务类型常量
const (
	TypeTurnExpirySweep = "turn:sweep_expired" // 扫描并自动跳过超时回合
)

// QueueSweeper 是回合扫描任务使用的队列
const QueueSweeper = "critical"

// NewTurnExpirySweepTask 创建一次扫描任务。扫描任务没有 payload，
// 不重试：下一个周期就是重试。
func NewTurnExpirySweepTask(timeout time.Duration) *asynq.Task {
	opts := []asynq.Option{
		asynq.Queue(QueueSweeper),
		asynq.MaxRetry(0),
	}
	if timeout > 0 {
		opts = append(opts, asynq.Timeout(timeout))
	}
	return asynq.NewTask(TypeTurnExpirySweep, nil, opts...)
}
