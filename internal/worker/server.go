package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"story-relay/internal/tasks"
)

// WorkerServer 封装了 Asynq Worker Server 和回合扫描调度器的启动与关闭
type WorkerServer struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	sweeper   TurnSweeper
	interval  time.Duration
	log       *logrus.Entry
}

// NewWorkerServer 创建 WorkerServer。sweepInterval 是扫描周期，同时作为单次任务的超时。
func NewWorkerServer(redisOpt asynq.RedisClientOpt, sweeper TurnSweeper, sweepInterval time.Duration, logger *logrus.Logger) *WorkerServer {
	if sweeper == nil {
		panic("TurnSweeper cannot be nil for WorkerServer")
	}
	if sweepInterval <= 0 {
		panic("sweep interval must be positive for WorkerServer")
	}
	logEntry := logger.WithField("component", "worker_server")

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 4,
			Queues: map[string]int{
				tasks.QueueSweeper: 6,
				"default":          3,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				taskID := ""
				if rw := task.ResultWriter(); rw != nil {
					taskID = rw.TaskID()
				}
				retryCount, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logEntry.WithFields(logrus.Fields{
					"task_id":   taskID,
					"task_type": task.Type(),
					"retries":   retryCount,
					"max_retry": maxRetry,
				}).Errorf("Task failed: %v", err)
			}),
		},
	)

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Location: time.UTC,
		EnqueueErrorHandler: func(task *asynq.Task, _ []asynq.Option, err error) {
			logEntry.WithError(err).WithField("task_type", task.Type()).Warn("Failed to enqueue scheduled task")
		},
	})

	return &WorkerServer{
		server:    server,
		scheduler: scheduler,
		sweeper:   sweeper,
		interval:  sweepInterval,
		log:       logEntry,
	}
}

// SweepSchedule 返回扫描任务的调度表达式
func SweepSchedule(interval time.Duration) string {
	return fmt.Sprintf("@every %s", interval)
}

// Start 注册扫描周期任务并运行调度器与 Worker。
// 它会阻塞，应该在一个单独的 goroutine 中调用
func (ws *WorkerServer) Start() error {
	schedule := SweepSchedule(ws.interval)
	entryID, err := ws.scheduler.Register(schedule, tasks.NewTurnExpirySweepTask(ws.interval))
	if err != nil {
		return fmt.Errorf("register turn sweep schedule: %w", err)
	}
	ws.log.WithFields(logrus.Fields{"entry_id": entryID, "schedule": schedule}).Info("Turn expiry sweep scheduled")

	if err := ws.scheduler.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	mux := asynq.NewServeMux()
	mux.Handle(tasks.TypeTurnExpirySweep, NewTurnExpirySweepHandler(ws.sweeper))

	ws.log.Info("Worker server starting...")
	if err := ws.server.Run(mux); err != nil && !errors.Is(err, asynq.ErrServerClosed) {
		return fmt.Errorf("run worker server: %w", err)
	}
	ws.log.Info("Worker server stopped.")
	return nil
}

// Shutdown 先停止调度，再优雅地关闭 Worker Server
func (ws *WorkerServer) Shutdown() {
	ws.log.Info("Shutting down worker server...")
	ws.scheduler.Shutdown()
	ws.server.Shutdown()
	ws.log.Info("Worker server shut down complete.")
}
