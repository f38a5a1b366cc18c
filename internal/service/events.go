package service

import (
	"context"
	"time"

	"story-relay/internal/domain"
	"story-relay/internal/repository"

	"github.com/sirupsen/logrus"
)

// noopPublisher 在未配置 Redis 时使用
type noopPublisher struct{}

func (noopPublisher) PublishRoomEvent(context.Context, domain.RoomEvent) error { return nil }

func publisherOrNoop(p repository.RoomEventPublisher) repository.RoomEventPublisher {
	if p == nil {
		return noopPublisher{}
	}
	return p
}

// publishAfterCommit 在事务提交之后发布事件，失败只记录日志，不影响已提交的结果。
func publishAfterCommit(ctx context.Context, p repository.RoomEventPublisher, event domain.RoomEvent) {
	if err := p.PublishRoomEvent(ctx, event); err != nil {
		logrus.WithFields(logrus.Fields{
			"room_id":    event.RoomID,
			"event_type": event.Type,
		}).WithError(err).Warn("Failed to publish room event")
	}
}

// clock 是各 service 共享的可替换时间源
type clock struct {
	now func() time.Time
}

func (c *clock) Now() time.Time {
	if c.now == nil {
		return time.Now()
	}
	return c.now()
}

// SetClock 替换时间源，测试中用于固定时间。
func (c *clock) SetClock(now func() time.Time) {
	c.now = now
}
