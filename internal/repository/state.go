package repository

import (
	"context"

	"story-relay/internal/domain"
)

//go:generate mockery --name=RoomEventPublisher --output=./mocks --filename=room_event_publisher.go

// RoomEventPublisher 将已提交的房间变化推送给订阅者，通常由 Redis Pub/Sub 实现。
// 发布是尽力而为的，客户端仍然通过轮询得到最终一致的状态。
type RoomEventPublisher interface {
	PublishRoomEvent(ctx context.Context, event domain.RoomEvent) error
}
