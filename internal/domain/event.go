package domain

import "time"

// RoomEventType 标识房间状态变化的种类
type RoomEventType string

const (
	EventRoomStarted   RoomEventType = "room_started"
	EventTurnSubmitted RoomEventType = "turn_submitted"
	EventTurnSkipped   RoomEventType = "turn_skipped"
	EventTurnExpired   RoomEventType = "turn_expired" // 由超时扫描器触发的自动跳过
	EventMemberJoined  RoomEventType = "member_joined"
	EventRoomFinished  RoomEventType = "room_finished"
	EventRoomPublished RoomEventType = "room_published"
)

// RoomEvent 是提交成功后对外发布的通知。轮询客户端不依赖它。
type RoomEvent struct {
	Type             RoomEventType `json:"type"`
	RoomID           string        `json:"roomId"`
	Status           RoomStatus    `json:"status"`
	CurrentTurnIndex int           `json:"currentTurnIndex"`
	TurnEndsAt       *time.Time    `json:"turnEndsAt,omitempty"`
	ActorID          string        `json:"actorId,omitempty"`
	OccurredAt       time.Time     `json:"occurredAt"`
}

// NewRoomEvent 基于房间当前状态构造事件
func NewRoomEvent(t RoomEventType, room *Room, actorID string, now time.Time) RoomEvent {
	return RoomEvent{
		Type:             t,
		RoomID:           room.ID,
		Status:           room.Status,
		CurrentTurnIndex: room.CurrentTurnIndex,
		TurnEndsAt:       room.TurnEndsAt,
		ActorID:          actorID,
		OccurredAt:       now,
	}
}
