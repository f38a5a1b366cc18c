package repository

import (
	"context"
	"time"

	"story-relay/internal/domain"
)

// RoomRepository 定义了故事房间及其成员、回合、角色的存储操作。
type RoomRepository interface {
	// CreateWithLeader 在同一个事务中创建房间、队长成员和角色。
	CreateWithLeader(ctx context.Context, room *domain.Room, leader *domain.Member, characters []domain.Character) error

	// FindByID 只读取房间行，不加载关联。
	FindByID(ctx context.Context, id string) (*domain.Room, error)

	// FindDetailByID 读取房间以及成员（含用户）、按 turnOrder 排序的回合、角色。
	FindDetailByID(ctx context.Context, id string) (*domain.Room, error)

	// FindDetailBySlug 同 FindDetailByID，按公开 slug 查找。
	FindDetailBySlug(ctx context.Context, slug string) (*domain.Room, error)

	// FindMember 查找房间中的某个成员，不存在时返回 ErrMemberNotFound。
	FindMember(ctx context.Context, roomID, userID string) (*domain.Member, error)

	// AddMember 插入成员，(roomID, userID) 重复时返回 ErrDuplicateEntry。
	AddMember(ctx context.Context, member *domain.Member) error

	// FindExpiredActive 返回 status = active 且 turnEndsAt < now 的房间，最多 limit 个。
	FindExpiredActive(ctx context.Context, now time.Time, limit int) ([]domain.Room, error)

	// Atomic 在一个事务中执行 fn。fn 返回错误时整个事务回滚。
	Atomic(ctx context.Context, fn func(tx RoomTx) error) error
}

// RoomTx 是事务内可用的操作。所有推进回合状态的修改都必须经过它：
// 先 LockByID 重新读取，再校验前置条件，最后写入。
type RoomTx interface {
	// LockByID 读取并锁定房间行直到事务结束。
	LockByID(ctx context.Context, id string) (*domain.Room, error)

	FindMember(ctx context.Context, roomID, userID string) (*domain.Member, error)

	// ListWriters 返回 LEADER/WRITER 成员，按 joinedAt 升序。
	ListWriters(ctx context.Context, roomID string) ([]domain.Member, error)

	CreateTurn(ctx context.Context, turn *domain.Turn) error

	// UpdateTurnState 写入 currentTurnIndex、turnStartedAt、turnEndsAt，
	// 仅当库中的 currentTurnIndex 仍等于 expectedIndex 时生效，否则返回 ErrStaleWrite。
	UpdateTurnState(ctx context.Context, room *domain.Room, expectedIndex int) error

	// UpdateLifecycle 写入状态、计时、公开标记、slug 与结束时间。
	UpdateLifecycle(ctx context.Context, room *domain.Room) error

	IsSlugExists(ctx context.Context, slug string) (bool, error)
}
