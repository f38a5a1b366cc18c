package gormpersistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"story-relay/internal/domain"
	"story-relay/internal/repository"
)

// GormRoomRepository 是 RoomRepository 接口的 GORM 实现
type GormRoomRepository struct {
	db *gorm.DB
}

// NewGormRoomRepository 创建 GormRoomRepository 实例
func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	if db == nil {
		panic("database connection cannot be nil for GormRoomRepository")
	}
	return &GormRoomRepository{db: db}
}

var _ repository.RoomRepository = (*GormRoomRepository)(nil)

// CreateWithLeader 在一个事务中写入房间、队长成员和角色
func (r *GormRoomRepository) CreateWithLeader(ctx context.Context, room *domain.Room, leader *domain.Member, characters []domain.Character) error {
	if !leader.Role.Valid() {
		return fmt.Errorf("gorm: create room %s: %w", room.ID, domain.ErrInvalidRole)
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(room).Error; err != nil {
			return fmt.Errorf("create room: %w", err)
		}
		if err := tx.Omit(clause.Associations).Create(leader).Error; err != nil {
			return fmt.Errorf("create leader member: %w", err)
		}
		if len(characters) > 0 {
			if err := tx.Create(&characters).Error; err != nil {
				return fmt.Errorf("create characters: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		if isDuplicateEntryError(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: create room %s: %w", room.ID, err)
	}
	return nil
}

// FindByID 只读取房间行
func (r *GormRoomRepository) FindByID(ctx context.Context, id string) (*domain.Room, error) {
	var room domain.Room
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&room).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find room by id %s: %w", id, err)
	}
	return &room, nil
}

// withDetail 预加载成员（按加入时间）、回合（按 turn_order）、角色及相关用户
func withDetail(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("joined_at ASC, id ASC") }).
		Preload("Members.User").
		Preload("Turns", func(db *gorm.DB) *gorm.DB { return db.Order("turn_order ASC") }).
		Preload("Turns.User").
		Preload("Characters")
}

// FindDetailByID 读取房间及其全部关联
func (r *GormRoomRepository) FindDetailByID(ctx context.Context, id string) (*domain.Room, error) {
	var room domain.Room
	if err := withDetail(r.db.WithContext(ctx)).Where("id = ?", id).First(&room).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find room detail by id %s: %w", id, err)
	}
	return &room, nil
}

// FindDetailBySlug 按公开 slug 读取房间及其全部关联
func (r *GormRoomRepository) FindDetailBySlug(ctx context.Context, slug string) (*domain.Room, error) {
	var room domain.Room
	if err := withDetail(r.db.WithContext(ctx)).Where("public_slug = ?", slug).First(&room).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find room detail by slug '%s': %w", slug, err)
	}
	return &room, nil
}

// FindMember 查找房间中的成员
func (r *GormRoomRepository) FindMember(ctx context.Context, roomID, userID string) (*domain.Member, error) {
	return findMember(r.db.WithContext(ctx), roomID, userID)
}

func findMember(db *gorm.DB, roomID, userID string) (*domain.Member, error) {
	var member domain.Member
	if err := db.Where("room_id = ? AND user_id = ?", roomID, userID).First(&member).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrMemberNotFound
		}
		return nil, fmt.Errorf("gorm: find member (room: %s, user: %s): %w", roomID, userID, err)
	}
	return &member, nil
}

// AddMember 插入成员
func (r *GormRoomRepository) AddMember(ctx context.Context, member *domain.Member) error {
	if !member.Role.Valid() {
		return fmt.Errorf("gorm: add member (room: %s, user: %s): %w", member.RoomID, member.UserID, domain.ErrInvalidRole)
	}
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(member).Error; err != nil {
		if isDuplicateEntryError(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: add member (room: %s, user: %s): %w", member.RoomID, member.UserID, err)
	}
	return nil
}

// FindExpiredActive 返回回合已超时的 active 房间，截止时间最早的在前
func (r *GormRoomRepository) FindExpiredActive(ctx context.Context, now time.Time, limit int) ([]domain.Room, error) {
	var rooms []domain.Room
	query := r.db.WithContext(ctx).
		Where("status = ? AND turn_ends_at < ?", domain.RoomStatusActive, now).
		Order("turn_ends_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rooms).Error; err != nil {
		return nil, fmt.Errorf("gorm: find expired active rooms: %w", err)
	}
	return rooms, nil
}

// Atomic 在数据库事务中执行 fn
func (r *GormRoomRepository) Atomic(ctx context.Context, fn func(tx repository.RoomTx) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormRoomTx{db: tx})
	})
}

// gormRoomTx 绑定到一个进行中的事务
type gormRoomTx struct {
	db *gorm.DB
}

// LockByID 使用 SELECT ... FOR UPDATE 锁定房间行
func (t *gormRoomTx) LockByID(ctx context.Context, id string) (*domain.Room, error) {
	var room domain.Room
	err := t.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: lock room %s: %w", id, err)
	}
	return &room, nil
}

func (t *gormRoomTx) FindMember(ctx context.Context, roomID, userID string) (*domain.Member, error) {
	return findMember(t.db.WithContext(ctx), roomID, userID)
}

// ListWriters 读取房间全部成员，再按领域规则筛选并排序
func (t *gormRoomTx) ListWriters(ctx context.Context, roomID string) ([]domain.Member, error) {
	var members []domain.Member
	err := t.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("joined_at ASC, id ASC").
		Find(&members).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list members of room %s: %w", roomID, err)
	}
	return domain.Writers(members), nil
}

func (t *gormRoomTx) CreateTurn(ctx context.Context, turn *domain.Turn) error {
	if err := t.db.WithContext(ctx).Omit(clause.Associations).Create(turn).Error; err != nil {
		if isDuplicateEntryError(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: create turn %d of room %s: %w", turn.TurnOrder, turn.RoomID, err)
	}
	return nil
}

// UpdateTurnState 条件更新：只有库中的回合索引仍是 expectedIndex 时才写入
func (t *gormRoomTx) UpdateTurnState(ctx context.Context, room *domain.Room, expectedIndex int) error {
	result := t.db.WithContext(ctx).
		Model(&domain.Room{}).
		Where("id = ? AND current_turn_index = ?", room.ID, expectedIndex).
		Updates(map[string]interface{}{
			"current_turn_index": room.CurrentTurnIndex,
			"turn_started_at":    room.TurnStartedAt,
			"turn_ends_at":       room.TurnEndsAt,
		})
	if result.Error != nil {
		return fmt.Errorf("gorm: update turn state of room %s: %w", room.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrStaleWrite
	}
	return nil
}

func (t *gormRoomTx) UpdateLifecycle(ctx context.Context, room *domain.Room) error {
	err := t.db.WithContext(ctx).
		Model(&domain.Room{}).
		Where("id = ?", room.ID).
		Updates(map[string]interface{}{
			"status":          room.Status,
			"turn_started_at": room.TurnStartedAt,
			"turn_ends_at":    room.TurnEndsAt,
			"is_public":       room.IsPublic,
			"public_slug":     room.PublicSlug,
			"finished_at":     room.FinishedAt,
		}).Error
	if err != nil {
		if isDuplicateEntryError(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: update lifecycle of room %s: %w", room.ID, err)
	}
	return nil
}

func (t *gormRoomTx) IsSlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	err := t.db.WithContext(ctx).Model(&domain.Room{}).Where("public_slug = ?", slug).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("gorm: count rooms by slug '%s': %w", slug, err)
	}
	return count > 0, nil
}
