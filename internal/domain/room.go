package domain

import (
	"fmt"
	"time"
)

// RoomStatus 是房间生命周期状态：waiting -> active -> finished，finished 为终态。
type RoomStatus string

const (
	RoomStatusWaiting  RoomStatus = "waiting"
	RoomStatusActive   RoomStatus = "active"
	RoomStatusFinished RoomStatus = "finished"
)

// 创建房间时的默认值
const (
	DefaultTurnTimeLimit = 60 // 秒
	DefaultWordLimit     = 100
	DefaultTotalTurns    = 20
)

// 房间数值的上限，保证 turnStartedAt + turnTimeLimit 不会溢出
const (
	MaxTurnTimeLimit = 24 * 60 * 60 // 秒
	MaxWordLimit     = 100000
	MaxTotalTurns    = 100000
)

// Room 表示一个故事接龙房间。
type Room struct {
	ID               string     `gorm:"primaryKey;size:36" json:"id"`
	Title            string     `gorm:"size:200;not null" json:"title"`
	BasePlot         string     `gorm:"type:text" json:"basePlot"`
	Status           RoomStatus `gorm:"size:16;not null;index:idx_rooms_status_ends,priority:1" json:"status"`
	TurnTimeLimit    int        `gorm:"not null" json:"turnTimeLimit"` // 秒
	WordLimit        int        `gorm:"not null" json:"wordLimit"`
	TotalTurns       int        `gorm:"not null" json:"totalTurns"`
	CurrentTurnIndex int        `gorm:"not null;default:0" json:"currentTurnIndex"`
	TurnStartedAt    *time.Time `json:"turnStartedAt"`
	TurnEndsAt       *time.Time `gorm:"index:idx_rooms_status_ends,priority:2" json:"turnEndsAt"`
	IsPublic         bool       `gorm:"not null;default:false" json:"isPublic"`
	PublicSlug       *string    `gorm:"type:varchar(64);uniqueIndex:idx_rooms_public_slug" json:"publicSlug"` // 只在结束时分配一次
	FinishedAt       *time.Time `json:"finishedAt"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`

	Members    []Member    `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE" json:"members,omitempty"`
	Turns      []Turn      `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE" json:"turns,omitempty"`
	Characters []Character `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE" json:"characters,omitempty"`
}

// TableName 固定表名
func (Room) TableName() string { return "story_rooms" }

// Member 表示房间成员。(RoomID, UserID) 唯一。
type Member struct {
	ID       string    `gorm:"primaryKey;size:36" json:"id"`
	RoomID   string    `gorm:"size:36;not null;uniqueIndex:idx_members_room_user,priority:1" json:"roomId"`
	UserID   string    `gorm:"size:36;not null;uniqueIndex:idx_members_room_user,priority:2;index" json:"userId"`
	Role     Role      `gorm:"size:16;not null" json:"role"`
	JoinedAt time.Time `gorm:"not null;index" json:"joinedAt"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// TableName 固定表名
func (Member) TableName() string { return "story_room_members" }

// NewMember 创建成员记录，未知角色返回 ErrInvalidRole
func NewMember(id, roomID, userID string, role Role, joinedAt time.Time) (*Member, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	return &Member{ID: id, RoomID: roomID, UserID: userID, Role: role, JoinedAt: joinedAt}, nil
}

// Turn 是故事的一段，创建后不可修改。(RoomID, TurnOrder) 唯一。
type Turn struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	RoomID    string    `gorm:"size:36;not null;uniqueIndex:idx_turns_room_order,priority:1" json:"roomId"`
	UserID    string    `gorm:"size:36;not null;index" json:"userId"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	TurnOrder int       `gorm:"not null;uniqueIndex:idx_turns_room_order,priority:2" json:"turnOrder"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// TableName 固定表名
func (Turn) TableName() string { return "story_turns" }

// Character 是房间的静态角色设定。
type Character struct {
	ID          string `gorm:"primaryKey;size:36" json:"id"`
	RoomID      string `gorm:"size:36;not null;index" json:"roomId"`
	Name        string `gorm:"size:100;not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
}

// TableName 固定表名
func (Character) TableName() string { return "story_room_characters" }

// Start 将房间切换为 active 并开启当前回合的计时。
// 对 active 房间重复调用会重置计时器。
func (r *Room) Start(now time.Time) error {
	if r.Status == RoomStatusFinished {
		return ErrInvalidTransition
	}
	r.Status = RoomStatusActive
	r.resetTurnClock(now)
	return nil
}

// AdvanceTurn 将回合索引加一并重置计时。提交、跳过、超时跳过共用。
func (r *Room) AdvanceTurn(now time.Time) {
	r.CurrentTurnIndex++
	r.resetTurnClock(now)
}

func (r *Room) resetTurnClock(now time.Time) {
	started := now
	ends := now.Add(time.Duration(r.TurnTimeLimit) * time.Second)
	r.TurnStartedAt = &started
	r.TurnEndsAt = &ends
}

// IsTurnExpired 报告在 now 时刻当前回合是否已超时（仅对 active 房间成立）。
func (r *Room) IsTurnExpired(now time.Time) bool {
	return r.Status == RoomStatusActive && r.TurnEndsAt != nil && !r.TurnEndsAt.After(now)
}

// Finish 结束房间并写入公开 slug。已结束时返回 false 且不做任何修改。
func (r *Room) Finish(now time.Time, slug string) (bool, error) {
	switch r.Status {
	case RoomStatusFinished:
		return false, nil
	case RoomStatusActive:
	default:
		return false, ErrInvalidTransition
	}
	r.Status = RoomStatusFinished
	r.FinishedAt = &now
	if r.PublicSlug == nil {
		r.PublicSlug = &slug
	}
	return true, nil
}

// Publish 将已结束的房间设为公开，不改变状态。
func (r *Room) Publish() error {
	if r.Status != RoomStatusFinished {
		return ErrInvalidTransition
	}
	r.IsPublic = true
	return nil
}

// Slug 返回公开 slug，未分配时为空字符串。
func (r *Room) Slug() string {
	if r.PublicSlug == nil {
		return ""
	}
	return *r.PublicSlug
}
