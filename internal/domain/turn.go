package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Role 是成员在房间内的角色，取值是封闭集合。
type Role string

const (
	RoleLeader    Role = "LEADER"
	RoleWriter    Role = "WRITER"
	RoleSpectator Role = "SPECTATOR"
)

// Capability 是需要角色授权的操作类别。
type Capability int

const (
	// CapWrite 参与回合轮转
	CapWrite Capability = iota
	// CapManageRoom 开始、跳过、结束、发布
	CapManageRoom
)

// Can 报告角色是否具备某项能力。
func (r Role) Can(c Capability) bool {
	switch r {
	case RoleLeader:
		return true
	case RoleWriter:
		return c == CapWrite
	default:
		return false
	}
}

// Valid 报告角色是否属于已知集合。
func (r Role) Valid() bool {
	switch r {
	case RoleLeader, RoleWriter, RoleSpectator:
		return true
	}
	return false
}

// WordLimitBuffer 是提交字数允许超出 wordLimit 的固定容差。
const WordLimitBuffer = 10

// Writers 返回可以写作的成员（LEADER 与 WRITER），按加入时间升序，即回合轮转顺序。
func Writers(members []Member) []Member {
	writers := make([]Member, 0, len(members))
	for _, m := range members {
		if m.Role.Can(CapWrite) {
			writers = append(writers, m)
		}
	}
	sort.SliceStable(writers, func(i, j int) bool {
		return writers[i].JoinedAt.Before(writers[j].JoinedAt)
	})
	return writers
}

// CurrentWriter 返回 writers[currentTurnIndex mod len(writers)]。
// writers 必须已经按轮转顺序排列。
func CurrentWriter(room *Room, writers []Member) (*Member, error) {
	if len(writers) == 0 {
		return nil, ErrNoWriters
	}
	w := writers[room.CurrentTurnIndex%len(writers)]
	return &w, nil
}

// CountWords 按空白切分并统计非空词数。
func CountWords(content string) int {
	return len(strings.Fields(content))
}

// CheckWordLimit 校验内容不超过 wordLimit + WordLimitBuffer 个词。
func (r *Room) CheckWordLimit(content string) error {
	if CountWords(content) > r.WordLimit+WordLimitBuffer {
		return fmt.Errorf("%w (max %d)", ErrWordLimitExceeded, r.WordLimit)
	}
	return nil
}

// ValidateSubmission 在已锁定的房间状态上执行提交前置条件检查，返回下一个 Turn（尚未持久化）。
func ValidateSubmission(room *Room, writers []Member, userID, content string) (*Turn, error) {
	if room.Status != RoomStatusActive {
		return nil, ErrRoomNotActive
	}
	current, err := CurrentWriter(room, writers)
	if err != nil {
		return nil, err
	}
	if current.UserID != userID {
		return nil, ErrNotYourTurn
	}
	if err := room.CheckWordLimit(content); err != nil {
		return nil, err
	}
	return &Turn{
		RoomID:    room.ID,
		UserID:    userID,
		Content:   content,
		TurnOrder: room.CurrentTurnIndex + 1,
	}, nil
}
