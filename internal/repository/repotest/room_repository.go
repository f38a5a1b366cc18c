// Package repotest 提供内存版的 RoomRepository，供 service 与 handler 测试使用。
// Atomic 通过一把全局锁串行执行，效果等同于数据库中的行锁，失败时回滚到事务开始前的快照。
package repotest

import (
	"context"
	"sort"
	"sync"
	"time"

	"story-relay/internal/domain"
	"story-relay/internal/repository"
)

type state struct {
	rooms      map[string]domain.Room
	members    map[string][]domain.Member
	turns      map[string][]domain.Turn
	characters map[string][]domain.Character
}

func (s *state) clone() *state {
	c := &state{
		rooms:      make(map[string]domain.Room, len(s.rooms)),
		members:    make(map[string][]domain.Member, len(s.members)),
		turns:      make(map[string][]domain.Turn, len(s.turns)),
		characters: make(map[string][]domain.Character, len(s.characters)),
	}
	for k, v := range s.rooms {
		c.rooms[k] = v
	}
	for k, v := range s.members {
		c.members[k] = append([]domain.Member(nil), v...)
	}
	for k, v := range s.turns {
		c.turns[k] = append([]domain.Turn(nil), v...)
	}
	for k, v := range s.characters {
		c.characters[k] = append([]domain.Character(nil), v...)
	}
	return c
}

// RoomRepository 是 repository.RoomRepository 的内存实现。
type RoomRepository struct {
	mu sync.Mutex
	st *state

	lockErrs map[string]error

	// AfterExpiredQuery 在 FindExpiredActive 释放锁之后、返回之前调用，
	// 用于模拟扫描查询与事务内重检之间发生的并发推进。
	AfterExpiredQuery func()
}

// NewRoomRepository 创建空的内存仓库
func NewRoomRepository() *RoomRepository {
	return &RoomRepository{
		st: &state{
			rooms:      make(map[string]domain.Room),
			members:    make(map[string][]domain.Member),
			turns:      make(map[string][]domain.Turn),
			characters: make(map[string][]domain.Character),
		},
		lockErrs: make(map[string]error),
	}
}

var _ repository.RoomRepository = (*RoomRepository)(nil)

// FailLockFor 让后续对 roomID 的 LockByID 返回 err，err 为 nil 时恢复。
func (r *RoomRepository) FailLockFor(roomID string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.lockErrs, roomID)
		return
	}
	r.lockErrs[roomID] = err
}

// PutRoom 直接写入房间行，测试用于构造任意状态。
func (r *RoomRepository) PutRoom(room domain.Room) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room.Members, room.Turns, room.Characters = nil, nil, nil
	r.st.rooms[room.ID] = room
}

// PutMember 直接写入成员
func (r *RoomRepository) PutMember(m domain.Member) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.st.members[m.RoomID] = append(r.st.members[m.RoomID], m)
}

// Room 返回房间行的副本
func (r *RoomRepository) Room(id string) (domain.Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.st.rooms[id]
	return room, ok
}

// Turns 返回房间的回合副本，按 turnOrder 排序
func (r *RoomRepository) Turns(roomID string) []domain.Turn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sortedTurns(r.st.turns[roomID])
}

func sortedTurns(turns []domain.Turn) []domain.Turn {
	out := append([]domain.Turn(nil), turns...)
	sort.Slice(out, func(i, j int) bool { return out[i].TurnOrder < out[j].TurnOrder })
	return out
}

func sortedMembers(members []domain.Member) []domain.Member {
	out := append([]domain.Member(nil), members...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out
}

func (r *RoomRepository) CreateWithLeader(_ context.Context, room *domain.Room, leader *domain.Member, characters []domain.Character) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.st.rooms[room.ID]; exists {
		return repository.ErrDuplicateEntry
	}
	row := *room
	row.Members, row.Turns, row.Characters = nil, nil, nil
	r.st.rooms[room.ID] = row
	r.st.members[room.ID] = append(r.st.members[room.ID], *leader)
	r.st.characters[room.ID] = append(r.st.characters[room.ID], characters...)
	return nil
}

func (r *RoomRepository) FindByID(_ context.Context, id string) (*domain.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.st.rooms[id]
	if !ok {
		return nil, repository.ErrRoomNotFound
	}
	return &room, nil
}

func (r *RoomRepository) detail(room domain.Room) *domain.Room {
	room.Members = sortedMembers(r.st.members[room.ID])
	room.Turns = sortedTurns(r.st.turns[room.ID])
	room.Characters = append([]domain.Character(nil), r.st.characters[room.ID]...)
	return &room
}

func (r *RoomRepository) FindDetailByID(_ context.Context, id string) (*domain.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.st.rooms[id]
	if !ok {
		return nil, repository.ErrRoomNotFound
	}
	return r.detail(room), nil
}

func (r *RoomRepository) FindDetailBySlug(_ context.Context, slug string) (*domain.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, room := range r.st.rooms {
		if room.Slug() == slug && slug != "" {
			return r.detail(room), nil
		}
	}
	return nil, repository.ErrRoomNotFound
}

func (r *RoomRepository) findMember(roomID, userID string) (*domain.Member, error) {
	for _, m := range r.st.members[roomID] {
		if m.UserID == userID {
			m := m
			return &m, nil
		}
	}
	return nil, repository.ErrMemberNotFound
}

func (r *RoomRepository) FindMember(_ context.Context, roomID, userID string) (*domain.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findMember(roomID, userID)
}

func (r *RoomRepository) AddMember(_ context.Context, member *domain.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.findMember(member.RoomID, member.UserID); err == nil {
		return repository.ErrDuplicateEntry
	}
	r.st.members[member.RoomID] = append(r.st.members[member.RoomID], *member)
	return nil
}

func (r *RoomRepository) FindExpiredActive(_ context.Context, now time.Time, limit int) ([]domain.Room, error) {
	r.mu.Lock()
	var rooms []domain.Room
	for _, room := range r.st.rooms {
		if room.Status == domain.RoomStatusActive && room.TurnEndsAt != nil && room.TurnEndsAt.Before(now) {
			rooms = append(rooms, room)
		}
	}
	r.mu.Unlock()

	sort.Slice(rooms, func(i, j int) bool { return rooms[i].TurnEndsAt.Before(*rooms[j].TurnEndsAt) })
	if limit > 0 && len(rooms) > limit {
		rooms = rooms[:limit]
	}
	if r.AfterExpiredQuery != nil {
		r.AfterExpiredQuery()
	}
	return rooms, nil
}

func (r *RoomRepository) Atomic(_ context.Context, fn func(tx repository.RoomTx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	saved := r.st.clone()
	if err := fn(&roomTx{r: r}); err != nil {
		r.st = saved
		return err
	}
	return nil
}

// roomTx 在持有 r.mu 的情况下操作状态
type roomTx struct {
	r *RoomRepository
}

func (t *roomTx) LockByID(_ context.Context, id string) (*domain.Room, error) {
	if err := t.r.lockErrs[id]; err != nil {
		return nil, err
	}
	room, ok := t.r.st.rooms[id]
	if !ok {
		return nil, repository.ErrRoomNotFound
	}
	return &room, nil
}

func (t *roomTx) FindMember(_ context.Context, roomID, userID string) (*domain.Member, error) {
	return t.r.findMember(roomID, userID)
}

func (t *roomTx) ListWriters(_ context.Context, roomID string) ([]domain.Member, error) {
	return domain.Writers(t.r.st.members[roomID]), nil
}

func (t *roomTx) CreateTurn(_ context.Context, turn *domain.Turn) error {
	for _, existing := range t.r.st.turns[turn.RoomID] {
		if existing.TurnOrder == turn.TurnOrder {
			return repository.ErrDuplicateEntry
		}
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}
	t.r.st.turns[turn.RoomID] = append(t.r.st.turns[turn.RoomID], *turn)
	return nil
}

func (t *roomTx) UpdateTurnState(_ context.Context, room *domain.Room, expectedIndex int) error {
	stored, ok := t.r.st.rooms[room.ID]
	if !ok || stored.CurrentTurnIndex != expectedIndex {
		return repository.ErrStaleWrite
	}
	stored.CurrentTurnIndex = room.CurrentTurnIndex
	stored.TurnStartedAt = room.TurnStartedAt
	stored.TurnEndsAt = room.TurnEndsAt
	t.r.st.rooms[room.ID] = stored
	return nil
}

func (t *roomTx) UpdateLifecycle(_ context.Context, room *domain.Room) error {
	stored, ok := t.r.st.rooms[room.ID]
	if !ok {
		return repository.ErrRoomNotFound
	}
	stored.Status = room.Status
	stored.TurnStartedAt = room.TurnStartedAt
	stored.TurnEndsAt = room.TurnEndsAt
	stored.IsPublic = room.IsPublic
	stored.PublicSlug = room.PublicSlug
	stored.FinishedAt = room.FinishedAt
	t.r.st.rooms[room.ID] = stored
	return nil
}

func (t *roomTx) IsSlugExists(_ context.Context, slug string) (bool, error) {
	for _, room := range t.r.st.rooms {
		if room.Slug() == slug {
			return true, nil
		}
	}
	return false, nil
}
