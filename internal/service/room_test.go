package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"story-relay/internal/domain"
	"story-relay/internal/repository/repotest"
	"story-relay/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

type fixture struct {
	repo  *repotest.RoomRepository
	rooms *service.RoomService
	turns *service.TurnService
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{repo: repotest.NewRoomRepository(), now: baseTime}
	f.rooms = service.NewRoomService(f.repo, nil)
	f.turns = service.NewTurnService(f.repo, nil)
	f.rooms.SetClock(func() time.Time { return f.now })
	f.turns.SetClock(func() time.Time { return f.now })
	return f
}

func (f *fixture) tick(d time.Duration) { f.now = f.now.Add(d) }

// createRoom 创建房间并按顺序让其余用户加入，每次加入间隔一秒
func (f *fixture) createRoom(t *testing.T, in service.CreateRoomInput, leader string, writers ...string) *domain.Room {
	t.Helper()
	ctx := context.Background()
	room, err := f.rooms.CreateRoom(ctx, leader, in)
	require.NoError(t, err)
	for _, w := range writers {
		f.tick(time.Second)
		_, err := f.rooms.JoinRoom(ctx, room.ID, w)
		require.NoError(t, err)
	}
	return room
}

func (f *fixture) stored(t *testing.T, id string) domain.Room {
	t.Helper()
	room, ok := f.repo.Room(id)
	require.True(t, ok)
	return room
}

func wordsN(n int) string {
	return strings.TrimSpace(strings.Repeat("word ", n))
}

func TestRoomService_CreateRoom_Defaults(t *testing.T) {
	f := newFixture(t)

	room, err := f.rooms.CreateRoom(context.Background(), "leader", service.CreateRoomInput{
		Title:      "  The Long Night ",
		Characters: []service.CharacterInput{{Name: "Mara", Description: "a lighthouse keeper"}},
	})

	require.NoError(t, err)
	assert.Equal(t, "The Long Night", room.Title)
	assert.Equal(t, domain.RoomStatusWaiting, room.Status)
	assert.Equal(t, domain.DefaultTurnTimeLimit, room.TurnTimeLimit)
	assert.Equal(t, domain.DefaultWordLimit, room.WordLimit)
	assert.Equal(t, domain.DefaultTotalTurns, room.TotalTurns)
	assert.Equal(t, 0, room.CurrentTurnIndex)
	require.Len(t, room.Members, 1)
	assert.Equal(t, domain.RoleLeader, room.Members[0].Role)
	require.Len(t, room.Characters, 1)

	view, err := f.rooms.GetRoom(context.Background(), room.ID, "leader")
	require.NoError(t, err)
	assert.Len(t, view.Characters, 1)
	assert.Empty(t, view.CurrentWriterID, "waiting rooms have no current writer")
}

func TestRoomService_CreateRoom_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []service.CreateRoomInput{
		{Title: "   "},
		{Title: "x", TurnTimeLimit: -1},
		{Title: "x", WordLimit: -5},
		{Title: "x", TotalTurns: -2},
		{Title: "x", TurnTimeLimit: domain.MaxTurnTimeLimit + 1},
		{Title: "x", TurnTimeLimit: 10_000_000_000},
		{Title: "x", WordLimit: domain.MaxWordLimit + 1},
		{Title: "x", TotalTurns: domain.MaxTotalTurns + 1},
		{Title: "x", Characters: []service.CharacterInput{{Name: " "}}},
	}
	for _, in := range tests {
		_, err := f.rooms.CreateRoom(ctx, "leader", in)
		assert.True(t, errors.Is(err, service.ErrValidation), "input %+v", in)
	}
}

func TestRoomService_JoinRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.createRoom(t, service.CreateRoomInput{Title: "Join"}, "leader")

	member, err := f.rooms.JoinRoom(ctx, room.ID, "writer")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleWriter, member.Role)

	_, err = f.rooms.JoinRoom(ctx, room.ID, "writer")
	assert.True(t, errors.Is(err, service.ErrAlreadyJoined))

	_, err = f.rooms.JoinRoom(ctx, room.ID, "leader")
	assert.True(t, errors.Is(err, service.ErrAlreadyJoined))

	_, err = f.rooms.JoinRoom(ctx, "missing", "writer")
	assert.True(t, errors.Is(err, service.ErrRoomNotFound))
}

func TestRoomService_JoinActiveRoom_AppendsToRotation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.createRoom(t, service.CreateRoomInput{Title: "Late"}, "leader", "writer")
	_, err := f.rooms.StartRoom(ctx, room.ID, "leader")
	require.NoError(t, err)

	f.tick(time.Second)
	_, err = f.rooms.JoinRoom(ctx, room.ID, "late")
	require.NoError(t, err)

	_, err = f.turns.SkipTurn(ctx, room.ID, "leader")
	require.NoError(t, err)
	_, err = f.turns.SkipTurn(ctx, room.ID, "leader")
	require.NoError(t, err)

	view, err := f.rooms.GetRoom(ctx, room.ID, "late")
	require.NoError(t, err)
	assert.Equal(t, "late", view.CurrentWriterID, "index 2 of [leader writer late]")
}

func TestRoomService_GetRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.createRoom(t, service.CreateRoomInput{Title: "Private"}, "leader", "writer")

	_, err := f.rooms.GetRoom(ctx, room.ID, "stranger")
	assert.True(t, errors.Is(err, service.ErrNotMember))

	_, err = f.rooms.GetRoom(ctx, "missing", "leader")
	assert.True(t, errors.Is(err, service.ErrRoomNotFound))

	_, err = f.rooms.StartRoom(ctx, room.ID, "leader")
	require.NoError(t, err)

	view, err := f.rooms.GetRoom(ctx, room.ID, "writer")
	require.NoError(t, err)
	assert.Equal(t, "leader", view.CurrentWriterID)
	assert.Len(t, view.Members, 2)
}

func TestRoomService_GetRoom_HidesMemberEmail(t *testing.T) {
	f := newFixture(t)
	f.repo.PutRoom(domain.Room{ID: "r1", Title: "T", Status: domain.RoomStatusWaiting})
	f.repo.PutMember(domain.Member{
		ID: "m1", RoomID: "r1", UserID: "u1", Role: domain.RoleLeader, JoinedAt: baseTime,
		User: &domain.User{ID: "u1", Name: "Ada", Email: "ada@example.com", Avatar: "a.png"},
	})

	view, err := f.rooms.GetRoom(context.Background(), "r1", "u1")

	require.NoError(t, err)
	require.NotNil(t, view.Members[0].User)
	assert.Equal(t, "Ada", view.Members[0].User.Name)
	assert.Empty(t, view.Members[0].User.Email)
}

func TestRoomService_LongestTurnTimeLimitStaysInFuture(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.createRoom(t, service.CreateRoomInput{Title: "Slow", TurnTimeLimit: domain.MaxTurnTimeLimit}, "leader", "writer")

	_, err := f.rooms.StartRoom(ctx, room.ID, "leader")
	require.NoError(t, err)
	stored := f.stored(t, room.ID)
	assert.Equal(t, stored.TurnStartedAt.Add(24*time.Hour), *stored.TurnEndsAt)

	f.tick(time.Millisecond)
	result, err := f.turns.SweepExpiredTurns(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Candidates)
	assert.Equal(t, 0, f.stored(t, room.ID).CurrentTurnIndex)
}

func TestRoomService_StartRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.createRoom(t, service.CreateRoomInput{Title: "Start", TurnTimeLimit: 30}, "leader", "writer")

	_, err := f.rooms.StartRoom(ctx, room.ID, "writer")
	assert.True(t, errors.Is(err, service.ErrForbidden))
	_, err = f.rooms.StartRoom(ctx, room.ID, "stranger")
	assert.True(t, errors.Is(err, service.ErrForbidden))
	_, err = f.rooms.StartRoom(ctx, "missing", "leader")
	assert.True(t, errors.Is(err, service.ErrRoomNotFound))
	assert.Equal(t, domain.RoomStatusWaiting, f.stored(t, room.ID).Status)

	started, err := f.rooms.StartRoom(ctx, room.ID, "leader")
	require.NoError(t, err)
	assert.Equal(t, domain.RoomStatusActive, started.Status)
	assert.Equal(t, f.now.Add(30*time.Second), *f.stored(t, room.ID).TurnEndsAt)

	// 重复 start 会重置计时
	f.tick(10 * time.Second)
	_, err = f.rooms.StartRoom(ctx, room.ID, "leader")
	require.NoError(t, err)
	stored := f.stored(t, room.ID)
	assert.Equal(t, f.now.Add(30*time.Second), *stored.TurnEndsAt)
	assert.Equal(t, 0, stored.CurrentTurnIndex)
}

func TestRoomService_FinishAndPublish(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.createRoom(t, service.CreateRoomInput{Title: "Dragons & Dungeons"}, "leader", "writer")

	_, err := f.rooms.FinishRoom(ctx, room.ID, "leader")
	assert.True(t, errors.Is(err, service.ErrInvalidTransition), "waiting rooms cannot finish")

	_, err = f.rooms.StartRoom(ctx, room.ID, "leader")
	require.NoError(t, err)

	_, err = f.rooms.PublishRoom(ctx, room.ID, "leader")
	assert.True(t, errors.Is(err, service.ErrInvalidTransition), "only finished rooms can be published")

	_, err = f.rooms.FinishRoom(ctx, room.ID, "writer")
	assert.True(t, errors.Is(err, service.ErrForbidden))

	f.tick(time.Minute)
	finished, err := f.rooms.FinishRoom(ctx, room.ID, "leader")
	require.NoError(t, err)
	assert.Equal(t, domain.RoomStatusFinished, finished.Status)
	assert.Regexp(t, `^dragons-dungeons-[0-9a-z]{5}$`, finished.Slug())
	assert.Equal(t, f.now, *finished.FinishedAt)

	f.tick(time.Minute)
	again, err := f.rooms.FinishRoom(ctx, room.ID, "leader")
	require.NoError(t, err)
	assert.Equal(t, finished.Slug(), again.Slug(), "second finish is a no-op")
	assert.Equal(t, *finished.FinishedAt, *again.FinishedAt)

	_, err = f.rooms.StartRoom(ctx, room.ID, "leader")
	assert.True(t, errors.Is(err, service.ErrInvalidTransition), "finished is terminal")

	_, err = f.rooms.GetPublicStory(ctx, finished.Slug())
	assert.True(t, errors.Is(err, service.ErrStoryNotPublic))

	published, err := f.rooms.PublishRoom(ctx, room.ID, "leader")
	require.NoError(t, err)
	assert.True(t, published.IsPublic)
	assert.Equal(t, domain.RoomStatusFinished, published.Status)

	story, err := f.rooms.GetPublicStory(ctx, finished.Slug())
	require.NoError(t, err)
	assert.Equal(t, room.ID, story.ID)

	_, err = f.rooms.GetPublicStory(ctx, "no-such-story-abcde")
	assert.True(t, errors.Is(err, service.ErrStoryNotFound))
}
