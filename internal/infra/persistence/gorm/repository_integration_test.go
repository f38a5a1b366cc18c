//go:build integration

package gormpersistence_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"

	"story-relay/internal/domain"
	gormpersistence "story-relay/internal/infra/persistence/gorm"
	"story-relay/internal/infra/setup"
	"story-relay/internal/repository"
	"story-relay/internal/service"
)

var db *gorm.DB

func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("story_relay"),
		postgres.WithUsername("relay"),
		postgres.WithPassword("relay"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		panic(err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		panic(err)
	}
	db, err = setup.InitDB(setup.DriverPostgres, dsn)
	if err != nil {
		panic(err)
	}
	if err := setup.MigrateDB(db); err != nil {
		panic(err)
	}

	code := m.Run()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func createUser(t *testing.T, users *gormpersistence.GormUserRepository, name string) *domain.User {
	t.Helper()
	u := &domain.User{ID: uuid.NewString(), Name: name, Email: name + "-" + uuid.NewString()[:8] + "@example.com"}
	require.NoError(t, users.Save(context.Background(), u))
	return u
}

func TestGormUserRepository(t *testing.T) {
	ctx := context.Background()
	users := gormpersistence.NewGormUserRepository(db)

	u := createUser(t, users, "ada")

	found, err := users.FindByEmail(ctx, u.Email)
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)

	dup := &domain.User{ID: uuid.NewString(), Email: u.Email}
	assert.ErrorIs(t, users.Save(ctx, dup), repository.ErrDuplicateEntry)

	_, err = users.FindByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, repository.ErrUserNotFound)

	require.NoError(t, users.UpdateRefreshTokenHash(ctx, u.ID, "hash"))
	found, err = users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "hash", found.RefreshTokenHash)

	googleID := "g-" + uuid.NewString()
	found.GoogleID = &googleID
	require.NoError(t, users.Save(ctx, found))
	linked, err := users.FindByEmailOrGoogleID(ctx, "nobody@example.com", googleID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, linked.ID)
}

func TestGormRoomRepository_TurnFlow(t *testing.T) {
	ctx := context.Background()
	users := gormpersistence.NewGormUserRepository(db)
	rooms := gormpersistence.NewGormRoomRepository(db)
	leader := createUser(t, users, "leader")
	writer := createUser(t, users, "writer")

	roomSvc := service.NewRoomService(rooms, nil)
	turnSvc := service.NewTurnService(rooms, nil)

	room, err := roomSvc.CreateRoom(ctx, leader.ID, service.CreateRoomInput{
		Title: "Integration", WordLimit: 5,
		Characters: []service.CharacterInput{{Name: "Mara"}},
	})
	require.NoError(t, err)

	_, err = roomSvc.JoinRoom(ctx, room.ID, writer.ID)
	require.NoError(t, err)
	_, err = roomSvc.JoinRoom(ctx, room.ID, writer.ID)
	assert.ErrorIs(t, err, service.ErrAlreadyJoined)

	_, err = roomSvc.StartRoom(ctx, room.ID, leader.ID)
	require.NoError(t, err)

	_, err = turnSvc.SubmitTurn(ctx, room.ID, writer.ID, "not yet")
	assert.ErrorIs(t, err, service.ErrNotYourTurn)

	_, err = turnSvc.SubmitTurn(ctx, room.ID, leader.ID, "it began at dawn")
	require.NoError(t, err)
	_, err = turnSvc.SubmitTurn(ctx, room.ID, writer.ID, "and ended at dusk")
	require.NoError(t, err)

	view, err := roomSvc.GetRoom(ctx, room.ID, writer.ID)
	require.NoError(t, err)
	require.Len(t, view.Turns, 2)
	assert.Equal(t, 1, view.Turns[0].TurnOrder)
	assert.Equal(t, "leader", view.Turns[0].User.Name)
	assert.Len(t, view.Characters, 1)
	assert.Equal(t, leader.ID, view.CurrentWriterID)

	finished, err := roomSvc.FinishRoom(ctx, room.ID, leader.ID)
	require.NoError(t, err)
	_, err = roomSvc.PublishRoom(ctx, room.ID, leader.ID)
	require.NoError(t, err)
	story, err := roomSvc.GetPublicStory(ctx, finished.Slug())
	require.NoError(t, err)
	assert.Equal(t, room.ID, story.ID)
}

func TestGormRoomRepository_SweepRacesSubmit(t *testing.T) {
	ctx := context.Background()
	users := gormpersistence.NewGormUserRepository(db)
	rooms := gormpersistence.NewGormRoomRepository(db)
	leader := createUser(t, users, "racer")
	writer := createUser(t, users, "chaser")

	roomSvc := service.NewRoomService(rooms, nil)
	turnSvc := service.NewTurnService(rooms, nil)

	room, err := roomSvc.CreateRoom(ctx, leader.ID, service.CreateRoomInput{Title: "Race", TurnTimeLimit: 1})
	require.NoError(t, err)
	_, err = roomSvc.JoinRoom(ctx, room.ID, writer.ID)
	require.NoError(t, err)
	_, err = roomSvc.StartRoom(ctx, room.ID, leader.ID)
	require.NoError(t, err)

	time.Sleep(1100 * time.Millisecond)

	var (
		wg        sync.WaitGroup
		submitErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, submitErr = turnSvc.SubmitTurn(ctx, room.ID, leader.ID, "last second words")
	}()
	go func() {
		defer wg.Done()
		_, _ = turnSvc.SweepExpiredTurns(ctx)
	}()
	wg.Wait()

	if submitErr != nil {
		assert.True(t, errors.Is(submitErr, service.ErrNotYourTurn), "%v", submitErr)
	}
	stored, err := rooms.FindByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CurrentTurnIndex)
}

func TestGormDocumentRepository(t *testing.T) {
	ctx := context.Background()
	users := gormpersistence.NewGormUserRepository(db)
	docs := service.NewDocumentService(gormpersistence.NewGormDocumentRepository(db))
	owner := createUser(t, users, "author")
	other := createUser(t, users, "reader")

	first, err := docs.CreateDocument(ctx, owner.ID, "")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultDocumentTitle, first.Title)
	time.Sleep(10 * time.Millisecond)
	second, err := docs.CreateDocument(ctx, owner.ID, "Second")
	require.NoError(t, err)

	content := "<p>draft</p>"
	updated, err := docs.UpdateDocument(ctx, first.ID, owner.ID, service.DocumentUpdate{Content: &content})
	require.NoError(t, err)
	assert.Equal(t, content, updated.Content)

	list, err := docs.ListDocuments(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID, "most recently updated first")
	assert.Equal(t, second.ID, list[1].ID)

	_, err = docs.GetDocument(ctx, first.ID, other.ID)
	assert.ErrorIs(t, err, service.ErrForbidden)

	require.NoError(t, docs.DeleteDocument(ctx, first.ID, owner.ID))
	_, err = docs.GetDocument(ctx, first.ID, owner.ID)
	assert.ErrorIs(t, err, service.ErrDocumentNotFound)
}
