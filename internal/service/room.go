package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"story-relay/internal/domain"
	"story-relay/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// maxSlugAttempts 是生成唯一公开 slug 的最大尝试次数
const maxSlugAttempts = 10

// RoomService 负责房间的创建、加入、查看以及生命周期切换（waiting -> active -> finished）。
type RoomService struct {
	clock
	roomRepo  repository.RoomRepository
	publisher repository.RoomEventPublisher
}

// NewRoomService 创建 RoomService 实例。publisher 可以为 nil。
func NewRoomService(roomRepo repository.RoomRepository, publisher repository.RoomEventPublisher) *RoomService {
	if roomRepo == nil {
		panic("RoomRepository cannot be nil for RoomService")
	}
	return &RoomService{
		roomRepo:  roomRepo,
		publisher: publisherOrNoop(publisher),
	}
}

// CharacterInput 是创建房间时附带的角色设定
type CharacterInput struct {
	Name        string
	Description string
}

// CreateRoomInput 是创建房间的参数。为 0 的限制使用默认值。
type CreateRoomInput struct {
	Title         string
	BasePlot      string
	TurnTimeLimit int
	WordLimit     int
	TotalTurns    int
	Characters    []CharacterInput
}

// RoomView 是返回给客户端的房间快照，附带计算出的当前写作者。
type RoomView struct {
	*domain.Room
	CurrentWriterID string `json:"currentWriterId,omitempty"`
}

// CreateRoom 创建房间，创建者成为 LEADER。房间、队长和角色在同一个事务中写入。
func (s *RoomService) CreateRoom(ctx context.Context, leaderID string, in CreateRoomInput) (*domain.Room, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": leaderID, "operation": "create_room"})

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	turnTimeLimit, err := limitOrDefault("turnTimeLimit", in.TurnTimeLimit, domain.DefaultTurnTimeLimit, domain.MaxTurnTimeLimit)
	if err != nil {
		return nil, err
	}
	wordLimit, err := limitOrDefault("wordLimit", in.WordLimit, domain.DefaultWordLimit, domain.MaxWordLimit)
	if err != nil {
		return nil, err
	}
	totalTurns, err := limitOrDefault("totalTurns", in.TotalTurns, domain.DefaultTotalTurns, domain.MaxTotalTurns)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	room := &domain.Room{
		ID:            uuid.NewString(),
		Title:         title,
		BasePlot:      in.BasePlot,
		Status:        domain.RoomStatusWaiting,
		TurnTimeLimit: turnTimeLimit,
		WordLimit:     wordLimit,
		TotalTurns:    totalTurns,
	}
	leader, err := domain.NewMember(uuid.NewString(), room.ID, leaderID, domain.RoleLeader, now)
	if err != nil {
		logCtx.WithError(err).Error("Failed to build leader member")
		return nil, ErrInternalServer
	}
	characters := make([]domain.Character, 0, len(in.Characters))
	for _, c := range in.Characters {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: character name is required", ErrValidation)
		}
		characters = append(characters, domain.Character{
			ID:          uuid.NewString(),
			RoomID:      room.ID,
			Name:        name,
			Description: c.Description,
		})
	}

	if err := s.roomRepo.CreateWithLeader(ctx, room, leader, characters); err != nil {
		logCtx.WithError(err).Error("Failed to create room")
		return nil, ErrInternalServer
	}

	room.Members = []domain.Member{*leader}
	room.Characters = characters
	logCtx.WithField("room_id", room.ID).Info("Room created successfully")
	return room, nil
}

func limitOrDefault(field string, v, def, upper int) (int, error) {
	switch {
	case v < 0:
		return 0, fmt.Errorf("%w: %s must not be negative", ErrValidation, field)
	case v > upper:
		return 0, fmt.Errorf("%w: %s must be at most %d", ErrValidation, field, upper)
	case v == 0:
		return def, nil
	default:
		return v, nil
	}
}

// JoinRoom 让用户以 WRITER 身份加入房间。房间状态不做限制，active 房间中加入的写作者排在轮转末尾。
func (s *RoomService) JoinRoom(ctx context.Context, roomID, userID string) (*domain.Member, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "user_id": userID, "operation": "join_room"})

	room, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		logCtx.WithError(err).Error("Failed to load room")
		return nil, ErrInternalServer
	}

	if _, err := s.roomRepo.FindMember(ctx, roomID, userID); err == nil {
		return nil, ErrAlreadyJoined
	} else if !errors.Is(err, repository.ErrMemberNotFound) {
		logCtx.WithError(err).Error("Failed to check membership")
		return nil, ErrInternalServer
	}

	now := s.Now()
	member, err := domain.NewMember(uuid.NewString(), roomID, userID, domain.RoleWriter, now)
	if err != nil {
		logCtx.WithError(err).Error("Failed to build member")
		return nil, ErrInternalServer
	}
	if err := s.roomRepo.AddMember(ctx, member); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			return nil, ErrAlreadyJoined
		}
		logCtx.WithError(err).Error("Failed to add member")
		return nil, ErrInternalServer
	}

	if room.Status == domain.RoomStatusActive {
		logCtx.Warn("Writer joined an active room, turn rotation changes from the next turn")
	} else {
		logCtx.Info("User joined room")
	}
	publishAfterCommit(ctx, s.publisher, domain.NewRoomEvent(domain.EventMemberJoined, room, userID, now))
	return member, nil
}

// GetRoom 返回房间完整快照，只有成员可以查看。
func (s *RoomService) GetRoom(ctx context.Context, roomID, userID string) (*RoomView, error) {
	room, err := s.roomRepo.FindDetailByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		logrus.WithField("room_id", roomID).WithError(err).Error("Failed to load room detail")
		return nil, ErrInternalServer
	}

	isMember := false
	for _, m := range room.Members {
		if m.UserID == userID {
			isMember = true
			break
		}
	}
	if !isMember {
		return nil, ErrNotMember
	}
	return newRoomView(room), nil
}

// GetPublicStory 返回已公开房间的只读视图。
func (s *RoomService) GetPublicStory(ctx context.Context, slug string) (*RoomView, error) {
	room, err := s.roomRepo.FindDetailBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrStoryNotFound
		}
		logrus.WithField("slug", slug).WithError(err).Error("Failed to load public story")
		return nil, ErrInternalServer
	}
	if !room.IsPublic {
		return nil, ErrStoryNotPublic
	}
	return newRoomView(room), nil
}

// newRoomView 去掉成员与回合中的用户隐私字段，并计算当前写作者。
func newRoomView(room *domain.Room) *RoomView {
	for i := range room.Members {
		room.Members[i].User = publicProfile(room.Members[i].User)
	}
	for i := range room.Turns {
		room.Turns[i].User = publicProfile(room.Turns[i].User)
	}

	view := &RoomView{Room: room}
	if room.Status == domain.RoomStatusActive {
		if w, err := domain.CurrentWriter(room, domain.Writers(room.Members)); err == nil {
			view.CurrentWriterID = w.UserID
		}
	}
	return view
}

func publicProfile(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	return &domain.User{ID: u.ID, Name: u.Name, Avatar: u.Avatar}
}

// StartRoom 开始房间（waiting -> active）。对 active 房间重复调用会重置当前回合的计时。
func (s *RoomService) StartRoom(ctx context.Context, roomID, userID string) (*domain.Room, error) {
	return s.transition(ctx, roomID, userID, "start_room", func(tx repository.RoomTx, room *domain.Room) (domain.RoomEventType, error) {
		if err := room.Start(s.Now()); err != nil {
			return "", err
		}
		return domain.EventRoomStarted, nil
	})
}

// FinishRoom 结束房间（active -> finished）并分配公开 slug。已结束的房间原样返回。
func (s *RoomService) FinishRoom(ctx context.Context, roomID, userID string) (*domain.Room, error) {
	return s.transition(ctx, roomID, userID, "finish_room", func(tx repository.RoomTx, room *domain.Room) (domain.RoomEventType, error) {
		switch room.Status {
		case domain.RoomStatusFinished:
			return "", nil
		case domain.RoomStatusActive:
		default:
			return "", ErrInvalidTransition
		}

		slug, err := s.generateUniqueSlug(ctx, tx, room.Title)
		if err != nil {
			return "", err
		}
		if _, err := room.Finish(s.Now(), slug); err != nil {
			return "", err
		}
		return domain.EventRoomFinished, nil
	})
}

// PublishRoom 将已结束的房间设为公开，状态不变。
func (s *RoomService) PublishRoom(ctx context.Context, roomID, userID string) (*domain.Room, error) {
	return s.transition(ctx, roomID, userID, "publish_room", func(tx repository.RoomTx, room *domain.Room) (domain.RoomEventType, error) {
		if room.IsPublic {
			return "", nil
		}
		if err := room.Publish(); err != nil {
			return "", err
		}
		return domain.EventRoomPublished, nil
	})
}

// transition 在事务中锁定房间、校验队长权限后执行 apply。
// apply 返回空事件类型表示没有变化，不写库也不发布事件。
func (s *RoomService) transition(
	ctx context.Context,
	roomID, userID, operation string,
	apply func(tx repository.RoomTx, room *domain.Room) (domain.RoomEventType, error),
) (*domain.Room, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "user_id": userID, "operation": operation})

	var (
		result    *domain.Room
		eventType domain.RoomEventType
	)
	err := s.roomRepo.Atomic(ctx, func(tx repository.RoomTx) error {
		room, err := tx.LockByID(ctx, roomID)
		if err != nil {
			return err
		}
		if err := requireCapability(ctx, tx, roomID, userID, domain.CapManageRoom); err != nil {
			return err
		}
		eventType, err = apply(tx, room)
		if err != nil {
			return err
		}
		if eventType != "" {
			if err := tx.UpdateLifecycle(ctx, room); err != nil {
				return fmt.Errorf("update room lifecycle: %w", err)
			}
		}
		result = room
		return nil
	})
	if err != nil {
		return nil, translateTxError(logCtx, err)
	}

	if eventType == "" {
		logCtx.WithField("status", result.Status).Info("Room transition was a no-op")
		return result, nil
	}
	logCtx.WithField("status", result.Status).Info("Room transition applied")
	publishAfterCommit(ctx, s.publisher, domain.NewRoomEvent(eventType, result, userID, s.Now()))
	return result, nil
}

// generateUniqueSlug 生成一个尚未被占用的公开 slug
func (s *RoomService) generateUniqueSlug(ctx context.Context, tx repository.RoomTx, title string) (string, error) {
	for attempt := 0; attempt < maxSlugAttempts; attempt++ {
		slug, err := domain.NewPublicSlug(title)
		if err != nil {
			return "", err
		}
		exists, err := tx.IsSlugExists(ctx, slug)
		if err != nil {
			return "", fmt.Errorf("database error checking slug: %w", err)
		}
		if !exists {
			return slug, nil
		}
		logrus.WithField("slug", slug).Warnf("Generated slug already exists, retrying (attempt %d)...", attempt+1)
	}
	return "", fmt.Errorf("failed to generate a unique slug after %d attempts", maxSlugAttempts)
}
