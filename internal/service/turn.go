package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"story-relay/internal/domain"
	"story-relay/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// sweepBatchSize 是单次扫描处理的房间上限，剩余的留给下一轮。
const sweepBatchSize = 500

// TurnService 负责回合的提交、跳过以及超时自动跳过。
// 所有推进回合的操作都在事务内锁定房间行、重新校验前置条件后再写入。
type TurnService struct {
	clock
	roomRepo  repository.RoomRepository
	publisher repository.RoomEventPublisher
}

// NewTurnService 创建 TurnService 实例。publisher 可以为 nil。
func NewTurnService(roomRepo repository.RoomRepository, publisher repository.RoomEventPublisher) *TurnService {
	if roomRepo == nil {
		panic("RoomRepository cannot be nil for TurnService")
	}
	return &TurnService{
		roomRepo:  roomRepo,
		publisher: publisherOrNoop(publisher),
	}
}

// SubmitTurn 由当前写作者提交一段内容并推进到下一回合，返回创建的 Turn。
func (s *TurnService) SubmitTurn(ctx context.Context, roomID, userID, content string) (*domain.Turn, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "user_id": userID, "operation": "submit_turn"})

	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: content is required", ErrValidation)
	}

	var (
		turn  *domain.Turn
		event domain.RoomEvent
	)
	err := s.roomRepo.Atomic(ctx, func(tx repository.RoomTx) error {
		room, err := tx.LockByID(ctx, roomID)
		if err != nil {
			return err
		}
		writers, err := tx.ListWriters(ctx, roomID)
		if err != nil {
			return fmt.Errorf("list writers: %w", err)
		}

		next, err := domain.ValidateSubmission(room, writers, userID, content)
		if err != nil {
			return err
		}

		now := s.Now()
		next.ID = uuid.NewString()
		next.CreatedAt = now
		if err := tx.CreateTurn(ctx, next); err != nil {
			return fmt.Errorf("create turn: %w", err)
		}

		expected := room.CurrentTurnIndex
		room.AdvanceTurn(now)
		if err := tx.UpdateTurnState(ctx, room, expected); err != nil {
			return fmt.Errorf("advance turn: %w", err)
		}

		turn = next
		event = domain.NewRoomEvent(domain.EventTurnSubmitted, room, userID, now)
		return nil
	})
	if err != nil {
		return nil, translateTxError(logCtx, err)
	}

	logCtx.WithField("turn_order", turn.TurnOrder).Info("Turn submitted")
	publishAfterCommit(ctx, s.publisher, event)
	return turn, nil
}

// SkipTurn 由队长跳过当前回合，不创建 Turn 记录。
func (s *TurnService) SkipTurn(ctx context.Context, roomID, requesterID string) (*domain.Room, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "user_id": requesterID, "operation": "skip_turn"})

	var (
		result *domain.Room
		event  domain.RoomEvent
	)
	err := s.roomRepo.Atomic(ctx, func(tx repository.RoomTx) error {
		room, err := tx.LockByID(ctx, roomID)
		if err != nil {
			return err
		}
		if err := requireCapability(ctx, tx, roomID, requesterID, domain.CapManageRoom); err != nil {
			return err
		}
		if room.Status != domain.RoomStatusActive {
			return ErrRoomNotActive
		}

		now := s.Now()
		expected := room.CurrentTurnIndex
		room.AdvanceTurn(now)
		if err := tx.UpdateTurnState(ctx, room, expected); err != nil {
			return fmt.Errorf("advance turn: %w", err)
		}
		result = room
		event = domain.NewRoomEvent(domain.EventTurnSkipped, room, requesterID, now)
		return nil
	})
	if err != nil {
		return nil, translateTxError(logCtx, err)
	}

	logCtx.WithField("turn_index", result.CurrentTurnIndex).Info("Turn skipped by leader")
	publishAfterCommit(ctx, s.publisher, event)
	return result, nil
}

// SweepResult 汇总一轮超时扫描的结果。
type SweepResult struct {
	Candidates int // 查询命中的房间数
	Advanced   int // 实际被自动跳过的房间数
	Skipped    int // 重检时发现已被其他操作推进的房间数
	Failed     int
}

// SweepExpiredTurns 查找回合已超时的 active 房间并逐个自动跳过。
// 单个房间失败只记录日志，不会中断其余房间的处理；只有候选查询失败时返回错误。
func (s *TurnService) SweepExpiredTurns(ctx context.Context) (SweepResult, error) {
	now := s.Now()
	logCtx := logrus.WithField("operation", "sweep_expired_turns")

	candidates, err := s.roomRepo.FindExpiredActive(ctx, now, sweepBatchSize)
	if err != nil {
		logCtx.WithError(err).Error("Failed to query rooms with expired turns")
		return SweepResult{}, fmt.Errorf("query expired rooms: %w", err)
	}

	result := SweepResult{Candidates: len(candidates)}
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		roomLog := logCtx.WithField("room_id", candidate.ID)

		event, advanced, err := s.expireTurn(ctx, candidate.ID, now)
		switch {
		case err != nil:
			result.Failed++
			roomLog.WithError(err).Error("Failed to auto-skip expired turn")
		case !advanced:
			result.Skipped++
			roomLog.Debug("Room already advanced before recheck, skipping")
		default:
			result.Advanced++
			roomLog.WithFields(logrus.Fields{
				"expired_at": candidate.TurnEndsAt,
				"turn_index": event.CurrentTurnIndex,
			}).Info("Expired turn auto-skipped")
			publishAfterCommit(ctx, s.publisher, event)
		}
	}

	if result.Candidates > 0 {
		logCtx.WithFields(logrus.Fields{
			"candidates": result.Candidates,
			"advanced":   result.Advanced,
			"skipped":    result.Skipped,
			"failed":     result.Failed,
		}).Info("Expired turn sweep finished")
	}
	return result, nil
}

// expireTurn 在事务内重新读取房间，确认回合仍然超时后才推进。
func (s *TurnService) expireTurn(ctx context.Context, roomID string, now time.Time) (domain.RoomEvent, bool, error) {
	var (
		event    domain.RoomEvent
		advanced bool
	)
	err := s.roomRepo.Atomic(ctx, func(tx repository.RoomTx) error {
		room, err := tx.LockByID(ctx, roomID)
		if err != nil {
			return err
		}
		if !room.IsTurnExpired(now) {
			return nil
		}
		expected := room.CurrentTurnIndex
		room.AdvanceTurn(now)
		if err := tx.UpdateTurnState(ctx, room, expected); err != nil {
			return err
		}
		event = domain.NewRoomEvent(domain.EventTurnExpired, room, "", now)
		advanced = true
		return nil
	})
	if errors.Is(err, repository.ErrStaleWrite) || errors.Is(err, repository.ErrRoomNotFound) {
		// 回合已被其他写入者推进，或房间已不存在
		return event, false, nil
	}
	return event, advanced, err
}

// requireCapability 在事务内校验请求者是房间成员且具备指定能力。
func requireCapability(ctx context.Context, tx repository.RoomTx, roomID, userID string, c domain.Capability) error {
	member, err := tx.FindMember(ctx, roomID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrMemberNotFound) {
			return fmt.Errorf("%w: only the room leader can do this", ErrForbidden)
		}
		return fmt.Errorf("find member: %w", err)
	}
	if !member.Role.Can(c) {
		return fmt.Errorf("%w: only the room leader can do this", ErrForbidden)
	}
	return nil
}
