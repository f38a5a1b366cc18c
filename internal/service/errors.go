package service

import (
	"errors"

	"story-relay/internal/domain"
	"story-relay/internal/repository"

	"github.com/sirupsen/logrus"
)

var (
	ErrValidation           = errors.New("invalid input")
	ErrAuthenticationFailed = errors.New("invalid credentials")
	ErrUnauthorized         = errors.New("invalid or revoked session")
	ErrForbidden            = errors.New("forbidden")
	ErrNotMember            = errors.New("not a member of this room")
	ErrUserNotFound         = errors.New("user not found")
	ErrRoomNotFound         = errors.New("room not found")
	ErrStoryNotFound        = errors.New("story not found")
	ErrStoryNotPublic       = errors.New("this story is not public yet")
	ErrDocumentNotFound     = errors.New("document not found")
	ErrAlreadyJoined        = errors.New("already joined this room")
	ErrEmailTaken           = errors.New("email already registered")
	ErrTurnConflict         = errors.New("turn state changed concurrently, retry")
	ErrGoogleNotConfigured  = errors.New("google sign-in is not configured")
	ErrInternalServer       = errors.New("internal server error")
)

// 回合规则错误直接沿用 domain 中的定义
var (
	ErrNoWriters         = domain.ErrNoWriters
	ErrNotYourTurn       = domain.ErrNotYourTurn
	ErrWordLimitExceeded = domain.ErrWordLimitExceeded
	ErrRoomNotActive     = domain.ErrRoomNotActive
	ErrInvalidTransition = domain.ErrInvalidTransition
)

// isDomainError 报告 err 是否是应当原样返回给调用方的业务错误。
func isDomainError(err error) bool {
	for _, target := range []error{
		ErrNoWriters, ErrNotYourTurn, ErrWordLimitExceeded, ErrRoomNotActive, ErrInvalidTransition,
		ErrValidation, ErrForbidden, ErrNotMember, ErrRoomNotFound, ErrAlreadyJoined, ErrTurnConflict,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// translateTxError 将事务中返回的错误转换为 service 层错误，并记录非业务错误。
func translateTxError(logCtx *logrus.Entry, err error) error {
	switch {
	case isDomainError(err):
		logCtx.WithError(err).Warn("Operation rejected")
		return err
	case errors.Is(err, repository.ErrNotFound):
		return ErrRoomNotFound
	case errors.Is(err, repository.ErrStaleWrite), errors.Is(err, repository.ErrDuplicateEntry):
		logCtx.WithError(err).Warn("Concurrent turn advancement detected")
		return ErrTurnConflict
	default:
		logCtx.WithError(err).Error("Room transaction failed")
		return ErrInternalServer
	}
}
