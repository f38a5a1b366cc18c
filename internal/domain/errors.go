package domain

import "errors"

// 回合与生命周期规则的错误
var (
	ErrNoWriters         = errors.New("no writers in room")
	ErrNotYourTurn       = errors.New("not your turn")
	ErrWordLimitExceeded = errors.New("word limit exceeded")
	ErrRoomNotActive     = errors.New("room is not active")
	ErrInvalidTransition = errors.New("invalid room status transition")
	ErrInvalidRole       = errors.New("unknown member role")
)
