package repository

import "errors"

// 通用的存储库错误
var (
	// ErrNotFound 表示请求的记录未找到
	ErrNotFound = errors.New("repository: record not found")
	// ErrDuplicateEntry 表示尝试插入或更新的数据违反了唯一约束
	ErrDuplicateEntry = errors.New("repository: duplicate entry")
	// ErrStaleWrite 表示条件更新没有命中任何行（读取之后状态已被其他事务推进）
	ErrStaleWrite = errors.New("repository: stale write")
)

// 特定资源的错误
var (
	ErrUserNotFound     = ErrNotFound
	ErrRoomNotFound     = ErrNotFound
	ErrMemberNotFound   = ErrNotFound
	ErrDocumentNotFound = ErrNotFound
)
