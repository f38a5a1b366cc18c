package repository

import (
	"context"

	"story-relay/internal/domain"
)

//go:generate mockery --name=UserRepository --output=./mocks --filename=user_repository.go

// UserRepository 定义了用户数据的存储和检索操作。
type UserRepository interface {
	// FindByEmail 根据邮箱（已小写）查找用户，不存在时返回 ErrUserNotFound。
	FindByEmail(ctx context.Context, email string) (*domain.User, error)

	// FindByID 根据用户 ID 查找用户，不存在时返回 ErrUserNotFound。
	FindByID(ctx context.Context, id string) (*domain.User, error)

	// FindByEmailOrGoogleID 用于 Google 登录时关联已有账号。
	FindByEmailOrGoogleID(ctx context.Context, email, googleID string) (*domain.User, error)

	// Save 创建或更新用户，违反唯一约束时返回 ErrDuplicateEntry。
	Save(ctx context.Context, user *domain.User) error

	// UpdateRefreshTokenHash 覆盖保存的 refresh token 哈希，空字符串表示吊销。
	UpdateRefreshTokenHash(ctx context.Context, userID, hash string) error
}
