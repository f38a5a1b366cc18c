package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"story-relay/internal/domain"
	"story-relay/internal/repository"
)

// GormUserRepository 是 UserRepository 接口的 GORM 实现
type GormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository 创建 GormUserRepository 实例
func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	if db == nil {
		panic("database connection cannot be nil for GormUserRepository")
	}
	return &GormUserRepository{db: db}
}

var _ repository.UserRepository = (*GormUserRepository)(nil)

func (r *GormUserRepository) first(ctx context.Context, desc string, query interface{}, args ...interface{}) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).Where(query, args...).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrUserNotFound
		}
		return nil, fmt.Errorf("gorm: find user by %s: %w", desc, err)
	}
	return &user, nil
}

// FindByEmail 根据邮箱查找用户
func (r *GormUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.first(ctx, "email", "email = ?", email)
}

// FindByID 根据用户 ID 查找用户
func (r *GormUserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.first(ctx, "id", "id = ?", id)
}

// FindByEmailOrGoogleID 优先返回 Google ID 匹配的账号
func (r *GormUserRepository) FindByEmailOrGoogleID(ctx context.Context, email, googleID string) (*domain.User, error) {
	var users []domain.User
	err := r.db.WithContext(ctx).
		Where("email = ? OR google_id = ?", email, googleID).
		Limit(2).
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find user by email or google id: %w", err)
	}
	if len(users) == 0 {
		return nil, repository.ErrUserNotFound
	}
	for i := range users {
		if users[i].GoogleID != nil && *users[i].GoogleID == googleID {
			return &users[i], nil
		}
	}
	return &users[0], nil
}

// Save 创建或更新用户。CreatedAt 为零值时视为新用户，使用 INSERT，
// 避免 gorm Save 在更新不到行时退化为 upsert 覆盖同邮箱的其他账号。
func (r *GormUserRepository) Save(ctx context.Context, user *domain.User) error {
	db := r.db.WithContext(ctx)
	var err error
	if user.CreatedAt.IsZero() {
		err = db.Create(user).Error
	} else {
		err = db.Save(user).Error
	}
	if err != nil {
		if isDuplicateEntryError(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: save user (id: %s, email: %s): %w", user.ID, user.Email, err)
	}
	return nil
}

// UpdateRefreshTokenHash 只更新 refresh_token_hash 一列
func (r *GormUserRepository) UpdateRefreshTokenHash(ctx context.Context, userID, hash string) error {
	err := r.db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", userID).
		Update("refresh_token_hash", hash).Error
	if err != nil {
		return fmt.Errorf("gorm: update refresh token hash for user %s: %w", userID, err)
	}
	return nil
}
