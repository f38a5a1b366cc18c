package gormpersistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"story-relay/internal/domain"
)

// 未知角色在访问数据库之前就被拒绝
func TestGormRoomRepository_RejectsUnknownRole(t *testing.T) {
	repo := NewGormRoomRepository(&gorm.DB{})
	ctx := context.Background()
	bad := &domain.Member{ID: "m1", RoomID: "r1", UserID: "u1", Role: domain.Role("ADMIN"), JoinedAt: time.Now()}

	err := repo.AddMember(ctx, bad)
	assert.True(t, errors.Is(err, domain.ErrInvalidRole), "%v", err)

	err = repo.CreateWithLeader(ctx, &domain.Room{ID: "r1"}, bad, nil)
	assert.True(t, errors.Is(err, domain.ErrInvalidRole), "%v", err)
}
