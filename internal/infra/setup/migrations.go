package setup

import (
	"fmt"

	"story-relay/internal/domain"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// MigrateDB 使用 AutoMigrate 创建或更新所有表及索引。
func MigrateDB(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("cannot migrate database with nil DB connection")
	}

	// 顺序决定外键创建的先后
	if err := db.AutoMigrate(
		&domain.User{},
		&domain.Room{},
		&domain.Member{},
		&domain.Turn{},
		&domain.Character{},
		&domain.Document{},
	); err != nil {
		logrus.Errorf("Failed to auto-migrate tables: %v", err)
		return fmt.Errorf("failed to auto-migrate tables: %w", err)
	}

	logrus.Info("Database migration completed successfully")
	return nil
}
