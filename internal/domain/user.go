// Package domain 定义了持久化记录以及不依赖存储的故事接龙规则。
package domain

import "time"

// User 表示平台上的一个账号，可以通过密码或 Google 登录。
type User struct {
	ID               string    `gorm:"primaryKey;size:36" json:"id"`
	Name             string    `gorm:"size:100" json:"name"`
	Email            string    `gorm:"type:varchar(191);uniqueIndex:idx_users_email;not null" json:"email,omitempty"`
	Password         string    `gorm:"type:text" json:"-"`                                  // bcrypt 哈希，Google 账号为空
	GoogleID         *string   `gorm:"type:varchar(191);uniqueIndex:idx_users_google_id" json:"googleId,omitempty"`
	Avatar           string    `gorm:"size:512" json:"avatar,omitempty"`
	RefreshTokenHash string    `gorm:"type:text" json:"-"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 固定表名
func (User) TableName() string { return "users" }

// HasPassword 报告该账号能否使用密码登录。
func (u *User) HasPassword() bool {
	return u.Password != ""
}

// GoogleIdentity 是校验 Google ID token 之后得到的身份信息。
type GoogleIdentity struct {
	Subject string
	Email   string
	Name    string
	Picture string
}
