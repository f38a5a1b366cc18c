package domain

import "time"

// DefaultDocumentTitle 是未提供标题时新文档使用的标题
const DefaultDocumentTitle = "Untitled Document"

// Document 是用户私有的单人文档，只有所有者可以读写。
type Document struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	OwnerID   string    `gorm:"size:36;not null;index:idx_documents_owner_updated,priority:1" json:"ownerId"`
	Title     string    `gorm:"size:200;not null" json:"title"`
	Content   string    `gorm:"type:text" json:"content"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;index:idx_documents_owner_updated,priority:2" json:"updatedAt"`

	Owner *User `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName 固定表名
func (Document) TableName() string { return "documents" }

// OwnedBy 报告文档是否属于 userID
func (d *Document) OwnedBy(userID string) bool {
	return userID != "" && d.OwnerID == userID
}
