package repository

import (
	"context"

	"story-relay/internal/domain"
)

//go:generate mockery --name=DocumentRepository --output=./mocks --filename=document_repository.go

// DocumentRepository 定义了个人文档的存储操作。
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error

	// FindByID 不存在时返回 ErrDocumentNotFound。
	FindByID(ctx context.Context, id string) (*domain.Document, error)

	// ListByOwner 按 updatedAt 倒序返回用户的全部文档。
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Document, error)

	// Update 只写入 title 和 content 两列。
	Update(ctx context.Context, doc *domain.Document) error

	// Delete 删除文档，不存在时返回 ErrDocumentNotFound。
	Delete(ctx context.Context, id string) error
}
