package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"story-relay/internal/domain"
	"story-relay/internal/repository"
)

// GormDocumentRepository 是 DocumentRepository 接口的 GORM 实现
type GormDocumentRepository struct {
	db *gorm.DB
}

// NewGormDocumentRepository 创建 GormDocumentRepository 实例
func NewGormDocumentRepository(db *gorm.DB) *GormDocumentRepository {
	if db == nil {
		panic("database connection cannot be nil for GormDocumentRepository")
	}
	return &GormDocumentRepository{db: db}
}

var _ repository.DocumentRepository = (*GormDocumentRepository)(nil)

func (r *GormDocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(doc).Error; err != nil {
		return fmt.Errorf("gorm: create document for owner %s: %w", doc.OwnerID, err)
	}
	return nil
}

func (r *GormDocumentRepository) FindByID(ctx context.Context, id string) (*domain.Document, error) {
	var doc domain.Document
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("gorm: find document by id %s: %w", id, err)
	}
	return &doc, nil
}

// ListByOwner 最近更新的文档在前
func (r *GormDocumentRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Document, error) {
	docs := []domain.Document{}
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("updated_at DESC").
		Find(&docs).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list documents of owner %s: %w", ownerID, err)
	}
	return docs, nil
}

func (r *GormDocumentRepository) Update(ctx context.Context, doc *domain.Document) error {
	result := r.db.WithContext(ctx).
		Model(doc).
		Updates(map[string]interface{}{"title": doc.Title, "content": doc.Content})
	if result.Error != nil {
		return fmt.Errorf("gorm: update document %s: %w", doc.ID, result.Error)
	}
	return nil
}

func (r *GormDocumentRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Document{})
	if result.Error != nil {
		return fmt.Errorf("gorm: delete document %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrDocumentNotFound
	}
	return nil
}
