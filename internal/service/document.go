package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"story-relay/internal/domain"
	"story-relay/internal/repository"
)

// maxDocumentTitleLength 与 documents.title 列宽一致
const maxDocumentTitleLength = 200

// DocumentService 管理用户的私有文档，所有读写都要求是所有者
type DocumentService struct {
	docRepo repository.DocumentRepository
}

// NewDocumentService 创建 DocumentService 实例
func NewDocumentService(docRepo repository.DocumentRepository) *DocumentService {
	if docRepo == nil {
		panic("DocumentRepository cannot be nil for DocumentService")
	}
	return &DocumentService{docRepo: docRepo}
}

// DocumentUpdate 是部分更新，nil 字段保持不变
type DocumentUpdate struct {
	Title   *string
	Content *string
}

// CreateDocument 创建空文档，标题为空时使用默认标题
func (s *DocumentService) CreateDocument(ctx context.Context, ownerID, title string) (*domain.Document, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": ownerID, "operation": "create_document"})

	title, err := normalizeDocumentTitle(title)
	if err != nil {
		return nil, err
	}
	doc := &domain.Document{
		ID:      uuid.NewString(),
		OwnerID: ownerID,
		Title:   title,
	}
	if err := s.docRepo.Create(ctx, doc); err != nil {
		logCtx.WithError(err).Error("Failed to create document")
		return nil, ErrInternalServer
	}
	logCtx.WithField("document_id", doc.ID).Info("Document created")
	return doc, nil
}

// ListDocuments 返回用户自己的文档，最近更新的在前
func (s *DocumentService) ListDocuments(ctx context.Context, ownerID string) ([]domain.Document, error) {
	docs, err := s.docRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		logrus.WithField("user_id", ownerID).WithError(err).Error("Failed to list documents")
		return nil, ErrInternalServer
	}
	return docs, nil
}

// GetDocument 返回文档，非所有者得到 ErrForbidden
func (s *DocumentService) GetDocument(ctx context.Context, docID, userID string) (*domain.Document, error) {
	return s.ownedDocument(ctx, docID, userID, "get_document")
}

// UpdateDocument 更新标题和/或正文
func (s *DocumentService) UpdateDocument(ctx context.Context, docID, userID string, in DocumentUpdate) (*domain.Document, error) {
	doc, err := s.ownedDocument(ctx, docID, userID, "update_document")
	if err != nil {
		return nil, err
	}
	if in.Title != nil {
		if doc.Title, err = normalizeDocumentTitle(*in.Title); err != nil {
			return nil, err
		}
	}
	if in.Content != nil {
		doc.Content = *in.Content
	}
	if err := s.docRepo.Update(ctx, doc); err != nil {
		logrus.WithFields(logrus.Fields{"document_id": docID, "user_id": userID}).WithError(err).Error("Failed to update document")
		return nil, ErrInternalServer
	}
	return doc, nil
}

// DeleteDocument 永久删除文档
func (s *DocumentService) DeleteDocument(ctx context.Context, docID, userID string) error {
	if _, err := s.ownedDocument(ctx, docID, userID, "delete_document"); err != nil {
		return err
	}
	if err := s.docRepo.Delete(ctx, docID); err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			return ErrDocumentNotFound
		}
		logrus.WithFields(logrus.Fields{"document_id": docID, "user_id": userID}).WithError(err).Error("Failed to delete document")
		return ErrInternalServer
	}
	logrus.WithFields(logrus.Fields{"document_id": docID, "user_id": userID}).Info("Document deleted")
	return nil
}

func (s *DocumentService) ownedDocument(ctx context.Context, docID, userID, operation string) (*domain.Document, error) {
	logCtx := logrus.WithFields(logrus.Fields{"document_id": docID, "user_id": userID, "operation": operation})

	doc, err := s.docRepo.FindByID(ctx, docID)
	if err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			return nil, ErrDocumentNotFound
		}
		logCtx.WithError(err).Error("Failed to load document")
		return nil, ErrInternalServer
	}
	if !doc.OwnedBy(userID) {
		logCtx.Warn("Document access denied: not the owner")
		return nil, fmt.Errorf("%w: access denied", ErrForbidden)
	}
	return doc, nil
}

func normalizeDocumentTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.DefaultDocumentTitle, nil
	}
	if utf8.RuneCountInString(title) > maxDocumentTitleLength {
		return "", fmt.Errorf("%w: title must be at most %d characters", ErrValidation, maxDocumentTitleLength)
	}
	return title, nil
}
