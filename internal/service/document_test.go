package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"story-relay/internal/domain"
	"story-relay/internal/repository"
	"story-relay/internal/repository/mocks"
	"story-relay/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestDocumentService_CreateDocument(t *testing.T) {
	tests := []struct {
		name      string
		title     string
		wantTitle string
	}{
		{"default title", "   ", domain.DefaultDocumentTitle},
		{"trimmed title", "  Notes  ", "Notes"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := mocks.NewDocumentRepository(t)
			svc := service.NewDocumentService(repo)
			repo.On("Create", mock.Anything, mock.MatchedBy(func(d *domain.Document) bool {
				return d.OwnerID == "u1" && d.Title == tc.wantTitle && d.ID != "" && d.Content == ""
			})).Return(nil).Once()

			doc, err := svc.CreateDocument(context.Background(), "u1", tc.title)
			require.NoError(t, err)
			assert.Equal(t, tc.wantTitle, doc.Title)
		})
	}
}

func TestDocumentService_CreateDocument_Errors(t *testing.T) {
	repo := mocks.NewDocumentRepository(t)
	svc := service.NewDocumentService(repo)

	_, err := svc.CreateDocument(context.Background(), "u1", strings.Repeat("x", 201))
	assert.ErrorIs(t, err, service.ErrValidation)

	repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("db down")).Once()
	_, err = svc.CreateDocument(context.Background(), "u1", "ok")
	assert.ErrorIs(t, err, service.ErrInternalServer)
}

func TestDocumentService_OwnerChecks(t *testing.T) {
	ctx := context.Background()
	doc := &domain.Document{ID: "d1", OwnerID: "owner", Title: "Draft"}

	t.Run("missing document", func(t *testing.T) {
		repo := mocks.NewDocumentRepository(t)
		repo.On("FindByID", mock.Anything, "nope").Return(nil, repository.ErrDocumentNotFound).Once()
		_, err := service.NewDocumentService(repo).GetDocument(ctx, "nope", "owner")
		assert.ErrorIs(t, err, service.ErrDocumentNotFound)
	})

	t.Run("other user cannot read, update or delete", func(t *testing.T) {
		repo := mocks.NewDocumentRepository(t)
		repo.On("FindByID", mock.Anything, "d1").Return(doc, nil).Times(3)
		svc := service.NewDocumentService(repo)

		_, err := svc.GetDocument(ctx, "d1", "intruder")
		assert.ErrorIs(t, err, service.ErrForbidden)
		_, err = svc.UpdateDocument(ctx, "d1", "intruder", service.DocumentUpdate{Content: strPtr("x")})
		assert.ErrorIs(t, err, service.ErrForbidden)
		assert.ErrorIs(t, svc.DeleteDocument(ctx, "d1", "intruder"), service.ErrForbidden)
	})

	t.Run("owner reads", func(t *testing.T) {
		repo := mocks.NewDocumentRepository(t)
		repo.On("FindByID", mock.Anything, "d1").Return(doc, nil).Once()
		got, err := service.NewDocumentService(repo).GetDocument(ctx, "d1", "owner")
		require.NoError(t, err)
		assert.Equal(t, "Draft", got.Title)
	})
}

func TestDocumentService_UpdateDocument_Partial(t *testing.T) {
	repo := mocks.NewDocumentRepository(t)
	svc := service.NewDocumentService(repo)
	ctx := context.Background()

	repo.On("FindByID", mock.Anything, "d1").
		Return(&domain.Document{ID: "d1", OwnerID: "owner", Title: "Draft", Content: "old"}, nil).Once()
	repo.On("Update", mock.Anything, mock.MatchedBy(func(d *domain.Document) bool {
		return d.Title == "Draft" && d.Content == "<p>new</p>"
	})).Return(nil).Once()

	doc, err := svc.UpdateDocument(ctx, "d1", "owner", service.DocumentUpdate{Content: strPtr("<p>new</p>")})
	require.NoError(t, err)
	assert.Equal(t, "Draft", doc.Title)
	assert.Equal(t, "<p>new</p>", doc.Content)
}

func TestDocumentService_DeleteDocument(t *testing.T) {
	repo := mocks.NewDocumentRepository(t)
	svc := service.NewDocumentService(repo)

	repo.On("FindByID", mock.Anything, "d1").Return(&domain.Document{ID: "d1", OwnerID: "owner"}, nil).Once()
	repo.On("Delete", mock.Anything, "d1").Return(nil).Once()
	assert.NoError(t, svc.DeleteDocument(context.Background(), "d1", "owner"))
}

func TestDocumentService_ListDocuments(t *testing.T) {
	repo := mocks.NewDocumentRepository(t)
	repo.On("ListByOwner", mock.Anything, "owner").
		Return([]domain.Document{{ID: "d2"}, {ID: "d1"}}, nil).Once()

	docs, err := service.NewDocumentService(repo).ListDocuments(context.Background(), "owner")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "d2", docs[0].ID)
}
