package http

import (
	"net/http"

	"story-relay/internal/service"

	"github.com/gin-gonic/gin"
)

// DocumentHandler 提供个人文档的 CRUD 接口，响应体直接是文档对象
type DocumentHandler struct {
	docService *service.DocumentService
}

// NewDocumentHandler 创建 DocumentHandler 实例
func NewDocumentHandler(docService *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{docService: docService}
}

// CreateDocumentRequest 定义创建文档请求体
type CreateDocumentRequest struct {
	Title string `json:"title"`
}

// UpdateDocumentRequest 缺省的字段保持不变
type UpdateDocumentRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

// CreateDocument 创建空文档
func (h *DocumentHandler) CreateDocument(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req CreateDocumentRequest
	// 请求体可以为空
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	doc, err := h.docService.CreateDocument(c.Request.Context(), userID, req.Title)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, doc)
}

// ListDocuments 列出当前用户的文档
func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	docs, err := h.docService.ListDocuments(c.Request.Context(), userID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, docs)
}

// GetDocument 返回单个文档
func (h *DocumentHandler) GetDocument(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	doc, err := h.docService.GetDocument(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, doc)
}

// UpdateDocument 自动保存入口
func (h *DocumentHandler) UpdateDocument(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req UpdateDocumentRequest
	if !bindJSON(c, &req) {
		return
	}
	doc, err := h.docService.UpdateDocument(c.Request.Context(), c.Param("id"), userID, service.DocumentUpdate{
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, doc)
}

// DeleteDocument 删除文档
func (h *DocumentHandler) DeleteDocument(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.docService.DeleteDocument(c.Request.Context(), c.Param("id"), userID); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"ok": true})
}
