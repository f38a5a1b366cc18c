package http

import (
	"errors"
	"net/http"

	"story-relay/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// errorStatuses 按顺序匹配，先命中的生效
var errorStatuses = []struct {
	err    error
	status int
}{
	{service.ErrValidation, http.StatusBadRequest},
	{service.ErrNoWriters, http.StatusBadRequest},
	{service.ErrWordLimitExceeded, http.StatusBadRequest},
	{service.ErrRoomNotActive, http.StatusBadRequest},
	{service.ErrInvalidTransition, http.StatusBadRequest},
	{service.ErrGoogleNotConfigured, http.StatusBadRequest},
	{service.ErrAuthenticationFailed, http.StatusUnauthorized},
	{service.ErrUnauthorized, http.StatusUnauthorized},
	{service.ErrForbidden, http.StatusForbidden},
	{service.ErrNotMember, http.StatusForbidden},
	{service.ErrNotYourTurn, http.StatusForbidden},
	{service.ErrStoryNotPublic, http.StatusForbidden},
	{service.ErrRoomNotFound, http.StatusNotFound},
	{service.ErrUserNotFound, http.StatusNotFound},
	{service.ErrStoryNotFound, http.StatusNotFound},
	{service.ErrDocumentNotFound, http.StatusNotFound},
	{service.ErrAlreadyJoined, http.StatusConflict},
	{service.ErrEmailTaken, http.StatusConflict},
	{service.ErrTurnConflict, http.StatusConflict},
}

// HandleServiceError 将 service 层错误映射为 HTTP 状态码和 {"error": ...} 响应体。
// 未识别的错误一律返回 500，不向客户端暴露细节。
func HandleServiceError(c *gin.Context, err error) {
	for _, m := range errorStatuses {
		if errors.Is(err, m.err) {
			ErrorResponse(c, m.status, err.Error())
			return
		}
	}
	logrus.WithError(err).WithField("path", c.FullPath()).Error("Unhandled internal server error")
	ErrorResponse(c, http.StatusInternalServerError, "An unexpected error occurred")
}
