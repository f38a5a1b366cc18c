package http

import (
	"net/http"

	"story-relay/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func ErrorResponse(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"error": message})
}

func SuccessResponse(c *gin.Context, code int, data interface{}) {
	c.JSON(code, data)
}

// bindJSON 解析请求体，失败时直接写入 400
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		logrus.WithError(err).WithField("path", c.FullPath()).Warn("Invalid request body")
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return false
	}
	return true
}

// currentUserID 读取 Auth 中间件写入的用户 ID，缺失时写入 401
func currentUserID(c *gin.Context) (string, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		logrus.WithField("path", c.FullPath()).Warn("User ID not found in context, middleware missing or failed?")
		ErrorResponse(c, http.StatusUnauthorized, "User not authenticated")
	}
	return userID, ok
}
