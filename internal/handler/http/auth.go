package http

import (
	"net/http"
	"time"

	"story-relay/internal/domain"
	"story-relay/internal/service"

	"github.com/gin-gonic/gin"
)

// RefreshCookieName 是保存 refresh token 的 http-only cookie 名
const RefreshCookieName = "jid"

// refreshCookiePath 限制 cookie 只随认证接口发送
const refreshCookiePath = "/api/auth"

// CookieConfig 控制 refresh token cookie 的属性
type CookieConfig struct {
	Domain string
	Secure bool
	MaxAge time.Duration
}

// AuthHandler 封装了与用户认证相关的 HTTP 处理逻辑
type AuthHandler struct {
	authService *service.AuthService
	cookie      CookieConfig
}

// NewAuthHandler 创建 AuthHandler 实例
func NewAuthHandler(authService *service.AuthService, cookie CookieConfig) *AuthHandler {
	return &AuthHandler{authService: authService, cookie: cookie}
}

// SignupRequest 定义注册请求体
type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest 定义登录请求体
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// GoogleLoginRequest 携带 Google Identity Services 返回的 credential
type GoogleLoginRequest struct {
	Credential string `json:"credential" binding:"required"`
}

// AuthResponse 是登录类接口的响应体，refresh token 只放在 cookie 中
type AuthResponse struct {
	AccessToken string       `json:"accessToken"`
	User        *domain.User `json:"user"`
}

// Signup 处理注册请求
func (h *AuthHandler) Signup(c *gin.Context) {
	var req SignupRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.authService.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	h.respondWithTokens(c, http.StatusCreated, result)
}

// Login 处理邮箱密码登录
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	h.respondWithTokens(c, http.StatusOK, result)
}

// Google 处理 Google 登录
func (h *AuthHandler) Google(c *gin.Context) {
	var req GoogleLoginRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.authService.GoogleLogin(c.Request.Context(), req.Credential)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	h.respondWithTokens(c, http.StatusOK, result)
}

// Refresh 用 cookie 中的 refresh token 换取新的令牌
func (h *AuthHandler) Refresh(c *gin.Context) {
	token, err := c.Cookie(RefreshCookieName)
	if err != nil || token == "" {
		ErrorResponse(c, http.StatusUnauthorized, "No refresh token")
		return
	}
	result, err := h.authService.Refresh(c.Request.Context(), token)
	if err != nil {
		h.clearRefreshCookie(c)
		HandleServiceError(c, err)
		return
	}
	h.respondWithTokens(c, http.StatusOK, result)
}

// Logout 吊销 refresh token 并清除 cookie
func (h *AuthHandler) Logout(c *gin.Context) {
	if token, err := c.Cookie(RefreshCookieName); err == nil && token != "" {
		if err := h.authService.Logout(c.Request.Context(), token); err != nil {
			HandleServiceError(c, err)
			return
		}
	}
	h.clearRefreshCookie(c)
	SuccessResponse(c, http.StatusOK, gin.H{"ok": true})
}

// Me 返回当前登录用户
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	user, err := h.authService.Me(c.Request.Context(), userID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"user": user})
}

func (h *AuthHandler) respondWithTokens(c *gin.Context, status int, result *service.AuthResult) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(RefreshCookieName, result.RefreshToken, int(h.cookie.MaxAge.Seconds()),
		refreshCookiePath, h.cookie.Domain, h.cookie.Secure, true)
	SuccessResponse(c, status, AuthResponse{AccessToken: result.AccessToken, User: result.User})
}

func (h *AuthHandler) clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(RefreshCookieName, "", -1, refreshCookiePath, h.cookie.Domain, h.cookie.Secure, true)
}
