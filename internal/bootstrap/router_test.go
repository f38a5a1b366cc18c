package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpHandler "story-relay/internal/handler/http"
	"story-relay/internal/repository/mocks"
	"story-relay/internal/repository/repotest"
	"story-relay/internal/service"
)

type fakeLimiter struct{ limited bool }

func (f fakeLimiter) CheckRateLimit(context.Context, string, int, time.Duration) (bool, error) {
	return f.limited, nil
}

func newTestRouter(t *testing.T, limiter fakeLimiter) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &Config{
		JWTAccessSecret:    "access",
		CORSAllowedOrigins: []string{"https://app.example"},
		RateLimitMax:       10,
		RateLimitWindow:    time.Second,
	}
	authService, err := service.NewAuthService(mocks.NewUserRepository(t), service.AuthConfig{AccessSecret: "access", RefreshSecret: "refresh"}, nil)
	require.NoError(t, err)
	rooms := repotest.NewRoomRepository()
	roomService := service.NewRoomService(rooms, nil)

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return NewRouter(cfg, log, Handlers{
		Auth:     httpHandler.NewAuthHandler(authService, httpHandler.CookieConfig{}),
		Room:     httpHandler.NewRoomHandler(roomService, service.NewTurnService(rooms, nil)),
		Public:   httpHandler.NewPublicHandler(roomService),
		Document: httpHandler.NewDocumentHandler(service.NewDocumentService(mocks.NewDocumentRepository(t))),
	}, limiter)
}

func TestRouter_Ping(t *testing.T) {
	r := newTestRouter(t, fakeLimiter{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"pong"}`, w.Body.String())
}

func TestRouter_RoomsRequireToken(t *testing.T) {
	r := newTestRouter(t, fakeLimiter{})
	for _, path := range []string{"/api/story-rooms/abc", "/api/me", "/api/docs", "/api/docs/abc"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestRouter_PublicStoryIsOpen(t *testing.T) {
	r := newTestRouter(t, fakeLimiter{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/public/story/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_CORSPreflight(t *testing.T) {
	r := newTestRouter(t, fakeLimiter{})
	req := httptest.NewRequest(http.MethodOptions, "/api/story-rooms", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestRouter_RateLimited(t *testing.T) {
	r := newTestRouter(t, fakeLimiter{limited: true})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}
