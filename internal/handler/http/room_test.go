package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"story-relay/internal/middleware"
	"story-relay/internal/repository/repotest"
	"story-relay/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUserHeader = "X-Test-User"

// asUser 模拟 Auth 中间件，从请求头读取用户 ID
func asUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := c.GetHeader(testUserHeader); id != "" {
			c.Set(middleware.UserIDKey, id)
		}
		c.Next()
	}
}

func newRoomRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	repo := repotest.NewRoomRepository()
	rooms := NewRoomHandler(service.NewRoomService(repo, nil), service.NewTurnService(repo, nil))
	public := NewPublicHandler(service.NewRoomService(repo, nil))

	r := gin.New()
	r.GET("/api/public/story/:slug", public.GetStory)
	api := r.Group("/api/story-rooms", asUser())
	api.POST("", rooms.CreateRoom)
	api.GET("/:id", rooms.GetRoom)
	api.POST("/:id/join", rooms.JoinRoom)
	api.POST("/:id/start", rooms.StartRoom)
	api.POST("/:id/finish", rooms.FinishRoom)
	api.POST("/:id/publish", rooms.PublishRoom)
	api.POST("/:id/turn", rooms.SubmitTurn)
	api.POST("/:id/skip", rooms.SkipTurn)
	return r
}

func do(t *testing.T, r http.Handler, method, path, user string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(testUserHeader, user)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w, out
}

func field(t *testing.T, obj map[string]interface{}, key string) map[string]interface{} {
	t.Helper()
	v, ok := obj[key].(map[string]interface{})
	require.True(t, ok, "missing %q in %v", key, obj)
	return v
}

func TestRoomHandler_StoryFlow(t *testing.T) {
	r := newRoomRouter(t)

	w, body := do(t, r, http.MethodPost, "/api/story-rooms", "leader", CreateRoomRequest{
		Title:      "Night Train",
		WordLimit:  5,
		Characters: []CharacterRequest{{Name: "Conductor"}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	room := field(t, body, "room")
	roomID := room["id"].(string)
	assert.Equal(t, "waiting", room["status"])
	assert.EqualValues(t, 60, room["turnTimeLimit"])

	w, body = do(t, r, http.MethodPost, "/api/story-rooms/"+roomID+"/join", "writer", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "WRITER", field(t, body, "member")["role"])

	w, _ = do(t, r, http.MethodPost, "/api/story-rooms/"+roomID+"/join", "writer", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = do(t, r, http.MethodPost, "/api/story-rooms/"+roomID+"/start", "writer", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, body = do(t, r, http.MethodPost, "/api/story-rooms/"+roomID+"/start", "leader", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "active", field(t, body, "room")["status"])

	w, _ = do(t, r, http.MethodPost, "/api/story-rooms/"+roomID+"/turn", "writer", SubmitTurnRequest{Content: "out of order"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = do(t, r, http.MethodPost, "/api/story-rooms/"+roomID+"/turn", "leader", SubmitTurnRequest{Content: strings.Repeat("word ", 16)})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body = do(t, r, http.MethodPost, "/api/story-rooms/"+roomID+"/turn", "leader", SubmitTurnRequest{Content: "the train left late"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.EqualValues(t, 1, field(t, body, "turn")["turnOrder"])

	w, body = do(t, r, http.MethodGet, "/api/story-rooms/"+roomID, "writer", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	view := field(t, body, "room")
	assert.Equal(t, "writer", view["currentWriterId"])
	assert.Len(t, view["turns"], 1)

	w, _ = do(t, r, http.MethodGet, "/api/story-rooms/"+roomID, "stranger", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, body = do(t, r, http.MethodPost, "/api/story-rooms/"+roomID+"/skip", "leader", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 2, field(t, body, "room")["currentTurnIndex"])

	w, body = do(t, r, http.MethodPost, "/api/story-rooms/"+roomID+"/finish", "leader", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	slug, ok := field(t, body, "room")["publicSlug"].(string)
	require.True(t, ok)

	w, _ = do(t, r, http.MethodGet, "/api/public/story/"+slug, "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = do(t, r, http.MethodPost, "/api/story-rooms/"+roomID+"/publish", "leader", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, body = do(t, r, http.MethodGet, "/api/public/story/"+slug, "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, roomID, field(t, body, "story")["id"])
}

func TestRoomHandler_Errors(t *testing.T) {
	r := newRoomRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		user   string
		body   interface{}
		status int
	}{
		{"unauthenticated", http.MethodPost, "/api/story-rooms", "", CreateRoomRequest{Title: "x"}, http.StatusUnauthorized},
		{"missing title", http.MethodPost, "/api/story-rooms", "leader", CreateRoomRequest{}, http.StatusBadRequest},
		{"negative word limit", http.MethodPost, "/api/story-rooms", "leader", CreateRoomRequest{Title: "x", WordLimit: -1}, http.StatusBadRequest},
		{"unknown room", http.MethodGet, "/api/story-rooms/nope", "leader", nil, http.StatusNotFound},
		{"join unknown room", http.MethodPost, "/api/story-rooms/nope/join", "leader", nil, http.StatusNotFound},
		{"unknown story", http.MethodGet, "/api/public/story/nope", "", nil, http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w, body := do(t, r, tc.method, tc.path, tc.user, tc.body)
			assert.Equal(t, tc.status, w.Code)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestRoomHandler_InvalidJSON(t *testing.T) {
	r := newRoomRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/api/story-rooms", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(testUserHeader, "leader")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
