package http

import (
	"context"
	"net/http"

	"story-relay/internal/domain"
	"story-relay/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RoomHandler 封装故事房间的生命周期和回合接口
type RoomHandler struct {
	roomService *service.RoomService
	turnService *service.TurnService
}

// NewRoomHandler 创建 RoomHandler 实例
func NewRoomHandler(roomService *service.RoomService, turnService *service.TurnService) *RoomHandler {
	return &RoomHandler{roomService: roomService, turnService: turnService}
}

// CharacterRequest 是创建房间时附带的角色
type CharacterRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CreateRoomRequest 定义创建房间请求体，数值为 0 或缺省时使用默认值
type CreateRoomRequest struct {
	Title         string             `json:"title"`
	BasePlot      string             `json:"basePlot"`
	TurnTimeLimit int                `json:"turnTimeLimit"`
	WordLimit     int                `json:"wordLimit"`
	TotalTurns    int                `json:"totalTurns"`
	Characters    []CharacterRequest `json:"characters"`
}

// SubmitTurnRequest 定义提交回合请求体
type SubmitTurnRequest struct {
	Content string `json:"content"`
}

// CreateRoom 创建房间，当前用户成为队长
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req CreateRoomRequest
	if !bindJSON(c, &req) {
		return
	}

	in := service.CreateRoomInput{
		Title:         req.Title,
		BasePlot:      req.BasePlot,
		TurnTimeLimit: req.TurnTimeLimit,
		WordLimit:     req.WordLimit,
		TotalTurns:    req.TotalTurns,
	}
	for _, ch := range req.Characters {
		in.Characters = append(in.Characters, service.CharacterInput{Name: ch.Name, Description: ch.Description})
	}

	room, err := h.roomService.CreateRoom(c.Request.Context(), userID, in)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, gin.H{"room": room})
}

// JoinRoom 以 WRITER 身份加入房间
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	member, err := h.roomService.JoinRoom(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, gin.H{"member": member})
}

// GetRoom 返回房间快照，客户端轮询此接口获取最新回合
func (h *RoomHandler) GetRoom(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	view, err := h.roomService.GetRoom(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"room": view})
}

// StartRoom waiting -> active
func (h *RoomHandler) StartRoom(c *gin.Context) {
	h.lifecycle(c, h.roomService.StartRoom)
}

// FinishRoom active -> finished
func (h *RoomHandler) FinishRoom(c *gin.Context) {
	h.lifecycle(c, h.roomService.FinishRoom)
}

// PublishRoom 公开已结束的房间
func (h *RoomHandler) PublishRoom(c *gin.Context) {
	h.lifecycle(c, h.roomService.PublishRoom)
}

// SkipTurn 队长跳过当前回合
func (h *RoomHandler) SkipTurn(c *gin.Context) {
	h.lifecycle(c, h.turnService.SkipTurn)
}

// SubmitTurn 当前写作者提交内容
func (h *RoomHandler) SubmitTurn(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req SubmitTurnRequest
	if !bindJSON(c, &req) {
		return
	}
	turn, err := h.turnService.SubmitTurn(c.Request.Context(), c.Param("id"), userID, req.Content)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, gin.H{"turn": turn})
}

func (h *RoomHandler) lifecycle(c *gin.Context, op func(ctx context.Context, roomID, userID string) (*domain.Room, error)) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	room, err := op(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	logrus.WithFields(logrus.Fields{"room_id": room.ID, "status": room.Status}).Debug("Room lifecycle request handled")
	SuccessResponse(c, http.StatusOK, gin.H{"room": room})
}

// PublicHandler 提供无需登录的只读故事页面
type PublicHandler struct {
	roomService *service.RoomService
}

// NewPublicHandler 创建 PublicHandler 实例
func NewPublicHandler(roomService *service.RoomService) *PublicHandler {
	return &PublicHandler{roomService: roomService}
}

// GetStory 按 slug 返回已公开的故事
func (h *PublicHandler) GetStory(c *gin.Context) {
	view, err := h.roomService.GetPublicStory(c.Request.Context(), c.Param("slug"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"story": view})
}
