package http

import (
	"net/http"
	"time"

	"liveclass/internal/core/domain"
	"liveclass/internal/core/ports"
	"liveclass/internal/core/services"
	"liveclass/internal/infrastructure/middleware"
	"liveclass/pkg/utils"
	"liveclass/pkg/validation"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type RoomHandler struct {
	rooms      ports.RoomStore
	tokens     services.TokenService
	codeLength int
}

func NewRoomHandler(rooms ports.RoomStore, tokens services.TokenService, codeLength int) *RoomHandler {
	return &RoomHandler{
		rooms:      rooms,
		tokens:     tokens,
		codeLength: codeLength,
	}
}

func (h *RoomHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.POST("/rooms", h.CreateRoom)
		api.GET("/rooms", h.ListActiveRooms)
		api.GET("/rooms/:code", h.GetRoom)
		api.POST("/rooms/:code/join", h.JoinRoom)

		authed := api.Group("", middleware.AuthMiddleware(h.tokens))
		authed.POST("/rooms/:code/end", middleware.RequireTeacher(), h.EndRoom)
	}
}

// CreateRoom opens a room and hands the creator a teacher join token.
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req struct {
		Title    string          `json:"title" binding:"required"`
		Username domain.Username `json:"username" binding:"required"`
	}

	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := validation.ValidateRoomTitle(req.Title); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validation.ValidateUsername(string(req.Username)); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room := &domain.Room{
		ID:        uuid.NewString(),
		Code:      domain.RoomCode(utils.GenerateRoomCode(h.codeLength)),
		Title:     req.Title,
		Teacher:   req.Username,
		Active:    true,
		CreatedAt: time.Now(),
	}

	if err := h.rooms.Create(c.Request.Context(), room); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	token, err := h.tokens.GenerateJoinToken(req.Username, room.Code, domain.RoleTeacher)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"room":       room,
		"join_token": token,
	})
}

func (h *RoomHandler) GetRoom(c *gin.Context) {
	code := domain.RoomCode(c.Param("code"))

	room, err := h.rooms.Get(c.Request.Context(), code)
	if err != nil {
		if err == domain.ErrRoomNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"room": room,
	})
}

// JoinRoom validates the caller's name against the room and issues a join
// token. The room's creator joins as teacher, everyone else as student.
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	code := domain.RoomCode(c.Param("code"))

	var req struct {
		Username domain.Username `json:"username" binding:"required"`
	}

	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := validation.ValidateUsername(string(req.Username)); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.rooms.Get(c.Request.Context(), code)
	if err != nil {
		if err == domain.ErrRoomNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if !room.Active {
		c.JSON(http.StatusGone, gin.H{"error": "room has ended"})
		return
	}

	role := domain.RoleStudent
	if req.Username == room.Teacher {
		role = domain.RoleTeacher
	}

	token, err := h.tokens.GenerateJoinToken(req.Username, room.Code, role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"room":       room,
		"role":       role,
		"join_token": token,
	})
}

func (h *RoomHandler) EndRoom(c *gin.Context) {
	code := domain.RoomCode(c.Param("code"))

	// The token's room must match the one being ended.
	if roomVal, exists := c.Get("room_code"); exists {
		if tokenRoom, ok := roomVal.(domain.RoomCode); ok && tokenRoom != code {
			c.JSON(http.StatusForbidden, gin.H{"error": "token not issued for this room"})
			return
		}
	}

	if err := h.rooms.SetActive(c.Request.Context(), code, false); err != nil {
		if err == domain.ErrRoomNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ended",
	})
}

func (h *RoomHandler) ListActiveRooms(c *gin.Context) {
	rooms, err := h.rooms.ListActive(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"rooms": rooms,
	})
}
