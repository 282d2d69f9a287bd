package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/coedit-server/internal/core"
	"github.com/vovakirdan/coedit-server/internal/store"
)

// RoomHandlers provides HTTP handlers for room endpoints.
type RoomHandlers struct {
	store store.Store
	hub   *core.Hub
	log   *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(st store.Store, hub *core.Hub, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		store: st,
		hub:   hub,
		log:   logger,
	}
}

// CreateRoomRequest represents the create room request body.
type CreateRoomRequest struct {
	Name     string `json:"name" binding:"required,min=1,max=128"`
	Code     string `json:"code"`
	Language string `json:"language"`
	IsPublic *bool  `json:"isPublic"`
}

// RoomResponse represents a room in API responses.
type RoomResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Code      string `json:"code"`
	Language  string `json:"language"`
	IsPublic  bool   `json:"isPublic"`
	CreatedAt string `json:"createdAt"`
}

// ParticipantResponse represents a stored room membership.
type ParticipantResponse struct {
	ID       int64  `json:"id"`
	RoomID   int64  `json:"roomId"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Color    string `json:"color"`
	IsOwner  bool   `json:"isOwner"`
	JoinedAt string `json:"joinedAt"`
}

// PresenceUser is one user currently connected to a room.
type PresenceUser struct {
	UserID   string  `json:"userId"`
	Username string  `json:"username"`
	Color    string  `json:"color"`
	Cursor   *Cursor `json:"cursor,omitempty"`
}

// Cursor is a 1-based caret position.
type Cursor struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// PresenceResponse lists live connections of a room.
type PresenceResponse struct {
	RoomID      string         `json:"roomId"`
	Connections int            `json:"connections"`
	Users       []PresenceUser `json:"users"`
}

func toRoomResponse(r *store.Room) RoomResponse {
	return RoomResponse{
		ID:        r.ID,
		Name:      r.Name,
		Code:      r.Code,
		Language:  r.Language,
		IsPublic:  r.IsPublic,
		CreatedAt: formatTime(r.CreatedAt),
	}
}

// CreateRoom handles room creation.
// POST /api/rooms
func (h *RoomHandlers) CreateRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create room request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid room data"})
		return
	}

	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}

	room, err := h.store.CreateRoom(c.Request.Context(), &store.Room{
		Name:     req.Name,
		Code:     req.Code,
		Language: req.Language,
		IsPublic: isPublic,
	})
	if err != nil {
		storeError(c, h.log, err, "room")
		return
	}

	h.log.Info().Str("room_name", room.Name).Int64("room_id", room.ID).Msg("room created")
	c.JSON(http.StatusCreated, toRoomResponse(room))
}

// GetRoom returns one room.
// GET /api/rooms/:id
func (h *RoomHandlers) GetRoom(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	room, err := h.store.GetRoom(c.Request.Context(), id)
	if err != nil {
		storeError(c, h.log, err, "room")
		return
	}
	c.JSON(http.StatusOK, toRoomResponse(room))
}

// GetRoomByName returns one room looked up by name.
// GET /api/rooms/name/:name
func (h *RoomHandlers) GetRoomByName(c *gin.Context) {
	room, err := h.store.GetRoomByName(c.Request.Context(), c.Param("name"))
	if err != nil {
		storeError(c, h.log, err, "room")
		return
	}
	c.JSON(http.StatusOK, toRoomResponse(room))
}

// GetParticipants lists stored memberships of a room.
// GET /api/rooms/:id/participants
func (h *RoomHandlers) GetParticipants(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	participants, err := h.store.GetParticipants(c.Request.Context(), id)
	if err != nil {
		storeError(c, h.log, err, "participants")
		return
	}

	response := make([]ParticipantResponse, 0, len(participants))
	for _, p := range participants {
		response = append(response, ParticipantResponse{
			ID:       p.ID,
			RoomID:   p.RoomID,
			UserID:   p.UserID,
			Username: p.Username,
			Color:    p.Color,
			IsOwner:  p.IsOwner,
			JoinedAt: formatTime(p.JoinedAt),
		})
	}
	c.JSON(http.StatusOK, response)
}

// GetPresence reports who is connected right now, straight from the hub.
// GET /api/rooms/:id/presence
func (h *RoomHandlers) GetPresence(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	room := strconv.FormatInt(id, 10)

	members := h.hub.Presence().Members(room)
	users := make([]PresenceUser, 0, len(members))
	for _, m := range members {
		u := PresenceUser{UserID: m.UserID, Username: m.Username, Color: m.Color}
		if m.Cursor != nil {
			u.Cursor = &Cursor{Line: m.Cursor.Line, Column: m.Cursor.Column}
		}
		users = append(users, u)
	}

	c.JSON(http.StatusOK, PresenceResponse{
		RoomID:      room,
		Connections: len(h.hub.Registry().Connections(room)),
		Users:       users,
	})
}
