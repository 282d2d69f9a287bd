package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/coedit-server/internal/store"
)

// VersionHandlers provides HTTP handlers for saved document versions.
type VersionHandlers struct {
	store store.Store
	log   *zerolog.Logger
}

// NewVersionHandlers creates a new version handlers instance.
func NewVersionHandlers(st store.Store, logger *zerolog.Logger) *VersionHandlers {
	return &VersionHandlers{store: st, log: logger}
}

// SaveVersionRequest represents the save version request body.
type SaveVersionRequest struct {
	Code      string `json:"code"`
	CreatedBy string `json:"createdBy" binding:"required"`
}

// VersionResponse represents a version in API responses.
type VersionResponse struct {
	ID        int64  `json:"id"`
	RoomID    int64  `json:"roomId"`
	Code      string `json:"code"`
	CreatedBy string `json:"createdBy"`
	CreatedAt string `json:"createdAt"`
}

// ListVersions returns a room's versions, newest first.
// GET /api/rooms/:id/versions
func (h *VersionHandlers) ListVersions(c *gin.Context) {
	roomID, ok := paramID(c, "id")
	if !ok {
		return
	}

	versions, err := h.store.GetVersions(c.Request.Context(), roomID)
	if err != nil {
		storeError(c, h.log, err, "versions")
		return
	}

	response := make([]VersionResponse, 0, len(versions))
	for _, v := range versions {
		response = append(response, VersionResponse{
			ID:        v.ID,
			RoomID:    v.RoomID,
			Code:      v.Code,
			CreatedBy: v.CreatedBy,
			CreatedAt: formatTime(v.CreatedAt),
		})
	}
	c.JSON(http.StatusOK, response)
}

// SaveVersion stores a snapshot of the room document.
// POST /api/rooms/:id/versions
func (h *VersionHandlers) SaveVersion(c *gin.Context) {
	roomID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req SaveVersionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid save version request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid version data"})
		return
	}

	v, err := h.store.SaveVersion(c.Request.Context(), &store.Version{
		RoomID:    roomID,
		Code:      req.Code,
		CreatedBy: req.CreatedBy,
	})
	if err != nil {
		storeError(c, h.log, err, "version")
		return
	}

	h.log.Info().Int64("room_id", roomID).Int64("version_id", v.ID).Msg("version saved")
	c.JSON(http.StatusCreated, VersionResponse{
		ID:        v.ID,
		RoomID:    v.RoomID,
		Code:      v.Code,
		CreatedBy: v.CreatedBy,
		CreatedAt: formatTime(v.CreatedAt),
	})
}
