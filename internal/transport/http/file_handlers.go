package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/coedit-server/internal/store"
)

// FileHandlers provides HTTP handlers for a room's file tree.
type FileHandlers struct {
	store store.Store
	log   *zerolog.Logger
}

// NewFileHandlers creates a new file handlers instance.
func NewFileHandlers(st store.Store, logger *zerolog.Logger) *FileHandlers {
	return &FileHandlers{store: st, log: logger}
}

// CreateFileRequest represents the create file request body.
type CreateFileRequest struct {
	Name     string `json:"name" binding:"required"`
	Path     string `json:"path" binding:"required"`
	Content  string `json:"content"`
	Language string `json:"language"`
	IsFolder bool   `json:"isFolder"`
	ParentID *int64 `json:"parentId"`
}

// UpdateFileRequest represents the update file request body.
type UpdateFileRequest struct {
	Content *string `json:"content" binding:"required"`
}

// FileResponse represents a file in API responses.
type FileResponse struct {
	ID       int64  `json:"id"`
	RoomID   int64  `json:"roomId"`
	Name     string `json:"name"`
	Content  string `json:"content"`
	Language string `json:"language"`
	Path     string `json:"path"`
	IsFolder bool   `json:"isFolder"`
	ParentID *int64 `json:"parentId"`
}

func toFileResponse(f *store.File) FileResponse {
	return FileResponse{
		ID:       f.ID,
		RoomID:   f.RoomID,
		Name:     f.Name,
		Content:  f.Content,
		Language: f.Language,
		Path:     f.Path,
		IsFolder: f.IsFolder,
		ParentID: f.ParentID,
	}
}

// ListFiles returns all files of a room.
// GET /api/rooms/:id/files
func (h *FileHandlers) ListFiles(c *gin.Context) {
	roomID, ok := paramID(c, "id")
	if !ok {
		return
	}

	files, err := h.store.GetFiles(c.Request.Context(), roomID)
	if err != nil {
		storeError(c, h.log, err, "files")
		return
	}

	response := make([]FileResponse, 0, len(files))
	for _, f := range files {
		response = append(response, toFileResponse(f))
	}
	c.JSON(http.StatusOK, response)
}

// CreateFile adds a file or folder to a room.
// POST /api/rooms/:id/files
func (h *FileHandlers) CreateFile(c *gin.Context) {
	roomID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req CreateFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create file request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid file data"})
		return
	}

	file, err := h.store.CreateFile(c.Request.Context(), &store.File{
		RoomID:   roomID,
		Name:     req.Name,
		Content:  req.Content,
		Language: req.Language,
		Path:     req.Path,
		IsFolder: req.IsFolder,
		ParentID: req.ParentID,
	})
	if err != nil {
		storeError(c, h.log, err, "file")
		return
	}
	c.JSON(http.StatusCreated, toFileResponse(file))
}

// UpdateFile replaces a file's content.
// PUT /api/files/:id
func (h *FileHandlers) UpdateFile(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req UpdateFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "content is required"})
		return
	}

	file, err := h.store.UpdateFile(c.Request.Context(), id, *req.Content)
	if err != nil {
		storeError(c, h.log, err, "file")
		return
	}
	c.JSON(http.StatusOK, toFileResponse(file))
}

// DeleteFile removes a file.
// DELETE /api/files/:id
func (h *FileHandlers) DeleteFile(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.store.DeleteFile(c.Request.Context(), id); err != nil {
		storeError(c, h.log, err, "file")
		return
	}
	c.Status(http.StatusNoContent)
}
