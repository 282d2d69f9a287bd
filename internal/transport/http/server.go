package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/coedit-server/internal/config"
	"github.com/vovakirdan/coedit-server/internal/core"
	"github.com/vovakirdan/coedit-server/internal/store"
)

// NewServer builds the HTTP server: health check, websocket endpoint and the
// REST API over st.
func NewServer(hub *core.Hub, st store.Store, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", healthHandler)
	router.GET("/ws", gin.WrapH(NewWSHandler(hub, cfg, logger)))

	rooms := NewRoomHandlers(st, hub, logger)
	files := NewFileHandlers(st, logger)
	versions := NewVersionHandlers(st, logger)

	api := router.Group("/api")
	{
		api.POST("/rooms", rooms.CreateRoom)
		api.GET("/rooms/name/:name", rooms.GetRoomByName)
		api.GET("/rooms/:id", rooms.GetRoom)
		api.GET("/rooms/:id/participants", rooms.GetParticipants)
		api.GET("/rooms/:id/presence", rooms.GetPresence)

		api.GET("/rooms/:id/files", files.ListFiles)
		api.POST("/rooms/:id/files", files.CreateFile)
		api.PUT("/files/:id", files.UpdateFile)
		api.DELETE("/files/:id", files.DeleteFile)

		api.GET("/rooms/:id/versions", versions.ListVersions)
		api.POST("/rooms/:id/versions", versions.SaveVersion)
	}

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
