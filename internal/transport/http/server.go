package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/auth"
	"github.com/vovakirdan/wirechat-client/internal/config"
	"github.com/vovakirdan/wirechat-client/internal/hub"
	"github.com/vovakirdan/wirechat-client/internal/store"
)

// NewServer builds the HTTP server exposing REST and websocket endpoints.
func NewServer(h *hub.Hub, authService *auth.Service, st store.MessageStore, cfg *config.Server, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           NewRouter(h, authService, st, cfg, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewRouter registers all routes on a gin engine.
func NewRouter(h *hub.Hub, authService *auth.Service, st store.MessageStore, cfg *config.Server, logger *zerolog.Logger) *gin.Engine {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})

	api := NewAPIHandlers(authService, logger)
	router.POST("/api/register", api.Register)
	router.POST("/api/login", api.Login)

	history := NewHistoryHandlers(st, logger)
	authed := router.Group("/api", AuthMiddleware(authService, logger))
	authed.GET("/conversations/:type/:target/messages", history.Messages)

	ws := NewWSHandler(h, authService, WSOptions{
		MaxMessageBytes:    cfg.MaxMessageBytes,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	}, logger)
	router.GET("/ws", gin.WrapH(ws))

	return router
}
