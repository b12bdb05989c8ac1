package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-lobby/internal/auth"
	"github.com/vovakirdan/wirechat-lobby/internal/config"
	"github.com/vovakirdan/wirechat-lobby/internal/core"
	wlog "github.com/vovakirdan/wirechat-lobby/internal/log"
	"github.com/vovakirdan/wirechat-lobby/internal/metrics"
	"github.com/vovakirdan/wirechat-lobby/internal/store"
)

// NewServer builds the HTTP server: REST API, WebSocket endpoint, health
// and metrics.
func NewServer(
	hub *core.Hub,
	authService *auth.Service,
	users store.UserStore,
	m *metrics.Metrics,
	cfg *config.Config,
	logger *zerolog.Logger,
) *stdhttp.Server {
	logger = wlog.OrNop(logger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", healthHandler)
	router.GET("/metrics", gin.WrapH(m.Handler()))
	router.GET("/ws", gin.WrapH(NewWSHandler(hub, WSOptions{
		ClientBuffer:       cfg.ClientBuffer,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	}, logger)))

	apiHandlers := NewAPIHandlers(authService, logger)
	chatHandlers := NewChatHandlers(hub, users, cfg.SearchLimit, logger)

	api := router.Group("/api")
	{
		api.POST("/register", apiHandlers.Register)
		api.POST("/login", apiHandlers.Login)
		api.GET("/recovery-question", apiHandlers.RecoveryQuestion)
		api.POST("/reset-password", apiHandlers.ResetPassword)
		api.GET("/search", chatHandlers.Search)
	}

	protected := api.Group("")
	protected.Use(AuthMiddleware(authService, logger))
	{
		protected.POST("/logout", apiHandlers.Logout)
		protected.GET("/whoami", apiHandlers.WhoAmI)
		protected.POST("/messages", chatHandlers.PostMessage)
		protected.POST("/clear-messages", chatHandlers.ClearMessages)
		protected.GET("/presence", chatHandlers.Presence)
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
