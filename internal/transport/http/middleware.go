package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-lobby/internal/auth"
)

const (
	// ContextKeyUsername is the context key for storing username.
	ContextKeyUsername = "username"
	// ContextKeySession is the context key for storing the presented token.
	ContextKeySession = "session"

	// HeaderSessionID carries the session token on API and WebSocket requests.
	HeaderSessionID = "X-Session-Id"
	// QuerySession carries the session token where headers can't be set.
	QuerySession = "session"
)

// sessionToken extracts the session token from, in order, the
// X-Session-Id header, an Authorization bearer token and the session query
// parameter.
func sessionToken(r *http.Request) string {
	if token := strings.TrimSpace(r.Header.Get(HeaderSessionID)); token != "" {
		return token
	}
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return strings.TrimSpace(r.URL.Query().Get(QuerySession))
}

// AuthMiddleware rejects requests without a live session and stores the
// resolved username in the context.
func AuthMiddleware(authService *auth.Service, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c.Request)
		if token == "" {
			logger.Debug().Msg("missing session token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
			return
		}

		username, err := authService.WhoAmI(token)
		if err != nil {
			logger.Debug().Err(err).Msg("invalid session")
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
			return
		}

		c.Set(ContextKeyUsername, username)
		c.Set(ContextKeySession, token)

		c.Next()
	}
}

// LoggerMiddleware creates a middleware that logs HTTP requests.
func LoggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("http request")
	}
}

func currentUser(c *gin.Context) string {
	return c.GetString(ContextKeyUsername)
}
