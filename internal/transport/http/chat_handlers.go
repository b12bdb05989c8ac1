package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/vovakirdan/wirechat-lobby/internal/core"
	"github.com/vovakirdan/wirechat-lobby/internal/proto"
	"github.com/vovakirdan/wirechat-lobby/internal/store"
)

const defaultSearchLimit = 50

// ChatHandlers serves the HTTP side of the chat: posting, clearing,
// searching and presence. Mutations go through the hub so HTTP and
// WebSocket clients share one ordering.
type ChatHandlers struct {
	hub         *core.Hub
	users       store.UserStore
	searchLimit int
	log         *zerolog.Logger
}

// NewChatHandlers creates chat handlers. searchLimit caps message matches.
func NewChatHandlers(hub *core.Hub, users store.UserStore, searchLimit int, logger *zerolog.Logger) *ChatHandlers {
	if searchLimit <= 0 {
		searchLimit = defaultSearchLimit
	}
	return &ChatHandlers{
		hub:         hub,
		users:       users,
		searchLimit: searchLimit,
		log:         logger,
	}
}

// PostMessageRequest is the body of POST /api/messages.
type PostMessageRequest struct {
	Body string `json:"body"`
}

// SearchResponse lists messages and users matching a query.
type SearchResponse struct {
	Messages []proto.EventMessage `json:"messages"`
	Users    []UserResponse       `json:"users"`
}

// UserResponse represents a user in API responses.
type UserResponse struct {
	Username string `json:"username"`
}

// PresenceResponse reports who is around.
type PresenceResponse struct {
	Active int      `json:"active"`
	Typing []string `json:"typing"`
	Online []string `json:"online"`
}

// PostMessage appends a message as the session's user.
// POST /api/messages
func (h *ChatHandlers) PostMessage(c *gin.Context) {
	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	msg, err := h.hub.Post(c.Request.Context(), currentUser(c), req.Body)
	if err != nil {
		h.writeHubError(c, err)
		return
	}
	c.JSON(http.StatusCreated, eventMessage(msg))
}

// ClearMessages empties the log; admin only.
// POST /api/clear-messages
func (h *ChatHandlers) ClearMessages(c *gin.Context) {
	if err := h.hub.ClearAll(c.Request.Context(), currentUser(c)); err != nil {
		h.writeHubError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Search matches q against message bodies, authors and usernames,
// case-insensitively. Only the last searchLimit message matches are kept.
// GET /api/search?q=query
func (h *ChatHandlers) Search(c *gin.Context) {
	q := strings.ToLower(strings.TrimSpace(c.Query("q")))
	resp := SearchResponse{Messages: []proto.EventMessage{}, Users: []UserResponse{}}
	if q == "" {
		c.JSON(http.StatusOK, resp)
		return
	}

	snap, err := h.hub.Snapshot(c.Request.Context())
	if err != nil {
		h.writeHubError(c, err)
		return
	}
	matched := lo.Filter(snap.Messages, func(m core.Message, _ int) bool {
		return strings.Contains(strings.ToLower(m.Body), q) || strings.Contains(strings.ToLower(m.Author), q)
	})
	if len(matched) > h.searchLimit {
		matched = matched[len(matched)-h.searchLimit:]
	}
	resp.Messages = eventMessages(matched)

	users, err := h.users.SearchUsers(c.Request.Context(), q)
	if err != nil {
		h.log.Error().Err(err).Str("query", q).Msg("failed to search users")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	resp.Users = lo.Map(users, func(u *store.User, _ int) UserResponse {
		return UserResponse{Username: u.Username}
	})

	c.JSON(http.StatusOK, resp)
}

// Presence reports active connections, typing and online users.
// GET /api/presence
func (h *ChatHandlers) Presence(c *gin.Context) {
	snap, err := h.hub.Snapshot(c.Request.Context())
	if err != nil {
		h.writeHubError(c, err)
		return
	}
	c.JSON(http.StatusOK, PresenceResponse{
		Active: snap.Active,
		Typing: snap.Typing,
		Online: snap.Online,
	})
}

func (h *ChatHandlers) writeHubError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, core.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid message"})
	case errors.Is(err, core.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "forbidden"})
	case errors.Is(err, core.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	case errors.Is(err, core.ErrHubClosed):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "shutting down"})
	default:
		h.log.Error().Err(err).Msg("hub request failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}
