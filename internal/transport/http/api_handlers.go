package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-lobby/internal/auth"
)

// APIHandlers provides HTTP handlers for account and session endpoints.
type APIHandlers struct {
	authService *auth.Service
	log         *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(authService *auth.Service, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		authService: authService,
		log:         logger,
	}
}

// RegisterRequest represents the registration request body.
type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Question string `json:"question" binding:"required"`
	Answer   string `json:"answer" binding:"required"`
}

// LoginRequest represents the login request body.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// ResetPasswordRequest represents the password reset request body.
type ResetPasswordRequest struct {
	Username string `json:"username" binding:"required"`
	Answer   string `json:"answer" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RecoveryQuestionResponse carries a user's recovery question.
type RecoveryQuestionResponse struct {
	Question string `json:"question"`
}

// SessionResponse carries a freshly minted session token.
type SessionResponse struct {
	SessionID string `json:"session_id"`
}

// WhoAmIResponse names the caller.
type WhoAmIResponse struct {
	Username string `json:"username"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Register handles user registration.
// POST /api/register
func (h *APIHandlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid register request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing fields"})
		return
	}

	token, err := h.authService.Register(c.Request.Context(), auth.Registration{
		Username: req.Username,
		Password: req.Password,
		Question: req.Question,
		Answer:   req.Answer,
	})
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrUserExists):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "username exists"})
		return
	case errors.Is(err, auth.ErrMissingFields):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing fields"})
		return
	case errors.Is(err, auth.ErrInvalidUsername):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "username must be 3-32 characters"})
		return
	case errors.Is(err, auth.ErrInvalidPassword):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "password must be at least 6 characters"})
		return
	default:
		h.log.Error().Err(err).Str("username", req.Username).Msg("failed to register user")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("username", req.Username).Msg("user registered successfully")
	c.JSON(http.StatusCreated, SessionResponse{SessionID: token})
}

// Login handles user login.
// POST /api/login
func (h *APIHandlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid login request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	token, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
			return
		}
		h.log.Error().Err(err).Str("username", req.Username).Msg("failed to login user")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("username", req.Username).Msg("user logged in successfully")
	c.JSON(http.StatusOK, SessionResponse{SessionID: token})
}

// Logout revokes the presented session.
// POST /api/logout
func (h *APIHandlers) Logout(c *gin.Context) {
	h.authService.Logout(c.GetString(ContextKeySession))
	h.log.Info().Str("username", currentUser(c)).Msg("user logged out")
	c.Status(http.StatusNoContent)
}

// WhoAmI returns the caller's username.
// GET /api/whoami
func (h *APIHandlers) WhoAmI(c *gin.Context) {
	c.JSON(http.StatusOK, WhoAmIResponse{Username: currentUser(c)})
}

// RecoveryQuestion returns the recovery question of a user.
// GET /api/recovery-question?username=
func (h *APIHandlers) RecoveryQuestion(c *gin.Context) {
	username := c.Query("username")
	if username == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing username"})
		return
	}

	question, err := h.authService.RecoveryQuestion(c.Request.Context(), username)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, RecoveryQuestionResponse{Question: question})
	case errors.Is(err, auth.ErrUserNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
	default:
		h.log.Error().Err(err).Str("username", username).Msg("failed to load recovery question")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}

// ResetPassword sets a new password after checking the recovery answer.
// POST /api/reset-password
func (h *APIHandlers) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid reset request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing fields"})
		return
	}

	token, err := h.authService.ResetPassword(c.Request.Context(), req.Username, req.Answer, req.Password)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
		return
	case errors.Is(err, auth.ErrMissingFields):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing fields"})
		return
	case errors.Is(err, auth.ErrInvalidPassword):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "password must be at least 6 characters"})
		return
	default:
		h.log.Error().Err(err).Str("username", req.Username).Msg("failed to reset password")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("username", req.Username).Msg("password reset")
	c.JSON(http.StatusOK, SessionResponse{SessionID: token})
}
