package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/vovakirdan/wirechat-lobby/internal/store"
)

var (
	// ErrInvalidCredentials is returned when username/password don't match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned when trying to register with existing username.
	ErrUserExists = errors.New("user already exists")
	// ErrMissingFields is returned when a registration field is empty.
	ErrMissingFields = errors.New("missing fields")
	// ErrInvalidUsername is returned when username doesn't meet constraints.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrInvalidPassword is returned when password doesn't meet constraints.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrUserNotFound is returned when no user has the given username.
	ErrUserNotFound = errors.New("user not found")
)

// Registration is the input of Register.
type Registration struct {
	Username string
	Password string
	Question string
	Answer   string
}

// Service provides account and session operations.
type Service struct {
	store    store.UserStore
	sessions *SessionStore
}

// NewService creates a new authentication service.
func NewService(userStore store.UserStore, sessions *SessionStore) *Service {
	return &Service{
		store:    userStore,
		sessions: sessions,
	}
}

// Sessions exposes the session store backing this service.
func (s *Service) Sessions() *SessionStore {
	return s.sessions
}

// Register creates a user with hashed password and recovery answer and
// returns a fresh session token.
func (s *Service) Register(ctx context.Context, reg Registration) (string, error) {
	username := strings.TrimSpace(reg.Username)
	question := strings.TrimSpace(reg.Question)
	answer := normalizeAnswer(reg.Answer)
	if username == "" || reg.Password == "" || question == "" || answer == "" {
		return "", ErrMissingFields
	}
	if n := utf8.RuneCountInString(username); n < 3 || n > 32 {
		return "", ErrInvalidUsername
	}
	if len(reg.Password) < 6 {
		return "", ErrInvalidPassword
	}

	passwordHash, err := HashSecret(reg.Password)
	if err != nil {
		return "", err
	}
	answerHash, err := HashSecret(answer)
	if err != nil {
		return "", err
	}

	user, err := s.store.CreateUser(ctx, store.NewUser{
		Username:           username,
		PasswordHash:       passwordHash,
		RecoveryQuestion:   question,
		RecoveryAnswerHash: answerHash,
	})
	if errors.Is(err, store.ErrUserExists) {
		return "", ErrUserExists
	}
	if err != nil {
		return "", fmt.Errorf("create user: %w", err)
	}

	return s.sessions.Create(user.Username)
}

// Login validates credentials and returns a session token.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", ErrInvalidCredentials
	}
	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return "", ErrInvalidCredentials
	}
	if errPwd := CompareSecret(user.PasswordHash, password); errPwd != nil {
		return "", ErrInvalidCredentials
	}

	return s.sessions.Create(user.Username)
}

// WhoAmI returns the identity behind token.
func (s *Service) WhoAmI(token string) (string, error) {
	identity, ok := s.sessions.Resolve(token)
	if !ok {
		return "", ErrInvalidSession
	}
	return identity, nil
}

// Logout revokes token.
func (s *Service) Logout(token string) {
	s.sessions.Revoke(token)
}

// RecoveryQuestion returns the question username chose at registration.
func (s *Service) RecoveryQuestion(ctx context.Context, username string) (string, error) {
	user, err := s.lookup(ctx, username)
	if err != nil {
		return "", err
	}
	return user.RecoveryQuestion, nil
}

// ResetPassword replaces the password of username when answer matches the
// recovery answer, and returns a fresh session token. Sessions issued
// before the reset stay valid until they expire or are revoked.
func (s *Service) ResetPassword(ctx context.Context, username, answer, password string) (string, error) {
	if strings.TrimSpace(username) == "" || normalizeAnswer(answer) == "" || password == "" {
		return "", ErrMissingFields
	}
	if len(password) < 6 {
		return "", ErrInvalidPassword
	}
	user, err := s.lookup(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}
	if !verifyRecovery(user, answer) {
		return "", ErrInvalidCredentials
	}

	hash, err := HashSecret(password)
	if err != nil {
		return "", err
	}
	if err := s.store.UpdatePassword(ctx, user.ID, hash); err != nil {
		return "", fmt.Errorf("update password: %w", err)
	}
	return s.sessions.Create(user.Username)
}

func (s *Service) lookup(ctx context.Context, username string) (*store.User, error) {
	user, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// verifyRecovery reports whether answer matches the user's recovery answer.
func verifyRecovery(user *store.User, answer string) bool {
	return CompareSecret(user.RecoveryAnswerHash, normalizeAnswer(answer)) == nil
}
