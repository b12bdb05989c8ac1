package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a lookup matches nothing.
	ErrNotFound = errors.New("not found")
	// ErrUserExists is returned when a username is already taken.
	ErrUserExists = errors.New("user already exists")
)

// User represents a registered user.
type User struct {
	ID                 int64
	Username           string
	PasswordHash       string
	RecoveryQuestion   string
	RecoveryAnswerHash string
	CreatedAt          time.Time
}

// NewUser carries the fields needed to register a user.
type NewUser struct {
	Username           string
	PasswordHash       string
	RecoveryQuestion   string
	RecoveryAnswerHash string
}

// ChatMessage is the persisted form of a chat message.
type ChatMessage struct {
	Author string    `json:"author"`
	Body   string    `json:"body"`
	SentAt time.Time `json:"sentAt"`
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser inserts a user; ErrUserExists when the username is taken.
	CreateUser(ctx context.Context, user NewUser) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// SearchUsers returns users whose username contains query.
	SearchUsers(ctx context.Context, query string) ([]*User, error)

	// UpdatePassword replaces the password hash of user id; ErrNotFound
	// when no such user exists.
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error

	Close() error
}

// MessageStore persists the whole message log as one snapshot.
type MessageStore interface {
	// LoadMessages returns the last saved snapshot.
	LoadMessages(ctx context.Context) ([]ChatMessage, error)

	// SaveMessages replaces the saved snapshot with messages.
	SaveMessages(ctx context.Context, messages []ChatMessage) error
}
