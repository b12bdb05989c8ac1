package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const sessionIDBytes = 32

// ErrInvalidSession is returned for a token that is malformed, badly
// signed, expired or revoked.
var ErrInvalidSession = errors.New("invalid session")

type session struct {
	identity  string
	createdAt time.Time
	expiresAt time.Time // zero means no expiry
}

// SessionStore maps opaque session tokens to identities. Tokens are HS256
// JWTs whose jti is a random session id; a token resolves only while its
// id is still held by the store. Expiry is enforced against the stored
// entry so expired sessions are dropped on first use.
type SessionStore struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu       sync.RWMutex
	sessions map[string]session
}

// NewSessionStore builds a store signing with secret. An empty secret is
// replaced by a random one, so tokens do not survive a restart. ttl of 0
// keeps sessions until they are revoked.
func NewSessionStore(secret string, ttl time.Duration) (*SessionStore, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
	}
	return &SessionStore{
		secret:   key,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]session),
	}, nil
}

// Create mints a token bound to identity.
func (s *SessionStore) Create(identity string) (string, error) {
	if identity == "" {
		return "", errors.New("empty identity")
	}

	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:  identity,
		IssuedAt: jwt.NewNumericDate(now),
	}
	sess := session{identity: identity, createdAt: now}
	if s.ttl > 0 {
		sess.expiresAt = now.Add(s.ttl)
		claims.ExpiresAt = jwt.NewNumericDate(sess.expiresAt)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var id string
	for {
		var err error
		if id, err = newSessionID(); err != nil {
			return "", err
		}
		if _, taken := s.sessions[id]; !taken {
			break
		}
	}
	claims.ID = id

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	s.sessions[id] = sess
	return token, nil
}

// Resolve returns the identity bound to token.
func (s *SessionStore) Resolve(token string) (string, bool) {
	id, err := s.parse(token)
	if err != nil {
		return "", false
	}

	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}
	if !sess.expiresAt.IsZero() && !s.now().Before(sess.expiresAt) {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		return "", false
	}
	return sess.identity, true
}

// Revoke drops the session behind token. Unknown tokens are ignored.
func (s *SessionStore) Revoke(token string) {
	id, err := s.parse(token)
	if err != nil {
		return
	}
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

func (s *SessionStore) parse(token string) (string, error) {
	if token == "" {
		return "", ErrInvalidSession
	}
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil || !parsed.Valid || claims.ID == "" {
		return "", ErrInvalidSession
	}
	return claims.ID, nil
}

func newSessionID() (string, error) {
	b := make([]byte, sessionIDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return hex.EncodeToString(b), nil
}
