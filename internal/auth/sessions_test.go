package auth

import (
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestSessionStoreCreateResolve(t *testing.T) {
	s, err := NewSessionStore("secret", 0)
	require.NoError(t, err)

	token, err := s.Create("alice")
	require.NoError(t, err)

	identity, ok := s.Resolve(token)
	require.True(t, ok)
	require.Equal(t, "alice", identity)

	_, ok = s.Resolve("")
	require.False(t, ok)
	_, ok = s.Resolve("not-a-token")
	require.False(t, ok)

	_, err = s.Create("")
	require.Error(t, err)
}

func TestSessionStoreRejectsForeignSignature(t *testing.T) {
	ours, err := NewSessionStore("ours", 0)
	require.NoError(t, err)
	theirs, err := NewSessionStore("theirs", 0)
	require.NoError(t, err)

	token, err := theirs.Create("mallory")
	require.NoError(t, err)
	_, ok := ours.Resolve(token)
	require.False(t, ok)
}

func TestSessionStoreRequiresLiveEntry(t *testing.T) {
	first, err := NewSessionStore("shared", 0)
	require.NoError(t, err)
	second, err := NewSessionStore("shared", 0)
	require.NoError(t, err)

	// Valid signature alone is not enough.
	token, err := first.Create("alice")
	require.NoError(t, err)
	_, ok := second.Resolve(token)
	require.False(t, ok)

	// Neither is a forged id signed with the right key.
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{ID: "guess", Subject: "admin"}).
		SignedString([]byte("shared"))
	require.NoError(t, err)
	_, ok = first.Resolve(forged)
	require.False(t, ok)
}

func TestSessionStoreRevoke(t *testing.T) {
	s, err := NewSessionStore("", 0)
	require.NoError(t, err)

	a, err := s.Create("alice")
	require.NoError(t, err)
	b, err := s.Create("alice")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
	require.Equal(t, 2, liveSessions(s))

	s.Revoke(a)
	s.Revoke(a)
	s.Revoke("garbage")
	_, ok := s.Resolve(a)
	require.False(t, ok)
	identity, ok := s.Resolve(b)
	require.True(t, ok)
	require.Equal(t, "alice", identity)
	require.Equal(t, 1, liveSessions(s))
}

func TestSessionStoreExpiry(t *testing.T) {
	s, err := NewSessionStore("secret", time.Hour)
	require.NoError(t, err)

	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	token, err := s.Create("alice")
	require.NoError(t, err)
	_, ok := s.Resolve(token)
	require.True(t, ok)

	now = now.Add(2 * time.Hour)
	_, ok = s.Resolve(token)
	require.False(t, ok)
	require.Zero(t, liveSessions(s))
}

func TestSessionStoreConcurrentUse(t *testing.T) {
	s, err := NewSessionStore("secret", 0)
	require.NoError(t, err)

	var wg sync.WaitGroup
	tokens := make([]string, 32)
	for i := range tokens {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			token, err := s.Create("user")
			if err != nil {
				t.Error(err)
				return
			}
			tokens[i] = token
			if _, ok := s.Resolve(token); !ok {
				t.Error("fresh token did not resolve")
			}
		}(i)
	}
	wg.Wait()
	require.Equal(t, len(tokens), liveSessions(s))
}

func liveSessions(s *SessionStore) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
