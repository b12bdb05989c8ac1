package http

import (
	stdhttp "net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wirechat-lobby/internal/proto"
)

func TestRegisterEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	body := map[string]string{
		"username": "alice",
		"password": "password123",
		"question": "first pet?",
		"answer":   "Rex",
	}
	resp := env.do(t, stdhttp.MethodPost, "/api/register", "", body)
	require.Equal(t, stdhttp.StatusCreated, resp.Code, resp.Body.String())
	created := decode[SessionResponse](t, resp.Body.Bytes())
	require.NotEmpty(t, created.SessionID)

	resp = env.do(t, stdhttp.MethodPost, "/api/register", "", body)
	require.Equal(t, stdhttp.StatusConflict, resp.Code)

	delete(body, "answer")
	body["username"] = "bob"
	resp = env.do(t, stdhttp.MethodPost, "/api/register", "", body)
	require.Equal(t, stdhttp.StatusBadRequest, resp.Code)

	resp = env.do(t, stdhttp.MethodGet, "/api/whoami", created.SessionID, nil)
	require.Equal(t, stdhttp.StatusOK, resp.Code)
	require.Equal(t, "alice", decode[WhoAmIResponse](t, resp.Body.Bytes()).Username)
}

func TestLoginLogoutWhoAmI(t *testing.T) {
	env := newTestEnv(t, nil)
	env.register(t, "bob")

	resp := env.do(t, stdhttp.MethodPost, "/api/login", "", LoginRequest{Username: "bob", Password: "nope-nope"})
	require.Equal(t, stdhttp.StatusUnauthorized, resp.Code)

	resp = env.do(t, stdhttp.MethodPost, "/api/login", "", LoginRequest{Username: "bob", Password: "password123"})
	require.Equal(t, stdhttp.StatusOK, resp.Code)
	token := decode[SessionResponse](t, resp.Body.Bytes()).SessionID

	resp = env.do(t, stdhttp.MethodGet, "/api/whoami", "", nil)
	require.Equal(t, stdhttp.StatusUnauthorized, resp.Code)

	resp = env.do(t, stdhttp.MethodGet, "/api/whoami", token, nil)
	require.Equal(t, stdhttp.StatusOK, resp.Code)

	resp = env.do(t, stdhttp.MethodPost, "/api/logout", token, nil)
	require.Equal(t, stdhttp.StatusNoContent, resp.Code)

	resp = env.do(t, stdhttp.MethodGet, "/api/whoami", token, nil)
	require.Equal(t, stdhttp.StatusUnauthorized, resp.Code)
}

func TestBearerTokenIsAccepted(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.register(t, "carol")

	req, err := stdhttp.NewRequest(stdhttp.MethodGet, env.ts.URL+"/api/whoami", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := env.ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, stdhttp.StatusOK, resp.StatusCode)
}

func TestPasswordRecovery(t *testing.T) {
	env := newTestEnv(t, nil)
	env.register(t, "dave")

	resp := env.do(t, stdhttp.MethodGet, "/api/recovery-question?username=dave", "", nil)
	require.Equal(t, stdhttp.StatusOK, resp.Code)
	require.Equal(t, "favourite colour?", decode[RecoveryQuestionResponse](t, resp.Body.Bytes()).Question)

	resp = env.do(t, stdhttp.MethodGet, "/api/recovery-question?username=ghost", "", nil)
	require.Equal(t, stdhttp.StatusNotFound, resp.Code)

	resp = env.do(t, stdhttp.MethodGet, "/api/recovery-question", "", nil)
	require.Equal(t, stdhttp.StatusBadRequest, resp.Code)

	resp = env.do(t, stdhttp.MethodPost, "/api/reset-password", "",
		ResetPasswordRequest{Username: "dave", Answer: "red", Password: "newpass1"})
	require.Equal(t, stdhttp.StatusUnauthorized, resp.Code)

	resp = env.do(t, stdhttp.MethodPost, "/api/reset-password", "",
		ResetPasswordRequest{Username: "dave", Answer: "Blue", Password: "123"})
	require.Equal(t, stdhttp.StatusBadRequest, resp.Code)

	resp = env.do(t, stdhttp.MethodPost, "/api/reset-password", "",
		ResetPasswordRequest{Username: "dave", Answer: "Blue", Password: "newpass1"})
	require.Equal(t, stdhttp.StatusOK, resp.Code, resp.Body.String())
	token := decode[SessionResponse](t, resp.Body.Bytes()).SessionID

	resp = env.do(t, stdhttp.MethodGet, "/api/whoami", token, nil)
	require.Equal(t, stdhttp.StatusOK, resp.Code)
	require.Equal(t, "dave", decode[WhoAmIResponse](t, resp.Body.Bytes()).Username)

	resp = env.do(t, stdhttp.MethodPost, "/api/login", "", LoginRequest{Username: "dave", Password: "password123"})
	require.Equal(t, stdhttp.StatusUnauthorized, resp.Code)
	resp = env.do(t, stdhttp.MethodPost, "/api/login", "", LoginRequest{Username: "dave", Password: "newpass1"})
	require.Equal(t, stdhttp.StatusOK, resp.Code)
}

func TestPostMessageAndSearch(t *testing.T) {
	env := newTestEnv(t, nil)
	alice := env.register(t, "alice")
	env.register(t, "alina")

	resp := env.do(t, stdhttp.MethodPost, "/api/messages", alice, PostMessageRequest{Body: "   "})
	require.Equal(t, stdhttp.StatusBadRequest, resp.Code)

	resp = env.do(t, stdhttp.MethodPost, "/api/messages", alice, PostMessageRequest{Body: "Hello World"})
	require.Equal(t, stdhttp.StatusCreated, resp.Code)
	msg := decode[proto.EventMessage](t, resp.Body.Bytes())
	require.Equal(t, "alice", msg.Author)
	require.Equal(t, "Hello World", msg.Body)

	resp = env.do(t, stdhttp.MethodPost, "/api/messages", alice, PostMessageRequest{Body: "unrelated"})
	require.Equal(t, stdhttp.StatusCreated, resp.Code)

	resp = env.do(t, stdhttp.MethodGet, "/api/search?q=world", "", nil)
	require.Equal(t, stdhttp.StatusOK, resp.Code)
	found := decode[SearchResponse](t, resp.Body.Bytes())
	require.Len(t, found.Messages, 1)
	require.Equal(t, "Hello World", found.Messages[0].Body)
	require.Empty(t, found.Users)

	resp = env.do(t, stdhttp.MethodGet, "/api/search?q=ALI", "", nil)
	found = decode[SearchResponse](t, resp.Body.Bytes())
	require.Len(t, found.Messages, 2, "author matches count too")
	require.Equal(t, []UserResponse{{Username: "alice"}, {Username: "alina"}}, found.Users)

	resp = env.do(t, stdhttp.MethodGet, "/api/search?q=", "", nil)
	require.Equal(t, stdhttp.StatusOK, resp.Code)
	require.JSONEq(t, `{"messages":[],"users":[]}`, resp.Body.String())
}

func TestSearchKeepsLastMatches(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.register(t, "alice")

	for i := 0; i < 55; i++ {
		resp := env.do(t, stdhttp.MethodPost, "/api/messages", token, PostMessageRequest{Body: "needle " + strings.Repeat("x", i)})
		require.Equal(t, stdhttp.StatusCreated, resp.Code)
	}

	resp := env.do(t, stdhttp.MethodGet, "/api/search?q=needle", "", nil)
	found := decode[SearchResponse](t, resp.Body.Bytes())
	require.Len(t, found.Messages, 50)
	require.Equal(t, "needle "+strings.Repeat("x", 5), found.Messages[0].Body)
	require.Equal(t, "needle "+strings.Repeat("x", 54), found.Messages[49].Body)
}

func TestClearMessagesEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	admin := env.register(t, "admin")
	bob := env.register(t, "bob")

	resp := env.do(t, stdhttp.MethodPost, "/api/messages", bob, PostMessageRequest{Body: "keep me?"})
	require.Equal(t, stdhttp.StatusCreated, resp.Code)

	resp = env.do(t, stdhttp.MethodPost, "/api/clear-messages", "", nil)
	require.Equal(t, stdhttp.StatusUnauthorized, resp.Code)

	resp = env.do(t, stdhttp.MethodPost, "/api/clear-messages", bob, nil)
	require.Equal(t, stdhttp.StatusForbidden, resp.Code)

	resp = env.do(t, stdhttp.MethodGet, "/api/search?q=keep", "", nil)
	require.Len(t, decode[SearchResponse](t, resp.Body.Bytes()).Messages, 1)

	resp = env.do(t, stdhttp.MethodPost, "/api/clear-messages", admin, nil)
	require.Equal(t, stdhttp.StatusOK, resp.Code)

	resp = env.do(t, stdhttp.MethodGet, "/api/search?q=keep", "", nil)
	require.Empty(t, decode[SearchResponse](t, resp.Body.Bytes()).Messages)
}

func TestPresenceEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.register(t, "alice")

	resp := env.do(t, stdhttp.MethodGet, "/api/presence", token, nil)
	require.Equal(t, stdhttp.StatusOK, resp.Code)
	require.JSONEq(t, `{"active":0,"typing":[],"online":[]}`, resp.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.register(t, "alice")

	resp := env.do(t, stdhttp.MethodPost, "/api/messages", token, PostMessageRequest{Body: "counted"})
	require.Equal(t, stdhttp.StatusCreated, resp.Code)

	resp = env.do(t, stdhttp.MethodGet, "/metrics", "", nil)
	require.Equal(t, stdhttp.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), "wirechat_messages_total 1")
}
