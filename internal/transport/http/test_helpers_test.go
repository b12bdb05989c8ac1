package http

import (
	"bytes"
	"context"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/wirechat-lobby/internal/auth"
	"github.com/vovakirdan/wirechat-lobby/internal/config"
	"github.com/vovakirdan/wirechat-lobby/internal/core"
	"github.com/vovakirdan/wirechat-lobby/internal/log"
	"github.com/vovakirdan/wirechat-lobby/internal/metrics"
	"github.com/vovakirdan/wirechat-lobby/internal/proto"
	"github.com/vovakirdan/wirechat-lobby/internal/store/sqlite"
)

type testEnv struct {
	server  *stdhttp.Server
	ts      *httptest.Server
	hub     *core.Hub
	auth    *auth.Service
	metrics *metrics.Metrics

	stopHub context.CancelFunc
}

func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	sessions, err := auth.NewSessionStore("test-secret", 0)
	if err != nil {
		t.Fatalf("session store: %v", err)
	}
	authService := auth.NewService(st, sessions)

	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.ReadHeaderTimeout = time.Second
	if mutate != nil {
		mutate(&cfg)
	}

	logger := log.Nop()
	m := metrics.New()
	hub := core.NewHub(core.HubOptions{
		Sessions:         sessions,
		AdminIdentity:    cfg.AdminUsername,
		HistoryWindow:    cfg.HistoryWindow,
		MaxMessageLength: cfg.MaxMessageLength,
		Logger:           logger,
		Metrics:          m,
	})
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := NewServer(hub, authService, st, m, &cfg, logger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(func() {
		cancel()
		<-hub.Done()
		ts.Close()
	})

	return &testEnv{
		server:  server,
		ts:      ts,
		hub:     hub,
		auth:    authService,
		metrics: m,
		stopHub: cancel,
	}
}

// register creates a user and returns its session token.
func (e *testEnv) register(t *testing.T, username string) string {
	t.Helper()

	token, err := e.auth.Register(context.Background(), auth.Registration{
		Username: username,
		Password: "password123",
		Question: "favourite colour?",
		Answer:   "blue",
	})
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return token
}

// do runs a request against the router without going over the network.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(HeaderSessionID, token)
	}

	resp := httptest.NewRecorder()
	e.server.Handler.ServeHTTP(resp, req)
	return resp
}

func (e *testEnv) wsURL() string {
	return strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws"
}

func (e *testEnv) dial(t *testing.T, ctx context.Context, token string) *websocket.Conn {
	t.Helper()

	header := stdhttp.Header{}
	header.Set(HeaderSessionID, token)
	conn, _, err := websocket.Dial(ctx, e.wsURL(), &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn
}

type outboundFrame struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

// readUntil reads frames until one matches typ and event (event is ignored
// for error frames).
func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, typ, event string) outboundFrame {
	t.Helper()

	for {
		var frame outboundFrame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			t.Fatalf("waiting for %s/%s: %v", typ, event, err)
		}
		if frame.Type != typ {
			continue
		}
		if typ == proto.OutboundTypeError || frame.Event == event {
			return frame
		}
	}
}

func sendFrame(t *testing.T, ctx context.Context, conn *websocket.Conn, typ string, data any) {
	t.Helper()

	inbound := proto.Inbound{Type: typ}
	if data != nil {
		payload, err := json.Marshal(data)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		inbound.Data = payload
	}
	if err := wsjson.Write(ctx, conn, inbound); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return v
}
