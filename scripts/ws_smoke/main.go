package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/wirechat-lobby/internal/proto"
)

type frame struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	base := flag.String("base", "http://localhost:3000", "server base URL")
	user := flag.String("user", "tester", "username; registered on first use")
	password := flag.String("password", "tester-password", "password")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	session, err := login(ctx, *base, *user, *password)
	if err != nil {
		return err
	}

	header := http.Header{}
	header.Set("X-Session-Id", session)
	wsURL := strings.Replace(*base, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	payload, err := json.Marshal(proto.ChatMessageData{Body: *text})
	if err != nil {
		return fmt.Errorf("marshal chat_message: %w", err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeChatMessage, Data: payload}); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	for {
		var f frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			return fmt.Errorf("read: %w", err)
		}

		fmt.Printf("Received outbound: type=%s", f.Type)
		if f.Event != "" {
			fmt.Printf(" event=%s", f.Event)
		}
		fmt.Println()

		if f.Error != nil {
			fmt.Printf("Error: %s: %s\n", f.Error.Code, f.Error.Msg)
			continue
		}

		switch f.Event {
		case proto.EventChatMessage:
			var evt proto.EventMessage
			if err := json.Unmarshal(f.Data, &evt); err != nil {
				fmt.Printf("Raw data: %s\n", string(f.Data))
				return fmt.Errorf("unmarshal message: %w", err)
			}
			fmt.Printf("EventMessage: author=%s body=%q sent_at=%s\n", evt.Author, evt.Body, evt.SentAt.Format(time.RFC3339))
			if evt.Author == *user && evt.Body == strings.TrimSpace(*text) {
				return nil
			}
		case proto.EventActiveCount:
			var evt proto.EventActiveCountData
			if err := json.Unmarshal(f.Data, &evt); err == nil {
				fmt.Printf("Active: %d\n", evt.Count)
			}
		case proto.EventHistory:
			var evt proto.EventHistoryData
			if err := json.Unmarshal(f.Data, &evt); err == nil {
				fmt.Printf("History: %d messages\n", len(evt.Messages))
			}
		}
	}
}

// login returns a session token, registering the user when login fails.
func login(ctx context.Context, base, user, password string) (string, error) {
	token, status, err := postSession(ctx, base+"/api/login", map[string]string{
		"username": user,
		"password": password,
	})
	if err != nil {
		return "", err
	}
	if status == http.StatusOK {
		return token, nil
	}

	token, status, err = postSession(ctx, base+"/api/register", map[string]string{
		"username": user,
		"password": password,
		"question": "smoke test?",
		"answer":   "yes",
	})
	if err != nil {
		return "", err
	}
	if status != http.StatusCreated {
		return "", fmt.Errorf("register: unexpected status %d", status)
	}
	return token, nil
}

func postSession(ctx context.Context, url string, body any) (string, int, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return "", 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("post %s: %w", url, err)
	}
	defer resp.Body.Close()

	var out struct {
		SessionID string `json:"session_id"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return out.SessionID, resp.StatusCode, nil
}
