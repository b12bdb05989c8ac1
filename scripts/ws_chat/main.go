package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

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
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:3000/ws", "WebSocket address")
	session := flag.String("session", os.Getenv("WIRECHAT_SESSION"), "session token from /api/login")
	flag.Parse()

	if *session == "" {
		return errors.New("a session token is required (-session or WIRECHAT_SESSION)")
	}

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	target, err := url.Parse(*addr)
	if err != nil {
		return fmt.Errorf("parse addr: %w", err)
	}
	header := http.Header{}
	header.Set("X-Session-Id", *session)

	conn, resp, err := websocket.Dial(ctx, target.String(), &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return errors.New("session rejected, log in again")
		}
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	fmt.Printf("Connected to %s\n", *addr)
	fmt.Println("Type messages and press Enter to send. /clear clears the room (admin only). Ctrl+C to exit.")

	go func() {
		defer cancel()
		readLoop(ctx, conn)
	}()

	writeLoop(ctx, conn)

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

func readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var f frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			// Treat expected shutdowns quietly.
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				fmt.Println("server closed the connection")
				return
			}
			log.Printf("read error: %v", err)
			return
		}

		if f.Error != nil {
			fmt.Printf("! %s: %s\n", f.Error.Code, f.Error.Msg)
			continue
		}

		switch f.Event {
		case proto.EventChatMessage:
			var evt proto.EventMessage
			if err := json.Unmarshal(f.Data, &evt); err != nil {
				log.Printf("unmarshal message: %v", err)
				continue
			}
			printMessage(evt)
		case proto.EventHistory:
			var evt proto.EventHistoryData
			if err := json.Unmarshal(f.Data, &evt); err != nil {
				log.Printf("unmarshal history: %v", err)
				continue
			}
			for _, m := range evt.Messages {
				printMessage(m)
			}
		case proto.EventActiveCount:
			var evt proto.EventActiveCountData
			if err := json.Unmarshal(f.Data, &evt); err == nil {
				fmt.Printf("* %d online\n", evt.Count)
			}
		case proto.EventTypingChanged:
			var evt proto.EventTypingChangedData
			if err := json.Unmarshal(f.Data, &evt); err == nil && evt.Typing {
				fmt.Printf("* %s is typing\n", evt.User)
			}
		case proto.EventClearedAll:
			fmt.Println("* messages cleared")
		case proto.EventForcedDisconnect:
			var evt proto.EventForcedDisconnectData
			_ = json.Unmarshal(f.Data, &evt)
			fmt.Printf("* disconnected: %s\n", evt.Reason)
		default:
			fmt.Printf("event=%s data=%s\n", f.Event, string(f.Data))
		}
	}
}

func printMessage(m proto.EventMessage) {
	fmt.Printf("[%s] %s: %s\n", m.SentAt.Local().Format("15:04"), m.Author, m.Body)
}

func writeLoop(ctx context.Context, conn *websocket.Conn) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}

			inbound := proto.Inbound{Type: proto.InboundTypeChatMessage}
			if text == "/clear" {
				inbound.Type = proto.InboundTypeAdminClear
			} else {
				payload, err := json.Marshal(proto.ChatMessageData{Body: text})
				if err != nil {
					log.Printf("marshal chat_message: %v", err)
					return
				}
				inbound.Data = payload
			}
			if err := wsjson.Write(ctx, conn, inbound); err != nil {
				log.Printf("send error: %v", err)
				return
			}
		}
	}
}
