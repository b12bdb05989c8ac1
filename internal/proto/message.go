package proto

import (
	"encoding/json"
	"time"
)

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

const (
	InboundTypeChatMessage = "chat_message"
	InboundTypeTypingStart = "typing_start"
	InboundTypeTypingStop  = "typing_stop"
	InboundTypeAdminClear  = "admin_clear"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventActiveCount      = "active_count"
	EventHistory          = "history"
	EventChatMessage      = "chat_message"
	EventTypingChanged    = "typing_changed"
	EventClearedAll       = "cleared_all"
	EventForcedDisconnect = "forced_disconnect"
)

// ChatMessageData is a chat message from the client. The author is never
// taken from the payload.
type ChatMessageData struct {
	Body string `json:"body"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// EventMessage is one chat message as clients see it.
type EventMessage struct {
	Author string    `json:"author"`
	Body   string    `json:"body"`
	SentAt time.Time `json:"sent_at"`
}

// EventActiveCountData carries the number of admitted connections.
type EventActiveCountData struct {
	Count int `json:"count"`
}

// EventHistoryData is the recent window sent privately on admission.
type EventHistoryData struct {
	Messages []EventMessage `json:"messages"`
}

// EventTypingChangedData reports a typing indicator change.
type EventTypingChangedData struct {
	User   string `json:"user"`
	Typing bool   `json:"typing"`
}

// EventForcedDisconnectData tells the client why the server hung up.
type EventForcedDisconnectData struct {
	Reason string `json:"reason"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
