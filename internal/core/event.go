package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventActiveCount carries the number of admitted connections.
	EventActiveCount EventKind = iota
	// EventHistory delivers the recent window privately after admission.
	EventHistory
	// EventChatMessage notifies every client about an appended message.
	EventChatMessage
	// EventTypingChanged tells other clients that a user started or stopped typing.
	EventTypingChanged
	// EventClearedAll tells clients to drop the history they display.
	EventClearedAll
	// EventForcedDisconnect is the last event a connection gets before the server closes it.
	EventForcedDisconnect
	// EventError notifies a single client about a rejected command.
	EventError
)

var eventKindNames = [...]string{
	EventActiveCount:      "active_count",
	EventHistory:          "history",
	EventChatMessage:      "chat_message",
	EventTypingChanged:    "typing_changed",
	EventClearedAll:       "cleared_all",
	EventForcedDisconnect: "forced_disconnect",
	EventError:            "error",
}

func (k EventKind) String() string {
	if k < 0 || int(k) >= len(eventKindNames) {
		return "unknown"
	}
	return eventKindNames[k]
}

// Event is sent to clients to describe what happened in the system.
// Events are shared between recipients and must not be modified after fan-out.
type Event struct {
	Kind     EventKind
	Count    int       // EventActiveCount
	Messages []Message // EventHistory
	Message  Message   // EventChatMessage
	User     string    // EventTypingChanged
	Typing   bool      // EventTypingChanged
	Reason   string    // EventForcedDisconnect
	Error    *CoreError
}
