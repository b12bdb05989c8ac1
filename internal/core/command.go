package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandChatMessage appends a message to the log and broadcasts it.
	CommandChatMessage CommandKind = iota
	// CommandTypingStart marks the sender as typing.
	CommandTypingStart
	// CommandTypingStop clears the sender's typing mark.
	CommandTypingStop
	// CommandAdminClear empties the log; admin identity only.
	CommandAdminClear
)

// Command represents an action requested by a client. The acting identity
// always comes from the connection or resolved session, never from the payload.
type Command struct {
	Kind CommandKind
	Body string
}

// internal requests served by the hub loop
type requestKind int

const (
	requestCommand requestKind = iota
	requestAdmit
	requestLeave
	requestSnapshot
)

type request struct {
	kind     requestKind
	client   *Client
	identity string // set for commands that do not come from a connection
	token    string
	cmd      Command
	reply    chan reply
}

type reply struct {
	err      error
	message  Message
	snapshot Snapshot
}
