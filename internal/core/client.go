package core

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// ConnState is the lifecycle state of a connection.
type ConnState int32

const (
	// StatePending: transport open, session not yet resolved.
	StatePending ConnState = iota
	// StateAdmitted: bound to an identity and receiving events.
	StateAdmitted
	// StateClosed is terminal.
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateAdmitted:
		return "admitted"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// CloseCause records why the hub closed a client's Events channel.
type CloseCause int32

const (
	// CauseNone: Events is still open, or the client was never admitted.
	CauseNone CloseCause = iota
	// CauseLeft: the transport went away and asked to leave.
	CauseLeft
	// CauseEvicted: the outbound queue was full.
	CauseEvicted
	// CauseShutdown: the hub is stopping.
	CauseShutdown
)

const defaultClientBuffer = 64

// Client is one duplex connection as seen by the core layer.
//
// Events is written and closed only by the hub goroutine. A closed Events
// channel means the connection was removed and the transport should hang up.
type Client struct {
	ID     string
	Events chan *Event

	handle   ConnID
	identity string
	state    atomic.Int32
	cause    atomic.Int32
}

// NewClient constructs a pending client whose outbound queue holds buffer events.
func NewClient(buffer int) *Client {
	if buffer <= 0 {
		buffer = defaultClientBuffer
	}
	return &Client{
		ID:     uuid.NewString(),
		Events: make(chan *Event, buffer),
	}
}

// Identity is the username bound at admission; empty while pending or after a rejected admission.
func (c *Client) Identity() string {
	if c.State() == StatePending {
		return ""
	}
	return c.identity
}

// Handle is the registry handle assigned at admission.
func (c *Client) Handle() ConnID {
	return c.handle
}

// State reports the lifecycle state. Safe for concurrent use.
func (c *Client) State() ConnState {
	return ConnState(c.state.Load())
}

func (c *Client) admit(handle ConnID, identity string) {
	c.handle = handle
	c.identity = identity
	c.state.Store(int32(StateAdmitted))
}

// CloseCause reports why Events was closed. It is set before the close, so
// it is accurate once a receive on Events has observed the close.
func (c *Client) CloseCause() CloseCause {
	return CloseCause(c.cause.Load())
}

// close marks the client closed and closes Events. Hub goroutine only.
func (c *Client) close(cause CloseCause) {
	prev := ConnState(c.state.Swap(int32(StateClosed)))
	if prev == StateAdmitted {
		c.cause.Store(int32(cause))
		close(c.Events)
	}
}

// deliver queues ev without blocking and reports whether it fit.
func (c *Client) deliver(ev *Event) bool {
	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}
