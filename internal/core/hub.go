package core

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	wlog "github.com/vovakirdan/wirechat-lobby/internal/log"
	"github.com/vovakirdan/wirechat-lobby/internal/metrics"
)

// DefaultHistoryWindow is how many recent messages a new connection receives.
const DefaultHistoryWindow = 5

const inboxSize = 256

// SessionResolver maps a session token to the identity it was minted for.
type SessionResolver interface {
	Resolve(token string) (identity string, ok bool)
}

// HubOptions configures a Hub. Zero values fall back to defaults.
type HubOptions struct {
	Sessions         SessionResolver
	Log              *MessageLog
	AdminIdentity    string
	HistoryWindow    int
	MaxMessageLength int // in runes, 0 means unlimited
	Logger           *zerolog.Logger
	Metrics          *metrics.Metrics
	Now              func() time.Time
}

// Snapshot is a read-only copy of the hub state.
type Snapshot struct {
	Messages []Message
	Active   int
	Online   []string
	Typing   []string
}

// Hub is the broadcast engine. A single goroutine (Run) owns the
// connection registry, presence, and every mutation of the message log.
// Each request is applied and fanned out completely before the next one
// is taken from the inbox, so all connections observe one global order.
type Hub struct {
	sessions      SessionResolver
	messages      *MessageLog
	admin         string
	historyWindow int
	maxLen        int
	log           *zerolog.Logger
	metrics       *metrics.Metrics
	now           func() time.Time

	conns    *Registry
	presence *Presence

	inbox chan request
	done  chan struct{}
}

// NewHub creates a new chat hub instance.
func NewHub(opts HubOptions) *Hub {
	h := &Hub{
		sessions:      opts.Sessions,
		messages:      opts.Log,
		admin:         opts.AdminIdentity,
		historyWindow: opts.HistoryWindow,
		maxLen:        opts.MaxMessageLength,
		log:           wlog.OrNop(opts.Logger),
		metrics:       opts.Metrics,
		now:           opts.Now,
		conns:         NewRegistry(),
		presence:      NewPresence(),
		inbox:         make(chan request, inboxSize),
		done:          make(chan struct{}),
	}
	if h.messages == nil {
		h.messages = NewMessageLog(nil, nil)
	}
	if h.historyWindow <= 0 {
		h.historyWindow = DefaultHistoryWindow
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

// Run processes requests until ctx is cancelled. On cancellation every
// live connection gets a forced disconnect and is closed.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case req := <-h.inbox:
			r := h.handle(req)
			if req.reply != nil {
				req.reply <- r
			}
		case <-ctx.Done():
			h.shutdown("server shutting down")
			return
		}
	}
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Admit resolves token and, on success, registers c, broadcasts the new
// active count and sends c the recent history. Any error leaves no trace
// in any registry: if ctx ends while the request is queued, the admission
// is undone before Admit returns.
func (h *Hub) Admit(ctx context.Context, c *Client, token string) error {
	r, err := h.call(ctx, request{kind: requestAdmit, client: c, token: token})
	if err != nil {
		// The inbox is FIFO, so this leave is handled after the admit.
		h.Leave(c)
		return err
	}
	return r.err
}

// Dispatch applies a command on behalf of an admitted connection.
func (h *Hub) Dispatch(ctx context.Context, c *Client, cmd Command) error {
	r, err := h.call(ctx, request{kind: requestCommand, client: c, cmd: cmd})
	if err != nil {
		return err
	}
	return r.err
}

// Post appends a chat message on behalf of an already resolved identity.
func (h *Hub) Post(ctx context.Context, identity, body string) (Message, error) {
	r, err := h.call(ctx, request{
		kind:     requestCommand,
		identity: identity,
		cmd:      Command{Kind: CommandChatMessage, Body: body},
	})
	if err != nil {
		return Message{}, err
	}
	return r.message, r.err
}

// ClearAll empties the log if identity is the admin.
func (h *Hub) ClearAll(ctx context.Context, identity string) error {
	r, err := h.call(ctx, request{
		kind:     requestCommand,
		identity: identity,
		cmd:      Command{Kind: CommandAdminClear},
	})
	if err != nil {
		return err
	}
	return r.err
}

// Snapshot returns a copy of the log and presence state.
func (h *Hub) Snapshot(ctx context.Context) (Snapshot, error) {
	r, err := h.call(ctx, request{kind: requestSnapshot})
	if err != nil {
		return Snapshot{}, err
	}
	return r.snapshot, nil
}

// Leave removes c. It is safe to call for a connection that was never
// admitted, was already evicted, or after the hub stopped.
func (h *Hub) Leave(c *Client) {
	_, _ = h.call(context.Background(), request{kind: requestLeave, client: c})
}

func (h *Hub) call(ctx context.Context, req request) (reply, error) {
	req.reply = make(chan reply, 1)

	select {
	case h.inbox <- req:
	case <-h.done:
		return reply{}, ErrHubClosed
	case <-ctx.Done():
		return reply{}, ctx.Err()
	}

	select {
	case r := <-req.reply:
		return r, nil
	case <-h.done:
		// Run may have handled the request just before exiting.
		select {
		case r := <-req.reply:
			return r, nil
		default:
			return reply{}, ErrHubClosed
		}
	case <-ctx.Done():
		return reply{}, ctx.Err()
	}
}

func (h *Hub) handle(req request) reply {
	switch req.kind {
	case requestAdmit:
		return reply{err: h.admit(req.client, req.token)}
	case requestLeave:
		h.leave(req.client)
		return reply{}
	case requestSnapshot:
		return reply{snapshot: h.snapshot()}
	case requestCommand:
		return h.command(req)
	default:
		return reply{err: ErrInvalidInput}
	}
}

func (h *Hub) admit(c *Client, token string) error {
	if c == nil || c.State() != StatePending {
		return ErrInvalidInput
	}

	var identity string
	var ok bool
	if h.sessions != nil && token != "" {
		identity, ok = h.sessions.Resolve(token)
	}
	if !ok || identity == "" {
		c.close(CauseNone)
		h.metrics.AdmissionRejected()
		h.log.Debug().Str("client_id", c.ID).Msg("admission rejected")
		return ErrUnauthorized
	}

	id := h.conns.Admit(c, identity)
	active := h.presence.Connect(identity)
	h.metrics.SetActiveConnections(active)
	h.log.Info().Str("client_id", c.ID).Str("user", identity).Int("active", active).Msg("client admitted")

	h.broadcast(h.activeCountEvent(), noConn)

	history := &Event{Kind: EventHistory, Messages: h.messages.Recent(h.historyWindow)}
	if !h.conns.Send(id, history) {
		h.evict(id)
	}
	return nil
}

func (h *Hub) leave(c *Client) {
	if c == nil {
		return
	}
	switch c.State() {
	case StatePending:
		c.close(CauseNone)
	case StateAdmitted:
		if _, ok := h.conns.Get(c.handle); ok {
			h.log.Info().Str("client_id", c.ID).Str("user", c.identity).Msg("client left")
			h.disconnect(CauseLeft, c.handle)
		}
	}
}

func (h *Hub) command(req request) reply {
	identity := req.identity
	origin := noConn
	if c := req.client; c != nil {
		if c.State() != StateAdmitted {
			return reply{err: ErrUnauthorized}
		}
		if _, ok := h.conns.Get(c.handle); !ok {
			return reply{err: ErrUnauthorized}
		}
		identity, origin = c.identity, c.handle
	}
	if identity == "" {
		return reply{err: ErrUnauthorized}
	}

	switch req.cmd.Kind {
	case CommandChatMessage:
		msg, err := h.chat(identity, req.cmd.Body)
		return reply{message: msg, err: err}
	case CommandTypingStart:
		h.typing(identity, origin, true)
	case CommandTypingStop:
		h.typing(identity, origin, false)
	case CommandAdminClear:
		if err := h.clear(identity); err != nil {
			if origin != noConn {
				h.sendError(origin, coreError(ErrCodeForbidden, "only the admin can clear messages"))
			}
			return reply{err: err}
		}
	default:
		if origin != noConn {
			h.sendError(origin, coreError(ErrCodeBadRequest, "unknown command"))
		}
		return reply{err: ErrInvalidInput}
	}
	return reply{}
}

func (h *Hub) chat(identity, body string) (Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return Message{}, ErrInvalidInput
	}
	if h.maxLen > 0 && utf8.RuneCountInString(body) > h.maxLen {
		h.log.Debug().Str("user", identity).Int("len", utf8.RuneCountInString(body)).Msg("message too long, dropped")
		return Message{}, ErrInvalidInput
	}

	msg := Message{Author: identity, Body: body, SentAt: h.now().UTC()}
	h.messages.Append(msg)
	h.metrics.MessageAppended()

	h.broadcast(&Event{Kind: EventChatMessage, Message: msg}, noConn)
	return msg, nil
}

func (h *Hub) typing(identity string, origin ConnID, typing bool) {
	h.presence.SetTyping(identity, typing)
	h.broadcast(&Event{Kind: EventTypingChanged, User: identity, Typing: typing}, origin)
}

func (h *Hub) clear(identity string) error {
	if h.admin == "" || identity != h.admin {
		h.log.Warn().Str("user", identity).Msg("clear rejected: not admin")
		return ErrForbidden
	}

	dropped := h.messages.Len()
	h.messages.Clear()
	h.metrics.LogCleared()
	h.log.Info().Str("user", identity).Int("dropped", dropped).Msg("message log cleared")

	h.broadcast(&Event{Kind: EventClearedAll}, noConn)
	return nil
}

func (h *Hub) snapshot() Snapshot {
	return Snapshot{
		Messages: h.messages.All(),
		Active:   h.presence.Active(),
		Online:   h.presence.Online(),
		Typing:   h.presence.Typing(),
	}
}

func (h *Hub) activeCountEvent() *Event {
	return &Event{Kind: EventActiveCount, Count: h.presence.Active()}
}

// broadcast fans ev out and then evicts every connection whose queue was
// full. Eviction happens only after the fan-out completed, so survivors see
// the follow-up events after ev.
func (h *Hub) broadcast(ev *Event, except ConnID) {
	if full := h.conns.Broadcast(ev, except); len(full) > 0 {
		h.evict(full...)
	}
}

func (h *Hub) sendError(id ConnID, err *CoreError) {
	if !h.conns.Send(id, &Event{Kind: EventError, Error: err}) {
		h.evict(id)
	}
}

func (h *Hub) evict(ids ...ConnID) {
	for _, id := range ids {
		if c, ok := h.conns.Get(id); ok {
			h.metrics.ConnectionEvicted()
			h.log.Warn().Str("client_id", c.ID).Str("user", c.identity).Msg("outbound queue full, disconnecting")
		}
	}
	h.disconnect(CauseEvicted, ids...)
}

// disconnect removes the given handles, updates presence and tells the
// remaining connections. Unknown handles are ignored.
func (h *Hub) disconnect(cause CloseCause, ids ...ConnID) {
	var stopped []string
	removed := 0
	for _, id := range ids {
		c, ok := h.conns.Remove(id)
		if !ok {
			continue
		}
		c.close(cause)
		removed++
		if h.presence.Disconnect(c.identity) && h.presence.SetTyping(c.identity, false) {
			stopped = append(stopped, c.identity)
		}
	}
	if removed == 0 {
		return
	}

	h.metrics.SetActiveConnections(h.presence.Active())
	h.broadcast(h.activeCountEvent(), noConn)
	for _, identity := range stopped {
		h.broadcast(&Event{Kind: EventTypingChanged, User: identity, Typing: false}, noConn)
	}
}

func (h *Hub) shutdown(reason string) {
	ev := &Event{Kind: EventForcedDisconnect, Reason: reason}
	closed := h.conns.Len()
	h.conns.Each(func(id ConnID, c *Client) {
		// Best effort: a full queue misses the event, the close cause still
		// tells the transport why.
		c.deliver(ev)
		h.conns.Remove(id)
		c.close(CauseShutdown)
	})
	h.presence.Reset()
	h.metrics.SetActiveConnections(0)
	h.log.Info().Int("closed", closed).Msg("hub stopped")
}
