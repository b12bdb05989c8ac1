package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-lobby/internal/core"
	"github.com/vovakirdan/wirechat-lobby/internal/proto"
)

const readLimit = 64 << 10

// WSOptions tunes per-connection behaviour.
type WSOptions struct {
	ClientBuffer       int
	RateLimitPerMinute int
}

// WSHandler admits a session, upgrades the connection and bridges it to a
// core.Client.
type WSHandler struct {
	hub  *core.Hub
	opts WSOptions
	log  *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, opts WSOptions, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{hub: hub, opts: opts, log: logger}
}

// hubClosure is returned by the write loop when the hub closed the
// client's queue.
type hubClosure struct {
	status websocket.StatusCode
	reason string
}

func (e *hubClosure) Error() string { return e.reason }

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	client := core.NewClient(h.opts.ClientBuffer)
	defer h.hub.Leave(client)

	// Admission happens before the upgrade so a rejected session never
	// reaches the WebSocket protocol.
	if err := h.hub.Admit(r.Context(), client, sessionToken(r)); err != nil {
		if errors.Is(err, core.ErrUnauthorized) {
			h.log.Debug().Str("remote", r.RemoteAddr).Msg("ws admission rejected")
			writeJSON(w, stdhttp.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
			return
		}
		h.log.Warn().Err(err).Msg("ws admission failed")
		writeJSON(w, stdhttp.StatusServiceUnavailable, ErrorResponse{Error: "unavailable"})
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(readLimit)

	// The request context is not used for the loops: the hub decides when a
	// connection ends.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	limiter := newRateLimiter(h.opts.RateLimitPerMinute)
	limiter.startReset(ctx.Done())

	readErr := make(chan error, 1)
	writeErr := make(chan error, 1)
	go func() {
		readErr <- h.readLoop(ctx, conn, client, limiter)
	}()
	go func() {
		writeErr <- h.writeLoop(ctx, conn, client)
	}()

	select {
	case err = <-writeErr:
		var closure *hubClosure
		if errors.As(err, &closure) {
			_ = conn.Close(closure.status, closure.reason)
		}
		cancel()
		<-readErr
	case err = <-readErr:
		cancel()
		<-writeErr
		h.closeAfterRead(conn, client, err)
	}
}

func (h *WSHandler) closeAfterRead(conn *websocket.Conn, client *core.Client, err error) {
	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
				reason = "internal error"
			}
			h.log.Warn().Err(err).Str("client_id", client.ID).Msg("ws connection closed with error")
		}
	}
	_ = conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client, limiter *rateLimiter) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		if !limiter.allow() {
			if err := writeError(ctx, conn, core.ErrCodeRateLimited, "too many messages"); err != nil {
				return err
			}
			continue
		}

		cmd, protoErr := inboundToCommand(inbound)
		if protoErr != nil {
			if err := wsjson.Write(ctx, conn, proto.Outbound{Type: proto.OutboundTypeError, Error: protoErr}); err != nil {
				return err
			}
			continue
		}

		err := h.hub.Dispatch(ctx, client, cmd)
		switch {
		case err == nil:
		case errors.Is(err, core.ErrInvalidInput), errors.Is(err, core.ErrForbidden):
			// Dropped or already answered by the hub.
		case errors.Is(err, core.ErrUnauthorized), errors.Is(err, core.ErrHubClosed):
			// Evicted or shutting down; the write loop reports the closure.
			<-ctx.Done()
			return ctx.Err()
		default:
			return err
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				if client.CloseCause() == core.CauseShutdown {
					return &hubClosure{status: websocket.StatusGoingAway, reason: "server shutting down"}
				}
				return &hubClosure{status: websocket.StatusPolicyViolation, reason: "outbound queue full"}
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Debug().Err(err).Str("client_id", client.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func writeError(ctx context.Context, conn *websocket.Conn, code, msg string) error {
	return wsjson.Write(ctx, conn, proto.Outbound{
		Type:  proto.OutboundTypeError,
		Error: &proto.Error{Code: code, Msg: msg},
	})
}

func writeJSON(w stdhttp.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
