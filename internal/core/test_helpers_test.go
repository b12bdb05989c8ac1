package core

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeSessions struct {
	mu     sync.Mutex
	tokens map[string]string
}

func newFakeSessions(pairs ...string) *fakeSessions {
	s := &fakeSessions{tokens: make(map[string]string)}
	for i := 0; i+1 < len(pairs); i += 2 {
		s.tokens[pairs[i]] = pairs[i+1]
	}
	return s
}

func (s *fakeSessions) Resolve(token string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	identity, ok := s.tokens[token]
	return identity, ok
}

// startHub runs a hub whose sessions map token "<name>-token" to name.
func startHub(t *testing.T, opts HubOptions, users ...string) (*Hub, context.CancelFunc) {
	t.Helper()

	if opts.Sessions == nil {
		pairs := make([]string, 0, len(users)*2)
		for _, u := range users {
			pairs = append(pairs, u+"-token", u)
		}
		opts.Sessions = newFakeSessions(pairs...)
	}
	if opts.AdminIdentity == "" {
		opts.AdminIdentity = "admin"
	}

	hub := NewHub(opts)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-hub.Done()
	})
	return hub, cancel
}

func mustAdmit(t *testing.T, hub *Hub, user string, buffer int) *Client {
	t.Helper()

	c := NewClient(buffer)
	if err := hub.Admit(context.Background(), c, user+"-token"); err != nil {
		t.Fatalf("admit %s: %v", user, err)
	}
	return c
}

func mustDispatch(t *testing.T, hub *Hub, c *Client, cmd Command) {
	t.Helper()
	if err := hub.Dispatch(context.Background(), c, cmd); err != nil {
		t.Fatalf("dispatch %+v: %v", cmd, err)
	}
}

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("channel closed while waiting for %v", kind)
			}
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("expected event kind %v not received", kind)
			return nil
		}
	}
}

// nextEvent returns the next queued event. Hub calls return only after the
// fan-out, so everything a test expects is already queued.
func nextEvent(t *testing.T, ch <-chan *Event) *Event {
	t.Helper()

	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatalf("channel closed")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("no event queued")
		return nil
	}
}

// drain returns every queued event without waiting.
func drain(ch <-chan *Event) []*Event {
	var out []*Event
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func ofKind(events []*Event, kind EventKind) []*Event {
	var out []*Event
	for _, ev := range events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func expectNoEvent(t *testing.T, ch <-chan *Event) {
	t.Helper()
	if evs := drain(ch); len(evs) > 0 {
		t.Fatalf("expected no events, got %d (first %v)", len(evs), evs[0].Kind)
	}
}
