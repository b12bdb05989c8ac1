package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	wlog "github.com/vovakirdan/wirechat-lobby/internal/log"
	"github.com/vovakirdan/wirechat-lobby/internal/metrics"
	"github.com/vovakirdan/wirechat-lobby/internal/store"
)

const persistTimeout = 5 * time.Second

// Persister writes log snapshots to a MessageStore off the hub's critical
// path. Snapshots queued while a write is in flight coalesce: only the
// newest one is written next. Failures are logged and counted, never
// returned to whoever changed the log.
type Persister struct {
	store   store.MessageStore
	log     *zerolog.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	pending []Message
	dirty   bool

	writeMu sync.Mutex
	wake    chan struct{}
	done    chan struct{}
}

var _ SnapshotSink = (*Persister)(nil)

// NewPersister builds a persister for st. logger and m may be nil.
func NewPersister(st store.MessageStore, logger *zerolog.Logger, m *metrics.Metrics) *Persister {
	return &Persister{
		store:   st,
		log:     wlog.OrNop(logger),
		metrics: m,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Enqueue replaces the pending snapshot and wakes the writer.
func (p *Persister) Enqueue(messages []Message) {
	p.mu.Lock()
	p.pending = messages
	p.dirty = true
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Run writes snapshots until ctx is cancelled, then flushes what is left.
func (p *Persister) Run(ctx context.Context) {
	defer close(p.done)

	for {
		select {
		case <-p.wake:
			p.flushLogged()
		case <-ctx.Done():
			p.flushLogged()
			return
		}
	}
}

// Done is closed when Run has returned.
func (p *Persister) Done() <-chan struct{} {
	return p.done
}

// Flush writes the pending snapshot, if any, and returns the store error.
func (p *Persister) Flush(ctx context.Context) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	p.mu.Lock()
	if !p.dirty {
		p.mu.Unlock()
		return nil
	}
	snapshot := p.pending
	p.pending = nil
	p.dirty = false
	p.mu.Unlock()

	if err := p.store.SaveMessages(ctx, ToStoreMessages(snapshot)); err != nil {
		p.metrics.PersistFailed()
		return fmt.Errorf("save messages: %w", err)
	}
	p.metrics.PersistSucceeded()
	return nil
}

func (p *Persister) flushLogged() {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := p.Flush(ctx); err != nil {
		p.log.Warn().Err(err).Msg("persist message log")
	}
}

// ToStoreMessages converts domain messages to their persisted form.
func ToStoreMessages(messages []Message) []store.ChatMessage {
	return lo.Map(messages, func(m Message, _ int) store.ChatMessage {
		return store.ChatMessage{Author: m.Author, Body: m.Body, SentAt: m.SentAt}
	})
}

// FromStoreMessages converts persisted messages to domain messages.
func FromStoreMessages(messages []store.ChatMessage) []Message {
	return lo.Map(messages, func(m store.ChatMessage, _ int) Message {
		return Message{Author: m.Author, Body: m.Body, SentAt: m.SentAt}
	})
}
