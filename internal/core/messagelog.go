package core

import (
	"slices"
	"sync"
)

// SnapshotSink receives a copy of the whole log after every mutation.
// Enqueue must not block.
type SnapshotSink interface {
	Enqueue(messages []Message)
}

// MessageLog is the ordered, append-only chat history. Clear is the only
// operation that removes messages. Append and Clear exclude each other.
type MessageLog struct {
	mu       sync.RWMutex
	messages []Message
	sink     SnapshotSink
}

// NewMessageLog constructs a log seeded with initial. sink may be nil.
func NewMessageLog(initial []Message, sink SnapshotSink) *MessageLog {
	return &MessageLog{
		messages: slices.Clone(initial),
		sink:     sink,
	}
}

// Append adds msg to the end and returns its zero-based position.
func (l *MessageLog) Append(msg Message) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.messages = append(l.messages, msg)
	l.publish()
	return len(l.messages) - 1
}

// Recent returns the last min(k, Len) messages, oldest first.
func (l *MessageLog) Recent(k int) []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := min(max(k, 0), len(l.messages))
	out := make([]Message, n)
	copy(out, l.messages[len(l.messages)-n:])
	return out
}

// Clear truncates the log to empty.
func (l *MessageLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.messages = nil
	l.publish()
}

// All returns a copy of every message.
func (l *MessageLog) All() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// Len returns the number of messages.
func (l *MessageLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

// publish hands the sink a snapshot; the caller holds the write lock so
// snapshots reach the sink in mutation order.
func (l *MessageLog) publish() {
	if l.sink == nil {
		return
	}
	snapshot := make([]Message, len(l.messages))
	copy(snapshot, l.messages)
	l.sink.Enqueue(snapshot)
}
