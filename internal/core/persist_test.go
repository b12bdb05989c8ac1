package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wirechat-lobby/internal/store"
)

type memoryMessageStore struct {
	mu     sync.Mutex
	saved  [][]store.ChatMessage
	failOn int
}

func (s *memoryMessageStore) LoadMessages(context.Context) ([]store.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.saved) == 0 {
		return nil, nil
	}
	return s.saved[len(s.saved)-1], nil
}

func (s *memoryMessageStore) SaveMessages(_ context.Context, messages []store.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn > 0 {
		s.failOn--
		return errors.New("disk full")
	}
	s.saved = append(s.saved, messages)
	return nil
}

func (s *memoryMessageStore) writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

func TestPersisterCoalescesAndFlushes(t *testing.T) {
	st := &memoryMessageStore{}
	p := NewPersister(st, nil, nil)

	p.Enqueue([]Message{{Body: "a"}})
	p.Enqueue([]Message{{Body: "a"}, {Body: "b"}})
	require.NoError(t, p.Flush(context.Background()))
	require.Equal(t, 1, st.writes(), "queued snapshots coalesce")

	latest, err := st.LoadMessages(context.Background())
	require.NoError(t, err)
	require.Len(t, latest, 2)

	require.NoError(t, p.Flush(context.Background()))
	require.Equal(t, 1, st.writes(), "nothing pending, nothing written")
}

func TestPersisterFailureDoesNotBlockLog(t *testing.T) {
	st := &memoryMessageStore{failOn: 1}
	p := NewPersister(st, nil, nil)
	log := NewMessageLog(nil, p)

	log.Append(Message{Body: "kept in memory"})
	require.Error(t, p.Flush(context.Background()))
	require.Equal(t, 1, log.Len())

	log.Append(Message{Body: "second"})
	require.NoError(t, p.Flush(context.Background()))
	latest, _ := st.LoadMessages(context.Background())
	require.Len(t, latest, 2)
}

func TestPersisterRunWritesAndFinalFlush(t *testing.T) {
	st := &memoryMessageStore{}
	p := NewPersister(st, nil, nil)
	log := NewMessageLog(nil, p)

	ctx, cancel := context.WithCancel(context.Background())
	go p.Run(ctx)

	log.Append(Message{Author: "admin", Body: "hi"})
	require.Eventually(t, func() bool { return st.writes() >= 1 }, 2*time.Second, 5*time.Millisecond)

	log.Clear()
	cancel()
	<-p.Done()

	latest, _ := st.LoadMessages(context.Background())
	require.Empty(t, latest)
}

func TestStoreMessageConversion(t *testing.T) {
	at := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	domain := []Message{{Author: "admin", Body: "hi", SentAt: at}}

	persisted := ToStoreMessages(domain)
	require.Equal(t, []store.ChatMessage{{Author: "admin", Body: "hi", SentAt: at}}, persisted)
	require.Equal(t, domain, FromStoreMessages(persisted))
	require.Empty(t, FromStoreMessages(nil))
}
