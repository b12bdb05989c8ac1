// Package jsonfile keeps the message log as a single JSON array on disk.
// Every save rewrites the whole file through a temp file and rename.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vovakirdan/wirechat-lobby/internal/store"
)

// ErrCorrupt is returned by LoadMessages when the file exists but does not parse.
var ErrCorrupt = errors.New("corrupt message file")

// Store implements store.MessageStore on top of one JSON file.
type Store struct {
	path string
	mu   sync.Mutex
}

var _ store.MessageStore = (*Store)(nil)

// New returns a store backed by path. The file is created lazily.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// LoadMessages reads the saved log. A missing file is created as an empty
// array; an unparsable file yields no messages and ErrCorrupt.
func (s *Store) LoadMessages(ctx context.Context) ([]store.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if writeErr := s.write([]store.ChatMessage{}); writeErr != nil {
				return nil, writeErr
			}
			return []store.ChatMessage{}, nil
		}
		return nil, fmt.Errorf("read messages: %w", err)
	}

	var messages []store.ChatMessage
	if err := json.Unmarshal(data, &messages); err != nil {
		return []store.ChatMessage{}, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
	}
	if messages == nil {
		messages = []store.ChatMessage{}
	}
	return messages, nil
}

// SaveMessages rewrites the file with messages.
func (s *Store) SaveMessages(ctx context.Context, messages []store.ChatMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.write(messages)
}

func (s *Store) write(messages []store.ChatMessage) error {
	if messages == nil {
		messages = []store.ChatMessage{}
	}
	data, err := json.MarshalIndent(messages, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal messages: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace messages file: %w", err)
	}
	return nil
}
