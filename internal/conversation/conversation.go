// Package conversation holds an ordered message list together with the
// guard that allows a single in-flight generation per context.
package conversation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"astra/internal/types"
)

// ErrGenerationInProgress is returned when a send is attempted while a
// previous generation in the same context has not finished.
var ErrGenerationInProgress = errors.New("generation already in progress")

// ErrMessageNotFound is returned for unknown message ids.
var ErrMessageNotFound = errors.New("message not found")

// Store is an append-only message list. Text of an existing message may
// be mutated in place while it streams.
type Store struct {
	mu         sync.RWMutex
	messages   []types.Message
	generating bool
	listeners  []func()
}

// New creates an empty store.
func New() *Store {
	return &Store{}
}

// OnChange registers a listener called after every mutation.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Store) notify() {
	s.mu.RLock()
	ls := make([]func(), len(s.listeners))
	copy(ls, s.listeners)
	s.mu.RUnlock()
	for _, fn := range ls {
		fn()
	}
}

// Append adds a message at the end of the list.
func (s *Store) Append(msg types.Message) {
	s.mu.Lock()
	s.messages = append(s.messages, msg.Clone())
	s.mu.Unlock()
	s.notify()
}

// Update applies fn to the message with the given id.
func (s *Store) Update(id string, fn func(*types.Message)) error {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrMessageNotFound, id)
	}
	fn(&s.messages[idx])
	s.mu.Unlock()
	s.notify()
	return nil
}

func (s *Store) indexLocked(id string) int {
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].ID == id {
			return i
		}
	}
	return -1
}

// Get returns a copy of the message with the given id.
func (s *Store) Get(id string) (types.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return types.Message{}, false
	}
	return s.messages[idx].Clone(), true
}

// Messages returns a copy of the message list.
func (s *Store) Messages() []types.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := types.CloneMessages(s.messages)
	if out == nil {
		out = []types.Message{}
	}
	return out
}

// Len returns the number of messages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Replace swaps in a restored message list.
func (s *Store) Replace(msgs []types.Message) {
	s.mu.Lock()
	s.messages = types.CloneMessages(msgs)
	s.mu.Unlock()
	s.notify()
}

// Reset clears every message.
func (s *Store) Reset() {
	s.mu.Lock()
	s.messages = nil
	s.mu.Unlock()
	s.notify()
}

// ToggleBookmark flips the bookmark flag of a message.
func (s *Store) ToggleBookmark(id string) error {
	return s.Update(id, func(m *types.Message) {
		m.IsBookmarked = !m.IsBookmarked
	})
}

// Bookmarked returns only bookmarked messages, in order.
func (s *Store) Bookmarked() []types.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.Message
	for _, m := range s.messages {
		if m.IsBookmarked {
			out = append(out, m.Clone())
		}
	}
	return out
}

// CopyContext formats the message at index, preceded by the previous
// message when it came from the other side of the exchange.
func (s *Store) CopyContext(index int) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.messages) {
		return "", fmt.Errorf("message index %d out of range", index)
	}
	cur := s.messages[index]
	var b strings.Builder
	if index > 0 {
		prev := s.messages[index-1]
		if prev.Role != cur.Role {
			fmt.Fprintf(&b, "[%s]: %s\n\n", strings.ToUpper(string(prev.Role)), prev.Text)
		}
	}
	fmt.Fprintf(&b, "[%s]: %s", strings.ToUpper(string(cur.Role)), cur.Text)
	return b.String(), nil
}

// BeginGeneration claims the context for a new generation.
func (s *Store) BeginGeneration() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generating {
		return ErrGenerationInProgress
	}
	s.generating = true
	return nil
}

// EndGeneration releases the context.
func (s *Store) EndGeneration() {
	s.mu.Lock()
	s.generating = false
	s.mu.Unlock()
}

// IsGenerating reports whether a generation is pending.
func (s *Store) IsGenerating() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generating
}
