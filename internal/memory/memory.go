// Package memory keeps durable facts about the user and merges facts
// extracted from finished conversations.
package memory

import (
	"context"
	"strings"
	"sync"

	"astra/internal/logging"
	"astra/internal/types"
)

// Extractor asks a model for durable user facts found in a conversation.
type Extractor interface {
	ExtractMemory(ctx context.Context, history []types.Message) ([]string, error)
}

// Store holds the fact list. Facts are unique and only ever appended,
// except through Wipe.
type Store struct {
	mu       sync.RWMutex
	facts    []string
	onChange func()
}

// New creates an empty store.
func New() *Store {
	return &Store{facts: []string{}}
}

// OnChange sets the callback fired after a mutation.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

func (s *Store) changed() {
	s.mu.RLock()
	fn := s.onChange
	s.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// Facts returns a copy of the fact list.
func (s *Store) Facts() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.facts))
	copy(out, s.facts)
	return out
}

// Memory returns the facts as a persistable value.
func (s *Store) Memory() types.UserMemory {
	return types.UserMemory{Facts: s.Facts()}
}

// Merge appends facts that are not already known and returns the ones added.
func (s *Store) Merge(newFacts []string) []string {
	s.mu.Lock()
	seen := make(map[string]struct{}, len(s.facts))
	for _, f := range s.facts {
		seen[f] = struct{}{}
	}
	var added []string
	for _, f := range newFacts {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		s.facts = append(s.facts, f)
		added = append(added, f)
	}
	s.mu.Unlock()
	if len(added) > 0 {
		s.changed()
	}
	return added
}

// Wipe forgets every fact.
func (s *Store) Wipe() {
	s.mu.Lock()
	s.facts = []string{}
	s.mu.Unlock()
	s.changed()
}

// Replace swaps in restored facts without firing the change callback.
func (s *Store) Replace(m types.UserMemory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.facts = make([]string, 0, len(m.Facts))
	s.facts = append(s.facts, m.Facts...)
}

// Update runs one extraction pass over history and merges the result.
// Failures are logged and leave the store untouched.
func (s *Store) Update(ctx context.Context, ex Extractor, history []types.Message) []string {
	facts, err := ex.ExtractMemory(ctx, history)
	if err != nil {
		logging.Get(logging.CategoryChat).Warn("memory extraction failed: %v", err)
		return nil
	}
	added := s.Merge(facts)
	if len(added) > 0 {
		logging.Chat("memory: %d new facts", len(added))
	}
	return added
}
