// Package terminal keeps the command/output transcript reported by tools.
package terminal

import (
	"sync"

	"astra/internal/types"

	"github.com/google/uuid"
)

// Log is an append-only transcript.
type Log struct {
	mu       sync.RWMutex
	entries  []types.TerminalLog
	onChange func()
}

// New creates an empty transcript.
func New() *Log {
	return &Log{}
}

// OnChange sets the callback fired after a mutation.
func (l *Log) OnChange(fn func()) {
	l.mu.Lock()
	l.onChange = fn
	l.mu.Unlock()
}

func (l *Log) changed() {
	l.mu.RLock()
	fn := l.onChange
	l.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// Append records a command and its output.
func (l *Log) Append(command, output string) types.TerminalLog {
	entry := types.TerminalLog{
		ID:        uuid.NewString(),
		Command:   command,
		Output:    output,
		Timestamp: types.NowMillis(),
	}
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
	l.changed()
	return entry
}

// List returns a copy of the transcript.
func (l *Log) List() []types.TerminalLog {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]types.TerminalLog, len(l.entries))
	copy(out, l.entries)
	return out
}

// Clear drops every entry.
func (l *Log) Clear() {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()
	l.changed()
}

// Replace swaps in a restored transcript without firing the change callback.
func (l *Log) Replace(entries []types.TerminalLog) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make([]types.TerminalLog, len(entries))
	copy(l.entries, entries)
}
