// Package tasks implements the task list panel.
package tasks

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"astra/internal/types"

	"github.com/google/uuid"
)

var (
	// ErrTaskNotFound is returned for unknown task ids.
	ErrTaskNotFound = errors.New("task not found")
	// ErrEmptyTask is returned when the task text is blank.
	ErrEmptyTask = errors.New("task text is empty")
)

// Event actions accepted by Apply.
const (
	ActionAdd      = "add"
	ActionRemove   = "remove"
	ActionToggle   = "toggle"
	ActionComplete = "complete"
)

// List is a mutex-guarded ordered task list.
type List struct {
	mu       sync.RWMutex
	tasks    []types.Task
	onChange func()
}

// New creates an empty list.
func New() *List {
	return &List{}
}

// OnChange sets the callback fired after every mutation.
func (l *List) OnChange(fn func()) {
	l.mu.Lock()
	l.onChange = fn
	l.mu.Unlock()
}

func (l *List) changed() {
	l.mu.RLock()
	fn := l.onChange
	l.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// newID returns a short identifier, unique enough for a personal list.
func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Add appends a new open task.
func (l *List) Add(text string) (types.Task, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return types.Task{}, ErrEmptyTask
	}
	t := types.Task{ID: newID(), Text: text}
	l.mu.Lock()
	l.tasks = append(l.tasks, t)
	l.mu.Unlock()
	l.changed()
	return t, nil
}

// Remove deletes the task with the given id.
func (l *List) Remove(id string) error {
	l.mu.Lock()
	idx := l.indexLocked(id)
	if idx < 0 {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	l.tasks = append(l.tasks[:idx], l.tasks[idx+1:]...)
	l.mu.Unlock()
	l.changed()
	return nil
}

// Toggle flips the completed flag and returns the updated task.
func (l *List) Toggle(id string) (types.Task, error) {
	l.mu.Lock()
	idx := l.indexLocked(id)
	if idx < 0 {
		l.mu.Unlock()
		return types.Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	l.tasks[idx].Completed = !l.tasks[idx].Completed
	t := l.tasks[idx]
	l.mu.Unlock()
	l.changed()
	return t, nil
}

func (l *List) indexLocked(id string) int {
	for i, t := range l.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// List returns a copy of all tasks.
func (l *List) List() []types.Task {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]types.Task, len(l.tasks))
	copy(out, l.tasks)
	return out
}

// Replace swaps in a restored list without firing the change callback.
func (l *List) Replace(tasks []types.Task) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tasks = make([]types.Task, len(tasks))
	copy(l.tasks, tasks)
}

// Apply executes an out-of-band task event. "complete" toggles like "toggle".
func (l *List) Apply(action, text, id string) error {
	switch action {
	case ActionAdd:
		_, err := l.Add(text)
		return err
	case ActionRemove:
		return l.Remove(id)
	case ActionToggle, ActionComplete:
		_, err := l.Toggle(id)
		return err
	default:
		return fmt.Errorf("unknown task action %q", action)
	}
}
