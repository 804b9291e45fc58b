// Package events is the named event channel used to signal the running
// client out of band: tool calls from the model and external processes
// post task and terminal events here.
package events

import (
	"encoding/json"
	"fmt"
	"sync"

	"astra/internal/logging"
)

// Event names.
const (
	TaskEvent     = "astra-task-event"
	TerminalEvent = "astra-terminal"
)

// Event is a named event with a JSON detail payload.
type Event struct {
	Name   string          `json:"name"`
	Detail json.RawMessage `json:"detail"`
}

// TaskDetail is the payload of TaskEvent.
type TaskDetail struct {
	Action string `json:"action"`
	Task   string `json:"task,omitempty"`
	ID     string `json:"id,omitempty"`
}

// TerminalDetail is the payload of TerminalEvent.
type TerminalDetail struct {
	Command string `json:"command"`
	Output  string `json:"output"`
}

// NewTaskEvent builds a TaskEvent.
func NewTaskEvent(action, task, id string) Event {
	return mustEvent(TaskEvent, TaskDetail{Action: action, Task: task, ID: id})
}

// NewTerminalEvent builds a TerminalEvent.
func NewTerminalEvent(command, output string) Event {
	return mustEvent(TerminalEvent, TerminalDetail{Command: command, Output: output})
}

func mustEvent(name string, detail interface{}) Event {
	// Marshalling flat string structs cannot fail.
	raw, _ := json.Marshal(detail)
	return Event{Name: name, Detail: raw}
}

// Task decodes the detail of a TaskEvent.
func (e Event) Task() (TaskDetail, error) {
	var d TaskDetail
	if e.Name != TaskEvent {
		return d, fmt.Errorf("event %q is not %s", e.Name, TaskEvent)
	}
	if err := json.Unmarshal(e.Detail, &d); err != nil {
		return d, fmt.Errorf("failed to decode task event: %w", err)
	}
	return d, nil
}

// Terminal decodes the detail of a TerminalEvent.
func (e Event) Terminal() (TerminalDetail, error) {
	var d TerminalDetail
	if e.Name != TerminalEvent {
		return d, fmt.Errorf("event %q is not %s", e.Name, TerminalEvent)
	}
	if err := json.Unmarshal(e.Detail, &d); err != nil {
		return d, fmt.Errorf("failed to decode terminal event: %w", err)
	}
	return d, nil
}

// Handler receives published events.
type Handler func(Event)

type subscription struct {
	id int
	fn Handler
}

// Bus dispatches events to subscribers by name. Handlers run synchronously
// on the publishing goroutine, in subscription order.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string][]subscription
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string][]subscription)}
}

// Subscribe registers fn for events named name and returns a function
// that removes the subscription.
func (b *Bus) Subscribe(name string, fn Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[name] = append(b.subs[name], subscription{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[name]
		for i, s := range list {
			if s.id == id {
				b.subs[name] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers ev to every subscriber of its name and reports how many
// handlers received it.
func (b *Bus) Publish(ev Event) int {
	b.mu.RLock()
	list := make([]subscription, len(b.subs[ev.Name]))
	copy(list, b.subs[ev.Name])
	b.mu.RUnlock()

	if len(list) == 0 {
		logging.EventsDebug("no subscribers for %s", ev.Name)
		return 0
	}
	logging.EventsDebug("publishing %s to %d subscribers", ev.Name, len(list))
	for _, s := range list {
		s.fn(ev)
	}
	return len(list)
}
