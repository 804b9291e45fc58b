package events

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"astra/internal/logging"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
)

// Inbox watches a directory for *.json event files, publishes each one on
// the bus and removes it.
type Inbox struct {
	mu        sync.Mutex
	watcher   *fsnotify.Watcher
	bus       *Bus
	dir       string
	pending   map[string]time.Time
	settle    time.Duration
	stopCh    chan struct{}
	doneCh    chan struct{}
	running   bool
	delivered int
}

// NewInbox creates an inbox over dir. Call Start to begin watching.
func NewInbox(dir string, bus *Bus) (*Inbox, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	return &Inbox{
		watcher: watcher,
		bus:     bus,
		dir:     dir,
		pending: make(map[string]time.Time),
		settle:  50 * time.Millisecond,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}, nil
}

// Dir returns the watched directory.
func (in *Inbox) Dir() string { return in.dir }

// Delivered returns how many events were published so far.
func (in *Inbox) Delivered() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.delivered
}

// Start creates the directory, delivers files already present and begins
// watching. It does not block.
func (in *Inbox) Start(ctx context.Context) error {
	in.mu.Lock()
	if in.running {
		in.mu.Unlock()
		return nil
	}
	if err := os.MkdirAll(in.dir, 0755); err != nil {
		in.mu.Unlock()
		return fmt.Errorf("failed to create inbox dir: %w", err)
	}
	if err := in.watcher.Add(in.dir); err != nil {
		in.mu.Unlock()
		return fmt.Errorf("failed to watch inbox dir: %w", err)
	}
	// Only a started loop closes doneCh, so Stop waits on it only from here on.
	in.running = true
	in.mu.Unlock()
	logging.Events("inbox: watching %s", in.dir)

	entries, err := os.ReadDir(in.dir)
	if err == nil {
		for _, e := range entries {
			if !e.IsDir() && isEventFile(e.Name()) {
				in.deliver(filepath.Join(in.dir, e.Name()))
			}
		}
	}

	go in.run(ctx)
	return nil
}

// Stop ends the watch loop and releases the watcher.
func (in *Inbox) Stop() {
	in.mu.Lock()
	if !in.running {
		in.mu.Unlock()
		_ = in.watcher.Close()
		return
	}
	in.running = false
	in.mu.Unlock()

	close(in.stopCh)
	<-in.doneCh

	if err := in.watcher.Close(); err != nil {
		logging.Get(logging.CategoryEvents).Error("inbox: error closing watcher: %v", err)
	}
	logging.Events("inbox: stopped")
}

func (in *Inbox) run(ctx context.Context) {
	defer close(in.doneCh)

	ticker := time.NewTicker(25 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-in.stopCh:
			return
		case ev, ok := <-in.watcher.Events:
			if !ok {
				return
			}
			if !isEventFile(ev.Name) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				in.mu.Lock()
				in.pending[ev.Name] = time.Now()
				in.mu.Unlock()
			}
		case err, ok := <-in.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryEvents).Error("inbox watcher error: %v", err)
		case <-ticker.C:
			in.processSettled()
		}
	}
}

// processSettled delivers files whose last write is older than the settle window.
func (in *Inbox) processSettled() {
	in.mu.Lock()
	now := time.Now()
	var ready []string
	for path, at := range in.pending {
		if now.Sub(at) >= in.settle {
			ready = append(ready, path)
			delete(in.pending, path)
		}
	}
	in.mu.Unlock()

	for _, path := range ready {
		in.deliver(path)
	}
}

func (in *Inbox) deliver(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.EventsWarn("inbox: failed to read %s: %v", path, err)
		}
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logging.EventsWarn("inbox: failed to remove %s: %v", path, err)
	}

	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil || ev.Name == "" {
		logging.EventsWarn("inbox: dropping malformed event file %s", filepath.Base(path))
		return
	}
	in.bus.Publish(ev)

	in.mu.Lock()
	in.delivered++
	in.mu.Unlock()
}

func isEventFile(name string) bool {
	return strings.HasSuffix(name, ".json")
}

// WriteInbox drops ev into dir for a running client to pick up. The file is
// written under a temporary name and renamed so the watcher never sees a
// partial write.
func WriteInbox(dir string, ev Event) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create inbox dir: %w", err)
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("failed to encode event: %w", err)
	}

	base := fmt.Sprintf("%d-%s", time.Now().UnixNano(), uuid.NewString()[:8])
	tmp := filepath.Join(dir, base+".tmp")
	final := filepath.Join(dir, base+".json")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write event: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to publish event: %w", err)
	}
	return final, nil
}
