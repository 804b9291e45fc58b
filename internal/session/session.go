// Package session loads and saves the user's session record: a remote
// store when one is configured, the local fallback always.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"astra/internal/logging"
	"astra/internal/store"
	"astra/internal/types"
)

// DefaultSaveDelay is the write-behind delay after the last change.
const DefaultSaveDelay = 2 * time.Second

// remoteTimeout bounds background remote writes.
const remoteTimeout = 15 * time.Second

// Source tells where a loaded session came from.
type Source string

const (
	SourceRemote   Source = "remote"
	SourceLocal    Source = "local"
	SourceDefaults Source = "defaults"
)

// Adapter persists session data with debounced write-behind.
type Adapter struct {
	remote store.RemoteStore
	local  *store.BoltStore
	userID string

	debouncer *Debouncer
	mu        sync.Mutex
	pending   store.Patch
	closed    bool

	// saveMu serializes writes so a flush never interleaves with another.
	saveMu sync.Mutex
}

// New creates an adapter. remote may be nil for local-only persistence.
// The adapter owns remote and closes it in Close.
func New(remote store.RemoteStore, local *store.BoltStore, delay time.Duration) (*Adapter, error) {
	if local == nil {
		return nil, errors.New("local store is required")
	}
	if delay <= 0 {
		delay = DefaultSaveDelay
	}
	id, err := local.UserID()
	if err != nil {
		return nil, err
	}
	logging.Session("session adapter ready: user=%s remote=%t delay=%v", id, remote != nil, delay)
	return &Adapter{
		remote:    remote,
		local:     local,
		userID:    id,
		debouncer: NewDebouncer(delay),
	}, nil
}

// UserID returns the persistent anonymous user id.
func (a *Adapter) UserID() string { return a.userID }

// Load returns the stored session. A remote record wins field by field;
// fields it lacks come from the local store, then from defaults.
func (a *Adapter) Load(ctx context.Context) (types.SessionData, Source) {
	timer := logging.StartTimer(logging.CategorySession, "Load")
	defer timer.Stop()

	data := types.DefaultSessionData()
	source := SourceDefaults

	if rec, err := a.local.Load(); err != nil {
		logging.SessionWarn("local load failed, using defaults: %v", err)
	} else if !rec.Empty() {
		apply(&data, rec.Patch)
		source = SourceLocal
	}

	if a.remote == nil {
		return data, source
	}
	rec, err := a.remote.LoadSession(ctx, a.userID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		logging.SessionDebug("no remote session for %s", a.userID)
	case err != nil:
		logging.SessionWarn("remote load failed, falling back to local: %v", err)
	default:
		apply(&data, rec.Patch)
		source = SourceRemote
	}
	return data, source
}

// apply overlays the set fields of p onto d.
func apply(d *types.SessionData, p store.Patch) {
	if p.Memory != nil {
		d.Memory = *p.Memory
		if d.Memory.Facts == nil {
			d.Memory.Facts = []string{}
		}
	}
	if p.Tasks != nil {
		d.Tasks = *p.Tasks
	}
	if p.Messages != nil {
		d.Messages = *p.Messages
	}
	if p.SandboxConfig != nil {
		d.SandboxConfig = *p.SandboxConfig
	}
	if p.TerminalLogs != nil {
		d.TerminalLogs = *p.TerminalLogs
	}
	if p.CustomStyle != nil {
		d.CustomStyle = *p.CustomStyle
	}
}

// Save writes p to the local store, then to the remote store. Remote
// failures are logged and not returned.
func (a *Adapter) Save(ctx context.Context, p store.Patch) error {
	if p.Empty() {
		return nil
	}
	a.saveMu.Lock()
	defer a.saveMu.Unlock()

	if err := a.local.Save(p); err != nil {
		logging.SessionWarn("local save failed: %v", err)
		return fmt.Errorf("failed to save locally: %w", err)
	}
	if a.remote == nil {
		return nil
	}
	if err := a.remote.UpsertSession(ctx, a.userID, p); err != nil {
		logging.SessionWarn("remote save failed: %v", err)
	}
	return nil
}

// Schedule merges p into the pending write and restarts the delay.
func (a *Adapter) Schedule(p store.Patch) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		logging.SessionWarn("schedule after close ignored")
		return
	}
	a.pending = a.pending.Merge(p)
	a.mu.Unlock()

	a.debouncer.Debounce(func() {
		ctx, cancel := context.WithTimeout(context.Background(), remoteTimeout)
		defer cancel()
		_ = a.writePending(ctx)
	})
}

func (a *Adapter) writePending(ctx context.Context) error {
	a.mu.Lock()
	p := a.pending
	a.pending = store.Patch{}
	a.mu.Unlock()

	if p.Empty() {
		return nil
	}
	logging.SessionDebug("flushing pending session write")
	return a.Save(ctx, p)
}

// Pending reports whether a scheduled write has not happened yet.
func (a *Adapter) Pending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.pending.Empty()
}

// Flush writes any pending change now.
func (a *Adapter) Flush(ctx context.Context) error {
	a.debouncer.Cancel()
	a.debouncer.Wait()
	return a.writePending(ctx)
}

// Close flushes pending changes and closes the remote store.
func (a *Adapter) Close(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	err := a.Flush(ctx)
	if a.remote != nil {
		if cerr := a.remote.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	logging.Session("session adapter closed")
	return err
}
