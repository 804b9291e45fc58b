package session

import (
	"sync"
	"time"
)

// Debouncer runs a function once the configured duration has elapsed
// without any new calls. Rapid successive calls reset the timer.
type Debouncer struct {
	mu       sync.Mutex
	idle     *sync.Cond
	timer    *time.Timer
	duration time.Duration
	// inflight counts timers that were not stopped and whose callback has
	// not returned. Guarded by mu.
	inflight int
}

// NewDebouncer creates a new debouncer with the specified duration.
func NewDebouncer(duration time.Duration) *Debouncer {
	d := &Debouncer{duration: duration}
	d.idle = sync.NewCond(&d.mu)
	return d
}

// Debounce schedules fn, replacing any call that has not fired yet.
func (d *Debouncer) Debounce(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked()
	d.inflight++
	var t *time.Timer
	t = time.AfterFunc(d.duration, func() {
		d.mu.Lock()
		if d.timer == t {
			d.timer = nil
		}
		d.mu.Unlock()
		defer d.done()
		fn()
	})
	d.timer = t
}

func (d *Debouncer) done() {
	d.mu.Lock()
	d.inflight--
	d.idle.Broadcast()
	d.mu.Unlock()
}

// stopLocked cancels the pending timer. A timer that already fired stays
// counted until its callback returns.
func (d *Debouncer) stopLocked() {
	if d.timer != nil {
		if d.timer.Stop() {
			d.inflight--
			d.idle.Broadcast()
		}
		d.timer = nil
	}
}

// Cancel cancels any pending call.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
}

// Pending reports whether a call is scheduled and has not fired.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Wait blocks until no scheduled or running callback remains. It is safe
// to call concurrently with Debounce.
func (d *Debouncer) Wait() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for d.inflight > 0 {
		d.idle.Wait()
	}
}

// Immediate executes fn now and cancels any pending call.
func (d *Debouncer) Immediate(fn func()) {
	d.Cancel()
	fn()
}
