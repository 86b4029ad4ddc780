// Package debounce provides a single-slot deferred task that coalesces
// bursts of triggers into one firing after a quiet period.
package debounce

import (
	"sync"
	"time"
)

// Trigger runs fn once the quiet period has elapsed without another
// Schedule call. Scheduling while a firing is pending restarts the full
// period, so fn runs only after activity stops. fn is invoked outside
// the trigger's lock and may call Schedule again.
type Trigger struct {
	quiet time.Duration
	fn    func()

	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
}

func New(quiet time.Duration, fn func()) *Trigger {
	return &Trigger{quiet: quiet, fn: fn}
}

// Schedule arms the trigger for one full quiet period from now,
// superseding any pending firing.
func (t *Trigger) Schedule() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gen++
	gen := t.gen
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(t.quiet, func() { t.fire(gen) })
}

func (t *Trigger) fire(gen uint64) {
	t.mu.Lock()
	if gen != t.gen {
		// superseded between expiry and here
		t.mu.Unlock()
		return
	}
	t.timer = nil
	t.mu.Unlock()
	t.fn()
}

// Stop cancels any pending firing. It does not wait for a firing already
// in progress, and the trigger remains usable afterwards.
func (t *Trigger) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gen++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// Pending reports whether a firing is currently armed.
func (t *Trigger) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timer != nil
}
