// Package trigger coalesces bursts of upload events into one delayed run.
package trigger

import (
	"sync"
	"time"
)

// Debouncer runs fn once Delay has elapsed without a new Schedule call. At most
// one call is pending at any time.
type Debouncer struct {
	Delay time.Duration

	mu      sync.Mutex
	fn      func()
	timer   *time.Timer
	pending bool
	// gen discards timers that fired after being replaced
	gen uint64
}

func NewDebouncer(delay time.Duration, fn func()) *Debouncer {
	return &Debouncer{Delay: delay, fn: fn}
}

// Schedule cancels the pending call, if any, and schedules a new one.
func (d *Debouncer) Schedule() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.pending = true
	d.timer = time.AfterFunc(d.Delay, func() { d.fire(gen) })
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || !d.pending {
		d.mu.Unlock()
		return
	}
	d.pending = false
	d.timer = nil
	d.mu.Unlock()

	d.fn()
}

// Pending reports whether a call is scheduled and has not fired yet.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Stop cancels the pending call.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = false
	d.gen++
}
