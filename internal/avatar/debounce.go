package avatar

import (
	"sync"
	"time"
)

// debouncer runs a callback once after calls stop arriving for delay.
// The callback never runs concurrently with itself.
type debouncer struct {
	mu       sync.Mutex
	delay    time.Duration
	timer    *time.Timer
	pending  bool
	seq      uint64 // detects stale timer callbacks
	callback func()
}

func newDebouncer(delay time.Duration, callback func()) *debouncer {
	return &debouncer{
		delay:    delay,
		callback: callback,
	}
}

// Call schedules the callback, pushing back any pending one.
func (d *debouncer) Call() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending = true
	d.seq++
	current := d.seq

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		if !d.pending || d.seq != current {
			d.mu.Unlock()
			return
		}
		d.pending = false
		d.mu.Unlock()
		d.callback()
	})
}

// Cancel drops any pending call.
func (d *debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.seq++
	d.pending = false
}

// IsPending reports whether a call is scheduled.
func (d *debouncer) IsPending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}
