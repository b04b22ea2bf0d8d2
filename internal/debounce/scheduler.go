// Package debounce coalesces bursts of triggers into a single flush.
//
//	s := debounce.New(500*time.Millisecond, save)
//	s.Trigger() // t=0
//	s.Trigger() // t=100ms, restarts the window
//	// save runs once at t=600ms
//	s.Close()   // runs save now if a trigger is still waiting
package debounce

import (
	"sync"
	"time"
)

// Scheduler is what the persistence layer needs from a debouncer.
type Scheduler interface {
	// Trigger (re)starts the quiet window.
	Trigger()
	// Pending reports whether a flush is scheduled or currently running.
	Pending() bool
	// Flush runs the flush now if one is scheduled and waits for it.
	Flush()
	// Close flushes anything scheduled and stops accepting triggers.
	Close()
}

// Timer is a trailing-edge debouncer built on time.AfterFunc. Flushes never
// overlap: a trigger that arrives while fn runs schedules another flush.
type Timer struct {
	window time.Duration
	fn     func()

	mu        sync.Mutex
	timer     *time.Timer
	scheduled bool
	running   bool
	closed    bool
	seq       uint64
	idle      *sync.Cond
}

func New(window time.Duration, fn func()) *Timer {
	t := &Timer{window: window, fn: fn}
	t.idle = sync.NewCond(&t.mu)
	return t
}

func (t *Timer) Trigger() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	t.seq++
	seq := t.seq
	t.scheduled = true
	t.timer = time.AfterFunc(t.window, func() { t.fire(seq) })
}

func (t *Timer) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.scheduled || t.running
}

func (t *Timer) Flush() {
	t.mu.Lock()
	for t.running {
		t.idle.Wait()
	}
	if !t.scheduled {
		t.mu.Unlock()
		return
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	t.seq++ // invalidate the stopped timer if it already fired
	t.run()
}

func (t *Timer) Close() {
	t.Flush()
	t.mu.Lock()
	t.closed = true
	if t.timer != nil {
		t.timer.Stop()
	}
	t.mu.Unlock()
}

func (t *Timer) fire(seq uint64) {
	t.mu.Lock()
	for t.running {
		t.idle.Wait()
	}
	if seq != t.seq || !t.scheduled {
		t.mu.Unlock()
		return
	}
	t.run()
}

// run is entered with t.mu held and returns with it released.
func (t *Timer) run() {
	t.scheduled = false
	t.running = true
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.running = false
		t.idle.Broadcast()
		t.mu.Unlock()
	}()
	t.fn()
}
