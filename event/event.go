// Package event implements a minimal binary wake-up primitive with exactly
// one waiter and exactly one signaler, the coordination point between a
// ring's producer (waiter) and its consumer (signaler).
package event

import "sync"

// Event is a single-waiter, single-signaler binary event. Signal is
// idempotent: repeated signals before a Wait coalesce into a single
// wake-up, a "someone consumed something" semantics rather than a
// counting semaphore.
//
// Go's sync.Cond already gives the full memory barrier required on both
// Signal and Wait (the mutex acquire/release around each does it), so
// there is no need to reach for explicit atomics here.
type Event struct {
	mu  sync.Mutex
	cnd *sync.Cond
	set bool
}

// New returns a ready-to-use Event.
func New() *Event {
	e := &Event{}
	e.cnd = sync.NewCond(&e.mu)
	return e
}

// Signal marks the event set and wakes a blocked Wait, if any. Safe to
// call when no one is waiting; the next Wait will simply return
// immediately.
func (e *Event) Signal() {
	e.mu.Lock()
	e.set = true
	e.mu.Unlock()
	e.cnd.Signal()
}

// Wait blocks until Signal has been called at least once since the last
// Wait, then clears the event and returns. Because signals coalesce and
// may be left over from an earlier consumption, a return only means
// "something was consumed"; callers that need a stronger condition must
// recheck it themselves.
func (e *Event) Wait() {
	e.mu.Lock()
	for !e.set {
		e.cnd.Wait()
	}
	e.set = false
	e.mu.Unlock()
}
