// Package tlocal provides a generic "one instance per key, created lazily,
// destroyed on release" holder — a thread-local-style holder keyed on a
// type parameter rather than an implicit OS-thread binding, with
// teardown approximated without a destructor callback (see Release and
// StartReaper).
package tlocal

import (
	"fmt"
	"sync"
	"time"
)

// Holder provides one lazily-created *T per key K, built once per key from
// the factory captured at construction. Every call to Get with the same
// key returns the same pointer until that key is released (explicitly, or
// by the background reaper). K is typically a goroutine id
// (CurrentGoroutineID) in production, but is a type parameter so the
// identity and lifetime contract can be tested deterministically with
// whatever keys a test chooses to stand in for "thread A" and "thread B".
type Holder[K comparable, T any] struct {
	mu      sync.Mutex
	entries map[K]*T
	newFn   func() (*T, error)
	destroy func(K, *T)

	reaperStop chan struct{}
	reaperDone chan struct{}
}

// New constructs a holder. newFn captures whatever constructor arguments
// the caller needs, parameterized once at holder construction; destroy
// is run, at most once per key, when that key is released or reaped.
func New[K comparable, T any](newFn func() (*T, error), destroy func(K, *T)) *Holder[K, T] {
	return &Holder[K, T]{
		entries: make(map[K]*T),
		newFn:   newFn,
		destroy: destroy,
	}
}

// Get returns key's instance, creating it on first call. First-time
// creation may fail and surfaces that failure to the caller; every
// later call with the same key succeeds as long as the key has not been
// released.
func (h *Holder[K, T]) Get(key K) (*T, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if v, ok := h.entries[key]; ok {
		return v, nil
	}
	v, err := h.newFn()
	if err != nil {
		return nil, &AllocationError{Cause: err}
	}
	h.entries[key] = v
	return v, nil
}

// Release tears down key's instance immediately, if one exists. This is
// the deterministic fast path: call it (typically deferred) when a
// producer's goroutine knows it is done, rather than waiting for the
// reaper.
func (h *Holder[K, T]) Release(key K) {
	h.mu.Lock()
	v, ok := h.entries[key]
	if ok {
		delete(h.entries, key)
	}
	h.mu.Unlock()
	if ok {
		h.destroyOne(key, v)
	}
}

func (h *Holder[K, T]) destroyOne(key K, v *T) {
	defer func() {
		if r := recover(); r != nil {
			panic(&Unrecoverable{Reason: fmt.Sprintf("destructor panicked: %v", r)})
		}
	}()
	h.destroy(key, v)
}

// StartReaper launches a background goroutine that, every interval, asks
// liveKeys which keys are still alive and releases every tracked key
// liveKeys no longer reports. This is the bounded-delay replacement for an
// OS thread-exit callback: a producer that never calls Release is still
// drained and freed, just not instantly. Call Stop to end it.
func (h *Holder[K, T]) StartReaper(liveKeys func() map[K]struct{}, interval time.Duration) {
	h.reaperStop = make(chan struct{})
	h.reaperDone = make(chan struct{})
	go func() {
		defer close(h.reaperDone)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-h.reaperStop:
				return
			case <-ticker.C:
				h.sweep(liveKeys())
			}
		}
	}()
}

func (h *Holder[K, T]) sweep(live map[K]struct{}) {
	h.mu.Lock()
	var dead []K
	for k := range h.entries {
		if _, ok := live[k]; !ok {
			dead = append(dead, k)
		}
	}
	h.mu.Unlock()
	for _, k := range dead {
		h.Release(k)
	}
}

// Stop ends the background reaper, if one was started. It does not tear
// down any surviving entries — callers that need every remaining instance
// drained on shutdown should Release them explicitly.
func (h *Holder[K, T]) Stop() {
	if h.reaperStop == nil {
		return
	}
	close(h.reaperStop)
	<-h.reaperDone
}

// Len reports how many keys currently have a live instance. Diagnostic
// only.
func (h *Holder[K, T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
