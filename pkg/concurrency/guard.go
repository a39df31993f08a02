package concurrency

import (
	"errors"
	"sync"
)

var ErrBusy = errors.New("another call is already in progress")

// Guard is a single-flight lock held across the whole lifetime of a call
// session, from establishment until teardown completes. Unlike a mutex it
// never blocks: a late acquirer is told the slot is taken so the caller can
// answer with a busy signal instead of waiting.
type Guard struct {
	mu   sync.Mutex
	held bool
}

func NewGuard() *Guard {
	return &Guard{}
}

// TryAcquire takes the slot if it is free and reports whether it succeeded.
func (g *Guard) TryAcquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held {
		return false
	}
	g.held = true
	return true
}

// Release frees the slot. Releasing an already-free guard is a no-op, which
// keeps teardown idempotent.
func (g *Guard) Release() {
	g.mu.Lock()
	g.held = false
	g.mu.Unlock()
}

// Held reports whether the slot is currently taken.
func (g *Guard) Held() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.held
}

// Execute runs task while holding the slot, returning ErrBusy if it is taken.
func (g *Guard) Execute(task func() error) error {
	if !g.TryAcquire() {
		return ErrBusy
	}
	defer g.Release()
	return task()
}
