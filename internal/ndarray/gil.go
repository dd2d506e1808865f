package ndarray

import (
	"context"
	"sync"
	"sync/atomic"
)

// GIL is the runtime's cooperative interpreter lock. Every operation that
// allocates an array or changes a reference count must run while the
// calling context holds it.
//
// Ownership is tracked per context chain rather than per goroutine: Acquire
// returns a derived context that marks the lock as held, and any nested
// Acquire on that context (or one derived from it) is a no-op. A context
// chain must not be shared between goroutines while it holds the lock.
type GIL struct {
	mu   sync.Mutex
	held atomic.Bool
}

type gilKey struct{ g *GIL }

// threadState records whether one context chain currently holds the lock.
type threadState struct {
	held bool
}

func (g *GIL) lock() {
	g.mu.Lock()
	g.held.Store(true)
}

func (g *GIL) unlock() {
	g.held.Store(false)
	g.mu.Unlock()
}

func (g *GIL) state(ctx context.Context) *threadState {
	ts, _ := ctx.Value(gilKey{g}).(*threadState)
	return ts
}

// Acquire takes the lock for ctx and returns the context to use while it is
// held, together with the release func. Acquiring on a context that already
// holds the lock returns it unchanged with a no-op release. The release func
// is safe to call more than once.
func (g *GIL) Acquire(ctx context.Context) (context.Context, func()) {
	ts := g.state(ctx)
	if ts != nil && ts.held {
		return ctx, func() {}
	}

	g.lock()
	if ts == nil {
		ts = &threadState{}
		ctx = context.WithValue(ctx, gilKey{g}, ts)
	}
	ts.held = true

	var once sync.Once
	return ctx, func() {
		once.Do(func() {
			ts.held = false
			g.unlock()
		})
	}
}

// AllowThreads releases the lock held by ctx so other context chains can
// run foreign operations, and returns a func that reacquires it. If ctx does
// not hold the lock both steps are no-ops.
func (g *GIL) AllowThreads(ctx context.Context) func() {
	ts := g.state(ctx)
	if ts == nil || !ts.held {
		return func() {}
	}

	ts.held = false
	g.unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.lock()
			ts.held = true
		})
	}
}

// HeldBy reports whether ctx holds the lock.
func (g *GIL) HeldBy(ctx context.Context) bool {
	ts := g.state(ctx)
	return ts != nil && ts.held
}

// Held reports whether any context chain holds the lock.
func (g *GIL) Held() bool {
	return g.held.Load()
}

func (g *GIL) mustHold(ctx context.Context, op string) {
	if !g.HeldBy(ctx) {
		panic("ndarray: " + op + " called without holding the interpreter lock")
	}
}
