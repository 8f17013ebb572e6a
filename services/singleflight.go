package services

import (
	"context"
	"sync"
)

type inflight[T any] struct {
	done    chan struct{}
	val     T
	err     error
	waiters int
	cancel  context.CancelFunc
}

// flightGroup deduplicates concurrent computations by key. The computation
// runs on a context detached from any single caller so that one caller
// leaving does not abort the shared work; only when the last waiter is gone
// is the shared call cancelled.
type flightGroup[T any] struct {
	mu      sync.Mutex
	flights map[string]*inflight[T]
}

func newFlightGroup[T any]() *flightGroup[T] {
	return &flightGroup[T]{flights: make(map[string]*inflight[T])}
}

func (g *flightGroup[T]) do(ctx context.Context, key string, fn func(ctx context.Context) (T, error)) (T, error) {
	g.mu.Lock()
	f, ok := g.flights[key]
	if !ok {
		runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &inflight[T]{done: make(chan struct{}), cancel: cancel}
		g.flights[key] = f
		go func() {
			f.val, f.err = fn(runCtx)
			g.mu.Lock()
			delete(g.flights, key)
			g.mu.Unlock()
			close(f.done)
			cancel()
		}()
	}
	f.waiters++
	g.mu.Unlock()

	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		g.mu.Lock()
		f.waiters--
		if f.waiters == 0 {
			f.cancel()
		}
		g.mu.Unlock()
		var zero T
		return zero, ctx.Err()
	}
}
