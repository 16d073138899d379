// Package workpool bounds the number of in-flight remote-tier operations.
// Callers run their work through a fixed set of slots and await the result;
// when every slot is busy the caller blocks until one frees up or its
// context is done.
package workpool

import (
	"context"
	"errors"
	"sync"
)

// ErrStopped is returned for work submitted after Stop.
var ErrStopped = errors.New("worker pool stopped")

// Pool is a semaphore-bounded execution gate.
type Pool struct {
	slots chan struct{}

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

// New creates a pool with the given number of slots.
func New(size int) *Pool {
	if size <= 0 {
		size = 4
	}
	return &Pool{
		slots: make(chan struct{}, size),
	}
}

// Do runs fn once a slot is free and returns its error. It returns the
// context error if the caller gives up while waiting, and ErrStopped after
// the pool has been stopped.
func (p *Pool) Do(ctx context.Context, fn func() error) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return ErrStopped
	}
	p.wg.Add(1)
	p.mu.Unlock()
	defer p.wg.Done()

	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-p.slots }()

	return fn()
}

// InFlight returns how many slots are currently held.
func (p *Pool) InFlight() int {
	return len(p.slots)
}

// Size returns the number of slots.
func (p *Pool) Size() int {
	return cap(p.slots)
}

// Stop rejects new work and waits for in-flight work to finish. A stopped
// pool can be put back into service with Resume.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	p.wg.Wait()
}

// Resume accepts work again after a Stop. Calling Resume on a running pool
// is a no-op.
func (p *Pool) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = false
}
