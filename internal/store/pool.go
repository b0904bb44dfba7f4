package store

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrClosed is returned by Acquire after Shutdown.
	ErrClosed = errors.New("store: pool is shut down")
	// ErrSaturated is returned when the waiter queue is full.
	ErrSaturated = errors.New("store: pool waiter queue is full")
)

// Factory mints a new database handle.
type Factory func() (*Handle, error)

// Pool is a bounded pool of store handles. Handles are minted lazily up to
// maxHandles; once the ceiling is reached callers queue FIFO, up to
// maxWaiters of them. A released handle goes to the oldest waiter first.
type Pool struct {
	mu      sync.Mutex
	factory Factory
	ready   []*Handle
	waiters []chan *Handle
	created int

	maxHandles int
	maxWaiters int
	closed     bool
}

// NewPool builds an empty pool; no handle is opened until first Acquire.
func NewPool(factory Factory, maxHandles, maxWaiters int) *Pool {
	return &Pool{
		factory:    factory,
		maxHandles: maxHandles,
		maxWaiters: maxWaiters,
	}
}

// Acquire leases a handle. Preference order: a ready handle, then a freshly
// minted one while under the ceiling, then blocking in FIFO order behind
// other waiters. Fails fast with ErrSaturated when the waiter queue is full
// and with ErrClosed after Shutdown.
func (p *Pool) Acquire(ctx context.Context) (*Handle, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	if n := len(p.ready); n > 0 {
		h := p.ready[n-1]
		p.ready = p.ready[:n-1]
		p.mu.Unlock()
		return h, nil
	}
	if p.created < p.maxHandles {
		p.created++
		p.mu.Unlock()
		h, err := p.factory()
		if err != nil {
			p.mu.Lock()
			p.created--
			p.mu.Unlock()
			return nil, err
		}
		return h, nil
	}
	if len(p.waiters) >= p.maxWaiters {
		p.mu.Unlock()
		return nil, ErrSaturated
	}
	w := make(chan *Handle, 1)
	p.waiters = append(p.waiters, w)
	p.mu.Unlock()

	select {
	case h, ok := <-w:
		if !ok {
			return nil, ErrClosed
		}
		return h, nil
	case <-ctx.Done():
		p.mu.Lock()
		for i, q := range p.waiters {
			if q == w {
				p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
				p.mu.Unlock()
				return nil, ctx.Err()
			}
		}
		p.mu.Unlock()
		// A handle was delivered while we were cancelling; put it back.
		if h, ok := <-w; ok {
			p.Release(h)
		}
		return nil, ctx.Err()
	}
}

// Release returns a leased handle. The oldest waiter, if any, gets it
// directly; otherwise it rejoins the ready queue. After Shutdown the handle
// is closed instead.
func (p *Pool) Release(h *Handle) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		h.Close()
		return
	}
	if len(p.waiters) > 0 {
		w := p.waiters[0]
		p.waiters = p.waiters[1:]
		p.mu.Unlock()
		w <- h
		return
	}
	p.ready = append(p.ready, h)
	p.mu.Unlock()
}

// Shutdown closes every ready handle and fails all queued waiters.
// Outstanding leases are closed as they are released.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	ready := p.ready
	waiters := p.waiters
	p.ready = nil
	p.waiters = nil
	p.mu.Unlock()

	for _, w := range waiters {
		close(w)
	}
	for _, h := range ready {
		h.Close()
	}
}
