package platenet

import (
	"context"
	"errors"
	"io"
	"sync"
)

// ErrPoolClosed is returned by Get once the pool has been closed
var ErrPoolClosed = errors.New("pool closed")

// Pool is a simple pool of reusable resources, such as inference sessions
// or NPU runtimes, that must not be shared between goroutines
type Pool[T io.Closer] struct {
	// pool of resources
	items chan T
	// size of pool
	size int
	// mu orders Return against Close so no resource is left unclosed
	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// NewPool creates a pool of the given size, calling create once for each
// slot with the slot number
func NewPool[T io.Closer](size int, create func(i int) (T, error)) (*Pool[T], error) {

	if size < 1 {
		size = 1
	}

	p := &Pool[T]{
		items: make(chan T, size),
		size:  size,
		done:  make(chan struct{}),
	}

	for i := 0; i < size; i++ {
		item, err := create(i)

		if err != nil {
			// close any instances that may have been created before receiving
			// the error
			p.Close()
			return nil, err
		}

		// attach to pool
		p.Return(item)
	}

	return p, nil
}

// Size returns the number of resources the pool was created with
func (p *Pool[T]) Size() int {
	return p.size
}

// Get takes a resource from the pool, waiting until one is returned, the
// context is done or the pool is closed
func (p *Pool[T]) Get(ctx context.Context) (T, error) {

	var zero T

	select {
	case item := <-p.items:
		return item, nil
	case <-p.done:
		return zero, ErrPoolClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Return a resource to the pool.  Resources returned after Close are closed
// instead.
func (p *Pool[T]) Return(item T) {

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		_ = item.Close()
		return
	}

	select {
	case p.items <- item:
	default:
		// pool is full
		_ = item.Close()
	}
}

// Close the pool and all resources currently held in it
func (p *Pool[T]) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	p.closed = true
	close(p.done)

	for {
		select {
		case next := <-p.items:
			_ = next.Close()
		default:
			return
		}
	}
}
