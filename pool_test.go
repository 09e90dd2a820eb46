package platenet

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingCloser struct {
	id     int
	closed *atomic.Int32
}

func (c *countingCloser) Close() error {
	c.closed.Add(1)
	return nil
}

func TestPool(t *testing.T) {

	var closed atomic.Int32

	p, err := NewPool(2, func(i int) (*countingCloser, error) {
		return &countingCloser{id: i, closed: &closed}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, p.Size())

	ctx := context.Background()

	a, err := p.Get(ctx)
	require.NoError(t, err)
	b, err := p.Get(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, a.id, b.id)

	// pool is empty so Get waits for the context
	short, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()

	_, err = p.Get(short)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	p.Return(a)
	p.Close()

	assert.Equal(t, int32(1), closed.Load())

	// returning after close closes the resource
	p.Return(b)
	assert.Equal(t, int32(2), closed.Load())

	_, err = p.Get(ctx)
	assert.ErrorIs(t, err, ErrPoolClosed)

	// second close is a no-op
	p.Close()
}

func TestPoolCreateError(t *testing.T) {

	var closed atomic.Int32
	boom := errors.New("boom")

	_, err := NewPool(3, func(i int) (*countingCloser, error) {
		if i == 2 {
			return nil, boom
		}
		return &countingCloser{id: i, closed: &closed}, nil
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(2), closed.Load())
}
