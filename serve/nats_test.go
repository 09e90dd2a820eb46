package serve

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponderAnswer(t *testing.T) {

	svc := newTestService(t, nil)
	r := NewResponder(svc, svc.metrics, time.Second, nil)

	reply := r.Answer("id-1", []byte("jpeg"))
	require.Empty(t, reply.Error)
	require.NotNil(t, reply.Result)
	assert.Equal(t, "0SY123456", reply.Result.Plate)
	assert.Equal(t, "id-1", reply.RequestID)

	reply = r.Answer("id-2", []byte("bad"))
	assert.Nil(t, reply.Result)
	assert.True(t, reply.ClientError)
	assert.NotEmpty(t, reply.Error)

	broken := newTestService(t, errors.New("device lost"))
	reply = NewResponder(broken, nil, 0, nil).Answer("id-3", []byte("jpeg"))
	assert.False(t, reply.ClientError)
	assert.Contains(t, reply.Error, "device lost")

	// a stopped responder without a subscription is a no-op
	assert.NoError(t, r.Stop())
}

func TestResponderTimeout(t *testing.T) {

	svc := newTestService(t, context.DeadlineExceeded)
	reply := NewResponder(svc, nil, time.Millisecond, nil).Answer("id", []byte("jpeg"))

	assert.Contains(t, reply.Error, "deadline")
}
