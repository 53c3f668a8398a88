/* Copyright © 2025 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this package for license terms
 */
package approval

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drainRequests(b *Broker) {
	go func() {
		for range b.Requests {
		}
	}()
}

func TestBrokerRegisterAndResolve(t *testing.T) {
	b := NewBroker()
	drainRequests(b)

	id, replyCh, err := b.Register(context.Background(), Request{
		Command:        []string{"ls", "-la"},
		DisplayCommand: "ls -la",
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.Equal(t, 1, b.Pending())

	ok := b.Resolve(id, DecisionApproved)
	assert.True(t, ok)
	assert.Equal(t, 0, b.Pending())

	select {
	case d := <-replyCh:
		assert.Equal(t, DecisionApproved, d)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for decision")
	}
}

func TestBrokerResolveExactlyOnce(t *testing.T) {
	b := NewBroker()
	drainRequests(b)

	id, _, err := b.Register(context.Background(), Request{
		Command: []string{"true"},
	})
	require.NoError(t, err)

	assert.True(t, b.Resolve(id, DecisionDenied))
	assert.False(t, b.Resolve(id, DecisionApproved))
	assert.False(t, b.Resolve("no-such-id", DecisionApproved))
}

func TestBrokerOutOfOrderResolution(t *testing.T) {
	b := NewBroker()
	drainRequests(b)

	ctx := context.Background()
	id1, reply1, err := b.Register(ctx, Request{Command: []string{"a"}})
	require.NoError(t, err)
	id2, reply2, err := b.Register(ctx, Request{Command: []string{"b"}})
	require.NoError(t, err)

	// Decisions arrive out of order; each must land on its own waiter.
	require.True(t, b.Resolve(id2, DecisionDenied))
	require.True(t, b.Resolve(id1, DecisionApprovedForSession))

	assert.Equal(t, DecisionApprovedForSession, <-reply1)
	assert.Equal(t, DecisionDenied, <-reply2)
}

func TestBrokerClearAllResolvesPending(t *testing.T) {
	b := NewBroker()
	drainRequests(b)

	ctx := context.Background()
	_, reply1, err := b.Register(ctx, Request{Command: []string{"a"}})
	require.NoError(t, err)
	_, reply2, err := b.Register(ctx, Request{Command: []string{"b"}})
	require.NoError(t, err)
	require.Equal(t, 2, b.Pending())

	b.ClearAll()

	// Both waiters must resolve promptly to Abort; none may hang.
	for _, replyCh := range []<-chan Decision{reply1, reply2} {
		select {
		case d := <-replyCh:
			assert.Equal(t, DecisionAbort, d)
		case <-time.After(time.Second):
			t.Fatal("pending approval left unresolved after ClearAll")
		}
	}
	assert.Equal(t, 0, b.Pending())
}

func TestBrokerRegisterAfterClose(t *testing.T) {
	b := NewBroker()
	drainRequests(b)

	b.Close()

	_, _, err := b.Register(context.Background(), Request{
		Command: []string{"ls"},
	})
	assert.Error(t, err)
}

func TestBrokerRegisterCanceledContext(t *testing.T) {
	b := NewBroker()
	// No drain goroutine: Requests has capacity 1, so a second
	// registration blocks on delivery until the context fires.
	ctx := context.Background()

	_, _, err := b.Register(ctx, Request{Command: []string{"a"}})
	require.NoError(t, err)

	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err = b.Register(canceled, Request{Command: []string{"b"}})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, b.Pending())
}

func TestBrokerDuplicateID(t *testing.T) {
	b := NewBroker()
	drainRequests(b)

	ctx := context.Background()
	_, _, err := b.Register(ctx, Request{ID: "r1", Command: []string{"a"}})
	require.NoError(t, err)

	_, _, err = b.Register(ctx, Request{ID: "r1", Command: []string{"b"}})
	assert.Error(t, err)
}

func TestAwaitCanceledContext(t *testing.T) {
	b := NewBroker()
	drainRequests(b)

	_, replyCh, err := b.Register(context.Background(), Request{
		Command: []string{"sleep", "60"},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d, err := Await(ctx, replyCh)
	assert.Equal(t, DecisionAbort, d)
	assert.ErrorIs(t, err, context.Canceled)
}
