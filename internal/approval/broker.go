/* Copyright © 2025 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this package for license terms
 */
package approval

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Request is one pending question for the human: may this command run?
type Request struct {
	// ID uniquely identifies the request. Register assigns one when
	// empty. Decisions are matched back to requests strictly by ID,
	// never by arrival order.
	ID string
	// Command is the argv awaiting approval.
	Command []string
	// DisplayCommand is the human-readable rendering of Command.
	DisplayCommand string
	// Cwd is the directory the command would run in.
	Cwd string
	// Justification is optional model-supplied free text explaining why
	// the command is needed.
	Justification string
	// Escalated marks a retry-without-sandbox request raised after a
	// sandbox denial.
	Escalated bool
}

// Broker forwards approval requests over a channel so they can be
// handled by a single goroutine that owns the user interaction, and
// routes each Decision back to the execution that is waiting on it.
//
// Usage:
//  1. The serving goroutine reads from b.Requests.
//  2. For each request it collects a Decision and calls
//     b.Resolve(req.ID, decision).
//  3. On turn abort the session calls b.ClearAll(), which resolves
//     every outstanding request with DecisionAbort so nothing waits
//     forever.
//
// Close marks the broker closed but does NOT close the Requests
// channel; lifecycle management belongs to the serving goroutine.
type Broker struct {
	// Requests delivers pending approval requests in registration
	// order.
	Requests chan Request

	mu      sync.Mutex
	pending map[string]chan Decision
	closed  bool
}

func NewBroker() *Broker {
	return &Broker{
		Requests: make(chan Request, 1),
		pending:  make(map[string]chan Decision),
	}
}

// Close marks the broker closed. After Close, any new Register call
// returns an error. Outstanding requests are aborted.
func (b *Broker) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.ClearAll()
}

// Register records req and delivers it to the serving goroutine,
// returning the request id and a oneshot channel on which exactly one
// Decision will arrive. The channel is buffered: resolution never
// blocks on the receiver.
func (b *Broker) Register(ctx context.Context,
	req Request) (string, <-chan Decision, error) {

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	replyCh := make(chan Decision, 1)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return "", nil, fmt.Errorf("approval broker closed")
	}
	if _, dup := b.pending[req.ID]; dup {
		b.mu.Unlock()
		return "", nil, fmt.Errorf("duplicate approval request id %v",
			req.ID)
	}
	b.pending[req.ID] = replyCh
	b.mu.Unlock()

	// Deliver to the serving goroutine. A canceled context unwinds the
	// registration so no entry leaks.
	select {
	case <-ctx.Done():
		b.mu.Lock()
		delete(b.pending, req.ID)
		b.mu.Unlock()
		return "", nil, ctx.Err()
	case b.Requests <- req:
	}

	return req.ID, replyCh, nil
}

// Resolve delivers the decision for the given request id. A request
// resolves exactly once; unknown or already-resolved ids return false.
func (b *Broker) Resolve(id string, d Decision) bool {
	b.mu.Lock()
	replyCh, ok := b.pending[id]
	if ok {
		delete(b.pending, id)
	}
	b.mu.Unlock()

	if !ok {
		return false
	}
	replyCh <- d
	return true
}

// ClearAll resolves every outstanding request with DecisionAbort. It is
// called on turn abort; afterwards no registered waiter is left
// pending.
func (b *Broker) ClearAll() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, replyCh := range b.pending {
		replyCh <- DecisionAbort
		delete(b.pending, id)
	}
}

// Pending returns the number of unresolved requests.
func (b *Broker) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Await blocks until the request resolves or ctx is canceled. A
// canceled context yields DecisionAbort alongside the context error.
func Await(ctx context.Context,
	replyCh <-chan Decision) (Decision, error) {

	select {
	case <-ctx.Done():
		return DecisionAbort, ctx.Err()
	case d := <-replyCh:
		return d, nil
	}
}
