package transport

import (
	"context"
	"fmt"
	"sync"
)

// Alternating enforces receive, reply, receive, reply... on an endpoint.
// Calls out of turn fail with ErrProtocol and never reach the socket.
type Alternating struct {
	inner ReplyEndpoint

	mu        sync.Mutex
	receiving bool
	pending   bool
}

func NewAlternating(inner ReplyEndpoint) *Alternating {
	return &Alternating{inner: inner}
}

func (a *Alternating) Receive(ctx context.Context) ([]byte, error) {
	a.mu.Lock()
	if a.pending || a.receiving {
		a.mu.Unlock()
		return nil, fmt.Errorf("%w: receive while a reply is owed", ErrProtocol)
	}
	a.receiving = true
	a.mu.Unlock()

	data, err := a.inner.Receive(ctx)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.receiving = false
	if err != nil {
		return nil, err
	}
	a.pending = true
	return data, nil
}

func (a *Alternating) Reply(data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.pending {
		return fmt.Errorf("%w: reply without a pending request", ErrProtocol)
	}
	if err := a.inner.Reply(data); err != nil {
		return err
	}
	a.pending = false
	return nil
}

// Pending reports whether a request has been received but not answered.
func (a *Alternating) Pending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.pending
}

func (a *Alternating) Close() error {
	return a.inner.Close()
}
