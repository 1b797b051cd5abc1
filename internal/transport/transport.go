// Package transport binds the learner's two sockets: a publish endpoint for
// parameter broadcast and a strictly alternating reply endpoint for the
// buffer's replay batches.
package transport

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrProtocol marks a receive/reply call made out of turn.
	ErrProtocol = errors.New("reply endpoint protocol violation")
	ErrClosed   = errors.New("endpoint closed")
)

// Publisher sends one message to every current subscriber. It has no
// acknowledgement and subscribers may miss messages.
type Publisher interface {
	Publish(ctx context.Context, data []byte) error
	Close() error
}

// ReplyEndpoint is the learner side of a request/reply pair. Every Receive
// must be followed by exactly one Reply before the next Receive.
type ReplyEndpoint interface {
	Receive(ctx context.Context) ([]byte, error)
	Reply(data []byte) error
	Close() error
}

// TCPEndpoint formats a ZeroMQ tcp endpoint.
func TCPEndpoint(host string, port int) string {
	return fmt.Sprintf("tcp://%s:%d", host, port)
}
