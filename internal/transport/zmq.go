package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/go-zeromq/zmq4"
)

type ZMQPublisher struct {
	sock zmq4.Socket
}

// NewPublisher binds a PUB socket on endpoint. Bind failures are returned
// as-is and are fatal for the caller.
func NewPublisher(ctx context.Context, endpoint string) (*ZMQPublisher, error) {
	sock := zmq4.NewPub(ctx)
	if err := sock.Listen(endpoint); err != nil {
		_ = sock.Close()
		return nil, fmt.Errorf("bind pub socket %s: %w", endpoint, err)
	}
	return &ZMQPublisher{sock: sock}, nil
}

func (p *ZMQPublisher) Publish(_ context.Context, data []byte) error {
	if err := p.sock.Send(zmq4.NewMsg(data)); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Addr is the bound address, useful when listening on port 0.
func (p *ZMQPublisher) Addr() net.Addr {
	return p.sock.Addr()
}

func (p *ZMQPublisher) Close() error {
	return p.sock.Close()
}

type ZMQReplier struct {
	sock   zmq4.Socket
	reader *SocketReader
	cancel context.CancelFunc
}

// NewReplier binds a REP socket on endpoint. Cancelling ctx or calling Close
// unblocks a pending Receive.
func NewReplier(ctx context.Context, endpoint string) (*ZMQReplier, error) {
	ctx, cancel := context.WithCancel(ctx)
	sock := zmq4.NewRep(ctx)
	if err := sock.Listen(endpoint); err != nil {
		cancel()
		_ = sock.Close()
		return nil, fmt.Errorf("bind rep socket %s: %w", endpoint, err)
	}
	return &ZMQReplier{sock: sock, reader: NewSocketReader(sock), cancel: cancel}, nil
}

type recvResult struct {
	msg zmq4.Msg
	err error
}

// SocketReader performs at most one socket Recv at a time. A read whose
// caller gave up stays in flight and is delivered to the next Recv, so no
// message is consumed without being handed to a caller. Not safe for
// concurrent Recv calls.
type SocketReader struct {
	sock zmq4.Socket

	mu       sync.Mutex
	inflight chan recvResult
}

func NewSocketReader(sock zmq4.Socket) *SocketReader {
	return &SocketReader{sock: sock}
}

// Recv waits for the next message or until ctx is done.
func (r *SocketReader) Recv(ctx context.Context) (zmq4.Msg, error) {
	if err := ctx.Err(); err != nil {
		return zmq4.Msg{}, err
	}

	r.mu.Lock()
	if r.inflight == nil {
		ch := make(chan recvResult, 1)
		go func() {
			msg, err := r.sock.Recv()
			ch <- recvResult{msg: msg, err: err}
		}()
		r.inflight = ch
	}
	ch := r.inflight
	r.mu.Unlock()

	select {
	case <-ctx.Done():
		return zmq4.Msg{}, ctx.Err()
	case res := <-ch:
		r.mu.Lock()
		r.inflight = nil
		r.mu.Unlock()
		return res.msg, res.err
	}
}

// Receive waits for the next request. If ctx ends first it returns ctx.Err();
// a request arriving afterwards is returned by the next Receive.
func (r *ZMQReplier) Receive(ctx context.Context) ([]byte, error) {
	msg, err := r.reader.Recv(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("receive: %w", err)
	}
	if len(msg.Frames) != 1 {
		return nil, fmt.Errorf("receive: expected 1 frame, got %d", len(msg.Frames))
	}
	return msg.Frames[0], nil
}

func (r *ZMQReplier) Reply(data []byte) error {
	if err := r.sock.Send(zmq4.NewMsg(data)); err != nil {
		return fmt.Errorf("reply: %w", err)
	}
	return nil
}

func (r *ZMQReplier) Addr() net.Addr {
	return r.sock.Addr()
}

func (r *ZMQReplier) Close() error {
	r.cancel()
	return r.sock.Close()
}

// ZMQRequester is the buffer side of the reply endpoint: each Request sends
// one message and waits for its reply.
type ZMQRequester struct {
	sock   zmq4.Socket
	cancel context.CancelFunc
}

func NewRequester(ctx context.Context, endpoint string) (*ZMQRequester, error) {
	ctx, cancel := context.WithCancel(ctx)
	sock := zmq4.NewReq(ctx)
	if err := sock.Dial(endpoint); err != nil {
		cancel()
		_ = sock.Close()
		return nil, fmt.Errorf("dial req socket %s: %w", endpoint, err)
	}
	return &ZMQRequester{sock: sock, cancel: cancel}, nil
}

// Request sends data and waits for the reply. A cancelled wait leaves the
// socket mid-exchange, so the requester must be closed afterwards.
func (q *ZMQRequester) Request(ctx context.Context, data []byte) ([]byte, error) {
	if err := q.sock.Send(zmq4.NewMsg(data)); err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}

	done := make(chan recvResult, 1)
	go func() {
		msg, err := q.sock.Recv()
		done <- recvResult{msg: msg, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("await reply: %w", res.err)
		}
		if len(res.msg.Frames) != 1 {
			return nil, fmt.Errorf("await reply: expected 1 frame, got %d", len(res.msg.Frames))
		}
		return res.msg.Frames[0], nil
	}
}

func (q *ZMQRequester) Close() error {
	q.cancel()
	return q.sock.Close()
}
