package transport

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"apex-learner/internal/metrics"
)

// AsyncPublisher hands messages to a background sender so Publish never
// waits on the network. At most one message is queued; a newer message
// replaces an unsent older one.
type AsyncPublisher struct {
	inner  Publisher
	logger *slog.Logger

	pending chan []byte
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	closed  atomic.Bool
	sent    atomic.Uint64
	dropped atomic.Uint64

	errMu sync.Mutex
	err   error
}

func NewAsyncPublisher(inner Publisher, logger *slog.Logger) *AsyncPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &AsyncPublisher{
		inner:   inner,
		logger:  logger.With("component", "publisher"),
		pending: make(chan []byte, 1),
		ctx:     ctx,
		cancel:  cancel,
	}
	p.wg.Add(1)
	go p.run()
	return p
}

// Publish queues data and returns immediately. A send failure from an
// earlier message is returned here so the caller sees it.
func (p *AsyncPublisher) Publish(_ context.Context, data []byte) error {
	if p.closed.Load() {
		return ErrClosed
	}
	if err := p.Err(); err != nil {
		return err
	}
	for {
		select {
		case p.pending <- data:
			return nil
		default:
		}
		select {
		case <-p.pending:
			p.dropped.Add(1)
			metrics.PublishDropped.Inc()
		default:
		}
	}
}

func (p *AsyncPublisher) run() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case data := <-p.pending:
			if err := p.inner.Publish(p.ctx, data); err != nil {
				metrics.PublishErrors.Inc()
				p.logger.Error("publish failed", "error", err, "bytes", len(data))
				p.errMu.Lock()
				if p.err == nil {
					p.err = err
				}
				p.errMu.Unlock()
				continue
			}
			p.sent.Add(1)
		}
	}
}

// Err returns the first send error, if any.
func (p *AsyncPublisher) Err() error {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.err
}

func (p *AsyncPublisher) Sent() uint64 {
	return p.sent.Load()
}

func (p *AsyncPublisher) Dropped() uint64 {
	return p.dropped.Load()
}

// Close stops the sender, discarding any unsent message, and closes the
// wrapped publisher.
func (p *AsyncPublisher) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	p.cancel()
	p.wg.Wait()
	return p.inner.Close()
}
