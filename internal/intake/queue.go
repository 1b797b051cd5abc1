// Package intake buffers replay batches received from the buffer process
// until the update loop consumes them.
package intake

import (
	"context"
	"errors"
	"sync"
	"time"

	"apex-learner/internal/codec"
)

const DefaultCapacity = 1000

var ErrQueueEmpty = errors.New("intake queue is empty")

type Item struct {
	Batch      codec.ReplayBatch
	ReceivedAt time.Time
}

// Queue is a bounded FIFO that evicts its oldest entry on overflow and hands
// out its newest entry first.
type Queue struct {
	mu       sync.Mutex
	items    []Item
	capacity int
	evicted  uint64
	notify   chan struct{}
}

func New(capacity int) (*Queue, error) {
	if capacity <= 0 {
		return nil, errors.New("capacity must be greater than zero")
	}
	return &Queue{
		items:    make([]Item, 0, capacity),
		capacity: capacity,
		notify:   make(chan struct{}, 1),
	}, nil
}

// Push appends item, first evicting the oldest entry when the queue is full.
// It reports whether an eviction happened.
func (q *Queue) Push(item Item) bool {
	q.mu.Lock()
	evicted := false
	if len(q.items) >= q.capacity {
		copy(q.items, q.items[1:])
		q.items[len(q.items)-1] = Item{}
		q.items = q.items[:len(q.items)-1]
		q.evicted++
		evicted = true
	}
	q.items = append(q.items, item)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return evicted
}

// TryPopLatest removes and returns the newest item without waiting.
func (q *Queue) TryPopLatest() (Item, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return Item{}, ErrQueueEmpty
	}
	last := len(q.items) - 1
	item := q.items[last]
	q.items[last] = Item{}
	q.items = q.items[:last]
	return item, nil
}

// PopLatest removes and returns the newest item, waiting for a push while
// the queue is empty. It returns ctx.Err() if ctx ends first.
func (q *Queue) PopLatest(ctx context.Context) (Item, error) {
	for {
		item, err := q.TryPopLatest()
		if err == nil {
			return item, nil
		}
		select {
		case <-ctx.Done():
			return Item{}, ctx.Err()
		case <-q.notify:
		}
	}
}

// Items returns a copy of the queued items, oldest first.
func (q *Queue) Items() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Item, len(q.items))
	copy(out, q.items)
	return out
}

func (q *Queue) Capacity() int {
	return q.capacity
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}

// Evicted is the number of items dropped on overflow since creation.
func (q *Queue) Evicted() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.evicted
}
