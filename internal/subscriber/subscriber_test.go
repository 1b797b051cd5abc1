package subscriber

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apex-learner/internal/codec"
	"apex-learner/internal/transport"
)

type chanSource struct {
	msgs chan []byte
	err  error
}

func newChanSource(msgs ...[]byte) *chanSource {
	ch := make(chan []byte, len(msgs))
	for _, m := range msgs {
		ch <- m
	}
	close(ch)
	return &chanSource{msgs: ch}
}

func (s *chanSource) Next(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case m, ok := <-s.msgs:
		if !ok {
			if s.err != nil {
				return nil, s.err
			}
			return nil, ErrSourceClosed
		}
		return m, nil
	}
}

func (s *chanSource) Close() error { return nil }

func encode(t *testing.T, step int64, value float32) []byte {
	t.Helper()
	data, err := codec.EncodeSnapshot(codec.ParameterSnapshot{
		Step:    step,
		RunID:   "run",
		Tensors: []codec.Tensor{{Name: "w", Shape: []int{1}, Data: []float32{value}}},
	})
	require.NoError(t, err)
	return data
}

func TestSubscriber_KeepsLatestAndCountsGaps(t *testing.T) {
	t.Parallel()

	src := newChanSource(
		encode(t, 50, 1),
		[]byte("garbage"),
		encode(t, 200, 4),
		encode(t, 150, 3),
	)
	var seen []int64
	sub := New(src, 50, nil).OnUpdate(func(s codec.ParameterSnapshot) {
		seen = append(seen, s.Step)
	})

	require.NoError(t, sub.Run(context.Background()))

	latest, ok := sub.Latest()
	require.True(t, ok)
	assert.Equal(t, int64(200), latest.Step)
	assert.Equal(t, float32(4), latest.Tensors[0].Data[0])
	assert.Equal(t, []int64{50, 200}, seen)

	st := sub.Stats()
	assert.Equal(t, uint64(3), st.Received)
	assert.Equal(t, uint64(1), st.Malformed)
	assert.Equal(t, uint64(2), st.Missed)
	assert.Equal(t, int64(200), st.LastStep)
}

func TestSubscriber_NewRunResetsOrdering(t *testing.T) {
	t.Parallel()

	first := encode(t, 500, 1)
	restarted, err := codec.EncodeSnapshot(codec.ParameterSnapshot{Step: 50, RunID: "run-2"})
	require.NoError(t, err)

	sub := New(newChanSource(first, restarted), 50, nil)
	require.NoError(t, sub.Run(context.Background()))

	latest, ok := sub.Latest()
	require.True(t, ok)
	assert.Equal(t, "run-2", latest.RunID)
	assert.Equal(t, int64(50), latest.Step)
}

func TestSubscriber_LatestIsACopy(t *testing.T) {
	t.Parallel()

	sub := New(newChanSource(encode(t, 1, 7)), 0, nil)
	require.NoError(t, sub.Run(context.Background()))

	a, _ := sub.Latest()
	a.Tensors[0].Data[0] = 99
	b, _ := sub.Latest()
	assert.Equal(t, float32(7), b.Tensors[0].Data[0])
}

func TestSubscriber_NoSnapshotYet(t *testing.T) {
	t.Parallel()

	sub := New(newChanSource(), 0, nil)
	_, ok := sub.Latest()
	assert.False(t, ok)
}

func TestSubscriber_SourceError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	src := newChanSource()
	src.err = boom

	err := New(src, 0, nil).Run(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestSubscriber_CancelReturnsNil(t *testing.T) {
	t.Parallel()

	src := &chanSource{msgs: make(chan []byte)}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	require.NoError(t, New(src, 0, nil).Run(ctx))
}

func TestZMQSource_ReceivesFromPublisher(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pub, err := transport.NewPublisher(ctx, transport.TCPEndpoint("127.0.0.1", 0))
	require.NoError(t, err)
	t.Cleanup(func() { _ = pub.Close() })

	src, err := NewZMQSource(ctx, "tcp://"+pub.Addr().String())
	require.NoError(t, err)
	sub := New(src, 0, nil)
	t.Cleanup(func() { _ = sub.Close() })

	got := make(chan codec.ParameterSnapshot, 1)
	sub.OnUpdate(func(s codec.ParameterSnapshot) {
		select {
		case got <- s:
		default:
		}
	})
	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() { _ = sub.Run(runCtx) }()

	payload := encode(t, 1, 2.5)
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case s := <-got:
			assert.Equal(t, int64(1), s.Step)
			assert.Equal(t, float32(2.5), s.Tensors[0].Data[0])
			return
		case <-ticker.C:
			require.NoError(t, pub.Publish(ctx, payload))
		case <-ctx.Done():
			t.Fatal("no snapshot received")
		}
	}
}

func TestZMQSource_MessageAfterCancelledNextIsKept(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pub, err := transport.NewPublisher(ctx, transport.TCPEndpoint("127.0.0.1", 0))
	require.NoError(t, err)
	t.Cleanup(func() { _ = pub.Close() })
	src, err := NewZMQSource(ctx, "tcp://"+pub.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })

	idle, stop := context.WithTimeout(ctx, 30*time.Millisecond)
	_, err = src.Next(idle)
	stop()
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// Subscriptions propagate asynchronously; publish until one lands.
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = pub.Publish(ctx, []byte("params"))
			}
		}
	}()

	data, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "params", string(data))
}

func TestNewRedisSource_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewRedisSource(context.Background(), "not-a-url", "learner:params")
	require.Error(t, err)

	_, err = NewRedisSource(context.Background(), "redis://localhost:6379", "")
	require.Error(t, err)
}
