package feeder_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apex-learner/internal/agent"
	"apex-learner/internal/cadence"
	"apex-learner/internal/codec"
	"apex-learner/internal/feeder"
	"apex-learner/internal/learner"
	"apex-learner/internal/subscriber"
	"apex-learner/internal/transport"
)

// TestLearnerOverZeroMQ runs the learner against the feeder and a parameter
// subscriber over loopback sockets.
func TestLearnerOverZeroMQ(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	rep, err := transport.NewReplier(ctx, transport.TCPEndpoint("127.0.0.1", 0))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rep.Close() })
	pub, err := transport.NewPublisher(ctx, transport.TCPEndpoint("127.0.0.1", 0))
	require.NoError(t, err)
	publisher := transport.NewAsyncPublisher(pub, nil)
	t.Cleanup(func() { _ = publisher.Close() })

	brain, err := agent.NewBrain(2, agent.Config{ObsDim: 4, NumActions: 2, LearningRate: 0.01, Gamma: 0.99})
	require.NoError(t, err)
	controller, err := learner.New(learner.Options{
		NumAgents: 2,
		BatchSize: 16,
		Cadence:   cadence.Policy{TargetUpdateFrequency: 2, ParamUpdateInterval: 1},
		RunID:     "e2e",
	}, brain.Agents(), brain, rep, publisher, nil)
	require.NoError(t, err)

	src, err := subscriber.NewZMQSource(ctx, "tcp://"+pub.Addr().String())
	require.NoError(t, err)
	sub := subscriber.New(src, 1, nil)
	t.Cleanup(func() { _ = sub.Close() })

	runCtx, stop := context.WithCancel(ctx)
	loopDone := make(chan error, 1)
	go func() { loopDone <- controller.Run(runCtx) }()
	go func() { _ = sub.Run(runCtx) }()

	req, err := transport.NewRequester(ctx, "tcp://"+rep.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = req.Close() })

	// PUB drops messages until the subscription lands, so keep feeding
	// until a snapshot arrives.
	r := &feeder.Runner{NumAgents: 2, BatchSize: 16, Steps: 5, Seed: 3}
	var requests int
	for {
		stats, err := r.Run(ctx, req)
		require.NoError(t, err)
		require.NoError(t, ctx.Err(), "no snapshot reached the subscriber")
		requests += stats.Requests
		if _, ok := sub.Latest(); ok {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		return controller.StepCount() == int64(requests)
	}, 5*time.Second, 10*time.Millisecond)

	stop()
	require.NoError(t, <-loopDone)

	st := controller.Stats()
	assert.Equal(t, uint64(requests/2), st.TargetSyncs)
	assert.Equal(t, uint64(requests), st.Publishes)

	latest, ok := sub.Latest()
	require.True(t, ok)
	assert.Equal(t, "e2e", latest.RunID)
	assert.Positive(t, latest.Step)
	require.Len(t, latest.Tensors, 4)
	assert.Equal(t, "agent0.q.weight", latest.Tensors[0].Name)
	assert.Equal(t, []int{2, 4}, latest.Tensors[0].Shape)
	assert.Equal(t, 8, len(latest.Tensors[0].Data))
	assertSnapshotDecodes(t, latest)
}

func TestLearnerStepAfterIdleTimeoutAnswersPeer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rep, err := transport.NewReplier(ctx, transport.TCPEndpoint("127.0.0.1", 0))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rep.Close() })

	brain, err := agent.NewBrain(1, agent.Config{ObsDim: 4, NumActions: 2, LearningRate: 0.01, Gamma: 0.99})
	require.NoError(t, err)
	controller, err := learner.New(learner.Options{
		NumAgents: 1,
		BatchSize: 8,
		Cadence:   cadence.Policy{TargetUpdateFrequency: 100, ParamUpdateInterval: 100},
	}, brain.Agents(), brain, rep, &discardPublisher{}, nil)
	require.NoError(t, err)

	idle, stop := context.WithTimeout(ctx, 50*time.Millisecond)
	require.ErrorIs(t, controller.Step(idle), context.DeadlineExceeded)
	stop()

	req, err := transport.NewRequester(ctx, "tcp://"+rep.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = req.Close() })

	type fedResult struct {
		stats feeder.Stats
		err   error
	}
	fed := make(chan fedResult, 1)
	go func() {
		stats, err := (&feeder.Runner{NumAgents: 1, BatchSize: 8, Steps: 1, Seed: 5}).Run(ctx, req)
		fed <- fedResult{stats: stats, err: err}
	}()

	stepCtx, stepCancel := context.WithTimeout(ctx, 2*time.Second)
	defer stepCancel()
	require.NoError(t, controller.Step(stepCtx))
	res := <-fed
	require.NoError(t, res.err)
	assert.Equal(t, 1, res.stats.Requests)
	assert.Equal(t, int64(1), controller.StepCount())
}

type discardPublisher struct{}

func (discardPublisher) Publish(context.Context, []byte) error { return nil }
func (discardPublisher) Close() error                          { return nil }

func assertSnapshotDecodes(t *testing.T, s codec.ParameterSnapshot) {
	t.Helper()
	data, err := codec.EncodeSnapshot(s)
	require.NoError(t, err)
	_, err = codec.DecodeSnapshot(data)
	require.NoError(t, err)
}
