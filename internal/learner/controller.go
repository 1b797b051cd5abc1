// Package learner drives the learner's update loop: receive a replay batch,
// train every agent on its sub-batch, reply with new priorities, then refresh
// target networks and broadcast parameters on their cadences.
package learner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"apex-learner/internal/cadence"
	"apex-learner/internal/codec"
	"apex-learner/internal/intake"
	"apex-learner/internal/metrics"
	"apex-learner/internal/tracing"
	"apex-learner/internal/transport"
)

var (
	ErrAgentCountMismatch = errors.New("agent count mismatch")
	ErrMisalignedResult   = errors.New("misaligned replay result")
)

type Options struct {
	NumAgents int
	BatchSize int
	Cadence   cadence.Policy
	// QueueCapacity bounds the intake queue; zero means intake.DefaultCapacity.
	QueueCapacity int
	// StartupDelay is waited once before the first receive.
	StartupDelay time.Duration
	RunID        string
	Device       string
}

func (o Options) validate() error {
	if o.NumAgents <= 0 {
		return fmt.Errorf("num agents must be > 0, got %d", o.NumAgents)
	}
	if o.BatchSize <= 0 {
		return fmt.Errorf("batch size must be > 0, got %d", o.BatchSize)
	}
	if o.QueueCapacity < 0 {
		return fmt.Errorf("queue capacity must be >= 0, got %d", o.QueueCapacity)
	}
	return o.Cadence.Validate()
}

type Controller struct {
	opts      Options
	agents    []Agent
	brain     ParameterSource
	endpoint  *transport.Alternating
	publisher transport.Publisher
	queue     *intake.Queue
	scalars   ScalarWriter
	tracer    trace.Tracer
	logger    *slog.Logger

	state        atomic.Int32
	step         atomic.Int64
	targetSyncs  atomic.Uint64
	publishes    atomic.Uint64
	lastDuration atomic.Int64
}

type Stats struct {
	State            string        `json:"state"`
	Step             int64         `json:"step"`
	TargetSyncs      uint64        `json:"target_syncs"`
	Publishes        uint64        `json:"publishes"`
	QueueLength      int           `json:"queue_length"`
	QueueCapacity    int           `json:"queue_capacity"`
	QueueEvicted     uint64        `json:"queue_evicted"`
	LastStepDuration time.Duration `json:"last_step_duration_ns"`
}

// New builds a controller. The endpoint is wrapped so that receive and reply
// can only alternate.
func New(
	opts Options,
	agents []Agent,
	brain ParameterSource,
	endpoint transport.ReplyEndpoint,
	publisher transport.Publisher,
	logger *slog.Logger,
) (*Controller, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid learner options: %w", err)
	}
	if len(agents) != opts.NumAgents {
		return nil, fmt.Errorf("%w: configured %d agents, got %d collaborators",
			ErrAgentCountMismatch, opts.NumAgents, len(agents))
	}
	if brain == nil || endpoint == nil || publisher == nil {
		return nil, errors.New("brain, endpoint and publisher are required")
	}
	if opts.QueueCapacity == 0 {
		opts.QueueCapacity = intake.DefaultCapacity
	}
	queue, err := intake.New(opts.QueueCapacity)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Controller{
		opts:      opts,
		agents:    agents,
		brain:     brain,
		endpoint:  transport.NewAlternating(endpoint),
		publisher: publisher,
		queue:     queue,
		scalars:   discardScalars{},
		tracer:    tracing.Tracer("apex-learner/learner"),
		logger:    logger.With("component", "learner", "run_id", opts.RunID),
	}
	c.state.Store(int32(StateAwaitingBatch))
	return c, nil
}

func (c *Controller) WithScalarWriter(w ScalarWriter) *Controller {
	if w != nil {
		c.scalars = w
	}
	return c
}

func (c *Controller) WithTracer(t trace.Tracer) *Controller {
	if t != nil {
		c.tracer = t
	}
	return c
}

// Run executes learning steps until ctx is cancelled, which returns nil, or
// a step fails, which returns that step's error.
func (c *Controller) Run(ctx context.Context) error {
	c.logger.Info("learner loop started",
		"agents", c.opts.NumAgents,
		"batch_size", c.opts.BatchSize,
		"target_update_frequency", c.opts.Cadence.TargetUpdateFrequency,
		"param_update_interval", c.opts.Cadence.ParamUpdateInterval,
		"queue_capacity", c.queue.Capacity(),
		"device", c.opts.Device,
	)
	defer c.state.Store(int32(StateStopped))

	if c.opts.StartupDelay > 0 {
		timer := time.NewTimer(c.opts.StartupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			c.logger.Info("learner loop stopping", "step", c.step.Load())
			return nil
		case <-timer.C:
		}
	}

	for {
		if err := c.Step(ctx); err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				c.logger.Info("learner loop stopping", "step", c.step.Load())
				return nil
			}
			c.logger.Error("learner step failed", "step", c.step.Load()+1, "error", err)
			return err
		}
	}
}

// Step runs exactly one learning step. The cancellation check happens
// before the receive; once a batch has been received the step runs to
// completion or fails.
func (c *Controller) Step(ctx context.Context) error {
	c.setState(StateAwaitingBatch)
	if err := ctx.Err(); err != nil {
		return err
	}

	raw, err := c.endpoint.Receive(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return c.fail(StateAwaitingBatch, fmt.Errorf("receive replay batch: %w", err))
	}
	started := time.Now()
	metrics.BatchesReceived.Inc()
	metrics.BatchBytes.Observe(float64(len(raw)))

	step := c.step.Load() + 1
	ctx, span := c.tracer.Start(ctx, "learner.step", trace.WithAttributes(attribute.Int64("learner.step", step)))
	defer span.End()

	batch, err := c.intake(ctx, raw, started)
	if err != nil {
		return c.failSpan(span, StateAwaitingBatch, err)
	}

	c.setState(StateProcessingAgents)
	update, err := c.processAgents(batch, step)
	if err != nil {
		return c.failSpan(span, StateProcessingAgents, err)
	}

	c.setState(StateReplying)
	payload, err := codec.EncodePriorityUpdate(update)
	if err != nil {
		return c.failSpan(span, StateReplying, err)
	}
	if err := c.endpoint.Reply(payload); err != nil {
		return c.failSpan(span, StateReplying, fmt.Errorf("reply priorities: %w", err))
	}

	decision := c.opts.Cadence.Decide(step)

	c.setState(StateMaybeTargetSync)
	if decision.SyncTarget {
		if err := c.syncTargets(step); err != nil {
			return c.failSpan(span, StateMaybeTargetSync, err)
		}
	}

	c.setState(StateMaybePublish)
	c.step.Store(step)
	metrics.StepCounter.Set(float64(step))
	if decision.Publish {
		if err := c.publish(ctx, step); err != nil {
			return c.failSpan(span, StateMaybePublish, err)
		}
	}

	elapsed := time.Since(started)
	c.lastDuration.Store(int64(elapsed))
	metrics.StepsTotal.Inc()
	metrics.StepLatency.Observe(elapsed.Seconds())
	span.SetAttributes(
		attribute.Bool("learner.target_sync", decision.SyncTarget),
		attribute.Bool("learner.publish", decision.Publish),
	)
	c.logger.Debug("learning step complete", "step", step, "duration", elapsed)
	return nil
}

func (c *Controller) intake(ctx context.Context, raw []byte, receivedAt time.Time) (codec.ReplayBatch, error) {
	batch, err := codec.DecodeReplayBatch(raw)
	if err != nil {
		return nil, err
	}
	if len(batch) != c.opts.NumAgents {
		c.logger.Error("replay batch does not match configured agents",
			"expected", c.opts.NumAgents,
			"actual", len(batch),
			"action", "check buffer and learner agree on the number of agents")
		return nil, fmt.Errorf("%w: expected %d sub-batches, got %d",
			ErrAgentCountMismatch, c.opts.NumAgents, len(batch))
	}

	if c.queue.Push(intake.Item{Batch: batch, ReceivedAt: receivedAt}) {
		metrics.IntakeEvictions.Inc()
	}
	item, err := c.queue.PopLatest(ctx)
	metrics.IntakeQueueDepth.Set(float64(c.queue.Len()))
	if err != nil {
		return nil, fmt.Errorf("pop replay batch: %w", err)
	}
	return item.Batch, nil
}

func (c *Controller) processAgents(batch codec.ReplayBatch, step int64) (codec.PriorityUpdate, error) {
	update := codec.PriorityUpdate{
		Indices: make([][]int64, len(c.agents)),
		Errors:  make([][]float64, len(c.agents)),
	}
	for i, agent := range c.agents {
		res, err := agent.Replay(batch[i], c.opts.BatchSize)
		if err != nil {
			return codec.PriorityUpdate{}, fmt.Errorf("agent %d replay: %w", i, err)
		}
		if len(res.Indices) != len(res.Errors) {
			return codec.PriorityUpdate{}, fmt.Errorf("%w: agent %d returned %d indices and %d errors",
				ErrMisalignedResult, i, len(res.Indices), len(res.Errors))
		}
		update.Indices[i] = res.Indices
		update.Errors[i] = res.Errors
		for _, s := range res.AuxLosses {
			c.scalars.WriteScalar(i, s.Name, s.Value, step)
		}
	}
	return update, nil
}

func (c *Controller) syncTargets(step int64) error {
	for i, agent := range c.agents {
		if err := agent.UpdateTargetModel(); err != nil {
			return fmt.Errorf("agent %d target update: %w", i, err)
		}
	}
	c.targetSyncs.Add(1)
	metrics.TargetSyncsTotal.Inc()
	c.logger.Info("target network updated", "step", step)
	return nil
}

func (c *Controller) publish(ctx context.Context, step int64) error {
	snapshot, err := c.brain.Parameters()
	if err != nil {
		return fmt.Errorf("get parameters: %w", err)
	}
	snapshot.Step = step
	snapshot.RunID = c.opts.RunID

	payload, err := codec.EncodeSnapshot(snapshot)
	if err != nil {
		return err
	}
	if err := c.publisher.Publish(ctx, payload); err != nil {
		return fmt.Errorf("publish parameters: %w", err)
	}
	c.publishes.Add(1)
	metrics.ParamPublishes.Inc()
	metrics.SnapshotBytes.Set(float64(len(payload)))
	c.logger.Info("parameters published", "step", step, "tensors", len(snapshot.Tensors), "bytes", len(payload))
	return nil
}

func (c *Controller) fail(state State, err error) error {
	metrics.StepErrors.WithLabelValues(state.String()).Inc()
	return fmt.Errorf("%s: %w", state, err)
}

func (c *Controller) failSpan(span trace.Span, state State, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return c.fail(state, err)
}

func (c *Controller) setState(s State) {
	c.state.Store(int32(s))
}

func (c *Controller) State() State {
	return State(c.state.Load())
}

// StepCount is the number of completed learning steps.
func (c *Controller) StepCount() int64 {
	return c.step.Load()
}

func (c *Controller) Stats() Stats {
	return Stats{
		State:            c.State().String(),
		Step:             c.step.Load(),
		TargetSyncs:      c.targetSyncs.Load(),
		Publishes:        c.publishes.Load(),
		QueueLength:      c.queue.Len(),
		QueueCapacity:    c.queue.Capacity(),
		QueueEvicted:     c.queue.Evicted(),
		LastStepDuration: time.Duration(c.lastDuration.Load()),
	}
}
