// Package feeder plays the replay buffer's side of the learner protocol for
// smoke runs: it collects cartpole transitions per agent, sends sampled
// batches to the learner and reads back the priority updates.
package feeder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"apex-learner/internal/agent"
	"apex-learner/internal/cartpole"
	"apex-learner/internal/codec"
)

const defaultMemory = 4096

// Requester sends one request and waits for its reply.
type Requester interface {
	Request(ctx context.Context, data []byte) ([]byte, error)
}

type Runner struct {
	NumAgents int
	BatchSize int
	// Steps is the number of batches to send; zero runs until cancelled.
	Steps    int
	Interval time.Duration
	Seed     int64
	// Memory bounds the per-agent transition ring.
	Memory int
	Logger *slog.Logger
}

type Stats struct {
	Requests     int
	Transitions  int
	MeanPriority float64
}

type transition struct {
	index  int64
	state  []float64
	action int
	reward float64
	next   []float64
	done   bool
}

type agentMemory struct {
	env       *cartpole.Env
	obs       []float64
	ring      []transition
	head      int
	nextIndex int64
}

func (m *agentMemory) collect(rng *rand.Rand, n, capacity int) {
	for i := 0; i < n; i++ {
		action := rng.Intn(cartpole.NumActions)
		next, reward, done := m.env.Step(action)
		t := transition{
			index:  m.nextIndex,
			state:  m.obs,
			action: action,
			reward: reward,
			next:   next,
			done:   done,
		}
		m.nextIndex++
		if len(m.ring) < capacity {
			m.ring = append(m.ring, t)
		} else {
			m.ring[m.head] = t
			m.head = (m.head + 1) % capacity
		}
		m.obs = next
		if done {
			m.obs = m.env.Reset()
		}
	}
}

func (m *agentMemory) sample(rng *rand.Rand, n int) agent.Transitions {
	out := agent.Transitions{
		Indices:    make([]int64, n),
		States:     make([][]float64, n),
		Actions:    make([]int, n),
		Rewards:    make([]float64, n),
		NextStates: make([][]float64, n),
		Dones:      make([]bool, n),
	}
	for i := 0; i < n; i++ {
		t := m.ring[rng.Intn(len(m.ring))]
		out.Indices[i] = t.index
		out.States[i] = t.state
		out.Actions[i] = t.action
		out.Rewards[i] = t.reward
		out.NextStates[i] = t.next
		out.Dones[i] = t.done
	}
	return out
}

// Run sends batches until Steps is reached or ctx is cancelled; both return
// nil. A failed exchange or an inconsistent reply is returned as an error.
func (r *Runner) Run(ctx context.Context, req Requester) (Stats, error) {
	var stats Stats
	if r.NumAgents <= 0 {
		return stats, errors.New("num agents must be > 0")
	}
	if r.BatchSize <= 0 {
		return stats, errors.New("batch size must be > 0")
	}
	capacity := r.Memory
	if capacity <= 0 {
		capacity = defaultMemory
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "feeder")

	rng := rand.New(rand.NewSource(r.Seed))
	memories := make([]*agentMemory, r.NumAgents)
	for i := range memories {
		env := cartpole.NewEnv(rand.New(rand.NewSource(rng.Int63())))
		memories[i] = &agentMemory{env: env, obs: env.Reset()}
	}

	for r.Steps == 0 || stats.Requests < r.Steps {
		if ctx.Err() != nil {
			return stats, nil
		}

		batch := make(codec.ReplayBatch, r.NumAgents)
		for i, m := range memories {
			m.collect(rng, r.BatchSize, capacity)
			data, err := msgpack.Marshal(m.sample(rng, r.BatchSize))
			if err != nil {
				return stats, fmt.Errorf("encode agent %d transitions: %w", i, err)
			}
			batch[i] = data
		}
		payload, err := codec.EncodeReplayBatch(batch)
		if err != nil {
			return stats, err
		}

		reply, err := req.Request(ctx, payload)
		if err != nil {
			if ctx.Err() != nil {
				return stats, nil
			}
			return stats, fmt.Errorf("request %d: %w", stats.Requests+1, err)
		}
		update, err := codec.DecodePriorityUpdate(reply)
		if err != nil {
			return stats, err
		}
		if update.Agents() != r.NumAgents {
			return stats, fmt.Errorf("priority update for %d agents, expected %d", update.Agents(), r.NumAgents)
		}

		stats.Requests++
		stats.Transitions += r.NumAgents * r.BatchSize
		stats.MeanPriority = mean(update.Errors)
		logger.Debug("priorities received", "request", stats.Requests, "mean_priority", stats.MeanPriority)
		if stats.Requests%100 == 0 {
			logger.Info("feeder progress", "requests", stats.Requests, "mean_priority", stats.MeanPriority)
		}

		if r.Interval > 0 {
			select {
			case <-ctx.Done():
				return stats, nil
			case <-time.After(r.Interval):
			}
		}
	}
	return stats, nil
}

func mean(rows [][]float64) float64 {
	var sum float64
	var n int
	for _, row := range rows {
		for _, v := range row {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
