// Package agent is a reference learning collaborator: one linear Q-function
// per agent with a prediction and a target copy, trained by prioritized TD
// updates. It stands in for the real networks in the binary and in tests.
package agent

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"apex-learner/internal/codec"
	"apex-learner/internal/learner"
)

type Config struct {
	ObsDim       int
	NumActions   int
	LearningRate float64
	Gamma        float64
}

func (c Config) validate() error {
	if c.ObsDim <= 0 || c.NumActions <= 0 {
		return fmt.Errorf("obs dim and num actions must be > 0, got %d and %d", c.ObsDim, c.NumActions)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning rate must be > 0, got %g", c.LearningRate)
	}
	if c.Gamma < 0 || c.Gamma > 1 {
		return fmt.Errorf("gamma must be in [0, 1], got %g", c.Gamma)
	}
	return nil
}

// Transitions is the sub-batch format the buffer sends for one agent.
type Transitions struct {
	Indices    []int64     `msgpack:"indices"`
	States     [][]float64 `msgpack:"states"`
	Actions    []int       `msgpack:"actions"`
	Rewards    []float64   `msgpack:"rewards"`
	NextStates [][]float64 `msgpack:"next_states"`
	Dones      []bool      `msgpack:"dones"`
	// Weights are importance-sampling weights; empty means all ones.
	Weights []float64 `msgpack:"weights"`
}

func (t Transitions) validate(obsDim, numActions int) error {
	n := len(t.Indices)
	if len(t.States) != n || len(t.Actions) != n || len(t.Rewards) != n || len(t.NextStates) != n || len(t.Dones) != n {
		return errors.New("transition fields have different lengths")
	}
	if len(t.Weights) != 0 && len(t.Weights) != n {
		return fmt.Errorf("%d weights for %d transitions", len(t.Weights), n)
	}
	for i := 0; i < n; i++ {
		if len(t.States[i]) != obsDim || len(t.NextStates[i]) != obsDim {
			return fmt.Errorf("transition %d: observation dim must be %d", i, obsDim)
		}
		if t.Actions[i] < 0 || t.Actions[i] >= numActions {
			return fmt.Errorf("transition %d: action %d out of range", i, t.Actions[i])
		}
	}
	return nil
}

type Weights struct {
	W [][]float32 // [actions][obs]
	B []float32   // [actions]
}

func DefaultWeights(obsDim, numActions int) Weights {
	w := Weights{
		W: make([][]float32, numActions),
		B: make([]float32, numActions),
	}
	for a := range w.W {
		w.W[a] = make([]float32, obsDim)
		sign := float32(1)
		if a%2 == 1 {
			sign = -1
		}
		for j := range w.W[a] {
			w.W[a][j] = 0.01 * sign
		}
	}
	return w
}

func (w Weights) clone() Weights {
	out := Weights{
		W: make([][]float32, len(w.W)),
		B: append([]float32(nil), w.B...),
	}
	for a := range w.W {
		out.W[a] = append([]float32(nil), w.W[a]...)
	}
	return out
}

func (w Weights) q(state []float64) []float64 {
	values := make([]float64, len(w.W))
	for a := range w.W {
		values[a] = float64(w.B[a])
		for j, s := range state {
			values[a] += float64(w.W[a][j]) * s
		}
	}
	return values
}

// LinearQ holds one agent's prediction and target weights.
type LinearQ struct {
	cfg Config

	mu     sync.Mutex
	online Weights
	target Weights
}

var _ learner.Agent = (*LinearQ)(nil)

func NewLinearQ(cfg Config) (*LinearQ, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	online := DefaultWeights(cfg.ObsDim, cfg.NumActions)
	return &LinearQ{
		cfg:    cfg,
		online: online,
		target: online.clone(),
	}, nil
}

// Replay applies one TD update per transition, using at most batchSize of
// them, and returns the absolute TD errors as new priorities.
func (q *LinearQ) Replay(batch msgpack.RawMessage, batchSize int) (learner.ReplayResult, error) {
	var t Transitions
	if err := msgpack.Unmarshal(batch, &t); err != nil {
		return learner.ReplayResult{}, fmt.Errorf("decode transitions: %w", err)
	}
	if err := t.validate(q.cfg.ObsDim, q.cfg.NumActions); err != nil {
		return learner.ReplayResult{}, err
	}
	n := len(t.Indices)
	if batchSize > 0 && n > batchSize {
		n = batchSize
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	res := learner.ReplayResult{
		Indices: append([]int64(nil), t.Indices[:n]...),
		Errors:  make([]float64, n),
	}
	var loss, meanQ float64
	for i := 0; i < n; i++ {
		weight := 1.0
		if len(t.Weights) != 0 {
			weight = t.Weights[i]
		}

		values := q.online.q(t.States[i])
		action := t.Actions[i]
		target := t.Rewards[i]
		if !t.Dones[i] {
			target += q.cfg.Gamma * maxOf(q.target.q(t.NextStates[i]))
		}
		td := target - values[action]

		step := q.cfg.LearningRate * weight * td
		for j, s := range t.States[i] {
			q.online.W[action][j] += float32(step * s)
		}
		q.online.B[action] += float32(step)

		res.Errors[i] = math.Abs(td)
		loss += weight * td * td
		meanQ += values[action]
	}
	if n > 0 {
		loss /= float64(n)
		meanQ /= float64(n)
	}

	res.AuxLosses = []learner.Scalar{
		{Name: "TD-Loss", Value: loss},
		{Name: "Mean-Q", Value: meanQ},
	}
	return res, nil
}

// UpdateTargetModel copies the prediction weights into the target weights.
func (q *LinearQ) UpdateTargetModel() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.target = q.online.clone()
	return nil
}

// Tensors returns deep copies of the prediction weights, weight then bias.
func (q *LinearQ) Tensors(prefix string) []codec.Tensor {
	q.mu.Lock()
	defer q.mu.Unlock()

	flat := make([]float32, 0, q.cfg.NumActions*q.cfg.ObsDim)
	for _, row := range q.online.W {
		flat = append(flat, row...)
	}
	return []codec.Tensor{
		{Name: prefix + "q.weight", Shape: []int{q.cfg.NumActions, q.cfg.ObsDim}, Data: flat},
		{Name: prefix + "q.bias", Shape: []int{q.cfg.NumActions}, Data: append([]float32(nil), q.online.B...)},
	}
}

// QValues evaluates the prediction weights on state.
func (q *LinearQ) QValues(state []float64) []float64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.online.q(state)
}

// TargetQValues evaluates the target weights on state.
func (q *LinearQ) TargetQValues(state []float64) []float64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.target.q(state)
}

func maxOf(values []float64) float64 {
	best := values[0]
	for _, v := range values[1:] {
		if v > best {
			best = v
		}
	}
	return best
}
