package learner

import (
	"github.com/vmihailenco/msgpack/v5"

	"apex-learner/internal/codec"
)

//go:generate mockgen -source=collaborators.go -destination=mocks/mock_collaborators.go -package=mocks

// Scalar is a named auxiliary value reported by an agent for logging.
type Scalar struct {
	Name  string
	Value float64
}

// ReplayResult is one agent's output for one sub-batch. Indices and Errors
// are aligned element-wise.
type ReplayResult struct {
	Indices   []int64
	Errors    []float64
	AuxLosses []Scalar
}

// Agent is the learning collaborator for one agent: it trains on a
// sub-batch and refreshes its target network on request.
type Agent interface {
	Replay(batch msgpack.RawMessage, batchSize int) (ReplayResult, error)
	UpdateTargetModel() error
}

// ParameterSource produces the snapshot broadcast to workers. The returned
// snapshot must not share memory with live model state.
type ParameterSource interface {
	Parameters() (codec.ParameterSnapshot, error)
}

// ScalarWriter receives per-agent scalars keyed by name and step.
type ScalarWriter interface {
	WriteScalar(agent int, name string, value float64, step int64)
}

type discardScalars struct{}

func (discardScalars) WriteScalar(int, string, float64, int64) {}
