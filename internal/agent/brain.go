package agent

import (
	"fmt"

	"apex-learner/internal/codec"
	"apex-learner/internal/learner"
)

// Brain owns every agent's model and flattens them into one snapshot, agent
// by agent, in agent order.
type Brain struct {
	agents []*LinearQ
}

var _ learner.ParameterSource = (*Brain)(nil)

func NewBrain(n int, cfg Config) (*Brain, error) {
	if n <= 0 {
		return nil, fmt.Errorf("agent count must be > 0, got %d", n)
	}
	b := &Brain{agents: make([]*LinearQ, n)}
	for i := range b.agents {
		q, err := NewLinearQ(cfg)
		if err != nil {
			return nil, err
		}
		b.agents[i] = q
	}
	return b, nil
}

// Agents returns the per-agent collaborators in agent order.
func (b *Brain) Agents() []learner.Agent {
	out := make([]learner.Agent, len(b.agents))
	for i, a := range b.agents {
		out[i] = a
	}
	return out
}

func (b *Brain) Agent(i int) *LinearQ {
	return b.agents[i]
}

func (b *Brain) Parameters() (codec.ParameterSnapshot, error) {
	var snapshot codec.ParameterSnapshot
	for i, a := range b.agents {
		snapshot.Tensors = append(snapshot.Tensors, a.Tensors(fmt.Sprintf("agent%d.", i))...)
	}
	return snapshot, nil
}
