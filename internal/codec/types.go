package codec

import "github.com/vmihailenco/msgpack/v5"

// ReplayBatch holds one sampled minibatch per agent, in agent order. Each
// sub-batch is opaque to the learner and decoded by the agent that owns it.
type ReplayBatch []msgpack.RawMessage

// PriorityUpdate carries new priorities back to the buffer. Row i of Indices
// and Errors belongs to agent i. On the wire it is the 2-element array
// [indices, errors].
type PriorityUpdate struct {
	_msgpack struct{} `msgpack:",as_array"`

	Indices [][]int64
	Errors  [][]float64
}

// Agents returns the number of per-agent rows.
func (p PriorityUpdate) Agents() int {
	return len(p.Indices)
}

type Tensor struct {
	Name  string    `msgpack:"name"`
	Shape []int     `msgpack:"shape"`
	Data  []float32 `msgpack:"data"`
}

// ParameterSnapshot is a flattened model state, one tensor per learnable
// parameter in a fixed order that workers unpack positionally.
type ParameterSnapshot struct {
	Step    int64    `msgpack:"step"`
	RunID   string   `msgpack:"run_id"`
	Tensors []Tensor `msgpack:"tensors"`
}

// Clone returns a deep copy sharing no memory with s.
func (s ParameterSnapshot) Clone() ParameterSnapshot {
	out := ParameterSnapshot{
		Step:  s.Step,
		RunID: s.RunID,
	}
	if s.Tensors == nil {
		return out
	}
	out.Tensors = make([]Tensor, len(s.Tensors))
	for i, t := range s.Tensors {
		out.Tensors[i] = Tensor{
			Name:  t.Name,
			Shape: append([]int(nil), t.Shape...),
			Data:  append([]float32(nil), t.Data...),
		}
	}
	return out
}

// NumValues is the total number of scalars across all tensors.
func (s ParameterSnapshot) NumValues() int {
	var n int
	for _, t := range s.Tensors {
		n += len(t.Data)
	}
	return n
}
