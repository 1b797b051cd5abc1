package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

var testConfig = Config{ObsDim: 2, NumActions: 2, LearningRate: 0.1, Gamma: 0.9}

func encodeTransitions(t *testing.T, tr Transitions) msgpack.RawMessage {
	t.Helper()
	data, err := msgpack.Marshal(tr)
	require.NoError(t, err)
	return data
}

func terminalTransitions(indices ...int64) Transitions {
	tr := Transitions{Indices: indices}
	for range indices {
		tr.States = append(tr.States, []float64{1, 0})
		tr.NextStates = append(tr.NextStates, []float64{0, 0})
		tr.Actions = append(tr.Actions, 0)
		tr.Rewards = append(tr.Rewards, 1)
		tr.Dones = append(tr.Dones, true)
	}
	return tr
}

func TestNewLinearQ_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewLinearQ(Config{ObsDim: 0, NumActions: 2, LearningRate: 0.1})
	require.Error(t, err)
	_, err = NewLinearQ(Config{ObsDim: 2, NumActions: 2, LearningRate: 0})
	require.Error(t, err)
	_, err = NewLinearQ(Config{ObsDim: 2, NumActions: 2, LearningRate: 0.1, Gamma: 1.5})
	require.Error(t, err)
}

func TestReplay_AlignedAndTruncatedToBatchSize(t *testing.T) {
	t.Parallel()

	q, err := NewLinearQ(testConfig)
	require.NoError(t, err)

	res, err := q.Replay(encodeTransitions(t, terminalTransitions(5, 6, 7)), 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 6}, res.Indices)
	require.Len(t, res.Errors, 2)
	for _, e := range res.Errors {
		assert.GreaterOrEqual(t, e, 0.0)
	}
	require.Len(t, res.AuxLosses, 2)
	assert.Equal(t, "TD-Loss", res.AuxLosses[0].Name)
}

func TestReplay_TDErrorShrinks(t *testing.T) {
	t.Parallel()

	q, err := NewLinearQ(testConfig)
	require.NoError(t, err)
	batch := encodeTransitions(t, terminalTransitions(0))

	first, err := q.Replay(batch, 1)
	require.NoError(t, err)
	var last float64
	for i := 0; i < 200; i++ {
		res, err := q.Replay(batch, 1)
		require.NoError(t, err)
		last = res.Errors[0]
	}
	assert.Less(t, last, first.Errors[0])
	assert.InDelta(t, 1.0, q.QValues([]float64{1, 0})[0], 0.01)
}

func TestUpdateTargetModel_CopiesPrediction(t *testing.T) {
	t.Parallel()

	q, err := NewLinearQ(testConfig)
	require.NoError(t, err)
	state := []float64{1, 0}

	_, err = q.Replay(encodeTransitions(t, terminalTransitions(0)), 1)
	require.NoError(t, err)
	assert.NotEqual(t, q.QValues(state), q.TargetQValues(state))

	require.NoError(t, q.UpdateTargetModel())
	assert.Equal(t, q.QValues(state), q.TargetQValues(state))

	// Target stays put while the prediction keeps training.
	before := q.TargetQValues(state)
	_, err = q.Replay(encodeTransitions(t, terminalTransitions(0)), 1)
	require.NoError(t, err)
	assert.Equal(t, before, q.TargetQValues(state))
}

func TestReplay_RejectsBadTransitions(t *testing.T) {
	t.Parallel()

	q, err := NewLinearQ(testConfig)
	require.NoError(t, err)

	short := terminalTransitions(1, 2)
	short.Rewards = short.Rewards[:1]
	_, err = q.Replay(encodeTransitions(t, short), 8)
	require.Error(t, err)

	badAction := terminalTransitions(1)
	badAction.Actions[0] = 5
	_, err = q.Replay(encodeTransitions(t, badAction), 8)
	require.Error(t, err)

	_, err = q.Replay(msgpack.RawMessage{0xc1}, 8)
	require.Error(t, err)
}

func TestBrain_SnapshotIsDefensiveCopy(t *testing.T) {
	t.Parallel()

	brain, err := NewBrain(2, testConfig)
	require.NoError(t, err)

	snap, err := brain.Parameters()
	require.NoError(t, err)
	require.Len(t, snap.Tensors, 4)
	assert.Equal(t, "agent0.q.weight", snap.Tensors[0].Name)
	assert.Equal(t, []int{2, 2}, snap.Tensors[0].Shape)
	assert.Equal(t, "agent1.q.bias", snap.Tensors[3].Name)
	frozen := snap.Clone()

	// Train the live model; the earlier snapshot must not move.
	for i := 0; i < 10; i++ {
		_, err := brain.Agent(0).Replay(encodeTransitions(t, terminalTransitions(0)), 1)
		require.NoError(t, err)
	}
	assert.Equal(t, frozen, snap)

	// Mutating the snapshot must not reach the live model.
	q := brain.Agent(1).QValues([]float64{1, 1})
	snap.Tensors[2].Data[0] = 1000
	assert.Equal(t, q, brain.Agent(1).QValues([]float64{1, 1}))

	fresh, err := brain.Parameters()
	require.NoError(t, err)
	assert.NotEqual(t, frozen.Tensors[0].Data, fresh.Tensors[0].Data)
}

func TestBrain_Agents(t *testing.T) {
	t.Parallel()

	_, err := NewBrain(0, testConfig)
	require.Error(t, err)

	brain, err := NewBrain(3, testConfig)
	require.NoError(t, err)
	assert.Len(t, brain.Agents(), 3)
}
