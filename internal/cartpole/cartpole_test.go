package cartpole

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnv_ResetIsSmallAndDeterministic(t *testing.T) {
	t.Parallel()

	a := NewEnv(rand.New(rand.NewSource(7)))
	b := NewEnv(rand.New(rand.NewSource(7)))
	obs := a.Reset()
	require.Len(t, obs, ObsDim)
	assert.Equal(t, obs, b.Reset())
	for _, v := range obs {
		assert.InDelta(t, 0, v, 0.05)
	}
}

func TestEnv_ConstantPushFails(t *testing.T) {
	t.Parallel()

	env := NewEnv(rand.New(rand.NewSource(1)))
	var (
		reward float64
		done   bool
		steps  int
	)
	for !done {
		_, reward, done = env.Step(1)
		steps++
		require.LessOrEqual(t, steps, MaxSteps())
	}
	assert.Less(t, steps, MaxSteps())
	assert.Equal(t, 0.0, reward)
}

func TestEnv_ObservationIsACopy(t *testing.T) {
	t.Parallel()

	env := NewEnv(rand.New(rand.NewSource(3)))
	obs := env.Observation()
	obs[0] = 100
	assert.NotEqual(t, 100.0, env.Observation()[0])
}
