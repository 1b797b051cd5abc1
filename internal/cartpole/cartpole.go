// Package cartpole is a small classic-control environment used to produce
// realistic transitions for smoke runs of the learner.
package cartpole

import (
	"math"
	"math/rand"
)

const (
	ObsDim     = 4
	NumActions = 2

	gravity        = 9.81
	massCart       = 1.0
	massPole       = 0.1
	length         = 0.5
	totalMass      = massCart + massPole
	poleMassLength = massPole * length
	forceMax       = 10.0
	tau            = 0.02

	xThreshold     = 2.4
	thetaThreshold = 12.0 * math.Pi / 180.0
	maxSteps       = 500
)

// Env state is [x, x_dot, theta, theta_dot].
type Env struct {
	state [ObsDim]float64
	steps int
	rng   *rand.Rand
}

func NewEnv(rng *rand.Rand) *Env {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	env := &Env{rng: rng}
	env.Reset()
	return env
}

func (e *Env) Reset() []float64 {
	for i := range e.state {
		e.state[i] = e.rng.Float64()*0.1 - 0.05
	}
	e.steps = 0
	return e.Observation()
}

func (e *Env) Observation() []float64 {
	obs := make([]float64, ObsDim)
	copy(obs, e.state[:])
	return obs
}

// Step applies action 0 (push left) or 1 (push right). The reward is 1 for
// every step survived and 0 on a failing terminal step.
func (e *Env) Step(action int) ([]float64, float64, bool) {
	force := forceMax
	if action == 0 {
		force = -forceMax
	}
	x, xDot, theta, thetaDot := e.state[0], e.state[1], e.state[2], e.state[3]

	cosTheta := math.Cos(theta)
	sinTheta := math.Sin(theta)
	temp := (force + poleMassLength*thetaDot*thetaDot*sinTheta) / totalMass
	thetaAcc := (gravity*sinTheta - cosTheta*temp) / (length * (4.0/3.0 - massPole*cosTheta*cosTheta/totalMass))
	xAcc := temp - poleMassLength*thetaAcc*cosTheta/totalMass

	e.state = [ObsDim]float64{
		x + tau*xDot,
		xDot + tau*xAcc,
		theta + tau*thetaDot,
		thetaDot + tau*thetaAcc,
	}
	e.steps++

	x, theta = e.state[0], e.state[2]
	failed := x < -xThreshold || x > xThreshold || theta < -thetaThreshold || theta > thetaThreshold
	done := failed || e.steps >= maxSteps
	reward := 1.0
	if failed {
		reward = 0.0
	}
	return e.Observation(), reward, done
}

func MaxSteps() int {
	return maxSteps
}
