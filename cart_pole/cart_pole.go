// cart_pole implements the classic pole-balancing control task as a concrete
// environment for driving bodies and agents. Observations are emitted as 1x4
// frames (cart position, cart velocity, pole angle, pole angular velocity);
// actions are the ints 0 (push left) and 1 (push right).
package cart_pole

import (
	"fmt"
	"math"
	"math/rand"

	"framestack/body"
	"framestack/frames"
)

const (
	gravity        = 9.81
	massCart       = 1.0
	massPole       = 0.1
	poleHalfLength = 0.5
	totalMass      = massCart + massPole
	poleMassLength = massPole * poleHalfLength
	forceMax       = 10.0
	tau            = 0.02

	xThreshold     = 2.4
	thetaThreshold = 12.0 * math.Pi / 180.0
	maxSteps       = 500

	// Channels is the observation channel count.
	Channels = 2 + 2
	// Actions is the discrete action count.
	Actions = 2
)

// Env is a single cart-pole instance. Not safe for concurrent use; each
// episode worker owns its own Env.
type Env struct {
	x, xDot, theta, thetaDot float64
	steps                    int
	rng                      *rand.Rand
}

// New returns an environment seeded by rng; pass nil for a random seed.
func New(rng *rand.Rand) *Env {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	env := &Env{rng: rng}
	env.Reset()
	return env
}

// Reset starts a new episode from a small random perturbation of the balance
// point, returning the initial state (mask 1).
func (e *Env) Reset() body.State {
	e.x = e.rng.Float64()*0.1 - 0.05
	e.xDot = e.rng.Float64()*0.1 - 0.05
	e.theta = e.rng.Float64()*0.1 - 0.05
	e.thetaDot = e.rng.Float64()*0.1 - 0.05
	e.steps = 0
	return e.observe(1)
}

// Step applies the action and advances the physics one tick, returning the
// successor state and the reward for surviving the step. Termination is
// signaled through the state's mask (0 when the pole falls, the cart leaves
// the track, or the step limit is hit), matching the masking convention the
// bodies pass through.
func (e *Env) Step(action body.Action) (body.State, float64, error) {
	direction, ok := action.(int)
	if !ok {
		return nil, 0, fmt.Errorf("cart_pole: unsupported action type %T", action)
	}
	if direction != 0 && direction != 1 {
		return nil, 0, fmt.Errorf("cart_pole: action out of range: %d", direction)
	}

	force := forceMax
	if direction == 0 {
		force = -forceMax
	}

	cosTheta := math.Cos(e.theta)
	sinTheta := math.Sin(e.theta)

	temp := (force + poleMassLength*e.thetaDot*e.thetaDot*sinTheta) / totalMass
	thetaAcc := (gravity*sinTheta - cosTheta*temp) /
		(poleHalfLength * (4.0/3.0 - massPole*cosTheta*cosTheta/totalMass))
	xAcc := temp - poleMassLength*thetaAcc*cosTheta/totalMass

	e.x += tau * e.xDot
	e.xDot += tau * xAcc
	e.theta += tau * e.thetaDot
	e.thetaDot += tau * thetaAcc
	e.steps++

	failed := e.x < -xThreshold || e.x > xThreshold ||
		e.theta < -thetaThreshold || e.theta > thetaThreshold
	done := failed || e.steps >= maxSteps

	mask := 1.0
	if done {
		mask = 0
	}
	reward := 1.0
	if failed {
		reward = 0
	}
	return e.observe(mask), reward, nil
}

// NumActions returns the discrete action count.
func (e *Env) NumActions() int { return Actions }

// Channels returns the observation channel count.
func (e *Env) Channels() int { return Channels }

// MaxSteps returns the per-episode step limit.
func MaxSteps() int { return maxSteps }

func (e *Env) observe(mask float64) body.State {
	raw := frames.MustNew(1, Channels, []float64{e.x, e.xDot, e.theta, e.thetaDot})
	return body.NewState(raw, mask, body.Info{"steps": e.steps})
}
