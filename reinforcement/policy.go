package reinforcement

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"framestack/atomic_float"
	"framestack/body"
)

// LinearPolicy is an epsilon-greedy action selector whose value estimates
// are linear in the stacked feature vector: one weight vector per discrete
// action. Weights live in atomic cells so episode workers can read them
// while the estimator writes updates, without locking the whole table.
//
// The policy acts on the first sample of a state (batch-of-one decision
// loop); batched evaluation belongs to the learner, not the selector.
type LinearPolicy struct {
	weights     [][]*atomic_float.AtomicFloat64
	numActions  int
	numFeatures int
	epsilon     float64
}

// NewLinearPolicy returns a zero-initialized policy over numActions discrete
// actions and numFeatures stacked feature channels. Epsilon is the
// exploration probability in [0, 1].
func NewLinearPolicy(numActions, numFeatures int, epsilon float64) (*LinearPolicy, error) {
	if numActions < 1 || numFeatures < 1 {
		return nil, fmt.Errorf("invalid policy dimensions: %d actions, %d features", numActions, numFeatures)
	}
	if epsilon < 0 || epsilon > 1 {
		return nil, errors.New("epsilon must be in [0, 1]")
	}

	weights := make([][]*atomic_float.AtomicFloat64, numActions)
	for a := range weights {
		weights[a] = atomic_float.NewVector(numFeatures)
	}
	return &LinearPolicy{
		weights:     weights,
		numActions:  numActions,
		numFeatures: numFeatures,
		epsilon:     epsilon,
	}, nil
}

// Act chooses an action for the composite state: explore uniformly with
// probability epsilon, otherwise take the max-valued action. The reward is
// unused; value updates are the estimator's job.
func (p *LinearPolicy) Act(state body.State, reward float64) (body.Action, error) {
	feats, err := state.Features()
	if err != nil {
		return nil, err
	}
	if feats.Cols() != p.numFeatures {
		return nil, fmt.Errorf("policy expects %d feature channels, state has %d", p.numFeatures, feats.Cols())
	}

	if rand.Float64() <= p.epsilon {
		return rand.Intn(p.numActions), nil
	}

	x := feats.Row(0)
	best := 0
	bestVal := p.value(0, x)
	for a := 1; a < p.numActions; a++ {
		if v := p.value(a, x); v > bestVal {
			best, bestVal = a, v
		}
	}
	return best, nil
}

func (p *LinearPolicy) value(action int, x []float64) float64 {
	var sum float64
	for i, w := range p.weights[action] {
		sum += w.AtomicRead() * x[i]
	}
	return sum
}

func (p *LinearPolicy) maxValue(x []float64) float64 {
	maxVal := -math.MaxFloat64
	for a := 0; a < p.numActions; a++ {
		if v := p.value(a, x); v > maxVal {
			maxVal = v
		}
	}
	return maxVal
}

// update applies delta*x to the action's weight vector. Rejected CAS adds
// are intentionally discarded; there is a single estimator, so in practice
// every add is serialized and succeeds.
func (p *LinearPolicy) update(action int, x []float64, delta float64) {
	for i, w := range p.weights[action] {
		_, _ = w.AtomicAdd(delta * x[i])
	}
}
