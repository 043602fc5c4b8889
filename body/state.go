// body implements agent bodies: decorators that sit between an environment
// loop and an action-selecting agent, reshaping raw observations into the
// state representation the agent consumes. The design follows the classic
// observe-act-reward loop: the environment supplies a state and the reward
// for the previous action, the body transforms the state, and the wrapped
// agent's chosen action is returned to the environment unchanged.
package body

import "framestack/frames"

// Action is whatever the wrapped agent chooses. No assumption is made about
// its shape; bodies pass it back to the environment loop untouched.
type Action any

// Info is auxiliary per-step metadata. It is opaque to bodies and carried
// through from the incoming state to the composite state unchanged.
type Info map[string]any

// State is a snapshot presented to an agent: a feature array, a mask
// indicating whether the episode is still active (0 means terminal), and
// opaque info. Implementations must be immutable once constructed, since a
// replay buffer and an in-flight decision may hold the same state.
type State interface {
	// Features returns the state's feature array. Implementations may
	// compute it on demand; shape errors deferred that way surface here.
	Features() (*frames.Frame, error)
	// Mask is 1 while the episode is active and 0 at a terminal step.
	Mask() float64
	// Info returns the step metadata, passed through unchanged.
	Info() Info
	// Len is the number of samples in the state, i.e. the batch dimension
	// of a single observation. It is independent of how many frames were
	// stacked to form the state.
	Len() int
}

// ActionSelector is the capability a body wraps: given a state and the
// scalar reward for the previous action, choose the next action.
type ActionSelector interface {
	Act(state State, reward float64) (Action, error)
}

// StackedState is the eager state variant: features are fully materialized
// at construction, so every access is free.
type StackedState struct {
	features *frames.Frame
	mask     float64
	info     Info
}

// NewState returns an eager state wrapping the given feature frame.
// Environments emit their raw single observations this way, and FrameStack
// emits concatenated windows this way when lazy composition is off.
func NewState(features *frames.Frame, mask float64, info Info) *StackedState {
	return &StackedState{features: features, mask: mask, info: info}
}

func (s *StackedState) Features() (*frames.Frame, error) { return s.features, nil }
func (s *StackedState) Mask() float64                    { return s.mask }
func (s *StackedState) Info() Info                       { return s.info }
func (s *StackedState) Len() int                         { return s.features.Rows() }
