package body

import (
	"errors"
	"fmt"

	"framestack/frames"
)

// DefaultWindowSize is the number of recent observations stacked when no
// size option is given.
const DefaultWindowSize = 4

// ErrInvalidWindowSize is returned by NewFrameStack for a non-positive size.
var ErrInvalidWindowSize = errors.New("frame stack window size must be positive")

// FrameStack is a body that maintains a fixed-length sliding window of the
// most recent raw observations and presents the wrapped agent with a
// temporally-extended composite state each step.
//
// The window is initialized lazily on the first Act call by replicating the
// first observation, so the composite state has its full channel count from
// step one rather than a ragged partial window. The window intentionally
// carries across episode boundaries (a terminal mask does not clear it);
// callers that want a clean window per episode call Reset explicitly.
type FrameStack struct {
	selector ActionSelector
	size     int
	lazy     bool
	window   []*frames.Frame
}

// Option configures a FrameStack.
type Option func(*FrameStack)

// WithSize sets the sliding window length. Validated at construction.
func WithSize(size int) Option {
	return func(fs *FrameStack) { fs.size = size }
}

// WithLazyStates makes the stack emit LazyState composites, deferring
// concatenation until the wrapped agent (or a later replay consumer)
// requests features.
func WithLazyStates() Option {
	return func(fs *FrameStack) { fs.lazy = true }
}

// NewFrameStack wraps selector in a frame-stacking body. Configuration
// errors fail here rather than on the first Act call.
func NewFrameStack(selector ActionSelector, opts ...Option) (*FrameStack, error) {
	if selector == nil {
		return nil, errors.New("frame stack requires an action selector")
	}

	fs := &FrameStack{
		selector: selector,
		size:     DefaultWindowSize,
	}
	for _, opt := range opts {
		opt(fs)
	}

	if fs.size < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWindowSize, fs.size)
	}
	return fs, nil
}

// Act advances the window with the incoming state's raw observation, builds
// the composite state, and delegates the decision to the wrapped selector,
// returning its action unchanged. The reward is ignored here and passed
// through verbatim.
//
// Every step the window is rebuilt as a fresh slice rather than shifted in
// place. Lazy composites hold a reference to the slice they were built from,
// so an in-place shift would corrupt states already sitting in a replay
// buffer; allocating anew keeps each emitted snapshot independent of later
// window mutation.
func (fs *FrameStack) Act(state State, reward float64) (Action, error) {
	raw, err := state.Features()
	if err != nil {
		return nil, err
	}

	if len(fs.window) == 0 {
		window := make([]*frames.Frame, fs.size)
		for i := range window {
			window[i] = raw
		}
		fs.window = window
	} else {
		window := make([]*frames.Frame, 0, fs.size)
		window = append(window, fs.window[1:]...)
		window = append(window, raw)
		fs.window = window
	}

	var composite State
	if fs.lazy {
		composite = NewLazyState(fs.window, state.Mask(), state.Info())
	} else {
		stacked, err := frames.ConcatChannels(fs.window...)
		if err != nil {
			return nil, err
		}
		composite = NewState(stacked, state.Mask(), state.Info())
	}

	return fs.selector.Act(composite, reward)
}

// Reset clears the window so the next Act re-initializes it from the first
// observation it sees. Acting across an episode boundary without calling
// Reset stacks the final frames of the previous episode under the new
// episode's first observations, mirroring the behavior of bodies that never
// observe episode boundaries at all.
func (fs *FrameStack) Reset() {
	fs.window = nil
}

// Size returns the configured window length.
func (fs *FrameStack) Size() int {
	return fs.size
}
