package body

import "framestack/frames"

// LazyState defers concatenation of a frame window until features are
// actually requested. This trades CPU for memory: when many states are
// retained at once (a replay buffer) and only a subset will ever have
// Features called, holding the shared window frames is far cheaper than
// materializing every stack. The held window is never mutated after
// construction, so sharing it between the buffer and in-flight references
// is safe.
type LazyState struct {
	window []*frames.Frame
	mask   float64
	info   Info
}

// NewLazyState wraps a frame window without concatenating it. The caller
// must not mutate the window slice afterward; FrameStack guarantees this by
// allocating a fresh slice on every step.
func NewLazyState(window []*frames.Frame, mask float64, info Info) *LazyState {
	return &LazyState{window: window, mask: mask, info: info}
}

// Features concatenates the held frames along the channel axis. The result
// is identical to what the eager variant would have precomputed. No caching
// is done: repeated access repeats the concatenation cost, which is the
// acknowledged tradeoff of the lazy representation.
func (s *LazyState) Features() (*frames.Frame, error) {
	return frames.ConcatChannels(s.window...)
}

func (s *LazyState) Mask() float64 { return s.mask }
func (s *LazyState) Info() Info    { return s.info }

// Len reports the batch dimension of a single observation, not the number
// of stacked frames, matching the eager variant so the two are
// interchangeable to callers that only inspect length.
func (s *LazyState) Len() int { return s.window[0].Rows() }
