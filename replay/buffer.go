// replay provides a bounded experience buffer for transitions gathered during
// training. The buffer is where lazy composite states pay off: thousands of
// retained transitions share window frames instead of each holding a
// materialized stack.
package replay

import (
	"errors"
	"fmt"
	"sync"

	"framestack/body"
)

// Transition is one step of agent experience: the composite state the agent
// acted from, the action it chose, the reward observed, and the successor
// composite state. Done mirrors the successor's mask for convenience.
type Transition struct {
	State     body.State
	Action    body.Action
	Reward    float64
	Successor body.State
	Done      bool
}

// Dequeue policies. Fifo drains oldest-first; freshness drains newest-first,
// which favors recent experience when a consumer cannot keep up.
const (
	PolicyFifo      = "fifo"
	PolicyFreshness = "freshness"
)

var (
	// ErrBufferEmpty is returned by Dequeue on an empty buffer.
	ErrBufferEmpty = errors.New("buffer is empty")
)

// Buffer is a mutex-guarded bounded transition store. When full, Push evicts
// the oldest transition rather than failing: training memories keep the most
// recent window of experience.
type Buffer struct {
	mu       sync.Mutex
	items    []Transition
	capacity int
	policy   string
	evicted  uint64
}

// NewBuffer returns a buffer holding at most capacity transitions.
func NewBuffer(capacity int, policy string) (*Buffer, error) {
	if capacity <= 0 {
		return nil, errors.New("capacity must be greater than zero")
	}
	if policy != PolicyFifo && policy != PolicyFreshness {
		return nil, fmt.Errorf("policy must be %q or %q", PolicyFifo, PolicyFreshness)
	}
	return &Buffer{
		items:    make([]Transition, 0, capacity),
		capacity: capacity,
		policy:   policy,
	}, nil
}

// Push appends a transition, evicting the oldest one if the buffer is full.
func (b *Buffer) Push(t Transition) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.items) >= b.capacity {
		copy(b.items, b.items[1:])
		b.items = b.items[:len(b.items)-1]
		b.evicted++
	}
	b.items = append(b.items, t)
}

// Dequeue removes and returns a transition per the configured policy.
func (b *Buffer) Dequeue() (Transition, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.items) == 0 {
		return Transition{}, ErrBufferEmpty
	}

	switch b.policy {
	case PolicyFreshness:
		item := b.items[len(b.items)-1]
		b.items = b.items[:len(b.items)-1]
		return item, nil
	default:
		item := b.items[0]
		copy(b.items, b.items[1:])
		b.items = b.items[:len(b.items)-1]
		return item, nil
	}
}

// Len returns the number of stored transitions.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Capacity returns the maximum number of stored transitions.
func (b *Buffer) Capacity() int {
	return b.capacity
}

// Evicted returns how many transitions have been dropped to make room.
func (b *Buffer) Evicted() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.evicted
}

// Policy returns the dequeue policy.
func (b *Buffer) Policy() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.policy
}

// SetPolicy switches the dequeue policy at runtime.
func (b *Buffer) SetPolicy(policy string) error {
	if policy != PolicyFifo && policy != PolicyFreshness {
		return fmt.Errorf("policy must be %q or %q", PolicyFifo, PolicyFreshness)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.policy = policy
	return nil
}
