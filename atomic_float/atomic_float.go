// atomic_float provides lock-free float64 cells. The training loop shares
// policy weights between many reader goroutines (episode workers selecting
// actions) and a single writer (the estimator applying updates); storing each
// weight in an AtomicFloat64 precludes locking the whole weight table.
package atomic_float

import (
	"math"
	"sync/atomic"
	"unsafe"
)

// AtomicFloat64 encapsulates a float64 for non-locking atomic operations.
// The unsafe-pointer bit casting requires care: no unsafe pointer is stored
// beyond the expression that uses it, since the gc may relocate the variable
// and leave a stored pointer stale.
type AtomicFloat64 struct {
	val float64
}

// NewAtomicFloat64 encapsulates a float64 for atomic operations.
func NewAtomicFloat64(val float64) *AtomicFloat64 {
	return &AtomicFloat64{
		val: val,
	}
}

// NewVector returns n zero-valued cells, the storage form of a weight vector.
func NewVector(n int) []*AtomicFloat64 {
	cells := make([]*AtomicFloat64, n)
	for i := range cells {
		cells[i] = NewAtomicFloat64(0)
	}
	return cells
}

// AtomicRead reads the float64 synchronized with main memory, never a
// stale/dirty local copy.
func (af *AtomicFloat64) AtomicRead() (value float64) {
	uintVal := atomic.LoadUint64((*uint64)(unsafe.Pointer(&af.val)))
	return math.Float64frombits(uintVal)
}

// AtomicAdd adds addend to the float64 via compare-and-swap. If the pointee
// changed between read and swap, the add is not retried: the caller learns of
// the rejection and decides whether to drop or recalculate the update, which
// is logically safer than a blind retry loop.
func (af *AtomicFloat64) AtomicAdd(addend float64) (newVal float64, succeeded bool) {
	old := af.AtomicRead()
	newVal = old + addend
	succeeded = atomic.CompareAndSwapUint64(
		(*uint64)(unsafe.Pointer(&af.val)),
		math.Float64bits(old),
		math.Float64bits(newVal))
	return
}

// AtomicSet sets the float64, returns true on success.
func (af *AtomicFloat64) AtomicSet(newVal float64) (succeeded bool) {
	old := af.AtomicRead()
	succeeded = atomic.CompareAndSwapUint64(
		(*uint64)(unsafe.Pointer(&af.val)),
		math.Float64bits(old),
		math.Float64bits(newVal))
	return
}
