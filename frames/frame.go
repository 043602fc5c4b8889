// frames provides the numeric array representation used for agent observations.
// A Frame is a fixed-shape 2d array whose rows are the batch dimension and whose
// columns are the channel dimension. The gonum backing is an implementation
// detail: callers depend on the Frame API only, so the rest of the codebase
// carries no direct dependency on any particular numeric runtime.
package frames

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ErrShapeMismatch indicates frames of incompatible dimensions were combined.
// Continuing with malformed observations is unsafe, so these errors are
// propagated to the caller rather than recovered.
var ErrShapeMismatch = errors.New("frame shape mismatch")

// Frame is an immutable rows x cols array of float64 values.
// Immutability is by convention: no method mutates the backing data after
// construction, which makes it safe to share frames between a live frame
// window and previously emitted states.
type Frame struct {
	m *mat.Dense
}

// New returns a Frame of the given shape. The data slice is copied, so the
// caller may reuse it; pass nil for a zero frame. Data must be in row-major
// order and of length rows*cols.
func New(rows, cols int, data []float64) (*Frame, error) {
	if rows < 1 || cols < 1 {
		return nil, fmt.Errorf("%w: non-positive dimensions %dx%d", ErrShapeMismatch, rows, cols)
	}
	if data != nil && len(data) != rows*cols {
		return nil, fmt.Errorf("%w: %d values for a %dx%d frame", ErrShapeMismatch, len(data), rows, cols)
	}

	var backing []float64
	if data != nil {
		backing = make([]float64, len(data))
		copy(backing, data)
	}
	return &Frame{m: mat.NewDense(rows, cols, backing)}, nil
}

// MustNew is New for compile-time-known shapes, e.g. fixed observation vectors.
func MustNew(rows, cols int, data []float64) *Frame {
	f, err := New(rows, cols, data)
	if err != nil {
		panic(err)
	}
	return f
}

// Rows returns the batch dimension size.
func (f *Frame) Rows() int {
	r, _ := f.m.Dims()
	return r
}

// Cols returns the channel dimension size.
func (f *Frame) Cols() int {
	_, c := f.m.Dims()
	return c
}

// At returns the value at row i, column j.
func (f *Frame) At(i, j int) float64 {
	return f.m.At(i, j)
}

// Row returns a copy of row i.
func (f *Frame) Row(i int) []float64 {
	out := make([]float64, f.Cols())
	mat.Row(out, i, f.m)
	return out
}

// Data returns a row-major copy of the frame's values.
func (f *Frame) Data() []float64 {
	raw := f.m.RawMatrix()
	out := make([]float64, len(raw.Data))
	copy(out, raw.Data)
	return out
}

// Clone returns an independent copy.
func (f *Frame) Clone() *Frame {
	return &Frame{m: mat.DenseCopyOf(f.m)}
}

// Equal reports element-for-element equality of two frames.
func (f *Frame) Equal(other *Frame) bool {
	if other == nil {
		return false
	}
	return mat.Equal(f.m, other.m)
}

// ConcatChannels concatenates frames along the channel axis: the result has
// the common row count and the summed column count, with the frames laid out
// left to right in argument order. All frames must share the same row count,
// otherwise ErrShapeMismatch is returned.
func ConcatChannels(fs ...*Frame) (*Frame, error) {
	if len(fs) == 0 {
		return nil, errors.New("no frames to concatenate")
	}

	rows := fs[0].Rows()
	total := 0
	for i, f := range fs {
		if f.Rows() != rows {
			return nil, fmt.Errorf("%w: frame %d has %d rows, want %d", ErrShapeMismatch, i, f.Rows(), rows)
		}
		total += f.Cols()
	}

	out := mat.NewDense(rows, total, nil)
	col := 0
	for _, f := range fs {
		out.Slice(0, rows, col, col+f.Cols()).(*mat.Dense).Copy(f.m)
		col += f.Cols()
	}
	return &Frame{m: out}, nil
}
