package frames

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestNew(t *testing.T) {
	Convey("When frames are constructed", t, func() {
		Convey("When the shape is valid", func() {
			f, err := New(2, 3, []float64{1, 2, 3, 4, 5, 6})
			So(err, ShouldBeNil)
			So(f.Rows(), ShouldEqual, 2)
			So(f.Cols(), ShouldEqual, 3)
			So(f.At(1, 2), ShouldEqual, 6)
		})

		Convey("When the data length disagrees with the shape", func() {
			_, err := New(2, 2, []float64{1, 2, 3})
			So(errors.Is(err, ErrShapeMismatch), ShouldBeTrue)
		})

		Convey("When a dimension is non-positive", func() {
			_, err := New(0, 4, nil)
			So(errors.Is(err, ErrShapeMismatch), ShouldBeTrue)
		})

		Convey("When the input slice is mutated after construction", func() {
			data := []float64{1, 2}
			f, err := New(1, 2, data)
			So(err, ShouldBeNil)
			data[0] = 99
			So(f.At(0, 0), ShouldEqual, 1)
		})
	})
}

func TestConcatChannels(t *testing.T) {
	Convey("When frames are concatenated along the channel axis", t, func() {
		Convey("When shapes agree", func() {
			a := MustNew(2, 1, []float64{1, 2})
			b := MustNew(2, 2, []float64{3, 4, 5, 6})

			out, err := ConcatChannels(a, b)
			So(err, ShouldBeNil)
			So(out.Rows(), ShouldEqual, 2)
			So(out.Cols(), ShouldEqual, 3)
			So(out.Row(0), ShouldResemble, []float64{1, 3, 4})
			So(out.Row(1), ShouldResemble, []float64{2, 5, 6})
		})

		Convey("When row counts disagree", func() {
			a := MustNew(1, 2, []float64{1, 2})
			b := MustNew(2, 2, []float64{3, 4, 5, 6})

			_, err := ConcatChannels(a, b)
			So(errors.Is(err, ErrShapeMismatch), ShouldBeTrue)
		})

		Convey("When no frames are given", func() {
			_, err := ConcatChannels()
			So(err, ShouldNotBeNil)
		})

		Convey("When the inputs are reused, the output is independent", func() {
			a := MustNew(1, 1, []float64{7})
			out, err := ConcatChannels(a, a)
			So(err, ShouldBeNil)
			So(out.Row(0), ShouldResemble, []float64{7, 7})
		})
	})
}

func TestEqual(t *testing.T) {
	Convey("When frames are compared", t, func() {
		a := MustNew(1, 2, []float64{1, 2})
		b := MustNew(1, 2, []float64{1, 2})
		c := MustNew(1, 2, []float64{1, 3})

		So(a.Equal(b), ShouldBeTrue)
		So(a.Equal(c), ShouldBeFalse)
		So(a.Equal(nil), ShouldBeFalse)
		So(a.Equal(a.Clone()), ShouldBeTrue)
	})
}
