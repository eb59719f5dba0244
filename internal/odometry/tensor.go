package odometry

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Tensor is a dense rows x cols x channels array of float64 values stored
// row-major with the channel index varying fastest, matching the HWC layout
// produced by common image decoders.
type Tensor struct {
	Rows     int
	Cols     int
	Channels int
	Data     []float64
}

// NewTensor allocates a zeroed tensor.
func NewTensor(rows, cols, channels int) Tensor {
	return Tensor{
		Rows:     rows,
		Cols:     cols,
		Channels: channels,
		Data:     make([]float64, rows*cols*channels),
	}
}

// TensorFromData wraps data without copying. The slice length must match the
// shape exactly.
func TensorFromData(rows, cols, channels int, data []float64) (Tensor, error) {
	if rows <= 0 || cols <= 0 || channels <= 0 {
		return Tensor{}, fmt.Errorf("%w: tensor dimensions must be positive, got %dx%dx%d",
			ErrShapeMismatch, rows, cols, channels)
	}
	if want := rows * cols * channels; len(data) != want {
		return Tensor{}, fmt.Errorf("%w: %dx%dx%d tensor needs %d values, got %d",
			ErrShapeMismatch, rows, cols, channels, want, len(data))
	}
	return Tensor{Rows: rows, Cols: cols, Channels: channels, Data: data}, nil
}

func (t Tensor) index(r, c, ch int) int {
	return (r*t.Cols+c)*t.Channels + ch
}

// At returns the value at row r, column c, channel ch.
func (t Tensor) At(r, c, ch int) float64 {
	return t.Data[t.index(r, c, ch)]
}

// Set stores v at row r, column c, channel ch.
func (t Tensor) Set(r, c, ch int, v float64) {
	t.Data[t.index(r, c, ch)] = v
}

// SameShape reports whether t and o have identical dimensions.
func (t Tensor) SameShape(o Tensor) bool {
	return t.Rows == o.Rows && t.Cols == o.Cols && t.Channels == o.Channels
}

// ShapeString formats the dimensions for error messages.
func (t Tensor) ShapeString() string {
	return fmt.Sprintf("%dx%dx%d", t.Rows, t.Cols, t.Channels)
}

// Normalize scales the tensor by its maximum value and then removes the mean,
// in place. An all-zero tensor is left untouched.
func (t Tensor) Normalize() {
	if len(t.Data) == 0 {
		return
	}
	if peak := floats.Max(t.Data); peak != 0 {
		floats.Scale(1/peak, t.Data)
	}
	floats.AddConst(-stat.Mean(t.Data, nil), t.Data)
}

// Pool average-pools every channel onto a gridRows x gridCols grid and
// returns the result flattened in the tensor's own layout. Grid cells take
// the pixels whose scaled coordinates fall inside them, so the grid must not
// be larger than the tensor.
func (t Tensor) Pool(gridRows, gridCols int) ([]float64, error) {
	if gridRows <= 0 || gridCols <= 0 || gridRows > t.Rows || gridCols > t.Cols {
		return nil, fmt.Errorf("%w: cannot pool %s onto %dx%d grid",
			ErrShapeMismatch, t.ShapeString(), gridRows, gridCols)
	}
	out := make([]float64, gridRows*gridCols*t.Channels)
	counts := make([]float64, gridRows*gridCols)
	for r := 0; r < t.Rows; r++ {
		gr := r * gridRows / t.Rows
		for c := 0; c < t.Cols; c++ {
			gc := c * gridCols / t.Cols
			cell := gr*gridCols + gc
			counts[cell]++
			src := t.Data[t.index(r, c, 0) : t.index(r, c, 0)+t.Channels]
			floats.Add(out[cell*t.Channels:(cell+1)*t.Channels], src)
		}
	}
	for cell, n := range counts {
		floats.Scale(1/n, out[cell*t.Channels:(cell+1)*t.Channels])
	}
	return out, nil
}
