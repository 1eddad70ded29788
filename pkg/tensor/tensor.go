// Package tensor holds the immutable n-dimensional arrays flowing through
// a computation graph, and the numeric kernels that produce them.
package tensor

import (
	"fmt"
	"math"
	"strings"
)

// Tensor is an immutable n-dimensional array.
//
// Exactly one of f32/f64 is populated, matching dtype. Nothing mutates the
// backing slice after construction; accessors hand out copies.
type Tensor struct {
	shape Shape
	dtype DType
	f32   []float32
	f64   []float64
}

// FromFloat32 creates a float32 tensor, copying values.
func FromFloat32(shape Shape, values []float32) (*Tensor, error) {
	if err := checkLength(shape, len(values)); err != nil {
		return nil, err
	}
	data := make([]float32, len(values))
	copy(data, values)
	return &Tensor{shape: shape.Clone(), dtype: Float32, f32: data}, nil
}

// FromFloat64 creates a float64 tensor, copying values.
func FromFloat64(shape Shape, values []float64) (*Tensor, error) {
	if err := checkLength(shape, len(values)); err != nil {
		return nil, err
	}
	data := make([]float64, len(values))
	copy(data, values)
	return &Tensor{shape: shape.Clone(), dtype: Float64, f64: data}, nil
}

// FromValues creates a tensor of the given dtype from float64 values,
// converting element-wise.
func FromValues(shape Shape, dtype DType, values []float64) (*Tensor, error) {
	switch dtype {
	case Float32:
		if err := checkLength(shape, len(values)); err != nil {
			return nil, err
		}
		data := make([]float32, len(values))
		for i, v := range values {
			data[i] = float32(v)
		}
		return &Tensor{shape: shape.Clone(), dtype: Float32, f32: data}, nil
	case Float64:
		return FromFloat64(shape, values)
	default:
		return nil, fmt.Errorf("unsupported dtype %v", dtype)
	}
}

// Vector is shorthand for a rank-1 float32 tensor.
func Vector(values ...float32) *Tensor {
	t, err := FromFloat32(Shape{len(values)}, values)
	if err != nil {
		panic(err)
	}
	return t
}

// Zeros returns a zero-filled tensor.
func Zeros(shape Shape, dtype DType) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	n := shape.NumElements()
	switch dtype {
	case Float32:
		return &Tensor{shape: shape.Clone(), dtype: dtype, f32: make([]float32, n)}, nil
	case Float64:
		return &Tensor{shape: shape.Clone(), dtype: dtype, f64: make([]float64, n)}, nil
	default:
		return nil, fmt.Errorf("unsupported dtype %v", dtype)
	}
}

func checkLength(shape Shape, n int) error {
	if err := shape.Validate(); err != nil {
		return err
	}
	if shape.NumElements() != n {
		return fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), n)
	}
	return nil
}

// Shape returns a copy of the tensor's shape.
func (t *Tensor) Shape() Shape {
	return t.shape.Clone()
}

func (t *Tensor) DType() DType {
	return t.dtype
}

func (t *Tensor) Rank() int {
	return len(t.shape)
}

func (t *Tensor) NumElements() int {
	return t.shape.NumElements()
}

// Float32s returns a copy of the elements converted to float32.
func (t *Tensor) Float32s() []float32 {
	out := make([]float32, t.NumElements())
	if t.dtype == Float32 {
		copy(out, t.f32)
		return out
	}
	for i, v := range t.f64 {
		out[i] = float32(v)
	}
	return out
}

// Float64s returns a copy of the elements converted to float64.
func (t *Tensor) Float64s() []float64 {
	out := make([]float64, t.NumElements())
	if t.dtype == Float64 {
		copy(out, t.f64)
		return out
	}
	for i, v := range t.f32 {
		out[i] = float64(v)
	}
	return out
}

// At returns the element at the given indices as float64.
func (t *Tensor) At(indices ...int) (float64, error) {
	if len(indices) != len(t.shape) {
		return 0, fmt.Errorf("expected %d indices, got %d", len(t.shape), len(indices))
	}
	offset := 0
	strides := t.shape.Strides()
	for i, idx := range indices {
		if idx < 0 || idx >= t.shape[i] {
			return 0, fmt.Errorf("index %d out of bounds for dimension %d (size %d)", idx, i, t.shape[i])
		}
		offset += idx * strides[i]
	}
	if t.dtype == Float32 {
		return float64(t.f32[offset]), nil
	}
	return t.f64[offset], nil
}

// Identical reports whether both tensors have the same dtype, shape and
// bit-identical elements. NaNs with equal payloads compare identical.
func (t *Tensor) Identical(other *Tensor) bool {
	if t.dtype != other.dtype || !t.shape.Equal(other.shape) {
		return false
	}
	if t.dtype == Float32 {
		for i, v := range t.f32 {
			if math.Float32bits(v) != math.Float32bits(other.f32[i]) {
				return false
			}
		}
		return true
	}
	for i, v := range t.f64 {
		if math.Float64bits(v) != math.Float64bits(other.f64[i]) {
			return false
		}
	}
	return true
}

func (t *Tensor) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s%v[", t.dtype, t.shape)
	const limit = 8
	for i, v := range t.Float64s() {
		if i == limit {
			sb.WriteString(" ...")
			break
		}
		if i > 0 {
			sb.WriteString(" ")
		}
		fmt.Fprintf(&sb, "%g", v)
	}
	sb.WriteString("]")
	return sb.String()
}
