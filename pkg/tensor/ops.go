package tensor

import (
	"fmt"
	"math"
)

// CheckBroadcast returns the result shape of an element-wise op on a and b.
func CheckBroadcast(op string, a, b Shape) (Shape, error) {
	out, ok := BroadcastShapes(a, b)
	if !ok {
		return nil, shapeMismatch(op, "dimensions are not broadcastable", a, b)
	}
	return out, nil
}

// CheckMatMul returns the result shape of a rank-2 matrix product.
func CheckMatMul(a, b Shape) (Shape, error) {
	if len(a) != 2 || len(b) != 2 {
		return nil, shapeMismatch("matmul", "operands must be rank 2", a, b)
	}
	if a[1] != b[0] {
		return nil, shapeMismatch("matmul", fmt.Sprintf("inner dimensions differ (%d != %d)", a[1], b[0]), a, b)
	}
	return Shape{a[0], b[1]}, nil
}

// CheckSlice returns the shape of s restricted to [start, end) along axis.
func CheckSlice(s Shape, axis, start, end int) (Shape, error) {
	if axis < 0 || axis >= len(s) {
		return nil, shapeMismatch("slice", fmt.Sprintf("axis %d out of range", axis), s)
	}
	if start < 0 || end < start || end > s[axis] {
		return nil, shapeMismatch("slice", fmt.Sprintf("range [%d:%d) out of bounds for dimension %d", start, end, s[axis]), s)
	}
	out := s.Clone()
	out[axis] = end - start
	return out, nil
}

// CheckSplit returns the shape of each of the equal parts of s along axis.
func CheckSplit(s Shape, axis, parts int) (Shape, error) {
	if axis < 0 || axis >= len(s) {
		return nil, shapeMismatch("split", fmt.Sprintf("axis %d out of range", axis), s)
	}
	if parts <= 0 || s[axis]%parts != 0 {
		return nil, shapeMismatch("split", fmt.Sprintf("dimension %d not divisible into %d parts", s[axis], parts), s)
	}
	out := s.Clone()
	out[axis] = s[axis] / parts
	return out, nil
}

// Add returns a + b with broadcasting.
func Add(a, b *Tensor) (*Tensor, error) {
	return elementwise("add", a, b, add[float32], add[float64])
}

// Sub returns a - b with broadcasting.
func Sub(a, b *Tensor) (*Tensor, error) {
	return elementwise("subtract", a, b, sub[float32], sub[float64])
}

// Mul returns the element-wise product a * b with broadcasting.
func Mul(a, b *Tensor) (*Tensor, error) {
	return elementwise("multiply", a, b, mul[float32], mul[float64])
}

func add[T float](x, y T) T { return x + y }
func sub[T float](x, y T) T { return x - y }
func mul[T float](x, y T) T { return x * y }

func elementwise(op string, a, b *Tensor, f32 func(x, y float32) float32, f64 func(x, y float64) float64) (*Tensor, error) {
	if a.dtype != b.dtype {
		return nil, dtypeMismatch(op, a.dtype, b.dtype)
	}
	out, err := CheckBroadcast(op, a.shape, b.shape)
	if err != nil {
		return nil, err
	}
	result := &Tensor{shape: out, dtype: a.dtype}
	if a.dtype == Float32 {
		result.f32 = broadcastKernel(a.f32, b.f32, a.shape, b.shape, out, f32)
	} else {
		result.f64 = broadcastKernel(a.f64, b.f64, a.shape, b.shape, out, f64)
	}
	return result, nil
}

// broadcastStrides maps s onto the rank of out, with stride 0 on
// broadcast dimensions.
func broadcastStrides(s, out Shape) []int {
	strides := make([]int, len(out))
	own := s.Strides()
	offset := len(out) - len(s)
	for i := range s {
		if s[i] != 1 {
			strides[offset+i] = own[i]
		}
	}
	return strides
}

func broadcastKernel[T float](a, b []T, aShape, bShape, out Shape, f func(x, y T) T) []T {
	n := out.NumElements()
	result := make([]T, n)
	if aShape.Equal(bShape) {
		for i := range result {
			result[i] = f(a[i], b[i])
		}
		return result
	}

	aStrides := broadcastStrides(aShape, out)
	bStrides := broadcastStrides(bShape, out)
	index := make([]int, len(out))
	for i := 0; i < n; i++ {
		aOffset, bOffset := 0, 0
		for d, idx := range index {
			aOffset += idx * aStrides[d]
			bOffset += idx * bStrides[d]
		}
		result[i] = f(a[aOffset], b[bOffset])

		for d := len(out) - 1; d >= 0; d-- {
			index[d]++
			if index[d] < out[d] {
				break
			}
			index[d] = 0
		}
	}
	return result
}

// MatMul returns the matrix product of two rank-2 tensors.
func MatMul(a, b *Tensor) (*Tensor, error) {
	if a.dtype != b.dtype {
		return nil, dtypeMismatch("matmul", a.dtype, b.dtype)
	}
	out, err := CheckMatMul(a.shape, b.shape)
	if err != nil {
		return nil, err
	}
	m, k, n := a.shape[0], a.shape[1], b.shape[1]
	result := &Tensor{shape: out, dtype: a.dtype}
	if a.dtype == Float32 {
		result.f32 = matmulKernel(a.f32, b.f32, m, k, n)
	} else {
		result.f64 = matmulKernel(a.f64, b.f64, m, k, n)
	}
	return result, nil
}

func matmulKernel[T float](a, b []T, m, k, n int) []T {
	out := make([]T, m*n)
	for i := 0; i < m; i++ {
		row := out[i*n : (i+1)*n]
		for p := 0; p < k; p++ {
			av := a[i*k+p]
			bRow := b[p*n : (p+1)*n]
			for j := range row {
				row[j] += av * bRow[j]
			}
		}
	}
	return out
}

// Slice returns the half-open range [start, end) of t along axis.
func Slice(t *Tensor, axis, start, end int) (*Tensor, error) {
	out, err := CheckSlice(t.shape, axis, start, end)
	if err != nil {
		return nil, err
	}
	result := &Tensor{shape: out, dtype: t.dtype}
	if t.dtype == Float32 {
		result.f32 = sliceKernel(t.f32, t.shape, axis, start, end)
	} else {
		result.f64 = sliceKernel(t.f64, t.shape, axis, start, end)
	}
	return result, nil
}

func sliceKernel[T float](data []T, shape Shape, axis, start, end int) []T {
	outer := shape[:axis].NumElements()
	inner := shape[axis+1:].NumElements()
	dim := shape[axis]
	width := (end - start) * inner

	out := make([]T, 0, outer*width)
	for o := 0; o < outer; o++ {
		base := o*dim*inner + start*inner
		out = append(out, data[base:base+width]...)
	}
	return out
}

// Split cuts t into parts equal pieces along axis.
func Split(t *Tensor, axis, parts int) ([]*Tensor, error) {
	part, err := CheckSplit(t.shape, axis, parts)
	if err != nil {
		return nil, err
	}
	size := part[axis]
	out := make([]*Tensor, parts)
	for i := range out {
		piece, err := Slice(t, axis, i*size, (i+1)*size)
		if err != nil {
			return nil, err
		}
		out[i] = piece
	}
	return out, nil
}

// Scale multiplies every element by factor.
func Scale(t *Tensor, factor float64) *Tensor {
	result := &Tensor{shape: t.shape.Clone(), dtype: t.dtype}
	if t.dtype == Float32 {
		result.f32 = scaleKernel(t.f32, float32(factor))
	} else {
		result.f64 = scaleKernel(t.f64, factor)
	}
	return result
}

// Square returns t * t, element-wise.
func Square(t *Tensor) *Tensor {
	result := &Tensor{shape: t.shape.Clone(), dtype: t.dtype}
	if t.dtype == Float32 {
		result.f32 = squareKernel(t.f32)
	} else {
		result.f64 = squareKernel(t.f64)
	}
	return result
}

func squareKernel[T float](data []T) []T {
	out := make([]T, len(data))
	for i, v := range data {
		out[i] = v * v
	}
	return out
}

func scaleKernel[T float](data []T, factor T) []T {
	out := make([]T, len(data))
	for i, v := range data {
		out[i] = v * factor
	}
	return out
}

// RMSNorm normalizes t by the root mean square of its last axis.
func RMSNorm(t *Tensor, epsilon float64) (*Tensor, error) {
	if len(t.shape) == 0 {
		return nil, shapeMismatch("rmsnorm", "operand must have at least one dimension", t.shape)
	}
	width := t.shape[len(t.shape)-1]
	result := &Tensor{shape: t.shape.Clone(), dtype: t.dtype}
	if t.dtype == Float32 {
		result.f32 = rmsNormKernel(t.f32, width, epsilon)
	} else {
		result.f64 = rmsNormKernel(t.f64, width, epsilon)
	}
	return result, nil
}

func rmsNormKernel[T float](data []T, width int, epsilon float64) []T {
	out := make([]T, len(data))
	if width == 0 {
		return out
	}
	for start := 0; start < len(data); start += width {
		row := data[start : start+width]
		var sumSquares T
		for _, v := range row {
			sumSquares += v * v
		}
		mean := sumSquares / T(width)
		rms := T(1.0 / math.Sqrt(float64(mean)+epsilon))
		for i, v := range row {
			out[start+i] = v * rms
		}
	}
	return out
}
