package tensor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustFloat32(t *testing.T, shape Shape, values ...float32) *Tensor {
	t.Helper()
	out, err := FromFloat32(shape, values)
	require.NoError(t, err)
	return out
}

func TestAdd_SameShape(t *testing.T) {
	a := mustFloat32(t, Shape{2, 3}, 1, 2, 3, 4, 5, 6)
	b := mustFloat32(t, Shape{2, 3}, 10, 20, 30, 40, 50, 60)

	out, err := Add(a, b)
	require.NoError(t, err)
	assert.Equal(t, Shape{2, 3}, out.Shape())
	assert.Equal(t, []float32{11, 22, 33, 44, 55, 66}, out.Float32s())
}

func TestAdd_IncompatibleShapes(t *testing.T) {
	a := mustFloat32(t, Shape{2, 3}, 1, 2, 3, 4, 5, 6)
	b := mustFloat32(t, Shape{3, 2}, 1, 2, 3, 4, 5, 6)

	_, err := Add(a, b)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShapeMismatch))

	var mismatch *ShapeMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, "add", mismatch.Op)
	assert.Equal(t, []Shape{{2, 3}, {3, 2}}, mismatch.Shapes)
	assert.Contains(t, err.Error(), "(2,3) vs (3,2)")
}

func TestAdd_Broadcast(t *testing.T) {
	a := mustFloat32(t, Shape{2, 3}, 1, 2, 3, 4, 5, 6)
	row := mustFloat32(t, Shape{3}, 100, 200, 300)
	col := mustFloat32(t, Shape{2, 1}, 10, 20)

	out, err := Add(a, row)
	require.NoError(t, err)
	assert.Equal(t, []float32{101, 202, 303, 104, 205, 306}, out.Float32s())

	out, err = Add(col, a)
	require.NoError(t, err)
	assert.Equal(t, Shape{2, 3}, out.Shape())
	assert.Equal(t, []float32{11, 12, 13, 24, 25, 26}, out.Float32s())
}

func TestMul(t *testing.T) {
	x := Vector(1, 2, 3)

	out, err := Mul(x, x)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 4, 9}, out.Float32s())

	scalar := mustFloat32(t, Shape{}, 2)
	out, err = Mul(x, scalar)
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 4, 6}, out.Float32s())
}

func TestElementwise_DTypeMismatch(t *testing.T) {
	a := Vector(1, 2)
	b, err := FromFloat64(Shape{2}, []float64{1, 2})
	require.NoError(t, err)

	_, err = Add(a, b)
	assert.ErrorIs(t, err, ErrDTypeMismatch)
}

func TestMatMul(t *testing.T) {
	a := mustFloat32(t, Shape{2, 3}, 1, 2, 3, 4, 5, 6)
	b := mustFloat32(t, Shape{3, 4},
		1, 0, 0, 1,
		0, 1, 0, 1,
		0, 0, 1, 1,
	)

	out, err := MatMul(a, b)
	require.NoError(t, err)
	assert.Equal(t, Shape{2, 4}, out.Shape())
	assert.Equal(t, []float32{1, 2, 3, 6, 4, 5, 6, 15}, out.Float32s())
}

func TestMatMul_ShapeMismatch(t *testing.T) {
	a, err := Zeros(Shape{2, 3}, Float32)
	require.NoError(t, err)
	b, err := Zeros(Shape{4, 5}, Float32)
	require.NoError(t, err)

	_, err = MatMul(a, b)
	require.ErrorIs(t, err, ErrShapeMismatch)
	assert.Contains(t, err.Error(), "(2,3) vs (4,5)")

	_, err = MatMul(Vector(1, 2, 3), b)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestMatMul_Float64(t *testing.T) {
	a, err := FromFloat64(Shape{1, 2}, []float64{0.5, 0.25})
	require.NoError(t, err)
	b, err := FromFloat64(Shape{2, 1}, []float64{2, 4})
	require.NoError(t, err)

	out, err := MatMul(a, b)
	require.NoError(t, err)
	assert.Equal(t, Float64, out.DType())
	assert.Equal(t, []float64{2}, out.Float64s())
}

func TestSlice(t *testing.T) {
	a := mustFloat32(t, Shape{2, 3}, 1, 2, 3, 4, 5, 6)

	out, err := Slice(a, 1, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, Shape{2, 2}, out.Shape())
	assert.Equal(t, []float32{2, 3, 5, 6}, out.Float32s())

	out, err = Slice(a, 0, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []float32{4, 5, 6}, out.Float32s())

	_, err = Slice(a, 1, 2, 4)
	assert.ErrorIs(t, err, ErrShapeMismatch)
	_, err = Slice(a, 2, 0, 1)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestSplit(t *testing.T) {
	a := mustFloat32(t, Shape{4, 2}, 1, 2, 3, 4, 5, 6, 7, 8)

	parts, err := Split(a, 0, 2)
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.Equal(t, []float32{1, 2, 3, 4}, parts[0].Float32s())
	assert.Equal(t, []float32{5, 6, 7, 8}, parts[1].Float32s())

	_, err = Split(a, 0, 3)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestSub_Broadcast(t *testing.T) {
	a := mustFloat32(t, Shape{2, 2}, 5, 6, 7, 8)
	row := mustFloat32(t, Shape{2}, 1, 2)

	out, err := Sub(a, row)
	require.NoError(t, err)
	assert.Equal(t, Shape{2, 2}, out.Shape())
	assert.Equal(t, []float32{4, 4, 6, 6}, out.Float32s())

	out, err = Sub(row, a)
	require.NoError(t, err)
	assert.Equal(t, []float32{-4, -4, -6, -6}, out.Float32s())

	_, err = Sub(a, Vector(1, 2, 3))
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestSquare(t *testing.T) {
	out := Square(Vector(-2, 0, 3))
	assert.Equal(t, Shape{3}, out.Shape())
	assert.Equal(t, []float32{4, 0, 9}, out.Float32s())

	wide, err := FromFloat64(Shape{1, 2}, []float64{0.5, -4})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25, 16}, Square(wide).Float64s())
}

func TestScale(t *testing.T) {
	out := Scale(Vector(1, 2, 3), 2)
	assert.Equal(t, []float32{2, 4, 6}, out.Float32s())
}

func TestRMSNorm(t *testing.T) {
	out, err := RMSNorm(Vector(1, 2, 3), 1e-5)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0.46290955, 0.9258191, 1.3887286}, out.Float32s(), 1e-5)

	rows := mustFloat32(t, Shape{2, 3}, 1, 2, 3, 1, 2, 3)
	out, err = RMSNorm(rows, 1e-5)
	require.NoError(t, err)
	values := out.Float32s()
	assert.InDeltaSlice(t, values[:3], values[3:], 0)

	_, err = RMSNorm(mustFloat32(t, Shape{}, 1), 1e-5)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}
