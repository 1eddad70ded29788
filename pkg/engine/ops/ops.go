// Package ops is the CPU compute library of op kinds for the engine.
package ops

import (
	"github.com/justinsb/tensordag/pkg/engine"
	"github.com/justinsb/tensordag/pkg/tensor"
)

var (
	_ engine.Kind = Identity{}
	_ engine.Kind = Slice{}
	_ engine.Kind = Add{}
	_ engine.Kind = Subtract{}
	_ engine.Kind = Multiply{}
	_ engine.Kind = Square{}
	_ engine.Kind = MatMul{}
	_ engine.Kind = Scale{}
	_ engine.Kind = RMSNorm{}
	_ engine.Kind = Split{}
)

func single(t *tensor.Tensor, err error) ([]*tensor.Tensor, error) {
	if err != nil {
		return nil, err
	}
	return []*tensor.Tensor{t}, nil
}

// Identity passes its input through unchanged.
type Identity struct{}

func (Identity) Name() string                        { return "identity" }
func (Identity) Arity() int                          { return 1 }
func (Identity) NumOutputs() int                     { return 1 }
func (Identity) Validate(inputs []tensor.Shape) error { return nil }

func (Identity) Compute(inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	return []*tensor.Tensor{inputs[0]}, nil
}

// Slice keeps the half-open range [Start, End) along Axis.
type Slice struct {
	Axis  int
	Start int
	End   int
}

func (Slice) Name() string    { return "slice" }
func (Slice) Arity() int      { return 1 }
func (Slice) NumOutputs() int { return 1 }

func (k Slice) Validate(inputs []tensor.Shape) error {
	_, err := tensor.CheckSlice(inputs[0], k.Axis, k.Start, k.End)
	return err
}

func (k Slice) Compute(inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	return single(tensor.Slice(inputs[0], k.Axis, k.Start, k.End))
}

// Add is element-wise addition with broadcasting.
type Add struct{}

func (Add) Name() string    { return "add" }
func (Add) Arity() int      { return 2 }
func (Add) NumOutputs() int { return 1 }

func (Add) Validate(inputs []tensor.Shape) error {
	_, err := tensor.CheckBroadcast("add", inputs[0], inputs[1])
	return err
}

func (Add) Compute(inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	return single(tensor.Add(inputs[0], inputs[1]))
}

// Subtract is element-wise subtraction, first input minus second, with
// broadcasting.
type Subtract struct{}

func (Subtract) Name() string    { return "subtract" }
func (Subtract) Arity() int      { return 2 }
func (Subtract) NumOutputs() int { return 1 }

func (Subtract) Validate(inputs []tensor.Shape) error {
	_, err := tensor.CheckBroadcast("subtract", inputs[0], inputs[1])
	return err
}

func (Subtract) Compute(inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	return single(tensor.Sub(inputs[0], inputs[1]))
}

// Multiply is element-wise multiplication with broadcasting.
type Multiply struct{}

func (Multiply) Name() string    { return "multiply" }
func (Multiply) Arity() int      { return 2 }
func (Multiply) NumOutputs() int { return 1 }

func (Multiply) Validate(inputs []tensor.Shape) error {
	_, err := tensor.CheckBroadcast("multiply", inputs[0], inputs[1])
	return err
}

func (Multiply) Compute(inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	return single(tensor.Mul(inputs[0], inputs[1]))
}

// Square multiplies its input with itself.
type Square struct{}

func (Square) Name() string                        { return "square" }
func (Square) Arity() int                          { return 1 }
func (Square) NumOutputs() int                     { return 1 }
func (Square) Validate(inputs []tensor.Shape) error { return nil }

func (Square) Compute(inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	return []*tensor.Tensor{tensor.Square(inputs[0])}, nil
}

// MatMul is the product of two rank-2 tensors.
type MatMul struct{}

func (MatMul) Name() string    { return "matmul" }
func (MatMul) Arity() int      { return 2 }
func (MatMul) NumOutputs() int { return 1 }

func (MatMul) Validate(inputs []tensor.Shape) error {
	_, err := tensor.CheckMatMul(inputs[0], inputs[1])
	return err
}

func (MatMul) Compute(inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	return single(tensor.MatMul(inputs[0], inputs[1]))
}

// Scale multiplies every element by Factor.
type Scale struct {
	Factor float64
}

func (Scale) Name() string                        { return "scale" }
func (Scale) Arity() int                          { return 1 }
func (Scale) NumOutputs() int                     { return 1 }
func (Scale) Validate(inputs []tensor.Shape) error { return nil }

func (k Scale) Compute(inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	return []*tensor.Tensor{tensor.Scale(inputs[0], k.Factor)}, nil
}

// DefaultRMSNormEpsilon is used when RMSNorm.Epsilon is zero.
const DefaultRMSNormEpsilon = 1e-5

// RMSNorm normalizes by the root mean square of the last axis.
type RMSNorm struct {
	Epsilon float64
}

func (RMSNorm) Name() string    { return "rmsnorm" }
func (RMSNorm) Arity() int      { return 1 }
func (RMSNorm) NumOutputs() int { return 1 }

func (RMSNorm) Validate(inputs []tensor.Shape) error {
	if len(inputs[0]) == 0 {
		return &tensor.ShapeMismatchError{Op: "rmsnorm", Shapes: inputs, Reason: "operand must have at least one dimension"}
	}
	return nil
}

func (k RMSNorm) Compute(inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	epsilon := DefaultRMSNormEpsilon
	if k.Epsilon != 0 {
		epsilon = k.Epsilon
	}
	return single(tensor.RMSNorm(inputs[0], epsilon))
}

// Split cuts its input into Parts equal pieces along Axis; output i is
// piece i.
type Split struct {
	Axis  int
	Parts int
}

func (Split) Name() string      { return "split" }
func (Split) Arity() int        { return 1 }
func (k Split) NumOutputs() int { return k.Parts }

func (k Split) Validate(inputs []tensor.Shape) error {
	_, err := tensor.CheckSplit(inputs[0], k.Axis, k.Parts)
	return err
}

func (k Split) Compute(inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	return tensor.Split(inputs[0], k.Axis, k.Parts)
}
