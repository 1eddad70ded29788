package engine

import (
	"fmt"
	"sync/atomic"

	"github.com/justinsb/tensordag/pkg/tensor"
)

// testKind is a minimal Kind for exercising the engine without the ops
// package. It counts how often Compute runs.
type testKind struct {
	name    string
	arity   int
	outputs int
	compute func(inputs []*tensor.Tensor) ([]*tensor.Tensor, error)

	calls atomic.Int64
}

func (k *testKind) Name() string    { return k.name }
func (k *testKind) Arity() int      { return k.arity }
func (k *testKind) NumOutputs() int { return k.outputs }

func (k *testKind) Validate(inputs []tensor.Shape) error {
	if k.name != "add" && k.name != "multiply" {
		return nil
	}
	_, err := tensor.CheckBroadcast(k.name, inputs[0], inputs[1])
	return err
}

func (k *testKind) Compute(inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	k.calls.Add(1)
	return k.compute(inputs)
}

func identityKind() *testKind {
	return &testKind{name: "identity", arity: 1, outputs: 1, compute: func(inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
		return inputs, nil
	}}
}

func addKind() *testKind {
	return &testKind{name: "add", arity: 2, outputs: 1, compute: func(inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
		out, err := tensor.Add(inputs[0], inputs[1])
		return []*tensor.Tensor{out}, err
	}}
}

func mulKind() *testKind {
	return &testKind{name: "multiply", arity: 2, outputs: 1, compute: func(inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
		out, err := tensor.Mul(inputs[0], inputs[1])
		return []*tensor.Tensor{out}, err
	}}
}

// splitKind halves a rank-1 tensor into two outputs.
func splitKind() *testKind {
	return &testKind{name: "split", arity: 1, outputs: 2, compute: func(inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
		return tensor.Split(inputs[0], 0, 2)
	}}
}

func brokenKind(outputs int) *testKind {
	return &testKind{name: "broken", arity: -1, outputs: 1, compute: func(inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
		if outputs < 0 {
			return nil, fmt.Errorf("compute failed")
		}
		return make([]*tensor.Tensor, outputs), nil
	}}
}
