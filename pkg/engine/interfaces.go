package engine

import "github.com/justinsb/tensordag/pkg/tensor"

// Kind is the computation an Op performs.
//
// Implementations must be pure: Compute may be called concurrently for
// different Ops and must not retain or modify its inputs.
type Kind interface {
	Name() string

	// Arity is the number of inputs the kind accepts, or -1 for any number.
	Arity() int

	NumOutputs() int

	// Validate rejects operand shapes the kind cannot combine, typically
	// with a *tensor.ShapeMismatchError.
	Validate(inputs []tensor.Shape) error

	Compute(inputs []*tensor.Tensor) ([]*tensor.Tensor, error)
}
