package tensor

import (
	"fmt"
	"strings"
)

// Shape is the ordered list of dimensions of a tensor.
type Shape []int

// NumElements returns the number of elements a tensor of this shape holds.
// A scalar (empty shape) holds one element.
func (s Shape) NumElements() int {
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate checks that no dimension is negative.
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim < 0 {
			return fmt.Errorf("invalid dimension at index %d: %d", i, dim)
		}
	}
	return nil
}

func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

func (s Shape) Clone() Shape {
	if s == nil {
		return nil
	}
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// Strides returns row-major strides, in elements.
func (s Shape) Strides() []int {
	strides := make([]int, len(s))
	stride := 1
	for i := len(s) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= s[i]
	}
	return strides
}

func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, dim := range s {
		parts[i] = fmt.Sprintf("%d", dim)
	}
	return "(" + strings.Join(parts, ",") + ")"
}

// BroadcastShapes returns the NumPy-style broadcast of a and b.
// Dimensions are aligned from the right; a pair is compatible when equal
// or when one of them is 1. Missing leading dimensions count as 1.
func BroadcastShapes(a, b Shape) (Shape, bool) {
	n := max(len(a), len(b))
	result := make(Shape, n)
	for i := 0; i < n; i++ {
		aDim, bDim := 1, 1
		if j := len(a) - 1 - i; j >= 0 {
			aDim = a[j]
		}
		if j := len(b) - 1 - i; j >= 0 {
			bDim = b[j]
		}
		switch {
		case aDim == bDim:
			result[n-1-i] = aDim
		case aDim == 1:
			result[n-1-i] = bDim
		case bDim == 1:
			result[n-1-i] = aDim
		default:
			return nil, false
		}
	}
	return result, true
}
