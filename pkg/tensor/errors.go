package tensor

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrShapeMismatch is matched by every *ShapeMismatchError.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrDTypeMismatch is returned when operands of one operation have different dtypes.
	ErrDTypeMismatch = errors.New("dtype mismatch")
)

// ShapeMismatchError reports operand shapes an operation cannot combine.
type ShapeMismatchError struct {
	Op     string
	Shapes []Shape
	Reason string
}

func (e *ShapeMismatchError) Error() string {
	shapes := make([]string, len(e.Shapes))
	for i, s := range e.Shapes {
		shapes[i] = s.String()
	}
	msg := fmt.Sprintf("%s: shape mismatch %s", e.Op, strings.Join(shapes, " vs "))
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *ShapeMismatchError) Is(target error) bool {
	return target == ErrShapeMismatch
}

func shapeMismatch(op string, reason string, shapes ...Shape) error {
	cloned := make([]Shape, len(shapes))
	for i, s := range shapes {
		cloned[i] = s.Clone()
	}
	return &ShapeMismatchError{Op: op, Shapes: cloned, Reason: reason}
}

func dtypeMismatch(op string, a, b DType) error {
	return fmt.Errorf("%s: %s vs %s: %w", op, a, b, ErrDTypeMismatch)
}
