package engine

import (
	"errors"
	"fmt"

	"github.com/justinsb/tensordag/pkg/tensor"
)

var (
	ErrInvalidReference = errors.New("invalid reference")
	ErrMissingKey       = errors.New("missing key")
	ErrShapeMismatch    = tensor.ErrShapeMismatch
	ErrDTypeMismatch    = tensor.ErrDTypeMismatch
	ErrInvalidArity     = errors.New("invalid arity")
	ErrInvalidKind      = errors.New("invalid kind")

	// ErrInternal marks a broken evaluation invariant, such as a dependency
	// missing from the cache. It indicates a defect, not bad input.
	ErrInternal = errors.New("internal invariant violation")
)

// InvalidReferenceError reports an Input or target that does not name an
// existing op output.
type InvalidReferenceError struct {
	Node   NodeIndex
	Output int
	Key    string
	Reason string
}

func (e *InvalidReferenceError) Error() string {
	if e.Key == "" && e.Node < 0 {
		return "invalid reference: " + e.Reason
	}
	if e.Key != "" || e.Node < 0 {
		return fmt.Sprintf("invalid reference to %q: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("invalid reference to op %d output %d: %s", e.Node, e.Output, e.Reason)
}

func (e *InvalidReferenceError) Is(target error) bool {
	return target == ErrInvalidReference
}

var errNilGraph = &InvalidReferenceError{Node: -1, Reason: "nil graph"}

type MissingKeyError struct {
	Key string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("key %q not found in tensor dict", e.Key)
}

func (e *MissingKeyError) Is(target error) bool {
	return target == ErrMissingKey
}

func internalError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInternal, fmt.Sprintf(format, args...))
}
