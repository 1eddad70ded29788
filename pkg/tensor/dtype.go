package tensor

import "fmt"

// DType identifies the element type of a tensor.
type DType int

const (
	Float32 DType = iota
	Float64
)

// Size returns the byte size of one element.
func (d DType) Size() int {
	switch d {
	case Float32:
		return 4
	case Float64:
		return 8
	default:
		panic(fmt.Sprintf("unknown dtype %d", int(d)))
	}
}

func (d DType) String() string {
	switch d {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	default:
		return fmt.Sprintf("DType(%d)", int(d))
	}
}

// ParseDType is the inverse of DType.String. An empty name means float32.
func ParseDType(name string) (DType, error) {
	switch name {
	case "", "float32":
		return Float32, nil
	case "float64":
		return Float64, nil
	default:
		return 0, fmt.Errorf("unknown dtype %q", name)
	}
}

type float interface {
	~float32 | ~float64
}
