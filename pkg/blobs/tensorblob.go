package blobs

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/justinsb/tensordag/pkg/tensor"
)

// EncodeTensor returns the elements of t as a raw little-endian array.
// Shape and dtype are not part of the payload.
func EncodeTensor(t *tensor.Tensor) []byte {
	switch t.DType() {
	case tensor.Float64:
		values := t.Float64s()
		out := make([]byte, 0, len(values)*8)
		for _, v := range values {
			out = binary.LittleEndian.AppendUint64(out, math.Float64bits(v))
		}
		return out
	default:
		values := t.Float32s()
		out := make([]byte, 0, len(values)*4)
		for _, v := range values {
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))
		}
		return out
	}
}

// DecodeTensor is the inverse of EncodeTensor.
func DecodeTensor(data []byte, shape tensor.Shape, dtype tensor.DType) (*tensor.Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	n := shape.NumElements()
	if want := n * dtype.Size(); len(data) != want {
		return nil, fmt.Errorf("blob has %d bytes, %s%v needs %d", len(data), dtype, shape, want)
	}

	switch dtype {
	case tensor.Float32:
		values := make([]float32, n)
		for i := range values {
			values[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
		}
		return tensor.FromFloat32(shape, values)
	case tensor.Float64:
		values := make([]float64, n)
		for i := range values {
			values[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
		}
		return tensor.FromFloat64(shape, values)
	default:
		return nil, fmt.Errorf("unsupported dtype %v", dtype)
	}
}
