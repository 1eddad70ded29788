package calcserver

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/justinsb/tensordag/pkg/engine/ops"
)

// CalculateRequest describes a graph, the tensor dict it reads from, and
// the op outputs to return.
type CalculateRequest struct {
	Inputs  []NamedTensor `json:"inputs,omitempty"`
	Ops     []OpSpec      `json:"ops"`
	Outputs []OutputRef   `json:"outputs"`
}

type CalculateResponse struct {
	Results []NamedTensor `json:"results"`
}

// NamedTensor carries a tensor either inline, in Values, or by reference
// to a blob holding its raw little-endian elements.
type NamedTensor struct {
	Name   string    `json:"name"`
	Shape  []int     `json:"shape"`
	DType  string    `json:"dtype,omitempty"`
	Values Values    `json:"values,omitempty"`

	BlobHash string `json:"blobHash,omitempty"`
}

// OpSpec is one op of the graph. Ops are added in order, so an op can only
// reference ops listed before it.
type OpSpec struct {
	Kind   string     `json:"kind"`
	Inputs []InputRef `json:"inputs,omitempty"`

	ops.Attributes
}

// InputRef names a dict key, or (when Op is set) an output of an earlier op.
type InputRef struct {
	Key    string `json:"key,omitempty"`
	Op     *int   `json:"op,omitempty"`
	Output int    `json:"output,omitempty"`
}

type OutputRef struct {
	Op     int `json:"op"`
	Output int `json:"output,omitempty"`
}

func DictInput(key string) InputRef {
	return InputRef{Key: key}
}

func OpInput(op int, output int) InputRef {
	return InputRef{Op: &op, Output: output}
}

// Values holds tensor elements. JSON numbers cannot be NaN or infinite, so
// those are written as the strings "NaN", "Inf" and "-Inf".
type Values []float64

func (v Values) MarshalJSON() ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	b := make([]byte, 0, 2+8*len(v))
	b = append(b, '[')
	for i, x := range v {
		if i > 0 {
			b = append(b, ',')
		}
		switch {
		case math.IsNaN(x):
			b = append(b, `"NaN"`...)
		case math.IsInf(x, 1):
			b = append(b, `"Inf"`...)
		case math.IsInf(x, -1):
			b = append(b, `"-Inf"`...)
		default:
			b = strconv.AppendFloat(b, x, 'g', -1, 64)
		}
	}
	b = append(b, ']')
	return b, nil
}

func (v *Values) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*v = nil
		return nil
	}
	out := make(Values, len(raw))
	for i, r := range raw {
		if len(r) == 0 || r[0] != '"' {
			if err := json.Unmarshal(r, &out[i]); err != nil {
				return fmt.Errorf("value %d: %w", i, err)
			}
			continue
		}
		var s string
		if err := json.Unmarshal(r, &s); err != nil {
			return fmt.Errorf("value %d: %w", i, err)
		}
		switch s {
		case "NaN":
			out[i] = math.NaN()
		case "Inf", "+Inf":
			out[i] = math.Inf(1)
		case "-Inf":
			out[i] = math.Inf(-1)
		default:
			return fmt.Errorf("value %d: unexpected string %q", i, s)
		}
	}
	*v = out
	return nil
}
