package engine

import (
	"errors"
	"maps"
	"slices"

	"github.com/justinsb/tensordag/pkg/tensor"
)

// TensorDict maps names to tensors and is the root data source of an
// evaluation. It must not be modified while an evaluation reads it.
type TensorDict struct {
	values map[string]*tensor.Tensor
}

func NewTensorDict() *TensorDict {
	return &TensorDict{values: make(map[string]*tensor.Tensor)}
}

// Insert stores t under key, replacing any previous value.
func (d *TensorDict) Insert(key string, t *tensor.Tensor) error {
	if key == "" {
		return errors.New("tensor dict key must not be empty")
	}
	if t == nil {
		return errors.New("tensor dict value must not be nil")
	}
	d.values[key] = t
	return nil
}

// Get returns the tensor stored under key. A nil dict holds no keys.
func (d *TensorDict) Get(key string) (*tensor.Tensor, error) {
	if d != nil {
		if t, ok := d.values[key]; ok {
			return t, nil
		}
	}
	return nil, &MissingKeyError{Key: key}
}

func (d *TensorDict) Len() int {
	if d == nil {
		return 0
	}
	return len(d.values)
}

// Keys returns the keys in sorted order.
func (d *TensorDict) Keys() []string {
	if d == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(d.values))
}
