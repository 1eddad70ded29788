package ops

import (
	"fmt"
	"maps"
	"slices"

	"github.com/justinsb/tensordag/pkg/engine"
)

// Attributes parameterize the kinds that need configuration. Fields a
// kind does not use are ignored.
type Attributes struct {
	Axis    int     `json:"axis,omitempty"`
	Start   int     `json:"start,omitempty"`
	End     int     `json:"end,omitempty"`
	Parts   int     `json:"parts,omitempty"`
	Factor  float64 `json:"factor,omitempty"`
	Epsilon float64 `json:"epsilon,omitempty"`
}

// Constructor builds a kind from its attributes.
type Constructor func(attrs Attributes) (engine.Kind, error)

// Registry maps kind names to constructors.
type Registry struct {
	constructors map[string]Constructor
}

// NewRegistry returns a registry holding every kind in this package.
func NewRegistry() *Registry {
	r := &Registry{constructors: make(map[string]Constructor)}

	r.Register(Identity{}.Name(), func(Attributes) (engine.Kind, error) { return Identity{}, nil })
	r.Register(Add{}.Name(), func(Attributes) (engine.Kind, error) { return Add{}, nil })
	r.Register(Subtract{}.Name(), func(Attributes) (engine.Kind, error) { return Subtract{}, nil })
	r.Register(Multiply{}.Name(), func(Attributes) (engine.Kind, error) { return Multiply{}, nil })
	r.Register(Square{}.Name(), func(Attributes) (engine.Kind, error) { return Square{}, nil })
	r.Register(MatMul{}.Name(), func(Attributes) (engine.Kind, error) { return MatMul{}, nil })
	r.Register(Slice{}.Name(), func(a Attributes) (engine.Kind, error) {
		return Slice{Axis: a.Axis, Start: a.Start, End: a.End}, nil
	})
	r.Register(Scale{}.Name(), func(a Attributes) (engine.Kind, error) {
		return Scale{Factor: a.Factor}, nil
	})
	r.Register(RMSNorm{}.Name(), func(a Attributes) (engine.Kind, error) {
		if a.Epsilon < 0 {
			return nil, fmt.Errorf("%w: rmsnorm epsilon must not be negative, got %g", engine.ErrInvalidKind, a.Epsilon)
		}
		return RMSNorm{Epsilon: a.Epsilon}, nil
	})
	r.Register(Split{}.Name(), func(a Attributes) (engine.Kind, error) {
		if a.Parts < 1 {
			return nil, fmt.Errorf("%w: split needs at least 1 part, got %d", engine.ErrInvalidKind, a.Parts)
		}
		return Split{Axis: a.Axis, Parts: a.Parts}, nil
	})

	return r
}

// Register adds or replaces the constructor for name.
func (r *Registry) Register(name string, constructor Constructor) {
	r.constructors[name] = constructor
}

// New builds the kind registered under name.
func (r *Registry) New(name string, attrs Attributes) (engine.Kind, error) {
	constructor, ok := r.constructors[name]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported operation %q", engine.ErrInvalidKind, name)
	}
	return constructor(attrs)
}

// Names returns the registered kind names, sorted.
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.constructors))
}
