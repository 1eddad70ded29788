package engine

import (
	"fmt"
	"slices"
)

// NodeIndex addresses an Op within its Graph.
type NodeIndex int

// InputSource tags the variant held by an Input.
type InputSource int

const (
	SourceDict InputSource = iota
	SourceOp
)

// Input is a reference to a value: a TensorDict key, or one output of an
// earlier Op. Build one with FromDict or FromOp.
type Input struct {
	Source InputSource

	// Key is set for SourceDict.
	Key string

	// Node and Output are set for SourceOp.
	Node   NodeIndex
	Output int
}

func FromDict(key string) Input {
	return Input{Source: SourceDict, Key: key, Node: -1}
}

func FromOp(node NodeIndex, output int) Input {
	return Input{Source: SourceOp, Node: node, Output: output}
}

// Shift moves an op reference by offset, as when its graph is merged into
// a builder that already holds offset ops. Dict references are unchanged.
func (in Input) Shift(offset NodeIndex) Input {
	if in.Source == SourceOp {
		in.Node += offset
	}
	return in
}

func (in Input) String() string {
	switch in.Source {
	case SourceDict:
		return fmt.Sprintf("dict[%q]", in.Key)
	case SourceOp:
		return fmt.Sprintf("op[%d:%d]", in.Node, in.Output)
	default:
		return fmt.Sprintf("Input(source=%d)", int(in.Source))
	}
}

// Output selects one result of an Op, for use as an evaluation target.
type Output struct {
	Node  NodeIndex
	Index int
}

func (o Output) String() string {
	return fmt.Sprintf("%d:%d", o.Node, o.Index)
}

// Op is a single computation node.
type Op struct {
	Index  NodeIndex
	Kind   Kind
	Inputs []Input
}

func (o *Op) NumOutputs() int {
	return o.Kind.NumOutputs()
}

// Graph is an immutable, acyclic sequence of Ops. It is safe to share
// between concurrent evaluations.
type Graph struct {
	ops []Op
}

// Len returns the number of ops. A nil graph has none.
func (g *Graph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.ops)
}

// Op returns a copy of the op at index i.
func (g *Graph) Op(i NodeIndex) (Op, bool) {
	if g == nil || i < 0 || int(i) >= len(g.ops) {
		return Op{}, false
	}
	op := g.ops[i]
	op.Inputs = slices.Clone(op.Inputs)
	return op, true
}

// Ops returns copies of all ops, in index order.
func (g *Graph) Ops() []Op {
	out := make([]Op, g.Len())
	for i := range out {
		out[i], _ = g.Op(NodeIndex(i))
	}
	return out
}

// Builder constructs a Graph by appending Ops. An Op can only reference
// Ops added before it, so every built graph is acyclic.
type Builder struct {
	ops []Op
}

func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) Len() int {
	return len(b.ops)
}

// AddOp appends an op and returns its index. A rejected op leaves the
// builder unchanged.
func (b *Builder) AddOp(kind Kind, inputs ...Input) (NodeIndex, error) {
	if kind == nil {
		return -1, fmt.Errorf("adding op %d: %w: nil kind", len(b.ops), ErrInvalidKind)
	}
	if kind.NumOutputs() < 1 {
		return -1, fmt.Errorf("adding op %d (%s): %w: kind declares %d outputs", len(b.ops), kind.Name(), ErrInvalidKind, kind.NumOutputs())
	}
	if arity := kind.Arity(); arity >= 0 && arity != len(inputs) {
		return -1, fmt.Errorf("adding op %d (%s): %w: expected %d inputs, got %d", len(b.ops), kind.Name(), ErrInvalidArity, arity, len(inputs))
	}
	for i, in := range inputs {
		if err := b.checkInput(in); err != nil {
			return -1, fmt.Errorf("adding op %d (%s): input %d: %w", len(b.ops), kind.Name(), i, err)
		}
	}

	index := NodeIndex(len(b.ops))
	b.ops = append(b.ops, Op{
		Index:  index,
		Kind:   kind,
		Inputs: slices.Clone(inputs),
	})
	return index, nil
}

func (b *Builder) checkInput(in Input) error {
	switch in.Source {
	case SourceDict:
		if in.Key == "" {
			return &InvalidReferenceError{Node: -1, Reason: "empty key"}
		}
		return nil
	case SourceOp:
		if in.Node < 0 || int(in.Node) >= len(b.ops) {
			return &InvalidReferenceError{Node: in.Node, Output: in.Output, Reason: fmt.Sprintf("graph has %d ops", len(b.ops))}
		}
		if n := b.ops[in.Node].NumOutputs(); in.Output < 0 || in.Output >= n {
			return &InvalidReferenceError{Node: in.Node, Output: in.Output, Reason: fmt.Sprintf("op has %d outputs", n)}
		}
		return nil
	default:
		return &InvalidReferenceError{Node: -1, Reason: fmt.Sprintf("unknown input source %d", int(in.Source))}
	}
}

// Merge appends every op of other, in order, and returns the offset added
// to their indices: op i of other becomes op offset+i, and its op inputs
// are shifted to match. Dict inputs are shared with the ops already in the
// builder. Use Input.Shift to translate references into other.
func (b *Builder) Merge(other *Graph) (NodeIndex, error) {
	if other == nil {
		return -1, fmt.Errorf("merging graph: %w", errNilGraph)
	}
	offset := NodeIndex(len(b.ops))
	for _, op := range other.ops {
		shifted := make([]Input, len(op.Inputs))
		for i, in := range op.Inputs {
			shifted[i] = in.Shift(offset)
		}
		b.ops = append(b.ops, Op{
			Index:  op.Index + offset,
			Kind:   op.Kind,
			Inputs: shifted,
		})
	}
	return offset, nil
}

// Build returns an immutable snapshot of the ops added so far. The builder
// can keep appending without affecting earlier snapshots.
func (b *Builder) Build() *Graph {
	return &Graph{ops: slices.Clone(b.ops)}
}
