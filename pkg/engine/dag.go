package engine

import "fmt"

// BuildDAG returns the ops needed to compute wantOutputs, ordered so that
// every op comes after the ops it reads from. Ops that are not ancestors
// of a wanted output are left out.
func BuildDAG(graph *Graph, wantOutputs []Output) ([]NodeIndex, error) {
	if graph == nil {
		return nil, errNilGraph
	}
	for _, want := range wantOutputs {
		if want.Node < 0 || int(want.Node) >= graph.Len() {
			return nil, &InvalidReferenceError{Node: want.Node, Output: want.Index, Reason: fmt.Sprintf("graph has %d ops", graph.Len())}
		}
		if n := graph.ops[want.Node].NumOutputs(); want.Index < 0 || want.Index >= n {
			return nil, &InvalidReferenceError{Node: want.Node, Output: want.Index, Reason: fmt.Sprintf("op has %d outputs", n)}
		}
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make([]uint8, graph.Len())
	evaluationOrder := make([]NodeIndex, 0, graph.Len())

	type frame struct {
		node NodeIndex
		next int
	}

	for _, want := range wantOutputs {
		if state[want.Node] != unvisited {
			continue
		}
		state[want.Node] = visiting
		stack := []frame{{node: want.Node}}

		// Post-order DFS: a node is emitted once all of its inputs are.
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			op := &graph.ops[top.node]
			if top.next < len(op.Inputs) {
				in := op.Inputs[top.next]
				top.next++
				if in.Source != SourceOp {
					continue
				}
				if in.Node < 0 || in.Node >= top.node {
					return nil, internalError("op %d reads %v, which is not an earlier op: %v", top.node, in, ErrInvalidReference)
				}
				switch state[in.Node] {
				case unvisited:
					state[in.Node] = visiting
					stack = append(stack, frame{node: in.Node})
				case visiting:
					return nil, internalError("cycle through op %d", in.Node)
				}
				continue
			}

			state[top.node] = done
			evaluationOrder = append(evaluationOrder, top.node)
			stack = stack[:len(stack)-1]
		}
	}

	return evaluationOrder, nil
}
