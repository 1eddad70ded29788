package engine

import (
	"context"

	"github.com/justinsb/tensordag/pkg/tensor"
)

// evaluationCache holds the outputs computed during a single evaluation
// run. Slots are created up front for every required op, so the map itself
// is never written during the run; each slot's done channel is closed once
// its outputs are stored, which orders the write before any dependent read.
type evaluationCache struct {
	slots map[NodeIndex]*cacheSlot
}

type cacheSlot struct {
	done    chan struct{}
	outputs []*tensor.Tensor
}

func newEvaluationCache(order []NodeIndex) *evaluationCache {
	c := &evaluationCache{slots: make(map[NodeIndex]*cacheSlot, len(order))}
	for _, node := range order {
		c.slots[node] = &cacheSlot{done: make(chan struct{})}
	}
	return c
}

func (c *evaluationCache) store(node NodeIndex, outputs []*tensor.Tensor) error {
	slot, ok := c.slots[node]
	if !ok {
		return internalError("op %d is not part of this evaluation", node)
	}
	select {
	case <-slot.done:
		return internalError("op %d computed twice", node)
	default:
	}
	slot.outputs = outputs
	close(slot.done)
	return nil
}

// wait blocks until node has been stored, or ctx is done.
func (c *evaluationCache) wait(ctx context.Context, node NodeIndex) error {
	slot, ok := c.slots[node]
	if !ok {
		return internalError("op %d is not part of this evaluation", node)
	}
	select {
	case <-slot.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// lookup returns a stored output without blocking.
func (c *evaluationCache) lookup(out Output) (*tensor.Tensor, error) {
	slot, ok := c.slots[out.Node]
	if !ok {
		return nil, internalError("op %d is not part of this evaluation", out.Node)
	}
	select {
	case <-slot.done:
	default:
		return nil, internalError("op %d read before it was computed", out.Node)
	}
	if out.Index < 0 || out.Index >= len(slot.outputs) {
		return nil, internalError("op %d has no output %d", out.Node, out.Index)
	}
	return slot.outputs[out.Index], nil
}

// computed returns the number of ops whose outputs are stored.
func (c *evaluationCache) computed() int {
	n := 0
	for _, slot := range c.slots {
		select {
		case <-slot.done:
			n++
		default:
		}
	}
	return n
}
