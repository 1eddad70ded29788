package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/justinsb/tensordag/pkg/tensor"
)

// Evaluator computes op outputs on demand. The zero value evaluates
// sequentially.
type Evaluator struct {
	// Workers bounds how many ops execute at once. Values <= 1 evaluate
	// sequentially.
	Workers int
}

// Evaluate computes target using a sequential Evaluator.
func Evaluate(ctx context.Context, graph *Graph, dict *TensorDict, target Output) (*tensor.Tensor, error) {
	return (&Evaluator{}).Evaluate(ctx, graph, dict, target)
}

func (e *Evaluator) Evaluate(ctx context.Context, graph *Graph, dict *TensorDict, target Output) (*tensor.Tensor, error) {
	results, err := e.EvaluateAll(ctx, graph, dict, []Output{target})
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

// EvaluateAll computes every target in a single run, sharing intermediate
// results between them. Only ancestors of the targets are executed, each
// at most once. Any error aborts the run and no results are returned.
func (e *Evaluator) EvaluateAll(ctx context.Context, graph *Graph, dict *TensorDict, targets []Output) ([]*tensor.Tensor, error) {
	log := klog.FromContext(ctx).WithValues("run", uuid.NewString())
	ctx = klog.NewContext(ctx, log)

	evaluationOrder, err := BuildDAG(graph, targets)
	if err != nil {
		return nil, fmt.Errorf("building DAG: %w", err)
	}

	log.V(2).Info("evaluating graph", "targets", targets, "required", len(evaluationOrder), "ops", graph.Len(), "workers", e.Workers)
	startedAt := time.Now()

	cache := newEvaluationCache(evaluationOrder)
	if e.Workers > 1 && len(evaluationOrder) > 1 {
		err = e.runParallel(ctx, graph, dict, evaluationOrder, cache)
	} else {
		err = runSequential(ctx, graph, dict, evaluationOrder, cache)
	}
	if err != nil {
		log.V(2).Info("evaluation failed", "err", err, "computed", cache.computed())
		return nil, err
	}

	results := make([]*tensor.Tensor, len(targets))
	for i, target := range targets {
		result, err := cache.lookup(target)
		if err != nil {
			return nil, err
		}
		results[i] = result
	}

	log.V(2).Info("evaluated graph", "computed", cache.computed(), "duration", time.Since(startedAt))
	return results, nil
}

func runSequential(ctx context.Context, graph *Graph, dict *TensorDict, evaluationOrder []NodeIndex, cache *evaluationCache) error {
	for _, node := range evaluationOrder {
		if err := executeOp(ctx, graph, dict, node, cache); err != nil {
			return err
		}
	}
	return nil
}

// runParallel starts one goroutine per op, in evaluation order. Each waits
// only for the ops it reads from. Because ops are started in topological
// order, every op an op waits on has already been started, so the worker
// limit cannot deadlock.
func (e *Evaluator) runParallel(ctx context.Context, graph *Graph, dict *TensorDict, evaluationOrder []NodeIndex, cache *evaluationCache) error {
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(e.Workers)

	for _, node := range evaluationOrder {
		group.Go(func() error {
			for _, in := range graph.ops[node].Inputs {
				if in.Source != SourceOp {
					continue
				}
				if err := cache.wait(ctx, in.Node); err != nil {
					return err
				}
			}
			return executeOp(ctx, graph, dict, node, cache)
		})
	}
	return group.Wait()
}

func executeOp(ctx context.Context, graph *Graph, dict *TensorDict, node NodeIndex, cache *evaluationCache) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	op := &graph.ops[node]
	name := op.Kind.Name()

	inputs := make([]*tensor.Tensor, len(op.Inputs))
	shapes := make([]tensor.Shape, len(op.Inputs))
	for i, in := range op.Inputs {
		var value *tensor.Tensor
		var err error
		switch in.Source {
		case SourceDict:
			value, err = dict.Get(in.Key)
		case SourceOp:
			value, err = cache.lookup(Output{Node: in.Node, Index: in.Output})
		default:
			err = internalError("unknown input source %d", int(in.Source))
		}
		if err != nil {
			return fmt.Errorf("op %d (%s): input %d: %w", node, name, i, err)
		}
		inputs[i] = value
		shapes[i] = value.Shape()
	}

	if err := op.Kind.Validate(shapes); err != nil {
		return fmt.Errorf("op %d (%s): %w", node, name, err)
	}
	outputs, err := op.Kind.Compute(inputs)
	if err != nil {
		return fmt.Errorf("op %d (%s): %w", node, name, err)
	}
	if len(outputs) != op.Kind.NumOutputs() {
		return internalError("op %d (%s) produced %d outputs, declared %d", node, name, len(outputs), op.Kind.NumOutputs())
	}
	for i, out := range outputs {
		if out == nil {
			return internalError("op %d (%s) produced nil output %d", node, name, i)
		}
	}

	klog.FromContext(ctx).V(4).Info("executed op", "node", node, "kind", name, "shape", outputs[0].Shape())
	return cache.store(node, outputs)
}
