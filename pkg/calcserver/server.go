package calcserver

import (
	"context"
	"errors"
	"fmt"
	"os"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"k8s.io/klog/v2"

	"github.com/justinsb/tensordag/pkg/blobs"
	"github.com/justinsb/tensordag/pkg/engine"
	"github.com/justinsb/tensordag/pkg/engine/ops"
	"github.com/justinsb/tensordag/pkg/tensor"
)

// CalcServer evaluates each request as an independent graph.
type CalcServer struct {
	Registry  *ops.Registry
	Evaluator *engine.Evaluator

	// Blobs resolves inputs given by BlobHash. Requests using blob inputs
	// fail with FailedPrecondition when it is nil.
	Blobs *blobs.Cache
}

var _ BigCalculatorServer = &CalcServer{}

func NewCalcServer(workers int, blobCache *blobs.Cache) *CalcServer {
	return &CalcServer{
		Registry:  ops.NewRegistry(),
		Evaluator: &engine.Evaluator{Workers: workers},
		Blobs:     blobCache,
	}
}

func (s *CalcServer) Calculate(ctx context.Context, req *CalculateRequest) (*CalculateResponse, error) {
	log := klog.FromContext(ctx)
	log.V(2).Info("calculate", "inputs", len(req.Inputs), "ops", len(req.Ops), "outputs", len(req.Outputs))

	dict, err := s.buildDict(ctx, req.Inputs)
	if err != nil {
		return nil, toStatus(err)
	}
	graph, err := s.buildGraph(req.Ops)
	if err != nil {
		return nil, toStatus(err)
	}

	wantOutputs := make([]engine.Output, len(req.Outputs))
	for i, out := range req.Outputs {
		wantOutputs[i] = engine.Output{Node: engine.NodeIndex(out.Op), Index: out.Output}
	}

	results, err := s.Evaluator.EvaluateAll(ctx, graph, dict, wantOutputs)
	if err != nil {
		return nil, toStatus(err)
	}

	response := &CalculateResponse{}
	for i, result := range results {
		name := fmt.Sprintf("%d:%d", req.Outputs[i].Op, req.Outputs[i].Output)
		response.Results = append(response.Results, EncodeTensor(name, result))
	}
	return response, nil
}

func (s *CalcServer) buildDict(ctx context.Context, inputs []NamedTensor) (*engine.TensorDict, error) {
	dict := engine.NewTensorDict()
	for _, input := range inputs {
		if _, err := dict.Get(input.Name); err == nil {
			return nil, status.Errorf(codes.InvalidArgument, "input %q given more than once", input.Name)
		}
		value, err := s.decodeInput(ctx, input)
		if err != nil {
			return nil, err
		}
		if err := dict.Insert(input.Name, value); err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "input %q: %v", input.Name, err)
		}
	}
	return dict, nil
}

func (s *CalcServer) decodeInput(ctx context.Context, input NamedTensor) (*tensor.Tensor, error) {
	dtype, err := tensor.ParseDType(input.DType)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "input %q: %v", input.Name, err)
	}
	shape := tensor.Shape(input.Shape)

	if input.BlobHash == "" {
		value, err := tensor.FromValues(shape, dtype, input.Values)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "input %q: %v", input.Name, err)
		}
		return value, nil
	}

	if len(input.Values) != 0 {
		return nil, status.Errorf(codes.InvalidArgument, "input %q: values and blobHash are mutually exclusive", input.Name)
	}
	if s.Blobs == nil {
		return nil, status.Errorf(codes.FailedPrecondition, "input %q: blob inputs are not enabled on this server", input.Name)
	}
	if err := blobs.ValidateHash(input.BlobHash); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "input %q: %v", input.Name, err)
	}
	data, err := s.Blobs.Get(ctx, input.BlobHash)
	if err != nil {
		return nil, fmt.Errorf("input %q: %w", input.Name, err)
	}
	value, err := blobs.DecodeTensor(data, shape, dtype)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "input %q: %v", input.Name, err)
	}
	return value, nil
}

func (s *CalcServer) buildGraph(specs []OpSpec) (*engine.Graph, error) {
	b := engine.NewBuilder()
	for i, spec := range specs {
		kind, err := s.Registry.New(spec.Kind, spec.Attributes)
		if err != nil {
			return nil, fmt.Errorf("op %d: %w", i, err)
		}
		inputs := make([]engine.Input, len(spec.Inputs))
		for j, ref := range spec.Inputs {
			switch {
			case ref.Op != nil && ref.Key != "":
				return nil, status.Errorf(codes.InvalidArgument, "op %d input %d: key and op are mutually exclusive", i, j)
			case ref.Op != nil:
				inputs[j] = engine.FromOp(engine.NodeIndex(*ref.Op), ref.Output)
			default:
				inputs[j] = engine.FromDict(ref.Key)
			}
		}
		if _, err := b.AddOp(kind, inputs...); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}

// EncodeTensor converts a tensor into its inline wire form.
func EncodeTensor(name string, t *tensor.Tensor) NamedTensor {
	return NamedTensor{
		Name:   name,
		Shape:  t.Shape(),
		DType:  t.DType().String(),
		Values: t.Float64s(),
	}
}

// DecodeTensor converts an inline wire tensor back into a tensor.
func DecodeTensor(nt NamedTensor) (*tensor.Tensor, error) {
	dtype, err := tensor.ParseDType(nt.DType)
	if err != nil {
		return nil, err
	}
	return tensor.FromValues(tensor.Shape(nt.Shape), dtype, nt.Values)
}

func toStatus(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	code := codes.Internal
	switch {
	case errors.Is(err, engine.ErrMissingKey), errors.Is(err, os.ErrNotExist):
		code = codes.NotFound
	case errors.Is(err, engine.ErrInvalidReference),
		errors.Is(err, engine.ErrInvalidArity),
		errors.Is(err, engine.ErrInvalidKind),
		errors.Is(err, engine.ErrShapeMismatch),
		errors.Is(err, engine.ErrDTypeMismatch):
		code = codes.InvalidArgument
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	}
	return status.Error(code, err.Error())
}
