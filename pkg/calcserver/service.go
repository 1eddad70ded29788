// Package calcserver exposes graph evaluation over gRPC.
//
// Messages are plain Go structs encoded with a JSON codec registered under
// the "json" content-subtype, so no generated code is needed.
package calcserver

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

const (
	codecName       = "json"
	serviceName     = "tensordag.v1alpha1.BigCalculator"
	calculateMethod = "/" + serviceName + "/Calculate"
)

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return codecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type BigCalculatorServer interface {
	Calculate(ctx context.Context, req *CalculateRequest) (*CalculateResponse, error)
}

func RegisterBigCalculatorServer(s grpc.ServiceRegistrar, srv BigCalculatorServer) {
	s.RegisterService(&bigCalculatorServiceDesc, srv)
}

var bigCalculatorServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*BigCalculatorServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Calculate",
			Handler:    calculateHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tensordag/v1alpha1/calculator",
}

func calculateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CalculateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BigCalculatorServer).Calculate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: calculateMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BigCalculatorServer).Calculate(ctx, req.(*CalculateRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// Client calls a BigCalculator service.
type Client struct {
	conn grpc.ClientConnInterface
}

func NewBigCalculatorClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func (c *Client) Calculate(ctx context.Context, req *CalculateRequest, opts ...grpc.CallOption) (*CalculateResponse, error) {
	out := new(CalculateResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	if err := c.conn.Invoke(ctx, calculateMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
