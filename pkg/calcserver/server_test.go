package calcserver

import (
	"context"
	"math"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/justinsb/tensordag/pkg/blobs"
	"github.com/justinsb/tensordag/pkg/engine/ops"
	"github.com/justinsb/tensordag/pkg/tensor"
)

func startServer(t *testing.T, srv *CalcServer) *Client {
	t.Helper()

	listener := bufconn.Listen(1 << 20)
	grpcServer := grpc.NewServer()
	RegisterBigCalculatorServer(grpcServer, srv)
	go grpcServer.Serve(listener)
	t.Cleanup(grpcServer.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return NewBigCalculatorClient(conn)
}

func squareRequest() *CalculateRequest {
	return &CalculateRequest{
		Inputs: []NamedTensor{
			{Name: "x", Shape: []int{3}, Values: []float64{1, 2, 3}},
		},
		Ops: []OpSpec{
			{Kind: "identity", Inputs: []InputRef{DictInput("x")}},
			{Kind: "multiply", Inputs: []InputRef{OpInput(0, 0), OpInput(0, 0)}},
		},
		Outputs: []OutputRef{{Op: 1}},
	}
}

func TestCalculate(t *testing.T) {
	client := startServer(t, NewCalcServer(2, nil))

	response, err := client.Calculate(context.Background(), squareRequest())
	require.NoError(t, err)
	require.Len(t, response.Results, 1)

	result := response.Results[0]
	assert.Equal(t, "1:0", result.Name)
	assert.Equal(t, []int{3}, result.Shape)
	assert.Equal(t, "float32", result.DType)
	assert.Equal(t, Values{1, 4, 9}, result.Values)
}

func TestCalculate_MultipleOutputs(t *testing.T) {
	client := startServer(t, NewCalcServer(0, nil))

	req := &CalculateRequest{
		Inputs: []NamedTensor{
			{Name: "x", Shape: []int{2, 2}, DType: "float64", Values: []float64{1, 2, 3, 4}},
		},
		Ops: []OpSpec{
			{Kind: "split", Inputs: []InputRef{DictInput("x")}, Attributes: ops.Attributes{Axis: 0, Parts: 2}},
			{Kind: "scale", Inputs: []InputRef{OpInput(0, 1)}, Attributes: ops.Attributes{Factor: 10}},
		},
		Outputs: []OutputRef{{Op: 0, Output: 0}, {Op: 1}},
	}
	response, err := client.Calculate(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, response.Results, 2)

	assert.Equal(t, "0:0", response.Results[0].Name)
	assert.Equal(t, []int{1, 2}, response.Results[0].Shape)
	assert.Equal(t, Values{1, 2}, response.Results[0].Values)
	assert.Equal(t, "float64", response.Results[1].DType)
	assert.Equal(t, Values{30, 40}, response.Results[1].Values)
}

func TestCalculate_Errors(t *testing.T) {
	client := startServer(t, NewCalcServer(0, nil))

	grid := []struct {
		name   string
		mutate func(req *CalculateRequest)
		want   codes.Code
	}{
		{
			name:   "missing key",
			mutate: func(req *CalculateRequest) { req.Inputs = nil },
			want:   codes.NotFound,
		},
		{
			name: "forward reference",
			mutate: func(req *CalculateRequest) {
				req.Ops[0].Inputs = []InputRef{OpInput(1, 0)}
			},
			want: codes.InvalidArgument,
		},
		{
			name:   "unknown kind",
			mutate: func(req *CalculateRequest) { req.Ops[1].Kind = "convolve" },
			want:   codes.InvalidArgument,
		},
		{
			name: "wrong arity",
			mutate: func(req *CalculateRequest) {
				req.Ops[1].Inputs = req.Ops[1].Inputs[:1]
			},
			want: codes.InvalidArgument,
		},
		{
			name: "shape mismatch",
			mutate: func(req *CalculateRequest) {
				req.Inputs = append(req.Inputs, NamedTensor{Name: "y", Shape: []int{2}, Values: []float64{1, 2}})
				req.Ops[1].Inputs[1] = DictInput("y")
			},
			want: codes.InvalidArgument,
		},
		{
			name:   "bad output",
			mutate: func(req *CalculateRequest) { req.Outputs = []OutputRef{{Op: 7}} },
			want:   codes.InvalidArgument,
		},
		{
			name: "duplicate input",
			mutate: func(req *CalculateRequest) {
				req.Inputs = append(req.Inputs, req.Inputs[0])
			},
			want: codes.InvalidArgument,
		},
		{
			name: "values do not match shape",
			mutate: func(req *CalculateRequest) {
				req.Inputs[0].Shape = []int{4}
			},
			want: codes.InvalidArgument,
		},
		{
			name: "key and op both set",
			mutate: func(req *CalculateRequest) {
				ref := OpInput(0, 0)
				ref.Key = "x"
				req.Ops[1].Inputs[0] = ref
			},
			want: codes.InvalidArgument,
		},
		{
			name: "blob without cache",
			mutate: func(req *CalculateRequest) {
				req.Inputs[0].Values = nil
				req.Inputs[0].BlobHash = blobs.Hash([]byte("x"))
			},
			want: codes.FailedPrecondition,
		},
	}

	for _, g := range grid {
		t.Run(g.name, func(t *testing.T) {
			req := squareRequest()
			g.mutate(req)

			_, err := client.Calculate(context.Background(), req)
			require.Error(t, err)
			assert.Equal(t, g.want, status.Code(err), "unexpected status: %v", err)
		})
	}
}

func TestCalculate_BlobInput(t *testing.T) {
	ctx := context.Background()

	cache, err := blobs.NewCache(t.TempDir(), nil)
	require.NoError(t, err)

	x, err := tensor.FromFloat32(tensor.Shape{3}, []float32{2, 3, 4})
	require.NoError(t, err)
	hash, err := cache.Put(ctx, blobs.EncodeTensor(x))
	require.NoError(t, err)

	client := startServer(t, NewCalcServer(0, cache))

	req := squareRequest()
	req.Inputs[0] = NamedTensor{Name: "x", Shape: []int{3}, BlobHash: hash}
	response, err := client.Calculate(ctx, req)
	require.NoError(t, err)
	require.Len(t, response.Results, 1)
	assert.Equal(t, Values{4, 9, 16}, response.Results[0].Values)

	req.Inputs[0].BlobHash = blobs.Hash([]byte("never stored"))
	_, err = client.Calculate(ctx, req)
	assert.Equal(t, codes.NotFound, status.Code(err), "unexpected status: %v", err)
}

func TestCalculate_NonFiniteValues(t *testing.T) {
	client := startServer(t, NewCalcServer(0, nil))

	req := squareRequest()
	req.Inputs[0] = NamedTensor{Name: "x", Shape: []int{3}, Values: Values{3e38, math.NaN(), math.Inf(-1)}}
	response, err := client.Calculate(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, response.Results, 1)

	values := response.Results[0].Values
	require.Len(t, values, 3)
	assert.True(t, math.IsInf(values[0], 1), "float32 overflow: %v", values[0])
	assert.True(t, math.IsNaN(values[1]), "nan: %v", values[1])
	assert.True(t, math.IsInf(values[2], 1), "squared -Inf: %v", values[2])
}

func TestDecodeTensor(t *testing.T) {
	x, err := tensor.FromFloat64(tensor.Shape{2}, []float64{0.5, -1})
	require.NoError(t, err)

	decoded, err := DecodeTensor(EncodeTensor("x", x))
	require.NoError(t, err)
	assert.True(t, x.Identical(decoded))

	_, err = DecodeTensor(NamedTensor{Shape: []int{1}, DType: "int8", Values: []float64{1}})
	assert.Error(t, err)
}
