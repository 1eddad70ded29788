package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"k8s.io/klog/v2"

	"github.com/justinsb/tensordag/pkg/blobs"
	"github.com/justinsb/tensordag/pkg/calcserver"
	"github.com/justinsb/tensordag/pkg/config"
	"github.com/justinsb/tensordag/pkg/tensor"
)

func main() {
	ctx := context.Background()
	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	serverAddr := config.StringFromEnv("TENSORSERVER", "127.0.0.1:9876")
	flag.StringVar(&serverAddr, "server", serverAddr, "tensorserver address")

	uploadBucket := ""
	flag.StringVar(&uploadBucket, "upload-bucket", uploadBucket, "if set, upload the input to this GCS bucket and send it by hash")

	klog.InitFlags(nil)
	flag.Parse()

	log := klog.FromContext(ctx)

	var opts []grpc.DialOption
	opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))

	conn, err := grpc.NewClient(serverAddr, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to server %q: %w", serverAddr, err)
	}
	defer conn.Close()
	client := calcserver.NewBigCalculatorClient(conn)

	log.Info("Starting tensorclient", "server", serverAddr)

	x := tensor.Vector(1, 2, 3)
	input := calcserver.EncodeTensor("x", x)
	if uploadBucket != "" {
		hash, err := uploadTensor(ctx, uploadBucket, x)
		if err != nil {
			return err
		}
		input.Values = nil
		input.BlobHash = hash
	}

	// x * x, then normalized.
	request := &calcserver.CalculateRequest{
		Inputs: []calcserver.NamedTensor{input},
		Ops: []calcserver.OpSpec{
			{Kind: "identity", Inputs: []calcserver.InputRef{calcserver.DictInput("x")}},
			{Kind: "multiply", Inputs: []calcserver.InputRef{calcserver.OpInput(0, 0), calcserver.OpInput(0, 0)}},
			{Kind: "rmsnorm", Inputs: []calcserver.InputRef{calcserver.OpInput(1, 0)}},
		},
		Outputs: []calcserver.OutputRef{{Op: 1}, {Op: 2}},
	}
	response, err := client.Calculate(ctx, request)
	if err != nil {
		return fmt.Errorf("failed to calculate: %w", err)
	}
	for _, result := range response.Results {
		log.Info("Result", "name", result.Name, "shape", result.Shape, "values", result.Values)
	}

	return nil
}

func uploadTensor(ctx context.Context, bucket string, t *tensor.Tensor) (string, error) {
	log := klog.FromContext(ctx)

	data := blobs.EncodeTensor(t)
	info := blobs.InfoOf(data)
	hash := info.Hash

	p := filepath.Join(os.TempDir(), "tensorclient-"+hash)
	if err := os.WriteFile(p, data, 0644); err != nil {
		return "", fmt.Errorf("writing %q: %w", p, err)
	}
	defer os.Remove(p)

	store := &blobs.GCSBlobstore{Bucket: bucket}
	if err := store.Upload(ctx, p, info); err != nil {
		return "", fmt.Errorf("uploading tensor: %w", err)
	}
	log.Info("uploaded input", "bucket", bucket, "hash", hash)
	return hash, nil
}
