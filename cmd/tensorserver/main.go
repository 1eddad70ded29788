package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"

	"google.golang.org/grpc"
	"k8s.io/klog/v2"

	"github.com/justinsb/tensordag/pkg/blobs"
	"github.com/justinsb/tensordag/pkg/calcserver"
	"github.com/justinsb/tensordag/pkg/config"
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
	listen := config.StringFromEnv("LISTEN", ":9876")
	flag.StringVar(&listen, "listen", listen, "listen address")

	workers, err := config.IntFromEnv("WORKERS", 0)
	if err != nil {
		return err
	}
	flag.IntVar(&workers, "workers", workers, "ops evaluated concurrently per request; 0 evaluates sequentially")

	// Blob inputs are only enabled when a cache directory is set.
	cacheDir := os.Getenv("CACHE_DIR")
	flag.StringVar(&cacheDir, "cache-dir", cacheDir, "local blob cache directory; enables blob inputs")

	upstream := config.StringFromEnv("BLOBSERVER", os.Getenv("CACHE_BUCKET"))
	flag.StringVar(&upstream, "blobserver", upstream, "upstream for blobs missing from the cache, as gs://<bucket> or an http(s) URL")

	klog.InitFlags(nil)
	flag.Parse()

	log := klog.FromContext(ctx)

	var blobCache *blobs.Cache
	if cacheDir != "" {
		cacheDir, err = config.ExpandHome(cacheDir)
		if err != nil {
			return err
		}

		var reader blobs.BlobReader
		if upstream != "" {
			reader, err = blobs.NewReader(upstream)
			if err != nil {
				return err
			}
		}

		blobCache, err = blobs.NewCache(cacheDir, reader)
		if err != nil {
			return err
		}
		log.Info("blob inputs enabled", "cacheDir", cacheDir, "upstream", upstream)
	}

	lis, err := net.Listen("tcp", listen)
	if err != nil {
		return fmt.Errorf("listening on %q: %w", listen, err)
	}
	grpcServer := grpc.NewServer()

	calcServer := calcserver.NewCalcServer(workers, blobCache)
	calcserver.RegisterBigCalculatorServer(grpcServer, calcServer)
	log.Info("Starting tensorserver", "listen", listen, "workers", workers)
	if err := grpcServer.Serve(lis); err != nil {
		return fmt.Errorf("serving GRPC: %w", err)
	}

	return nil
}
