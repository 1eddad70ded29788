package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"k8s.io/klog/v2"

	"github.com/justinsb/tensordag/pkg/blobs"
	"github.com/justinsb/tensordag/pkg/config"
)

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	log := klog.FromContext(ctx)

	listen := config.StringFromEnv("LISTEN", ":8080")
	// We expect CACHE_DIR to be set when running on kubernetes, but default sensibly for local dev
	cacheDir := config.StringFromEnv("CACHE_DIR", "~/.cache/blobserver/blobs")
	cacheBucket := os.Getenv("CACHE_BUCKET")
	flag.StringVar(&listen, "listen", listen, "listen address")
	flag.StringVar(&cacheDir, "cache-dir", cacheDir, "cache directory")
	flag.StringVar(&cacheBucket, "cache-bucket", cacheBucket, "GCS bucket (gs://<bucketName>) backing the cache")

	klog.InitFlags(nil)
	flag.Parse()

	cacheDir, err := config.ExpandHome(cacheDir)
	if err != nil {
		return err
	}

	var reader blobs.BlobReader
	if cacheBucket != "" {
		if !strings.HasPrefix(cacheBucket, "gs://") {
			return fmt.Errorf("CACHE_BUCKET must be a GCS bucket URL (gs://<bucketName>)")
		}
		reader, err = blobs.NewReader(cacheBucket)
		if err != nil {
			return err
		}
		log.Info("using GCS cache", "bucket", cacheBucket)
	}

	blobCache, err := blobs.NewCache(cacheDir, reader)
	if err != nil {
		return err
	}

	s := &httpServer{
		blobCache: blobCache,
	}

	log.Info("serving", "listen", listen, "cacheDir", cacheDir)
	if err := http.ListenAndServe(listen, s); err != nil {
		return fmt.Errorf("serving on %q: %w", listen, err)
	}

	return nil
}

type httpServer struct {
	blobCache *blobs.Cache
}

func (s *httpServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tokens := strings.Split(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if len(tokens) == 1 {
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			hash := tokens[0]
			s.serveGETBlob(w, r, hash)
			return
		}
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	http.Error(w, "not found", http.StatusNotFound)
}

func (s *httpServer) serveGETBlob(w http.ResponseWriter, r *http.Request, hash string) {
	ctx := r.Context()

	log := klog.FromContext(ctx)

	if err := blobs.ValidateHash(hash); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	f, err := s.blobCache.Open(ctx, hash)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		log.Error(err, "error getting blob", "hash", hash)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		log.Error(err, "error getting blob info", "hash", hash)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	log.V(2).Info("serving blob", "hash", hash, "size", stat.Size())
	w.Header().Set("Content-Type", "application/octet-stream")
	http.ServeContent(w, r, hash, stat.ModTime(), f)
}
