package blobs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/singleflight"
	"k8s.io/klog/v2"
)

// Cache is a local directory of blobs, named by hash, in front of an
// optional upstream reader.
type Cache struct {
	BaseDir string

	// Reader fetches blobs missing from BaseDir. If nil, only blobs already
	// in BaseDir are served.
	Reader BlobReader

	// MaxAttempts is the number of times to attempt a download before failing.
	MaxAttempts int

	// RetryInterval is the pause between download attempts.
	RetryInterval time.Duration

	downloads singleflight.Group
}

// NewCache creates baseDir if needed.
func NewCache(baseDir string, reader BlobReader) (*Cache, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory %q: %w", baseDir, err)
	}
	return &Cache{
		BaseDir:       baseDir,
		Reader:        reader,
		MaxAttempts:   5,
		RetryInterval: 5 * time.Second,
	}, nil
}

// Open returns the cached file for hash, downloading it first if needed.
// A blob that exists nowhere yields an error matching os.ErrNotExist.
func (c *Cache) Open(ctx context.Context, hash string) (*os.File, error) {
	if err := ValidateHash(hash); err != nil {
		return nil, err
	}

	localPath := filepath.Join(c.BaseDir, hash)
	f, err := os.Open(localPath)
	if err == nil {
		return f, nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("opening blob %q: %w", hash, err)
	}

	if c.Reader == nil {
		return nil, fmt.Errorf("blob %q not found: %w", hash, os.ErrNotExist)
	}

	// Concurrent requests for the same blob share one download. It runs
	// detached from the caller that started it; each caller stops waiting
	// when its own ctx is done.
	downloadCtx := context.WithoutCancel(ctx)
	results := c.downloads.DoChan(hash, func() (any, error) {
		return nil, c.download(downloadCtx, hash, localPath)
	})
	select {
	case result := <-results:
		if result.Err != nil {
			return nil, result.Err
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	f, err = os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("opening blob %q: %w", hash, err)
	}
	return f, nil
}

// Get returns the content of the blob.
func (c *Cache) Get(ctx context.Context, hash string) ([]byte, error) {
	f, err := c.Open(ctx, hash)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading blob %q: %w", hash, err)
	}
	return data, nil
}

// Put stores data in the cache and returns its hash.
func (c *Cache) Put(ctx context.Context, data []byte) (string, error) {
	hash := Hash(data)
	localPath := filepath.Join(c.BaseDir, hash)
	if _, err := os.Stat(localPath); err == nil {
		return hash, nil
	}
	if _, err := writeToFile(ctx, bytes.NewReader(data), localPath); err != nil {
		return "", fmt.Errorf("writing blob %q: %w", hash, err)
	}
	klog.FromContext(ctx).V(2).Info("stored blob", "hash", hash, "bytes", len(data))
	return hash, nil
}

// download fetches hash into a temp file in BaseDir and moves it to
// localPath only once its content matches the hash.
func (c *Cache) download(ctx context.Context, hash string, localPath string) error {
	log := klog.FromContext(ctx)

	tempFile, err := os.CreateTemp(c.BaseDir, hash+".download-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := tempFile.Name()
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	defer func() {
		if err := os.Remove(tempPath); err != nil && !os.IsNotExist(err) {
			log.Error(err, "removing temp file", "path", tempPath)
		}
	}()

	info := BlobInfo{Hash: hash}
	maxAttempts := max(c.MaxAttempts, 1)

	attempt := 0
	for {
		attempt++

		err := c.Reader.Download(ctx, info, tempPath)
		if err == nil {
			break
		}
		if errors.Is(err, os.ErrNotExist) || attempt >= maxAttempts {
			return err
		}

		log.Error(err, "downloading blob, will retry", "info", info, "attempt", attempt)
		select {
		case <-time.After(c.RetryInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	actual, err := hashFile(tempPath)
	if err != nil {
		return err
	}
	if actual != hash {
		return fmt.Errorf("downloaded blob %q has hash %q", hash, actual)
	}
	if err := os.Rename(tempPath, localPath); err != nil {
		return fmt.Errorf("moving blob %q into cache: %w", hash, err)
	}
	return nil
}
