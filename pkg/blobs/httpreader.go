package blobs

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"k8s.io/klog/v2"
)

// HTTPBlobReader downloads blobs from a blobserver, which serves each blob
// at <BlobserverURL>/<hash>.
type HTTPBlobReader struct {
	// BlobserverURL is the base URL to the blobserver, typically http://blobserver
	BlobserverURL *url.URL

	// HTTPClient is used for requests; http.DefaultClient if nil.
	HTTPClient *http.Client
}

var _ BlobReader = &HTTPBlobReader{}

func (l *HTTPBlobReader) Download(ctx context.Context, info BlobInfo, destPath string) error {
	if err := ValidateHash(info.Hash); err != nil {
		return err
	}
	u := l.BlobserverURL.JoinPath(info.Hash)
	return l.downloadToFile(ctx, u.String(), destPath)
}

func (l *HTTPBlobReader) downloadToFile(ctx context.Context, url string, destPath string) error {
	log := klog.FromContext(ctx)

	log.Info("downloading from url", "url", url)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	startedAt := time.Now()

	httpClient := l.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("doing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("blob not found at %q: %w", url, os.ErrNotExist)
		}
		return fmt.Errorf("unexpected status downloading from upstream source: %v", resp.Status)
	}

	n, err := writeToFile(ctx, resp.Body, destPath)
	if err != nil {
		return fmt.Errorf("downloading from %q: %w", url, err)
	}

	log.Info("downloaded blob", "url", url, "bytes", n, "duration", time.Since(startedAt))

	return nil
}
