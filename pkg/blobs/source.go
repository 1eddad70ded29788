package blobs

import (
	"fmt"
	"net/url"
	"strings"
)

// NewReader returns the reader for an upstream blob location: a GCS bucket
// given as gs://<bucket>, or a blobserver given as an http(s) URL.
func NewReader(location string) (BlobReader, error) {
	if bucket, ok := strings.CutPrefix(location, "gs://"); ok {
		if bucket == "" || strings.Contains(bucket, "/") {
			return nil, fmt.Errorf("invalid GCS bucket URL %q, expected gs://<bucketName>", location)
		}
		return &GCSBlobstore{Bucket: bucket}, nil
	}

	u, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("parsing blob location %q: %w", location, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("unsupported blob location %q, expected gs://<bucketName> or an http(s) URL", location)
	}
	return &HTTPBlobReader{BlobserverURL: u}, nil
}
