package blobs

import "context"

// BlobReader fetches a blob, typically the raw elements of a tensor input,
// into a local file.
type BlobReader interface {
	// Download writes the blob to destPath. A blob the reader does not hold
	// yields an error matching os.ErrNotExist, which callers do not retry.
	Download(ctx context.Context, info BlobInfo, destPath string) error
}

// Blobstore is a BlobReader that also accepts uploads, such as tensors a
// client publishes before referencing them by hash in a request.
type Blobstore interface {
	BlobReader

	// Upload stores the file at sourcePath under info.Hash. Uploading a hash
	// that is already stored is a no-op.
	Upload(ctx context.Context, sourcePath string, info BlobInfo) error
}

// BlobInfo identifies a blob by the hex sha256 of its content.
type BlobInfo struct {
	Hash string
}

// InfoOf returns the BlobInfo naming data.
func InfoOf(data []byte) BlobInfo {
	return BlobInfo{Hash: Hash(data)}
}
