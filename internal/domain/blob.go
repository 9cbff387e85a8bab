package domain

import (
	"context"
	"io"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// BlobInfo describes a stored object.
type BlobInfo struct {
	Path         string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// BlobReader retrieves data from object storage.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// EvidenceArchiver stores evidence documents keyed by content hash so the
// material behind a resolution or dispute stays retrievable after the URI
// rots. Archiving is best-effort.
type EvidenceArchiver interface {
	Archive(ctx context.Context, hash common.Hash, doc io.Reader, contentType string) error
	Fetch(ctx context.Context, hash common.Hash) (io.ReadCloser, error)
}
