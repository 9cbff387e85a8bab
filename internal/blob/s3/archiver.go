package s3blob

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quorumlabs/adjudicator/internal/crypto"
	"github.com/quorumlabs/adjudicator/internal/domain"
)

const (
	// maxEvidenceSize caps a single archived document at 64 MiB.
	maxEvidenceSize int64 = 64 * 1024 * 1024

	// multipartThreshold switches uploads to the multipart path.
	multipartThreshold = 8 * 1024 * 1024
)

// EvidenceStore implements domain.EvidenceArchiver: documents are stored
// content-addressed under evidence/{keccak}, so the bytes behind a proposal
// or dispute stay retrievable after the submitted URI rots. Storage is
// idempotent; archiving the same document twice is a no-op.
type EvidenceStore struct {
	reader *Reader
	writer *Writer
}

// NewEvidenceStore creates an EvidenceStore over the given client's bucket.
func NewEvidenceStore(c *Client) *EvidenceStore {
	return &EvidenceStore{
		reader: NewReader(c),
		writer: NewWriter(c),
	}
}

// Archive verifies that doc hashes to hash, then uploads it under the
// content-addressed key. A document whose keccak does not match the declared
// hash is rejected; it would be unverifiable on fetch.
func (s *EvidenceStore) Archive(ctx context.Context, hash common.Hash, doc io.Reader, contentType string) error {
	data, err := io.ReadAll(io.LimitReader(doc, maxEvidenceSize+1))
	if err != nil {
		return fmt.Errorf("s3blob: read evidence document: %w", err)
	}
	if int64(len(data)) > maxEvidenceSize {
		return fmt.Errorf("s3blob: evidence document exceeds %d bytes: %w", maxEvidenceSize, domain.ErrInvalidEvidence)
	}
	if crypto.EvidenceDigest(data) != hash {
		return fmt.Errorf("s3blob: evidence digest mismatch for %s: %w", hash.Hex(), domain.ErrInvalidEvidence)
	}

	key := evidenceKey(hash)
	exists, err := s.reader.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("s3blob: check evidence %s: %w", hash.Hex(), err)
	}
	if exists {
		return nil
	}

	if len(data) > multipartThreshold {
		if err := s.writer.PutMultipart(ctx, key, bytes.NewReader(data), minPartSize); err != nil {
			return fmt.Errorf("s3blob: archive evidence %s: %w", hash.Hex(), err)
		}
		return nil
	}
	if err := s.writer.Put(ctx, key, bytes.NewReader(data), contentType); err != nil {
		return fmt.Errorf("s3blob: archive evidence %s: %w", hash.Hex(), err)
	}
	return nil
}

// Fetch returns the archived document for a content hash. The caller closes
// the returned reader. Missing documents map to domain.ErrNotFound.
func (s *EvidenceStore) Fetch(ctx context.Context, hash common.Hash) (io.ReadCloser, error) {
	return s.reader.Get(ctx, evidenceKey(hash))
}

func evidenceKey(hash common.Hash) string {
	return "evidence/" + hash.Hex()
}

var _ domain.EvidenceArchiver = (*EvidenceStore)(nil)
