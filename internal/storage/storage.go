// Package storage persists raw evidence blobs. The pipeline only needs a
// configured check and a put/get contract; everything else about the
// object store is someone else's problem.
package storage

import (
	"context"
	"fmt"
)

// ContentTypeEmail is the content type stored with raw message blobs.
const ContentTypeEmail = "message/rfc822"

// BlobStore is the object-storage contract consumed by the pipeline.
type BlobStore interface {
	// Configured reports whether the store can accept writes. The
	// nightly sync skips entirely when this is false.
	Configured() bool
	// Put stores a blob and returns an opaque reference to it.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	// Get retrieves a blob previously stored under ref.
	Get(ctx context.Context, ref string) ([]byte, error)
}

// EvidenceKey builds the object key for a claim's raw evidence blob.
func EvidenceKey(claimID, dedupeKey string) string {
	return fmt.Sprintf("claims/%s/evidence/%s.eml", claimID, dedupeKey)
}
