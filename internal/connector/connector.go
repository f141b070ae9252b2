// Package connector yields candidate evidence for a claim within a time
// window. Fetching mail from the provider is a separate subsystem; this
// package only turns already-synced raw messages into RawCandidates.
package connector

import (
	"context"
	"time"

	"claimsync/internal/models"
)

// Source is the candidate feed consumed by the ingestion orchestrator.
// Failures are the source's to signal; the orchestrator does not retry.
type Source interface {
	ListCandidates(ctx context.Context, claimID string, windowStart, windowEnd time.Time) ([]models.RawCandidate, error)
}
