package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"claimsync/internal/database"
	"claimsync/internal/dedupe"
	"claimsync/internal/models"
)

// InsertClaimEvent appends an event to the claim timeline. Returns false
// when an event with the same (claim_id, dedupe_key) already exists; the
// duplicate write is swallowed as a no-op, not an error.
func (s *Store) InsertClaimEvent(ctx context.Context, event *models.ClaimEvent) (bool, error) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.EventTypePriority == 0 {
		event.EventTypePriority = models.EventTypePriority(event.EventType)
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	query := s.rebind(`
		INSERT INTO claim_events
			(id, claim_id, event_type, occurred_at, source_id, thread_id, event_type_priority, dedupe_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.ClaimID,
		event.EventType,
		event.OccurredAt,
		event.SourceID,
		event.ThreadID,
		event.EventTypePriority,
		event.DedupeKey,
		event.CreatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to insert claim event: %w", err)
	}

	return true, nil
}

// GetEventByDedupeKey fetches the event holding a dedupe key for a claim.
func (s *Store) GetEventByDedupeKey(ctx context.Context, claimID, dedupeKey string) (models.ClaimEvent, error) {
	var event models.ClaimEvent
	query := s.rebind(`SELECT * FROM claim_events WHERE claim_id = ? AND dedupe_key = ?`)

	if err := s.db.GetContext(ctx, &event, query, claimID, dedupeKey); err != nil {
		if notFound(err) {
			return models.ClaimEvent{}, ErrNotFound
		}
		return models.ClaimEvent{}, fmt.Errorf("failed to get claim event: %w", err)
	}
	return event, nil
}

// ListTimeline returns a claim's events in their canonical order. The
// order is re-derived at read time, so storage iteration order and
// re-ingestion order never leak into the rendered timeline.
func (s *Store) ListTimeline(ctx context.Context, claimID string) ([]models.ClaimEvent, error) {
	var events []models.ClaimEvent
	query := s.rebind(`SELECT * FROM claim_events WHERE claim_id = ?`)

	if err := s.db.SelectContext(ctx, &events, query, claimID); err != nil {
		return nil, fmt.Errorf("failed to list claim events: %w", err)
	}

	dedupe.SortEvents(events)
	return events, nil
}
