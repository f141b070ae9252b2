// Package review manages the human triage queue for candidates the
// scorer could not confidently accept or reject.
package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"claimsync/internal/dedupe"
	"claimsync/internal/models"
	"claimsync/internal/store"
)

// ErrNotFound is returned when the review item does not exist.
var ErrNotFound = errors.New("review item not found")

// ErrConflict is returned when an item already carries the opposite
// decision. Repeating the same decision is a benign no-op instead.
var ErrConflict = errors.New("review item already decided differently")

// ErrInvalidDecision is returned for decisions outside APPROVED/REJECTED.
var ErrInvalidDecision = errors.New("invalid review decision")

// Store is the slice of persistence the router needs.
type Store interface {
	GetReviewItem(ctx context.Context, itemID string) (models.ReviewQueueItem, error)
	UpdateReviewDecision(ctx context.Context, itemID, status, reviewerID string, decidedAt time.Time) (bool, error)
	GetEventByDedupeKey(ctx context.Context, claimID, dedupeKey string) (models.ClaimEvent, error)
	InsertClaimEvent(ctx context.Context, event *models.ClaimEvent) (bool, error)
	InsertEvidenceItem(ctx context.Context, item *models.EvidenceItem) (bool, error)
	GetEvidenceByDedupeKey(ctx context.Context, claimID, kind, dedupeKey string) (models.EvidenceItem, error)
	InsertEvidenceLink(ctx context.Context, link *models.EvidenceLink) (bool, error)
}

// Router resolves review queue items.
type Router struct {
	store  Store
	logger zerolog.Logger
	now    func() time.Time
}

// NewRouter creates a router.
func NewRouter(st Store, logger zerolog.Logger) *Router {
	return &Router{
		store:  st,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Resolve applies a reviewer's decision. Approval materializes the
// withheld timeline event and evidence with the same dedupe-key
// discipline as auto-ingestion, so approving twice, or approving a
// message a later run auto-ingested, never duplicates evidence.
// Evidence is written before the status flips: a crash in between is
// repaired by retrying, never by losing the approval.
func (r *Router) Resolve(ctx context.Context, itemID, decision, reviewerID string) (models.ReviewQueueItem, error) {
	if decision != models.ReviewDecisionApprove && decision != models.ReviewDecisionReject {
		return models.ReviewQueueItem{}, fmt.Errorf("%w: %q", ErrInvalidDecision, decision)
	}

	item, err := r.store.GetReviewItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.ReviewQueueItem{}, ErrNotFound
		}
		return models.ReviewQueueItem{}, fmt.Errorf("failed to load review item: %w", err)
	}

	if item.Decided() {
		if item.Status == decision {
			return item, nil
		}
		return models.ReviewQueueItem{}, fmt.Errorf("%w: item %s is %s", ErrConflict, itemID, item.Status)
	}

	if decision == models.ReviewDecisionApprove {
		if err := r.materialize(ctx, item); err != nil {
			return models.ReviewQueueItem{}, err
		}
	}

	decidedAt := r.now()
	updated, err := r.store.UpdateReviewDecision(ctx, itemID, decision, reviewerID, decidedAt)
	if err != nil {
		return models.ReviewQueueItem{}, fmt.Errorf("failed to record decision: %w", err)
	}
	if !updated {
		// Lost a race with another reviewer; re-read to see what won.
		current, err := r.store.GetReviewItem(ctx, itemID)
		if err != nil {
			return models.ReviewQueueItem{}, fmt.Errorf("failed to reload review item: %w", err)
		}
		if current.Status == decision {
			return current, nil
		}
		return models.ReviewQueueItem{}, fmt.Errorf("%w: item %s is %s", ErrConflict, itemID, current.Status)
	}

	r.logger.Info().
		Str("item_id", itemID).
		Str("claim_id", item.ClaimID).
		Str("decision", decision).
		Str("reviewer_id", reviewerID).
		Msg("Review item resolved")

	item.Status = decision
	item.ReviewerID = &reviewerID
	item.DecidedAt = &decidedAt
	return item, nil
}

// materialize creates the timeline event, evidence item and link the
// snapshot was withheld from. Every insert tolerates an existing row.
func (r *Router) materialize(ctx context.Context, item models.ReviewQueueItem) error {
	key := dedupe.Key(item.MessageID, item.Checksum, item.ThreadID)

	event := models.ClaimEvent{
		ClaimID:    item.ClaimID,
		EventType:  models.EventEmailReceived,
		OccurredAt: item.OccurredAt.UTC(),
		SourceID:   item.MessageID,
		ThreadID:   item.ThreadID,
		DedupeKey:  key,
	}
	created, err := r.store.InsertClaimEvent(ctx, &event)
	if err != nil {
		return fmt.Errorf("failed to insert approved event: %w", err)
	}
	if !created {
		existing, err := r.store.GetEventByDedupeKey(ctx, item.ClaimID, key)
		if err != nil {
			return fmt.Errorf("failed to load existing event: %w", err)
		}
		event = existing
	}

	evidence := models.EvidenceItem{
		ClaimID:          item.ClaimID,
		Kind:             models.EvidenceKindEmail,
		SourceSystem:     item.SourceSystem,
		SourceID:         item.MessageID,
		Checksum:         item.Checksum,
		OccurredAt:       item.OccurredAt.UTC(),
		Title:            item.Subject,
		RelevanceScore:   item.Score,
		RelevanceHard:    item.HardScore,
		RelevanceSoft:    item.SoftScore,
		RelevanceReasons: item.Reasons,
		DedupeKey:        key,
		RawBlobRef:       item.RawBlobRef,
	}
	itemCreated, err := r.store.InsertEvidenceItem(ctx, &evidence)
	if err != nil {
		return fmt.Errorf("failed to insert approved evidence: %w", err)
	}
	if !itemCreated {
		existing, err := r.store.GetEvidenceByDedupeKey(ctx, item.ClaimID, models.EvidenceKindEmail, key)
		if err != nil {
			return fmt.Errorf("failed to load existing evidence: %w", err)
		}
		evidence = existing
	}

	link := models.EvidenceLink{
		EventID:        event.ID,
		EvidenceItemID: evidence.ID,
		LinkType:       models.LinkTypeSource,
	}
	if _, err := r.store.InsertEvidenceLink(ctx, &link); err != nil {
		return fmt.Errorf("failed to link approved evidence: %w", err)
	}

	return nil
}
