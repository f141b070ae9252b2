package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"claimsync/internal/models"
)

// InsertReviewItem enqueues a candidate for human review.
func (s *Store) InsertReviewItem(ctx context.Context, item *models.ReviewQueueItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.Status == "" {
		item.Status = models.ReviewStatusPending
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	query := s.rebind(`
		INSERT INTO review_queue_items
			(id, claim_id, run_id, status, score, hard_score, soft_score, reasons,
			 subject, sender, source_system, message_id, thread_id, checksum,
			 occurred_at, raw_blob_ref, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := s.db.ExecContext(ctx, query,
		item.ID,
		item.ClaimID,
		item.RunID,
		item.Status,
		item.Score,
		item.HardScore,
		item.SoftScore,
		item.Reasons,
		item.Subject,
		item.Sender,
		item.SourceSystem,
		item.MessageID,
		item.ThreadID,
		item.Checksum,
		item.OccurredAt,
		item.RawBlobRef,
		item.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert review item: %w", err)
	}
	return nil
}

// GetReviewItem fetches a review queue item by ID.
func (s *Store) GetReviewItem(ctx context.Context, itemID string) (models.ReviewQueueItem, error) {
	var item models.ReviewQueueItem
	query := s.rebind(`SELECT * FROM review_queue_items WHERE id = ?`)

	if err := s.db.GetContext(ctx, &item, query, itemID); err != nil {
		if notFound(err) {
			return models.ReviewQueueItem{}, ErrNotFound
		}
		return models.ReviewQueueItem{}, fmt.Errorf("failed to get review item: %w", err)
	}
	return item, nil
}

// ListPendingReviewByClaim returns a claim's undecided review items,
// oldest first so reviewers work the backlog in arrival order.
func (s *Store) ListPendingReviewByClaim(ctx context.Context, claimID string) ([]models.ReviewQueueItem, error) {
	var items []models.ReviewQueueItem
	query := s.rebind(`SELECT * FROM review_queue_items WHERE claim_id = ? AND status = ? ORDER BY created_at, id`)

	if err := s.db.SelectContext(ctx, &items, query, claimID, models.ReviewStatusPending); err != nil {
		return nil, fmt.Errorf("failed to list review items: %w", err)
	}
	return items, nil
}

// UpdateReviewDecision moves a PENDING item to its terminal status. Only
// the PENDING row matches; a second decision on the same item reports
// updated=false and the caller resolves whether it is a benign replay.
func (s *Store) UpdateReviewDecision(ctx context.Context, itemID, status, reviewerID string, decidedAt time.Time) (bool, error) {
	query := s.rebind(`
		UPDATE review_queue_items
		SET status = ?, reviewer_id = ?, decided_at = ?
		WHERE id = ? AND status = ?
	`)

	result, err := s.db.ExecContext(ctx, query, status, reviewerID, decidedAt, itemID, models.ReviewStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to update review decision: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected > 0, nil
}
