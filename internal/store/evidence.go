package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"claimsync/internal/database"
	"claimsync/internal/models"
)

// InsertEvidenceItem stores one unique piece of evidence. Returns false
// when the (claim_id, kind, dedupe_key) slot is already taken.
func (s *Store) InsertEvidenceItem(ctx context.Context, item *models.EvidenceItem) (bool, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	query := s.rebind(`
		INSERT INTO evidence_items
			(id, claim_id, kind, source_system, source_id, checksum, occurred_at, title,
			 relevance_score, relevance_hard, relevance_soft, relevance_reasons,
			 dedupe_key, raw_blob_ref, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := s.db.ExecContext(ctx, query,
		item.ID,
		item.ClaimID,
		item.Kind,
		item.SourceSystem,
		item.SourceID,
		item.Checksum,
		item.OccurredAt,
		item.Title,
		item.RelevanceScore,
		item.RelevanceHard,
		item.RelevanceSoft,
		item.RelevanceReasons,
		item.DedupeKey,
		item.RawBlobRef,
		item.CreatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to insert evidence item: %w", err)
	}

	return true, nil
}

// GetEvidenceByDedupeKey fetches the evidence item holding a dedupe key.
func (s *Store) GetEvidenceByDedupeKey(ctx context.Context, claimID, kind, dedupeKey string) (models.EvidenceItem, error) {
	var item models.EvidenceItem
	query := s.rebind(`SELECT * FROM evidence_items WHERE claim_id = ? AND kind = ? AND dedupe_key = ?`)

	if err := s.db.GetContext(ctx, &item, query, claimID, kind, dedupeKey); err != nil {
		if notFound(err) {
			return models.EvidenceItem{}, ErrNotFound
		}
		return models.EvidenceItem{}, fmt.Errorf("failed to get evidence item: %w", err)
	}
	return item, nil
}

// ListEvidenceByClaim returns all evidence items for a claim.
func (s *Store) ListEvidenceByClaim(ctx context.Context, claimID string) ([]models.EvidenceItem, error) {
	var items []models.EvidenceItem
	query := s.rebind(`SELECT * FROM evidence_items WHERE claim_id = ? ORDER BY occurred_at, id`)

	if err := s.db.SelectContext(ctx, &items, query, claimID); err != nil {
		return nil, fmt.Errorf("failed to list evidence items: %w", err)
	}
	return items, nil
}

// InsertEvidenceLink joins an event to an evidence item. Returns false if
// the link already exists.
func (s *Store) InsertEvidenceLink(ctx context.Context, link *models.EvidenceLink) (bool, error) {
	if link.ID == "" {
		link.ID = uuid.NewString()
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}

	query := s.rebind(`
		INSERT INTO evidence_links (id, event_id, evidence_item_id, link_type, created_at)
		VALUES (?, ?, ?, ?, ?)
	`)

	_, err := s.db.ExecContext(ctx, query,
		link.ID,
		link.EventID,
		link.EvidenceItemID,
		link.LinkType,
		link.CreatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to insert evidence link: %w", err)
	}

	return true, nil
}
