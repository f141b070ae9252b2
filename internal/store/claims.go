package store

import (
	"context"
	"fmt"

	"claimsync/internal/models"
)

// GetClaim fetches the pipeline's view of a claim.
func (s *Store) GetClaim(ctx context.Context, claimID string) (models.Claim, error) {
	var claim models.Claim
	query := s.rebind(`SELECT id, assigned_to_id, created_by, archived, created_at, archived_at FROM claims WHERE id = ?`)

	if err := s.db.GetContext(ctx, &claim, query, claimID); err != nil {
		if notFound(err) {
			return models.Claim{}, ErrNotFound
		}
		return models.Claim{}, fmt.Errorf("failed to get claim: %w", err)
	}
	return claim, nil
}

// ListActiveClaims returns unarchived claims, oldest first, capped at
// limit. The cap keeps a single nightly batch bounded no matter how the
// book of claims grows.
func (s *Store) ListActiveClaims(ctx context.Context, limit int) ([]models.Claim, error) {
	if limit <= 0 {
		limit = 200
	}

	var claims []models.Claim
	query := s.rebind(`
		SELECT id, assigned_to_id, created_by, archived, created_at, archived_at
		FROM claims
		WHERE archived = FALSE
		ORDER BY created_at, id
		LIMIT ?
	`)

	if err := s.db.SelectContext(ctx, &claims, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list active claims: %w", err)
	}
	return claims, nil
}
