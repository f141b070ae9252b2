package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"claimsync/internal/database"
	"claimsync/internal/models"
)

// CreateRun inserts a run in PENDING state. If a run already holds the
// (claim_id, idempotency_key) slot, the existing run is returned with
// created=false; the caller decides whether to replay it.
func (s *Store) CreateRun(ctx context.Context, run *models.IngestionRun) (models.IngestionRun, bool, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Status == "" {
		run.Status = models.RunStatusPending
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	query := s.rebind(`
		INSERT INTO ingestion_runs
			(id, claim_id, mode, idempotency_key, actor_id, window_start, window_end, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := s.db.ExecContext(ctx, query,
		run.ID,
		run.ClaimID,
		run.Mode,
		run.IdempotencyKey,
		run.ActorID,
		run.WindowStart,
		run.WindowEnd,
		run.Status,
		run.CreatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			existing, getErr := s.GetRunByKey(ctx, run.ClaimID, run.IdempotencyKey)
			if getErr != nil {
				return models.IngestionRun{}, false, fmt.Errorf("failed to fetch existing run: %w", getErr)
			}
			return existing, false, nil
		}
		return models.IngestionRun{}, false, fmt.Errorf("failed to create ingestion run: %w", err)
	}

	return *run, true, nil
}

// GetRun fetches a run by ID.
func (s *Store) GetRun(ctx context.Context, runID string) (models.IngestionRun, error) {
	var run models.IngestionRun
	query := s.rebind(`SELECT * FROM ingestion_runs WHERE id = ?`)

	if err := s.db.GetContext(ctx, &run, query, runID); err != nil {
		if notFound(err) {
			return models.IngestionRun{}, ErrNotFound
		}
		return models.IngestionRun{}, fmt.Errorf("failed to get ingestion run: %w", err)
	}
	return run, nil
}

// GetRunByKey fetches the run holding an idempotency key for a claim.
func (s *Store) GetRunByKey(ctx context.Context, claimID, idempotencyKey string) (models.IngestionRun, error) {
	var run models.IngestionRun
	query := s.rebind(`SELECT * FROM ingestion_runs WHERE claim_id = ? AND idempotency_key = ?`)

	if err := s.db.GetContext(ctx, &run, query, claimID, idempotencyKey); err != nil {
		if notFound(err) {
			return models.IngestionRun{}, ErrNotFound
		}
		return models.IngestionRun{}, fmt.Errorf("failed to get ingestion run: %w", err)
	}
	return run, nil
}

// ListRunsByClaim returns a claim's runs, newest first.
func (s *Store) ListRunsByClaim(ctx context.Context, claimID string, limit int) ([]models.IngestionRun, error) {
	if limit <= 0 {
		limit = 50
	}

	var runs []models.IngestionRun
	query := s.rebind(`SELECT * FROM ingestion_runs WHERE claim_id = ? ORDER BY created_at DESC LIMIT ?`)

	if err := s.db.SelectContext(ctx, &runs, query, claimID, limit); err != nil {
		return nil, fmt.Errorf("failed to list ingestion runs: %w", err)
	}
	return runs, nil
}

// MarkRunRunning transitions a PENDING run to RUNNING and stamps its
// start time. Only the PENDING row matches, so a concurrent claimer
// loses cleanly with claimed=false.
func (s *Store) MarkRunRunning(ctx context.Context, runID string, startedAt time.Time) (bool, error) {
	query := s.rebind(`UPDATE ingestion_runs SET status = ?, started_at = ? WHERE id = ? AND status = ?`)

	result, err := s.db.ExecContext(ctx, query, models.RunStatusRunning, startedAt, runID, models.RunStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to mark run running: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected > 0, nil
}

// CompleteRun writes a run's terminal status and final counters.
func (s *Store) CompleteRun(ctx context.Context, runID, status string, counts models.RunCounts, completedAt time.Time) error {
	query := s.rebind(`
		UPDATE ingestion_runs
		SET status = ?, completed_at = ?,
			scanned = ?, auto_ingested = ?, queued_for_review = ?, rejected = ?, errors = ?
		WHERE id = ?
	`)

	_, err := s.db.ExecContext(ctx, query,
		status,
		completedAt,
		counts.Scanned,
		counts.AutoIngested,
		counts.QueuedForReview,
		counts.Rejected,
		counts.Errors,
		runID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete ingestion run: %w", err)
	}
	return nil
}
