// Package store persists the pipeline's entities. Uniqueness constraints
// are the idempotency mechanism: duplicate writes surface as constraint
// violations and are converted into no-ops, so at-most-once semantics
// survive retries and multi-replica deployment without in-process locks.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store provides access to the claims database.
type Store struct {
	db     *sqlx.DB
	logger zerolog.Logger
}

// New creates a store over an open database connection.
func New(db *sqlx.DB, logger zerolog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// CreateTables creates the pipeline's tables and indexes if they do not
// exist. The claims table is owned by the claim subsystem and assumed
// present.
func (s *Store) CreateTables(ctx context.Context) error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS claim_events (
			id VARCHAR(36) PRIMARY KEY,
			claim_id VARCHAR(36) NOT NULL,
			event_type VARCHAR(32) NOT NULL,
			occurred_at TIMESTAMP NOT NULL,
			source_id VARCHAR(255) NOT NULL,
			thread_id VARCHAR(255) NOT NULL DEFAULT '',
			event_type_priority INT NOT NULL,
			dedupe_key VARCHAR(64) NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS evidence_items (
			id VARCHAR(36) PRIMARY KEY,
			claim_id VARCHAR(36) NOT NULL,
			kind VARCHAR(32) NOT NULL,
			source_system VARCHAR(64) NOT NULL DEFAULT '',
			source_id VARCHAR(255) NOT NULL DEFAULT '',
			checksum VARCHAR(64) NOT NULL DEFAULT '',
			occurred_at TIMESTAMP NOT NULL,
			title TEXT,
			relevance_score INT NOT NULL DEFAULT 0,
			relevance_hard INT NOT NULL DEFAULT 0,
			relevance_soft INT NOT NULL DEFAULT 0,
			relevance_reasons TEXT,
			dedupe_key VARCHAR(64) NOT NULL,
			raw_blob_ref TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS evidence_links (
			id VARCHAR(36) PRIMARY KEY,
			event_id VARCHAR(36) NOT NULL,
			evidence_item_id VARCHAR(36) NOT NULL,
			link_type VARCHAR(32) NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS ingestion_runs (
			id VARCHAR(36) PRIMARY KEY,
			claim_id VARCHAR(36) NOT NULL,
			mode VARCHAR(16) NOT NULL,
			idempotency_key VARCHAR(128) NOT NULL,
			actor_id VARCHAR(36) NOT NULL DEFAULT '',
			window_start TIMESTAMP NOT NULL,
			window_end TIMESTAMP NOT NULL,
			status VARCHAR(16) NOT NULL,
			started_at TIMESTAMP NULL,
			completed_at TIMESTAMP NULL,
			scanned INT NOT NULL DEFAULT 0,
			auto_ingested INT NOT NULL DEFAULT 0,
			queued_for_review INT NOT NULL DEFAULT 0,
			rejected INT NOT NULL DEFAULT 0,
			errors INT NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS review_queue_items (
			id VARCHAR(36) PRIMARY KEY,
			claim_id VARCHAR(36) NOT NULL,
			run_id VARCHAR(36) NOT NULL,
			status VARCHAR(16) NOT NULL,
			score INT NOT NULL DEFAULT 0,
			hard_score INT NOT NULL DEFAULT 0,
			soft_score INT NOT NULL DEFAULT 0,
			reasons TEXT,
			subject TEXT,
			sender TEXT,
			source_system VARCHAR(64) NOT NULL DEFAULT '',
			message_id VARCHAR(255) NOT NULL DEFAULT '',
			thread_id VARCHAR(255) NOT NULL DEFAULT '',
			checksum VARCHAR(64) NOT NULL DEFAULT '',
			occurred_at TIMESTAMP NOT NULL,
			raw_blob_ref TEXT,
			reviewer_id VARCHAR(36) NULL,
			decided_at TIMESTAMP NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, query := range tables {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	// The unique indexes are load-bearing: they enforce the at-most-once
	// invariants the orchestrator and review router rely on.
	indexes := []string{
		`CREATE UNIQUE INDEX uq_claim_events_dedupe ON claim_events(claim_id, dedupe_key)`,
		`CREATE UNIQUE INDEX uq_evidence_items_dedupe ON evidence_items(claim_id, kind, dedupe_key)`,
		`CREATE UNIQUE INDEX uq_evidence_links ON evidence_links(event_id, evidence_item_id, link_type)`,
		`CREATE UNIQUE INDEX uq_ingestion_runs_idem ON ingestion_runs(claim_id, idempotency_key)`,
		`CREATE INDEX idx_claim_events_claim ON claim_events(claim_id, occurred_at)`,
		`CREATE INDEX idx_evidence_items_checksum ON evidence_items(checksum)`,
		`CREATE INDEX idx_review_queue_claim_status ON review_queue_items(claim_id, status)`,
		`CREATE INDEX idx_ingestion_runs_claim ON ingestion_runs(claim_id, created_at)`,
	}

	for _, query := range indexes {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			// Index creation is retried on every boot; "already exists"
			// is the common case and not worth failing startup over.
			s.logger.Debug().Err(err).Msg("Index creation skipped")
		}
	}

	return nil
}

// rebind adapts ?-style placeholders to the connected driver.
func (s *Store) rebind(query string) string {
	return s.db.Rebind(query)
}

func notFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
