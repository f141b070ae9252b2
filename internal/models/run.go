package models

import "time"

// Ingestion run modes.
const (
	RunModeManual    = "manual"
	RunModeScheduled = "scheduled"
)

// Ingestion run statuses. A run moves PENDING -> RUNNING and then to
// exactly one terminal state.
const (
	RunStatusPending   = "PENDING"
	RunStatusRunning   = "RUNNING"
	RunStatusSucceeded = "SUCCEEDED"
	RunStatusPartial   = "PARTIAL"
	RunStatusFailed    = "FAILED"
)

// RunCounts aggregates per-candidate outcomes of one run.
type RunCounts struct {
	Scanned         int `db:"scanned" json:"scanned"`
	AutoIngested    int `db:"auto_ingested" json:"auto_ingested"`
	QueuedForReview int `db:"queued_for_review" json:"queued_for_review"`
	Rejected        int `db:"rejected" json:"rejected"`
	Errors          int `db:"errors" json:"errors"`
}

// IngestionRun records one ingestion attempt for one claim. At most one
// row exists per (claim_id, idempotency_key), which is what makes a
// nightly re-fire for the same claim on the same day a safe no-op.
type IngestionRun struct {
	ID             string     `db:"id" json:"id"`
	ClaimID        string     `db:"claim_id" json:"claim_id"`
	Mode           string     `db:"mode" json:"mode"`
	IdempotencyKey string     `db:"idempotency_key" json:"idempotency_key"`
	ActorID        string     `db:"actor_id" json:"actor_id"`
	WindowStart    time.Time  `db:"window_start" json:"window_start"`
	WindowEnd      time.Time  `db:"window_end" json:"window_end"`
	Status         string     `db:"status" json:"status"`
	StartedAt      *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt    *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	RunCounts
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Terminal reports whether the run reached a final state. A terminal run
// is returned unchanged on idempotent replay.
func (r IngestionRun) Terminal() bool {
	switch r.Status {
	case RunStatusSucceeded, RunStatusPartial, RunStatusFailed:
		return true
	}
	return false
}
