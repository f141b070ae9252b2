package models

import "time"

// Review queue statuses. PENDING items reach a terminal state only by
// human action.
const (
	ReviewStatusPending  = "PENDING"
	ReviewStatusApproved = "APPROVED"
	ReviewStatusRejected = "REJECTED"
)

// Review decisions accepted by the resolve endpoint.
const (
	ReviewDecisionApprove = "APPROVED"
	ReviewDecisionReject  = "REJECTED"
)

// ReviewQueueItem holds a candidate the scorer could not confidently
// accept or reject. The snapshot columns carry everything needed to
// materialize the withheld ClaimEvent/EvidenceItem on approval with the
// same dedupe-key discipline as auto-ingestion.
type ReviewQueueItem struct {
	ID           string     `db:"id" json:"id"`
	ClaimID      string     `db:"claim_id" json:"claim_id"`
	RunID        string     `db:"run_id" json:"run_id"`
	Status       string     `db:"status" json:"status"`
	Score        int        `db:"score" json:"score"`
	HardScore    int        `db:"hard_score" json:"hard_score"`
	SoftScore    int        `db:"soft_score" json:"soft_score"`
	Reasons      StringList `db:"reasons" json:"reasons"`
	Subject      string     `db:"subject" json:"subject"`
	Sender       string     `db:"sender" json:"sender"`
	SourceSystem string     `db:"source_system" json:"source_system"`
	MessageID    string     `db:"message_id" json:"message_id"`
	ThreadID     string     `db:"thread_id" json:"thread_id"`
	Checksum     string     `db:"checksum" json:"checksum"`
	OccurredAt   time.Time  `db:"occurred_at" json:"occurred_at"`
	RawBlobRef   string     `db:"raw_blob_ref" json:"raw_blob_ref,omitempty"`
	ReviewerID   *string    `db:"reviewer_id" json:"reviewer_id,omitempty"`
	DecidedAt    *time.Time `db:"decided_at" json:"decided_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// Decided reports whether the item already reached a terminal state.
func (r ReviewQueueItem) Decided() bool {
	return r.Status == ReviewStatusApproved || r.Status == ReviewStatusRejected
}
