package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Event types recorded on the claim timeline.
const (
	EventEmailReceived    = "EMAIL_RECEIVED"
	EventEmailSent        = "EMAIL_SENT"
	EventDocumentUploaded = "DOCUMENT_UPLOADED"
	EventNote             = "NOTE"
)

// eventTypePriorities is the fixed tie-break ranking used when two events
// share a timestamp. Lower sorts first. Unknown types sort last so a new
// event type never reshuffles existing timelines.
var eventTypePriorities = map[string]int{
	EventEmailReceived:    10,
	EventEmailSent:        20,
	EventDocumentUploaded: 30,
	EventNote:             40,
}

// EventTypePriority returns the tie-break rank for an event type.
func EventTypePriority(eventType string) int {
	if p, ok := eventTypePriorities[eventType]; ok {
		return p
	}
	return 100
}

// Evidence kinds.
const (
	EvidenceKindEmail      = "email"
	EvidenceKindAttachment = "attachment"
	EvidenceKindDocument   = "document"
)

// Evidence link types.
const (
	LinkTypeSource     = "source"
	LinkTypeAttachment = "attachment"
)

// ClaimEvent is one entry of the append-only claim timeline log. Rows are
// created during an ingestion run and never mutated; corrections happen by
// inserting new events. At most one row exists per (claim_id, dedupe_key).
type ClaimEvent struct {
	ID                string    `db:"id" json:"id"`
	ClaimID           string    `db:"claim_id" json:"claim_id"`
	EventType         string    `db:"event_type" json:"event_type"`
	OccurredAt        time.Time `db:"occurred_at" json:"occurred_at"`
	SourceID          string    `db:"source_id" json:"source_id"`
	ThreadID          string    `db:"thread_id" json:"thread_id"`
	EventTypePriority int       `db:"event_type_priority" json:"event_type_priority"`
	DedupeKey         string    `db:"dedupe_key" json:"dedupe_key"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// EvidenceItem is one unique piece of claim evidence. At most one row
// exists per (claim_id, kind, dedupe_key); the checksum is a secondary
// cross-source idempotency signal.
type EvidenceItem struct {
	ID               string     `db:"id" json:"id"`
	ClaimID          string     `db:"claim_id" json:"claim_id"`
	Kind             string     `db:"kind" json:"kind"`
	SourceSystem     string     `db:"source_system" json:"source_system"`
	SourceID         string     `db:"source_id" json:"source_id"`
	Checksum         string     `db:"checksum" json:"checksum"`
	OccurredAt       time.Time  `db:"occurred_at" json:"occurred_at"`
	Title            string     `db:"title" json:"title"`
	RelevanceScore   int        `db:"relevance_score" json:"relevance_score"`
	RelevanceHard    int        `db:"relevance_hard" json:"relevance_hard"`
	RelevanceSoft    int        `db:"relevance_soft" json:"relevance_soft"`
	RelevanceReasons StringList `db:"relevance_reasons" json:"relevance_reasons"`
	DedupeKey        string     `db:"dedupe_key" json:"dedupe_key"`
	RawBlobRef       string     `db:"raw_blob_ref" json:"raw_blob_ref,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
}

// EvidenceLink joins one ClaimEvent to one EvidenceItem. At most one row
// exists per (event_id, evidence_item_id, link_type).
type EvidenceLink struct {
	ID             string    `db:"id" json:"id"`
	EventID        string    `db:"event_id" json:"event_id"`
	EvidenceItemID string    `db:"evidence_item_id" json:"evidence_item_id"`
	LinkType       string    `db:"link_type" json:"link_type"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// StringList stores a []string as a JSON text column so it round-trips
// through both PostgreSQL and MySQL without driver-specific array types.
type StringList []string

// Value implements driver.Valuer.
func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (s *StringList) Scan(src interface{}) error {
	if src == nil {
		*s = nil
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into StringList", src)
	}
	if len(data) == 0 {
		*s = nil
		return nil
	}
	return json.Unmarshal(data, (*[]string)(s))
}
