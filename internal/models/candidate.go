package models

import "time"

// CandidateHeaders carries the address headers the scorer inspects.
// Missing headers stay as empty strings; the scorer must tolerate that.
type CandidateHeaders struct {
	From    string `json:"from"`
	To      string `json:"to"`
	CC      string `json:"cc"`
	Subject string `json:"subject"`
}

// CandidateAttachment describes one attachment of a candidate message.
// Only the filename participates in relevance scoring; the bytes travel
// inside the raw message blob.
type CandidateAttachment struct {
	Filename string `json:"filename"`
}

// RawCandidate is a transient representation of a message that might
// relate to a claim. It exists only for the duration of a scoring pass
// and is never persisted verbatim; what survives ingestion are the
// derived ClaimEvent/EvidenceItem rows and the raw blob in object
// storage.
type RawCandidate struct {
	SourceSystem string                `json:"source_system"`
	MessageID    string                `json:"message_id"`
	ThreadID     string                `json:"thread_id"`
	Checksum     string                `json:"checksum"`
	OccurredAt   time.Time             `json:"occurred_at"`
	Subject      string                `json:"subject"`
	Snippet      string                `json:"snippet"`
	Headers      CandidateHeaders      `json:"headers"`
	BodyText     string                `json:"body_text"`
	BodyHTML     string                `json:"body_html"`
	Attachments  []CandidateAttachment `json:"attachments"`
	Raw          []byte                `json:"-"`
}
