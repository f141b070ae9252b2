// Package dedupe derives the deterministic keys and orderings the
// ingestion pipeline relies on: the dedupe key guards at-most-once
// persistence, the timeline sort makes the rendered claim timeline
// independent of storage iteration or re-ingestion order.
package dedupe

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sort"

	"claimsync/internal/models"
)

// Key derives the dedupe fingerprint for a candidate from its message ID,
// content checksum and thread ID. The encoding is length-prefixed, so the
// same triple always yields the same key and any single differing input
// yields a different one (no ambiguity between ("ab","c") and ("a","bc")).
func Key(messageID, checksum, threadID string) string {
	h := sha256.New()
	for _, part := range []string{messageID, checksum, threadID} {
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(part)))
		h.Write(lenBuf[:])
		h.Write([]byte(part))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Less is the total order over claim events: occurred_at first, then the
// fixed event-type priority rank, then source_id. Distinct events never
// compare equal, so sorting the same multiset twice yields the same order.
func Less(a, b models.ClaimEvent) bool {
	at, bt := a.OccurredAt.UTC(), b.OccurredAt.UTC()
	if !at.Equal(bt) {
		return at.Before(bt)
	}
	if a.EventTypePriority != b.EventTypePriority {
		return a.EventTypePriority < b.EventTypePriority
	}
	return a.SourceID < b.SourceID
}

// SortEvents orders a claim timeline in place using Less.
func SortEvents(events []models.ClaimEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return Less(events[i], events[j])
	})
}
