package models

import "time"

// Claim is the slice of the claim record this pipeline needs. The claim
// subsystem owns the full record; we only read identity and ownership.
type Claim struct {
	ID           string     `db:"id" json:"id"`
	AssignedToID *string    `db:"assigned_to_id" json:"assigned_to_id,omitempty"`
	CreatedBy    *string    `db:"created_by" json:"created_by,omitempty"`
	Archived     bool       `db:"archived" json:"archived"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	ArchivedAt   *time.Time `db:"archived_at" json:"archived_at,omitempty"`
}

// OwnerID returns the actor a scheduled run is attributed to: the assigned
// adjuster when there is one, otherwise the claim creator. Empty means the
// claim has no resolvable owner and must be skipped by the nightly sync.
func (c Claim) OwnerID() string {
	if c.AssignedToID != nil && *c.AssignedToID != "" {
		return *c.AssignedToID
	}
	if c.CreatedBy != nil && *c.CreatedBy != "" {
		return *c.CreatedBy
	}
	return ""
}

// IdentityProfile is a per-claim snapshot of matchable identity facts.
// It is rebuilt by the claim subsystem and consumed read-only here.
type IdentityProfile struct {
	ClaimID           string   `json:"claim_id"`
	PolicyholderNames []string `json:"policyholder_names"`
	Addresses         []string `json:"addresses"`
	PolicyNumbers     []string `json:"policy_numbers"`
	ClaimNumbers      []string `json:"claim_numbers"`
	CarrierNames      []string `json:"carrier_names"`
	AdjusterEmails    []string `json:"adjuster_emails"`
	SubjectPatterns   []string `json:"subject_patterns"`
}

// Empty reports whether the profile carries no matchable facts at all.
func (p IdentityProfile) Empty() bool {
	return len(p.PolicyholderNames) == 0 &&
		len(p.Addresses) == 0 &&
		len(p.PolicyNumbers) == 0 &&
		len(p.ClaimNumbers) == 0 &&
		len(p.CarrierNames) == 0 &&
		len(p.AdjusterEmails) == 0 &&
		len(p.SubjectPatterns) == 0
}
