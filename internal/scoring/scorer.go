// Package scoring decides whether a candidate message relates to a
// claim. Scoring is a pure function of the identity profile and the
// candidate: no I/O, no clock, identical inputs always yield identical
// results.
package scoring

import (
	"strings"

	"claimsync/internal/models"
	"claimsync/internal/utils"
)

// Signal weights. Hard signals carry a large fixed weight each and are
// additive; the total score is capped at 100.
const (
	hardSignalWeight  = 40
	surnameWeight     = 10
	addressWeight     = 8
	carrierHintWeight = 12

	maxScore = 100
)

// Breakdown separates high-confidence identity evidence from fuzzy
// resemblance. Soft signals never contribute to Hard.
type Breakdown struct {
	Hard int `json:"hard"`
	Soft int `json:"soft"`
}

// Result is the outcome of scoring one candidate against one profile.
type Result struct {
	Score     int       `json:"score"`
	Reasons   []string  `json:"reasons"`
	Breakdown Breakdown `json:"breakdown"`
}

// Decision is the triage tier derived from a Result.
type Decision string

const (
	DecisionAutoIngest Decision = "AUTO_INGEST"
	DecisionReview     Decision = "REVIEW"
	DecisionReject     Decision = "REJECT"
)

// Config holds the decision-tier thresholds. The review cutoff in
// particular is a tuned value, not a guaranteed constant; deployments
// override it via REVIEW_SOFT_THRESHOLD until validated against real
// triage outcomes.
type Config struct {
	AutoIngestScoreMin int // total score required to auto-ingest
	AutoIngestHardMin  int // hard score required to auto-ingest
	ReviewSoftMin      int // soft score required to route to review
}

// DefaultConfig returns the documented default thresholds.
func DefaultConfig() Config {
	return Config{
		AutoIngestScoreMin: 70,
		AutoIngestHardMin:  hardSignalWeight,
		ReviewSoftMin:      1,
	}
}

// Scorer evaluates candidates against identity profiles.
type Scorer struct {
	cfg Config
}

// New creates a scorer with the given thresholds.
func New(cfg Config) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score evaluates the independent identity signals of a candidate.
// Malformed candidates (missing headers or bodies) are handled with
// empty-string defaults and never fail.
func (s *Scorer) Score(profile models.IdentityProfile, c models.RawCandidate) Result {
	var res Result

	haystack := strings.Join([]string{
		c.Subject, c.Snippet, c.Headers.Subject, c.BodyText, c.BodyHTML,
	}, " ")
	filenames := attachmentNames(c)
	addressHeaders := strings.Join([]string{c.Headers.From, c.Headers.To, c.Headers.CC}, " ")
	tokens := utils.TokenSet(haystack)

	// Hard signals, evaluated in a fixed order so reasons are stable.
	if matchAnyNumber(profile.ClaimNumbers, haystack, filenames) {
		res.Breakdown.Hard += hardSignalWeight
		res.Reasons = append(res.Reasons, "matched claim number")
	}
	if matchAnyNumber(profile.PolicyNumbers, haystack, filenames) {
		res.Breakdown.Hard += hardSignalWeight
		res.Reasons = append(res.Reasons, "matched policy number")
	}
	adjusterHit := matchAnyAddress(profile.AdjusterEmails, addressHeaders)
	if adjusterHit {
		res.Breakdown.Hard += hardSignalWeight
		res.Reasons = append(res.Reasons, "known adjuster address")
	}
	if matchAnySubjectPattern(profile.SubjectPatterns, c.Subject, c.Headers.Subject) {
		res.Breakdown.Hard += hardSignalWeight
		res.Reasons = append(res.Reasons, "subject matched known pattern")
	}

	// Soft signals: fuzzy resemblance, one small weight per category.
	if matchAnySurname(profile.PolicyholderNames, tokens) {
		res.Breakdown.Soft += surnameWeight
		res.Reasons = append(res.Reasons, "policyholder surname present")
	}
	if matchAnyAddressFragment(profile.Addresses, tokens) {
		res.Breakdown.Soft += addressWeight
		res.Reasons = append(res.Reasons, "address fragment present")
	}
	if !adjusterHit && matchCarrierDomain(profile.CarrierNames, c.Headers.From) {
		res.Breakdown.Soft += carrierHintWeight
		res.Reasons = append(res.Reasons, "sender domain resembles carrier")
	}

	res.Score = res.Breakdown.Hard + res.Breakdown.Soft
	if res.Score > maxScore {
		res.Score = maxScore
	}
	return res
}

// Decide maps a scoring result to a triage tier. A hard signal that
// falls short of the auto-ingest bar still routes to review rather than
// silently dropping identity-bearing mail.
func (s *Scorer) Decide(r Result) Decision {
	if r.Breakdown.Hard >= s.cfg.AutoIngestHardMin && r.Score >= s.cfg.AutoIngestScoreMin {
		return DecisionAutoIngest
	}
	if r.Breakdown.Hard > 0 {
		return DecisionReview
	}
	if r.Breakdown.Soft >= s.cfg.ReviewSoftMin {
		return DecisionReview
	}
	return DecisionReject
}

func attachmentNames(c models.RawCandidate) string {
	if len(c.Attachments) == 0 {
		return ""
	}
	names := make([]string, 0, len(c.Attachments))
	for _, a := range c.Attachments {
		names = append(names, a.Filename)
	}
	return strings.Join(names, " ")
}

// matchAnyNumber looks for an exact (folded) occurrence of a claim or
// policy number in the message text or any attachment filename.
func matchAnyNumber(numbers []string, haystack, filenames string) bool {
	for _, n := range numbers {
		if strings.TrimSpace(n) == "" {
			continue
		}
		if utils.ContainsFolded(haystack, n) || utils.ContainsFolded(filenames, n) {
			return true
		}
	}
	return false
}

func matchAnyAddress(emails []string, addressHeaders string) bool {
	for _, e := range emails {
		if strings.TrimSpace(e) == "" {
			continue
		}
		if utils.ContainsFolded(addressHeaders, e) {
			return true
		}
	}
	return false
}

func matchAnySubjectPattern(patterns []string, subjects ...string) bool {
	for _, p := range patterns {
		if strings.TrimSpace(p) == "" {
			continue
		}
		for _, subject := range subjects {
			if utils.ContainsFolded(subject, p) {
				return true
			}
		}
	}
	return false
}

// matchAnySurname treats the last token of a policyholder name as the
// surname and looks for it as a whole token in the message text.
func matchAnySurname(names []string, tokens map[string]struct{}) bool {
	for _, name := range names {
		parts := utils.Tokenize(name)
		if len(parts) == 0 {
			continue
		}
		surname := parts[len(parts)-1]
		if len(surname) < 3 {
			continue
		}
		if _, ok := tokens[surname]; ok {
			return true
		}
	}
	return false
}

// matchAnyAddressFragment fires on a street-number token or a
// sufficiently distinctive word (city, street name) from a known address.
func matchAnyAddressFragment(addresses []string, tokens map[string]struct{}) bool {
	for _, addr := range addresses {
		for _, tok := range utils.Tokenize(addr) {
			if isStreetNumber(tok) || len(tok) >= 4 {
				if _, ok := tokens[tok]; ok {
					return true
				}
			}
		}
	}
	return false
}

func isStreetNumber(tok string) bool {
	if len(tok) < 2 {
		return false
	}
	for _, r := range tok {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// matchCarrierDomain checks whether the sender's domain resembles a known
// carrier name, e.g. "Acme Insurance" against "adjuster@acme-claims.com".
// Only consulted when no exact adjuster-email hit fired.
func matchCarrierDomain(carriers []string, fromHeader string) bool {
	at := strings.LastIndex(fromHeader, "@")
	if at < 0 {
		return false
	}
	domain := utils.Fold(strings.Trim(fromHeader[at+1:], "> \t"))
	if domain == "" {
		return false
	}
	for _, carrier := range carriers {
		for _, tok := range utils.Tokenize(carrier) {
			if len(tok) < 4 || isStreetNumber(tok) {
				continue
			}
			if tok == "insurance" || tok == "assurance" || tok == "mutual" || tok == "group" {
				continue
			}
			if strings.Contains(domain, tok) {
				return true
			}
		}
	}
	return false
}
