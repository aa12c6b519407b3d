// Package domain holds the entities shared across the matching engine, the
// stores, and the ledger views. Ids are opaque strings; each store backend
// decides the concrete format and validates references it is handed.
package domain

import "time"

// BloodGroup is one of O/A/B/AB with a +/- suffix. Values are compared
// case-insensitively after trimming, so the type does not normalize.
type BloodGroup string

// MatchStatus tracks the lifecycle of a committed match. Only Matched is
// produced by the engine; Cancelled exists for operator-driven transitions.
type MatchStatus string

const (
	StatusMatched   MatchStatus = "Matched"
	StatusCancelled MatchStatus = "Cancelled"
)

// MatchSource distinguishes engine-produced matches from operator overrides.
type MatchSource string

const (
	SourceAutomatic MatchSource = "automatic"
	SourceManual    MatchSource = "manual"
)

// Donor is a registered organ donor. A donor with Consumed=true is never
// selected by a later match run.
type Donor struct {
	ID            string
	FullName      string
	Age           int
	Gender        string
	BloodGroup    BloodGroup
	OrganType     string
	City          string
	State         string
	ContactNumber string
	Email         string
	HealthHistory string
	Consent       bool
	Consumed      bool
	RegisteredAt  time.Time
}

// Recipient is a registered organ recipient, subject to the same consumed
// invariant as Donor.
type Recipient struct {
	ID             string
	Name           string
	Email          string
	Organ          string
	BloodGroup     BloodGroup
	MedicalHistory string
	Consumed       bool
	RegisteredAt   time.Time
}

// Match is a committed donor/recipient pairing. Immutable once created except
// for Status transitions.
type Match struct {
	ID            string
	DonorID       string
	RecipientID   string
	Organ         string
	Compatibility int // percentage, 0-100
	Status        MatchStatus
	Source        MatchSource
	CreatedAt     time.Time
}

// LedgerRecord is the local append-only audit entry written alongside every
// Match. Never updated or deleted outside the administrative wipe.
type LedgerRecord struct {
	ID          string
	BlockID     string
	DonorID     string
	RecipientID string
	Organ       string
	Status      MatchStatus
	Meta        map[string]string
	Timestamp   time.Time
}

// MetaCompatibility is the metadata key carrying the compatibility score.
const MetaCompatibility = "compatibility"

// MatchSummary is the per-pair result of one match-run iteration.
type MatchSummary struct {
	DonorName     string
	RecipientName string
	Organ         string
	Compatibility int
	Status        MatchStatus
	BlockID       string
	Mirrored      bool
}

// CycleOutcome classifies the result of a whole match run.
type CycleOutcome string

const (
	// OutcomeNoCandidates means no unconsumed consenting donors or no
	// unconsumed recipients existed when the cycle started.
	OutcomeNoCandidates CycleOutcome = "no_candidates"
	// OutcomeNoCompatiblePairs means candidates existed but none satisfied
	// the compatibility rule.
	OutcomeNoCompatiblePairs CycleOutcome = "no_compatible_pairs"
	// OutcomeMatched means at least one pair was committed.
	OutcomeMatched CycleOutcome = "matched"
)

// CycleResult reports a match run. MirrorFailures counts committed matches
// whose external-ledger mirror call failed; those commits still stand.
type CycleResult struct {
	Outcome        CycleOutcome
	Matches        []MatchSummary
	MirrorFailures int
}

// EnrichedLedgerRecord is a local ledger record with donor/recipient ids
// resolved to display names for the read side.
type EnrichedLedgerRecord struct {
	LedgerRecord
	DonorName     string
	RecipientName string
}

// EnrichedMatch is a committed match with party names resolved for display.
type EnrichedMatch struct {
	Match
	DonorName     string
	RecipientName string
}

// ExternalLedgerRecord is one entry from the external trust service, with a
// display-only sequential block number assigned in fetch order.
type ExternalLedgerRecord struct {
	Seq           int
	Donor         string
	Recipient     string
	Organ         string
	Status        string
	Compatibility string
	Timestamp     string
}

// Placeholder names substituted when an enrichment reference does not resolve.
const (
	UnknownDonor     = "Unknown Donor"
	UnknownRecipient = "Unknown Recipient"
)
