package model

import "time"

// Status is the verdict of a verification
type Status string

const (
	StatusVerified Status = "verified"
	StatusClose    Status = "close"
	StatusMismatch Status = "mismatch"
	StatusUnknown  Status = "unknown"
)

// VerificationResult is the outcome of checking a claim against stored facts
type VerificationResult struct {
	Status      Status      `json:"status"`
	MatchedFact *FactRecord `json:"matched_fact,omitempty"`
	PercentDiff *float64    `json:"percent_diff,omitempty"`
}

// ConsensusResult is the outcome of checking a claim against multi-source consensus
type ConsensusResult struct {
	Status      Status           `json:"status"`
	MultiSource *MultiSourceData `json:"multi_source,omitempty"`
	PercentDiff *float64         `json:"percent_diff,omitempty"`
}

// UnmetRequest records a recognised (entity, attribute) pair with no data behind it
type UnmetRequest struct {
	Entity      string    `json:"entity"`
	Attribute   string    `json:"attribute"`
	ClaimValue  string    `json:"claim_value"`
	Context     string    `json:"context,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}
