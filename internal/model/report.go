package model

import "time"

// VerificationMode selects how claims are checked
type VerificationMode string

const (
	ModeSingle    VerificationMode = "single"    // Against one trusted fact record
	ModeConsensus VerificationMode = "consensus" // Against multi-source consensus ranges
)

// Report is the complete result of verifying one piece of text
type Report struct {
	Entity    string           `json:"entity,omitempty"`     // Resolved entity, empty when none found
	SourceURL string           `json:"source_url,omitempty"` // Page the text came from, if fetched
	Mode      VerificationMode `json:"mode"`
	CheckedAt time.Time        `json:"checked_at"`
	Claims    []ClaimReport    `json:"claims"`
	Skipped   []NumericClaim   `json:"skipped,omitempty"` // Temporal year mentions
	Summary   Summary          `json:"summary"`
}

// ClaimReport is the audit record for one numeric claim
type ClaimReport struct {
	Claim     NumericClaim        `json:"claim"`
	Attribute string              `json:"attribute,omitempty"`
	Status    Status              `json:"status"`
	Single    *VerificationResult `json:"single,omitempty"`
	Consensus *ConsensusResult    `json:"consensus,omitempty"`
	Tooltip   string              `json:"tooltip"`
}

// Summary counts verdicts across a report
type Summary struct {
	Total    int `json:"total"`
	Verified int `json:"verified"`
	Close    int `json:"close"`
	Mismatch int `json:"mismatch"`
	Unknown  int `json:"unknown"`
}

// Add counts one verdict
func (s *Summary) Add(status Status) {
	s.Total++
	switch status {
	case StatusVerified:
		s.Verified++
	case StatusClose:
		s.Close++
	case StatusMismatch:
		s.Mismatch++
	default:
		s.Unknown++
	}
}

// Signal is a transparent scoring record: what was measured and how
type Signal struct {
	Type        SignalType             `json:"type"`
	Severity    SignalSeverity         `json:"severity"`
	Description string                 `json:"description"`
	Data        map[string]interface{} `json:"data,omitempty"` // Formula and inputs
}

// SignalType classifies a scoring signal
type SignalType string

const (
	SignalSourceTrust SignalType = "source_trust"
	SignalRecency     SignalType = "recency"
	SignalConsensus   SignalType = "consensus"
	SignalTrustScore  SignalType = "trust_score"
)

// SignalSeverity indicates the importance of the signal
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)
