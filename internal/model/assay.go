package model

import (
	"encoding/json"
	"time"
)

// AssayRequest asks an assay to check one claimed value
type AssayRequest struct {
	Entity       string `json:"entity"`
	Attribute    string `json:"attribute"`
	ClaimedValue string `json:"claimed_value"`
	Year         *int   `json:"year,omitempty"`
}

// ProvenanceKind tags the payload held by a ProvenanceEntry
type ProvenanceKind string

const (
	ProvenanceRaw    ProvenanceKind = "raw"    // Payload as returned by the source
	ProvenanceParsed ProvenanceKind = "parsed" // Numeric value parsed from the source
)

// ProvenanceEntry is either a raw source payload or a parsed numeric value
type ProvenanceEntry struct {
	Kind      ProvenanceKind  `json:"kind"`
	Raw       json.RawMessage `json:"raw,omitempty"`
	Value     *float64        `json:"value,omitempty"`
	SourceURL string          `json:"source_url,omitempty"`
}

// RawProvenance wraps an arbitrary payload as a raw entry
func RawProvenance(payload any) (ProvenanceEntry, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return ProvenanceEntry{}, err
	}
	return ProvenanceEntry{Kind: ProvenanceRaw, Raw: b}, nil
}

// ParsedProvenance wraps a parsed value
func ParsedProvenance(value float64, sourceURL string) ProvenanceEntry {
	return ProvenanceEntry{Kind: ProvenanceParsed, Value: &value, SourceURL: sourceURL}
}

// Provenance maps a source identifier to what that source contributed
type Provenance map[string]ProvenanceEntry

// AgreementSummary explains how an assay reached its verdict
type AgreementSummary struct {
	Method          string  `json:"method"`
	Agreement       float64 `json:"agreement"`
	Threshold       float64 `json:"threshold"`
	AgreeingSources int     `json:"agreeing_sources"`
	TotalSources    int     `json:"total_sources"`
	AgreeingTrust   float64 `json:"agreeing_trust"`
	TotalTrust      float64 `json:"total_trust"`
	TolerancePct    float64 `json:"tolerance_pct"`
}

// RetrievalAssayResult is what every assay, live or fallback, returns for audit
type RetrievalAssayResult struct {
	AssayID         string           `json:"assay_id"`
	Assay           string           `json:"assay"` // e.g. "database_fallback", "openai"
	Request         AssayRequest     `json:"request"`
	Verified        bool             `json:"verified"`
	Consensus       *float64         `json:"consensus,omitempty"`
	RawResponses    Provenance       `json:"raw_responses"`
	ParsedValues    Provenance       `json:"parsed_values"`
	ConsensusResult AgreementSummary `json:"consensus_result"`
	ExecutedAt      time.Time        `json:"executed_at"`
}
