package model

import "time"

// Risk tier names used by the default promotion policy
const (
	TierHigh   = "high"
	TierMedium = "medium"
	TierLow    = "low"
)

// Criteria are the thresholds an evaluation must meet to be promoted
type Criteria struct {
	MinSources            int     `json:"min_sources" yaml:"min_sources"`
	MinScore              int     `json:"min_score" yaml:"min_score"`
	MaxAgeDays            int     `json:"max_age_days" yaml:"max_age_days"`
	RequireAssay          bool    `json:"require_assay" yaml:"require_assay"`
	MinConsensusAgreement float64 `json:"min_consensus_agreement" yaml:"min_consensus_agreement"`
}

// RiskTier groups attributes that share promotion criteria
type RiskTier struct {
	Description string   `json:"description" yaml:"description"`
	Criteria    Criteria `json:"criteria" yaml:"criteria"`
	Attributes  []string `json:"attributes" yaml:"attributes"`
}

// PromotionPolicy maps attributes to risk tiers and tiers to criteria
type PromotionPolicy struct {
	Tiers                map[string]RiskTier `json:"tiers" yaml:"tiers"`
	DefaultTier          string              `json:"default_tier" yaml:"default_tier"`
	CompensatingControls map[string]bool     `json:"compensating_controls,omitempty" yaml:"compensating_controls,omitempty"`
}

// Criterion names used as keys in GateDecision.Criteria
const (
	CriterionSources   = "min_sources"
	CriterionScore     = "min_score"
	CriterionAge       = "max_age_days"
	CriterionAssay     = "require_assay"
	CriterionConsensus = "min_consensus_agreement"
)

// GateMetrics are the raw inputs a gate decision was based on
type GateMetrics struct {
	SourceCount        int      `json:"source_count"`
	TrustScore         int      `json:"trust_score"`
	AgeDays            int      `json:"age_days"`
	HasAssay           bool     `json:"has_assay"`
	ConsensusAgreement *float64 `json:"consensus_agreement,omitempty"`
}

// GateDecision is the outcome of running an evaluation through the promotion gate
type GateDecision struct {
	ID           string          `json:"id"`
	EvaluationID int64           `json:"evaluation_id,omitempty"`
	Entity       string          `json:"entity,omitempty"`
	Attribute    string          `json:"attribute,omitempty"`
	Passed       bool            `json:"passed"`
	Tier         string          `json:"tier"`
	Reason       string          `json:"reason"`
	Criteria     map[string]bool `json:"criteria"`
	Metrics      GateMetrics     `json:"metrics"`
	DecidedAt    time.Time       `json:"decided_at"`
}
