package model

import "time"

// FactRecord is a trusted fact as stored by the ingestion process
type FactRecord struct {
	ID             int64      `json:"id,omitempty"`
	Entity         string     `json:"entity"`
	Attribute      string     `json:"attribute"`
	Value          string     `json:"value"`                // May carry a magnitude suffix ("36 million")
	ValueType      string     `json:"value_type,omitempty"` // numeric, text, year
	AsOfDate       *time.Time `json:"as_of_date,omitempty"`
	SourceURL      string     `json:"source_url,omitempty"`
	SourceTrust    string     `json:"source_trust,omitempty"` // Source label, e.g. "IMF"
	LastVerifiedAt *time.Time `json:"last_verified_at,omitempty"`
}

// CredibleEvaluation is one scored observation of an (entity, attribute) value
type CredibleEvaluation struct {
	ID          int64      `json:"id"`
	Entity      string     `json:"entity"`
	Attribute   string     `json:"attribute"`
	Value       string     `json:"value"`
	SourceURL   string     `json:"source_url"`
	SourceTrust string     `json:"source_trust,omitempty"`
	AsOfDate    *time.Time `json:"as_of_date,omitempty"`
	TrustScore  *int       `json:"trust_score,omitempty"`
	EvaluatedAt time.Time  `json:"evaluated_at"`
}

// DefaultTrustScore is assumed for evaluations that were never scored
const DefaultTrustScore = 50

// Trust returns the trust score, or DefaultTrustScore when unscored
func (e CredibleEvaluation) Trust() int {
	if e.TrustScore == nil {
		return DefaultTrustScore
	}
	return *e.TrustScore
}

// EvaluationStatus tracks a pending evaluation through promotion
type EvaluationStatus string

const (
	StatusEvaluating EvaluationStatus = "evaluating" // Created, not yet gated
	StatusPending    EvaluationStatus = "pending"    // Gated and failed, may be retried
	StatusPromoted   EvaluationStatus = "promoted"   // Accepted into the trusted set
	StatusRejected   EvaluationStatus = "rejected"
)

// FactsEvaluation is a pending fact with its scoring breakdown
type FactsEvaluation struct {
	ID          int64  `json:"id"`
	Entity      string `json:"entity"`
	Attribute   string `json:"attribute"`
	Value       string `json:"value"`
	ValueType   string `json:"value_type,omitempty"`
	SourceURL   string `json:"source_url"`
	SourceTrust string `json:"source_trust,omitempty"`

	SourceTrustScore int `json:"source_trust_score"`
	RecencyScore     int `json:"recency_score"`
	ConsensusScore   int `json:"consensus_score"`

	Weights    Weights `json:"weights"`
	TrustScore int     `json:"trust_score"`

	Notes       string           `json:"evaluation_notes,omitempty"`
	AsOfDate    *time.Time       `json:"as_of_date,omitempty"`
	EvaluatedAt time.Time        `json:"evaluated_at"`
	Status      EvaluationStatus `json:"status"`
}

// Weights controls how the three component scores are combined
type Weights struct {
	SourceTrust float64 `json:"source_trust_weight" yaml:"source_trust" mapstructure:"source_trust"`
	Recency     float64 `json:"recency_weight" yaml:"recency" mapstructure:"recency"`
	Consensus   float64 `json:"consensus_weight" yaml:"consensus" mapstructure:"consensus"`
}

// DefaultWeights weighs every component equally
func DefaultWeights() Weights {
	return Weights{SourceTrust: 1, Recency: 1, Consensus: 1}
}

// IsZero reports whether no weight was set at all
func (w Weights) IsZero() bool {
	return w.SourceTrust == 0 && w.Recency == 0 && w.Consensus == 0
}

// SourceMetrics holds the curated trust ratings of a source domain
type SourceMetrics struct {
	Domain           string `json:"domain"`
	Name             string `json:"name,omitempty"`
	PublicTrust      int    `json:"public_trust"`
	DataAccuracy     int    `json:"data_accuracy"`
	ProprietaryScore int    `json:"proprietary_score"`
}

// MultiSourceData is the consensus derived from several evaluations of one key
type MultiSourceData struct {
	Entity      string               `json:"entity"`
	Attribute   string               `json:"attribute"`
	Consensus   float64              `json:"consensus"`
	Min         float64              `json:"min"`
	Max         float64              `json:"max"`
	SourceCount int                  `json:"source_count"`
	Evaluations []CredibleEvaluation `json:"evaluations"`
}

// YearWindow restricts evaluation lookups to an inclusive as_of_date year range
type YearWindow struct {
	From int `json:"from"`
	To   int `json:"to"`
}
