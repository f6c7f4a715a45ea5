package assay

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ppiankov/factgate/internal/extract"
	"github.com/ppiankov/factgate/internal/model"
	"github.com/ppiankov/factgate/internal/score"
	"github.com/ppiankov/factgate/internal/verify"
)

// FallbackName identifies results produced from stored evaluations
const FallbackName = "database_fallback"

// DefaultAgreementThreshold is the trust-weighted agreement needed to verify
const DefaultAgreementThreshold = 0.7

// pointInTime attributes describe a single date; a year window makes no sense for them
var pointInTime = map[string]bool{
	"founded_year":      true,
	"independence_year": true,
}

// Fallback re-derives a verification from stored evaluations when no
// external assay is available. Its result has the same shape as a live
// assay so audit consumers need not tell them apart.
type Fallback struct {
	store      verify.EvaluationStore
	tolerances verify.ToleranceTable
	threshold  float64
	now        func() time.Time
	logger     *zap.SugaredLogger
}

// NewFallback creates a fallback assay. A threshold <= 0 uses DefaultAgreementThreshold.
func NewFallback(store verify.EvaluationStore, tolerances verify.ToleranceTable, threshold float64, logger *zap.SugaredLogger) *Fallback {
	if threshold <= 0 {
		threshold = DefaultAgreementThreshold
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Fallback{
		store:      store,
		tolerances: tolerances,
		threshold:  threshold,
		now:        time.Now,
		logger:     logger,
	}
}

// Name implements Assay
func (f *Fallback) Name() string {
	return FallbackName
}

// Execute checks req against stored evaluations. Agreement is the trust of
// evaluations within tolerance of the claim over the trust of all of them.
// Values that do not parse as numbers agree only on string equality.
func (f *Fallback) Execute(ctx context.Context, req model.AssayRequest) (*model.RetrievalAssayResult, error) {
	window := yearWindow(req)
	evaluations, err := f.store.FindEvaluations(ctx, req.Entity, req.Attribute, window)
	if err != nil {
		return nil, errors.Wrapf(err, "find evaluations for %s/%s", req.Entity, req.Attribute)
	}

	query, err := model.RawProvenance(describeQuery(req, window))
	if err != nil {
		return nil, errors.Wrap(err, "encode query provenance")
	}

	tolerance := f.tolerances.For(req.Attribute)
	summary := model.AgreementSummary{
		Method:       "trust_weighted_agreement",
		Threshold:    f.threshold,
		TolerancePct: tolerance,
		TotalSources: len(evaluations),
	}
	parsed := make(model.Provenance)

	for _, ev := range evaluations {
		trust := float64(ev.Trust())
		summary.TotalTrust += trust

		if value, ok := extract.ParseNumber(ev.Value); ok {
			parsed[provenanceKey(ev)] = model.ParsedProvenance(value, ev.SourceURL)
		}

		if verify.ValuesAgree(req.ClaimedValue, ev.Value, tolerance) {
			summary.AgreeingSources++
			summary.AgreeingTrust += trust
		}
	}

	if summary.TotalTrust > 0 {
		summary.Agreement = summary.AgreeingTrust / summary.TotalTrust
	}

	result := &model.RetrievalAssayResult{
		AssayID:         "fallback-" + uuid.NewString(),
		Assay:           FallbackName,
		Request:         req,
		Verified:        len(evaluations) > 0 && summary.Agreement >= f.threshold,
		RawResponses:    model.Provenance{FallbackName: query},
		ParsedValues:    parsed,
		ConsensusResult: summary,
		ExecutedAt:      f.now(),
	}
	if data := verify.BuildConsensus(req.Entity, req.Attribute, evaluations); data != nil {
		consensus := data.Consensus
		result.Consensus = &consensus
	}

	f.logger.Debugw("Fallback assay",
		"entity", req.Entity,
		"attribute", req.Attribute,
		"evaluations", len(evaluations),
		"agreement", summary.Agreement,
		"verified", result.Verified,
	)

	return result, nil
}

// yearWindow restricts the lookup to one year either side of req.Year
func yearWindow(req model.AssayRequest) *model.YearWindow {
	if req.Year == nil || pointInTime[req.Attribute] {
		return nil
	}
	return &model.YearWindow{From: *req.Year - 1, To: *req.Year + 1}
}

// describeQuery renders the lookup in SQL form for the audit trail
func describeQuery(req model.AssayRequest, window *model.YearWindow) string {
	q := fmt.Sprintf("SELECT value, source_url, trust_score FROM facts_evaluation WHERE entity = '%s' AND attribute = '%s' AND status <> 'rejected'",
		req.Entity, req.Attribute)
	if window != nil {
		q += fmt.Sprintf(" AND CAST(strftime('%%Y', as_of_date) AS INTEGER) BETWEEN %d AND %d", window.From, window.To)
	}
	return q + " ORDER BY trust_score DESC"
}

// provenanceKey identifies an evaluation as "<host>#<id>"
func provenanceKey(ev model.CredibleEvaluation) string {
	host := score.Host(ev.SourceURL)
	if host == "" {
		host = "unknown"
	}
	return fmt.Sprintf("%s#%d", host, ev.ID)
}
