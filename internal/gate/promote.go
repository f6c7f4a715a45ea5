package gate

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/ppiankov/factgate/internal/model"
	"github.com/ppiankov/factgate/internal/verify"
)

// EvaluationQueue lists evaluations awaiting promotion and records outcomes
type EvaluationQueue interface {
	ListPendingEvaluations(ctx context.Context) ([]model.FactsEvaluation, error)
	UpdateEvaluationStatus(ctx context.Context, id int64, status model.EvaluationStatus) error
}

// EvidenceStore supplies the gate inputs that live outside the evaluation
type EvidenceStore interface {
	// CountSources returns the number of distinct sources for (entity, attribute)
	CountSources(ctx context.Context, entity, attribute string) (int, error)
	// ListAssays returns the assays for (entity, attribute), newest first
	ListAssays(ctx context.Context, entity, attribute string) ([]*model.RetrievalAssayResult, error)
}

// PromotionSummary counts the outcome of one promotion run
type PromotionSummary struct {
	Evaluated int                  `json:"evaluated"`
	Promoted  int                  `json:"promoted"`
	Held      int                  `json:"held"`
	Decisions []model.GateDecision `json:"decisions"`
}

// Promoter runs every pending evaluation through the gate
type Promoter struct {
	gate       *Gate
	queue      EvaluationQueue
	evidence   EvidenceStore
	tolerances verify.ToleranceTable
}

// PromoterOption configures a Promoter
type PromoterOption func(*Promoter)

// WithTolerances sets the tolerances used to match an assay's claimed
// value against an evaluation's value
func WithTolerances(tolerances verify.ToleranceTable) PromoterOption {
	return func(p *Promoter) { p.tolerances = tolerances }
}

// NewPromoter creates a promoter
func NewPromoter(gate *Gate, queue EvaluationQueue, evidence EvidenceStore, opts ...PromoterOption) *Promoter {
	p := &Promoter{gate: gate, queue: queue, evidence: evidence}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run gates all pending evaluations. Passing ones are marked promoted,
// failing ones pending so that a later run can retry them.
func (p *Promoter) Run(ctx context.Context) (*PromotionSummary, error) {
	pending, err := p.queue.ListPendingEvaluations(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list pending evaluations")
	}

	summary := &PromotionSummary{}
	for _, ev := range pending {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		decision, err := p.decide(ctx, ev)
		if err != nil {
			return summary, errors.Wrapf(err, "gate evaluation %d", ev.ID)
		}

		status := model.StatusPending
		if decision.Passed {
			status = model.StatusPromoted
			summary.Promoted++
		} else {
			summary.Held++
		}
		if err := p.queue.UpdateEvaluationStatus(ctx, ev.ID, status); err != nil {
			return summary, errors.Wrapf(err, "update status of evaluation %d", ev.ID)
		}

		summary.Evaluated++
		summary.Decisions = append(summary.Decisions, decision)
	}

	return summary, nil
}

func (p *Promoter) decide(ctx context.Context, ev model.FactsEvaluation) (model.GateDecision, error) {
	sources, err := p.evidence.CountSources(ctx, ev.Entity, ev.Attribute)
	if err != nil {
		return model.GateDecision{}, err
	}

	assays, err := p.evidence.ListAssays(ctx, ev.Entity, ev.Attribute)
	if err != nil {
		return model.GateDecision{}, err
	}

	var agreement *float64
	assay := p.matchingAssay(ev, assays)
	hasAssay := assay != nil
	if hasAssay {
		a := assay.ConsensusResult.Agreement
		agreement = &a
	}

	return p.gate.Evaluate(ctx, ev, sources, hasAssay, agreement)
}

// matchingAssay returns the newest assay that tested ev's value. An assay
// of some other value for the same key says nothing about this one.
func (p *Promoter) matchingAssay(ev model.FactsEvaluation, assays []*model.RetrievalAssayResult) *model.RetrievalAssayResult {
	tolerance := p.tolerances.For(ev.Attribute)
	for _, a := range assays {
		if a != nil && verify.ValuesAgree(a.Request.ClaimedValue, ev.Value, tolerance) {
			return a
		}
	}
	return nil
}
