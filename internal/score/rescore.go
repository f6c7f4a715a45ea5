package score

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/ppiankov/factgate/internal/model"
)

// EvaluationRepository lists evaluations that may still change and stores
// their new scores
type EvaluationRepository interface {
	ListPendingEvaluations(ctx context.Context) ([]model.FactsEvaluation, error)
	UpdateEvaluationScores(ctx context.Context, ev model.FactsEvaluation) error
}

// RescoreSummary counts the outcome of one rescoring pass
type RescoreSummary struct {
	Rescored int `json:"rescored"`
	Changed  int `json:"changed"` // Trust score differs from the stored one
}

// RescoreAll recomputes the scores of every pending evaluation. Recency
// decays with time, so a periodic pass keeps trust scores current.
func (s *Scorer) RescoreAll(ctx context.Context, repo EvaluationRepository) (RescoreSummary, error) {
	var summary RescoreSummary

	pending, err := repo.ListPendingEvaluations(ctx)
	if err != nil {
		return summary, errors.Wrap(err, "list pending evaluations")
	}

	for _, ev := range pending {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		updated, err := s.Rescore(ctx, ev)
		if err != nil {
			return summary, err
		}
		if err := repo.UpdateEvaluationScores(ctx, updated); err != nil {
			return summary, errors.Wrapf(err, "store scores of evaluation %d", ev.ID)
		}

		summary.Rescored++
		if updated.TrustScore != ev.TrustScore {
			summary.Changed++
		}
	}

	s.logger.Infow("Rescored evaluations", "rescored", summary.Rescored, "changed", summary.Changed)
	return summary, nil
}
