package score

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/ppiankov/factgate/internal/model"
)

// SourceStore looks up curated source metrics. It returns nil metrics and
// no error for unknown domains.
type SourceStore interface {
	GetSourceMetrics(ctx context.Context, domain string) (*model.SourceMetrics, error)
}

// ScoreBreakdown is a trust score with the component scores and signals behind it
type ScoreBreakdown struct {
	SourceTrust int            `json:"source_trust_score"`
	Recency     int            `json:"recency_score"`
	Consensus   int            `json:"consensus_score"`
	Weights     model.Weights  `json:"weights"`
	TrustScore  int            `json:"trust_score"`
	AgeDays     int            `json:"age_days"`
	Signals     []model.Signal `json:"signals"`
}

// Scorer computes trust scores for pending evaluations
type Scorer struct {
	sources   SourceStore
	authority *AuthorityClassifier
	settings  model.ScoringConfig
	now       func() time.Time
	logger    *zap.SugaredLogger
}

// NewScorer creates a new scorer
func NewScorer(sources SourceStore, settings model.ScoringConfig, logger *zap.SugaredLogger) *Scorer {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Scorer{
		sources:   sources,
		authority: NewAuthorityClassifier(settings.PrimaryDomains, settings.SecondaryDomains),
		settings:  settings,
		now:       time.Now,
		logger:    logger,
	}
}

// Score calculates the weighted trust score and its diagnostic signals.
// The consensus component is taken from the evaluation as supplied.
func (s *Scorer) Score(ctx context.Context, ev model.FactsEvaluation, weights model.Weights) (ScoreBreakdown, error) {
	var signals []model.Signal

	// 1. Source trust
	sourceTrust, sourceSignal, err := s.sourceTrust(ctx, ev.SourceURL)
	if err != nil {
		return ScoreBreakdown{}, err
	}
	signals = append(signals, sourceSignal)

	// 2. Recency
	ageDays := AgeDays(ev.EvaluatedAt, s.now())
	recency := RecencyScore(ageDays, s.settings.Recency)
	signals = append(signals, recencySignal(ageDays, recency, s.settings.Recency))

	// 3. Consensus (supplied)
	consensus := ev.ConsensusScore
	signals = append(signals, model.Signal{
		Type:        model.SignalConsensus,
		Severity:    severityFor(consensus),
		Description: fmt.Sprintf("Consensus score: %d", consensus),
		Data: map[string]interface{}{
			"score":   consensus,
			"formula": "supplied by the evaluation pipeline",
		},
	})

	// 4. Weighted mean
	trust := ComputeTrustScore(sourceTrust, recency, consensus, weights)
	signals = append(signals, model.Signal{
		Type:        model.SignalTrustScore,
		Severity:    severityFor(trust),
		Description: fmt.Sprintf("Trust score: %d", trust),
		Data: map[string]interface{}{
			"source_trust_weight": weights.SourceTrust,
			"recency_weight":      weights.Recency,
			"consensus_weight":    weights.Consensus,
			"score":               trust,
			"formula":             "round((source_trust*w1 + recency*w2 + consensus*w3) / (w1 + w2 + w3))",
		},
	})

	return ScoreBreakdown{
		SourceTrust: sourceTrust,
		Recency:     recency,
		Consensus:   consensus,
		Weights:     weights,
		TrustScore:  trust,
		AgeDays:     ageDays,
		Signals:     signals,
	}, nil
}

// Rescore returns ev with recomputed component scores. Records without
// weights are scored with the configured weights.
func (s *Scorer) Rescore(ctx context.Context, ev model.FactsEvaluation) (model.FactsEvaluation, error) {
	weights := ev.Weights
	if weights.IsZero() {
		weights = s.settings.Weights
	}

	breakdown, err := s.Score(ctx, ev, weights)
	if err != nil {
		return ev, errors.Wrapf(err, "score evaluation %d", ev.ID)
	}

	ev.SourceTrustScore = breakdown.SourceTrust
	ev.RecencyScore = breakdown.Recency
	ev.ConsensusScore = breakdown.Consensus
	ev.Weights = weights
	ev.TrustScore = breakdown.TrustScore

	s.logger.Debugw("Rescored evaluation",
		"id", ev.ID,
		"entity", ev.Entity,
		"attribute", ev.Attribute,
		"trust_score", ev.TrustScore,
	)

	return ev, nil
}

// sourceTrust rates the source host from curated metrics, walking up to
// parent domains, and falls back to the authority tier estimate
func (s *Scorer) sourceTrust(ctx context.Context, sourceURL string) (int, model.Signal, error) {
	host := Host(sourceURL)

	if host != "" && s.sources != nil {
		for _, domain := range parentDomains(host) {
			metrics, err := s.sources.GetSourceMetrics(ctx, domain)
			if err != nil {
				return 0, model.Signal{}, errors.Wrapf(err, "source metrics for %s", domain)
			}
			if metrics == nil {
				continue
			}

			score := SourceTrustScore(*metrics)
			return score, model.Signal{
				Type:        model.SignalSourceTrust,
				Severity:    severityFor(score),
				Description: fmt.Sprintf("Source trust for %s: %d", domain, score),
				Data: map[string]interface{}{
					"domain":            domain,
					"public_trust":      metrics.PublicTrust,
					"data_accuracy":     metrics.DataAccuracy,
					"proprietary_score": metrics.ProprietaryScore,
					"score":             score,
					"formula":           "round((public_trust + data_accuracy + proprietary_score) / 3)",
				},
			}, nil
		}
	}

	tier := s.authority.Classify(sourceURL)
	score := s.settings.DefaultSourceTrust
	switch tier {
	case TierPrimary:
		score = s.settings.PrimaryTrust
	case TierSecondary:
		score = s.settings.SecondaryTrust
	}

	return score, model.Signal{
		Type:        model.SignalSourceTrust,
		Severity:    model.SeverityWarning,
		Description: fmt.Sprintf("No metrics for %q, estimated from %s authority: %d", host, tier, score),
		Data: map[string]interface{}{
			"domain":  host,
			"tier":    string(tier),
			"score":   score,
			"formula": "authority tier estimate",
		},
	}, nil
}

func recencySignal(ageDays, score int, tiers model.RecencyTiers) model.Signal {
	severity := model.SeverityInfo
	if ageDays > tiers.Tier2Days {
		severity = model.SeverityCritical
	} else if ageDays > tiers.Tier1Days {
		severity = model.SeverityWarning
	}

	return model.Signal{
		Type:        model.SignalRecency,
		Severity:    severity,
		Description: fmt.Sprintf("Evaluated %d days ago", ageDays),
		Data: map[string]interface{}{
			"age_days":   ageDays,
			"tier1_days": tiers.Tier1Days,
			"tier2_days": tiers.Tier2Days,
			"score":      score,
			"formula":    "age <= tier1_days ? tier1_score : age <= tier2_days ? tier2_score : tier3_score",
		},
	}
}

func severityFor(score int) model.SignalSeverity {
	switch {
	case score < 40:
		return model.SeverityCritical
	case score < 70:
		return model.SeverityWarning
	default:
		return model.SeverityInfo
	}
}

// SourceTrustScore averages the three curated ratings
func SourceTrustScore(m model.SourceMetrics) int {
	return int(math.Round(float64(m.PublicTrust+m.DataAccuracy+m.ProprietaryScore) / 3))
}

// RecencyScore maps an age in days onto the configured tiers
func RecencyScore(ageDays int, tiers model.RecencyTiers) int {
	switch {
	case ageDays <= tiers.Tier1Days:
		return tiers.Tier1Score
	case ageDays <= tiers.Tier2Days:
		return tiers.Tier2Score
	default:
		return tiers.Tier3Score
	}
}

// AgeDays returns the whole days elapsed since t, never negative
func AgeDays(t, now time.Time) int {
	if t.IsZero() || now.Before(t) {
		return 0
	}
	return int(now.Sub(t).Hours() / 24)
}

// ComputeTrustScore is the weighted mean of the component scores, rounded.
// Weights summing to zero give 0.
func ComputeTrustScore(sourceTrust, recency, consensus int, w model.Weights) int {
	total := w.SourceTrust + w.Recency + w.Consensus
	if total == 0 {
		return 0
	}
	sum := float64(sourceTrust)*w.SourceTrust + float64(recency)*w.Recency + float64(consensus)*w.Consensus
	return int(math.Round(sum / total))
}
