package gate

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ppiankov/factgate/internal/model"
)

// DecisionLog persists gate decisions. It is append-only.
type DecisionLog interface {
	AppendGateDecision(ctx context.Context, decision model.GateDecision) error
}

// Gate decides whether evaluations may be promoted to the trusted set
type Gate struct {
	policies PolicySource
	log      DecisionLog
	now      func() time.Time
	logger   *zap.SugaredLogger
}

// Option configures a Gate
type Option func(*Gate)

// WithDecisionLog appends every decision to log
func WithDecisionLog(log DecisionLog) Option {
	return func(g *Gate) { g.log = log }
}

// WithClock overrides the time source used for age calculation
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// WithLogger sets the gate logger
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(g *Gate) { g.logger = logger }
}

// New creates a promotion gate reading its policy from policies
func New(policies PolicySource, opts ...Option) *Gate {
	g := &Gate{
		policies: policies,
		now:      time.Now,
		logger:   zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Evaluate checks ev against the criteria of its risk tier. agreement is
// nil when no consensus agreement was measured.
func (g *Gate) Evaluate(ctx context.Context, ev model.FactsEvaluation, sourceCount int, hasAssay bool, agreement *float64) (model.GateDecision, error) {
	policy, err := g.policies.Policy()
	if err != nil {
		return model.GateDecision{}, errors.Wrap(err, "load promotion policy")
	}

	now := g.now()
	decision, err := Decide(policy, ev, sourceCount, hasAssay, agreement, now)
	if err != nil {
		return model.GateDecision{}, err
	}

	decision.ID = uuid.NewString()
	decision.DecidedAt = now

	g.logger.Debugw("Gate decision",
		"evaluation", ev.ID,
		"entity", ev.Entity,
		"attribute", ev.Attribute,
		"tier", decision.Tier,
		"passed", decision.Passed,
		"reason", decision.Reason,
	)

	if g.log != nil {
		if err := g.log.AppendGateDecision(ctx, decision); err != nil {
			return decision, errors.Wrap(err, "append gate decision")
		}
	}

	return decision, nil
}

// Decide is the pure form of Gate.Evaluate. It fails only when the policy
// does not define the tier the attribute falls into.
func Decide(policy *model.PromotionPolicy, ev model.FactsEvaluation, sourceCount int, hasAssay bool, agreement *float64, now time.Time) (model.GateDecision, error) {
	tierName := ClassifyTier(policy, ev.Attribute)
	tier, ok := policy.Tiers[tierName]
	if !ok {
		return model.GateDecision{}, errors.Newf("risk tier %q is not defined in the promotion policy", tierName)
	}
	c := tier.Criteria

	metrics := model.GateMetrics{
		SourceCount:        sourceCount,
		TrustScore:         ev.TrustScore,
		AgeDays:            AgeDays(ev.EvaluatedAt, now),
		HasAssay:           hasAssay,
		ConsensusAgreement: agreement,
	}

	criteria := map[string]bool{
		model.CriterionSources:   metrics.SourceCount >= c.MinSources,
		model.CriterionScore:     metrics.TrustScore >= c.MinScore,
		model.CriterionAge:       metrics.AgeDays <= c.MaxAgeDays,
		model.CriterionAssay:     !c.RequireAssay || hasAssay,
		model.CriterionConsensus: agreement == nil || *agreement >= c.MinConsensusAgreement,
	}

	var failures []string
	if !criteria[model.CriterionSources] {
		failures = append(failures, fmt.Sprintf("insufficient sources (%d < %d)", metrics.SourceCount, c.MinSources))
	}
	if !criteria[model.CriterionScore] {
		failures = append(failures, fmt.Sprintf("trust score too low (%d < %d)", metrics.TrustScore, c.MinScore))
	}
	if !criteria[model.CriterionAge] {
		failures = append(failures, fmt.Sprintf("evaluation too old (%d > %d days)", metrics.AgeDays, c.MaxAgeDays))
	}
	if !criteria[model.CriterionAssay] {
		failures = append(failures, "assay required but missing")
	}
	if !criteria[model.CriterionConsensus] {
		failures = append(failures, fmt.Sprintf("consensus agreement too low (%.2f < %.2f)", *agreement, c.MinConsensusAgreement))
	}

	decision := model.GateDecision{
		EvaluationID: ev.ID,
		Entity:       ev.Entity,
		Attribute:    ev.Attribute,
		Passed:       len(failures) == 0,
		Tier:         tierName,
		Criteria:     criteria,
		Metrics:      metrics,
	}

	if decision.Passed {
		decision.Reason = fmt.Sprintf("passed %s-risk criteria: %d sources, trust score %d, %d days old",
			tierName, metrics.SourceCount, metrics.TrustScore, metrics.AgeDays)
	} else {
		decision.Reason = fmt.Sprintf("failed %s-risk criteria: %s", tierName, strings.Join(failures, "; "))
	}

	return decision, nil
}

// ClassifyTier returns the first tier listing attribute, checking high,
// medium and low before any other tier in name order. Unlisted attributes
// get the policy's default tier.
func ClassifyTier(policy *model.PromotionPolicy, attribute string) string {
	for _, name := range tierOrder(policy) {
		for _, attr := range policy.Tiers[name].Attributes {
			if attr == attribute {
				return name
			}
		}
	}
	return policy.DefaultTier
}

func tierOrder(policy *model.PromotionPolicy) []string {
	order := make([]string, 0, len(policy.Tiers))
	for _, name := range []string{model.TierHigh, model.TierMedium, model.TierLow} {
		if _, ok := policy.Tiers[name]; ok {
			order = append(order, name)
		}
	}

	var rest []string
	for name := range policy.Tiers {
		if name != model.TierHigh && name != model.TierMedium && name != model.TierLow {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)

	return append(order, rest...)
}

// AgeDays returns the days elapsed since evaluatedAt, rounded up.
// A record evaluated an hour ago is one day old.
func AgeDays(evaluatedAt, now time.Time) int {
	if evaluatedAt.IsZero() || !now.After(evaluatedAt) {
		return 0
	}
	return int(math.Ceil(now.Sub(evaluatedAt).Hours() / 24))
}
