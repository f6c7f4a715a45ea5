package verify

import (
	"context"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/factgate/internal/extract"
	"github.com/ppiankov/factgate/internal/model"
)

// FactStore looks up trusted facts
type FactStore interface {
	FindFacts(ctx context.Context, entity, attribute string) ([]model.FactRecord, error)
}

// Engine verifies claims with a fixed tolerance table. It adds unmet-request
// reporting on top of the pure Verify and VerifyConsensus functions.
type Engine struct {
	tolerances ToleranceTable
	unmet      UnmetRequestSink
	logger     *zap.SugaredLogger
}

// Option configures an Engine
type Option func(*Engine)

// WithUnmetSink reports recognised (entity, attribute) pairs that have no data
func WithUnmetSink(sink UnmetRequestSink) Option {
	return func(e *Engine) { e.unmet = sink }
}

// WithLogger sets the engine logger
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine creates a verification engine
func NewEngine(tolerances ToleranceTable, opts ...Option) *Engine {
	e := &Engine{
		tolerances: tolerances,
		logger:     zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Tolerances returns the engine's tolerance table
func (e *Engine) Tolerances() ToleranceTable {
	return e.tolerances
}

// Verify checks a claim against single-source facts
func (e *Engine) Verify(claim model.NumericClaim, attribute, entity string, facts []model.FactRecord) model.VerificationResult {
	return Verify(claim, attribute, entity, facts, e.tolerances)
}

// VerifyConsensus checks a claim against multi-source consensus. An unknown
// verdict for a recognised entity and attribute is reported to the unmet
// sink without waiting for it.
func (e *Engine) VerifyConsensus(claim model.NumericClaim, attribute, entity string, consensus ConsensusIndex) model.ConsensusResult {
	result := VerifyConsensus(claim, attribute, entity, consensus, e.tolerances)

	if result.Status == model.StatusUnknown && entity != "" && attribute != "" {
		e.reportUnmet(model.UnmetRequest{
			Entity:     entity,
			Attribute:  attribute,
			ClaimValue: claim.Value,
			Context:    strings.TrimSpace(claim.Context()),
		})
	}

	return result
}

// Verify compares a claim with the first fact recorded for (entity, attribute).
// Entities match case-insensitively, attributes exactly.
func Verify(claim model.NumericClaim, attribute, entity string, facts []model.FactRecord, tolerances ToleranceTable) model.VerificationResult {
	if attribute == "" {
		return model.VerificationResult{Status: model.StatusUnknown}
	}

	fact := findFact(facts, entity, attribute)
	if fact == nil {
		return model.VerificationResult{Status: model.StatusUnknown}
	}

	if claim.Value == fact.Value {
		return model.VerificationResult{
			Status:      model.StatusVerified,
			MatchedFact: fact,
			PercentDiff: floatPtr(0),
		}
	}

	claimed, okClaimed := extract.ParseNumber(claim.Value)
	actual, okActual := extract.ParseNumber(fact.Value)
	if !okClaimed || !okActual {
		// Non-numeric values only verify on exact string equality
		return model.VerificationResult{Status: model.StatusMismatch, MatchedFact: fact}
	}

	diff := PercentDiff(claimed, actual)
	status := model.StatusMismatch
	switch {
	case diff == 0:
		status = model.StatusVerified
	case diff <= tolerances.For(attribute):
		status = model.StatusClose
	}

	return model.VerificationResult{
		Status:      status,
		MatchedFact: fact,
		PercentDiff: floatPtr(diff),
	}
}

func findFact(facts []model.FactRecord, entity, attribute string) *model.FactRecord {
	for i := range facts {
		if facts[i].Attribute == attribute && strings.EqualFold(facts[i].Entity, entity) {
			fact := facts[i]
			return &fact
		}
	}
	return nil
}

// PercentDiff is |claimed-actual| relative to actual, in percent
func PercentDiff(claimed, actual float64) float64 {
	if actual == 0 {
		if claimed == 0 {
			return 0
		}
		return 100
	}
	return math.Abs(claimed-actual) * 100 / math.Abs(actual)
}

// ValuesAgree reports whether two recorded values describe the same figure:
// equal strings, or numbers within tolerance percent of actual. Values that
// do not parse only agree on string equality.
func ValuesAgree(claimed, actual string, tolerance float64) bool {
	if strings.TrimSpace(claimed) == strings.TrimSpace(actual) {
		return true
	}
	c, okClaimed := extract.ParseNumber(claimed)
	a, okActual := extract.ParseNumber(actual)
	if !okClaimed || !okActual {
		return false
	}
	return PercentDiff(c, a) <= tolerance
}

func floatPtr(v float64) *float64 {
	return &v
}
