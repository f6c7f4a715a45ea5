package gate

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/factgate/internal/model"
)

var testNow = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func testPolicy() *model.PromotionPolicy {
	return &model.PromotionPolicy{
		DefaultTier: model.TierMedium,
		Tiers: map[string]model.RiskTier{
			model.TierHigh: {
				Description: "Headline economic figures",
				Criteria:    model.Criteria{MinSources: 3, MinScore: 85, MaxAgeDays: 30, RequireAssay: true, MinConsensusAgreement: 0.8},
				Attributes:  []string{"gdp", "population"},
			},
			model.TierMedium: {
				Criteria:   model.Criteria{MinSources: 2, MinScore: 70, MaxAgeDays: 90, MinConsensusAgreement: 0.7},
				Attributes: []string{"inflation"},
			},
			model.TierLow: {
				Criteria:   model.Criteria{MinSources: 1, MinScore: 50, MaxAgeDays: 365},
				Attributes: []string{"founded_year"},
			},
			"archive": {
				Criteria:   model.Criteria{MinSources: 1, MaxAgeDays: 10000},
				Attributes: []string{"founded_year", "area"},
			},
		},
	}
}

func evaluation(attribute string, trust int, age time.Duration) model.FactsEvaluation {
	return model.FactsEvaluation{
		ID:          1,
		Entity:      "Japan",
		Attribute:   attribute,
		TrustScore:  trust,
		EvaluatedAt: testNow.Add(-age),
	}
}

func ptr(v float64) *float64 { return &v }

func TestDecide_AllCriteriaPass(t *testing.T) {
	decision, err := Decide(testPolicy(), evaluation("gdp", 90, 48*time.Hour), 3, true, ptr(0.9), testNow)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if !decision.Passed {
		t.Errorf("Expected pass, got %s", decision.Reason)
	}
	if decision.Tier != model.TierHigh {
		t.Errorf("Expected high tier, got %s", decision.Tier)
	}
	for name, ok := range decision.Criteria {
		if !ok {
			t.Errorf("Expected criterion %s to hold", name)
		}
	}
	if len(decision.Criteria) != 5 {
		t.Errorf("Expected 5 criteria, got %d", len(decision.Criteria))
	}
	if !strings.HasPrefix(decision.Reason, "passed high-risk criteria") {
		t.Errorf("Unexpected reason: %s", decision.Reason)
	}
}

func TestDecide_InsufficientSourcesAlwaysFails(t *testing.T) {
	decision, err := Decide(testPolicy(), evaluation("gdp", 100, time.Hour), 1, true, nil, testNow)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if decision.Passed {
		t.Fatal("Expected failure with too few sources")
	}
	if decision.Criteria[model.CriterionSources] {
		t.Error("Expected source criterion to fail")
	}
	if !strings.Contains(decision.Reason, "insufficient sources (1 < 3)") {
		t.Errorf("Expected reason to name insufficient sources, got %q", decision.Reason)
	}
}

func TestDecide_ListsEveryFailure(t *testing.T) {
	decision, err := Decide(testPolicy(), evaluation("gdp", 60, 40*24*time.Hour), 1, false, ptr(0.5), testNow)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	for _, want := range []string{
		"insufficient sources (1 < 3)",
		"trust score too low (60 < 85)",
		"evaluation too old (40 > 30 days)",
		"assay required but missing",
		"consensus agreement too low (0.50 < 0.80)",
	} {
		if !strings.Contains(decision.Reason, want) {
			t.Errorf("Expected reason to contain %q, got %q", want, decision.Reason)
		}
	}
}

func TestDecide_DefaultTier(t *testing.T) {
	decision, err := Decide(testPolicy(), evaluation("life_expectancy", 80, time.Hour), 2, false, nil, testNow)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if decision.Tier != model.TierMedium {
		t.Errorf("Expected default tier medium, got %s", decision.Tier)
	}
	if !decision.Passed {
		t.Errorf("Expected pass, got %s", decision.Reason)
	}
}

func TestDecide_NilAgreementPasses(t *testing.T) {
	decision, _ := Decide(testPolicy(), evaluation("inflation", 80, time.Hour), 2, false, nil, testNow)
	if !decision.Criteria[model.CriterionConsensus] {
		t.Error("Expected missing agreement to satisfy the consensus criterion")
	}
	if decision.Metrics.ConsensusAgreement != nil {
		t.Error("Expected no agreement in metrics")
	}
}

func TestDecide_UndefinedTier(t *testing.T) {
	policy := testPolicy()
	policy.DefaultTier = "critical"

	if _, err := Decide(policy, evaluation("life_expectancy", 80, 0), 2, false, nil, testNow); err == nil {
		t.Error("Expected error for undefined default tier")
	}
}

func TestClassifyTier_Order(t *testing.T) {
	policy := testPolicy()

	// founded_year is listed in both low and archive; low is checked first
	if got := ClassifyTier(policy, "founded_year"); got != model.TierLow {
		t.Errorf("Expected low, got %s", got)
	}
	if got := ClassifyTier(policy, "area"); got != "archive" {
		t.Errorf("Expected archive, got %s", got)
	}
}

func TestAgeDays_Ceiling(t *testing.T) {
	tests := []struct {
		age  time.Duration
		want int
	}{
		{0, 0},
		{time.Minute, 1},
		{24 * time.Hour, 1},
		{25 * time.Hour, 2},
		{-time.Hour, 0},
	}
	for _, tt := range tests {
		if got := AgeDays(testNow.Add(-tt.age), testNow); got != tt.want {
			t.Errorf("age %v: expected %d, got %d", tt.age, tt.want, got)
		}
	}
}

type memoryLog struct {
	mu        sync.Mutex
	decisions []model.GateDecision
	err       error
}

func (m *memoryLog) AppendGateDecision(ctx context.Context, d model.GateDecision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.decisions = append(m.decisions, d)
	return nil
}

func staticPolicy(p *model.PromotionPolicy) *PolicyStore {
	return NewPolicyStore(func() (*model.PromotionPolicy, error) { return p, nil })
}

func TestGate_Evaluate_LogsDecision(t *testing.T) {
	log := &memoryLog{}
	g := New(staticPolicy(testPolicy()), WithDecisionLog(log), WithClock(func() time.Time { return testNow }))

	decision, err := g.Evaluate(context.Background(), evaluation("gdp", 90, time.Hour), 3, true, ptr(0.95))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if decision.ID == "" {
		t.Error("Expected decision id")
	}
	if !decision.DecidedAt.Equal(testNow) {
		t.Errorf("Expected decided_at %v, got %v", testNow, decision.DecidedAt)
	}
	if len(log.decisions) != 1 || log.decisions[0].ID != decision.ID {
		t.Errorf("Expected decision to be logged, got %+v", log.decisions)
	}
}

func TestGate_Evaluate_Errors(t *testing.T) {
	failing := NewPolicyStore(func() (*model.PromotionPolicy, error) { return nil, errors.New("no such file") })
	if _, err := New(failing).Evaluate(context.Background(), evaluation("gdp", 90, 0), 3, true, nil); err == nil {
		t.Error("Expected policy load error")
	}

	log := &memoryLog{err: errors.New("disk full")}
	g := New(staticPolicy(testPolicy()), WithDecisionLog(log))
	if _, err := g.Evaluate(context.Background(), evaluation("gdp", 90, 0), 3, true, nil); err == nil {
		t.Error("Expected log append error")
	}
}
