package score

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/ppiankov/factgate/internal/model"
)

type fakeSources map[string]*model.SourceMetrics

func (f fakeSources) GetSourceMetrics(ctx context.Context, domain string) (*model.SourceMetrics, error) {
	if m, ok := f["error"]; ok && m == nil {
		return nil, errors.New("database is locked")
	}
	return f[domain], nil
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testSettings() model.ScoringConfig {
	return model.DefaultConfig(".").Scoring
}

func newTestScorer(t *testing.T, sources SourceStore) *Scorer {
	s := NewScorer(sources, testSettings(), zaptest.NewLogger(t).Sugar())
	s.now = func() time.Time { return testNow }
	return s
}

func TestComputeTrustScore(t *testing.T) {
	tests := []struct {
		name    string
		scores  [3]int
		weights model.Weights
		want    int
	}{
		{"equal weights", [3]int{91, 100, 95}, model.DefaultWeights(), 95},
		{"rounds half up", [3]int{90, 91, 0}, model.Weights{SourceTrust: 1, Recency: 1}, 91},
		{"source only", [3]int{80, 10, 10}, model.Weights{SourceTrust: 1}, 80},
		{"skewed", [3]int{100, 10, 10}, model.Weights{SourceTrust: 2, Recency: 1, Consensus: 1}, 55},
		{"zero weights", [3]int{100, 100, 100}, model.Weights{}, 0},
	}

	for _, tt := range tests {
		got := ComputeTrustScore(tt.scores[0], tt.scores[1], tt.scores[2], tt.weights)
		if got != tt.want {
			t.Errorf("%s: expected %d, got %d", tt.name, tt.want, got)
		}
	}
}

func TestRecencyScore(t *testing.T) {
	tiers := testSettings().Recency

	tests := []struct {
		age  int
		want int
	}{
		{0, 100},
		{30, 100},
		{31, 50},
		{365, 50},
		{366, 10},
	}

	for _, tt := range tests {
		if got := RecencyScore(tt.age, tiers); got != tt.want {
			t.Errorf("age %d: expected %d, got %d", tt.age, tt.want, got)
		}
	}
}

func TestAgeDays(t *testing.T) {
	if got := AgeDays(testNow.Add(-47*time.Hour), testNow); got != 1 {
		t.Errorf("Expected 1 whole day, got %d", got)
	}
	if got := AgeDays(testNow.Add(time.Hour), testNow); got != 0 {
		t.Errorf("Expected future dates to be 0, got %d", got)
	}
}

func TestSourceTrustScore(t *testing.T) {
	m := model.SourceMetrics{PublicTrust: 90, DataAccuracy: 92, ProprietaryScore: 92}
	if got := SourceTrustScore(m); got != 91 {
		t.Errorf("Expected 91, got %d", got)
	}
}

func TestScorer_Score_CuratedMetrics(t *testing.T) {
	sources := fakeSources{
		"imf.org": {Domain: "imf.org", PublicTrust: 90, DataAccuracy: 95, ProprietaryScore: 88},
	}
	s := newTestScorer(t, sources)

	ev := model.FactsEvaluation{
		SourceURL:      "https://www.data.imf.org/weo?country=JPN",
		ConsensusScore: 95,
		EvaluatedAt:    testNow.Add(-10 * 24 * time.Hour),
	}

	breakdown, err := s.Score(context.Background(), ev, model.DefaultWeights())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if breakdown.SourceTrust != 91 {
		t.Errorf("Expected source trust 91, got %d", breakdown.SourceTrust)
	}
	if breakdown.Recency != 100 {
		t.Errorf("Expected recency 100, got %d", breakdown.Recency)
	}
	if breakdown.TrustScore != 95 {
		t.Errorf("Expected trust score 95, got %d", breakdown.TrustScore)
	}
	if len(breakdown.Signals) != 4 {
		t.Fatalf("Expected 4 signals, got %d", len(breakdown.Signals))
	}
	if breakdown.Signals[0].Data["domain"] != "imf.org" {
		t.Errorf("Expected parent domain lookup, got %v", breakdown.Signals[0].Data["domain"])
	}
	for _, sig := range breakdown.Signals {
		if _, ok := sig.Data["formula"]; !ok {
			t.Errorf("Signal %s has no formula", sig.Type)
		}
	}
}

func TestScorer_Score_AuthorityFallback(t *testing.T) {
	s := newTestScorer(t, fakeSources{})
	settings := testSettings()

	tests := []struct {
		url  string
		want int
	}{
		{"https://www.worldbank.org/en/country", settings.PrimaryTrust},
		{"https://stats.example.gov/table", settings.PrimaryTrust},
		{"https://en.wikipedia.org/wiki/Japan", settings.SecondaryTrust},
		{"https://someblog.example.com/post", settings.DefaultSourceTrust},
		{"", settings.DefaultSourceTrust},
	}

	for _, tt := range tests {
		breakdown, err := s.Score(context.Background(), model.FactsEvaluation{SourceURL: tt.url, EvaluatedAt: testNow}, model.DefaultWeights())
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tt.url, err)
		}
		if breakdown.SourceTrust != tt.want {
			t.Errorf("%s: expected %d, got %d", tt.url, tt.want, breakdown.SourceTrust)
		}
		if breakdown.Signals[0].Severity != model.SeverityWarning {
			t.Errorf("%s: expected estimate to be flagged as warning", tt.url)
		}
	}
}

func TestScorer_Score_StorageError(t *testing.T) {
	s := newTestScorer(t, fakeSources{"error": nil})

	_, err := s.Score(context.Background(), model.FactsEvaluation{SourceURL: "https://imf.org"}, model.DefaultWeights())
	if err == nil {
		t.Fatal("Expected storage error to surface")
	}
}

func TestScorer_Rescore(t *testing.T) {
	sources := fakeSources{
		"imf.org": {PublicTrust: 90, DataAccuracy: 92, ProprietaryScore: 92},
	}
	s := newTestScorer(t, sources)

	ev := model.FactsEvaluation{
		ID:             7,
		SourceURL:      "https://imf.org/data",
		ConsensusScore: 95,
		EvaluatedAt:    testNow.Add(-400 * 24 * time.Hour),
		TrustScore:     12,
	}

	got, err := s.Rescore(context.Background(), ev)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// round((91 + 10 + 95) / 3) = 65
	if got.SourceTrustScore != 91 || got.RecencyScore != 10 || got.TrustScore != 65 {
		t.Errorf("Unexpected rescore: %+v", got)
	}
	if got.Weights != model.DefaultWeights() {
		t.Errorf("Expected configured weights to be recorded, got %+v", got.Weights)
	}

	ev.Weights = model.Weights{SourceTrust: 1}
	got, err = s.Rescore(context.Background(), ev)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got.TrustScore != 91 {
		t.Errorf("Expected record weights to be honoured, got %d", got.TrustScore)
	}
}
