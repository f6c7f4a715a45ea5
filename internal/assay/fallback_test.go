package assay

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/ppiankov/factgate/internal/model"
	"github.com/ppiankov/factgate/internal/verify"
)

type fakeStore struct {
	rows       []model.CredibleEvaluation
	err        error
	lastWindow *model.YearWindow
	calls      int
}

func (f *fakeStore) FindEvaluations(ctx context.Context, entity, attribute string, window *model.YearWindow) ([]model.CredibleEvaluation, error) {
	f.calls++
	f.lastWindow = window
	return f.rows, f.err
}

func trust(v int) *int { return &v }

func year(v int) *int { return &v }

func TestFallback_Execute_Verified(t *testing.T) {
	store := &fakeStore{rows: []model.CredibleEvaluation{
		{ID: 1, Value: "125,100,000", SourceURL: "https://www.imf.org/weo", TrustScore: trust(90)},
		{ID: 2, Value: "124.9M", SourceURL: "https://data.worldbank.org/x", TrustScore: trust(80)},
		{ID: 3, Value: "140 million", SourceURL: "https://blog.example.com/", TrustScore: trust(30)},
	}}
	f := NewFallback(store, verify.ToleranceTable{"population": 2}, 0, nil)

	result, err := f.Execute(context.Background(), model.AssayRequest{
		Entity: "Japan", Attribute: "population", ClaimedValue: "125 million", Year: year(2023),
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// (90 + 80) / 200
	if got := result.ConsensusResult.Agreement; got != 0.85 {
		t.Errorf("Expected agreement 0.85, got %v", got)
	}
	if !result.Verified {
		t.Error("Expected verified")
	}
	if result.ConsensusResult.AgreeingSources != 2 || result.ConsensusResult.TotalSources != 3 {
		t.Errorf("Unexpected source counts: %+v", result.ConsensusResult)
	}
	if !strings.HasPrefix(result.AssayID, "fallback-") {
		t.Errorf("Expected fallback assay id, got %s", result.AssayID)
	}
	if result.Consensus == nil || *result.Consensus != 125.1e6 {
		t.Errorf("Expected weighted median consensus 125.1e6, got %v", result.Consensus)
	}

	if store.lastWindow == nil || store.lastWindow.From != 2022 || store.lastWindow.To != 2024 {
		t.Errorf("Expected ±1 year window, got %+v", store.lastWindow)
	}

	raw, ok := result.RawResponses[FallbackName]
	if !ok || raw.Kind != model.ProvenanceRaw {
		t.Fatalf("Expected raw query provenance, got %+v", result.RawResponses)
	}
	var query string
	if err := json.Unmarshal(raw.Raw, &query); err != nil {
		t.Fatalf("Expected query string, got %s", raw.Raw)
	}
	if !strings.Contains(query, "entity = 'Japan'") || !strings.Contains(query, "BETWEEN 2022 AND 2024") {
		t.Errorf("Unexpected query description: %s", query)
	}

	parsed, ok := result.ParsedValues["imf.org#1"]
	if !ok || parsed.Kind != model.ProvenanceParsed || *parsed.Value != 125.1e6 {
		t.Errorf("Expected parsed value for imf.org#1, got %+v", result.ParsedValues)
	}
	if len(result.ParsedValues) != 3 {
		t.Errorf("Expected 3 parsed values, got %d", len(result.ParsedValues))
	}
}

func TestFallback_Execute_BelowThreshold(t *testing.T) {
	store := &fakeStore{rows: []model.CredibleEvaluation{
		{ID: 1, Value: "100", SourceURL: "a", TrustScore: trust(60)},
		{ID: 2, Value: "200", SourceURL: "b", TrustScore: trust(40)},
	}}
	f := NewFallback(store, verify.ToleranceTable{"default": 5}, 0.7, nil)

	result, err := f.Execute(context.Background(), model.AssayRequest{Entity: "X", Attribute: "gdp", ClaimedValue: "100"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.Verified {
		t.Errorf("Expected unverified at agreement %v", result.ConsensusResult.Agreement)
	}
	if store.lastWindow != nil {
		t.Errorf("Expected no year window without a year, got %+v", store.lastWindow)
	}
}

func TestFallback_Execute_DefaultTrust(t *testing.T) {
	store := &fakeStore{rows: []model.CredibleEvaluation{
		{ID: 1, Value: "100", SourceURL: "a"},
		{ID: 2, Value: "not a number", SourceURL: "b"},
	}}
	f := NewFallback(store, verify.ToleranceTable{}, 0, nil)

	result, err := f.Execute(context.Background(), model.AssayRequest{Entity: "X", Attribute: "gdp", ClaimedValue: "100"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.ConsensusResult.TotalTrust != 100 || result.ConsensusResult.Agreement != 0.5 {
		t.Errorf("Expected unscored rows to weigh 50 each, got %+v", result.ConsensusResult)
	}
	if result.Verified {
		t.Error("Expected 0.5 agreement to stay unverified")
	}
}

func TestFallback_Execute_PointInTime(t *testing.T) {
	store := &fakeStore{rows: []model.CredibleEvaluation{{ID: 1, Value: "1947", SourceURL: "a"}}}
	f := NewFallback(store, verify.ToleranceTable{"founded_year": 0}, 0, nil)

	result, err := f.Execute(context.Background(), model.AssayRequest{
		Entity: "India", Attribute: "founded_year", ClaimedValue: "1947", Year: year(2020),
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if store.lastWindow != nil {
		t.Errorf("Expected no window for point-in-time attribute, got %+v", store.lastWindow)
	}
	if !result.Verified {
		t.Error("Expected verified")
	}
}

func TestFallback_Execute_NoEvaluations(t *testing.T) {
	f := NewFallback(&fakeStore{}, verify.ToleranceTable{}, 0, nil)

	result, err := f.Execute(context.Background(), model.AssayRequest{Entity: "X", Attribute: "gdp", ClaimedValue: "1"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.Verified || result.Consensus != nil || result.ConsensusResult.Agreement != 0 {
		t.Errorf("Expected empty unverified result, got %+v", result)
	}
}

func TestFallback_Execute_NonNumericClaim(t *testing.T) {
	store := &fakeStore{rows: []model.CredibleEvaluation{
		{ID: 1, Value: "Tokyo", SourceURL: "https://www.cia.gov/factbook", TrustScore: trust(90)},
		{ID: 2, Value: "Kyoto", SourceURL: "https://old.example/history", TrustScore: trust(10)},
	}}
	f := NewFallback(store, verify.ToleranceTable{}, 0, nil)

	result, err := f.Execute(context.Background(), model.AssayRequest{Entity: "Japan", Attribute: "capital", ClaimedValue: "Tokyo"})
	if err != nil {
		t.Fatalf("Expected a string-equality result, got error %v", err)
	}
	if result == nil {
		t.Fatal("Expected a result")
	}
	if got := result.ConsensusResult.Agreement; got != 0.9 {
		t.Errorf("Expected agreement 0.9, got %v", got)
	}
	if !result.Verified || result.ConsensusResult.AgreeingSources != 1 {
		t.Errorf("Expected verified with one agreeing source, got %+v", result.ConsensusResult)
	}
	if _, ok := result.RawResponses[FallbackName]; !ok {
		t.Error("Expected query provenance")
	}

	result, err = f.Execute(context.Background(), model.AssayRequest{Entity: "Japan", Attribute: "capital", ClaimedValue: "many"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.Verified || result.ConsensusResult.Agreement != 0 {
		t.Errorf("Expected unmatched string to stay unverified, got %+v", result.ConsensusResult)
	}
}

func TestFallback_Execute_StorageError(t *testing.T) {
	failing := &fakeStore{err: errors.New("database is locked")}
	f := NewFallback(failing, verify.ToleranceTable{}, 0, nil)
	if _, err := f.Execute(context.Background(), model.AssayRequest{ClaimedValue: "1"}); err == nil {
		t.Error("Expected storage error")
	}
}
