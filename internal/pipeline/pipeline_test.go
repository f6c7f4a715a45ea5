package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/ppiankov/factgate/internal/model"
	"github.com/ppiankov/factgate/internal/verify"
	"github.com/ppiankov/factgate/internal/worker"
)

var _ worker.Verifier = (*Pipeline)(nil)

func testTables() Tables {
	return Tables{
		Entities: []string{"Japan", "Germany"},
		Aliases:  map[string]string{"japanese": "Japan"},
		Attributes: map[string]string{
			"population": "population",
			"gdp":        "gdp",
		},
		Tolerances: verify.ToleranceTable{"default": 5, "population": 2},
	}
}

type fakeFacts struct {
	mu    sync.Mutex
	facts []model.FactRecord
	calls int
	err   error
}

func (f *fakeFacts) FindFacts(ctx context.Context, entity, attribute string) ([]model.FactRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []model.FactRecord
	for _, fact := range f.facts {
		if strings.EqualFold(fact.Entity, entity) && fact.Attribute == attribute {
			out = append(out, fact)
		}
	}
	return out, nil
}

type fakeEvaluations struct {
	rows []model.CredibleEvaluation
}

func (f *fakeEvaluations) FindEvaluations(ctx context.Context, entity, attribute string, window *model.YearWindow) ([]model.CredibleEvaluation, error) {
	var out []model.CredibleEvaluation
	for _, r := range f.rows {
		if strings.EqualFold(r.Entity, entity) && r.Attribute == attribute {
			out = append(out, r)
		}
	}
	return out, nil
}

func japanFacts() *fakeFacts {
	asOf := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	return &fakeFacts{facts: []model.FactRecord{
		{Entity: "Japan", Attribute: "population", Value: "125 million", SourceTrust: "UN", AsOfDate: &asOf},
		{Entity: "Japan", Attribute: "gdp", Value: "4.2 trillion"},
	}}
}

func TestPipeline_VerifyTextSingle(t *testing.T) {
	facts := japanFacts()
	p := New(testTables(), verify.NewEngine(testTables().Tolerances), facts)

	report, err := p.VerifyText(context.Background(), "Japan has a population of 126 million and a gdp of 9 trillion.")
	if err != nil {
		t.Fatalf("VerifyText failed: %v", err)
	}

	if report.Entity != "Japan" {
		t.Errorf("Expected entity Japan, got %q", report.Entity)
	}
	if report.Mode != model.ModeSingle {
		t.Errorf("Expected single mode, got %s", report.Mode)
	}
	if len(report.Claims) != 2 {
		t.Fatalf("Expected 2 claims, got %d", len(report.Claims))
	}

	pop := report.Claims[0]
	if pop.Attribute != "population" || pop.Status != model.StatusClose {
		t.Errorf("Expected close population claim, got %s/%s", pop.Attribute, pop.Status)
	}
	if pop.Single == nil || pop.Single.MatchedFact == nil {
		t.Fatal("Expected single-source result with matched fact")
	}
	if !strings.HasPrefix(pop.Tooltip, "Close: Japan population is 125 million (UN, as of 2023)") {
		t.Errorf("Unexpected tooltip: %s", pop.Tooltip)
	}

	if report.Claims[1].Status != model.StatusMismatch {
		t.Errorf("Expected gdp mismatch, got %s", report.Claims[1].Status)
	}

	want := model.Summary{Total: 2, Close: 1, Mismatch: 1}
	if report.Summary != want {
		t.Errorf("Expected summary %+v, got %+v", want, report.Summary)
	}
}

func TestPipeline_FactsLookedUpOncePerAttribute(t *testing.T) {
	facts := japanFacts()
	p := New(testTables(), verify.NewEngine(testTables().Tolerances), facts)

	_, err := p.VerifyText(context.Background(), "Japan population is 125 million, up from a population of 120 million.")
	if err != nil {
		t.Fatalf("VerifyText failed: %v", err)
	}
	if facts.calls != 1 {
		t.Errorf("Expected 1 fact lookup, got %d", facts.calls)
	}
}

func TestPipeline_NoEntity(t *testing.T) {
	facts := japanFacts()
	p := New(testTables(), verify.NewEngine(testTables().Tolerances), facts)

	report, err := p.VerifyText(context.Background(), "The population is 125 million.")
	if err != nil {
		t.Fatalf("VerifyText failed: %v", err)
	}
	if report.Entity != "" {
		t.Errorf("Expected no entity, got %q", report.Entity)
	}
	if facts.calls != 0 {
		t.Errorf("Expected no storage reads without an entity, got %d", facts.calls)
	}
	if len(report.Claims) != 1 || report.Claims[0].Status != model.StatusUnknown {
		t.Fatalf("Expected one unknown claim, got %+v", report.Claims)
	}
	if report.Claims[0].Tooltip != "Unknown: no entity recognised in text" {
		t.Errorf("Unexpected tooltip: %s", report.Claims[0].Tooltip)
	}
}

func TestPipeline_TemporalYearsSkipped(t *testing.T) {
	p := New(testTables(), verify.NewEngine(testTables().Tolerances), japanFacts())

	report, err := p.VerifyText(context.Background(), "Japan was founded in 1985 and its population reached 125 million.")
	if err != nil {
		t.Fatalf("VerifyText failed: %v", err)
	}
	if len(report.Skipped) != 1 || report.Skipped[0].Value != "1985" {
		t.Errorf("Expected 1985 to be skipped, got %+v", report.Skipped)
	}
	for _, c := range report.Claims {
		if c.Claim.Value == "1985" {
			t.Error("Temporal year should not be verified")
		}
	}
}

func TestPipeline_StorageError(t *testing.T) {
	facts := &fakeFacts{err: errors.New("database is locked")}
	p := New(testTables(), verify.NewEngine(testTables().Tolerances), facts)

	_, err := p.VerifyText(context.Background(), "Japan population: 125 million")
	if err == nil {
		t.Fatal("Expected storage error to propagate")
	}
	if !strings.Contains(err.Error(), "database is locked") {
		t.Errorf("Expected wrapped storage error, got %v", err)
	}
}

func TestPipeline_VerifyTextConsensus(t *testing.T) {
	evals := &fakeEvaluations{rows: []model.CredibleEvaluation{
		{ID: 1, Entity: "Japan", Attribute: "population", Value: "124,000,000", SourceURL: "https://un.org/a"},
		{ID: 2, Entity: "Japan", Attribute: "population", Value: "125,000,000", SourceURL: "https://worldbank.org/b"},
		{ID: 3, Entity: "Japan", Attribute: "population", Value: "126,000,000", SourceURL: "https://imf.org/c"},
	}}

	p := New(testTables(), verify.NewEngine(verify.ToleranceTable{"default": 0}), nil,
		WithMode(model.ModeConsensus),
		WithConsensusLoader(verify.NewConsensusLoader(evals, 4)),
	)

	report, err := p.VerifyText(context.Background(), "Japanese population is 125.5 million, gdp is 4 trillion")
	if err != nil {
		t.Fatalf("VerifyText failed: %v", err)
	}
	if len(report.Claims) != 2 {
		t.Fatalf("Expected 2 claims, got %d", len(report.Claims))
	}

	pop := report.Claims[0]
	if pop.Status != model.StatusVerified {
		t.Errorf("Expected verified consensus claim, got %s", pop.Status)
	}
	if pop.Consensus == nil || pop.Consensus.MultiSource.SourceCount != 3 {
		t.Fatalf("Expected consensus over 3 sources, got %+v", pop.Consensus)
	}
	if !strings.HasPrefix(pop.Tooltip, "Verified: 3 sources put Japan population at 125 million (range 124 million to 126 million)") {
		t.Errorf("Unexpected tooltip: %s", pop.Tooltip)
	}

	gdp := report.Claims[1]
	if gdp.Status != model.StatusUnknown || gdp.Tooltip != "Unknown: no data for Japan gdp" {
		t.Errorf("Expected unknown gdp with no-data tooltip, got %s / %s", gdp.Status, gdp.Tooltip)
	}
}

func TestPipeline_ConsensusWithoutLoader(t *testing.T) {
	p := New(testTables(), verify.NewEngine(nil), nil, WithMode(model.ModeConsensus))
	if _, err := p.VerifyText(context.Background(), "Japan population 125 million"); err == nil {
		t.Fatal("Expected error when consensus mode has no evaluation store")
	}
}

func TestPipeline_VerifyURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `<html><head><script>var population = 1;</script></head>
<body><p>Germany has a population of 84 million.</p></body></html>`)
	}))
	defer server.Close()

	facts := &fakeFacts{facts: []model.FactRecord{
		{Entity: "Germany", Attribute: "population", Value: "84 million"},
	}}
	p := New(testTables(), verify.NewEngine(testTables().Tolerances), facts,
		WithFetcher(NewFetcher(testHTTPConfig(), nil)))

	report, err := p.VerifyURL(context.Background(), server.URL+"/germany")
	if err != nil {
		t.Fatalf("VerifyURL failed: %v", err)
	}
	if report.SourceURL != server.URL+"/germany" {
		t.Errorf("Expected source URL to be recorded, got %q", report.SourceURL)
	}
	if report.Summary.Verified != 1 || report.Summary.Total != 1 {
		t.Errorf("Expected one verified claim, got %+v", report.Summary)
	}
}

func TestPipeline_VerifyURLWithoutFetcher(t *testing.T) {
	p := New(testTables(), verify.NewEngine(nil), japanFacts())
	if _, err := p.VerifyURL(context.Background(), "https://example.com"); err == nil {
		t.Fatal("Expected error without a fetcher")
	}
}

func TestRenderJSON(t *testing.T) {
	p := New(testTables(), verify.NewEngine(testTables().Tolerances), japanFacts())
	report, err := p.VerifyText(context.Background(), "Japan population: 125 million")
	if err != nil {
		t.Fatalf("VerifyText failed: %v", err)
	}

	var buf bytes.Buffer
	if err := RenderJSON(&buf, report); err != nil {
		t.Fatalf("RenderJSON failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}
	if decoded["entity"] != "Japan" || decoded["mode"] != "single" {
		t.Errorf("Unexpected JSON fields: %v", decoded)
	}
}

func TestRenderSummary(t *testing.T) {
	report := &model.Report{
		Entity: "Japan",
		Mode:   model.ModeSingle,
		Claims: []model.ClaimReport{
			{Claim: model.NumericClaim{Value: "125 million"}, Attribute: "population", Status: model.StatusVerified, Tooltip: "Verified: Japan population is 125 million"},
		},
		Summary: model.Summary{Total: 1, Verified: 1},
	}

	var buf bytes.Buffer
	RenderSummary(&buf, report)
	out := buf.String()

	for _, want := range []string{"Entity:  Japan", "✓ 125 million", "Verified: Japan population is 125 million", "Total: 1  Verified: 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}
}
