package assay

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ppiankov/factgate/internal/cache"
	"github.com/ppiankov/factgate/internal/model"
	"github.com/ppiankov/factgate/internal/worker"
)

type stubAssay struct {
	name  string
	err   error
	calls int
}

func (s *stubAssay) Name() string { return s.name }

func (s *stubAssay) Execute(ctx context.Context, req model.AssayRequest) (*model.RetrievalAssayResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &model.RetrievalAssayResult{AssayID: s.name + "-1", Assay: s.name, Request: req, Verified: true}, nil
}

type memoryResults struct {
	saved []*model.RetrievalAssayResult
}

func (m *memoryResults) SaveAssayResult(ctx context.Context, r *model.RetrievalAssayResult) error {
	m.saved = append(m.saved, r)
	return nil
}

var request = model.AssayRequest{Entity: "Japan", Attribute: "population", ClaimedValue: "125 million"}

func TestRunner_FallbackOnly(t *testing.T) {
	fallback := &stubAssay{name: FallbackName}
	results := &memoryResults{}

	result, err := NewRunner(fallback, WithResultStore(results)).Run(context.Background(), request)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.Assay != FallbackName {
		t.Errorf("Expected fallback result, got %s", result.Assay)
	}
	if len(results.saved) != 1 {
		t.Errorf("Expected result to be saved, got %d", len(results.saved))
	}
}

func TestRunner_PrefersLiveAndCaches(t *testing.T) {
	live := &stubAssay{name: "openai"}
	fallback := &stubAssay{name: FallbackName}
	c := cache.NewMemoryCache(time.Minute, time.Minute)

	runner := NewRunner(fallback, WithLive(live, worker.NewLimiter(100, 10)), WithCache(c))

	for i := 0; i < 3; i++ {
		result, err := runner.Run(context.Background(), request)
		if err != nil {
			t.Fatalf("Run %d: unexpected error %v", i, err)
		}
		if result.Assay != "openai" {
			t.Errorf("Run %d: expected live result, got %s", i, result.Assay)
		}
	}

	if live.calls != 1 {
		t.Errorf("Expected 1 live call thanks to caching, got %d", live.calls)
	}
	if fallback.calls != 0 {
		t.Errorf("Expected fallback unused, got %d calls", fallback.calls)
	}
}

func TestRunner_FallsBackWhenLiveFails(t *testing.T) {
	live := &stubAssay{name: "openai", err: errors.New("rate limited")}
	fallback := &stubAssay{name: FallbackName}

	result, err := NewRunner(fallback, WithLive(live, nil)).Run(context.Background(), request)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.Assay != FallbackName {
		t.Errorf("Expected fallback result, got %s", result.Assay)
	}
	if live.calls != 1 || fallback.calls != 1 {
		t.Errorf("Expected one call each, got live=%d fallback=%d", live.calls, fallback.calls)
	}
}

func TestRunner_FallbackError(t *testing.T) {
	fallback := &stubAssay{name: FallbackName, err: errors.New("no database")}
	if _, err := NewRunner(fallback).Run(context.Background(), request); err == nil {
		t.Error("Expected fallback error")
	}
}

func TestRunner_FallsBackWhenLiveHasNoAnswer(t *testing.T) {
	live := &stubAssay{name: "openai", err: fmt.Errorf("openai answered %q: %w", "", ErrNoAnswer)}
	fallback := &stubAssay{name: FallbackName}
	c := cache.NewMemoryCache(time.Minute, time.Minute)
	results := &memoryResults{}

	runner := NewRunner(fallback, WithLive(live, worker.NewLimiter(100, 10)), WithCache(c), WithResultStore(results))

	for i := 0; i < 2; i++ {
		result, err := runner.Run(context.Background(), request)
		if err != nil {
			t.Fatalf("Run %d: unexpected error %v", i, err)
		}
		if result.Assay != FallbackName {
			t.Errorf("Run %d: expected fallback result, got %s", i, result.Assay)
		}
	}

	if live.calls != 2 {
		t.Errorf("Expected the empty answer not to be cached, got %d live calls", live.calls)
	}
	if fallback.calls != 2 {
		t.Errorf("Expected 2 fallback calls, got %d", fallback.calls)
	}
	if _, ok := c.Get(cacheKey("openai", request)); ok {
		t.Error("Expected nothing cached for an unanswered request")
	}
	for _, r := range results.saved {
		if r.Assay != FallbackName {
			t.Errorf("Expected only fallback results saved, got %s", r.Assay)
		}
	}
}

func TestRunner_DropsUndecodableCacheEntry(t *testing.T) {
	live := &stubAssay{name: "openai"}
	c := cache.NewMemoryCache(time.Minute, time.Minute)
	key := cacheKey("openai", request)
	if err := c.Set(key, []byte("not json"), 0); err != nil {
		t.Fatal(err)
	}

	result, err := NewRunner(&stubAssay{name: FallbackName}, WithLive(live, nil), WithCache(c)).Run(context.Background(), request)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.Assay != "openai" || live.calls != 1 {
		t.Errorf("Expected a fresh live call, got %s after %d calls", result.Assay, live.calls)
	}
	data, ok := c.Get(key)
	if !ok || string(data) == "not json" {
		t.Errorf("Expected the bad entry replaced by the live result, got %q", data)
	}
}
