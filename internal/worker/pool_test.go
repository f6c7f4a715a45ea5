package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type mockResult struct {
	index int
	err   error
}

func (r *mockResult) GetError() error {
	return r.err
}

type mockJob struct {
	index     int
	duration  time.Duration
	shouldErr bool
	executed  *int32
}

func (j *mockJob) Execute(ctx context.Context) Result {
	if j.executed != nil {
		atomic.AddInt32(j.executed, 1)
	}
	if j.duration > 0 {
		select {
		case <-time.After(j.duration):
		case <-ctx.Done():
			return &mockResult{index: j.index, err: ctx.Err()}
		}
	}
	if j.shouldErr {
		return &mockResult{index: j.index, err: errors.New("job error")}
	}
	return &mockResult{index: j.index}
}

func TestNewPool(t *testing.T) {
	if p := NewPool(5); p.workers != 5 {
		t.Errorf("expected 5 workers, got %d", p.workers)
	}
	if p := NewPool(0); p.workers != 1 {
		t.Errorf("expected default 1 worker for 0 input, got %d", p.workers)
	}
	if p := NewPool(-1); p.workers != 1 {
		t.Errorf("expected default 1 worker for negative input, got %d", p.workers)
	}
}

func TestPool_RunPreservesOrder(t *testing.T) {
	var executed int32
	jobs := make([]Job, 50)
	for i := range jobs {
		// Later jobs finish first
		jobs[i] = &mockJob{index: i, duration: time.Duration(50-i) * 100 * time.Microsecond, executed: &executed}
	}

	results := NewPool(4).Run(context.Background(), jobs)

	if len(results) != len(jobs) {
		t.Fatalf("expected %d results, got %d", len(jobs), len(results))
	}
	for i, r := range results {
		if r.(*mockResult).index != i {
			t.Errorf("result %d belongs to job %d", i, r.(*mockResult).index)
		}
	}
	if atomic.LoadInt32(&executed) != int32(len(jobs)) {
		t.Errorf("expected %d executed jobs, got %d", len(jobs), executed)
	}
}

type concurrencyJob struct {
	start    func()
	end      func()
	duration time.Duration
}

func (j *concurrencyJob) Execute(ctx context.Context) Result {
	j.start()
	time.Sleep(j.duration)
	j.end()
	return &mockResult{}
}

func TestPool_Concurrency(t *testing.T) {
	workers := 10
	var current, maxConcurrent int32
	var mu sync.Mutex

	jobs := make([]Job, 50)
	for i := range jobs {
		jobs[i] = &concurrencyJob{
			start: func() {
				curr := atomic.AddInt32(&current, 1)
				mu.Lock()
				if curr > maxConcurrent {
					maxConcurrent = curr
				}
				mu.Unlock()
			},
			end:      func() { atomic.AddInt32(&current, -1) },
			duration: 5 * time.Millisecond,
		}
	}

	NewPool(workers).Run(context.Background(), jobs)

	mu.Lock()
	defer mu.Unlock()
	if maxConcurrent > int32(workers) {
		t.Errorf("max concurrency %d exceeded workers %d", maxConcurrent, workers)
	}
}

func TestPool_ErrorHandling(t *testing.T) {
	results := NewPool(2).Run(context.Background(), []Job{
		&mockJob{shouldErr: true},
		&mockJob{},
	})

	if results[0].GetError() == nil {
		t.Error("expected first job to fail")
	}
	if results[1].GetError() != nil {
		t.Errorf("expected second job to succeed, got %v", results[1].GetError())
	}
}

func TestPool_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := NewPool(2).Run(ctx, []Job{&mockJob{duration: time.Second}, &mockJob{duration: time.Second}})
	if len(results) != 2 {
		t.Fatalf("expected 2 result slots, got %d", len(results))
	}
	for i, r := range results {
		if r != nil && r.GetError() == nil {
			t.Errorf("job %d: expected cancellation or no result", i)
		}
	}
}

func TestPool_Empty(t *testing.T) {
	if results := NewPool(3).Run(context.Background(), nil); len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}
