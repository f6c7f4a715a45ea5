package worker

import (
	"bufio"
	"context"
	"os"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/ppiankov/factgate/internal/model"
)

// Verifier produces a verification report for text or a web page
type Verifier interface {
	VerifyText(ctx context.Context, text string) (*model.Report, error)
	VerifyURL(ctx context.Context, rawURL string) (*model.Report, error)
}

// BatchItem is one line of a batch file
type BatchItem struct {
	Line  int    // 1-based line number in the input
	Input string // Text, or a URL to fetch
}

// IsURL reports whether the item should be fetched rather than verified as text
func (b BatchItem) IsURL() bool {
	return strings.HasPrefix(b.Input, "http://") || strings.HasPrefix(b.Input, "https://")
}

// VerifyJob verifies one batch item
type VerifyJob struct {
	Item     BatchItem
	Verifier Verifier
}

// Execute runs the verification
func (j *VerifyJob) Execute(ctx context.Context) Result {
	var (
		report *model.Report
		err    error
	)
	if j.Item.IsURL() {
		report, err = j.Verifier.VerifyURL(ctx, j.Item.Input)
	} else {
		report, err = j.Verifier.VerifyText(ctx, j.Item.Input)
	}
	return &BatchResult{Item: j.Item, Report: report, Error: err}
}

// BatchResult is the outcome of one batch item
type BatchResult struct {
	Item   BatchItem
	Report *model.Report
	Error  error
}

// GetError returns the error from the verification
func (r *BatchResult) GetError() error {
	return r.Error
}

// BatchProcessor verifies many inputs concurrently
type BatchProcessor struct {
	verifier    Verifier
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(verifier Verifier, concurrency int) *BatchProcessor {
	return &BatchProcessor{verifier: verifier, concurrency: concurrency}
}

// Process verifies items and returns results in input order. Items skipped
// because ctx was cancelled carry the context error.
func (b *BatchProcessor) Process(ctx context.Context, items []BatchItem) []*BatchResult {
	jobs := make([]Job, len(items))
	for i, item := range items {
		jobs[i] = &VerifyJob{Item: item, Verifier: b.verifier}
	}

	results := NewPool(b.concurrency).Run(ctx, jobs)

	out := make([]*BatchResult, len(results))
	for i, r := range results {
		if r == nil {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			out[i] = &BatchResult{Item: items[i], Error: err}
			continue
		}
		out[i] = r.(*BatchResult)
	}
	return out
}

// ProcessFile reads items from a file and verifies them
func (b *BatchProcessor) ProcessFile(ctx context.Context, path string) ([]*BatchResult, error) {
	items, err := ReadBatchFile(path)
	if err != nil {
		return nil, err
	}
	return b.Process(ctx, items), nil
}

// ReadBatchFile reads one input per line, skipping blank lines and # comments
func ReadBatchFile(path string) ([]BatchItem, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open batch file")
	}
	defer func() { _ = file.Close() }()

	var items []BatchItem
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		items = append(items, BatchItem{Line: line, Input: text})
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read batch file")
	}
	return items, nil
}
