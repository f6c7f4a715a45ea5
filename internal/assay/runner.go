package assay

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/ppiankov/factgate/internal/cache"
	"github.com/ppiankov/factgate/internal/model"
	"github.com/ppiankov/factgate/internal/worker"
)

// Assay checks one claimed value and records how it reached its verdict
type Assay interface {
	Name() string
	Execute(ctx context.Context, req model.AssayRequest) (*model.RetrievalAssayResult, error)
}

// ResultStore persists assay results for the promotion gate
type ResultStore interface {
	SaveAssayResult(ctx context.Context, result *model.RetrievalAssayResult) error
}

// Runner prefers the live assay and falls back to stored evaluations when
// none is configured or the live call fails or has no answer. Only live
// answers are cached.
type Runner struct {
	live     Assay
	fallback Assay
	limiter  *worker.Limiter
	cache    cache.Cache
	results  ResultStore
	logger   *zap.SugaredLogger
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithLive enables a live assay, rate-limited per provider by limiter
func WithLive(live Assay, limiter *worker.Limiter) RunnerOption {
	return func(r *Runner) {
		r.live = live
		r.limiter = limiter
	}
}

// WithCache caches live responses
func WithCache(c cache.Cache) RunnerOption {
	return func(r *Runner) { r.cache = c }
}

// WithResultStore saves every result
func WithResultStore(s ResultStore) RunnerOption {
	return func(r *Runner) { r.results = s }
}

// WithRunnerLogger sets the runner logger
func WithRunnerLogger(logger *zap.SugaredLogger) RunnerOption {
	return func(r *Runner) { r.logger = logger }
}

// NewRunner creates a runner around fallback
func NewRunner(fallback Assay, opts ...RunnerOption) *Runner {
	r := &Runner{fallback: fallback, logger: zap.NewNop().Sugar()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the assay for req
func (r *Runner) Run(ctx context.Context, req model.AssayRequest) (*model.RetrievalAssayResult, error) {
	result, err := r.runLive(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, ErrNoAnswer) {
			r.logger.Debugw("Live assay had no answer, using fallback", "assay", r.live.Name(), "error", err)
		} else {
			r.logger.Warnw("Live assay failed, using fallback", "assay", r.live.Name(), "error", err)
		}
	}

	if result == nil {
		result, err = r.fallback.Execute(ctx, req)
		if err != nil {
			return nil, errors.Wrap(err, "fallback assay")
		}
	}

	if r.results != nil {
		if err := r.results.SaveAssayResult(ctx, result); err != nil {
			return result, errors.Wrap(err, "save assay result")
		}
	}

	return result, nil
}

// runLive returns nil, nil when no live assay is configured
func (r *Runner) runLive(ctx context.Context, req model.AssayRequest) (*model.RetrievalAssayResult, error) {
	if r.live == nil {
		return nil, nil
	}

	key := cacheKey(r.live.Name(), req)
	if r.cache != nil {
		if data, ok := r.cache.Get(key); ok {
			var cached model.RetrievalAssayResult
			if err := json.Unmarshal(data, &cached); err == nil {
				r.logger.Debugw("Assay cache hit", "assay", r.live.Name(), "entity", req.Entity, "attribute", req.Attribute)
				return &cached, nil
			}
			// Written by an older version; drop it and ask again
			_ = r.cache.Delete(key)
		}
	}

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx, r.live.Name()); err != nil {
			return nil, err
		}
	}

	result, err := r.live.Execute(ctx, req)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		if data, err := json.Marshal(result); err == nil {
			if err := r.cache.Set(key, data, 0); err != nil {
				r.logger.Debugw("Failed to cache assay result", "error", err)
			}
		}
	}

	return result, nil
}

func cacheKey(assay string, req model.AssayRequest) string {
	year := ""
	if req.Year != nil {
		year = strconv.Itoa(*req.Year)
	}
	return cache.Key("assay", assay, req.Entity, req.Attribute, req.ClaimedValue, year)
}
