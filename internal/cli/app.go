package cli

import (
	"context"
	"net/http"

	"github.com/cockroachdb/errors"

	"github.com/ppiankov/factgate/internal/assay"
	"github.com/ppiankov/factgate/internal/cache"
	"github.com/ppiankov/factgate/internal/config"
	"github.com/ppiankov/factgate/internal/gate"
	"github.com/ppiankov/factgate/internal/model"
	"github.com/ppiankov/factgate/internal/pipeline"
	"github.com/ppiankov/factgate/internal/score"
	"github.com/ppiankov/factgate/internal/store"
	"github.com/ppiankov/factgate/internal/verify"
	"github.com/ppiankov/factgate/internal/worker"
)

// openStore opens the configured database; callers close it
func openStore(ctx context.Context) (*store.Store, error) {
	st, err := store.Open(ctx, appConfig.Database.Path)
	if err != nil {
		return nil, err
	}
	logger.Debugw("Opened database", "path", appConfig.Database.Path)
	return st, nil
}

// newPipeline wires the verification pipeline to st
func newPipeline(st *store.Store, mode model.VerificationMode) (*pipeline.Pipeline, error) {
	tables, err := config.LoadTables(appConfig.Tables)
	if err != nil {
		return nil, err
	}

	engine := verify.NewEngine(tables.Tolerances,
		verify.WithUnmetSink(st),
		verify.WithLogger(logger),
	)

	fetchLimiter := worker.NewLimiter(2, 1)
	return pipeline.New(tables, engine, st,
		pipeline.WithMode(mode),
		pipeline.WithConsensusLoader(verify.NewConsensusLoader(st, appConfig.Concurrency.StorageReads)),
		pipeline.WithFetcher(pipeline.NewFetcher(appConfig.HTTP, fetchLimiter)),
		pipeline.WithLogger(logger),
	), nil
}

// newAssayRunner builds the fallback assay and, when a provider is
// configured, the rate-limited and cached live assay in front of it
func newAssayRunner(st *store.Store) (*assay.Runner, error) {
	tolerances, err := config.LoadTolerances(appConfig.Tables.Tolerances)
	if err != nil {
		return nil, err
	}

	cfg := appConfig.Assay
	fallback := assay.NewFallback(st, tolerances, cfg.AgreementThreshold, logger)
	opts := []assay.RunnerOption{
		assay.WithResultStore(st),
		assay.WithRunnerLogger(logger),
	}

	live, err := assay.NewLiveAssay(cfg, tolerances, &http.Client{Timeout: cfg.Timeout})
	if err != nil {
		return nil, errors.Wrap(err, "configure live assay")
	}
	if live != nil {
		limiter := worker.NewLimiter(cfg.RequestsPerSecond, cfg.Burst)
		opts = append(opts,
			assay.WithLive(live, limiter),
			assay.WithCache(cache.NewLayeredCache(cfg.CacheTTL, cfg.CacheDir, cfg.CacheTTL)),
		)
		logger.Debugw("Live assay enabled", "provider", cfg.Provider, "model", cfg.Model)
	}

	return assay.NewRunner(fallback, opts...), nil
}

// newScorer builds the evaluation scorer backed by st's source metrics
func newScorer(st *store.Store) *score.Scorer {
	return score.NewScorer(st, appConfig.Scoring, logger)
}

// newGate builds the promotion gate with a cached, reloadable policy
func newGate(st *store.Store) (*gate.Gate, *gate.PolicyStore) {
	path := appConfig.Tables.Policy
	policies := gate.NewPolicyStore(func() (*model.PromotionPolicy, error) {
		return config.LoadPolicy(path)
	})
	return gate.New(policies, gate.WithDecisionLog(st), gate.WithLogger(logger)), policies
}
