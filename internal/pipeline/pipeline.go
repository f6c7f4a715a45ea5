package pipeline

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/ppiankov/factgate/internal/extract"
	"github.com/ppiankov/factgate/internal/model"
	"github.com/ppiankov/factgate/internal/verify"
)

// Tables are the lookup tables driving extraction and verification
type Tables struct {
	Entities   []string          // Canonical entity names
	Aliases    map[string]string // alias -> canonical name
	Attributes map[string]string // keyword -> attribute
	Tolerances verify.ToleranceTable
}

// Pipeline turns text into a verification report:
// resolve entity, extract claims, infer attributes, verify
type Pipeline struct {
	resolver   *extract.EntityResolver
	inferencer *extract.AttributeInferencer
	engine     *verify.Engine
	facts      verify.FactStore
	consensus  *verify.ConsensusLoader
	fetcher    *Fetcher
	mode       model.VerificationMode
	logger     *zap.SugaredLogger
	now        func() time.Time
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithMode selects single-source or consensus verification
func WithMode(mode model.VerificationMode) Option {
	return func(p *Pipeline) { p.mode = mode }
}

// WithFetcher enables VerifyURL
func WithFetcher(f *Fetcher) Option {
	return func(p *Pipeline) { p.fetcher = f }
}

// WithConsensusLoader sets where consensus data comes from
func WithConsensusLoader(l *verify.ConsensusLoader) Option {
	return func(p *Pipeline) { p.consensus = l }
}

// WithLogger sets the pipeline logger
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// New creates a pipeline. facts serves single mode; consensus mode needs
// WithConsensusLoader.
func New(tables Tables, engine *verify.Engine, facts verify.FactStore, opts ...Option) *Pipeline {
	p := &Pipeline{
		resolver:   extract.NewEntityResolver(tables.Entities, tables.Aliases),
		inferencer: extract.NewAttributeInferencer(tables.Attributes),
		engine:     engine,
		facts:      facts,
		mode:       model.ModeSingle,
		logger:     zap.NewNop().Sugar(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Mode returns the verification mode in use
func (p *Pipeline) Mode() model.VerificationMode {
	return p.mode
}

type pendingClaim struct {
	claim     model.NumericClaim
	attribute string
}

// VerifyText verifies every numeric claim in text
func (p *Pipeline) VerifyText(ctx context.Context, text string) (*model.Report, error) {
	report := &model.Report{
		Mode:      p.mode,
		CheckedAt: p.now().UTC(),
		Claims:    []model.ClaimReport{},
	}

	entity, _ := p.resolver.Resolve(text)
	report.Entity = entity

	var pending []pendingClaim
	for _, claim := range extract.ExtractClaims(text) {
		if claim.Temporal {
			report.Skipped = append(report.Skipped, claim)
			continue
		}
		attribute, _ := p.inferencer.Infer(claim)
		pending = append(pending, pendingClaim{claim: claim, attribute: attribute})
	}

	p.logger.Debugw("Extracted claims",
		"entity", entity,
		"claims", len(pending),
		"skipped", len(report.Skipped),
		"mode", p.mode,
	)

	var err error
	switch p.mode {
	case model.ModeConsensus:
		err = p.verifyConsensus(ctx, entity, pending, report)
	default:
		err = p.verifySingle(ctx, entity, pending, report)
	}
	if err != nil {
		return nil, err
	}

	return report, nil
}

func (p *Pipeline) verifySingle(ctx context.Context, entity string, pending []pendingClaim, report *model.Report) error {
	factsByAttr := make(map[string][]model.FactRecord)

	for _, pc := range pending {
		var facts []model.FactRecord
		if entity != "" && pc.attribute != "" {
			cached, ok := factsByAttr[pc.attribute]
			if !ok {
				var err error
				cached, err = p.facts.FindFacts(ctx, entity, pc.attribute)
				if err != nil {
					return errors.Wrapf(err, "find facts for %s/%s", entity, pc.attribute)
				}
				factsByAttr[pc.attribute] = cached
			}
			facts = cached
		}

		result := p.engine.Verify(pc.claim, pc.attribute, entity, facts)
		cr := model.ClaimReport{
			Claim:     pc.claim,
			Attribute: pc.attribute,
			Status:    result.Status,
			Single:    &result,
		}
		cr.Tooltip = SingleTooltip(entity, pc.attribute, result)
		report.Claims = append(report.Claims, cr)
		report.Summary.Add(result.Status)
	}
	return nil
}

func (p *Pipeline) verifyConsensus(ctx context.Context, entity string, pending []pendingClaim, report *model.Report) error {
	if p.consensus == nil {
		return errors.New("consensus mode requires an evaluation store")
	}

	var keys []verify.Key
	if entity != "" {
		for _, pc := range pending {
			keys = append(keys, verify.Key{Entity: entity, Attribute: pc.attribute})
		}
	}

	index, err := p.consensus.Load(ctx, keys)
	if err != nil {
		return err
	}

	for _, pc := range pending {
		result := p.engine.VerifyConsensus(pc.claim, pc.attribute, entity, index)
		cr := model.ClaimReport{
			Claim:     pc.claim,
			Attribute: pc.attribute,
			Status:    result.Status,
			Consensus: &result,
		}
		cr.Tooltip = ConsensusTooltip(entity, pc.attribute, result)
		report.Claims = append(report.Claims, cr)
		report.Summary.Add(result.Status)
	}
	return nil
}

// VerifyURL fetches a page and verifies its visible text
func (p *Pipeline) VerifyURL(ctx context.Context, rawURL string) (*model.Report, error) {
	if p.fetcher == nil {
		return nil, errors.New("URL verification is not configured")
	}

	page, err := p.fetcher.FetchWithRetry(ctx, rawURL)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch %s", rawURL)
	}

	text, err := extract.ExtractText(page.HTML)
	if err != nil {
		return nil, errors.Wrap(err, "extract text")
	}

	report, err := p.VerifyText(ctx, text)
	if err != nil {
		return nil, err
	}
	report.SourceURL = page.FinalURL
	return report, nil
}
