package verify

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/factgate/internal/extract"
	"github.com/ppiankov/factgate/internal/model"
)

// ConsensusIndex holds multi-source data keyed by ConsensusKey
type ConsensusIndex map[string]*model.MultiSourceData

// ConsensusKey builds the "entity|attribute" lookup key. Entities are
// case-folded so that lookups match the single-source path.
func ConsensusKey(entity, attribute string) string {
	return strings.ToLower(entity) + "|" + attribute
}

// granularities are the rounding steps a claimed figure may imply, coarsest first
var granularities = []float64{1e9, 1e6, 1e3, 1}

// VerifyConsensus checks a claim against the consensus range of several sources
func VerifyConsensus(claim model.NumericClaim, attribute, entity string, consensus ConsensusIndex, tolerances ToleranceTable) model.ConsensusResult {
	if attribute == "" {
		return model.ConsensusResult{Status: model.StatusUnknown}
	}

	data := consensus[ConsensusKey(entity, attribute)]
	if data == nil {
		return model.ConsensusResult{Status: model.StatusUnknown}
	}

	claimed, ok := extract.ParseNumber(claim.Value)
	if !ok {
		return model.ConsensusResult{Status: model.StatusUnknown, MultiSource: data}
	}

	diff := PercentDiff(claimed, data.Consensus)
	result := model.ConsensusResult{
		Status:      model.StatusMismatch,
		MultiSource: data,
		PercentDiff: floatPtr(diff),
	}

	// "125 million" is a rounded figure; compare at the same precision.
	// Years are skipped: 2000 would otherwise match anything from 1500 to 2499.
	if !isYearAttribute(attribute) {
		if g := impliedGranularity(claimed); g > 0 && roundTo(data.Consensus, g) == claimed {
			result.Status = model.StatusVerified
			return result
		}
	}

	spread := math.Max(math.Abs(data.Max-data.Min), math.Abs(data.Consensus)) * tolerances.For(attribute) / 100
	if claimed >= data.Min-spread && claimed <= data.Max+spread {
		result.Status = model.StatusVerified
	}

	return result
}

func isYearAttribute(attribute string) bool {
	return strings.Contains(strings.ToLower(attribute), "year")
}

// impliedGranularity returns the coarsest step that divides v, or 0 when v
// is not a whole number
func impliedGranularity(v float64) float64 {
	if v != math.Trunc(v) || math.IsInf(v, 0) {
		return 0
	}
	if v == 0 {
		return 1
	}
	for _, g := range granularities {
		if math.Mod(v, g) == 0 {
			return g
		}
	}
	return 1
}

func roundTo(v, step float64) float64 {
	return math.Round(v/step) * step
}

// BuildConsensus derives multi-source data from evaluations of one key.
// The consensus is the trust-weighted median of the parseable values.
// Returns nil when no value parses.
func BuildConsensus(entity, attribute string, evaluations []model.CredibleEvaluation) *model.MultiSourceData {
	type sample struct {
		value float64
		trust float64
	}

	var samples []sample
	sources := make(map[string]bool)
	var totalTrust float64

	for _, ev := range evaluations {
		v, ok := extract.ParseNumber(ev.Value)
		if !ok {
			continue
		}
		trust := math.Max(float64(ev.Trust()), 0)
		samples = append(samples, sample{value: v, trust: trust})
		sources[ev.SourceURL] = true
		totalTrust += trust
	}

	if len(samples) == 0 {
		return nil
	}

	sort.SliceStable(samples, func(i, j int) bool { return samples[i].value < samples[j].value })

	// Zero trust everywhere degrades to a plain median
	if totalTrust == 0 {
		for i := range samples {
			samples[i].trust = 1
		}
		totalTrust = float64(len(samples))
	}

	median := samples[len(samples)-1].value
	var cumulative float64
	for _, s := range samples {
		cumulative += s.trust
		if cumulative >= totalTrust/2 {
			median = s.value
			break
		}
	}

	return &model.MultiSourceData{
		Entity:      entity,
		Attribute:   attribute,
		Consensus:   median,
		Min:         samples[0].value,
		Max:         samples[len(samples)-1].value,
		SourceCount: len(sources),
		Evaluations: evaluations,
	}
}

// EvaluationStore looks up credible evaluations, highest trust first
type EvaluationStore interface {
	FindEvaluations(ctx context.Context, entity, attribute string, window *model.YearWindow) ([]model.CredibleEvaluation, error)
}

// Key identifies an (entity, attribute) pair
type Key struct {
	Entity    string
	Attribute string
}

// ConsensusLoader builds a ConsensusIndex from evaluation storage
type ConsensusLoader struct {
	store EvaluationStore
	limit int
}

// NewConsensusLoader creates a loader issuing at most limit concurrent reads
func NewConsensusLoader(store EvaluationStore, limit int) *ConsensusLoader {
	if limit <= 0 {
		limit = 1
	}
	return &ConsensusLoader{store: store, limit: limit}
}

// Load fetches evaluations for every key concurrently. Keys without
// parseable data are left out of the index. The first storage error
// cancels outstanding reads and is returned.
func (l *ConsensusLoader) Load(ctx context.Context, keys []Key) (ConsensusIndex, error) {
	index := make(ConsensusIndex)
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.limit)

	seen := make(map[string]bool)
	for _, key := range keys {
		if key.Entity == "" || key.Attribute == "" {
			continue
		}
		k := ConsensusKey(key.Entity, key.Attribute)
		if seen[k] {
			continue
		}
		seen[k] = true

		key := key
		g.Go(func() error {
			evaluations, err := l.store.FindEvaluations(ctx, key.Entity, key.Attribute, nil)
			if err != nil {
				return errors.Wrapf(err, "load evaluations for %s/%s", key.Entity, key.Attribute)
			}

			data := BuildConsensus(key.Entity, key.Attribute, evaluations)
			if data == nil {
				return nil
			}

			mu.Lock()
			index[k] = data
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return index, nil
}
