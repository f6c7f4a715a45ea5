package extract

import (
	"strings"

	"github.com/ppiankov/factgate/internal/model"
)

// AttributeInferencer maps claim context to a canonical attribute
type AttributeInferencer struct {
	keywords []string // lower-cased, longest first
	targets  map[string]string
}

// NewAttributeInferencer prepares a keyword table for repeated lookups
func NewAttributeInferencer(mapping map[string]string) *AttributeInferencer {
	a := &AttributeInferencer{targets: make(map[string]string, len(mapping))}
	for _, keyword := range byLengthDesc(mapKeys(mapping)) {
		lower := strings.ToLower(strings.TrimSpace(keyword))
		if lower == "" {
			continue
		}
		if _, dup := a.targets[lower]; dup {
			continue
		}
		a.targets[lower] = mapping[keyword]
		a.keywords = append(a.keywords, lower)
	}
	return a
}

// Infer returns the attribute whose keyword appears in the claim context.
// Multi-word keywords match as substrings, single words only on word boundaries.
func (a *AttributeInferencer) Infer(claim model.NumericClaim) (string, bool) {
	context := strings.ToLower(claim.Context())

	for _, keyword := range a.keywords {
		var hit bool
		if strings.ContainsAny(keyword, " \t") {
			hit = strings.Contains(context, keyword)
		} else {
			hit = containsBounded(context, keyword)
		}
		if hit {
			return a.targets[keyword], true
		}
	}

	return "", false
}

// InferAttribute is a one-shot form of AttributeInferencer.Infer
func InferAttribute(claim model.NumericClaim, mapping map[string]string) (string, bool) {
	return NewAttributeInferencer(mapping).Infer(claim)
}
