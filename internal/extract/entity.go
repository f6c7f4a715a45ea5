package extract

import "strings"

// EntityResolver maps free text to a canonical entity name
type EntityResolver struct {
	aliases   []string // lower-cased, longest first
	targets   map[string]string
	canonical []string // original spelling, longest first
}

// NewEntityResolver prepares alias and entity tables for repeated lookups.
// Aliases pointing at entities outside canonical are ignored.
func NewEntityResolver(canonical []string, aliases map[string]string) *EntityResolver {
	known := make(map[string]bool, len(canonical))
	for _, name := range canonical {
		known[name] = true
	}

	r := &EntityResolver{
		targets:   make(map[string]string),
		canonical: byLengthDesc(canonical),
	}

	for _, alias := range byLengthDesc(mapKeys(aliases)) {
		target := aliases[alias]
		if !known[target] {
			continue
		}
		lower := strings.ToLower(alias)
		if _, dup := r.targets[lower]; dup {
			continue
		}
		r.targets[lower] = target
		r.aliases = append(r.aliases, lower)
	}

	return r
}

// Resolve returns the entity mentioned in text. Aliases are tried before
// canonical names; within each group longer names win.
func (r *EntityResolver) Resolve(text string) (string, bool) {
	lower := strings.ToLower(text)

	for _, alias := range r.aliases {
		if containsBounded(lower, alias) {
			return r.targets[alias], true
		}
	}

	for _, name := range r.canonical {
		if containsBounded(lower, strings.ToLower(name)) {
			return name, true
		}
	}

	return "", false
}

// ResolveEntity is a one-shot form of EntityResolver.Resolve
func ResolveEntity(text string, canonical []string, aliases map[string]string) (string, bool) {
	return NewEntityResolver(canonical, aliases).Resolve(text)
}
