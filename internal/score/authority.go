package score

import (
	"net/url"
	"strings"
)

// AuthorityTier estimates how authoritative a source domain is
type AuthorityTier string

const (
	TierPrimary   AuthorityTier = "primary"   // Statistical offices, intergovernmental bodies
	TierSecondary AuthorityTier = "secondary" // Reference works, wire services
	TierTertiary  AuthorityTier = "tertiary"
)

// AuthorityClassifier classifies source URLs into authority tiers. It is the
// fallback for sources without curated metrics.
type AuthorityClassifier struct {
	primaryMap   map[string]bool
	secondaryMap map[string]bool
}

// NewAuthorityClassifier creates a classifier from primary and secondary domain lists
func NewAuthorityClassifier(primary, secondary []string) *AuthorityClassifier {
	a := &AuthorityClassifier{
		primaryMap:   make(map[string]bool),
		secondaryMap: make(map[string]bool),
	}
	for _, domain := range primary {
		a.primaryMap[strings.ToLower(domain)] = true
	}
	for _, domain := range secondary {
		a.secondaryMap[strings.ToLower(domain)] = true
	}
	return a
}

// Classify classifies a URL into an authority tier
func (a *AuthorityClassifier) Classify(rawURL string) AuthorityTier {
	host := Host(rawURL)
	if host == "" {
		return TierTertiary
	}

	if matchesDomain(host, a.primaryMap) {
		return TierPrimary
	}
	if matchesDomain(host, a.secondaryMap) {
		return TierSecondary
	}

	// Government and academic TLDs
	if strings.HasSuffix(host, ".gov") || strings.HasSuffix(host, ".edu") || strings.HasSuffix(host, ".ac.uk") {
		return TierPrimary
	}

	return TierTertiary
}

// matchesDomain reports whether host is one of domains or a subdomain of one
func matchesDomain(host string, domains map[string]bool) bool {
	if domains[host] {
		return true
	}
	for domain := range domains {
		if strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// Host returns the lower-cased host of rawURL without port or "www." prefix.
// Bare domains such as "imf.org" are accepted as well.
func Host(rawURL string) string {
	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}

	host := strings.ToLower(parsed.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// parentDomains lists host and its parents down to two labels:
// "data.imf.org" -> ["data.imf.org", "imf.org"]
func parentDomains(host string) []string {
	domains := []string{host}
	for {
		idx := strings.Index(host, ".")
		if idx < 0 {
			break
		}
		host = host[idx+1:]
		if !strings.Contains(host, ".") {
			break
		}
		domains = append(domains, host)
	}
	return domains
}
