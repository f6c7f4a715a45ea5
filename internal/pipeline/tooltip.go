package pipeline

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ppiankov/factgate/internal/model"
)

// SingleTooltip explains a single-source verdict in one line
func SingleTooltip(entity, attribute string, result model.VerificationResult) string {
	if reason, ok := unknownReason(entity, attribute, result.Status); ok {
		return reason
	}

	fact := result.MatchedFact
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s %s is %s", statusLabel(result.Status), entity, humanAttribute(attribute), fact.Value)

	var source []string
	if fact.SourceTrust != "" {
		source = append(source, fact.SourceTrust)
	}
	if fact.AsOfDate != nil {
		source = append(source, "as of "+strconv.Itoa(fact.AsOfDate.Year()))
	}
	if len(source) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(source, ", "))
	}

	if result.PercentDiff != nil && *result.PercentDiff > 0 {
		fmt.Fprintf(&b, "; claim differs by %.1f%%", *result.PercentDiff)
	}
	return b.String()
}

// ConsensusTooltip explains a consensus verdict in one line
func ConsensusTooltip(entity, attribute string, result model.ConsensusResult) string {
	if result.MultiSource == nil {
		reason, _ := unknownReason(entity, attribute, model.StatusUnknown)
		return reason
	}

	data := result.MultiSource
	if result.Status == model.StatusUnknown {
		return fmt.Sprintf("Unknown: claim is not a number comparable with %s %s", entity, humanAttribute(attribute))
	}

	sources := "sources"
	if data.SourceCount == 1 {
		sources = "source"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d %s put %s %s at %s",
		statusLabel(result.Status), data.SourceCount, sources,
		entity, humanAttribute(attribute), formatNumber(data.Consensus))
	if data.Min != data.Max {
		fmt.Fprintf(&b, " (range %s to %s)", formatNumber(data.Min), formatNumber(data.Max))
	}
	if result.PercentDiff != nil && *result.PercentDiff > 0 {
		fmt.Fprintf(&b, "; claim differs by %.1f%%", *result.PercentDiff)
	}
	return b.String()
}

func unknownReason(entity, attribute string, status model.Status) (string, bool) {
	if status != model.StatusUnknown {
		return "", false
	}
	switch {
	case entity == "":
		return "Unknown: no entity recognised in text", true
	case attribute == "":
		return "Unknown: could not tell what this number measures", true
	default:
		return fmt.Sprintf("Unknown: no data for %s %s", entity, humanAttribute(attribute)), true
	}
}

func statusLabel(status model.Status) string {
	switch status {
	case model.StatusVerified:
		return "Verified"
	case model.StatusClose:
		return "Close"
	case model.StatusMismatch:
		return "Mismatch"
	default:
		return "Unknown"
	}
}

func humanAttribute(attribute string) string {
	return strings.ReplaceAll(attribute, "_", " ")
}

// formatNumber prints large values with a magnitude word, e.g. 125100000 -> "125.1 million"
func formatNumber(v float64) string {
	abs := math.Abs(v)

	scales := []struct {
		factor float64
		word   string
	}{
		{1e12, "trillion"},
		{1e9, "billion"},
		{1e6, "million"},
	}
	for _, s := range scales {
		if abs >= s.factor {
			return strconv.FormatFloat(roundPlaces(v/s.factor, 2), 'f', -1, 64) + " " + s.word
		}
	}
	return strconv.FormatFloat(roundPlaces(v, 2), 'f', -1, 64)
}

func roundPlaces(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
