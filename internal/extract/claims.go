package extract

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ppiankov/factgate/internal/model"
)

const (
	contextWidth = 20 // characters of context captured on each side of a claim
	yearWindow   = 50 // characters searched on each side for a reference year
	minYear      = 1900
	maxYear      = 2100
)

// numberPattern matches 1,234,567.89 or 1234.5, optionally followed by a
// magnitude word ("36 million") or an attached magnitude letter ("36m")
var numberPattern = regexp.MustCompile(`(?i)\b(?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d+)?(?:\s*(?:thousand|million|billion|trillion)\b|[kmbt]\b)?`)

var yearPattern = regexp.MustCompile(`\b\d{4}\b`)

// temporalPrepositions mark a year as the reference date of a nearby figure
var temporalPrepositions = []string{"as of", "during", "since", "until", "from", "in", "by"}

// temporalKeywords mark a bare year as a date rather than a quantity
var temporalKeywords = []string{
	"in", "during", "since", "by", "from", "until", "as of",
	"year", "founded", "established", "independence",
}

// ExtractClaims finds every numeric token in text, in text order.
// Year mentions such as "founded in 1985" are returned with Temporal set.
func ExtractClaims(text string) []model.NumericClaim {
	matches := numberPattern.FindAllStringIndex(text, -1)
	claims := make([]model.NumericClaim, 0, len(matches))

	for _, m := range matches {
		start, end := m[0], m[1]

		claim := model.NumericClaim{
			Value:        text[start:end],
			Start:        start,
			End:          end,
			LeftContext:  strings.ToLower(text[runeFloor(text, start-contextWidth):start]),
			RightContext: strings.ToLower(text[end:runeCeil(text, end+contextWidth)]),
			Year:         referenceYear(text, start, end),
		}
		claim.Temporal = isTemporalYear(claim)

		claims = append(claims, claim)
	}

	return claims
}

// NumericOnly drops temporal year mentions; they describe when, not what
func NumericOnly(claims []model.NumericClaim) []model.NumericClaim {
	var out []model.NumericClaim
	for _, c := range claims {
		if !c.Temporal {
			out = append(out, c)
		}
	}
	return out
}

// isTemporalYear reports whether a claim is a year used as a date
func isTemporalYear(claim model.NumericClaim) bool {
	if _, ok := parseYear(claim.Value); !ok {
		return false
	}

	context := claim.Context()
	for _, keyword := range temporalKeywords {
		if containsBounded(context, keyword) {
			return true
		}
	}
	return false
}

// referenceYear picks the year a figure refers to from the text around it.
// A single candidate wins outright; among several, one introduced by a
// temporal preposition is preferred, otherwise the first.
func referenceYear(text string, start, end int) *int {
	lo := runeFloor(text, start-yearWindow)
	hi := runeCeil(text, end+yearWindow)

	type candidate struct {
		year int
		pos  int
	}
	var candidates []candidate

	for _, m := range yearPattern.FindAllStringIndex(text[lo:hi], -1) {
		ys, ye := lo+m[0], lo+m[1]
		if ys < end && ye > start {
			continue // the claim itself
		}
		if y, ok := parseYear(text[ys:ye]); ok {
			candidates = append(candidates, candidate{year: y, pos: ys})
		}
	}

	switch len(candidates) {
	case 0:
		return nil
	case 1:
		return &candidates[0].year
	}

	for i := range candidates {
		if precededByPreposition(text, candidates[i].pos) {
			return &candidates[i].year
		}
	}
	return &candidates[0].year
}

func precededByPreposition(text string, pos int) bool {
	before := strings.ToLower(strings.TrimRightFunc(text[:pos], unicode.IsSpace))
	if len(before) == len(text[:pos]) {
		return false // no whitespace between word and year
	}
	for _, prep := range temporalPrepositions {
		if strings.HasSuffix(before, prep) && isBounded(before, len(before)-len(prep), len(before)) {
			return true
		}
	}
	return false
}

func parseYear(s string) (int, bool) {
	if len(s) != 4 {
		return 0, false
	}
	y, err := strconv.Atoi(s)
	if err != nil || y < minYear || y > maxYear {
		return 0, false
	}
	return y, true
}

// runeFloor clamps i into s and moves it back to a rune boundary
func runeFloor(s string, i int) int {
	if i <= 0 {
		return 0
	}
	if i >= len(s) {
		return len(s)
	}
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// runeCeil clamps i into s and moves it forward to a rune boundary
func runeCeil(s string, i int) int {
	if i >= len(s) {
		return len(s)
	}
	if i <= 0 {
		return 0
	}
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return i
}
