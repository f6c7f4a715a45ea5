package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// magnitudes maps suffixes to multipliers
var magnitudes = map[string]float64{
	"k":        1e3,
	"thousand": 1e3,
	"m":        1e6,
	"million":  1e6,
	"b":        1e9,
	"billion":  1e9,
	"t":        1e12,
	"trillion": 1e12,
}

var valuePattern = regexp.MustCompile(`^([-+]?(?:\d+(?:\.\d*)?|\.\d+))\s*(thousand|million|billion|trillion|[kmbt])?$`)

// ParseNumber parses a value such as "1,234", "36 million", "2.5B" or "$3.1t".
// Commas, a leading "$" and a trailing "%" are ignored.
func ParseNumber(raw string) (float64, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))

	m := valuePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}

	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	if m[2] != "" {
		v *= magnitudes[m[2]]
	}
	return v, true
}
