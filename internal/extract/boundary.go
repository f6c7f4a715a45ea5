package extract

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// indexBounded returns the offset of the first occurrence of needle in
// haystack that is not glued to a letter or digit on either side, or -1
func indexBounded(haystack, needle string) int {
	if needle == "" {
		return -1
	}

	from := 0
	for from <= len(haystack)-len(needle) {
		i := strings.Index(haystack[from:], needle)
		if i < 0 {
			return -1
		}
		i += from
		if isBounded(haystack, i, i+len(needle)) {
			return i
		}
		_, size := utf8.DecodeRuneInString(haystack[i:])
		from = i + size
	}
	return -1
}

// containsBounded reports whether needle occurs in haystack on word boundaries
func containsBounded(haystack, needle string) bool {
	return indexBounded(haystack, needle) >= 0
}

// isBounded checks that s[start:end] has non-alphanumeric neighbours
func isBounded(s string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(s[:start])
		if isWordRune(r) {
			return false
		}
	}
	if end < len(s) {
		r, _ := utf8.DecodeRuneInString(s[end:])
		if isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// byLengthDesc returns keys ordered longest first, ties broken alphabetically
// so that results do not depend on map iteration order
func byLengthDesc(keys []string) []string {
	sorted := make([]string, len(keys))
	copy(sorted, keys)
	sort.Slice(sorted, func(i, j int) bool {
		li, lj := utf8.RuneCountInString(sorted[i]), utf8.RuneCountInString(sorted[j])
		if li != lj {
			return li > lj
		}
		return sorted[i] < sorted[j]
	})
	return sorted
}

func mapKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
