package conversation

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Trigger scan defaults applied when a record leaves the tuning fields zero.
const (
	defaultTriggerLookback = 3
	defaultTriggerMinMatch = 1
)

// KeywordMatches returns the distinct keywords from the comma-separated list
// that occur in text. Matching is case-insensitive and on word boundaries: a
// hit's neighbors must not be letters or digits.
func KeywordMatches(text, keywords string) []string {
	lowered := strings.ToLower(text)

	var matched []string
	seen := make(map[string]struct{})
	for _, raw := range strings.Split(keywords, ",") {
		keyword := strings.ToLower(strings.TrimSpace(raw))
		if keyword == "" {
			continue
		}
		if _, dup := seen[keyword]; dup {
			continue
		}
		seen[keyword] = struct{}{}
		if containsWord(lowered, keyword) {
			matched = append(matched, keyword)
		}
	}
	return matched
}

// containsWord reports whether word occurs in text delimited by
// non-alphanumeric runes. Both arguments must already be lowercased.
func containsWord(text, word string) bool {
	for from := 0; ; {
		i := strings.Index(text[from:], word)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(word)

		if boundaryBefore(text, start) && boundaryAfter(text, end) {
			return true
		}
		from = start + 1
	}
}

func boundaryBefore(text string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func boundaryAfter(text string, i int) bool {
	if i >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[i:])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// triggerLookback returns the record's lookback window, defaulted.
func triggerLookback(turns int) int {
	if turns <= 0 {
		return defaultTriggerLookback
	}
	return turns
}

// triggerMinMatch returns the record's qualification threshold, defaulted.
func triggerMinMatch(count int) int {
	if count <= 0 {
		return defaultTriggerMinMatch
	}
	return count
}
