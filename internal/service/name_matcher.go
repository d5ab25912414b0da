package service

import (
	"strings"
	"unicode"
)

// Name matching tolerates OCR noise: missing middle names, initials and minor
// misreads still count, unrelated names do not. Each expected token is scored
// against its best OCR token (exact 3, initial 2, fuzzy 1) and the total is
// normalised to a confidence percentage.
const (
	nameMatchThreshold = 65.0
	scoreExact         = 3
	scoreInitial       = 2
	scoreFuzzy         = 1
	fuzzyMinSimilarity = 0.70
)

// NameMatcher decides whether a teacher's full name appears in OCR text.
type NameMatcher struct{}

// NewNameMatcher constructs a matcher.
func NewNameMatcher() *NameMatcher {
	return &NameMatcher{}
}

// IsMatch reports whether the expected full name is confidently present in
// the OCR text.
func (m *NameMatcher) IsMatch(expectedFullName, ocrText string) bool {
	return m.Confidence(expectedFullName, ocrText) >= nameMatchThreshold
}

// Confidence returns the match confidence in percent.
func (m *NameMatcher) Confidence(expectedFullName, ocrText string) float64 {
	expected := nameTokens(expectedFullName)
	found := nameTokens(ocrText)
	if len(expected) == 0 || len(found) == 0 {
		return 0
	}

	total := 0
	for _, exp := range expected {
		best := 0
		for _, tok := range found {
			if s := scoreTokenPair(exp, tok); s > best {
				best = s
			}
			if best == scoreExact {
				break
			}
		}
		total += best
	}

	return float64(total) / float64(scoreExact*len(expected)) * 100
}

func scoreTokenPair(a, b string) int {
	if a == b {
		return scoreExact
	}
	if isInitialOf(a, b) || isInitialOf(b, a) {
		return scoreInitial
	}
	if similarity(a, b) >= fuzzyMinSimilarity {
		return scoreFuzzy
	}
	return 0
}

// isInitialOf reports whether short is a single-letter initial of long.
func isInitialOf(short, long string) bool {
	return len(short) == 1 && len(long) > 1 && short[0] == long[0]
}

// similarity is a Levenshtein ratio in [0,1].
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(a, b))/float64(longest)
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

// nameTokens lowercases, strips everything but letters and splits into words.
func nameTokens(s string) []string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Fields(b.String())
}
