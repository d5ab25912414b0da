package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNameMatcherExactName(t *testing.T) {
	m := NewNameMatcher()

	assert.True(t, m.IsMatch("Juan Cruz", "This is to certify that JUAN CRUZ has rendered service"))
	assert.InDelta(t, 100, m.Confidence("Juan Cruz", "juan cruz"), 0.01)
}

func TestNameMatcherInitials(t *testing.T) {
	m := NewNameMatcher()

	// "J. Cruz" scores initial(2) + exact(3) out of 6.
	assert.InDelta(t, 83.33, m.Confidence("Juan Cruz", "prepared by J. Cruz"), 0.01)
	assert.True(t, m.IsMatch("Juan Cruz", "prepared by J. Cruz"))
}

func TestNameMatcherMissingMiddleName(t *testing.T) {
	m := NewNameMatcher()

	// Two of three tokens exact: 6/9 ≈ 66.7%, just above the threshold.
	assert.True(t, m.IsMatch("Maria Clara Santos", "signature of Maria Santos"))
}

func TestNameMatcherFuzzyMisread(t *testing.T) {
	m := NewNameMatcher()

	// OCR misread "cruzz": exact(3) + fuzzy(1) out of 6 ≈ 66.7%.
	assert.True(t, m.IsMatch("Juan Cruz", "employee juan cruzz"))
	// A heavier misread falls below the fuzzy similarity floor.
	assert.False(t, m.IsMatch("Juan Cruz", "employee jxxn crxx"))
}

func TestNameMatcherRejectsUnrelatedNames(t *testing.T) {
	m := NewNameMatcher()

	assert.False(t, m.IsMatch("Maria Santos", "this document belongs to Juan Cruz"))
	assert.Zero(t, m.Confidence("Maria Santos", ""))
	assert.Zero(t, m.Confidence("", "Juan Cruz"))
}

func TestNameMatcherIgnoresPunctuationAndCase(t *testing.T) {
	m := NewNameMatcher()

	assert.True(t, m.IsMatch("Dela Cruz, Juan", "JUAN DELA CRUZ"))
}
