package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveNameNoCollision(t *testing.T) {
	assert.Equal(t, "pds.pdf", ResolveName("pds.pdf", nil))
	assert.Equal(t, "pds.pdf", ResolveName("pds.pdf", []string{"dtr.pdf", "oath.docx"}))
}

func TestResolveNameFirstCollision(t *testing.T) {
	assert.Equal(t, "pds (1).pdf", ResolveName("pds.pdf", []string{"pds.pdf"}))
}

func TestResolveNameNextCounter(t *testing.T) {
	existing := []string{"pds.pdf", "pds (1).pdf", "pds (2).pdf"}
	assert.Equal(t, "pds (3).pdf", ResolveName("pds.pdf", existing))

	// Gaps do not matter; the next counter after the maximum wins.
	sparse := []string{"pds.pdf", "pds (7).pdf"}
	assert.Equal(t, "pds (8).pdf", ResolveName("pds.pdf", sparse))
}

func TestResolveNameStripsCandidateSuffix(t *testing.T) {
	// The incoming " (n)" is discarded and recomputed against the scope.
	assert.Equal(t, "pds.pdf", ResolveName("pds (4).pdf", nil))
	assert.Equal(t, "pds (2).pdf", ResolveName("pds (4).pdf", []string{"pds.pdf", "pds (1).pdf"}))
}

func TestResolveNameCaseInsensitiveScope(t *testing.T) {
	assert.Equal(t, "PDS (1).pdf", ResolveName("PDS.pdf", []string{"pds.pdf"}))
}

func TestResolveNameExtensionSeparatesScopes(t *testing.T) {
	// Same base, different extension: no collision.
	assert.Equal(t, "pds.docx", ResolveName("pds.docx", []string{"pds.pdf"}))
}

func TestResolveNameWithoutExtension(t *testing.T) {
	assert.Equal(t, "notes (1)", ResolveName("notes", []string{"notes"}))
}
