package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifierCategorizeFromText(t *testing.T) {
	c := NewClassifier()

	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{"pds phrase", "Republic of the Philippines PERSONAL DATA SHEET CS Form No. 212", "Personal Data Sheet"},
		{"dtr form number", "CIVIL SERVICE FORM NO. 48 for the month of June", "Daily Time Record"},
		{"saln", "Statement of Assets, Liabilities and Net Worth as of December 31", "SAL-N"},
		{"travel order", "TRAVEL ORDER No. 2024-18 is hereby granted", "Travel order"},
		{"ics", "INVENTORY CUSTODIAN SLIP Entity Name: SMA", "ICS"},
		{"ris", "Requisition and Issue Slip Division Office", "RIS"},
		{"no match", "minutes of the faculty meeting", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, c.Categorize(tc.text, ""))
		})
	}
}

func TestClassifierWholeWordMatching(t *testing.T) {
	c := NewClassifier()

	// "tor" must not fire inside unrelated words.
	assert.Empty(t, c.Categorize("the inventory of the storage room", ""))
	assert.Equal(t, "Transcript of Records", c.Categorize("attached TOR from the university", ""))
}

func TestClassifierSpaceBoundedKeyword(t *testing.T) {
	c := NewClassifier()

	// " ato " carries its spaces into the match: it fires only between
	// literal spaces, never inside a word or at the start of the text.
	assert.Equal(t, "Travel order", c.Categorize("granted ato for the division seminar", ""))
	assert.Empty(t, c.Categorize("ato request form attached", ""))
	assert.Empty(t, c.Categorize("separator maintenance log", ""))

	// The filename pass strips separators, so space-bounded keywords are
	// excluded from it entirely.
	assert.Empty(t, c.Categorize("", "legislator_notes.pdf"))
}

func TestClassifierFilenameFallback(t *testing.T) {
	c := NewClassifier()

	// No OCR text: separators are stripped and keywords substring-matched.
	assert.Equal(t, "Personal Data Sheet", c.Categorize("", "personal_data_sheet_cruz.pdf"))
	assert.Equal(t, "Daily Time Record", c.Categorize("", "DTR-June-2024.xlsx"))
	assert.Equal(t, "IPCRF", c.Categorize("", "ipcrf.2024.docx"))
	assert.Empty(t, c.Categorize("", "vacation-photos.zip"))
}

func TestClassifierTextPassWinsOverFilename(t *testing.T) {
	c := NewClassifier()

	got := c.Categorize("OATH OF OFFICE subscribed and sworn", "dtr_january.pdf")
	assert.Equal(t, "Oath of Office", got)
}

func TestClassifierRuleOrderIsLoadBearing(t *testing.T) {
	specific := NewClassifierWithRules([]ClassifierRule{
		{"Notice of Salary Adjustment", []string{"notice of salary adjustment"}},
		{"Notice", []string{"notice"}},
	}, nil, nil)
	assert.Equal(t, "Notice of Salary Adjustment",
		specific.Categorize("NOTICE OF SALARY ADJUSTMENT effective today", ""))

	// Reversing the rules makes the generic keyword shadow the specific one.
	shadowed := NewClassifierWithRules([]ClassifierRule{
		{"Notice", []string{"notice"}},
		{"Notice of Salary Adjustment", []string{"notice of salary adjustment"}},
	}, nil, nil)
	assert.Equal(t, "Notice",
		shadowed.Categorize("NOTICE OF SALARY ADJUSTMENT effective today", ""))
}

func TestClassifierCanonical(t *testing.T) {
	c := NewClassifier()

	assert.Equal(t, "Personal Data Sheet", c.Canonical("PDS"))
	assert.Equal(t, "SAL-N", c.Canonical("saln"))
	assert.Equal(t, "Travel order", c.Canonical("travel"))
	// Unknown labels pass through for a direct DB lookup attempt.
	assert.Equal(t, "Memorandum", c.Canonical("Memorandum"))
	assert.Empty(t, c.Canonical("   "))
}

func TestClassifierPropertyCategories(t *testing.T) {
	c := NewClassifier()

	assert.True(t, c.IsPropertyCategory("ICS"))
	assert.True(t, c.IsPropertyCategory("ris"))
	assert.False(t, c.IsPropertyCategory("Personal Data Sheet"))
	// Unknown names are not property categories.
	assert.False(t, c.IsPropertyCategory("Memorandum"))

	teacherCats := c.TeacherCategories()
	require.NotEmpty(t, teacherCats)
	assert.NotContains(t, teacherCats, "ICS")
	assert.NotContains(t, teacherCats, "RIS")
	assert.Equal(t, "Personal Data Sheet", teacherCats[0])
}
