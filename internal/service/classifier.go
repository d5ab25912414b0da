package service

import (
	"regexp"
	"strings"
)

// ClassifierRule binds a category name to its keywords. Rules are evaluated
// in slice order, most specific first: a generic keyword placed earlier would
// shadow a more specific category, so the ordering is load-bearing.
type ClassifierRule struct {
	Category string
	Keywords []string
}

// Classifier categorizes documents from OCR text and filenames using an
// immutable, priority-ordered keyword table built once at startup.
type Classifier struct {
	rules       []ClassifierRule
	patterns    map[string]*regexp.Regexp
	teacherSet  map[string]struct{}
	propertySet map[string]struct{}
	aliases     map[string]string
}

// defaultRules mirrors the category seed data. Keywords are lowercase; inputs
// are lowercased before matching. ICS/RIS sit after the teacher records so
// short filenames do not match them early.
var defaultRules = []ClassifierRule{
	{"Personal Data Sheet", []string{"personal data sheet", "pds", "cs form no. 212", "cs form 212"}},
	{"Work Experience Sheet", []string{"work experience sheet", "work experience", "wes"}},
	{"Oath of Office", []string{"oath of office"}},
	{"Certification of Assumption to Duty", []string{"assumption to duty", "certification of assumption to duty"}},
	{"Transcript of Records", []string{"transcript of records", "tor"}},
	{"Appointment Form", []string{"appointment form", "appointment paper"}},
	{"Daily Time Record", []string{"daily time record", "dtr", "civil service form no. 48", "cs form 48"}},
	{"SAL-N", []string{"sal-n", "saln", "statement of assets, liabilities and net worth", "statement of assets and liabilities", "assets liabilities and net worth"}},
	{"Service credit ledgers", []string{"service credit", "service credits", "credit ledger", "ledger of credits", "leave credits", "sl/vl", "vacation leave", "sick leave"}},
	{"IPCRF", []string{"ipcrf", "individual performance commitment", "individual performance review", "individual performance commitment and review"}},
	{"NOSI", []string{"nosi", "notice of salary increase"}},
	{"NOSA", []string{"nosa", "notice of salary adjustment", "step increment"}},
	{"Travel order", []string{"travel order", "authority to travel", "official business travel", " ato "}},
	{"ICS", []string{"inventory custodian slip", "ics"}},
	{"RIS", []string{"requisition and issue slip", "ris"}},
}

// propertyCategories are the categories that stand alone without a teacher.
var propertyCategories = []string{"ICS", "RIS"}

// defaultAliases maps raw labels returned by the external classification
// service onto canonical category names.
var defaultAliases = map[string]string{
	"pds":                   "Personal Data Sheet",
	"personal data sheet":   "Personal Data Sheet",
	"wes":                   "Work Experience Sheet",
	"dtr":                   "Daily Time Record",
	"daily time record":     "Daily Time Record",
	"tor":                   "Transcript of Records",
	"saln":                  "SAL-N",
	"service credits":       "Service credit ledgers",
	"oath":                  "Oath of Office",
	"appointment":           "Appointment Form",
	"travel":                "Travel order",
	"inventory custodian":   "ICS",
	"requisition and issue": "RIS",
}

// NewClassifier builds the classifier from the built-in rule table.
func NewClassifier() *Classifier {
	return NewClassifierWithRules(defaultRules, propertyCategories, defaultAliases)
}

// NewClassifierWithRules builds a classifier from explicit rules. The rule
// slice is copied; the classifier never mutates after construction.
func NewClassifierWithRules(rules []ClassifierRule, property []string, aliases map[string]string) *Classifier {
	c := &Classifier{
		rules:       make([]ClassifierRule, len(rules)),
		patterns:    make(map[string]*regexp.Regexp),
		teacherSet:  make(map[string]struct{}),
		propertySet: make(map[string]struct{}, len(property)),
		aliases:     make(map[string]string, len(aliases)),
	}
	copy(c.rules, rules)

	for _, name := range property {
		c.propertySet[strings.ToLower(name)] = struct{}{}
	}
	for _, rule := range c.rules {
		if _, ok := c.propertySet[strings.ToLower(rule.Category)]; !ok {
			c.teacherSet[strings.ToLower(rule.Category)] = struct{}{}
		}
		for _, kw := range rule.Keywords {
			kw = strings.ToLower(kw)
			if _, ok := c.patterns[kw]; !ok {
				// A keyword with an explicit leading or trailing space must
				// match that space literally, not a general word boundary:
				// " ato " may not fire inside "separator" or at line start.
				pattern := regexp.QuoteMeta(kw)
				if !strings.HasPrefix(kw, " ") {
					pattern = `\b` + pattern
				}
				if !strings.HasSuffix(kw, " ") {
					pattern += `\b`
				}
				c.patterns[kw] = regexp.MustCompile(`(?i)` + pattern)
			}
		}
	}
	for raw, canonical := range aliases {
		c.aliases[strings.ToLower(raw)] = canonical
	}
	return c
}

// Categorize resolves a category name for the given OCR text and filename.
// Pass 1 is a strict whole-word/phrase match against the OCR text; pass 2,
// only reached when pass 1 found nothing, is a loose separator-insensitive
// substring match against the filename. Returns "" when nothing matches.
func (c *Classifier) Categorize(ocrText, filename string) string {
	text := strings.ToLower(strings.TrimSpace(ocrText))
	name := strings.ToLower(strings.TrimSpace(filename))

	if text != "" {
		for _, rule := range c.rules {
			for _, kw := range rule.Keywords {
				if c.patterns[strings.ToLower(kw)].MatchString(text) {
					return rule.Category
				}
			}
		}
	}

	if name != "" {
		haystack := stripSeparators(name)
		for _, rule := range c.rules {
			for _, kw := range rule.Keywords {
				kw = strings.ToLower(kw)
				// Space-bounded keywords are text-only: stripping separators
				// would reduce " ato " to a bare substring of common words.
				if strings.HasPrefix(kw, " ") || strings.HasSuffix(kw, " ") {
					continue
				}
				if needle := stripSeparators(kw); needle != "" && strings.Contains(haystack, needle) {
					return rule.Category
				}
			}
		}
	}

	return ""
}

// Canonical maps a raw classification label to its canonical category name.
// Unknown labels pass through unchanged so DB lookups can still try them.
func (c *Classifier) Canonical(rawLabel string) string {
	label := strings.ToLower(strings.TrimSpace(rawLabel))
	if label == "" {
		return ""
	}
	if canonical, ok := c.aliases[label]; ok {
		return canonical
	}
	return strings.TrimSpace(rawLabel)
}

// IsPropertyCategory reports whether the named category stands alone without
// a teacher.
func (c *Classifier) IsPropertyCategory(name string) bool {
	_, ok := c.propertySet[strings.ToLower(name)]
	return ok
}

// TeacherCategories lists the category names that require a teacher, in rule
// priority order.
func (c *Classifier) TeacherCategories() []string {
	names := make([]string, 0, len(c.rules))
	for _, rule := range c.rules {
		if _, ok := c.teacherSet[strings.ToLower(rule.Category)]; ok {
			names = append(names, rule.Category)
		}
	}
	return names
}

var separatorReplacer = strings.NewReplacer("_", "", "-", "", ".", "", " ", "")

func stripSeparators(s string) string {
	return separatorReplacer.Replace(s)
}
