package models

import (
	"strings"
	"time"
)

// Teacher represents an instructor record. The structured name parts feed the
// OCR name detection; FullName is also used for archive path organization.
type Teacher struct {
	ID         string    `db:"id" json:"id"`
	FirstName  string    `db:"first_name" json:"first_name"`
	MiddleName *string   `db:"middle_name" json:"middle_name,omitempty"`
	LastName   string    `db:"last_name" json:"last_name"`
	FullName   string    `db:"full_name" json:"full_name"`
	Email      *string   `db:"email" json:"email,omitempty"`
	Active     bool      `db:"active" json:"active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// NamePermutations returns the orderings tried against OCR text: the stored
// full name, first-last, and last-first.
func (t Teacher) NamePermutations() []string {
	perms := []string{t.FullName}
	firstLast := strings.TrimSpace(t.FirstName + " " + t.LastName)
	if firstLast != "" && !strings.EqualFold(firstLast, t.FullName) {
		perms = append(perms, firstLast)
	}
	lastFirst := strings.TrimSpace(t.LastName + " " + t.FirstName)
	if lastFirst != "" && !strings.EqualFold(lastFirst, t.FullName) {
		perms = append(perms, lastFirst)
	}
	return perms
}

// TeacherFilter captures filtering options for listing teachers.
type TeacherFilter struct {
	Search   string
	Active   *bool
	Page     int
	PageSize int
}
