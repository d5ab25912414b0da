package models

import "time"

// Category is a document category. Position mirrors the keyword-rule priority
// order: lower positions hold the more specific rules. RequiresTeacher splits
// teacher categories (Personal Data Sheet, IPCRF, ...) from standalone
// property categories (ICS, RIS).
type Category struct {
	ID              string    `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	Position        int       `db:"position" json:"position"`
	RequiresTeacher bool      `db:"requires_teacher" json:"requires_teacher"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}
