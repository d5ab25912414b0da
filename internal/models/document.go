package models

import "time"

// TeacherDocument is an encrypted document record tied to a teacher.
// Path points at the encrypted blob in the file store; the display name is
// unique within (teacher, category) after collision resolution.
type TeacherDocument struct {
	ID            string    `db:"id" json:"id"`
	UserID        string    `db:"user_id" json:"user_id"`
	TeacherID     string    `db:"teacher_id" json:"teacher_id"`
	CategoryID    *string   `db:"category_id" json:"category_id,omitempty"`
	Name          string    `db:"name" json:"name"`
	Path          string    `db:"path" json:"path"`
	MimeType      string    `db:"mime_type" json:"mime_type"`
	Size          int64     `db:"size" json:"size"`
	PreviewPath   *string   `db:"preview_path" json:"preview_path,omitempty"`
	ExtractedText *string   `db:"extracted_text" json:"extracted_text,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// PropertyDocument is a school-property record (ICS, RIS). It carries no
// teacher reference and its blob is stored unencrypted; the display name is
// unique within its category after collision resolution.
type PropertyDocument struct {
	ID            string    `db:"id" json:"id"`
	UserID        string    `db:"user_id" json:"user_id"`
	CategoryID    string    `db:"category_id" json:"category_id"`
	PropertyType  string    `db:"property_type" json:"property_type"`
	Name          string    `db:"name" json:"name"`
	Path          string    `db:"path" json:"path"`
	MimeType      string    `db:"mime_type" json:"mime_type"`
	Size          int64     `db:"size" json:"size"`
	PreviewPath   *string   `db:"preview_path" json:"preview_path,omitempty"`
	ExtractedText *string   `db:"extracted_text" json:"extracted_text,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// DocumentKind tags the two record variants.
type DocumentKind string

const (
	DocumentKindTeacher  DocumentKind = "teacher"
	DocumentKindProperty DocumentKind = "property"
)

// DocumentRecord is the tagged result of an ingest: exactly one of Teacher or
// Property is set, indicated by Kind. Callers switch on Kind instead of
// probing fields.
type DocumentRecord struct {
	Kind     DocumentKind      `json:"kind"`
	Teacher  *TeacherDocument  `json:"teacher,omitempty"`
	Property *PropertyDocument `json:"property,omitempty"`
}

// Name returns the display name of whichever variant is set.
func (r DocumentRecord) Name() string {
	switch r.Kind {
	case DocumentKindTeacher:
		if r.Teacher != nil {
			return r.Teacher.Name
		}
	case DocumentKindProperty:
		if r.Property != nil {
			return r.Property.Name
		}
	}
	return ""
}

// DocumentFilter narrows document listing queries.
type DocumentFilter struct {
	TeacherID  string
	CategoryID string
	Search     string
	Page       int
	PageSize   int
}
