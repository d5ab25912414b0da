package models

import "time"

// Snapshot describes one completed backup run: an encrypted and a decrypted
// archive sharing a single database dump.
type Snapshot struct {
	EncryptedArchive string    `json:"encrypted_archive"`
	DecryptedArchive string    `json:"decrypted_archive"`
	CreatedAt        time.Time `json:"created_at"`
}

// RestoreMode selects how the database dump is applied.
type RestoreMode string

const (
	// RestoreModeReplace executes the dump as-is; its statements carry their own
	// drop/create.
	RestoreModeReplace RestoreMode = "replace"
	// RestoreModeMerge wraps the dump with foreign-key checks disabled.
	RestoreModeMerge RestoreMode = "merge"
)

// RestoreOptions configures a restore run.
type RestoreOptions struct {
	// Encrypted indicates the archive holds teacher-document blobs in their
	// at-rest encrypted form. Decrypted archives are re-encrypted on restore.
	Encrypted bool        `json:"encrypted"`
	Mode      RestoreMode `json:"mode"`
}

// RestoreReport aggregates the outcome of a restore. File misses never abort
// the run; they are tallied here instead.
type RestoreReport struct {
	DBRestored           bool     `json:"db_restored"`
	TeacherDocsRestored  int      `json:"teacher_docs_restored"`
	TeacherDocsMissing   int      `json:"teacher_docs_missing"`
	PropertyDocsRestored int      `json:"property_docs_restored"`
	PropertyDocsMissing  int      `json:"property_docs_missing"`
	MiscRestored         int      `json:"misc_restored"`
	Warnings             []string `json:"warnings,omitempty"`
}
