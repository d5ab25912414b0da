package dto

import "github.com/noah-isme/docunet-api/internal/models"

// UploadDocumentsRequest carries metadata submitted alongside a batch of files.
type UploadDocumentsRequest struct {
	TeacherID      *string `form:"teacher_id" json:"teacher_id"`
	CategoryID     *string `form:"category_id" json:"category_id"`
	AllowDuplicate bool    `form:"allow_duplicate" json:"allow_duplicate"`
	SkipOCR        bool    `form:"skip_ocr" json:"skip_ocr"`
}

// UploadFileStatus reports the outcome for a single file in a batch upload.
// A failed or duplicate file never aborts the rest of the batch.
type UploadFileStatus struct {
	FileName string `json:"file_name"`
	Status   string `json:"status"` // uploaded | duplicate | error
	Message  string `json:"message,omitempty"`
	// Conflict names the existing document when Status is duplicate.
	Conflict string                 `json:"conflict,omitempty"`
	Document *models.DocumentRecord `json:"document,omitempty"`
	Teacher  string                 `json:"teacher,omitempty"`
	Category string                 `json:"category,omitempty"`
}

// ScanResponse returns what automatic detection found for an uploaded file
// without persisting anything.
type ScanResponse struct {
	Teacher          string `json:"teacher,omitempty"`
	Category         string `json:"category,omitempty"`
	BelongsToTeacher bool   `json:"belongs_to_teacher"`
}

// DocumentListFilter captures query parameters for listing documents.
type DocumentListFilter struct {
	TeacherID  string `form:"teacher_id"`
	CategoryID string `form:"category_id"`
	Search     string `form:"search"`
	Page       int    `form:"page"`
	PageSize   int    `form:"page_size"`
}
